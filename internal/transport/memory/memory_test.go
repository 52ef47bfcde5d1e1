package memory

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dds/internal/transport"
	"github.com/dep2p/go-dds/pkg/types"
)

type received struct {
	data []byte
	from types.Locator
}

func serve(t *testing.T, tr *Transport) <-chan received {
	t.Helper()
	ch := make(chan received, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = tr.Serve(ctx, func(d []byte, from types.Locator) {
			ch <- received{data: append([]byte(nil), d...), from: from}
		})
	}()
	return ch
}

func recv(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for datagram")
		return received{}
	}
}

func TestMemory_Unicast(t *testing.T) {
	n := NewNetwork()
	a, b := n.NewTransport(), n.NewTransport()
	defer a.Close()
	defer b.Close()
	assert.NotEqual(t, a.LocalLocators(), b.LocalLocators())

	ch := serve(t, b)
	require.NoError(t, a.Send(context.Background(), []byte("hello"), b.LocalLocators()))

	r := recv(t, ch)
	assert.Equal(t, []byte("hello"), r.data)
	assert.Equal(t, a.LocalLocators()[0], r.from)
}

func TestMemory_Multicast(t *testing.T) {
	n := NewNetwork()
	group := types.NewUDPv4Locator(net.IPv4(239, 255, 0, 1), 7400)

	a, b, c := n.NewTransport(), n.NewTransport(), n.NewTransport()
	b.JoinGroup(group)
	c.JoinGroup(group)
	chB, chC := serve(t, b), serve(t, c)

	require.NoError(t, a.Send(context.Background(), []byte{1}, []types.Locator{group}))
	assert.Equal(t, []byte{1}, recv(t, chB).data)
	assert.Equal(t, []byte{1}, recv(t, chC).data)
}

func TestMemory_Unreachable(t *testing.T) {
	n := NewNetwork()
	a := n.NewTransport()
	nowhere := types.NewUDPv4Locator(net.IPv4(127, 0, 0, 1), 1)

	err := a.Send(context.Background(), []byte{1}, []types.Locator{nowhere})
	assert.ErrorIs(t, err, transport.ErrUnreachable)
}

func TestMemory_Drop(t *testing.T) {
	n := NewNetwork()
	a, b := n.NewTransport(), n.NewTransport()
	ch := serve(t, b)

	n.SetDropFunc(func(d []byte, _ types.Locator) bool { return d[0] == 0 })
	require.NoError(t, a.Send(context.Background(), []byte{0}, b.LocalLocators()))
	require.NoError(t, a.Send(context.Background(), []byte{1}, b.LocalLocators()))

	assert.Equal(t, []byte{1}, recv(t, ch).data)
}

func TestMemory_Close(t *testing.T) {
	n := NewNetwork()
	a, b := n.NewTransport(), n.NewTransport()

	require.NoError(t, b.Close())
	err := a.Send(context.Background(), []byte{1}, b.LocalLocators())
	assert.ErrorIs(t, err, transport.ErrUnreachable)

	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Send(context.Background(), []byte{1}, b.LocalLocators()), transport.ErrClosed)
	assert.ErrorIs(t, a.Serve(context.Background(), func([]byte, types.Locator) {}), transport.ErrClosed)
}
