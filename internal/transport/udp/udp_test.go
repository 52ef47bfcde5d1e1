package udp

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

func TestUDP_LoopbackUnicast(t *testing.T) {
	a, err := New(Config{Address: "127.0.0.1"})
	require.NoError(t, err)
	defer a.Close()
	b, err := New(Config{Address: "127.0.0.1"})
	require.NoError(t, err)
	defer b.Close()

	got := make(chan []byte, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Serve(ctx, func(d []byte, from types.Locator) {
			got <- append([]byte(nil), d...)
		})
	}()

	require.NoError(t, a.Send(context.Background(), []byte("RTPS"), b.LocalLocators()))
	select {
	case d := <-got:
		assert.Equal(t, []byte("RTPS"), d)
	case <-time.After(2 * time.Second):
		t.Fatal("no datagram received")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestUDP_UnsupportedLocator(t *testing.T) {
	a, err := New(Config{Address: "127.0.0.1"})
	require.NoError(t, err)
	defer a.Close()

	v6 := types.NewUDPv6Locator(net.IPv6loopback, 7400)
	err = a.Send(context.Background(), []byte{1}, []types.Locator{v6})
	assert.ErrorIs(t, err, transport.ErrUnsupportedLocator)
}

func TestUDP_BadConfig(t *testing.T) {
	_, err := New(Config{Address: "not-an-ip"})
	assert.ErrorIs(t, err, types.ErrInvalidLocator)

	_, err = New(Config{Address: "127.0.0.1", MulticastGroup: "10.0.0.1"})
	assert.ErrorIs(t, err, types.ErrInvalidLocator)
}

func TestUDP_SendAfterClose(t *testing.T) {
	a, err := New(Config{Address: "127.0.0.1"})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Send(context.Background(), []byte{1}, a.LocalLocators()), transport.ErrClosed)
}
