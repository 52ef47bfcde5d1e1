//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package udp

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddr 设置 SO_REUSEADDR 和 SO_REUSEPORT
//
// 同一主机上的多个参与者需要绑定同一个发现组播端口。
func reuseAddr(_, _ string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			opErr = fmt.Errorf("set SO_REUSEADDR: %w", err)
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			// 仅 SO_REUSEADDR 时组播端口仍可共享
			logger.Warn("设置 SO_REUSEPORT 失败", "error", err)
		}
	})
	if err != nil {
		return err
	}
	return opErr
}
