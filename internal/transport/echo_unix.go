//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// setEcho flips the ECHO local flag of the terminal behind f.
// The fd is reached through SyscallConn so f stays in non-blocking mode.
func setEcho(f *os.File, enabled bool) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}

	var opErr error
	err = rc.Control(func(fd uintptr) {
		t, err := unix.IoctlGetTermios(int(fd), ioctlGetTermios)
		if err != nil {
			opErr = fmt.Errorf("get termios: %w", err)
			return
		}
		if enabled {
			t.Lflag |= unix.ECHO
		} else {
			t.Lflag &^= unix.ECHO
		}
		if err := unix.IoctlSetTermios(int(fd), ioctlSetTermios, t); err != nil {
			opErr = fmt.Errorf("set termios: %w", err)
		}
	})
	if err != nil {
		return err
	}
	return opErr
}
