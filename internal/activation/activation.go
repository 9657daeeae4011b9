// Package activation hands the webhook server its listening socket, either
// inherited through systemd socket activation or freshly bound.
package activation

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// systemd passes file descriptors starting at fd 3 (0=stdin, 1=stdout, 2=stderr)
const firstFD = 3

// Listen returns the systemd-activated socket when the process was started
// by a .socket unit, otherwise a new TCP listener on addr. The second
// return value reports whether the socket was inherited.
func Listen(addr string) (net.Listener, bool, error) {
	ln, err := activated(os.Getenv, os.Getpid(), fileListener)
	if err != nil {
		return nil, false, err
	}
	if ln != nil {
		// Child processes such as the token helper must not inherit them
		_ = os.Unsetenv("LISTEN_PID")
		_ = os.Unsetenv("LISTEN_FDS")
		_ = os.Unsetenv("LISTEN_FDNAMES")
		return ln, true, nil
	}

	ln, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, false, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, false, nil
}

// activated inspects LISTEN_PID and LISTEN_FDS. It returns nil when no
// activation targets this process. Only the first socket is used; docsync
// serves a single endpoint.
func activated(getenv func(string) string, pid int, open func(fd int) (net.Listener, error)) (net.Listener, error) {
	pidStr := getenv("LISTEN_PID")
	if pidStr == "" {
		return nil, nil
	}

	listenPID, err := strconv.Atoi(pidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid LISTEN_PID %q: %w", pidStr, err)
	}
	if listenPID != pid {
		return nil, nil
	}

	fdsStr := getenv("LISTEN_FDS")
	if fdsStr == "" {
		return nil, nil
	}
	numFDs, err := strconv.Atoi(fdsStr)
	if err != nil {
		return nil, fmt.Errorf("invalid LISTEN_FDS %q: %w", fdsStr, err)
	}
	if numFDs < 1 {
		return nil, nil
	}
	if numFDs > 1 {
		return nil, fmt.Errorf("expected a single activated socket, got %d", numFDs)
	}

	return open(firstFD)
}

func fileListener(fd int) (net.Listener, error) {
	file := os.NewFile(uintptr(fd), "systemd-socket")
	if file == nil {
		return nil, fmt.Errorf("failed to create file for fd %d", fd)
	}
	// net.FileListener dups the descriptor
	defer func() {
		_ = file.Close()
	}()

	ln, err := net.FileListener(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener from fd %d: %w", fd, err)
	}
	return ln, nil
}
