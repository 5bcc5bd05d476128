package ircd

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// listen opens a non-blocking IPv4 TCP listening socket bound to
// host:port with the backlog spec.md §5 specifies (10).
//
// We work directly against the socket syscalls rather than net.Listen so
// that the accepted connections are genuinely non-blocking fds under our
// control, matching spec.md §4.1/§4.2's accept/recv/send model.
func listen(host string, port uint16, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Wrap(err, "unable to open socket")
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "unable to set SO_REUSEADDR")
	}

	addr, err := resolveIPv4(host)
	if err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: int(port), Addr: addr}); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "unable to bind")
	}

	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "unable to listen")
	}

	return fd, nil
}

// acceptAll accepts every pending connection on the listener, stopping at
// the first EAGAIN/EWOULDBLOCK (spec.md §4.1 "Accept policy").
func acceptAll(listenFD int) ([]int, error) {
	var fds []int

	for {
		nfd, _, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return fds, nil
			}
			if err == unix.EINTR {
				continue
			}
			return fds, err
		}
		fds = append(fds, nfd)
	}
}

// peerIP returns the dotted-quad remote address of fd, or "" if it cannot
// be determined. It is never used to populate Client.hostname (spec.md §4.1
// "Accept policy" mandates the literal "host"); it exists for logging only.
func peerIP(fd int) string {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return ""
	}
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d.%d", sa4.Addr[0], sa4.Addr[1], sa4.Addr[2], sa4.Addr[3])
}

func resolveIPv4(host string) ([4]byte, error) {
	if host == "" || host == "0.0.0.0" || host == "*" {
		return [4]byte{0, 0, 0, 0}, nil
	}

	var addr [4]byte
	n, err := fmt.Sscanf(host, "%d.%d.%d.%d", &addr[0], &addr[1], &addr[2], &addr[3])
	if err != nil || n != 4 {
		return addr, errors.Errorf("listen-host must be an IPv4 dotted quad or 0.0.0.0, got %q", host)
	}
	return addr, nil
}
