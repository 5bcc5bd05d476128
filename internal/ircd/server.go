package ircd

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Server is the core of driftwood: one listening socket, the readiness
// loop, and the global state of clients and channels (spec.md §3
// "Server"). It is constructed with (port, password) per spec.md §1 and
// exposes Setup/Run/Stop, exactly the surface the out-of-scope
// CLI/signal/entry-point wrapper needs.
type Server struct {
	name    string
	version string
	created string

	host     string
	port     uint16
	password string

	registrationTimeout time.Duration

	listenFD int
	poller   *poller
	wakeFD   int // eventfd used by Stop() to break a blocked EpollWait

	clients  map[int]*Client
	nicks    map[string]*Client // nickname -> client, enforces uniqueness
	channels map[string]*Channel

	log *logrus.Logger

	// running is the stop flag spec.md §9 describes: a signal handler (or
	// any other goroutine) may only set it; only the Run loop reads it and
	// acts, between iterations.
	running atomic.Bool
}

// New constructs a Server. port and password are the two required
// constructor arguments spec.md §1 mandates; everything else is an
// optional override applied by the caller after construction (server
// name/version, registration timeout, etc.) before Setup.
func New(port uint16, password string) *Server {
	return &Server{
		name:                 "driftwood",
		version:              "driftwood-0.1",
		created:              time.Now().Format(time.RFC1123),
		host:                 "0.0.0.0",
		port:                 port,
		password:             password,
		registrationTimeout:  60 * time.Second,
		clients:              make(map[int]*Client),
		nicks:                make(map[string]*Client),
		channels:              make(map[string]*Channel),
		log:                  logrus.StandardLogger(),
	}
}

// Setup opens the listening socket and the epoll set. On any failure it
// returns an error and the caller (per spec.md §7 "Listener / setup
// errors") should exit with code 1.
func (s *Server) Setup() error {
	listenFD, err := listen(s.host, s.port, 10)
	if err != nil {
		return errors.Wrap(err, "unable to set up listener")
	}
	s.listenFD = listenFD

	p, err := newPoller()
	if err != nil {
		_ = unix.Close(s.listenFD)
		return errors.Wrap(err, "unable to set up epoll")
	}
	s.poller = p

	if err := s.poller.add(s.listenFD, false); err != nil {
		return errors.Wrap(err, "unable to watch listener")
	}

	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return errors.Wrap(err, "unable to create wakeup eventfd")
	}
	s.wakeFD = wakeFD
	if err := s.poller.add(s.wakeFD, false); err != nil {
		return errors.Wrap(err, "unable to watch wakeup eventfd")
	}

	s.log.WithFields(logrus.Fields{
		"host": s.host,
		"port": s.port,
	}).Info("listening")

	return nil
}

// Stop closes the listener and wakes the readiness loop so it can observe
// the shutdown and exit (spec.md §4.1 "Stop", §9 "signal handler ... sets a
// stop flag; the loop observes it").
func (s *Server) Stop() {
	s.running.Store(false)
	if s.listenFD != 0 {
		_ = unix.Close(s.listenFD)
	}
	if s.wakeFD != 0 {
		var one [8]byte
		one[7] = 1
		_, _ = unix.Write(s.wakeFD, one[:])
	}
}

// Run is the readiness loop (spec.md §4.1). It blocks until Stop is called
// or the epoll syscall returns a non-EINTR error.
func (s *Server) Run() error {
	s.running.Store(true)

	for s.running.Load() {
		timeout := s.nextWakeupMS()

		events, err := s.poller.wait(timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return errors.Wrap(err, "epoll wait failed")
		}

		// Accepts come before client I/O, and clients are serviced in
		// ascending fd order (spec.md §4.1 "Ordering guarantee").
		sort.Slice(events, func(i, j int) bool {
			li, lj := int(events[i].Fd) == s.listenFD, int(events[j].Fd) == s.listenFD
			if li != lj {
				return li
			}
			return events[i].Fd < events[j].Fd
		})

		for _, ev := range events {
			fd := int(ev.Fd)

			switch {
			case fd == s.listenFD:
				s.acceptNewConnections()

			case fd == s.wakeFD:
				s.drainWakeup()

			default:
				s.serviceClient(fd, ev.Events)
			}
		}

		s.checkRegistrationTimeouts()
		s.reapDisconnected()
	}

	return nil
}

func (s *Server) drainWakeup() {
	var buf [8]byte
	_, _ = unix.Read(s.wakeFD, buf[:])
}

// acceptNewConnections implements spec.md §4.1 "Accept policy": accept
// until EAGAIN, each new fd is added to clients and the readiness table.
func (s *Server) acceptNewConnections() {
	fds, err := acceptAll(s.listenFD)
	if err != nil {
		s.log.WithError(err).Warn("accept failed")
	}

	for _, fd := range fds {
		c := newClient(fd)
		c.lastActivity = time.Now().Unix()
		s.clients[fd] = c
		if err := s.poller.add(fd, false); err != nil {
			s.log.WithError(err).Warn("unable to watch new client fd")
			_ = unix.Close(fd)
			delete(s.clients, fd)
			continue
		}
		metricClientsConnected.Inc()
		s.log.WithFields(logrus.Fields{
			"fd":   fd,
			"peer": peerIP(fd),
		}).Debug("new connection")
	}
}

// serviceClient implements spec.md §4.1 step 5: errors/hangups disconnect,
// reads happen before writes for the same fd in the same iteration.
func (s *Server) serviceClient(fd int, events uint32) {
	c, ok := s.clients[fd]
	if !ok {
		return
	}

	if events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 && events&unix.EPOLLIN == 0 {
		c.markDisconnected("socket error")
		return
	}

	if events&unix.EPOLLIN != 0 {
		frames := c.handleReadable()
		for _, line := range frames {
			if c.disconnected {
				break
			}
			s.dispatch(c, line)
		}
	}

	if c.disconnected {
		// A handler may have enqueued a final reply (a numeric, an ERROR
		// line) in the same breath as marking the client for disconnect;
		// give it one best-effort chance to reach the wire before
		// reapDisconnected closes the fd out from under it.
		if c.wantsWrite() {
			drainNow(c)
		}
		return
	}

	if events&unix.EPOLLOUT != 0 {
		c.handleWritable()
	}

	s.rearm(c)
}

// rearm updates the poller's requested event mask for c based on whether it
// still has pending output (spec.md §4.1 step 1).
func (s *Server) rearm(c *Client) {
	if err := s.poller.modify(c.fd, c.wantsWrite()); err != nil {
		c.markDisconnected("poller error")
	}
}

// reapDisconnected removes every client whose disconnected flag is set,
// after the current iteration's reads/writes/broadcasts have all been
// processed (spec.md §4.1 step 6, §5 "Cancellation").
func (s *Server) reapDisconnected() {
	for fd, c := range s.clients {
		if !c.disconnected {
			continue
		}
		s.destroyClient(c)
		delete(s.clients, fd)
	}
}

// destroyClient implements spec.md §3 "Lifecycle" destruction: leave every
// joined channel (propagating QUIT), close the fd, drop it from the
// readiness table. The output queue is discarded, not drained (spec.md §5
// "Cancellation").
func (s *Server) destroyClient(c *Client) {
	if c.nickname != "" {
		s.partAllChannels(c)
		delete(s.nicks, c.nickname)
	}

	s.poller.remove(c.fd)
	_ = unix.Close(c.fd)
	metricClientsConnected.Dec()

	s.log.WithFields(logrus.Fields{
		"fd":   c.fd,
		"nick": c.nickname,
	}).Debug("client disconnected")
}

// nextWakeupMS computes the epoll timeout: -1 (infinite) unless there is at
// least one unregistered client, in which case we wake up periodically to
// enforce the registration timeout (SPEC_FULL.md §10).
func (s *Server) nextWakeupMS() int {
	for _, c := range s.clients {
		if c.state != regRegistered {
			wakeup := s.registrationTimeout
			if wakeup > 5*time.Second {
				wakeup = 5 * time.Second
			}
			return int(wakeup / time.Millisecond)
		}
	}
	return -1
}

func (s *Server) checkRegistrationTimeouts() {
	if s.registrationTimeout <= 0 {
		return
	}

	deadline := time.Now().Add(-s.registrationTimeout).Unix()
	for _, c := range s.clients {
		if c.state == regRegistered || c.disconnected {
			continue
		}
		if c.lastActivity != 0 && c.lastActivity < deadline {
			c.enqueue("ERROR :Registration timed out")
			c.markDisconnected("Registration timed out")
		}
	}
}
