package netfs

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Transport prepares unconnected stream sessions.
type Transport interface {
	Prepare(ctx context.Context) (Session, error)
}

// Session is one reliable byte stream.
// Send and Receive may run concurrently with each other;
// Close must be safe to call more than once.
type Session interface {
	Connect(ctx context.Context, addr netip.AddrPort) error
	Send(ctx context.Context, p []byte) (int, error)
	Receive(ctx context.Context, p []byte) (int, error)
	Close() error
}

// TCPTransport dials IPv4 TCP connections.
// A non-nil Limiter bounds the rate of connection attempts.
type TCPTransport struct {
	Dialer  net.Dialer
	Limiter *rate.Limiter
}

var _ Transport = &TCPTransport{}

// NewTCPTransport returns a transport with the given dial timeout and
// keepalive period. A zero limit disables rate limiting.
func NewTCPTransport(timeout, keepalive time.Duration, limit rate.Limit, burst int) *TCPTransport {
	t := &TCPTransport{
		Dialer: net.Dialer{Timeout: timeout, KeepAlive: keepalive},
	}
	if limit > 0 {
		if burst < 1 {
			burst = 1
		}
		t.Limiter = rate.NewLimiter(limit, burst)
	}
	return t
}

func (t *TCPTransport) Prepare(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tcpSession{t: t}, nil
}

type tcpSession struct {
	t      *TCPTransport
	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

func (s *tcpSession) Connect(ctx context.Context, addr netip.AddrPort) error {
	if s.t.Limiter != nil {
		if err := s.t.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	conn, err := s.t.Dialer.DialContext(ctx, "tcp4", addr.String())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn != nil {
		conn.Close()
		return net.ErrClosed
	}
	s.conn = conn
	return nil
}

func (s *tcpSession) getConn() (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn == nil {
		return nil, net.ErrClosed
	}
	return s.conn, nil
}

// A deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// withDeadline applies ctx to one direction of conn for the
// duration of an I/O call. Cancellation interrupts the call
// and is reported as ctx.Err().
//
// It does not return while the interrupt is still pending, so a
// late cancel cannot poison the deadline of the next call.
func withDeadline(ctx context.Context, set func(time.Time) error, io func() (int, error)) (int, error) {
	dl, _ := ctx.Deadline()
	set(dl) // zero clears
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		set(aLongTimeAgo)
		close(fired)
	})
	n, err := io()
	if !stop() {
		<-fired
		if err != nil {
			err = ctx.Err()
		}
	}
	return n, err
}

func (s *tcpSession) Send(ctx context.Context, p []byte) (int, error) {
	conn, err := s.getConn()
	if err != nil {
		return 0, err
	}
	return withDeadline(ctx, conn.SetWriteDeadline, func() (int, error) {
		return conn.Write(p)
	})
}

func (s *tcpSession) Receive(ctx context.Context, p []byte) (int, error) {
	conn, err := s.getConn()
	if err != nil {
		return 0, err
	}
	return withDeadline(ctx, conn.SetReadDeadline, func() (int, error) {
		return conn.Read(p)
	})
}

func (s *tcpSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
