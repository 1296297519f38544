package probe

import (
	"context"
	"net"
	"strconv"
	"time"
)

const (
	// DefaultPort is the edge port probed when none is configured
	DefaultPort = 443
	// DefaultTimeout bounds a single handshake attempt
	DefaultTimeout = 2 * time.Second
)

// Prober performs one timed TCP handshake attempt per call
type Prober struct {
	Port    int
	Timeout time.Duration
}

// NewProber returns a Prober for the given port and per-attempt timeout,
// substituting defaults for zero values.
func NewProber(port int, timeout time.Duration) *Prober {
	if port <= 0 {
		port = DefaultPort
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{Port: port, Timeout: timeout}
}

// Do attempts a TCP handshake to address:port and measures wall-clock time
// to completion. Timeout, refusal and unreachable hosts return ok=false
// with a nil error. A non-nil error is returned only when ctx is done, so
// callers can unwind without misreading cancellation as an unreachable
// target.
//
// Successful connections are torn down with linger disabled: the close
// sends an RST instead of parking the socket in TIME_WAIT. Probing runs
// against hundreds of thousands of endpoints, and graceful closes at that
// volume exhaust the local ephemeral port range.
func (p *Prober) Do(ctx context.Context, address string) (time.Duration, bool, error) {
	dialer := &net.Dialer{Timeout: p.Timeout}
	addr := net.JoinHostPort(address, strconv.Itoa(p.Port))

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, false, ctxErr
		}
		return 0, false, nil
	}
	elapsed := time.Since(start)

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetLinger(0)
	}
	_ = conn.Close()

	return elapsed, true, nil
}
