// Package probe verifies that a spawned service has come up on its endpoint.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Prober checks a single readiness condition.
type Prober interface {
	Probe(ctx context.Context) error
}

type tcpProber struct {
	address string
	dialer  func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewTCP returns a prober that succeeds once the address accepts a TCP
// connection.
func NewTCP(address string) Prober {
	return &tcpProber{
		address: address,
		dialer:  (&net.Dialer{}).DialContext,
	}
}

func (p *tcpProber) Probe(ctx context.Context) error {
	conn, err := p.dialer(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.address, err)
	}
	return conn.Close()
}

// WaitReady runs the prober at interval until it succeeds, the deadline
// elapses or ctx is cancelled. The last probe error is attached to a timeout.
func WaitReady(ctx context.Context, p Prober, deadline, interval time.Duration) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		err := p.Probe(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("service not ready: %w", lastErr)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
