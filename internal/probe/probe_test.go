package probe

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestTCPProbeSucceedsAgainstListener(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	p := NewTCP(l.Addr().String())
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("probe: %v", err)
	}
}

func TestWaitReadyRetriesUntilListenerAppears(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		late, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		defer late.Close()
		conn, err := late.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	p := NewTCP(addr)
	if err := WaitReady(context.Background(), p, 5*time.Second, 20*time.Millisecond); err != nil {
		t.Fatalf("wait ready: %v", err)
	}
}

func TestWaitReadyTimesOut(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	p := NewTCP(addr)
	if err := WaitReady(context.Background(), p, 100*time.Millisecond, 20*time.Millisecond); err == nil {
		t.Fatal("expected timeout against a closed port")
	}
}
