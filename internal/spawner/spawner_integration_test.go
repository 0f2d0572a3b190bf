//go:build !windows

package spawner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chris-x86-64/rootlessspawner/internal/api"
	"github.com/chris-x86-64/rootlessspawner/internal/state"
)

func TestStopRealProcess(t *testing.T) {
	store := state.NewMemoryStore()
	s := New(Options{
		Name:             "integration",
		InterruptTimeout: 2 * time.Second,
		Store:            store,
	})

	_, err := s.Start(context.Background(), api.StartRequest{Command: []string{"sleep", "60"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// sleep exits on SIGINT, so the interrupt tier should settle this
	// well before its timeout.
	begin := time.Now()
	if err := s.Stop(context.Background(), false); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Fatalf("graceful stop took %v, expected prompt exit on SIGINT", elapsed)
	}

	st, err := s.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if st == nil {
		t.Fatal("process should be gone after stop")
	}
	if persisted, _ := store.Load(); persisted.Running() {
		t.Fatalf("state still holds pid %d after stop", persisted.PID)
	}
}

func TestPortHandedToChild(t *testing.T) {
	out := filepath.Join(t.TempDir(), "port")
	s := New(Options{Name: "integration"})

	ep, err := s.Start(context.Background(), api.StartRequest{
		Command: []string{"/bin/sh", "-c", "echo $PORT > " + out},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		st, err := s.Poll(context.Background())
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if st != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("child never exited")
		}
		time.Sleep(10 * time.Millisecond)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read child output: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != fmt.Sprint(ep.Port) {
		t.Fatalf("child saw PORT=%q, endpoint says %d", got, ep.Port)
	}
}
