package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeCloser struct {
	mu    sync.Mutex
	calls int
	names []string
	err   error
}

func (f *fakeCloser) CloseAllGames(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.names, f.err
}

func (f *fakeCloser) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestAutoCloserFiresAfterDelay(t *testing.T) {
	closer := &fakeCloser{names: []string{"RocketLeague.exe", "steam.exe"}}
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	closed := make(chan []string, 1)
	ac := NewAutoCloser(closer, 10*time.Millisecond, logger)
	ac.OnClosed = func(names []string) { closed <- names }
	defer ac.Stop()

	ac.Arm()

	select {
	case names := <-closed:
		if len(names) != 2 {
			t.Errorf("closed %d processes, want 2", len(names))
		}
	case <-time.After(time.Second):
		t.Fatal("auto-close did not fire")
	}

	if got := closer.callCount(); got != 1 {
		t.Errorf("CloseAllGames called %d times, want 1", got)
	}
}

func TestAutoCloserFiresOncePerArm(t *testing.T) {
	closer := &fakeCloser{}
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	closed := make(chan []string, 2)
	ac := NewAutoCloser(closer, 5*time.Millisecond, logger)
	ac.OnClosed = func(names []string) { closed <- names }
	defer ac.Stop()

	// Two distinct exceeded entries schedule two independent closes.
	ac.Arm()
	ac.Arm()

	for i := 0; i < 2; i++ {
		select {
		case <-closed:
		case <-time.After(time.Second):
			t.Fatalf("close %d did not fire", i)
		}
	}

	if got := closer.callCount(); got != 2 {
		t.Errorf("CloseAllGames called %d times, want 2", got)
	}
}

func TestAutoCloserStopCancelsPending(t *testing.T) {
	closer := &fakeCloser{}
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	ac := NewAutoCloser(closer, time.Hour, logger)
	ac.Arm()
	ac.Stop()

	// Arm after Stop is a no-op.
	ac.Arm()

	time.Sleep(20 * time.Millisecond)
	if got := closer.callCount(); got != 0 {
		t.Errorf("CloseAllGames called %d times after Stop, want 0", got)
	}
}
