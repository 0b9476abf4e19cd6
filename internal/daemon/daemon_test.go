package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pinktranscriber/internal/client"
	"pinktranscriber/internal/config"
	"pinktranscriber/internal/daemon"
	"pinktranscriber/internal/logging"
	"pinktranscriber/internal/protocol"
	"pinktranscriber/internal/testsupport"
	"pinktranscriber/internal/transcribe"
	"pinktranscriber/internal/transport"
)

type blockingAdapter struct {
	// runEntered receives the path as soon as Run is invoked.
	runEntered chan string
	// runGate, when non-nil, blocks Run until closed.
	runGate chan struct{}
}

func (a *blockingAdapter) Initialize(context.Context) error { return nil }

func (a *blockingAdapter) Run(_ context.Context, path string) (string, error) {
	if a.runEntered != nil {
		a.runEntered <- path
	}
	if a.runGate != nil {
		<-a.runGate
	}
	return "done: " + filepath.Base(path), nil
}

func (a *blockingAdapter) Status() transcribe.Availability {
	return transcribe.AvailabilityReady
}

func startDaemon(t *testing.T, cfg *config.Config, adapter transcribe.Adapter) *daemon.Daemon {
	t.Helper()

	d, err := daemon.New(cfg, adapter, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d
}

func newClient(t *testing.T, cfg *config.Config) *client.Client {
	t.Helper()
	endpoint, err := transport.Select(cfg.Transport)
	if err != nil {
		t.Fatalf("transport.Select: %v", err)
	}
	return client.New(endpoint)
}

func awaitHealthy(t *testing.T, c *client.Client) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if health, err := c.Health(); err == nil && health == protocol.HealthReady {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("daemon never became healthy")
}

func TestDaemonServesAndReleasesEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := startDaemon(t, cfg, &blockingAdapter{})
	c := newClient(t, cfg)
	awaitHealthy(t, c)

	audio := filepath.Join(t.TempDir(), "clip.wav")
	testsupport.WriteAudioFile(t, audio, 128)
	text, err := c.Transcribe(audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "done: clip.wav" {
		t.Fatalf("transcript = %q", text)
	}

	d.Shutdown(context.Background())
	if d.Running() {
		t.Fatal("daemon still reports running after shutdown")
	}
	if _, err := c.Health(); err == nil {
		t.Fatal("health probe succeeded after endpoint release")
	}
	if _, err := os.Lstat(cfg.Transport.SocketPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("socket artifact %s survived shutdown", cfg.Transport.SocketPath)
	}
}

func TestDaemonShutdownWaitsForInFlightRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithShutdownGrace(5))
	adapter := &blockingAdapter{
		runEntered: make(chan string, 1),
		runGate:    make(chan struct{}),
	}
	d := startDaemon(t, cfg, adapter)
	c := newClient(t, cfg)
	awaitHealthy(t, c)

	audio := filepath.Join(t.TempDir(), "long.wav")
	testsupport.WriteAudioFile(t, audio, 128)

	result := make(chan string, 1)
	go func() {
		text, err := c.Transcribe(audio)
		if err != nil {
			result <- "error: " + err.Error()
			return
		}
		result <- text
	}()
	<-adapter.runEntered

	shutdownDone := make(chan struct{})
	go func() {
		d.Shutdown(context.Background())
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		t.Fatal("shutdown finished while a request was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(adapter.runGate)
	select {
	case text := <-result:
		if text != "done: long.wav" {
			t.Fatalf("in-flight request got %q", text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request never completed")
	}
	select {
	case <-shutdownDone:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown never completed after drain")
	}
}

func TestDaemonServesInFlightWorkAfterStartContextCanceled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithShutdownGrace(5))
	adapter := &blockingAdapter{
		runEntered: make(chan string, 1),
		runGate:    make(chan struct{}),
	}
	d, err := daemon.New(cfg, adapter, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	startCtx, cancelStart := context.WithCancel(context.Background())
	if err := d.Start(startCtx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancelStart()
		d.Close()
	})
	c := newClient(t, cfg)
	awaitHealthy(t, c)

	audio := filepath.Join(t.TempDir(), "long.wav")
	testsupport.WriteAudioFile(t, audio, 128)

	result := make(chan string, 1)
	go func() {
		text, err := c.Transcribe(audio)
		if err != nil {
			result <- "error: " + err.Error()
			return
		}
		result <- text
	}()
	<-adapter.runEntered

	// The termination signal cancels the context Start was given; the
	// connection handler must keep waiting for the transcript anyway.
	cancelStart()
	time.Sleep(50 * time.Millisecond)
	close(adapter.runGate)

	select {
	case text := <-result:
		if text != "done: long.wav" {
			t.Fatalf("in-flight request got %q", text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request never completed")
	}
	d.Shutdown(context.Background())
}

func TestDaemonShutdownIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := startDaemon(t, cfg, &blockingAdapter{})
	c := newClient(t, cfg)
	awaitHealthy(t, c)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Shutdown(context.Background())
		}()
	}
	wg.Wait()
	d.Shutdown(context.Background())

	if d.Running() {
		t.Fatal("daemon reports running after repeated shutdowns")
	}
	select {
	case <-d.Done():
	default:
		t.Fatal("Done channel not closed after shutdown")
	}
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	startDaemon(t, cfg, &blockingAdapter{})

	second, err := daemon.New(cfg, &blockingAdapter{}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Shutdown(context.Background())
		t.Fatal("second instance started despite held lock")
	}
}
