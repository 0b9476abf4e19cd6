package server_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pinktranscriber/internal/client"
	"pinktranscriber/internal/logging"
	"pinktranscriber/internal/protocol"
	"pinktranscriber/internal/server"
	"pinktranscriber/internal/testsupport"
	"pinktranscriber/internal/transcribe"
	"pinktranscriber/internal/transport"
	"pinktranscriber/internal/worker"
)

type fakeAdapter struct {
	mu       sync.Mutex
	initGate chan struct{}
	runGate  chan struct{}
	results  map[string]string
	errs     map[string]error
	runs     []string
}

func (f *fakeAdapter) Initialize(context.Context) error {
	if f.initGate != nil {
		<-f.initGate
	}
	return nil
}

func (f *fakeAdapter) Run(_ context.Context, path string) (string, error) {
	if f.runGate != nil {
		<-f.runGate
	}
	f.mu.Lock()
	f.runs = append(f.runs, path)
	f.mu.Unlock()
	if err, ok := f.errs[path]; ok {
		return "", err
	}
	if text, ok := f.results[path]; ok {
		return text, nil
	}
	return "transcript of " + filepath.Base(path), nil
}

func (f *fakeAdapter) Status() transcribe.Availability {
	return transcribe.AvailabilityReady
}

func (f *fakeAdapter) runOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.runs...)
}

type queueObserver struct {
	queued chan string
}

func (o *queueObserver) RequestQueued(_, path string, _ time.Time) { o.queued <- path }
func (o *queueObserver) RequestStarted(string, time.Time)          {}
func (o *queueObserver) RequestFinished(string, error, time.Time)  {}

type harness struct {
	endpoint transport.Endpoint
	worker   *worker.Worker
	server   *server.Server
	client   *client.Client
}

func startServer(t *testing.T, adapter *fakeAdapter, opts ...worker.Option) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	endpoint, err := transport.Select(cfg.Transport)
	if err != nil {
		t.Fatalf("transport.Select: %v", err)
	}
	listener, err := endpoint.Listen()
	if err != nil {
		t.Fatalf("endpoint.Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := worker.New(adapter, logging.NewNop(), opts...)
	w.Start(ctx)

	srv := server.New(ctx, listener, w, logging.NewNop(), cfg.HandshakeTimeout())
	srv.Serve()

	t.Cleanup(func() {
		srv.Close()
		cancel()
		endpoint.Cleanup()
	})

	return &harness{
		endpoint: endpoint,
		worker:   w,
		server:   srv,
		client:   client.New(endpoint),
	}
}

func awaitWorkerState(t *testing.T, w *worker.Worker, want worker.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if w.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("worker never reached state %s (now %s)", want, w.State())
}

// rawExchange bypasses the client so tests can send lines the client
// would never produce.
func rawExchange(t *testing.T, endpoint transport.Endpoint, request string) string {
	t.Helper()
	conn, err := endpoint.Dial(2 * time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(request)); err != nil {
		t.Fatalf("write request: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := protocol.ReadLine(bufio.NewReaderSize(conn, 4096))
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return line
}

func TestServerTranscribeRoundTrip(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "sample.wav")
	testsupport.WriteAudioFile(t, audio, 256)

	adapter := &fakeAdapter{results: map[string]string{audio: "hello world"}}
	h := startServer(t, adapter)
	awaitWorkerState(t, h.worker, worker.StateReady)

	text, err := h.client.Transcribe(audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("transcript = %q, want %q", text, "hello world")
	}
}

func TestServerHealthWhileModelLoads(t *testing.T) {
	adapter := &fakeAdapter{initGate: make(chan struct{})}
	h := startServer(t, adapter)

	health, err := h.client.Health()
	if err != nil {
		t.Fatalf("Health during load: %v", err)
	}
	if health != protocol.HealthLoading {
		t.Fatalf("health = %s, want %s", health, protocol.HealthLoading)
	}

	close(adapter.initGate)
	awaitWorkerState(t, h.worker, worker.StateReady)

	health, err = h.client.Health()
	if err != nil {
		t.Fatalf("Health after load: %v", err)
	}
	if health != protocol.HealthReady {
		t.Fatalf("health = %s, want %s", health, protocol.HealthReady)
	}
}

func TestServerHealthAnswersWhileEngineBusy(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "long.wav")
	testsupport.WriteAudioFile(t, audio, 256)

	adapter := &fakeAdapter{runGate: make(chan struct{})}
	h := startServer(t, adapter)
	awaitWorkerState(t, h.worker, worker.StateReady)

	done := make(chan error, 1)
	go func() {
		_, err := h.client.Transcribe(audio)
		done <- err
	}()
	awaitWorkerState(t, h.worker, worker.StateBusy)

	health, err := h.client.Health()
	if err != nil {
		t.Fatalf("Health while busy: %v", err)
	}
	if health != protocol.HealthBusy {
		t.Fatalf("health = %s, want %s", health, protocol.HealthBusy)
	}

	close(adapter.runGate)
	if err := <-done; err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestServerRejectsRequestsBeforeQueueing(t *testing.T) {
	base := t.TempDir()
	existing := filepath.Join(base, "good.wav")
	testsupport.WriteAudioFile(t, existing, 256)
	unsupported := filepath.Join(base, "notes.txt")
	testsupport.WriteAudioFile(t, unsupported, 32)

	adapter := &fakeAdapter{}
	h := startServer(t, adapter)
	awaitWorkerState(t, h.worker, worker.StateReady)

	cases := []struct {
		name    string
		request string
		want    string
	}{
		{"relative path", "sample.wav\n", protocol.MsgInvalidPath},
		{"empty line", "\n", protocol.MsgInvalidPath},
		{"missing file", filepath.Join(base, "gone.wav") + "\n", protocol.MsgFileNotFound},
		{"directory", base + "\n", protocol.MsgNotAFile},
		{"unsupported format", unsupported + "\n", protocol.MsgUnsupportedFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := rawExchange(t, h.endpoint, tc.request)
			msg, ok := protocol.ParseFailure(line)
			if !ok {
				t.Fatalf("expected failure line, got %q", line)
			}
			if msg != tc.want {
				t.Fatalf("failure = %q, want %q", msg, tc.want)
			}
		})
	}
	if runs := adapter.runOrder(); len(runs) != 0 {
		t.Fatalf("rejected requests reached the engine: %v", runs)
	}
}

func TestServerOversizedRequestRejected(t *testing.T) {
	adapter := &fakeAdapter{}
	h := startServer(t, adapter)
	awaitWorkerState(t, h.worker, worker.StateReady)

	request := "/" + strings.Repeat("a", protocol.MaxLineBytes) + "\n"
	line := rawExchange(t, h.endpoint, request)
	msg, ok := protocol.ParseFailure(line)
	if !ok || msg != protocol.MsgInvalidPath {
		t.Fatalf("got %q, want failure %q", line, protocol.MsgInvalidPath)
	}
}

func TestServerProcessesConnectionsInArrivalOrder(t *testing.T) {
	base := t.TempDir()
	paths := make([]string, 4)
	for i := range paths {
		paths[i] = filepath.Join(base, string(rune('a'+i))+".wav")
		testsupport.WriteAudioFile(t, paths[i], 64)
	}

	adapter := &fakeAdapter{runGate: make(chan struct{})}
	observer := &queueObserver{queued: make(chan string, len(paths))}
	h := startServer(t, adapter, worker.WithObserver(observer))
	awaitWorkerState(t, h.worker, worker.StateReady)

	// Submit one at a time, waiting for each enqueue before sending the
	// next, so arrival order is deterministic; the gated engine keeps
	// every request pending until all four are in.
	var wg sync.WaitGroup
	replies := make([]string, len(paths))
	errs := make([]error, len(paths))
	for i, path := range paths {
		conn, err := h.endpoint.Dial(2 * time.Second)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()
		if err := protocol.WriteLine(conn, path); err != nil {
			t.Fatalf("write request: %v", err)
		}
		select {
		case queued := <-observer.queued:
			if queued != path {
				t.Fatalf("queued %s, want %s", queued, path)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("request %s never reached the queue", path)
		}

		wg.Add(1)
		go func(i int, conn net.Conn) {
			defer wg.Done()
			replies[i], errs[i] = protocol.ReadLine(bufio.NewReaderSize(conn, 4096))
		}(i, conn)
	}

	close(adapter.runGate)
	wg.Wait()

	for i, path := range paths {
		if errs[i] != nil {
			t.Fatalf("request %d read: %v", i, errs[i])
		}
		want := "transcript of " + filepath.Base(path)
		if replies[i] != want {
			t.Fatalf("request %d reply = %q, want %q", i, replies[i], want)
		}
	}
	order := adapter.runOrder()
	if len(order) != len(paths) {
		t.Fatalf("engine ran %d times, want %d", len(order), len(paths))
	}
	for i, path := range paths {
		if order[i] != path {
			t.Fatalf("run order[%d] = %s, want %s", i, order[i], path)
		}
	}
}

func TestServerIsolatesRequestFailures(t *testing.T) {
	base := t.TempDir()
	bad := filepath.Join(base, "bad.wav")
	good := filepath.Join(base, "good.wav")
	testsupport.WriteAudioFile(t, bad, 64)
	testsupport.WriteAudioFile(t, good, 64)

	adapter := &fakeAdapter{
		errs:    map[string]error{bad: errors.New("decode failed")},
		results: map[string]string{good: "still fine"},
	}
	h := startServer(t, adapter)
	awaitWorkerState(t, h.worker, worker.StateReady)

	_, err := h.client.Transcribe(bad)
	var remote *protocol.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Message != "decode failed" {
		t.Fatalf("remote message = %q", remote.Message)
	}

	text, err := h.client.Transcribe(good)
	if err != nil {
		t.Fatalf("Transcribe after failure: %v", err)
	}
	if text != "still fine" {
		t.Fatalf("transcript = %q, want %q", text, "still fine")
	}
}

func TestServerReportsShutdownAfterDrainBegins(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "late.wav")
	testsupport.WriteAudioFile(t, audio, 64)

	adapter := &fakeAdapter{}
	h := startServer(t, adapter)
	awaitWorkerState(t, h.worker, worker.StateReady)

	h.worker.BeginDrain()
	awaitWorkerState(t, h.worker, worker.StateStopped)

	_, err := h.client.Transcribe(audio)
	var remote *protocol.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Message != protocol.MsgShuttingDown {
		t.Fatalf("remote message = %q, want %q", remote.Message, protocol.MsgShuttingDown)
	}
}
