package transcribe_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pinktranscriber/internal/logging"
	"pinktranscriber/internal/transcribe"
)

// scriptedRunner records invocations and writes the engine JSON output the
// real tool would produce.
func scriptedRunner(t *testing.T, transcript string, calls *[][]string) func(context.Context, string, ...string) error {
	t.Helper()
	return func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, append([]string{name}, args...))

		var source, outputDir string
		for i, arg := range args {
			switch arg {
			case "--output_dir":
				if i+1 < len(args) {
					outputDir = args[i+1]
				}
			case transcribe.EngineTool:
				if i+1 < len(args) {
					source = args[i+1]
				}
			}
		}
		if source == "" || outputDir == "" {
			t.Fatalf("runner saw no source/output_dir in args %v", args)
		}
		base := filepath.Base(source)
		base = base[:len(base)-len(filepath.Ext(base))]
		payload := `{"segments": [{"text": " ` + transcript + ` ", "start": 0.0, "end": 1.0}]}`
		if err := os.WriteFile(filepath.Join(outputDir, base+".json"), []byte(payload), 0o644); err != nil {
			t.Fatalf("write engine json: %v", err)
		}
		return nil
	}
}

func TestWhisperRunReturnsFlattenedTranscript(t *testing.T) {
	engine := transcribe.NewWhisper(transcribe.Config{Model: "large-v3", Device: "cpu", BeamSize: 5}, logging.NewNop())
	var calls [][]string
	engine.WithCommandRunner(scriptedRunner(t, "hello world", &calls))

	text, err := engine.Run(context.Background(), "/audio/sample.wav")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("transcript = %q, want %q", text, "hello world")
	}
	if len(calls) != 1 {
		t.Fatalf("expected one engine invocation, got %d", len(calls))
	}
	if calls[0][0] != transcribe.UVXCommand {
		t.Fatalf("engine launched via %q, want %q", calls[0][0], transcribe.UVXCommand)
	}
}

func TestWhisperInitializeTransitionsToReady(t *testing.T) {
	engine := transcribe.NewWhisper(transcribe.Config{Device: "cpu"}, logging.NewNop())
	var calls [][]string
	engine.WithCommandRunner(scriptedRunner(t, "", &calls))

	if got := engine.Status(); got != transcribe.AvailabilityLoading {
		t.Fatalf("status before init = %v, want loading", got)
	}
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := engine.Status(); got != transcribe.AvailabilityReady {
		t.Fatalf("status after init = %v, want ready", got)
	}
	if len(calls) != 1 {
		t.Fatalf("warmup should invoke the engine once, got %d", len(calls))
	}
}

func TestWhisperDeviceFlags(t *testing.T) {
	cases := []struct {
		name   string
		device string
		want   []string
	}{
		{name: "cuda derives float16", device: "cuda", want: []string{"--device", "cuda", "--compute_type", "float16"}},
		{name: "cpu derives int8", device: "cpu", want: []string{"--device", "cpu", "--compute_type", "int8"}},
		{name: "auto defers to engine", device: "auto", want: []string{"--device", "auto"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := transcribe.NewWhisper(transcribe.Config{Device: tc.device}, logging.NewNop())
			var calls [][]string
			engine.WithCommandRunner(scriptedRunner(t, "x", &calls))
			if _, err := engine.Run(context.Background(), "/audio/a.wav"); err != nil {
				t.Fatalf("Run: %v", err)
			}
			args := calls[0]
			if !containsSequence(args, tc.want) {
				t.Fatalf("args %v missing sequence %v", args, tc.want)
			}
		})
	}
}

func TestWhisperRunPropagatesEngineFailure(t *testing.T) {
	engine := transcribe.NewWhisper(transcribe.Config{Device: "cpu"}, logging.NewNop())
	engine.WithCommandRunner(func(context.Context, string, ...string) error {
		return os.ErrPermission
	})

	if _, err := engine.Run(context.Background(), "/audio/a.wav"); err == nil {
		t.Fatal("expected error from failing engine")
	}
	if got := engine.Status(); got != transcribe.AvailabilityReady {
		t.Fatalf("status after failed run = %v, want ready", got)
	}
}

func containsSequence(haystack, needle []string) bool {
	if len(needle) == 0 {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
