package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"pinktranscriber/internal/logging"
)

// Tool invocation constants.
const (
	// UVXCommand launches the engine without a managed Python environment.
	UVXCommand = "uvx"
	// EngineTool is the faster-whisper command line frontend.
	EngineTool = "whisper-ctranslate2"

	CUDAIndexURL = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL = "https://pypi.org/simple"

	cudaComputeType = "float16"
	cpuComputeType  = "int8"
)

// Config captures runtime settings for the faster-whisper engine.
type Config struct {
	// Model is the faster-whisper model name (e.g., "large-v3").
	Model string
	// Device selects hardware: "auto", "cuda", or "cpu".
	Device string
	// ComputeType overrides the numeric precision; empty derives it from Device.
	ComputeType string
	// BeamSize is the decode beam width.
	BeamSize int
	// Language pins the transcript language; empty detects per file.
	Language string
	// ModelDir is the resolved model cache directory.
	ModelDir string
}

// Whisper runs faster-whisper through uvx. It satisfies Adapter.
type Whisper struct {
	cfg           Config
	logger        *slog.Logger
	status        atomic.Int32
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewWhisper creates the engine wrapper. It performs no work until
// Initialize is called.
func NewWhisper(cfg Config, logger *slog.Logger) *Whisper {
	if cfg.Model == "" {
		cfg.Model = "large-v3"
	}
	if cfg.BeamSize <= 0 {
		cfg.BeamSize = 5
	}
	return &Whisper{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "transcribe"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *Whisper) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	w.commandRunner = runner
}

// Model returns the configured model name for logging.
func (w *Whisper) Model() string {
	return w.cfg.Model
}

// Status reports engine availability.
func (w *Whisper) Status() Availability {
	return Availability(w.status.Load())
}

// Initialize warms the engine by transcribing a short generated silence.
// The first invocation downloads the model into ModelDir, which is the
// expensive part the daemon exists to amortize.
func (w *Whisper) Initialize(ctx context.Context) error {
	w.status.Store(int32(AvailabilityLoading))

	workDir, err := os.MkdirTemp("", "pink-transcriber-warmup-")
	if err != nil {
		return fmt.Errorf("warmup workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	sample := filepath.Join(workDir, "warmup.wav")
	if err := writeSilenceWAV(sample, 200*time.Millisecond); err != nil {
		return fmt.Errorf("warmup sample: %w", err)
	}

	start := time.Now()
	if _, err := w.invoke(ctx, sample, workDir); err != nil {
		return fmt.Errorf("engine warmup: %w", err)
	}
	w.status.Store(int32(AvailabilityReady))
	w.logger.Info("engine ready",
		logging.String("model", w.cfg.Model),
		logging.String("device", w.cfg.Device),
		logging.Duration("warmup", time.Since(start)),
		logging.String(logging.FieldEventType, "engine_ready"),
	)
	return nil
}

// Run transcribes one audio file and returns its plain transcript.
func (w *Whisper) Run(ctx context.Context, path string) (string, error) {
	w.status.Store(int32(AvailabilityBusy))
	defer w.status.Store(int32(AvailabilityReady))

	workDir, err := os.MkdirTemp("", "pink-transcriber-run-")
	if err != nil {
		return "", fmt.Errorf("transcribe workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	return w.invoke(ctx, path, workDir)
}

// invoke runs the engine against source, directing its JSON output to
// outputDir, and returns the flattened transcript text.
func (w *Whisper) invoke(ctx context.Context, source, outputDir string) (string, error) {
	args := w.buildArgs(source, outputDir)
	if err := w.run(ctx, UVXCommand, args...); err != nil {
		return "", fmt.Errorf("%s: %w", EngineTool, err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	jsonPath := filepath.Join(outputDir, baseName+".json")
	text, err := loadTranscriptText(jsonPath)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return text, nil
}

// run executes a command, using the custom runner if set.
func (w *Whisper) run(ctx context.Context, name string, args ...string) error {
	if w.commandRunner != nil {
		return w.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildArgs constructs the uvx command arguments for the engine.
func (w *Whisper) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 24)

	if w.cfg.Device == "cuda" {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		EngineTool,
		source,
		"--model", w.cfg.Model,
		"--beam_size", strconv.Itoa(w.cfg.BeamSize),
		"--output_format", "json",
		"--output_dir", outputDir,
	)

	if w.cfg.ModelDir != "" {
		args = append(args, "--model_directory", w.cfg.ModelDir)
	}
	if w.cfg.Language != "" {
		args = append(args, "--language", w.cfg.Language)
	}

	args = append(args, deviceArgs(w.cfg.Device, w.cfg.ComputeType)...)
	return args
}

// deviceArgs maps the configured device intent onto engine flags. The
// engine owns hardware probing; "auto" tells it to try CUDA and fall back
// to CPU on its own.
func deviceArgs(device, computeType string) []string {
	switch device {
	case "cuda":
		if computeType == "" {
			computeType = cudaComputeType
		}
		return []string{"--device", "cuda", "--compute_type", computeType}
	case "cpu":
		if computeType == "" {
			computeType = cpuComputeType
		}
		return []string{"--device", "cpu", "--compute_type", computeType}
	default:
		if computeType != "" {
			return []string{"--device", "auto", "--compute_type", computeType}
		}
		return []string{"--device", "auto"}
	}
}

// segment is one transcribed span from the engine's JSON output.
type segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type enginePayload struct {
	Segments []segment `json:"segments"`
}

// loadSegments loads segments from an engine JSON file.
func loadSegments(jsonPath string) ([]segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload enginePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse engine json: %w", err)
	}
	return payload.Segments, nil
}

// loadTranscriptText loads and concatenates segment text from an engine
// JSON file.
func loadTranscriptText(jsonPath string) (string, error) {
	segments, err := loadSegments(jsonPath)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
