package testsupport

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// wavHeader is the canonical 44-byte RIFF/PCM preamble.
type wavHeader struct {
	RiffTag       [4]byte
	RiffSize      uint32
	WaveTag       [4]byte
	FmtTag        [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataTag       [4]byte
	DataSize      uint32
}

// WriteAudioFile writes a mono 16 kHz PCM WAV fixture carrying
// payloadBytes of sawtooth samples, so validation and size checks see a
// plausible audio file. A size <= 0 writes one sample.
func WriteAudioFile(t testing.TB, path string, payloadBytes int) {
	t.Helper()

	if payloadBytes < 2 {
		payloadBytes = 2
	}
	if payloadBytes%2 != 0 {
		payloadBytes++
	}

	const sampleRate = 16000
	header := wavHeader{
		RiffTag:       [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:      uint32(36 + payloadBytes),
		WaveTag:       [4]byte{'W', 'A', 'V', 'E'},
		FmtTag:        [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      1,
		SampleRate:    sampleRate,
		ByteRate:      sampleRate * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		DataTag:       [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(payloadBytes),
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		t.Fatalf("encode wav header for %s: %v", path, err)
	}
	for i := 0; i < payloadBytes/2; i++ {
		sample := int16(i%64) * 128
		if err := binary.Write(&buf, binary.LittleEndian, sample); err != nil {
			t.Fatalf("encode wav payload for %s: %v", path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
