package transcribe

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

const (
	warmupSampleRate = 16000
	warmupChannels   = 1
	warmupBitDepth   = 16
)

// writeSilenceWAV writes a mono 16 kHz PCM WAV of silence. It exists only
// to give the engine a real file for its warm-up invocation; the daemon
// never decodes audio itself.
func writeSilenceWAV(path string, duration time.Duration) error {
	samples := int(duration.Seconds() * warmupSampleRate)
	if samples <= 0 {
		samples = warmupSampleRate / 10
	}
	dataSize := samples * warmupChannels * warmupBitDepth / 8

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	header := make([]byte, 0, 44)
	u32 := func(v uint32) []byte {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		return b[:]
	}
	u16 := func(v uint16) []byte {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v)
		return b[:]
	}

	byteRate := warmupSampleRate * warmupChannels * warmupBitDepth / 8
	blockAlign := warmupChannels * warmupBitDepth / 8

	header = append(header, []byte("RIFF")...)
	header = append(header, u32(uint32(36+dataSize))...)
	header = append(header, []byte("WAVE")...)
	header = append(header, []byte("fmt ")...)
	header = append(header, u32(16)...)
	header = append(header, u16(1)...) // PCM
	header = append(header, u16(warmupChannels)...)
	header = append(header, u32(warmupSampleRate)...)
	header = append(header, u32(uint32(byteRate))...)
	header = append(header, u16(uint16(blockAlign))...)
	header = append(header, u16(warmupBitDepth)...)
	header = append(header, []byte("data")...)
	header = append(header, u32(uint32(dataSize))...)

	if _, err := file.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := file.Write(make([]byte, dataSize)); err != nil {
		return fmt.Errorf("write wav body: %w", err)
	}
	return nil
}
