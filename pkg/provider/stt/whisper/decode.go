package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const (
	// bitsPerSample is fixed at 16 for the signed little-endian PCM that
	// whisper.cpp expects.
	bitsPerSample = 16

	// decodeSampleRate is the sample rate whisper.cpp models are trained on.
	decodeSampleRate = 16000
)

// decodeToSamples writes the encoded audio to a transient file, shells out to
// ffmpeg to decode it to 16 kHz mono PCM, and returns float32 samples ready
// for whisper.cpp inference. The transient file is removed on every exit path.
func decodeToSamples(ctx context.Context, audio []byte, formatHint string) ([]float32, error) {
	pcm, err := decodeToPCM(ctx, audio, formatHint)
	if err != nil {
		return nil, err
	}
	return pcm16ToFloat32(pcm), nil
}

// decodeToPCM decodes encoded audio to raw 16-bit signed little-endian PCM,
// 16 kHz mono. ffmpeg reads from a named file rather than stdin because
// several container formats (notably mp4/m4a) require a seekable input.
func decodeToPCM(ctx context.Context, audio []byte, formatHint string) ([]byte, error) {
	pattern := "teachback-audio-*"
	if ext := normalizeExt(formatHint); ext != "" {
		pattern += "." + ext
	}
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("whisper: create temp audio file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(audio); err != nil {
		f.Close()
		return nil, fmt.Errorf("whisper: write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close temp audio file: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(decodeSampleRate),
		"-ac", "1",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("whisper: ffmpeg decode: %s", msg)
	}

	return stdout.Bytes(), nil
}

// pcm16ToFloat32 converts 16-bit signed little-endian PCM to normalised
// float32 samples in [-1, 1].
func pcm16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container suitable for a multipart form upload.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// normalizeExt strips a leading dot and lowercases a format hint so it can be
// used as a file name suffix. Hints containing path separators are rejected.
func normalizeExt(hint string) string {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(hint), "."))
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
