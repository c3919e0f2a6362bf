// Package analysis runs the energy beat detector over audio files.
// This file provides audio file loading and sample export.
package analysis

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// ErrUnsupportedFormat is returned for file extensions with no loader and
// for WAV encodings other than integer PCM.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// wavFormatPCM is the WAVE format tag of integer PCM.
const wavFormatPCM = 1

// LoadAudioMono loads an audio file and returns mono samples in [-1, 1] and
// the sample rate. Text files carry no rate and report 0.
func LoadAudioMono(path string) ([]float64, int, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".mp3":
		return loadMP3Mono(path)
	case ".wav":
		return loadWAVMono(path)
	case ".txt", ".dat":
		return loadTextMono(path)
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// isSupportedAudio returns true if the file extension has a loader.
func isSupportedAudio(ext string) bool {
	switch ext {
	case ".mp3", ".wav", ".txt", ".dat":
		return true
	default:
		return false
	}
}

// Additional samples that go-mp3 produces compared to browser's decoder
// Measured: browser first transient at 48446, go-mp3 at 50735
// LAME header said 1365, so go-mp3 adds: 50735 - 48446 - 1365 = 924 samples
const goMP3DecoderDelay = 924

// Default encoder delay if we can't read it from the LAME header
const defaultEncoderDelay = 576

// readMP3Delay reads the total delay to skip for an MP3 file.
// Combines LAME encoder delay (from header) + go-mp3 decoder delay.
func readMP3Delay(path string) int {
	return readLAMEEncoderDelay(path) + goMP3DecoderDelay
}

// readLAMEEncoderDelay reads the encoder delay from LAME/Xing header if present.
func readLAMEEncoderDelay(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return defaultEncoderDelay
	}
	defer f.Close()

	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil || n < 200 {
		return defaultEncoderDelay
	}
	return lameDelay(buf[:n])
}

// lameDelay parses the encoder delay out of the first bytes of an MP3.
func lameDelay(buf []byte) int {
	lameIdx := bytes.Index(buf, []byte("LAME"))
	if lameIdx == -1 {
		return defaultEncoderDelay
	}

	// 21 bytes after "LAME": 12 bits delay, 12 bits padding
	delayOffset := lameIdx + 21
	if delayOffset+3 > len(buf) {
		return defaultEncoderDelay
	}

	b := buf[delayOffset : delayOffset+3]
	delay := (int(b[0]) << 4) | (int(b[1]) >> 4)

	// Sanity check - delay should be reasonable (typically 576-1152)
	if delay < 0 || delay > 4096 {
		return defaultEncoderDelay
	}

	return delay
}

// loadMP3Mono loads an MP3 file and returns mono samples.
func loadMP3Mono(path string) ([]float64, int, error) {
	totalDelay := readMP3Delay(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	// 16-bit stereo interleaved
	pcmData, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}

	samples := stereo16ToMono(pcmData)

	// Skip delay at the start so beat positions match playback
	if len(samples) > totalDelay {
		samples = samples[totalDelay:]
	}

	return samples, decoder.SampleRate(), nil
}

// stereo16ToMono mixes little-endian 16-bit stereo PCM down to mono.
func stereo16ToMono(pcm []byte) []float64 {
	numSamplePairs := len(pcm) / 4
	samples := make([]float64, numSamplePairs)

	for i := 0; i < numSamplePairs; i++ {
		offset := i * 4
		left := int16(binary.LittleEndian.Uint16(pcm[offset:]))
		right := int16(binary.LittleEndian.Uint16(pcm[offset+2:]))

		mono := (float64(left) + float64(right)) / 2.0
		samples[i] = mono / 32768.0
	}

	return samples
}

// loadWAVMono loads a PCM WAV file and returns mono samples.
func loadWAVMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV file: %s", filepath.Base(path))
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, 0, fmt.Errorf("%w: WAV format tag %d in %s", ErrUnsupportedFormat, decoder.WavAudioFormat, filepath.Base(path))
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV: %w", err)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		return nil, 0, fmt.Errorf("invalid WAV channel count: %d", channels)
	}
	bitDepth := int(decoder.BitDepth)
	if bitDepth < 8 || bitDepth > 32 {
		return nil, 0, fmt.Errorf("unsupported WAV bit depth: %d", bitDepth)
	}

	return interleavedToMono(buf.Data, channels, bitDepth), int(decoder.SampleRate), nil
}

// interleavedToMono averages interleaved integer frames and scales them to
// [-1, 1] for the given bit depth. 8-bit PCM is unsigned with silence at 128.
func interleavedToMono(data []int, channels, bitDepth int) []float64 {
	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 {
		offset = 128
	}
	frames := len(data) / channels
	samples := make([]float64, frames)

	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c]) - offset
		}
		samples[i] = sum / float64(channels) / scale
	}

	return samples
}

// loadTextMono loads a text file of samples.
func loadTextMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	samples, err := ReadText(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return samples, 0, nil
}

// ReadText parses whitespace separated sample values, typically one per line.
func ReadText(r io.Reader) ([]float64, error) {
	var samples []float64

	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", len(samples), err)
		}
		samples = append(samples, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}

	return samples, nil
}

// WriteText writes one sample per line in the format ReadText accepts.
func WriteText(w io.Writer, samples []float64) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for _, s := range samples {
		buf = strconv.AppendFloat(buf[:0], s, 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ExportText decodes an audio file and writes its mono samples as text.
func ExportText(audioPath, outPath string) (int, error) {
	samples, _, err := LoadAudioMono(audioPath)
	if err != nil {
		return 0, fmt.Errorf("load audio: %w", err)
	}

	f, err := os.Create(filepath.Clean(outPath))
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	if err := WriteText(f, samples); err != nil {
		return 0, fmt.Errorf("write samples: %w", err)
	}
	return len(samples), f.Close()
}
