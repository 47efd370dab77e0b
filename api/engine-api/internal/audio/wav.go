// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVHeaderSize is the canonical 44-byte PCM header.
const WAVHeaderSize = 44

var ErrInvalidHeader = errors.New("missing RIFF/WAVE header")

// EncodeWAV wraps LINEAR16 PCM in an in-memory WAV container. Used for
// payloads sent to transcription providers.
func EncodeWAV(cfg AudioConfig, pcmData []byte) []byte {
	var buf bytes.Buffer
	bps := cfg.BytesPerSecond()

	buf.Write([]byte("RIFF"))
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcmData)))
	buf.Write([]byte("WAVE"))

	buf.Write([]byte("fmt "))
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(AudioPCMFormat))
	binary.Write(&buf, binary.LittleEndian, uint16(cfg.Channels))
	binary.Write(&buf, binary.LittleEndian, cfg.SampleRate)
	binary.Write(&buf, binary.LittleEndian, uint32(bps))
	binary.Write(&buf, binary.LittleEndian, uint16(cfg.FrameSize()))
	binary.Write(&buf, binary.LittleEndian, uint16(AudioBitsPerSample))

	// data chunk
	buf.Write([]byte("data"))
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcmData)))
	buf.Write(pcmData)

	return buf.Bytes()
}

// WriteWAV streams PCM into w as a WAV file. w is typically a staging file.
func WriteWAV(w io.WriteSeeker, cfg AudioConfig, pcmData []byte) error {
	enc := wav.NewEncoder(w, int(cfg.SampleRate), AudioBitsPerSample, int(cfg.Channels), AudioPCMFormat)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(cfg.Channels),
			SampleRate:  int(cfg.SampleRate),
		},
		Data:           Ints(pcmData),
		SourceBitDepth: AudioBitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalise wav: %w", err)
	}
	return nil
}

// ProbeHeader reads the first 12 bytes and checks the RIFF/WAVE magic.
func ProbeHeader(r io.Reader) error {
	head := make([]byte, 12)
	if _, err := io.ReadFull(r, head); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if string(head[0:4]) != "RIFF" || string(head[8:12]) != "WAVE" {
		return ErrInvalidHeader
	}
	return nil
}

// Decoded is a WAV file read back into PCM.
type Decoded struct {
	Config   AudioConfig
	PCM      []byte
	Duration time.Duration
}

// DecodeWAV reads a complete WAV file. Only 16-bit PCM is accepted.
func DecodeWAV(r io.ReadSeeker) (*Decoded, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidHeader
	}
	if dec.BitDepth != AudioBitsPerSample {
		return nil, fmt.Errorf("unsupported bit depth %d", dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read pcm: %w", err)
	}
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / 32768.0
	}
	cfg := AudioConfig{SampleRate: dec.SampleRate, Channels: uint32(dec.NumChans)}
	pcmData := PCM(samples)
	return &Decoded{
		Config:   cfg,
		PCM:      pcmData,
		Duration: cfg.Duration(len(pcmData)),
	}, nil
}
