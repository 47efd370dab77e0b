// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import "time"

const (
	AudioBytesPerSample = 2  // LINEAR16 → 2 bytes per sample
	AudioBitsPerSample  = 16 // LINEAR16 → 16 bits per sample
	AudioPCMFormat      = 1  // WAV PCM format tag
)

// AudioConfig describes the PCM layout shared by capture, processing and playback.
type AudioConfig struct {
	SampleRate uint32
	Channels   uint32
}

// ENGINE_AUDIO_CONFIG is the capture format: 16kHz mono LINEAR16, which every
// transcription provider accepts without resampling.
var ENGINE_AUDIO_CONFIG = AudioConfig{
	SampleRate: 16000,
	Channels:   1,
}

// BytesPerSecond is the PCM byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return int(c.SampleRate) * int(c.Channels) * AudioBytesPerSample
}

// FrameSize is the byte size of one sample across all channels.
func (c AudioConfig) FrameSize() int {
	return AudioBytesPerSample * int(c.Channels)
}

// Duration converts a PCM byte length to playback time.
func (c AudioConfig) Duration(pcmBytes int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(pcmBytes) * int64(time.Second) / int64(bps))
}

// DurationBytes converts a duration to a frame-aligned byte count.
func (c AudioConfig) DurationBytes(d time.Duration) int {
	raw := int(d.Seconds() * float64(c.BytesPerSecond()))
	frame := c.FrameSize()
	return (raw / frame) * frame
}
