// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"encoding/binary"
	"math"
)

// Samples decodes LINEAR16 little-endian PCM into normalised floats in [-1, 1).
// A trailing odd byte is ignored.
func Samples(pcm []byte) []float64 {
	out := make([]float64, len(pcm)/AudioBytesPerSample)
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float64(s) / 32768.0
	}
	return out
}

// PCM encodes normalised floats back to LINEAR16, clipping out-of-range values.
func PCM(samples []float64) []byte {
	out := make([]byte, len(samples)*AudioBytesPerSample)
	for i, v := range samples {
		scaled := math.Round(v * 32768.0)
		if scaled > math.MaxInt16 {
			scaled = math.MaxInt16
		} else if scaled < math.MinInt16 {
			scaled = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(scaled)))
	}
	return out
}

// Ints decodes LINEAR16 PCM into the int slice layout used by go-audio buffers.
func Ints(pcm []byte) []int {
	out := make([]int, len(pcm)/AudioBytesPerSample)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return out
}
