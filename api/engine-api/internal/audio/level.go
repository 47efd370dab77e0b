// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_audio

import (
	"encoding/binary"
	"math"

	"github.com/affirmai/engine/pkg/utils"
)

// levelFloorDB is mapped to level 0; 0 dBFS maps to level 1.
const levelFloorDB = -60.0

// RMS computes the root mean square of LINEAR16 PCM, normalised to [0, 1].
func RMS(pcm []byte) float64 {
	n := len(pcm) / AudioBytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// RMSFloat is RMS over already-decoded samples.
func RMSFloat(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Level maps an RMS amplitude to a perceptual 0..1 meter value on a dB scale.
func Level(rms float64) float64 {
	if rms <= 0 {
		return 0
	}
	db := 20 * math.Log10(rms)
	return utils.ClampFloat64((db-levelFloorDB)/-levelFloorDB, 0, 1)
}
