// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_processing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	internal_audio "github.com/affirmai/engine/api/engine-api/internal/audio"
)

// Sensitivity selects how aggressively leading and trailing silence is cut.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// TrimParams is the amplitude threshold below which a window counts as
// silence, and the minimum run of silence worth removing.
type TrimParams struct {
	Threshold float64
	MinWindow time.Duration
}

var trimParams = map[Sensitivity]TrimParams{
	SensitivityLow:    {Threshold: 0.01, MinWindow: 500 * time.Millisecond},
	SensitivityMedium: {Threshold: 0.02, MinWindow: 300 * time.Millisecond},
	SensitivityHigh:   {Threshold: 0.04, MinWindow: 150 * time.Millisecond},
}

// Params returns the trim parameters, defaulting unknown values to medium.
func (s Sensitivity) Params() TrimParams {
	if p, ok := trimParams[s]; ok {
		return p
	}
	return trimParams[SensitivityMedium]
}

const (
	analysisWindow = 10 * time.Millisecond
	trimPadding    = 50 * time.Millisecond
	highPassCutoff = 80.0
	gateRatio      = 2.0
	gateFloor      = 0.005
	gateAttenuate  = 0.1
	normalizePeak  = 0.89 // -1 dBFS
)

var (
	ErrEmptyAudio = errors.New("audio is empty")
	ErrNoSpeech   = errors.New("no samples above the silence threshold")
)

func windowSize(sampleRate uint32, d time.Duration) int {
	n := int(float64(sampleRate) * d.Seconds())
	if n < 1 {
		n = 1
	}
	return n
}

// windowLevels returns the RMS of consecutive analysis windows.
func windowLevels(samples []float64, size int) []float64 {
	levels := make([]float64, 0, len(samples)/size+1)
	for i := 0; i < len(samples); i += size {
		end := i + size
		if end > len(samples) {
			end = len(samples)
		}
		levels = append(levels, internal_audio.RMSFloat(samples[i:end]))
	}
	return levels
}

// Trim removes leading and trailing silence. A silent run shorter than the
// sensitivity's minimum window is kept, and a short pad is left around speech.
func Trim(samples []float64, sampleRate uint32, sensitivity Sensitivity) ([]float64, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}
	params := sensitivity.Params()
	size := windowSize(sampleRate, analysisWindow)
	levels := windowLevels(samples, size)

	first, last := -1, -1
	for i, l := range levels {
		if l >= params.Threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil, ErrNoSpeech
	}

	minRun := windowSize(sampleRate, params.MinWindow)
	pad := windowSize(sampleRate, trimPadding)

	start := first * size
	if start < minRun {
		start = 0
	} else {
		start = max(0, start-pad)
	}

	end := (last + 1) * size
	if end > len(samples) {
		end = len(samples)
	}
	if len(samples)-end < minRun {
		end = len(samples)
	} else {
		end = min(len(samples), end+pad)
	}

	out := make([]float64, end-start)
	copy(out, samples[start:end])
	return out, nil
}

// Enhance removes DC and low rumble, gates windows near the noise floor and
// normalises the peak.
func Enhance(samples []float64, sampleRate uint32) ([]float64, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}
	if sampleRate == 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	out := highPass(samples, sampleRate, highPassCutoff)
	noiseGate(out, windowSize(sampleRate, analysisWindow))
	if err := normalize(out, normalizePeak); err != nil {
		return nil, err
	}
	return out, nil
}

// highPass is a first-order RC high-pass filter.
func highPass(samples []float64, sampleRate uint32, cutoff float64) []float64 {
	rc := 1.0 / (2 * math.Pi * cutoff)
	dt := 1.0 / float64(sampleRate)
	alpha := rc / (rc + dt)

	out := make([]float64, len(samples))
	out[0] = alpha * samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = alpha * (out[i-1] + samples[i] - samples[i-1])
	}
	return out
}

// noiseGate attenuates windows whose level is close to the estimated noise
// floor (the 10th percentile window level).
func noiseGate(samples []float64, size int) {
	levels := windowLevels(samples, size)
	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)
	floor := sorted[len(sorted)/10]
	threshold := math.Max(floor*gateRatio, gateFloor)

	for w, l := range levels {
		if l >= threshold {
			continue
		}
		start := w * size
		end := min(start+size, len(samples))
		for i := start; i < end; i++ {
			samples[i] *= gateAttenuate
		}
	}
}

func normalize(samples []float64, target float64) error {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return ErrNoSpeech
	}
	gain := target / peak
	for i := range samples {
		samples[i] *= gain
	}
	return nil
}
