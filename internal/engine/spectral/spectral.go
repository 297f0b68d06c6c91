// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


// Package spectral is a reference collaborative filtering engine. Instead of
// grouping similar blocks it shrinks the global 2-D spectrum of each channel, which
// makes it exact for periodic content and cheap enough for tests and previews.
package spectral

import (
	"fmt"
	"math"
	"runtime"

	"github.com/mlnoga/bm3dlight/internal/engine"
	"github.com/mlnoga/bm3dlight/internal/spectrum"
	"github.com/rs/zerolog"
)

// Engine implements engine.Engine with global transform domain shrinkage
type Engine struct {
	Logger zerolog.Logger
}

func New(logger zerolog.Logger) *Engine {
	return &Engine{Logger: logger}
}

// Match tables of this engine: per channel keep masks for hard thresholding,
// per channel gains for Wiener filtering
type htMatches [][]bool
type wienerMatches [][]float64

// Per call working state
type job struct {
	req     *engine.Request
	n       int
	threads int
	spectra [][][]complex128 // noisy spectra per channel
	psd     [][]float64      // noise PSD per channel, scaled by filter strength squared
}

// Filters the request as directed by its stage
func (e *Engine) Filter(req *engine.Request) (*engine.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	j := &job{req: req, n: req.Rows * req.Cols, threads: req.Params.NumThreads}
	if j.threads <= 0 {
		j.threads = runtime.GOMAXPROCS(0)
	}
	e.Logger.Debug().Int("rows", req.Rows).Int("cols", req.Cols).Int("channels", len(req.Channels)).
		Stringer("stage", req.Stage.Kind).Bool("multichannel", req.Multichannel).Msg("spectral filter")

	j.spectra = make([][][]complex128, len(req.Channels))
	j.psd = make([][]float64, len(req.Channels))
	s2 := req.Params.FilterStrength * req.Params.FilterStrength
	err := parallel(len(req.Channels), j.threads, func(c int) error {
		j.spectra[c] = spectrum.Forward(req.Channels[c], req.Rows, req.Cols)
		j.psd[c] = scaledPSD(req.NoiseOf(c), j.n, s2)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &engine.Response{}
	captured := &engine.Matches{}
	var pilot [][]float64
	switch req.Stage.Kind {
	case engine.StageHardThresholding, engine.StageAllStages:
		masks, err := j.htMasks(req.Matches.HT)
		if err != nil {
			return nil, err
		}
		if req.Matches.HT.Action == engine.Capture {
			captured.HT = &engine.Table{Rows: req.Rows, Cols: req.Cols, Data: masks}
		}
		final := req.Stage.Kind == engine.StageHardThresholding
		if pilot, err = j.hardThreshold(masks, final); err != nil {
			return nil, err
		}
		if req.Stage.Kind == engine.StageHardThresholding {
			res.Channels = pilot
			res.Matches = capturedOrNil(captured)
			return res, nil
		}
	case engine.StagePilot:
		pilot = req.Stage.PilotPlanes()
	default:
		return nil, fmt.Errorf("%w: unknown stage %v", engine.ErrInvalidRequest, req.Stage.Kind)
	}

	gains, err := j.wienerGains(pilot, req.Matches.Wiener)
	if err != nil {
		return nil, err
	}
	if req.Matches.Wiener.Action == engine.Capture {
		captured.Wiener = &engine.Table{Rows: req.Rows, Cols: req.Cols, Data: gains}
	}
	if res.Channels, err = j.wiener(gains); err != nil {
		return nil, err
	}
	res.Matches = capturedOrNil(captured)
	return res, nil
}

func capturedOrNil(m *engine.Matches) *engine.Matches {
	if m.HT == nil && m.Wiener == nil {
		return nil
	}
	return m
}

// Noise power per frequency. White noise of deviation s has power s*s*n at every frequency
func scaledPSD(nz engine.Noise, n int, s2 float64) []float64 {
	res := make([]float64, n)
	if nz.PSD == nil {
		v := nz.Sigma * nz.Sigma * float64(n) * s2
		for i := range res {
			res[i] = v
		}
		return res
	}
	for i, v := range nz.PSD {
		res[i] = v * s2
	}
	return res
}

// Hard thresholding keep masks, either computed from the noisy spectra or taken from a
// previous call. In multichannel mode a frequency kept in one channel is kept in all
func (j *job) htMasks(phase engine.Phase) (htMatches, error) {
	if phase.Action == engine.Reuse {
		var masks htMatches
		ok := phase.Table != nil
		if ok {
			masks, ok = phase.Table.Data.(htMatches)
		}
		if !ok || phase.Table.Rows != j.req.Rows || phase.Table.Cols != j.req.Cols || len(masks) != len(j.spectra) {
			return nil, fmt.Errorf("%w: hard thresholding matches do not fit a %dx%dx%d image", engine.ErrInvalidRequest, j.req.Rows, j.req.Cols, len(j.spectra))
		}
		return masks, nil
	}

	lambda2 := j.req.Params.LambdaThr * j.req.Params.LambdaThr
	masks := make(htMatches, len(j.spectra))
	for c := range masks {
		masks[c] = thresholdMask(j.spectra[c], j.psd[c], lambda2)
	}
	if j.req.Multichannel {
		for i := 0; i < j.n; i++ {
			keep := false
			for c := range masks {
				keep = keep || masks[c][i]
			}
			for c := range masks {
				masks[c][i] = keep
			}
		}
	}
	return masks, nil
}

// Keeps frequencies whose 3x3 neighbourhood, wrapping around, carries at least lambda2
// times the noise power found there. Pooling makes a lone noise peak in a band of high
// noise power insignificant, as grouping does for blocks. DC is always kept
func thresholdMask(spec [][]complex128, psd []float64, lambda2 float64) []bool {
	rows, cols := len(spec), len(spec[0])
	power := spectrum.Power(spec)
	mask := make([]bool, len(psd))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			signal, noise := 0.0, 0.0
			for dy := -1; dy <= 1; dy++ {
				row := ((y+dy)%rows + rows) % rows
				for dx := -1; dx <= 1; dx++ {
					j := row*cols + ((x+dx)%cols+cols)%cols
					signal += power[j]
					noise += psd[j]
				}
			}
			i := y*cols + x
			mask[i] = i == 0 || signal >= lambda2*noise
		}
	}
	return mask
}

// Applies the keep masks, optionally refilters the residual, and returns the estimate.
// Only a final estimate is sharpened
func (j *job) hardThreshold(masks htMatches, final bool) ([][]float64, error) {
	p := j.req.Params
	lambda2Re := p.LambdaThrRe * p.LambdaThrRe
	out := make([][]float64, len(j.spectra))
	err := parallel(len(j.spectra), j.threads, func(c int) error {
		spec := j.spectra[c]
		cols := len(spec[0])
		est := make([][]complex128, len(spec))
		for y, row := range spec {
			est[y] = make([]complex128, cols)
			for x, v := range row {
				if masks[c][y*cols+x] {
					est[y][x] = v
				}
			}
		}
		if p.DenoiseResidual {
			// residual is what thresholding removed; add back what stands out above lambdaRe
			for y, row := range spec {
				for x, v := range row {
					i := y*cols + x
					if !masks[c][i] && spectrum.Abs2(v) >= lambda2Re*j.psd[c][i] {
						est[y][x] = v
					}
				}
			}
		}
		if final {
			sharpen(est, p.Sharpen)
		}
		out[c] = spectrum.InverseReal(est)
		return nil
	})
	return out, err
}

// Wiener gains from the pilot power spectrum, or from a previous call
func (j *job) wienerGains(pilot [][]float64, phase engine.Phase) (wienerMatches, error) {
	if phase.Action == engine.Reuse {
		var gains wienerMatches
		ok := phase.Table != nil
		if ok {
			gains, ok = phase.Table.Data.(wienerMatches)
		}
		if !ok || phase.Table.Rows != j.req.Rows || phase.Table.Cols != j.req.Cols || len(gains) != len(j.spectra) {
			return nil, fmt.Errorf("%w: Wiener matches do not fit a %dx%dx%d image", engine.ErrInvalidRequest, j.req.Rows, j.req.Cols, len(j.spectra))
		}
		return gains, nil
	}
	mu2 := j.req.Params.Mu2
	gains := make(wienerMatches, len(j.spectra))
	err := parallel(len(j.spectra), j.threads, func(c int) error {
		pp := spectrum.Power(spectrum.Forward(pilot[c], j.req.Rows, j.req.Cols))
		g := make([]float64, j.n)
		for i, v := range pp {
			d := v + mu2*j.psd[c][i]
			switch {
			case i == 0:
				g[i] = 1
			case d > 0:
				g[i] = v / d
			default:
				g[i] = 1 // neither signal nor noise
			}
		}
		gains[c] = g
		return nil
	})
	return gains, err
}

// Applies the Wiener gains to the noisy spectra and returns the estimate
func (j *job) wiener(gains wienerMatches) ([][]float64, error) {
	out := make([][]float64, len(j.spectra))
	err := parallel(len(j.spectra), j.threads, func(c int) error {
		spec := j.spectra[c]
		cols := len(spec[0])
		est := make([][]complex128, len(spec))
		for y, row := range spec {
			est[y] = make([]complex128, cols)
			for x, v := range row {
				est[y][x] = v * complex(gains[c][y*cols+x], 0)
			}
		}
		sharpen(est, j.req.Params.Sharpen)
		out[c] = spectrum.InverseReal(est)
		return nil
	})
	return out, err
}

// Alpha-rooting: scales each non-DC coefficient by (|v|/|dc|)^(1/alpha-1). 1 leaves the spectrum unchanged
func sharpen(spec [][]complex128, alpha float64) {
	if alpha == 1 || alpha <= 0 {
		return
	}
	dc := math.Sqrt(spectrum.Abs2(spec[0][0]))
	if dc == 0 {
		return
	}
	exp := 1/alpha - 1
	for y, row := range spec {
		for x, v := range row {
			if y == 0 && x == 0 {
				continue
			}
			m := math.Sqrt(spectrum.Abs2(v))
			if m == 0 {
				continue
			}
			row[x] = v * complex(math.Pow(m/dc, exp), 0)
		}
	}
}

// Runs f for 0..n-1 with at most threads concurrent invocations, and joins the errors
func parallel(n, threads int, f func(i int) error) (err error) {
	limiter := make(chan bool, threads)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		limiter <- true
		go func(i int) {
			defer func() { <-limiter }()
			errs <- f(i)
		}(i)
	}
	for i := 0; i < cap(limiter); i++ {
		limiter <- true
	}
	for i := 0; i < n; i++ {
		if e := <-errs; e != nil {
			if err == nil {
				err = e
			} else {
				err = fmt.Errorf("%s; %s", err.Error(), e.Error())
			}
		}
	}
	return err
}
