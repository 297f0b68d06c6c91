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


// Package bm3d orchestrates collaborative filtering: it adapts images and noise
// descriptions to the engine contract, decorrelates color images and runs the
// two-stage regularized deconvolution.
package bm3d

import (
	"fmt"

	"github.com/mlnoga/bm3dlight/internal/engine"
	"github.com/mlnoga/bm3dlight/internal/profile"
	"github.com/mlnoga/bm3dlight/internal/psd"
	"github.com/mlnoga/bm3dlight/internal/tensor"
	"github.com/rs/zerolog"
)

// Denoiser binds an engine and a diagnostics logger. It holds no other state
// and is safe for sequential reuse
type Denoiser struct {
	Engine engine.Engine
	Logger zerolog.Logger
}

func NewDenoiser(e engine.Engine, logger zerolog.Logger) *Denoiser {
	return &Denoiser{Engine: e, Logger: logger}
}

// Filters img with the given noise, profile, stage and block match handling.
// The result has the shape of img. Matches are returned only if a pass requested
// capture on a single channel image
func (d *Denoiser) Filter(img *tensor.Tensor, noise psd.Noise, ref profile.Ref, stage engine.Stage,
	bm engine.BlockMatch) (*tensor.Tensor, *engine.Matches, error) {
	prof, err := profile.Resolve(ref)
	if err != nil {
		return nil, nil, err
	}
	params := profile.ToEngineParameters(prof)
	return d.filterResolved(img, noise, &params, stage, bm)
}

func (d *Denoiser) filterResolved(img *tensor.Tensor, noise psd.Noise, params *profile.EngineParams, stage engine.Stage,
	bm engine.BlockMatch) (*tensor.Tensor, *engine.Matches, error) {
	if err := img.Validate(); err != nil {
		return nil, nil, err
	}
	img3 := img.AtLeast3D()
	rows, cols, channels := img3.Rows(), img3.Cols(), img3.Channels()

	engineNoise, err := toEngineNoise(noise, rows, cols, channels)
	if err != nil {
		return nil, nil, err
	}
	if stage.Kind == engine.StagePilot {
		if err := checkPilot(stage.PilotPlanes(), rows*cols, channels); err != nil {
			return nil, nil, err
		}
	}

	req := &engine.Request{
		Rows:     rows,
		Cols:     cols,
		Channels: img3.Planes(),
		Noise:    engineNoise,
		Params:   params,
		Stage:    stage,
		Matches:  bm,
	}
	if channels > 1 {
		req.Multichannel = true
		if bm.Requested() {
			d.Logger.Warn().Int("channels", channels).
				Msg("block matching request ignored for multichannel filtering, matches are not separable per channel")
			req.Matches = engine.NoMatches()
		}
	}

	res, err := d.Engine.Filter(req)
	if err != nil {
		return nil, nil, err
	}
	if len(res.Channels) != channels {
		return nil, nil, fmt.Errorf("%w: engine returned %d channels for %d", tensor.ErrInvalidShape, len(res.Channels), channels)
	}

	out := tensor.FromPlanes(rows, cols, res.Channels)
	out.Shape = append([]int(nil), img.Shape...)

	var matches *engine.Matches
	if req.Matches.Captures() {
		matches = res.Matches
	}
	return out, matches, nil
}

// Converts a noise description into the engine's channel-first list: one shared
// entry for a scalar deviation or a 2-D PSD, one entry per channel otherwise.
// A 3-D PSD with a single plane counts as shared
func toEngineNoise(noise psd.Noise, rows, cols, channels int) ([]engine.Noise, error) {
	if err := noise.Validate(rows, cols, channels); err != nil {
		return nil, err
	}
	switch noise.Kind {
	case psd.KindSigma:
		return []engine.Noise{{Sigma: noise.Sigma}}, nil
	case psd.KindSigmas:
		res := make([]engine.Noise, channels)
		for c := range res {
			res[c] = engine.Noise{Sigma: noise.Sigmas[c]}
		}
		return res, nil
	}
	full, err := psd.Full(noise, rows, cols, channels)
	if err != nil {
		return nil, err
	}
	res := make([]engine.Noise, full.Channels())
	for c := range res {
		res[c] = engine.Noise{PSD: full.Plane(c)}
	}
	return res, nil
}

func checkPilot(pilot [][]float64, pixels, channels int) error {
	if len(pilot) != channels {
		return fmt.Errorf("%w: pilot has %d channels, image has %d", tensor.ErrInvalidShape, len(pilot), channels)
	}
	for c, p := range pilot {
		if len(p) != pixels {
			return fmt.Errorf("%w: pilot channel %d has %d pixels, image has %d", tensor.ErrInvalidShape, c, len(p), pixels)
		}
	}
	return nil
}

// Stage directive seeded with a pilot image of any rank
func PilotFrom(pilot *tensor.Tensor) engine.Stage {
	return engine.Pilot(pilot.AtLeast3D().Planes())
}
