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


package psd

import (
	"errors"
	"fmt"
	"math"

	"github.com/mlnoga/bm3dlight/internal/tensor"
)

// Returned when a noise description does not fit the image it is applied to
var ErrInvalidNoise = errors.New("invalid noise description")

// The shape of a noise description
type Kind int

const (
	KindSigma      Kind = iota // one standard deviation for all channels and pixels
	KindSigmas                 // one standard deviation per channel
	KindShared                 // a 2-D power spectral density shared across channels
	KindPerChannel             // a 3-D power spectral density, one plane per channel
)

func (k Kind) String() string {
	switch k {
	case KindSigma:
		return "sigma"
	case KindSigmas:
		return "sigmas"
	case KindShared:
		return "shared PSD"
	case KindPerChannel:
		return "per-channel PSD"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Additive Gaussian noise, white or colored. Only the field matching Kind is used.
// Standard deviations are in pixel value units. PSDs are in units of the
// unnormalized 2-D DFT, so white noise of deviation s has a flat PSD of s*s*rows*cols.
type Noise struct {
	Kind   Kind
	Sigma  float64
	Sigmas []float64
	PSD    *tensor.Tensor
}

func Sigma(s float64) Noise { return Noise{Kind: KindSigma, Sigma: s} }

func Sigmas(s ...float64) Noise {
	return Noise{Kind: KindSigmas, Sigmas: append([]float64(nil), s...)}
}

// A PSD shared across all channels. p must have rank 2
func Shared(p *tensor.Tensor) Noise { return Noise{Kind: KindShared, PSD: p} }

// A PSD with one plane per channel. p must have rank 3
func PerChannel(p *tensor.Tensor) Noise { return Noise{Kind: KindPerChannel, PSD: p} }

// Wraps a PSD tensor as Shared or PerChannel depending on its rank
func FromTensor(p *tensor.Tensor) (Noise, error) {
	if err := p.Validate(); err != nil {
		return Noise{}, err
	}
	if p.Rank() == 2 {
		return Shared(p), nil
	}
	return PerChannel(p), nil
}

// Checks the description against an image geometry
func (n Noise) Validate(rows, cols, channels int) error {
	switch n.Kind {
	case KindSigma:
		if !usable(n.Sigma) {
			return fmt.Errorf("%w: sigma %g", ErrInvalidNoise, n.Sigma)
		}
	case KindSigmas:
		if len(n.Sigmas) != channels {
			return fmt.Errorf("%w: %d sigmas for %d channels", ErrInvalidNoise, len(n.Sigmas), channels)
		}
		for _, s := range n.Sigmas {
			if !usable(s) {
				return fmt.Errorf("%w: sigma %g", ErrInvalidNoise, s)
			}
		}
	case KindShared, KindPerChannel:
		if err := n.PSD.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidNoise, err)
		}
		if n.PSD.Rows() != rows || n.PSD.Cols() != cols {
			return fmt.Errorf("%w: PSD is %s, image is %dx%d", ErrInvalidNoise, n.PSD.DimensionsToString(), rows, cols)
		}
		if n.Kind == KindShared && n.PSD.Rank() != 2 {
			return fmt.Errorf("%w: shared PSD must have rank 2, is %s", ErrInvalidNoise, n.PSD.DimensionsToString())
		}
		if n.Kind == KindPerChannel && n.PSD.Channels() != channels && n.PSD.Channels() != 1 {
			return fmt.Errorf("%w: PSD has %d channels, image has %d", ErrInvalidNoise, n.PSD.Channels(), channels)
		}
		for _, v := range n.PSD.Data {
			if !usable(v) {
				return fmt.Errorf("%w: PSD value %g", ErrInvalidNoise, v)
			}
		}
	default:
		return fmt.Errorf("%w: unknown kind %v", ErrInvalidNoise, n.Kind)
	}
	return nil
}

// Non-negative and finite
func usable(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

// Standard deviation of channel c, for the white noise kinds
func (n Noise) SigmaOf(c int) float64 {
	if n.Kind == KindSigmas {
		return n.Sigmas[c]
	}
	return n.Sigma
}

// True for KindSigma and KindSigmas
func (n Noise) IsWhite() bool { return n.Kind == KindSigma || n.Kind == KindSigmas }

// Canonical PSD tensor of shape rows x cols x k, with k=1 if the noise is the same
// for all channels and k=channels otherwise. Standard deviations are turned into
// flat PSDs scaled by variance and image area. The result never aliases n.
func Full(n Noise, rows, cols, channels int) (*tensor.Tensor, error) {
	if err := n.Validate(rows, cols, channels); err != nil {
		return nil, err
	}
	area := float64(rows * cols)
	switch n.Kind {
	case KindSigma:
		return flat(rows, cols, []float64{n.Sigma * n.Sigma * area}), nil
	case KindSigmas:
		levels := make([]float64, len(n.Sigmas))
		for c, s := range n.Sigmas {
			levels[c] = s * s * area
		}
		return flat(rows, cols, levels), nil
	default:
		res := n.PSD.Clone()
		res.Shape = []int{rows, cols, n.PSD.Channels()}
		return res, nil
	}
}

func flat(rows, cols int, levels []float64) *tensor.Tensor {
	t := tensor.New(rows, cols, len(levels))
	for c, l := range levels {
		p := t.Plane(c)
		for i := range p {
			p[i] = l
		}
	}
	return t
}
