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


package bm3d

import (
	"fmt"
	"math"

	"github.com/mlnoga/bm3dlight/internal/colorspace"
	"github.com/mlnoga/bm3dlight/internal/engine"
	"github.com/mlnoga/bm3dlight/internal/profile"
	"github.com/mlnoga/bm3dlight/internal/psd"
	"github.com/mlnoga/bm3dlight/internal/tensor"
)

// Denoises a rows x cols x 3 color image: decorrelates it with the given transform,
// filters all stages jointly, and transforms back
func (d *Denoiser) DenoiseColor(img *tensor.Tensor, noise psd.Noise, ref profile.Ref, t colorspace.Transform) (*tensor.Tensor, error) {
	prof, err := profile.Resolve(ref)
	if err != nil {
		return nil, err
	}
	params := profile.ToEngineParameters(prof)

	fwd, err := colorspace.Forward(img, t)
	if err != nil {
		return nil, err
	}
	rescaled, err := RescaleNoise(noise, fwd)
	if err != nil {
		return nil, err
	}
	d.Logger.Debug().Str("transform", t.Name).Stringer("noise", noise.Kind).Floats64("scale", fwd.Scale).
		Msg("color decorrelation")

	filtered, _, err := d.filterResolved(fwd.Image, rescaled, &params, engine.AllStages(), engine.NoMatches())
	if err != nil {
		return nil, err
	}
	return colorspace.Inverse(filtered, t, fwd.Max, fwd.Min)
}

// Re-expresses a noise description of the original color channels in the
// normalized transformed domain. Transformed channel i sees the noise power
// sum_j A_ij^2 v_j / range_i^2, where v_j is the power in original channel j.
// A noise shared by all channels reduces to multiplying its power by the scale vector
func RescaleNoise(noise psd.Noise, fwd *colorspace.Forwarded) (psd.Noise, error) {
	rows, cols := fwd.Image.Rows(), fwd.Image.Cols()
	if err := noise.Validate(rows, cols, 3); err != nil {
		return psd.Noise{}, err
	}

	switch noise.Kind {
	case psd.KindSigma:
		sigmas := make([]float64, 3)
		for i := range sigmas {
			sigmas[i] = noise.Sigma * math.Sqrt(fwd.Scale[i])
		}
		return psd.Sigmas(sigmas...), nil

	case psd.KindSigmas:
		vars := make([]float64, 3)
		for j, s := range noise.Sigmas {
			vars[j] = s * s
		}
		sigmas := make([]float64, 3)
		for i := range sigmas {
			sigmas[i] = math.Sqrt(quadraticForm(fwd, i, vars))
		}
		return psd.Sigmas(sigmas...), nil

	case psd.KindShared:
		res := tensor.New(rows, cols, 3)
		for i := 0; i < 3; i++ {
			dest := res.Plane(i)
			for p, v := range noise.PSD.Data {
				dest[p] = v * fwd.Scale[i]
			}
		}
		return psd.PerChannel(res), nil

	case psd.KindPerChannel:
		planes := noise.PSD.AtLeast3D()
		res := tensor.New(rows, cols, 3)
		vals := make([]float64, 3)
		for p := 0; p < rows*cols; p++ {
			for j := range vals {
				vals[j] = planes.Data[(j%planes.Channels())*rows*cols+p]
			}
			for i := 0; i < 3; i++ {
				res.Data[i*rows*cols+p] = quadraticForm(fwd, i, vals)
			}
		}
		return psd.PerChannel(res), nil
	}
	return psd.Noise{}, fmt.Errorf("%w: unknown kind %v", psd.ErrInvalidNoise, noise.Kind)
}

// sum_j A_ij^2 v_j / range_i^2
func quadraticForm(fwd *colorspace.Forwarded, i int, v []float64) float64 {
	s := 0.0
	for j, vj := range v {
		a := fwd.Matrix.At(i, j)
		s += a * a * vj
	}
	r := fwd.Range(i)
	return s / (r * r)
}
