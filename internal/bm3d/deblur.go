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
	"math/cmplx"

	"github.com/mlnoga/bm3dlight/internal/engine"
	"github.com/mlnoga/bm3dlight/internal/profile"
	"github.com/mlnoga/bm3dlight/internal/psd"
	"github.com/mlnoga/bm3dlight/internal/spectrum"
	"github.com/mlnoga/bm3dlight/internal/tensor"
)

const (
	AlphaRI  = 4e-4       // regularization of the plain inverse
	AlphaRWI = 5e-3       // regularization of the Wiener inverse
	Epsilon  = 2.2204e-16 // keeps denominators positive where blur response and noise both vanish
)

// Tikhonov regularized inverse of a blur with frequency response v:
// conj(v) / (|v|^2 + alpha*psd + eps)
func RegularizedInverse(v []complex128, psdPlane []float64, alpha float64) []complex128 {
	res := make([]complex128, len(v))
	for i, h := range v {
		res[i] = cmplx.Conj(h) / complex(spectrum.Abs2(h)+alpha*psdPlane[i]+Epsilon, 0)
	}
	return res
}

// Regularized Wiener inverse of a blur with frequency response v, given the
// power spectrum p of a pilot estimate: conj(v)*p / (p*|v|^2 + alpha*psd + eps)
func RegularizedWienerInverse(v []complex128, p, psdPlane []float64, alpha float64) []complex128 {
	res := make([]complex128, len(v))
	for i, h := range v {
		res[i] = cmplx.Conj(h) * complex(p[i], 0) / complex(p[i]*spectrum.Abs2(h)+alpha*psdPlane[i]+Epsilon, 0)
	}
	return res
}

// Removes a known blur from a noisy image. First a regularized inverse is filtered
// with hard thresholding to obtain a pilot, then a regularized Wiener inverse
// guided by that pilot is filtered in the Wiener stage. The result has the shape of img
func (d *Denoiser) Deblur(img *tensor.Tensor, noise psd.Noise, psf *tensor.Tensor, ref profile.Ref) (*tensor.Tensor, error) {
	prof, err := profile.Resolve(ref)
	if err != nil {
		return nil, err
	}
	params := profile.ToEngineParameters(prof)

	if err := img.Validate(); err != nil {
		return nil, err
	}
	img3 := img.AtLeast3D()
	rows, cols, channels := img3.Rows(), img3.Cols(), img3.Channels()

	full, err := psd.Full(noise, rows, cols, channels)
	if err != nil {
		return nil, err
	}
	v, err := spectrum.Response(psf, rows, cols)
	if err != nil {
		return nil, err
	}
	spectra := make([][][]complex128, channels)
	for c := range spectra {
		spectra[c] = spectrum.Forward(img3.Plane(c), rows, cols)
	}

	// regularized inverse; its PSD keeps the plane count of the noise
	zRI := tensor.New(img.Shape...)
	psdRI := tensor.New(rows, cols, full.Channels())
	inverses := make([][]complex128, full.Channels())
	for k := range inverses {
		inverses[k] = RegularizedInverse(v, full.Plane(k), AlphaRI)
		propagate(psdRI.Plane(k), full.Plane(k), inverses[k])
	}
	for c := 0; c < channels; c++ {
		copy(zRI.Data[c*rows*cols:(c+1)*rows*cols], invert(spectra[c], inverses[c%full.Channels()]))
	}
	d.Logger.Debug().Int("rows", rows).Int("cols", cols).Int("channels", channels).Msg("regularized inverse done")

	pilot, _, err := d.filterResolved(zRI, psd.PerChannel(psdRI), &params, engine.HardThresholding(), engine.NoMatches())
	if err != nil {
		return nil, err
	}

	// regularized Wiener inverse, one filter per channel since the pilot differs
	pilot3 := pilot.AtLeast3D()
	zRWI := tensor.New(img.Shape...)
	psdRWI := tensor.New(rows, cols, channels)
	for c := 0; c < channels; c++ {
		p := spectrum.Power(spectrum.Forward(pilot3.Plane(c), rows, cols))
		noisePlane := full.Plane(c % full.Channels())
		h := RegularizedWienerInverse(v, p, noisePlane, AlphaRWI)
		propagate(psdRWI.Plane(c), noisePlane, h)
		copy(zRWI.Data[c*rows*cols:(c+1)*rows*cols], invert(spectra[c], h))
	}
	d.Logger.Debug().Msg("regularized Wiener inverse done")

	res, _, err := d.filterResolved(zRWI, psd.PerChannel(psdRWI), &params, PilotFrom(pilot), engine.NoMatches())
	return res, err
}

// Applies a transfer function to a copy of the spectrum and returns the real part of its inverse
func invert(spec [][]complex128, h []complex128) []float64 {
	cols := len(spec[0])
	tmp := make([][]complex128, len(spec))
	for y, row := range spec {
		tmp[y] = make([]complex128, cols)
		copy(tmp[y], row)
	}
	spectrum.Apply(tmp, h)
	return spectrum.InverseReal(tmp)
}

// Noise PSD after filtering with h: psd*|h|^2
func propagate(dest, noisePlane []float64, h []complex128) {
	for i, v := range noisePlane {
		dest[i] = v * spectrum.Abs2(h[i])
	}
}
