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


package spectrum

import (
	"math"
	"testing"

	"github.com/mlnoga/bm3dlight/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadPSFCentresAtOrigin(t *testing.T) {
	tcs := []struct {
		rows, cols int
		wantY      int
		wantX      int
	}{
		{3, 3, 1, 1}, // centre (1,1) goes to origin
		{5, 4, 2, 2}, // (4-1)/2=1.5 rounds to 2
		{2, 2, 0, 0}, // (2-1)/2=0.5 rounds to 0
		{1, 1, 0, 0},
	}
	for _, tc := range tcs {
		psf := tensor.New(tc.rows, tc.cols)
		psf.Set(tc.wantY, tc.wantX, 0, 1)
		padded, err := PadPSF(psf, 8, 8)
		require.NoError(t, err)
		assert.Equal(t, 1.0, padded[0], "psf %dx%d", tc.rows, tc.cols)
		sum := 0.0
		for _, v := range padded {
			sum += v
		}
		assert.Equal(t, 1.0, sum)
	}
}

func TestPadPSFTooLarge(t *testing.T) {
	_, err := PadPSF(tensor.New(9, 3), 8, 8)
	assert.ErrorIs(t, err, tensor.ErrInvalidShape)
	_, err = PadPSF(tensor.New(3, 3, 2), 8, 8)
	assert.ErrorIs(t, err, tensor.ErrInvalidShape)
}

func TestForwardInverse(t *testing.T) {
	rows, cols := 6, 10
	plane := make([]float64, rows*cols)
	for i := range plane {
		plane[i] = math.Sin(float64(i)*0.37) + float64(i%7)
	}
	back := InverseReal(Forward(plane, rows, cols))
	for i, v := range plane {
		assert.InDelta(t, v, back[i], 1e-9)
	}
}

func TestImpulseResponseIsFlat(t *testing.T) {
	psf := tensor.New(1, 1)
	psf.Data[0] = 1
	v, err := Response(psf, 4, 6)
	require.NoError(t, err)
	for _, h := range v {
		assert.InDelta(t, 1, real(h), 1e-12)
		assert.InDelta(t, 0, imag(h), 1e-12)
	}
}

func TestConvolveShiftsByImpulse(t *testing.T) {
	img := tensor.New(4, 5, 2)
	for i := range img.Data {
		img.Data[i] = float64(i)
	}
	// 3x3 kernel with its impulse one right of centre shifts the image right by one
	psf := tensor.New(3, 3)
	psf.Set(1, 2, 0, 1)
	res, err := Convolve(img, psf)
	require.NoError(t, err)
	require.True(t, res.SameShape(img))
	for c := 0; c < 2; c++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 5; x++ {
				assert.InDelta(t, img.At(y, (x+4)%5, c), res.At(y, x, c), 1e-9)
			}
		}
	}
}

func TestPowerOfConstant(t *testing.T) {
	plane := []float64{2, 2, 2, 2}
	p := Power(Forward(plane, 2, 2))
	assert.InDelta(t, 64, p[0], 1e-12)
	for _, v := range p[1:] {
		assert.InDelta(t, 0, v, 1e-12)
	}
}
