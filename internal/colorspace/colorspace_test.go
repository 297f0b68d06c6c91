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


package colorspace

import (
	"errors"
	"math"
	"testing"

	"github.com/mlnoga/bm3dlight/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/mat"
)

func randomColorImage(rows, cols int, lo, hi float64) *tensor.Tensor {
	rng := fastrand.RNG{}
	rng.Seed(42)
	img := tensor.New(rows, cols, 3)
	for i := range img.Data {
		img.Data[i] = lo + (hi-lo)*float64(rng.Uint32n(1<<20))/float64(1<<20)
	}
	return img
}

func TestRoundTrip(t *testing.T) {
	for _, tr := range []Transform{OPP, YCbCr} {
		for _, rg := range [][2]float64{{0, 1}, {-300, 4000}, {0.2, 0.21}} {
			img := randomColorImage(17, 23, rg[0], rg[1])
			fwd, err := Forward(img, tr)
			require.NoError(t, err)
			back, err := Inverse(fwd.Image, tr, fwd.Max, fwd.Min)
			require.NoError(t, err)
			require.True(t, back.SameShape(img))
			for i, v := range img.Data {
				tol := 1e-9 * math.Max(1, math.Abs(v))
				if math.Abs(back.Data[i]-v) > tol {
					t.Fatalf("%s range %v: data[%d]=%g; want %g", tr.Name, rg, i, back.Data[i], v)
				}
			}
		}
	}
}

func TestForwardNormalizesToUnitRange(t *testing.T) {
	img := randomColorImage(8, 8, 0, 255)
	fwd, err := Forward(img, YCbCr)
	require.NoError(t, err)
	for c := 0; c < 3; c++ {
		min, max := fwd.Image.MinMax(c)
		assert.InDelta(t, 0, min, 1e-12)
		assert.InDelta(t, 1, max, 1e-12)
	}
}

func TestScaleVector(t *testing.T) {
	img := randomColorImage(8, 8, 0, 1)
	fwd, err := Forward(img, OPP)
	require.NoError(t, err)
	sumSq := []float64{1.0 / 3, 0.5, 0.375}
	for i, s := range sumSq {
		r := fwd.Max[i] - fwd.Min[i]
		assert.InDelta(t, s/(r*r), fwd.Scale[i], 1e-12)
	}
}

func TestInverseMatrices(t *testing.T) {
	// published opp inverse
	b := mat.NewDense(3, 3, []float64{1, 1, 2.0 / 3, 1, 0, -4.0 / 3, 1, -1, 2.0 / 3})
	assert.True(t, mat.EqualApprox(b, OPP.Inverse, 1e-12))

	for _, tr := range []Transform{OPP, YCbCr} {
		var id mat.Dense
		id.Mul(tr.Forward, tr.Inverse)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				want := 0.0
				if i == j {
					want = 1
				}
				assert.InDelta(t, want, id.At(i, j), 1e-12)
			}
		}
	}
}

func TestConstantImage(t *testing.T) {
	img := tensor.New(4, 4, 3)
	for i := range img.Data {
		img.Data[i] = 0.5
	}
	fwd, err := Forward(img, OPP)
	require.NoError(t, err)
	for _, v := range fwd.Image.Data {
		assert.False(t, math.IsNaN(v))
	}
	back, err := Inverse(fwd.Image, OPP, fwd.Max, fwd.Min)
	require.NoError(t, err)
	for _, v := range back.Data {
		assert.InDelta(t, 0.5, v, 1e-12)
	}
}

func TestRejectsNonColor(t *testing.T) {
	_, err := Forward(tensor.New(4, 4), OPP)
	assert.True(t, errors.Is(err, tensor.ErrInvalidShape))
	_, err = Forward(tensor.New(4, 4, 4), OPP)
	assert.True(t, errors.Is(err, tensor.ErrInvalidShape))
}

func TestByName(t *testing.T) {
	tr, err := ByName("YCbCr")
	require.NoError(t, err)
	assert.Equal(t, "YCbCr", tr.Name)
	_, err = ByName("hsv")
	assert.Error(t, err)
}
