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


package synth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

func TestGaussianMoments(t *testing.T) {
	g := NewGaussian(1)
	xs := make([]float64, 100000)
	for i := range xs {
		xs[i] = g.Next()
	}
	mean, std := stat.MeanStdDev(xs, nil)
	assert.InDelta(t, 0, mean, 0.02)
	assert.InDelta(t, 1, std, 0.02)
}

func TestAddNoiseDoesNotModifyInput(t *testing.T) {
	img := ColorPattern(16, 16)
	orig := img.Clone()
	noisy := AddNoise(img, []float64{0.1, 0.2, 0.3}, 3)
	assert.Equal(t, orig.Data, img.Data)
	assert.True(t, noisy.SameShape(img))
	assert.NotEqual(t, img.Data, noisy.Data)
}

func TestAddNoiseIsDeterministic(t *testing.T) {
	img := GrayPattern(8, 8)
	assert.Equal(t, AddNoise(img, []float64{0.1}, 5).Data, AddNoise(img, []float64{0.1}, 5).Data)
}

func TestPatternsInUnitRange(t *testing.T) {
	for _, img := range [][]float64{ColorPattern(32, 32).Data, GrayPattern(32, 32).Data} {
		for _, v := range img {
			assert.True(t, v >= 0 && v <= 1 && !math.IsNaN(v))
		}
	}
	assert.Equal(t, 2, GrayPattern(4, 6).Rank())
}
