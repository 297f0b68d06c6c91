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


package stats

import (
	"math"
	"testing"

	"github.com/mlnoga/bm3dlight/internal/synth"
	"github.com/mlnoga/bm3dlight/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateNoise(t *testing.T) {
	tcs := []struct {
		sigma float64
	}{
		{0.01}, {0.05}, {0.2},
	}
	clean := synth.GrayPattern(128, 128)
	for _, tc := range tcs {
		noisy := synth.AddNoise(clean, []float64{tc.sigma}, 11)
		est := EstimateNoise(noisy.Data, noisy.Cols())
		assert.InDelta(t, tc.sigma, est, tc.sigma*0.15, "immerkaer sigma %g", tc.sigma)
		est = EstimateNoiseHistogram(noisy.Data, noisy.Cols(), 256)
		assert.InDelta(t, tc.sigma, est, tc.sigma*0.2, "histogram sigma %g", tc.sigma)
	}
}

func TestEstimateNoiseChannels(t *testing.T) {
	noisy := synth.AddNoise(synth.ColorPattern(96, 96), []float64{0.02, 0.05, 0.1}, 2)
	for _, mode := range []EstimatorMode{EstimatorImmerkaer, EstimatorHistogram} {
		est := EstimateNoiseChannels(noisy, mode)
		require.Len(t, est, 3)
		assert.Less(t, est[0], est[1])
		assert.Less(t, est[1], est[2])
	}
}

func TestEstimateNoiseTiny(t *testing.T) {
	assert.Equal(t, 0.0, EstimateNoise([]float64{1, 2, 3, 4}, 2))
}

func TestHistogramFit(t *testing.T) {
	// bins of a normal distribution with mode 10 and deviation 2
	min, max := 0.0, 20.0
	bins := make([]int32, 101)
	w := (max - min) / 100
	for i := range bins {
		x := min + (float64(i)+0.5)*w
		bins[i] = int32(10000 * math.Exp(-0.5*(x-10)*(x-10)/4))
	}
	mode, std, err := GetModeStdDevFromHistogram(bins, min, max)
	require.NoError(t, err)
	assert.InDelta(t, 10, mode, 0.1)
	assert.InDelta(t, 2, std, 0.1)
}

func TestGetPeakAtLastBin(t *testing.T) {
	x, y := GetPeak([]int32{1, 2, 5}, 0, 2)
	assert.InDelta(t, 2.5, x, 1e-12)
	assert.Equal(t, 5.0, y)
}

func TestMetrics(t *testing.T) {
	a, _ := tensor.FromData([]float64{0, 0, 0, 0}, 2, 2)
	b, _ := tensor.FromData([]float64{1, 1, 1, 1}, 2, 2, 1)
	mse, err := MSE(a, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, mse)
	psnr, err := PSNR(a, b, 10)
	require.NoError(t, err)
	assert.InDelta(t, 20, psnr, 1e-12)
	v, err := ErrorVariance(a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	inf, _ := PSNR(a, a, 1)
	assert.True(t, math.IsInf(inf, 1))
	_, err = MSE(a, tensor.New(2, 3))
	assert.ErrorIs(t, err, tensor.ErrInvalidShape)
}
