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
	"sort"

	"github.com/mlnoga/bm3dlight/internal/tensor"
	"gonum.org/v1/gonum/stat"
)

// Weights of the noise estimation kernel, a difference of two Laplacians
var enWeights = []float64{
	1, -2, 1,
	-2, 4, -2,
	1, -2, 1,
}

// Sum of squared weights; the kernel response to white noise of deviation s has deviation 6s
const enNorm = 6

// Estimates the deviation of additive white Gaussian noise on a natural image plane.
// From J. Immerkær, "Fast Noise Variance Estimation", Computer Vision and Image Understanding,
// Vol. 64, No. 2, pp. 300-302, Sep. 1996.
func EstimateNoise(data []float64, width int) float64 {
	height := len(data) / width
	if width < 3 || height < 3 {
		return 0
	}
	sum := 0.0
	for y := 1; y < height-1; y++ {
		rowSum := 0.0
		for x := 1; x < width-1; x++ {
			rowSum += math.Abs(laplace(data, width, y, x))
		}
		sum += rowSum
	}
	factor := math.Sqrt(0.5*math.Pi) / (enNorm * float64(width-2) * float64(height-2))
	return sum * factor
}

// Kernel response at the given interior pixel
func laplace(data []float64, width, y, x int) float64 {
	conv := 0.0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			conv += data[(y+dy)*width+x+dx] * enWeights[(dy+1)*3+dx+1]
		}
	}
	return conv
}

// Estimates the noise deviation of a plane by fitting a normal distribution to the
// histogram of kernel responses. Less biased than EstimateNoise on images with edges,
// at higher cost. Falls back to EstimateNoise if the fit fails
func EstimateNoiseHistogram(data []float64, width int, numBins int) float64 {
	height := len(data) / width
	if width < 3 || height < 3 {
		return 0
	}
	resp := make([]float64, 0, (width-2)*(height-2))
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			resp = append(resp, laplace(data, width, y, x))
		}
	}
	sort.Float64s(resp)
	lo := stat.Quantile(0.02, stat.Empirical, resp, nil)
	hi := stat.Quantile(0.98, stat.Empirical, resp, nil)
	if !(hi > lo) {
		return EstimateNoise(data, width)
	}
	bins := make([]int32, numBins)
	Histogram(resp, lo, hi, bins)
	_, stdDev, err := GetModeStdDevFromHistogram(bins, lo, hi)
	if err != nil || math.IsNaN(stdDev) || stdDev > hi-lo {
		return EstimateNoise(data, width)
	}
	return stdDev / enNorm
}

// Noise estimation methods
type EstimatorMode int

const (
	EstimatorImmerkaer EstimatorMode = iota // mean absolute Laplacian response
	EstimatorHistogram                      // normal fit to the Laplacian response histogram
)

// Estimates the noise deviation of each channel of an image
func EstimateNoiseChannels(img *tensor.Tensor, mode EstimatorMode) []float64 {
	res := make([]float64, img.Channels())
	for c := range res {
		if mode == EstimatorHistogram {
			res[c] = EstimateNoiseHistogram(img.Plane(c), img.Cols(), 256)
		} else {
			res[c] = EstimateNoise(img.Plane(c), img.Cols())
		}
	}
	return res
}
