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
	"fmt"
	"math"

	"github.com/mlnoga/bm3dlight/internal/tensor"
	"gonum.org/v1/gonum/stat"
)

// Mean squared error between two tensors of the same geometry
func MSE(a, b *tensor.Tensor) (float64, error) {
	if !a.SameGeometry(b) {
		return 0, fmt.Errorf("%w: cannot compare %s with %s", tensor.ErrInvalidShape, a.DimensionsToString(), b.DimensionsToString())
	}
	sum := 0.0
	for i, v := range a.Data {
		d := v - b.Data[i]
		sum += d * d
	}
	return sum / float64(len(a.Data)), nil
}

// Peak signal to noise ratio in dB for the given peak value
func PSNR(a, b *tensor.Tensor, peak float64) (float64, error) {
	mse, err := MSE(a, b)
	if err != nil {
		return 0, err
	}
	if mse == 0 {
		return math.Inf(1), nil
	}
	return 10 * math.Log10(peak*peak/mse), nil
}

// Variance of the difference a-b, the energy of the error around its mean
func ErrorVariance(a, b *tensor.Tensor) (float64, error) {
	if !a.SameGeometry(b) {
		return 0, fmt.Errorf("%w: cannot compare %s with %s", tensor.ErrInvalidShape, a.DimensionsToString(), b.DimensionsToString())
	}
	diff := make([]float64, len(a.Data))
	for i, v := range a.Data {
		diff[i] = v - b.Data[i]
	}
	return stat.Variance(diff, nil), nil
}
