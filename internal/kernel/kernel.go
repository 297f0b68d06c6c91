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


package kernel

import (
	"fmt"
	"math"

	"github.com/mlnoga/bm3dlight/internal/tensor"
	"gonum.org/v1/gonum/floats"
)

// Creates a rows x cols Gaussian blur kernel with deviations std along rows and
// std2 along columns, normalized to sum 1. A negative std2 means std2=std
func Gaussian(rows, cols int, std, std2 float64) (*tensor.Tensor, error) {
	if std2 < 0 {
		std2 = std
	}
	if std <= 0 || std2 <= 0 {
		return nil, fmt.Errorf("gaussian kernel needs positive deviations, have %g and %g", std, std2)
	}
	k, err := newKernel(rows, cols)
	if err != nil {
		return nil, err
	}
	cy, cx := float64(rows-1)/2, float64(cols-1)/2
	for y := 0; y < rows; y++ {
		dy := (float64(y) - cy) / std
		for x := 0; x < cols; x++ {
			dx := (float64(x) - cx) / std2
			k.Data[y*cols+x] = math.Exp(-0.5 * (dy*dy + dx*dx))
		}
	}
	return normalize(k)
}

// Creates a size x size box blur kernel, normalized to sum 1
func Box(size int) (*tensor.Tensor, error) {
	k, err := newKernel(size, size)
	if err != nil {
		return nil, err
	}
	for i := range k.Data {
		k.Data[i] = 1
	}
	return normalize(k)
}

// Creates a linear motion blur kernel of the given length along the given angle
// in degrees, counter-clockwise from the x axis, normalized to sum 1
func Motion(length int, angle float64) (*tensor.Tensor, error) {
	if length%2 == 0 {
		length++
	}
	k, err := newKernel(length, length)
	if err != nil {
		return nil, err
	}
	c := float64(length-1) / 2
	rad := angle * math.Pi / 180
	dx, dy := math.Cos(rad), -math.Sin(rad)
	steps := 4 * length
	for s := 0; s <= steps; s++ {
		t := (float64(s)/float64(steps) - 0.5) * float64(length-1)
		x := int(math.Round(c + t*dx))
		y := int(math.Round(c + t*dy))
		k.Data[y*length+x] = 1
	}
	return normalize(k)
}

// Creates a rows x cols kernel with a single unit impulse at its centre
func Impulse(rows, cols int) (*tensor.Tensor, error) {
	k, err := newKernel(rows, cols)
	if err != nil {
		return nil, err
	}
	k.Set(int(math.RoundToEven(float64(rows-1)/2)), int(math.RoundToEven(float64(cols-1)/2)), 0, 1)
	return k, nil
}

func newKernel(rows, cols int) (*tensor.Tensor, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: kernel size %dx%d", tensor.ErrInvalidShape, rows, cols)
	}
	return tensor.New(rows, cols), nil
}

func normalize(k *tensor.Tensor) (*tensor.Tensor, error) {
	sum := floats.Sum(k.Data)
	if sum == 0 {
		return nil, fmt.Errorf("kernel %s sums to zero", k.DimensionsToString())
	}
	floats.Scale(1/sum, k.Data)
	return k, nil
}
