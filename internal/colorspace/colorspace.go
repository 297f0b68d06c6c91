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
	"fmt"
	"strings"

	"github.com/mlnoga/bm3dlight/internal/tensor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// A fixed linear 3x3 color transform. Inverse is always the exact matrix inverse of Forward
type Transform struct {
	Name    string
	Forward *mat.Dense
	Inverse *mat.Dense
}

// Opponent color space: mean, red-blue difference, green vs magenta
var OPP = mustTransform("opp", []float64{
	1.0 / 3, 1.0 / 3, 1.0 / 3,
	0.5, 0, -0.5,
	0.25, -0.5, 0.25,
})

// ITU-R BT.601 YCbCr, without offsets
var YCbCr = mustTransform("YCbCr", []float64{
	0.299, 0.587, 0.114,
	-0.168737, -0.331263, 0.5,
	0.5, -0.418688, -0.081313,
})

// Creates a transform from a row-major 3x3 forward matrix
func NewTransform(name string, forward []float64) (Transform, error) {
	if len(forward) != 9 {
		return Transform{}, fmt.Errorf("color transform %s: need 9 matrix entries, have %d", name, len(forward))
	}
	a := mat.NewDense(3, 3, append([]float64(nil), forward...))
	var b mat.Dense
	if err := b.Inverse(a); err != nil {
		return Transform{}, fmt.Errorf("color transform %s: %w", name, err)
	}
	return Transform{Name: name, Forward: a, Inverse: &b}, nil
}

func mustTransform(name string, forward []float64) Transform {
	t, err := NewTransform(name, forward)
	if err != nil {
		panic(err)
	}
	return t
}

// Looks up a built-in transform, case insensitive
func ByName(name string) (Transform, error) {
	switch strings.ToLower(name) {
	case "opp", "opponent", "":
		return OPP, nil
	case "ycbcr", "yuv":
		return YCbCr, nil
	}
	return Transform{}, fmt.Errorf("unknown color transform '%s', want opp or YCbCr", name)
}

// Result of a forward transform, with the bookkeeping needed to invert it
// and to rescale noise descriptions into the transformed domain
type Forwarded struct {
	Image  *tensor.Tensor // transformed channels, each normalized to [0,1]
	Max    []float64      // per-channel maximum before normalization
	Min    []float64      // per-channel minimum before normalization
	Scale  []float64      // sum_j A_ij^2 / (max_i-min_i)^2, rescales 1-D noise power
	Matrix *mat.Dense     // the forward matrix A
}

// Normalization range of channel i. A constant channel has range 1
func (f *Forwarded) Range(i int) float64 {
	return normRange(f.Max[i], f.Min[i])
}

func normRange(max, min float64) float64 {
	if max-min == 0 {
		return 1
	}
	return max - min
}

// Multiplies each pixel by the transposed forward matrix, then normalizes each channel to [0,1]
func Forward(img *tensor.Tensor, t Transform) (*Forwarded, error) {
	if err := checkColor(img); err != nil {
		return nil, err
	}
	x := toPixelMatrix(img)
	var o mat.Dense
	o.Mul(x, t.Forward.T())

	res := &Forwarded{
		Image:  tensor.New(img.Shape...),
		Max:    make([]float64, 3),
		Min:    make([]float64, 3),
		Scale:  make([]float64, 3),
		Matrix: t.Forward,
	}
	col := make([]float64, img.Pixels())
	for i := 0; i < 3; i++ {
		mat.Col(col, i, &o)
		res.Max[i], res.Min[i] = floats.Max(col), floats.Min(col)
		r := res.Range(i)
		dest := res.Image.Plane(i)
		for p, v := range col {
			dest[p] = (v - res.Min[i]) / r
		}
		row := mat.Row(nil, i, t.Forward)
		res.Scale[i] = floats.Dot(row, row) / (r * r)
	}
	return res, nil
}

// Undoes the normalization with the given per-channel max and min, then multiplies each
// pixel by the transposed inverse matrix
func Inverse(img *tensor.Tensor, t Transform, max, min []float64) (*tensor.Tensor, error) {
	if err := checkColor(img); err != nil {
		return nil, err
	}
	if len(max) != 3 || len(min) != 3 {
		return nil, fmt.Errorf("%w: need 3 max and min values, have %d and %d", tensor.ErrInvalidShape, len(max), len(min))
	}
	y := toPixelMatrix(img)
	for i := 0; i < 3; i++ {
		r, m := max[i]-min[i], min[i]
		for p := 0; p < img.Pixels(); p++ {
			y.Set(p, i, y.At(p, i)*r+m)
		}
	}
	var x mat.Dense
	x.Mul(y, t.Inverse.T())

	res := tensor.New(img.Shape...)
	for i := 0; i < 3; i++ {
		mat.Col(res.Plane(i), i, &x)
	}
	return res, nil
}

func checkColor(img *tensor.Tensor) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if img.Rank() != 3 || img.Channels() != 3 {
		return fmt.Errorf("%w: color transform needs rows x cols x 3, have %s", tensor.ErrInvalidShape, img.DimensionsToString())
	}
	return nil
}

// Reshapes planar image data into a pixels x 3 matrix
func toPixelMatrix(img *tensor.Tensor) *mat.Dense {
	x := mat.NewDense(img.Pixels(), 3, nil)
	for i := 0; i < 3; i++ {
		x.SetCol(i, img.Plane(i))
	}
	return x
}
