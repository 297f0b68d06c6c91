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


package tensor

import (
	"errors"
	"fmt"
	"strings"
)

// Returned when an image or PSD does not have rank 2 or 3, or when sizes disagree
var ErrInvalidShape = errors.New("invalid shape")

// A 2-D or 3-D image of float64 values. Shape is (rows, cols[, channels]).
// Data holds the channel planes back to back, each plane in row-major order,
// similar to the NAXIS3 layout of a FITS cube. Rank 2 implies a single channel.
type Tensor struct {
	Shape []int
	Data  []float64
}

// Creates a zero-filled tensor of the given shape. Shape is deep copied
func New(shape ...int) *Tensor {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n < 0 {
		n = 0
	}
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, n),
	}
}

// Creates a tensor from given shape and data. Data is not copied
func FromData(data []float64, shape ...int) (*Tensor, error) {
	t := &Tensor{Shape: append([]int(nil), shape...), Data: data}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Creates a tensor of rank 3 from a list of equally sized channel planes. Planes are copied
func FromPlanes(rows, cols int, planes [][]float64) *Tensor {
	t := New(rows, cols, len(planes))
	for c, p := range planes {
		copy(t.Plane(c), p)
	}
	return t
}

// Checks that the tensor has rank 2 or 3, positive sizes and matching data length
func (t *Tensor) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil tensor", ErrInvalidShape)
	}
	if len(t.Shape) != 2 && len(t.Shape) != 3 {
		return fmt.Errorf("%w: rank %d, want 2 or 3", ErrInvalidShape, len(t.Shape))
	}
	n := 1
	for _, s := range t.Shape {
		if s <= 0 {
			return fmt.Errorf("%w: non-positive dimension in %s", ErrInvalidShape, t.DimensionsToString())
		}
		n *= s
	}
	if n != len(t.Data) {
		return fmt.Errorf("%w: %s needs %d values, have %d", ErrInvalidShape, t.DimensionsToString(), n, len(t.Data))
	}
	return nil
}

func (t *Tensor) Rank() int { return len(t.Shape) }
func (t *Tensor) Rows() int { return t.Shape[0] }
func (t *Tensor) Cols() int { return t.Shape[1] }

// Number of channels; 1 for rank 2
func (t *Tensor) Channels() int {
	if len(t.Shape) < 3 {
		return 1
	}
	return t.Shape[2]
}

// Number of pixels per channel plane
func (t *Tensor) Pixels() int { return t.Shape[0] * t.Shape[1] }

// Returns the plane of channel c, sharing the underlying data
func (t *Tensor) Plane(c int) []float64 {
	p := t.Pixels()
	return t.Data[c*p : (c+1)*p]
}

// Returns all channel planes, sharing the underlying data
func (t *Tensor) Planes() [][]float64 {
	planes := make([][]float64, t.Channels())
	for c := range planes {
		planes[c] = t.Plane(c)
	}
	return planes
}

func (t *Tensor) At(row, col, c int) float64 {
	return t.Data[c*t.Pixels()+row*t.Shape[1]+col]
}

func (t *Tensor) Set(row, col, c int, v float64) {
	t.Data[c*t.Pixels()+row*t.Shape[1]+col] = v
}

// Deep copy
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float64(nil), t.Data...),
	}
}

// Returns a tensor sharing the data with the given shape. The number of values must match
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	return FromData(t.Data, shape...)
}

// Returns a rank 3 view on the same data; rank 2 gains a trailing channel axis of size 1
func (t *Tensor) AtLeast3D() *Tensor {
	if len(t.Shape) == 3 {
		return t
	}
	return &Tensor{Shape: []int{t.Shape[0], t.Shape[1], 1}, Data: t.Data}
}

// True if both tensors have identical shapes
func (t *Tensor) SameShape(o *Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i, s := range t.Shape {
		if o.Shape[i] != s {
			return false
		}
	}
	return true
}

// True if both tensors have the same number of rows, columns and channels, ignoring rank
func (t *Tensor) SameGeometry(o *Tensor) bool {
	return t.Rows() == o.Rows() && t.Cols() == o.Cols() && t.Channels() == o.Channels()
}

// Minimum and maximum value of the given channel
func (t *Tensor) MinMax(c int) (min, max float64) {
	p := t.Plane(c)
	min, max = p[0], p[0]
	for _, v := range p[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func (t *Tensor) DimensionsToString() string {
	b := strings.Builder{}
	for i, s := range t.Shape {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", s)
		} else {
			fmt.Fprintf(&b, "%d", s)
		}
	}
	return b.String()
}
