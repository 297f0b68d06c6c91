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
	"testing"
)

func TestValidate(t *testing.T) {
	tcs := []struct {
		Shape []int
		N     int
		Valid bool
	}{
		{[]int{4, 5}, 20, true},
		{[]int{4, 5, 3}, 60, true},
		{[]int{4, 5, 1}, 20, true},
		{[]int{20}, 20, false},
		{[]int{2, 2, 5, 1}, 20, false},
		{[]int{4, 5}, 19, false},
		{[]int{0, 5}, 0, false},
	}
	for _, tc := range tcs {
		tt := &Tensor{Shape: tc.Shape, Data: make([]float64, tc.N)}
		err := tt.Validate()
		if tc.Valid && err != nil {
			t.Errorf("shape %v: unexpected error %v", tc.Shape, err)
		}
		if !tc.Valid && !errors.Is(err, ErrInvalidShape) {
			t.Errorf("shape %v: got %v; want ErrInvalidShape", tc.Shape, err)
		}
	}
}

func TestPlanesLayout(t *testing.T) {
	tt := New(2, 3, 2)
	for c := 0; c < 2; c++ {
		for r := 0; r < 2; r++ {
			for x := 0; x < 3; x++ {
				tt.Set(r, x, c, float64(100*c+10*r+x))
			}
		}
	}
	if tt.Plane(1)[4] != 111 {
		t.Errorf("plane(1)[4]=%f; want 111", tt.Plane(1)[4])
	}
	if tt.At(1, 2, 0) != 12 {
		t.Errorf("at(1,2,0)=%f; want 12", tt.At(1, 2, 0))
	}
	if tt.DimensionsToString() != "2x3x2" {
		t.Errorf("dims=%s; want 2x3x2", tt.DimensionsToString())
	}
}

func TestAtLeast3DSharesData(t *testing.T) {
	tt := New(3, 3)
	v := tt.AtLeast3D()
	v.Set(1, 1, 0, 7)
	if tt.At(1, 1, 0) != 7 || v.Rank() != 3 || tt.Rank() != 2 {
		t.Errorf("view does not share data or rank is wrong")
	}
	if !v.SameGeometry(tt) || v.SameShape(tt) {
		t.Errorf("geometry/shape comparison wrong")
	}
}
