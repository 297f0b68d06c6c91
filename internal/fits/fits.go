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


package fits

import (
	"fmt"

	"github.com/mlnoga/bm3dlight/internal/tensor"
)

const fitsBlockSize int = 2880 // Block size of FITS header and data units
const HeaderLineSize int = 80  // Line size of a FITS header
const bufLen int = 16 * 1024   // Buffer length for reading and writing data

// An image with FITS metadata.
// Standard here: https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf
// Primer here:   https://fits.gsfc.nasa.gov/fits_primer.html
type Image struct {
	ID       int    // Sequential ID number, for log output
	FileName string // Original file name, if any, for log output

	Header Header  // The header with all keys, values, comments, history entries etc.
	Bitpix int32   // Bits per pixel value from the header. Positive values are integral, negative floating
	Bzero  float64 // Zero offset. True pixel value is Bzero + Bscale * Data[i]
	Bscale float64 // Value scaler. True pixel value is Bzero + Bscale * Data[i]

	Data *tensor.Tensor // Pixel values as rows x cols[ x channels], with Bzero and Bscale applied
}

// Creates an image with empty header
func NewImage() *Image {
	return &Image{
		Header: NewHeader(),
		Bitpix: -64,
		Bscale: 1,
	}
}

// Creates an image wrapping the given tensor. Data is not copied
func NewImageFromTensor(t *tensor.Tensor, id int) *Image {
	i := NewImage()
	i.ID = id
	i.Data = t
	return i
}

// Creates an image with the same metadata as img and the given data
func NewImageFromImage(img *Image, t *tensor.Tensor) *Image {
	return &Image{
		ID:       img.ID,
		FileName: img.FileName,
		Header:   img.Header,
		Bitpix:   img.Bitpix,
		Bzero:    0,
		Bscale:   1,
		Data:     t,
	}
}

// FITS axis sizes, most quickly varying first: width, height[, channels]
func (f *Image) Naxisn() []int {
	s := f.Data.Shape
	res := []int{s[1], s[0]}
	if len(s) > 2 {
		res = append(res, s[2])
	}
	return res
}

func (f *Image) DimensionsToString() string {
	return f.Data.DimensionsToString()
}

// Minimum and maximum over all channels
func (f *Image) MinMax() (min, max float64) {
	min, max = f.Data.MinMax(0)
	for c := 1; c < f.Data.Channels(); c++ {
		cmin, cmax := f.Data.MinMax(c)
		if cmin < min {
			min = cmin
		}
		if cmax > max {
			max = cmax
		}
	}
	return min, max
}

func (f *Image) String() string {
	min, max := f.MinMax()
	return fmt.Sprintf("%s pixels, min %.4g max %.4g", f.DimensionsToString(), min, max)
}

// FITS header data
type Header struct {
	Bools    map[string]bool
	Ints     map[string]int32
	Floats   map[string]float64
	Strings  map[string]string
	Dates    map[string]string
	Comments []string
	History  []string
	End      bool
	Length   int32
}

func NewHeader() Header {
	return Header{
		Bools:    make(map[string]bool),
		Ints:     make(map[string]int32),
		Floats:   make(map[string]float64),
		Strings:  make(map[string]string),
		Dates:    make(map[string]string),
		Comments: make([]string, 0),
		History:  make([]string, 0),
		End:      false,
	}
}
