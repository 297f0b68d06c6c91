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


package spectrum

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mlnoga/bm3dlight/internal/tensor"
)

// Limits the number of goroutines the FFT routines use. 0 means one per CPU
func SetWorkers(n int) {
	fft.SetWorkerPoolSize(n)
}

// Unnormalized 2-D DFT of a row-major plane
func Forward(plane []float64, rows, cols int) [][]complex128 {
	return fft.FFT2Real(ToGrid(plane, rows, cols))
}

// Inverse 2-D DFT, normalized by 1/(rows*cols), keeping only the real part
func InverseReal(spec [][]complex128) []float64 {
	grid := fft.IFFT2(spec)
	rows, cols := len(grid), len(grid[0])
	res := make([]float64, rows*cols)
	for y, row := range grid {
		for x, v := range row {
			res[y*cols+x] = real(v)
		}
	}
	return res
}

// Splits a row-major plane into rows. The rows share the plane's memory
func ToGrid(plane []float64, rows, cols int) [][]float64 {
	grid := make([][]float64, rows)
	for y := range grid {
		grid[y] = plane[y*cols : (y+1)*cols]
	}
	return grid
}

// Squared magnitude of a spectrum, as a row-major plane
func Power(spec [][]complex128) []float64 {
	rows, cols := len(spec), len(spec[0])
	res := make([]float64, rows*cols)
	for y, row := range spec {
		for x, v := range row {
			re, im := real(v), imag(v)
			res[y*cols+x] = re*re + im*im
		}
	}
	return res
}

// Multiplies a spectrum in place with a row-major complex transfer function
func Apply(spec [][]complex128, h []complex128) {
	cols := len(spec[0])
	for y, row := range spec {
		for x := range row {
			row[x] *= h[y*cols+x]
		}
	}
}

// Pads a rank 2 point spread function with zeros to rows x cols, then rolls it so
// its centre moves to the origin. The centre of an n pixel axis is (n-1)/2, rounded
// half to even. Returns the row-major padded plane
func PadPSF(psf *tensor.Tensor, rows, cols int) ([]float64, error) {
	if err := psf.Validate(); err != nil {
		return nil, err
	}
	if psf.Rank() != 2 && psf.Channels() != 1 {
		return nil, fmt.Errorf("%w: point spread function must be 2-D, is %s", tensor.ErrInvalidShape, psf.DimensionsToString())
	}
	pr, pc := psf.Rows(), psf.Cols()
	if pr > rows || pc > cols {
		return nil, fmt.Errorf("%w: point spread function %s larger than image %dx%d", tensor.ErrInvalidShape, psf.DimensionsToString(), rows, cols)
	}
	cy := int(math.RoundToEven(float64(pr-1) / 2))
	cx := int(math.RoundToEven(float64(pc-1) / 2))
	res := make([]float64, rows*cols)
	for y := 0; y < pr; y++ {
		ty := mod(y-cy, rows)
		for x := 0; x < pc; x++ {
			tx := mod(x-cx, cols)
			res[ty*cols+tx] = psf.Data[y*pc+x]
		}
	}
	return res, nil
}

// Frequency response of a centred point spread function at the given image size
func Response(psf *tensor.Tensor, rows, cols int) ([]complex128, error) {
	padded, err := PadPSF(psf, rows, cols)
	if err != nil {
		return nil, err
	}
	return Flatten(Forward(padded, rows, cols)), nil
}

// Row-major copy of a 2-D spectrum
func Flatten(spec [][]complex128) []complex128 {
	rows, cols := len(spec), len(spec[0])
	res := make([]complex128, rows*cols)
	for y, row := range spec {
		copy(res[y*cols:(y+1)*cols], row)
	}
	return res
}

// Circular convolution of every channel of img with a centred point spread function.
// Returns a new tensor of the same shape
func Convolve(img, psf *tensor.Tensor) (*tensor.Tensor, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	rows, cols := img.Rows(), img.Cols()
	v, err := Response(psf, rows, cols)
	if err != nil {
		return nil, err
	}
	res := tensor.New(img.Shape...)
	for c := 0; c < img.Channels(); c++ {
		spec := Forward(img.Plane(c), rows, cols)
		Apply(spec, v)
		copy(res.Plane(c), InverseReal(spec))
	}
	return res, nil
}

// Magnitude of a complex number squared
func Abs2(v complex128) float64 {
	re, im := real(v), imag(v)
	return re*re + im*im
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}
