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

	"github.com/mlnoga/bm3dlight/internal/tensor"
	"github.com/valyala/fastrand"
)

// Source of normally distributed values. Not safe for concurrent use
type Gaussian struct {
	rng   fastrand.RNG
	spare float64
	has   bool
}

func NewGaussian(seed uint32) *Gaussian {
	g := &Gaussian{}
	g.rng.Seed(seed)
	return g
}

// Uniform value in (0,1]
func (g *Gaussian) uniform() float64 {
	return (float64(g.rng.Uint32n(1<<30)) + 1) / (1 << 30)
}

// Standard normal value, using the Box-Muller transform
func (g *Gaussian) Next() float64 {
	if g.has {
		g.has = false
		return g.spare
	}
	r := math.Sqrt(-2 * math.Log(g.uniform()))
	theta := 2 * math.Pi * g.uniform()
	g.spare, g.has = r*math.Sin(theta), true
	return r * math.Cos(theta)
}

// Returns a copy of img with white Gaussian noise of the given deviation per channel added.
// A single deviation applies to all channels
func AddNoise(img *tensor.Tensor, sigmas []float64, seed uint32) *tensor.Tensor {
	g := NewGaussian(seed)
	res := img.Clone()
	for c := 0; c < res.Channels(); c++ {
		s := sigmas[0]
		if len(sigmas) > 1 {
			s = sigmas[c]
		}
		p := res.Plane(c)
		for i := range p {
			p[i] += s * g.Next()
		}
	}
	return res
}

// One periodic component of a synthetic image: integer cycles per image along rows and columns
type Wave struct {
	FY, FX    int
	Amplitude float64
	Phase     float64 // radians
}

// Creates a synthetic image from a mean per channel plus waves per channel. Integer
// frequencies make the image periodic, so its spectrum is exactly sparse
func Waves(rows, cols int, means []float64, waves [][]Wave) *tensor.Tensor {
	img := tensor.New(rows, cols, len(means))
	for c, m := range means {
		p := img.Plane(c)
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				v := m
				for _, w := range waves[c] {
					arg := 2*math.Pi*(float64(w.FY*y)/float64(rows)+float64(w.FX*x)/float64(cols)) + w.Phase
					v += w.Amplitude * math.Sin(arg)
				}
				p[y*cols+x] = v
			}
		}
	}
	return img
}

// A smooth color test image in [0,1] with distinct content per channel
func ColorPattern(rows, cols int) *tensor.Tensor {
	return Waves(rows, cols, []float64{0.5, 0.45, 0.55}, [][]Wave{
		{{FY: 1, FX: 2, Amplitude: 0.2}, {FY: 0, FX: 5, Amplitude: 0.1, Phase: 0.3}},
		{{FY: 3, FX: 1, Amplitude: 0.15, Phase: 1}, {FY: 1, FX: 2, Amplitude: 0.1}},
		{{FY: 2, FX: 0, Amplitude: 0.2, Phase: 2}, {FY: 4, FX: 3, Amplitude: 0.08}},
	})
}

// A smooth grayscale test image in [0,1]
func GrayPattern(rows, cols int) *tensor.Tensor {
	img := Waves(rows, cols, []float64{0.5}, [][]Wave{
		{{FY: 1, FX: 2, Amplitude: 0.2}, {FY: 3, FX: 1, Amplitude: 0.1, Phase: 1}, {FY: 0, FX: 4, Amplitude: 0.1}},
	})
	res, _ := img.Reshape(rows, cols)
	return res
}
