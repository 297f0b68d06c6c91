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


package profile

// Filtering parameters in the units the collaborative filtering engine works in.
// 2-D sizes are lifted to three dimensions with unit depth, search windows are
// one-sided radii, and matching thresholds are normalized by block area.
// The spectral reference engine reads FilterStrength, LambdaThr, LambdaThrRe,
// DenoiseResidual, Mu2, Sharpen and NumThreads. The other fields, among them the
// transform names, K, Gamma and DecLevel, are passed through for block matching engines.
type EngineParams struct {
	FilterStrength float64

	TransformLocalHT     string
	TransformLocalWiener string
	TransformNonlocal    string

	NF              [3]int
	K               int
	DenoiseResidual bool
	ResidualThr     float64
	MaxPadSize      int
	Gamma           float64

	BlockSizeHT    [3]int
	StepHT         [3]int
	MaxStackHT     int
	SearchWindowHT [3]int
	TauMatch       float64
	LambdaThr      float64
	Mu2            float64
	LambdaThrRe    float64
	Mu2Re          float64
	Beta           float64

	BlockSizeWiener    [3]int
	StepWiener         [3]int
	MaxStackWiener     int
	SearchWindowWiener [3]int
	TauMatchWiener     float64
	BetaWiener         float64

	DecLevel   int
	Sharpen    float64
	NumThreads int
}

// Converts a profile from pixel units into engine units. Pure and total
func ToEngineParameters(p Profile) EngineParams {
	return EngineParams{
		FilterStrength: p.FilterStrength,

		TransformLocalHT:     p.TransformHT,
		TransformLocalWiener: p.TransformWiener,
		TransformNonlocal:    p.TransformNonlocal,

		NF:              lift(p.NF),
		K:               p.K,
		DenoiseResidual: p.DenoiseResidual,
		ResidualThr:     p.ResidualThr,
		MaxPadSize:      p.MaxPadSize,
		Gamma:           p.Gamma,

		BlockSizeHT:    lift(p.BlockSizeHT),
		StepHT:         lift(p.StepHT),
		MaxStackHT:     p.MaxStackHT,
		SearchWindowHT: lift(p.SearchWindowHT / 2),
		TauMatch:       p.TauMatch * float64(p.BlockSizeHT*p.BlockSizeHT) / (255 * 255),
		LambdaThr:      p.LambdaThr,
		Mu2:            p.Mu2,
		LambdaThrRe:    p.LambdaThrRe,
		Mu2Re:          p.Mu2Re,
		Beta:           p.Beta,

		BlockSizeWiener:    lift(p.BlockSizeWiener),
		StepWiener:         lift(p.StepWiener),
		MaxStackWiener:     p.MaxStackWiener,
		SearchWindowWiener: lift(p.SearchWindowWiener / 2),
		TauMatchWiener:     p.TauMatchWiener * float64(p.BlockSizeWiener*p.BlockSizeWiener) / (255 * 255),
		BetaWiener:         p.BetaWiener,

		DecLevel:   p.DecLevel,
		Sharpen:    p.Sharpen,
		NumThreads: p.NumThreads,
	}
}

// 2-D filtering is the 3-D case with unit depth
func lift(n int) [3]int { return [3]int{n, n, 1} }
