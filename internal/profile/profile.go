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

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Returned for unknown preset names and for parameter bundles that cannot be used
var ErrInvalidProfile = errors.New("invalid profile")

// Filtering parameters in pixel units, as a user would specify them.
// A Profile is a plain value; copies never share state.
type Profile struct {
	FilterStrength float64 `json:"filterStrength"` // multiplier on the noise deviation

	TransformHT       string `json:"transformHT"`       // 2-D block transform for hard thresholding
	TransformWiener   string `json:"transformWiener"`   // 2-D block transform for Wiener filtering
	TransformNonlocal string `json:"transformNonlocal"` // transform along the stack dimension

	NF              int     `json:"nf"`              // domain size for noise statistics of colored PSDs
	K               int     `json:"k"`               // number of PSD components considered
	DenoiseResidual bool    `json:"denoiseResidual"` // refilter the hard thresholding residual
	ResidualThr     float64 `json:"residualThr"`     // threshold for residual refiltering
	MaxPadSize      int     `json:"maxPadSize"`      // 0 for automatic padding
	Gamma           float64 `json:"gamma"`           // block matching correction for correlated noise

	BlockSizeHT    int     `json:"blockSizeHT"`
	StepHT         int     `json:"stepHT"`
	MaxStackHT     int     `json:"maxStackHT"`     // 3-D stack size limit
	SearchWindowHT int     `json:"searchWindowHT"` // full search window width in pixels
	TauMatch       float64 `json:"tauMatch"`       // similarity threshold, for 0..255 data
	LambdaThr      float64 `json:"lambdaThr"`      // hard threshold in multiples of sigma
	Mu2            float64 `json:"mu2"`
	LambdaThrRe    float64 `json:"lambdaThrRe"` // hard threshold for residual refiltering
	Mu2Re          float64 `json:"mu2Re"`
	Beta           float64 `json:"beta"` // Kaiser window parameter

	BlockSizeWiener    int     `json:"blockSizeWiener"`
	StepWiener         int     `json:"stepWiener"`
	MaxStackWiener     int     `json:"maxStackWiener"`
	SearchWindowWiener int     `json:"searchWindowWiener"`
	TauMatchWiener     float64 `json:"tauMatchWiener"`
	BetaWiener         float64 `json:"betaWiener"`

	DecLevel   int     `json:"decLevel"`   // wavelet decomposition level of the stack transform
	Sharpen    float64 `json:"sharpen"`    // alpha-rooting coefficient, 1=no sharpening
	NumThreads int     `json:"numThreads"` // 0=automatic
}

// Preset names
const (
	Normal          = "normal"
	Refiltering     = "refiltering"
	VeryNoisy       = "very-noisy"
	VeryNoisyLegacy = "very-noisy-legacy"
	HighQuality     = "high-quality"
	Deblurring      = "deblurring"
	LowComplexity   = "low-complexity"
)

// Short names used by the original BM3D reference library
var aliases = map[string]string{
	"":         Normal,
	"default":  Normal,
	"np":       Normal,
	"refilter": Refiltering,
	"vn":       VeryNoisy,
	"vn_old":   VeryNoisyLegacy,
	"high":     HighQuality,
	"deb":      Deblurring,
	"lc":       LowComplexity,
}

var presets = map[string]func() Profile{
	Normal:          NewNormal,
	Refiltering:     NewRefiltering,
	VeryNoisy:       NewVeryNoisy,
	VeryNoisyLegacy: NewVeryNoisyLegacy,
	HighQuality:     NewHighQuality,
	Deblurring:      NewDeblurring,
	LowComplexity:   NewLowComplexity,
}

// Default parameters for normal noise levels
func NewNormal() Profile {
	return Profile{
		FilterStrength:    1,
		TransformHT:       "bior1.5",
		TransformWiener:   "dct",
		TransformNonlocal: "haar",
		NF:                32,
		K:                 4,
		DenoiseResidual:   false,
		ResidualThr:       3,
		MaxPadSize:        0,
		Gamma:             3,

		BlockSizeHT:    8,
		StepHT:         3,
		MaxStackHT:     16,
		SearchWindowHT: 39,
		TauMatch:       3000,
		LambdaThr:      2.7,
		Mu2:            1,
		LambdaThrRe:    2.86,
		Mu2Re:          1,
		Beta:           2,

		BlockSizeWiener:    8,
		StepWiener:         3,
		MaxStackWiener:     32,
		SearchWindowWiener: 39,
		TauMatchWiener:     400,
		BetaWiener:         2,

		DecLevel:   0,
		Sharpen:    1,
		NumThreads: 0,
	}
}

// Normal parameters with refiltering of the hard thresholding residual
func NewRefiltering() Profile {
	p := NewNormal()
	p.DenoiseResidual = true
	return p
}

func NewVeryNoisy() Profile {
	p := NewNormal()
	p.TransformHT = "dct"
	p.StepHT = 4
	p.LambdaThr = 2.8
	p.BlockSizeWiener = 11
	p.StepWiener = 6
	p.MaxStackWiener = 64
	p.TauMatchWiener = 3500
	return p
}

// Very noisy parameters of earlier library versions
func NewVeryNoisyLegacy() Profile {
	p := NewNormal()
	p.TransformHT = "dct"
	p.BlockSizeHT = 12
	p.StepHT = 4
	p.MaxStackHT = 16
	p.TauMatch = 5000
	p.LambdaThr = 2.8
	p.BlockSizeWiener = 11
	p.StepWiener = 6
	p.MaxStackWiener = 32
	p.TauMatchWiener = 3500
	return p
}

// Denser block grid at higher computational cost
func NewHighQuality() Profile {
	p := NewNormal()
	p.StepHT = 2
	p.StepWiener = 2
	p.Beta = 2.5
	p.BetaWiener = 1.5
	return p
}

// Parameters for the filtering stages of regularized deconvolution
func NewDeblurring() Profile {
	p := NewNormal()
	p.TransformHT = "dst"
	p.LambdaThr = 2.9
	p.Mu2 = 1.0
	p.StepWiener = 2
	p.MaxStackWiener = 32
	p.TauMatchWiener = 400
	return p
}

// Sparser block grid and smaller search windows for speed
func NewLowComplexity() Profile {
	p := NewNormal()
	p.StepHT = 6
	p.SearchWindowHT = 25
	p.StepWiener = 5
	p.MaxStackWiener = 16
	p.SearchWindowWiener = 25
	return p
}

// Sorted list of preset names
func Names() []string {
	names := lo.Keys(presets)
	sort.Strings(names)
	return names
}

// Reference to a profile: either a preset name, or a fully custom bundle
type Ref struct {
	Name   string
	Custom *Profile
}

func Named(name string) Ref { return Ref{Name: name} }

func Custom(p Profile) Ref { return Ref{Custom: &p} }

func (r Ref) String() string {
	if r.Custom != nil {
		return "custom"
	}
	if r.Name == "" {
		return Normal
	}
	return r.Name
}

// Resolves a reference into a concrete profile. Custom profiles are copied, so
// later changes by the caller do not affect the result
func Resolve(r Ref) (Profile, error) {
	if r.Custom != nil {
		p := *r.Custom
		if err := p.Validate(); err != nil {
			return Profile{}, err
		}
		return p, nil
	}
	name := strings.ToLower(strings.TrimSpace(r.Name))
	if a, ok := aliases[name]; ok {
		name = a
	}
	factory, ok := presets[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: unknown preset '%s', want one of %s", ErrInvalidProfile, r.Name, strings.Join(Names(), ", "))
	}
	return factory(), nil
}

// Checks that sizes which the engine divides by or iterates over are positive
func (p *Profile) Validate() error {
	sizes := []lo.Entry[string, int]{
		{Key: "blockSizeHT", Value: p.BlockSizeHT},
		{Key: "stepHT", Value: p.StepHT},
		{Key: "maxStackHT", Value: p.MaxStackHT},
		{Key: "blockSizeWiener", Value: p.BlockSizeWiener},
		{Key: "stepWiener", Value: p.StepWiener},
		{Key: "maxStackWiener", Value: p.MaxStackWiener},
	}
	if bad, ok := lo.Find(sizes, func(e lo.Entry[string, int]) bool { return e.Value <= 0 }); ok {
		return fmt.Errorf("%w: %s must be positive, is %d", ErrInvalidProfile, bad.Key, bad.Value)
	}
	if p.SearchWindowHT < 0 || p.SearchWindowWiener < 0 || p.NumThreads < 0 {
		return fmt.Errorf("%w: negative search window or thread count", ErrInvalidProfile)
	}
	return nil
}
