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


package denoise

import (
	"encoding/json"
	"fmt"

	"github.com/mlnoga/bm3dlight/internal/fits"
	"github.com/mlnoga/bm3dlight/internal/ops"
	"github.com/mlnoga/bm3dlight/internal/spectrum"
	"github.com/mlnoga/bm3dlight/internal/stats"
	"github.com/mlnoga/bm3dlight/internal/synth"
)

// Estimates the noise deviation of each channel. Passes the image on unchanged,
// with the estimates recorded as NOISE<c> header values
type OpEstimateNoise struct {
	ops.OpUnaryBase
	Estimator string `json:"estimator"` // immerkaer or histogram
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpEstimateNoiseDefault() }) } // register the operator for JSON decoding

func NewOpEstimateNoiseDefault() *OpEstimateNoise { return NewOpEstimateNoise("immerkaer") }

func NewOpEstimateNoise(estimator string) *OpEstimateNoise {
	op := OpEstimateNoise{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "estimateNoise", Active: true}},
		Estimator:   estimator,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpEstimateNoise) UnmarshalJSON(data []byte) error {
	type defaults OpEstimateNoise
	def := defaults(*NewOpEstimateNoiseDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpEstimateNoise(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpEstimateNoise) Apply(f *fits.Image, c *ops.Context) (result *fits.Image, err error) {
	if !op.Active {
		return f, nil
	}
	mode, err := ParseEstimator(op.Estimator)
	if err != nil {
		return nil, err
	}
	sigmas := stats.EstimateNoiseChannels(f.Data.AtLeast3D(), mode)
	for i, s := range sigmas {
		f.Header.Floats[fmt.Sprintf("NOISE%d", i)] = s
	}
	fmt.Fprintf(c.Log, "%d: Estimated noise %s using %s estimator\n", f.ID, formatSigmas(sigmas), op.Estimator)
	return f, nil
}

// Adds white Gaussian noise. The seed is combined with the image ID, so
// images in a batch receive different noise
type OpAddNoise struct {
	ops.OpUnaryBase
	Sigma  float64   `json:"sigma"`
	Sigmas []float64 `json:"sigmas,omitempty"` // per channel, overrides sigma
	Seed   uint32    `json:"seed"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpAddNoiseDefault() }) } // register the operator for JSON decoding

func NewOpAddNoiseDefault() *OpAddNoise { return NewOpAddNoise(0.05, 1) }

func NewOpAddNoise(sigma float64, seed uint32) *OpAddNoise {
	op := OpAddNoise{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "addNoise", Active: sigma > 0}},
		Sigma:       sigma,
		Seed:        seed,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpAddNoise) UnmarshalJSON(data []byte) error {
	type defaults OpAddNoise
	def := defaults(*NewOpAddNoiseDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpAddNoise(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpAddNoise) Apply(f *fits.Image, c *ops.Context) (result *fits.Image, err error) {
	if !op.Active {
		return f, nil
	}
	sigmas := op.Sigmas
	if len(sigmas) == 0 {
		sigmas = []float64{op.Sigma}
	} else if ch := f.Data.Channels(); len(sigmas) != 1 && len(sigmas) != ch {
		return nil, fmt.Errorf("%d: have %d noise deviations for %d channels", f.ID, len(sigmas), ch)
	}
	out := synth.AddNoise(f.Data, sigmas, op.Seed+uint32(f.ID)*7919)
	result = fits.NewImageFromImage(f, out)
	fmt.Fprintf(c.Log, "%d: Added noise %s: %v\n", f.ID, formatSigmas(sigmas), result)
	return result, nil
}

// Blurs an image with a point spread function, by circular convolution
type OpBlur struct {
	ops.OpUnaryBase
	PSF PSFSettings `json:"psf"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpBlurDefault() }) } // register the operator for JSON decoding

func NewOpBlurDefault() *OpBlur { return NewOpBlur(NewPSFSettingsDefault()) }

func NewOpBlur(psf PSFSettings) *OpBlur {
	op := OpBlur{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "blur", Active: true}},
		PSF:         psf,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpBlur) UnmarshalJSON(data []byte) error {
	type defaults OpBlur
	def := defaults(*NewOpBlurDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpBlur(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpBlur) Apply(f *fits.Image, c *ops.Context) (result *fits.Image, err error) {
	if !op.Active {
		return f, nil
	}
	psf, err := op.PSF.Load(c)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	out, err := spectrum.Convolve(f.Data, psf)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	result = fits.NewImageFromImage(f, out)
	fmt.Fprintf(c.Log, "%d: Blurred with PSF %s: %v\n", f.ID, op.PSF, result)
	return result, nil
}
