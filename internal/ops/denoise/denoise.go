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


// Package denoise wraps collaborative filtering, color denoising and deblurring
// as pipeline operators, along with noise estimation and synthesis helpers.
package denoise

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mlnoga/bm3dlight/internal/colorspace"
	"github.com/mlnoga/bm3dlight/internal/engine"
	"github.com/mlnoga/bm3dlight/internal/fits"
	"github.com/mlnoga/bm3dlight/internal/ops"
)

// Denoises each channel of an image, jointly if it has several
type OpDenoise struct {
	ops.OpUnaryBase
	ProfileSettings
	Noise NoiseSettings `json:"noise"`
	Stage string        `json:"stage"` // all or ht
}

var _ ops.Operator = (*OpDenoise)(nil) // this type is an Operator

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpDenoiseDefault() }) } // register the operator for JSON decoding

func NewOpDenoiseDefault() *OpDenoise {
	return NewOpDenoise(ProfileSettings{Profile: "normal"}, NewNoiseSettingsDefault())
}

func NewOpDenoise(prof ProfileSettings, noise NoiseSettings) *OpDenoise {
	op := OpDenoise{
		OpUnaryBase:     ops.OpUnaryBase{OpBase: ops.OpBase{Type: "denoise", Active: true}},
		ProfileSettings: prof,
		Noise:           noise,
		Stage:           "all",
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpDenoise) UnmarshalJSON(data []byte) error {
	type defaults OpDenoise
	def := defaults(*NewOpDenoiseDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpDenoise(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func parseStage(s string) (engine.Stage, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return engine.AllStages(), nil
	case "ht":
		return engine.HardThresholding(), nil
	}
	return engine.Stage{}, fmt.Errorf("unknown stage '%s', want all or ht", s)
}

func (op *OpDenoise) Apply(f *fits.Image, c *ops.Context) (result *fits.Image, err error) {
	if !op.Active {
		return f, nil
	}
	stage, err := parseStage(op.Stage)
	if err != nil {
		return nil, err
	}
	noise, err := op.Noise.Resolve(f, c)
	if err != nil {
		return nil, err
	}
	c.CheckMemory(f)
	out, _, err := c.Denoiser.Filter(f.Data, noise, op.Ref(), stage, engine.NoMatches())
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	result = fits.NewImageFromImage(f, out)
	result.Header.History = append(result.Header.History, fmt.Sprintf("denoise profile=%s stage=%s", op.Ref(), stage.Kind))
	fmt.Fprintf(c.Log, "%d: Denoised with profile %s: %v\n", f.ID, op.Ref(), result)
	return result, nil
}

// Denoises a color image in a decorrelated color space
type OpDenoiseRGB struct {
	ops.OpUnaryBase
	ProfileSettings
	Noise     NoiseSettings `json:"noise"`
	Transform string        `json:"transform"` // opp or ycbcr
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpDenoiseRGBDefault() }) } // register the operator for JSON decoding

func NewOpDenoiseRGBDefault() *OpDenoiseRGB {
	return NewOpDenoiseRGB(ProfileSettings{Profile: "normal"}, NewNoiseSettingsDefault(), colorspace.OPP.Name)
}

func NewOpDenoiseRGB(prof ProfileSettings, noise NoiseSettings, transform string) *OpDenoiseRGB {
	op := OpDenoiseRGB{
		OpUnaryBase:     ops.OpUnaryBase{OpBase: ops.OpBase{Type: "denoiseRGB", Active: true}},
		ProfileSettings: prof,
		Noise:           noise,
		Transform:       transform,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpDenoiseRGB) UnmarshalJSON(data []byte) error {
	type defaults OpDenoiseRGB
	def := defaults(*NewOpDenoiseRGBDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpDenoiseRGB(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpDenoiseRGB) Apply(f *fits.Image, c *ops.Context) (result *fits.Image, err error) {
	if !op.Active {
		return f, nil
	}
	t, err := colorspace.ByName(op.Transform)
	if err != nil {
		return nil, err
	}
	noise, err := op.Noise.Resolve(f, c)
	if err != nil {
		return nil, err
	}
	c.CheckMemory(f)
	out, err := c.Denoiser.DenoiseColor(f.Data, noise, op.Ref(), t)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	result = fits.NewImageFromImage(f, out)
	result.Header.History = append(result.Header.History, fmt.Sprintf("denoiseRGB profile=%s transform=%s", op.Ref(), t.Name))
	fmt.Fprintf(c.Log, "%d: Denoised in %s color space with profile %s: %v\n", f.ID, t.Name, op.Ref(), result)
	return result, nil
}

// Removes a known blur from a noisy image
type OpDeblur struct {
	ops.OpUnaryBase
	ProfileSettings
	Noise NoiseSettings `json:"noise"`
	PSF   PSFSettings   `json:"psf"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpDeblurDefault() }) } // register the operator for JSON decoding

func NewOpDeblurDefault() *OpDeblur {
	return NewOpDeblur(ProfileSettings{Profile: "normal"}, NewNoiseSettingsDefault(), NewPSFSettingsDefault())
}

func NewOpDeblur(prof ProfileSettings, noise NoiseSettings, psf PSFSettings) *OpDeblur {
	op := OpDeblur{
		OpUnaryBase:     ops.OpUnaryBase{OpBase: ops.OpBase{Type: "deblur", Active: true}},
		ProfileSettings: prof,
		Noise:           noise,
		PSF:             psf,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpDeblur) UnmarshalJSON(data []byte) error {
	type defaults OpDeblur
	def := defaults(*NewOpDeblurDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpDeblur(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpDeblur) Apply(f *fits.Image, c *ops.Context) (result *fits.Image, err error) {
	if !op.Active {
		return f, nil
	}
	psf, err := op.PSF.Load(c)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	noise, err := op.Noise.Resolve(f, c)
	if err != nil {
		return nil, err
	}
	c.CheckMemory(f)
	out, err := c.Denoiser.Deblur(f.Data, noise, psf, op.Ref())
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	result = fits.NewImageFromImage(f, out)
	result.Header.History = append(result.Header.History, fmt.Sprintf("deblur profile=%s psf=%s", op.Ref(), op.PSF))
	fmt.Fprintf(c.Log, "%d: Deblurred with PSF %s and profile %s: %v\n", f.ID, op.PSF, op.Ref(), result)
	return result, nil
}
