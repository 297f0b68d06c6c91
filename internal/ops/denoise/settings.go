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
	"fmt"
	"strings"

	"github.com/mlnoga/bm3dlight/internal/fits"
	"github.com/mlnoga/bm3dlight/internal/kernel"
	"github.com/mlnoga/bm3dlight/internal/ops"
	"github.com/mlnoga/bm3dlight/internal/profile"
	"github.com/mlnoga/bm3dlight/internal/psd"
	"github.com/mlnoga/bm3dlight/internal/stats"
	"github.com/mlnoga/bm3dlight/internal/tensor"
)

// Profile selection shared by the filtering operators. A custom bundle takes precedence over the name
type ProfileSettings struct {
	Profile string           `json:"profile"`
	Custom  *profile.Profile `json:"custom,omitempty"`
}

func (p ProfileSettings) Ref() profile.Ref {
	if p.Custom != nil {
		return profile.Custom(*p.Custom)
	}
	return profile.Named(p.Profile)
}

// Noise description as given by a user. The first non-empty of PSD file, per channel
// sigmas and sigma is used. If none is given, the noise is estimated from the image
type NoiseSettings struct {
	Sigma     float64   `json:"sigma"`
	Sigmas    []float64 `json:"sigmas,omitempty"`
	PSDFile   string    `json:"psdFile,omitempty"`
	Estimator string    `json:"estimator"` // immerkaer or histogram
}

func NewNoiseSettingsDefault() NoiseSettings {
	return NoiseSettings{Estimator: "immerkaer"}
}

func (n NoiseSettings) IsGiven() bool {
	return n.PSDFile != "" || len(n.Sigmas) > 0 || n.Sigma > 0
}

// Resolves the settings into a noise description for image f
func (n NoiseSettings) Resolve(f *fits.Image, c *ops.Context) (psd.Noise, error) {
	switch {
	case n.PSDFile != "":
		if !ops.IsPathAllowed(n.PSDFile) {
			return psd.Noise{}, fmt.Errorf("%d: PSD file %s outside current directory tree", f.ID, n.PSDFile)
		}
		p, err := fits.NewImageFromFile(n.PSDFile, f.ID, c.Log)
		if err != nil {
			return psd.Noise{}, err
		}
		return psd.FromTensor(p.Data)
	case len(n.Sigmas) == 1:
		return psd.Sigma(n.Sigmas[0]), nil
	case len(n.Sigmas) > 1:
		return psd.Sigmas(n.Sigmas...), nil
	case n.Sigma > 0:
		return psd.Sigma(n.Sigma), nil
	}
	mode, err := ParseEstimator(n.Estimator)
	if err != nil {
		return psd.Noise{}, err
	}
	sigmas := stats.EstimateNoiseChannels(f.Data.AtLeast3D(), mode)
	fmt.Fprintf(c.Log, "%d: Estimated noise %s\n", f.ID, formatSigmas(sigmas))
	if len(sigmas) == 1 {
		return psd.Sigma(sigmas[0]), nil
	}
	return psd.Sigmas(sigmas...), nil
}

func ParseEstimator(name string) (stats.EstimatorMode, error) {
	switch strings.ToLower(name) {
	case "", "immerkaer":
		return stats.EstimatorImmerkaer, nil
	case "histogram":
		return stats.EstimatorHistogram, nil
	}
	return 0, fmt.Errorf("unknown noise estimator '%s'", name)
}

func formatSigmas(sigmas []float64) string {
	parts := make([]string, len(sigmas))
	for i, s := range sigmas {
		parts[i] = fmt.Sprintf("%.4g", s)
	}
	return "sigma " + strings.Join(parts, "/")
}

// Point spread function, either loaded from a file or generated
type PSFSettings struct {
	File   string  `json:"file,omitempty"`
	Kernel string  `json:"kernel"` // gaussian, box, motion or impulse
	Size   int     `json:"size"`   // kernel width and height in pixels
	Std    float64 `json:"std"`    // gaussian standard deviation
	Angle  float64 `json:"angle"`  // motion direction in degrees
}

func NewPSFSettingsDefault() PSFSettings {
	return PSFSettings{Kernel: "gaussian", Size: 9, Std: 2}
}

func (p PSFSettings) String() string {
	if p.File != "" {
		return p.File
	}
	return fmt.Sprintf("%s %d", p.Kernel, p.Size)
}

// Loads or generates the kernel
func (p PSFSettings) Load(c *ops.Context) (*tensor.Tensor, error) {
	if p.File != "" {
		if !ops.IsPathAllowed(p.File) {
			return nil, fmt.Errorf("PSF file %s outside current directory tree", p.File)
		}
		f, err := fits.NewImageFromFile(p.File, 0, c.Log)
		if err != nil {
			return nil, err
		}
		return f.Data, nil
	}
	switch strings.ToLower(p.Kernel) {
	case "gaussian":
		return kernel.Gaussian(p.Size, p.Size, p.Std, -1)
	case "box":
		return kernel.Box(p.Size)
	case "motion":
		return kernel.Motion(p.Size, p.Angle)
	case "impulse":
		return kernel.Impulse(p.Size, p.Size)
	}
	return nil, fmt.Errorf("unknown PSF kernel '%s'", p.Kernel)
}
