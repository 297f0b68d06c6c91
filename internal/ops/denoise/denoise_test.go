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
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/mlnoga/bm3dlight/internal/fits"
	"github.com/mlnoga/bm3dlight/internal/ops"
	"github.com/mlnoga/bm3dlight/internal/stats"
	"github.com/mlnoga/bm3dlight/internal/synth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noisyImage(t *testing.T, color bool, sigma float64) (clean, noisy *fits.Image) {
	t.Helper()
	c := synth.GrayPattern(64, 64)
	if color {
		c = synth.ColorPattern(64, 64)
	}
	return fits.NewImageFromTensor(c, 1), fits.NewImageFromTensor(synth.AddNoise(c, []float64{sigma}, 42), 1)
}

func mse(t *testing.T, a, b *fits.Image) float64 {
	t.Helper()
	m, err := stats.MSE(a.Data, b.Data)
	require.NoError(t, err)
	return m
}

func TestDenoiseReducesNoise(t *testing.T) {
	var log bytes.Buffer
	c := ops.NewContext(&log, zerolog.Nop())
	for _, color := range []bool{false, true} {
		clean, noisy := noisyImage(t, color, 0.05)
		op := NewOpDenoise(ProfileSettings{Profile: "normal"}, NoiseSettings{Sigma: 0.05})
		out, err := op.Apply(noisy, c)
		require.NoError(t, err)
		assert.Equal(t, noisy.Data.Shape, out.Data.Shape)
		assert.Less(t, mse(t, clean, out), 0.5*mse(t, clean, noisy), "color %v", color)
		assert.Contains(t, out.Header.History[len(out.Header.History)-1], "profile=normal")
	}
	assert.Contains(t, log.String(), "1: Denoised with profile normal")
}

func TestDenoiseEstimatesNoiseWhenMissing(t *testing.T) {
	var log bytes.Buffer
	c := ops.NewContext(&log, zerolog.Nop())
	clean, noisy := noisyImage(t, false, 0.05)
	out, err := NewOpDenoiseDefault().Apply(noisy, c)
	require.NoError(t, err)
	assert.Contains(t, log.String(), "Estimated noise sigma")
	assert.Less(t, mse(t, clean, out), mse(t, clean, noisy))
}

func TestDenoiseRejectsBadSettings(t *testing.T) {
	c := ops.NewContext(io.Discard, zerolog.Nop())
	_, noisy := noisyImage(t, false, 0.05)

	op := NewOpDenoise(ProfileSettings{Profile: "extreme"}, NoiseSettings{Sigma: 0.05})
	_, err := op.Apply(noisy, c)
	assert.ErrorContains(t, err, "extreme")

	op = NewOpDenoise(ProfileSettings{Profile: "normal"}, NoiseSettings{Sigma: 0.05})
	op.Stage = "wiener-only"
	_, err = op.Apply(noisy, c)
	assert.Error(t, err)

	op = NewOpDenoise(ProfileSettings{}, NoiseSettings{Estimator: "guess"})
	_, err = op.Apply(noisy, c)
	assert.Error(t, err)
}

func TestDenoiseRGB(t *testing.T) {
	c := ops.NewContext(io.Discard, zerolog.Nop())
	clean, noisy := noisyImage(t, true, 0.04)
	for _, transform := range []string{"opp", "ycbcr"} {
		op := NewOpDenoiseRGB(ProfileSettings{Profile: "np"}, NoiseSettings{Sigma: 0.04}, transform)
		out, err := op.Apply(noisy, c)
		require.NoError(t, err, transform)
		assert.Less(t, mse(t, clean, out), 0.5*mse(t, clean, noisy), transform)
	}

	_, err := NewOpDenoiseRGB(ProfileSettings{}, NoiseSettings{Sigma: 0.04}, "lab").Apply(noisy, c)
	assert.Error(t, err)
	_, gray := noisyImage(t, false, 0.04)
	_, err = NewOpDenoiseRGB(ProfileSettings{}, NoiseSettings{Sigma: 0.04}, "opp").Apply(gray, c)
	assert.Error(t, err)
}

func TestBlurThenDeblur(t *testing.T) {
	c := ops.NewContext(io.Discard, zerolog.Nop())
	clean := fits.NewImageFromTensor(synth.GrayPattern(64, 64), 0)
	psf := PSFSettings{Kernel: "gaussian", Size: 9, Std: 1.5}
	blurred, err := NewOpBlur(psf).Apply(clean, c)
	require.NoError(t, err)

	for _, sigma := range []float64{0.005, 0.01} {
		for seed := uint32(5); seed < 9; seed++ {
			noisy, err := NewOpAddNoise(sigma, seed).Apply(blurred, c)
			require.NoError(t, err)
			restored, err := NewOpDeblur(ProfileSettings{Profile: "normal"}, NoiseSettings{Sigma: sigma}, psf).Apply(noisy, c)
			require.NoError(t, err)
			assert.Less(t, mse(t, clean, restored), 0.5*mse(t, clean, noisy), "sigma %g seed %d", sigma, seed)
		}
	}
}

func TestBlurWithImpulseIsIdentity(t *testing.T) {
	c := ops.NewContext(io.Discard, zerolog.Nop())
	clean := fits.NewImageFromTensor(synth.ColorPattern(16, 20), 0)
	out, err := NewOpBlur(PSFSettings{Kernel: "impulse", Size: 5}).Apply(clean, c)
	require.NoError(t, err)
	assert.InDeltaSlice(t, clean.Data.Data, out.Data.Data, 1e-9)

	_, err = NewOpBlur(PSFSettings{Kernel: "swirl", Size: 5}).Apply(clean, c)
	assert.Error(t, err)
}

func TestEstimateNoiseRecordsHeader(t *testing.T) {
	var log bytes.Buffer
	c := ops.NewContext(&log, zerolog.Nop())
	_, noisy := noisyImage(t, true, 0.03)
	out, err := NewOpEstimateNoiseDefault().Apply(noisy, c)
	require.NoError(t, err)
	for _, key := range []string{"NOISE0", "NOISE1", "NOISE2"} {
		assert.InDelta(t, 0.03, out.Header.Floats[key], 0.01, key)
	}
	assert.Contains(t, log.String(), "immerkaer")
}

func TestAddNoiseVariesByID(t *testing.T) {
	c := ops.NewContext(io.Discard, zerolog.Nop())
	op := NewOpAddNoise(0.1, 5)
	a, err := op.Apply(fits.NewImageFromTensor(synth.GrayPattern(8, 8), 0), c)
	require.NoError(t, err)
	b, err := op.Apply(fits.NewImageFromTensor(synth.GrayPattern(8, 8), 1), c)
	require.NoError(t, err)
	assert.NotEqual(t, a.Data.Data, b.Data.Data)

	op.Sigmas = []float64{0.1, 0.2}
	_, err = op.Apply(fits.NewImageFromTensor(synth.ColorPattern(8, 8), 0), c)
	assert.Error(t, err)
}

func TestOperatorsFromJSON(t *testing.T) {
	raw := `{"type":"seq","active":true,"steps":[
		{"type":"denoise","active":true,"profile":"high-quality","noise":{"sigma":0.02}},
		{"type":"denoiseRGB","active":true,"transform":"ycbcr"},
		{"type":"deblur","active":true,"psf":{"kernel":"box","size":3}},
		{"type":"estimateNoise","active":true},
		{"type":"addNoise","active":true,"seed":9},
		{"type":"blur","active":true}
	]}`
	op, err := ops.UnmarshalOperator([]byte(raw))
	require.NoError(t, err)
	steps := op.(*ops.OpSequence).Steps
	require.Len(t, steps, 6)

	d := steps[0].(*OpDenoise)
	assert.Equal(t, "high-quality", d.Profile)
	assert.Equal(t, 0.02, d.Noise.Sigma)
	assert.Equal(t, "all", d.Stage)
	assert.NotNil(t, d.OpUnaryBase.Apply)

	rgb := steps[1].(*OpDenoiseRGB)
	assert.Equal(t, "ycbcr", rgb.Transform)
	assert.Equal(t, "normal", rgb.Profile)
	assert.Equal(t, "immerkaer", rgb.Noise.Estimator)

	db := steps[2].(*OpDeblur)
	assert.Equal(t, "box", db.PSF.Kernel)
	assert.Equal(t, 3, db.PSF.Size)
	assert.Equal(t, 2.0, db.PSF.Std)

	an := steps[4].(*OpAddNoise)
	assert.Equal(t, uint32(9), an.Seed)
	assert.Equal(t, 0.05, an.Sigma)

	b, err := json.Marshal(op)
	require.NoError(t, err)
	again, err := ops.UnmarshalOperator(b)
	require.NoError(t, err)
	assert.Equal(t, "high-quality", again.(*ops.OpSequence).Steps[0].(*OpDenoise).Profile)
}

func TestCustomProfileTakesPrecedence(t *testing.T) {
	ps := ProfileSettings{Profile: "does-not-exist"}
	_, err := NewOpDenoise(ps, NoiseSettings{Sigma: 0.01}).Apply(fits.NewImageFromTensor(synth.GrayPattern(16, 16), 0), ops.NewContext(io.Discard, zerolog.Nop()))
	assert.Error(t, err)

	var op OpDenoise
	require.NoError(t, json.Unmarshal([]byte(`{"type":"denoise","active":true,"profile":"nope","custom":{"filterStrength":1,"blockSizeHT":8,"stepHT":3,"maxStackHT":16,"blockSizeWiener":8,"stepWiener":3,"maxStackWiener":32,"lambdaThr":2.7,"mu2":1,"sharpen":1},"noise":{"sigma":0.01}}`), &op))
	_, err = op.Apply(fits.NewImageFromTensor(synth.GrayPattern(16, 16), 0), ops.NewContext(io.Discard, zerolog.Nop()))
	assert.NoError(t, err)
}
