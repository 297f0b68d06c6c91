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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePresets(t *testing.T) {
	for _, name := range []string{"", "normal", "refiltering", "very-noisy", "very-noisy-legacy",
		"high-quality", "deblurring", "low-complexity", "np", "refilter", "vn", "vn_old", "high", "deb", "lc"} {
		p, err := Resolve(Named(name))
		require.NoError(t, err, name)
		require.NoError(t, p.Validate(), name)
	}
	r, _ := Resolve(Named(Refiltering))
	assert.True(t, r.DenoiseResidual)
	n, _ := Resolve(Named(Normal))
	assert.False(t, n.DenoiseResidual)
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve(Named("ultra"))
	assert.True(t, errors.Is(err, ErrInvalidProfile))
}

func TestResolveDeterministic(t *testing.T) {
	for _, name := range Names() {
		a, err := Resolve(Named(name))
		require.NoError(t, err)
		b, err := Resolve(Named(name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
		assert.Equal(t, ToEngineParameters(a), ToEngineParameters(b), name)
	}
}

func TestResolveCustomIsCopied(t *testing.T) {
	custom := NewNormal()
	custom.LambdaThr = 3.1
	ref := Custom(custom)
	p, err := Resolve(ref)
	require.NoError(t, err)
	p.LambdaThr = 9
	ref.Custom.StepHT = 7
	q, err := Resolve(ref)
	require.NoError(t, err)
	assert.Equal(t, 3.1, q.LambdaThr)
	assert.Equal(t, 3.1, custom.LambdaThr)
	assert.Equal(t, 3, custom.StepHT)
}

func TestResolveCustomInvalid(t *testing.T) {
	custom := NewNormal()
	custom.StepWiener = 0
	_, err := Resolve(Custom(custom))
	assert.True(t, errors.Is(err, ErrInvalidProfile))
}

func TestToEngineParameters(t *testing.T) {
	p := NewNormal()
	e := ToEngineParameters(p)
	assert.Equal(t, [3]int{8, 8, 1}, e.BlockSizeHT)
	assert.Equal(t, [3]int{3, 3, 1}, e.StepHT)
	assert.Equal(t, [3]int{19, 19, 1}, e.SearchWindowHT)
	assert.Equal(t, [3]int{19, 19, 1}, e.SearchWindowWiener)
	assert.Equal(t, [3]int{32, 32, 1}, e.NF)
	assert.InDelta(t, 3000.0*64/65025, e.TauMatch, 1e-12)
	assert.InDelta(t, 400.0*64/65025, e.TauMatchWiener, 1e-12)
	// passed through unchanged for block matching engines
	assert.Equal(t, "bior1.5", e.TransformLocalHT)
	assert.Equal(t, "dct", e.TransformLocalWiener)
	assert.Equal(t, "haar", e.TransformNonlocal)
	assert.Equal(t, p.K, e.K)
	assert.Equal(t, p.Gamma, e.Gamma)
	assert.Equal(t, p.DecLevel, e.DecLevel)

	vn := ToEngineParameters(NewVeryNoisy())
	assert.Equal(t, [3]int{11, 11, 1}, vn.BlockSizeWiener)
	assert.InDelta(t, 3500.0*121/65025, vn.TauMatchWiener, 1e-12)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"deblurring", "high-quality", "low-complexity", "normal", "refiltering",
		"very-noisy", "very-noisy-legacy"}, Names())
}

func TestProfileJSON(t *testing.T) {
	p := NewHighQuality()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	var q Profile
	require.NoError(t, json.Unmarshal(b, &q))
	assert.Equal(t, p, q)
}
