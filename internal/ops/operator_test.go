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


package ops

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/mlnoga/bm3dlight/internal/fits"
	"github.com/mlnoga/bm3dlight/internal/tensor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() *Context {
	return NewContext(io.Discard, zerolog.Nop())
}

// Changes into a fresh temporary directory for the duration of the test
func chdirTemp(t *testing.T) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(old) })
}

func ramp(shape ...int) *tensor.Tensor {
	t := tensor.New(shape...)
	for i := range t.Data {
		t.Data[i] = float64(i%13) / 12
	}
	return t
}

func TestIsPathAllowed(t *testing.T) {
	tcs := []struct {
		Path string
		Want bool
	}{
		{"img.fits", true},
		{"sub/dir/img_%d.png", true},
		{"/etc/passwd", false},
		{"../secret.fits", false},
		{"a/../../b.fits", false},
	}
	for _, tc := range tcs {
		assert.Equal(t, tc.Want, IsPathAllowed(tc.Path), tc.Path)
	}
}

func TestRemoveNils(t *testing.T) {
	a, b := fits.NewImage(), fits.NewImage()
	res := RemoveNils([]*fits.Image{nil, a, nil, b, nil})
	assert.Equal(t, []*fits.Image{a, b}, res)
	assert.Empty(t, RemoveNils(nil))
}

func TestMaterializeAll(t *testing.T) {
	errA, errB := errors.New("first"), errors.New("second")
	ins := []Promise{
		func() (*fits.Image, error) { return fits.NewImageFromTensor(ramp(2, 2), 0), nil },
		func() (*fits.Image, error) { return nil, errA },
		func() (*fits.Image, error) { return fits.NewImageFromTensor(ramp(2, 2), 2), nil },
		func() (*fits.Image, error) { return nil, errB },
	}
	outs, err := MaterializeAll(ins, 2, false)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	require.Len(t, outs, 2)
	assert.Equal(t, 0, outs[0].ID)
	assert.Equal(t, 2, outs[1].ID)

	outs, err = MaterializeAll(ins[:1], 0, true)
	assert.NoError(t, err)
	assert.Empty(t, outs)
}

func TestSequenceJSONRoundTrip(t *testing.T) {
	save := NewOpSave("out_%d.fits")
	save.SRGB = true
	seq := NewOpSequence(NewOpLoadMany([]string{"*.fits"}), NewOpForEach(save))

	b, err := json.Marshal(seq)
	require.NoError(t, err)

	op, err := UnmarshalOperator(b)
	require.NoError(t, err)
	got, ok := op.(*OpSequence)
	require.True(t, ok)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, []string{"*.fits"}, got.Steps[0].(*OpLoadMany).FilePatterns)
	inner := got.Steps[1].(*OpForEach).Operation.(*OpSave)
	assert.Equal(t, "out_%d.fits", inner.FilePattern)
	assert.True(t, inner.SRGB)
	assert.Equal(t, 1.0, inner.Max)
	assert.NotNil(t, inner.OpUnaryBase.Apply)
}

func TestSaveDefaultsFromJSON(t *testing.T) {
	op, err := UnmarshalOperator([]byte(`{"type":"save","active":true,"filePattern":"x.png","min":0.25}`))
	require.NoError(t, err)
	save := op.(*OpSave)
	assert.Equal(t, 0.25, save.Min)
	assert.Equal(t, 1.0, save.Max)
}

func TestUnknownOperator(t *testing.T) {
	_, err := UnmarshalOperator([]byte(`{"type":"sharpenMagically"}`))
	assert.ErrorContains(t, err, "sharpenMagically")
	_, err = UnmarshalOperator([]byte(`{"type":"seq","steps":[{"type":"nope"}]}`))
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	chdirTemp(t)
	c := testContext()
	for _, name := range []string{"gray.fits", "color.fits", "color.png", "gray.tiff"} {
		shape := []int{6, 5, 3}
		if name[0] == 'g' {
			shape = []int{6, 5}
		}
		img := fits.NewImageFromTensor(ramp(shape...), 4)
		_, err := NewOpSave(name).Apply(img, c)
		require.NoError(t, err, name)

		loaded, err := NewOpLoad(4, name).Apply(nil, c)
		require.NoError(t, err, name)
		assert.Equal(t, shape, loaded.Data.Shape, name)
		assert.InDeltaSlice(t, img.Data.Data, loaded.Data.Data, 1e-4, name)
	}
}

func TestSaveRejectsOutsidePaths(t *testing.T) {
	_, err := NewOpSave("/tmp/x.fits").Apply(fits.NewImageFromTensor(ramp(2, 2), 0), testContext())
	assert.Error(t, err)
	_, err = NewOpLoad(0, "../x.fits").MakePromises(nil, testContext())
	assert.Error(t, err)
}

func TestLoadManySequence(t *testing.T) {
	chdirTemp(t)
	c := testContext()
	for i := 0; i < 3; i++ {
		_, err := NewOpSave("in_%d.fits").Apply(fits.NewImageFromTensor(ramp(4, 4), i), c)
		require.NoError(t, err)
	}
	seq := NewOpSequence(NewOpLoadMany([]string{"in_*.fits"}), NewOpSave(""), NewOpSave("out_%d.fits"))
	promises, err := seq.MakePromises(nil, c)
	require.NoError(t, err)
	outs, err := MaterializeAll(promises, 2, false)
	require.NoError(t, err)
	assert.Len(t, outs, 3)
	for i := 0; i < 3; i++ {
		_, err := os.Stat("out_" + string(rune('0'+i)) + ".fits")
		assert.NoError(t, err)
	}

	_, err = NewOpLoadMany([]string{"none_*.fits"}).MakePromises(nil, c)
	assert.Error(t, err)
}

func TestUnaryNeedsInputs(t *testing.T) {
	_, err := NewOpSave("x.fits").MakePromises(nil, testContext())
	assert.Error(t, err)
	_, err = NewOpForEach(nil).MakePromises([]Promise{nil}, testContext())
	assert.Error(t, err)
}
