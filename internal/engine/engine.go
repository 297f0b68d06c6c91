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


package engine

import (
	"errors"
	"fmt"

	"github.com/mlnoga/bm3dlight/internal/profile"
)

// Returned for requests the engine cannot process
var ErrInvalidRequest = errors.New("invalid engine request")

// A collaborative filtering engine. Implementations must not modify the request
type Engine interface {
	Filter(req *Request) (*Response, error)
}

// Which filtering passes to run
type StageKind int

const (
	StageHardThresholding StageKind = iota // first pass only
	StageAllStages                         // first pass, then Wiener with the first pass as pilot
	StagePilot                             // Wiener pass only, seeded with a supplied pilot
)

func (k StageKind) String() string {
	switch k {
	case StageHardThresholding:
		return "hard thresholding"
	case StageAllStages:
		return "all stages"
	case StagePilot:
		return "pilot"
	}
	return fmt.Sprintf("StageKind(%d)", int(k))
}

// Stage directive. The pilot planes are only present for StagePilot
type Stage struct {
	Kind  StageKind
	pilot [][]float64
}

func HardThresholding() Stage { return Stage{Kind: StageHardThresholding} }

func AllStages() Stage { return Stage{Kind: StageAllStages} }

// Wiener pass seeded by the given pilot estimate, one plane per channel
func Pilot(planes [][]float64) Stage { return Stage{Kind: StagePilot, pilot: planes} }

// Pilot planes, nil unless Kind is StagePilot
func (s Stage) PilotPlanes() [][]float64 { return s.pilot }

func (s Stage) RunsHardThresholding() bool {
	return s.Kind == StageHardThresholding || s.Kind == StageAllStages
}

func (s Stage) RunsWiener() bool { return s.Kind == StageAllStages || s.Kind == StagePilot }

// What to do with block matches in one filtering pass
type Action int

const (
	Skip    Action = iota // neither return nor use matches
	Capture               // return the matches computed in this pass
	Reuse                 // use previously captured matches instead of searching
)

// Opaque match data of one pass, as produced by the engine which captured it
type Table struct {
	Rows, Cols int
	Data       interface{}
}

// Block match handling for one pass. Table is only set for Reuse
type Phase struct {
	Action Action
	Table  *Table
}

// Block match handling for both passes
type BlockMatch struct {
	HT     Phase
	Wiener Phase
}

// Match tables returned by a call, nil for passes which did not capture
type Matches struct {
	HT     *Table
	Wiener *Table
}

func NoMatches() BlockMatch { return BlockMatch{} }

// Requests capture for the selected passes
func CaptureMatches(ht, wiener bool) BlockMatch {
	bm := BlockMatch{}
	if ht {
		bm.HT.Action = Capture
	}
	if wiener {
		bm.Wiener.Action = Capture
	}
	return bm
}

// Reuses previously captured tables. Passes without a table are skipped
func ReuseMatches(m *Matches) BlockMatch {
	bm := BlockMatch{}
	if m == nil {
		return bm
	}
	if m.HT != nil {
		bm.HT = Phase{Action: Reuse, Table: m.HT}
	}
	if m.Wiener != nil {
		bm.Wiener = Phase{Action: Reuse, Table: m.Wiener}
	}
	return bm
}

// True if any pass requests capture
func (b BlockMatch) Captures() bool { return b.HT.Action == Capture || b.Wiener.Action == Capture }

// True if any pass does something other than Skip
func (b BlockMatch) Requested() bool { return b.HT.Action != Skip || b.Wiener.Action != Skip }

// Noise of one channel plane. A nil PSD means white noise of deviation Sigma,
// otherwise PSD holds rows*cols values in unnormalized DFT units
type Noise struct {
	Sigma float64
	PSD   []float64
}

// One call into the engine. Channels are indexed first. Noise holds either one
// entry shared by all channels, or one entry per channel
type Request struct {
	Rows, Cols   int
	Channels     [][]float64
	Noise        []Noise
	Params       *profile.EngineParams
	Stage        Stage
	Matches      BlockMatch
	Multichannel bool
}

type Response struct {
	Channels [][]float64
	Matches  *Matches
}

// Checks plane sizes, noise list length and the pilot geometry
func (r *Request) Validate() error {
	n := r.Rows * r.Cols
	if r.Rows <= 0 || r.Cols <= 0 || len(r.Channels) == 0 {
		return fmt.Errorf("%w: empty image %dx%dx%d", ErrInvalidRequest, r.Rows, r.Cols, len(r.Channels))
	}
	if r.Params == nil {
		return fmt.Errorf("%w: missing parameters", ErrInvalidRequest)
	}
	for c, p := range r.Channels {
		if len(p) != n {
			return fmt.Errorf("%w: channel %d has %d values, want %d", ErrInvalidRequest, c, len(p), n)
		}
	}
	if len(r.Noise) != 1 && len(r.Noise) != len(r.Channels) {
		return fmt.Errorf("%w: %d noise entries for %d channels", ErrInvalidRequest, len(r.Noise), len(r.Channels))
	}
	for c, nz := range r.Noise {
		if nz.PSD != nil && len(nz.PSD) != n {
			return fmt.Errorf("%w: noise %d has %d values, want %d", ErrInvalidRequest, c, len(nz.PSD), n)
		}
	}
	if r.Stage.Kind == StagePilot {
		pilot := r.Stage.PilotPlanes()
		if len(pilot) != len(r.Channels) {
			return fmt.Errorf("%w: pilot has %d channels, image %d", ErrInvalidRequest, len(pilot), len(r.Channels))
		}
		for c, p := range pilot {
			if len(p) != n {
				return fmt.Errorf("%w: pilot channel %d has %d values, want %d", ErrInvalidRequest, c, len(p), n)
			}
		}
	}
	return nil
}

// Noise entry applying to channel c
func (r *Request) NoiseOf(c int) Noise {
	if len(r.Noise) == 1 {
		return r.Noise[0]
	}
	return r.Noise[c]
}
