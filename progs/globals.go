// Copyright (C) 2024 The progsvm Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package progs

import (
	"encoding/binary"
	"math"
)

// Globals is a fixed-size vector of words. Words are always interpreted
// little-endian, on disk and in memory, regardless of host byte order —
// the source this package is modeled on left that ambiguous (a TODO
// about big-endian hosts); this implementation resolves it explicitly so
// a big-endian host still agrees byte-for-byte with a little-endian one.
type Globals struct {
	words []Word
	defs  []GlobalDef // introspection/savegame metadata; never consulted by dispatch
}

// NewGlobals wraps a raw words slice already sized to at least
// GlobalStaticCount, as required by invariant (vi).
func NewGlobals(words []Word) (*Globals, error) {
	if len(words) < GlobalStaticCount {
		return nil, fmtErr(KindFormat, "globals", "global count %d below static count %d", len(words), GlobalStaticCount)
	}
	return &Globals{words: words}, nil
}

func (g *Globals) Len() int { return len(g.words) }

// Defs returns the GlobalDefs table attached at load time, if any
// (nil for globals built directly via NewGlobals, e.g. in tests).
func (g *Globals) Defs() []GlobalDef { return g.defs }

func (g *Globals) bounds(op string, ofs int16) (int, error) {
	if ofs < 0 || int(ofs) >= len(g.words) {
		return 0, fmtErr(KindAddress, op, "global offset %d out of range [0,%d)", ofs, len(g.words))
	}
	return int(ofs), nil
}

func (g *Globals) vecBounds(op string, ofs int16) (int, error) {
	i, err := g.bounds(op, ofs)
	if err != nil {
		return 0, err
	}
	if i+2 >= len(g.words) {
		return 0, fmtErr(KindAddress, op, "vector at offset %d overruns globals of length %d", ofs, len(g.words))
	}
	return i, nil
}

// GetBytes/PutBytes transfer a single word untyped — used by call/return
// argument marshalling and by local save/restore, where the value being
// moved may not be a float at all.
func (g *Globals) GetBytes(ofs int16) (Word, error) {
	i, err := g.bounds("get_bytes", ofs)
	if err != nil {
		return Word{}, err
	}
	return g.words[i], nil
}

func (g *Globals) PutBytes(w Word, ofs int16) error {
	i, err := g.bounds("put_bytes", ofs)
	if err != nil {
		return err
	}
	g.words[i] = w
	return nil
}

// UntypedCopy copies one word from src to dest without interpreting it
// as any particular type. The STORE_* opcodes do not call it; they copy
// words untyped through directCopy in exec.go.
func (g *Globals) UntypedCopy(src, dest int16) error {
	w, err := g.GetBytes(src)
	if err != nil {
		return err
	}
	return g.PutBytes(w, dest)
}

func (g *Globals) GetFloat(ofs int16) (float32, error) {
	i, err := g.bounds("get_float", ofs)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(g.words[i][:])), nil
}

func (g *Globals) PutFloat(v float32, ofs int16) error {
	i, err := g.bounds("put_float", ofs)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(g.words[i][:], math.Float32bits(v))
	return nil
}

func (g *Globals) GetVector(ofs int16) ([3]float32, error) {
	i, err := g.vecBounds("get_vector", ofs)
	if err != nil {
		return [3]float32{}, err
	}
	var v [3]float32
	for c := 0; c < 3; c++ {
		v[c] = math.Float32frombits(binary.LittleEndian.Uint32(g.words[i+c][:]))
	}
	return v, nil
}

func (g *Globals) PutVector(v [3]float32, ofs int16) error {
	i, err := g.vecBounds("put_vector", ofs)
	if err != nil {
		return err
	}
	for c := 0; c < 3; c++ {
		binary.LittleEndian.PutUint32(g.words[i+c][:], math.Float32bits(v[c]))
	}
	return nil
}

func (g *Globals) GetInt(ofs int16) (int32, error) {
	i, err := g.bounds("get_int", ofs)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(g.words[i][:])), nil
}

func (g *Globals) PutInt(v int32, ofs int16) error {
	i, err := g.bounds("put_int", ofs)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(g.words[i][:], uint32(v))
	return nil
}

func (g *Globals) GetStringID(ofs int16) (StringID, error) {
	v, err := g.GetInt(ofs)
	return StringID(v), err
}

func (g *Globals) PutStringID(id StringID, ofs int16) error {
	return g.PutInt(int32(id), ofs)
}

func (g *Globals) GetEntityID(ofs int16) (EntityID, error) {
	v, err := g.GetInt(ofs)
	return EntityID(v), err
}

func (g *Globals) PutEntityID(id EntityID, ofs int16) error {
	return g.PutInt(int32(id), ofs)
}

func (g *Globals) GetFunctionID(ofs int16) (FunctionID, error) {
	v, err := g.GetInt(ofs)
	return FunctionID(v), err
}

func (g *Globals) PutFunctionID(id FunctionID, ofs int16) error {
	return g.PutInt(int32(id), ofs)
}

func (g *Globals) GetFieldAddr(ofs int16) (FieldAddr, error) {
	v, err := g.GetInt(ofs)
	return FieldAddr(v), err
}

func (g *Globals) PutFieldAddr(f FieldAddr, ofs int16) error {
	return g.PutInt(int32(f), ofs)
}

func (g *Globals) GetEntityField(ofs int16) (EntityFieldAddr, error) {
	v, err := g.GetInt(ofs)
	return EntityFieldAddr(v), err
}

func (g *Globals) PutEntityField(f EntityFieldAddr, ofs int16) error {
	return g.PutInt(int32(f), ofs)
}

// MakeVectors reads the angles vector at GlobalAddrArg0 (the sole
// argument to the make_vectors built-in) and writes the forward, right,
// and up unit vectors using Quake's yaw-pitch-roll convention. It is
// documented as a Globals method, not hidden inside the built-in
// dispatcher, per the design note that make_vectors should have no
// hidden state beyond what's visible here.
func (g *Globals) MakeVectors() error {
	angles, err := g.GetVector(GlobalAddrArg0)
	if err != nil {
		return err
	}
	pitch := float64(angles[0]) * (math.Pi * 2 / 360)
	yaw := float64(angles[1]) * (math.Pi * 2 / 360)
	roll := float64(angles[2]) * (math.Pi * 2 / 360)

	sy, cy := math.Sincos(yaw)
	sp, cp := math.Sincos(pitch)
	sr, cr := math.Sincos(roll)

	forward := [3]float32{
		float32(cp * cy),
		float32(cp * sy),
		float32(-sp),
	}
	right := [3]float32{
		float32(-sr*sp*cy + cr*sy),
		float32(-sr*sp*sy - cr*cy),
		float32(-sr * cp),
	}
	up := [3]float32{
		float32(cr*sp*cy + sr*sy),
		float32(cr*sp*sy - sr*cy),
		float32(cr * cp),
	}

	if err := g.PutVector(forward, GlobalAddrForward); err != nil {
		return err
	}
	if err := g.PutVector(right, GlobalAddrRight); err != nil {
		return err
	}
	return g.PutVector(up, GlobalAddrUp)
}
