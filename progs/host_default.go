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
	"bytes"
	"encoding/binary"
	"log"
	"math"
)

// MapCvars is a minimal in-memory CvarRegistry, suitable for tests and
// standalone tools that don't need the engine's full cvar archiving and
// change-callback machinery.
type MapCvars struct {
	values map[string]float32
}

func NewMapCvars() *MapCvars {
	return &MapCvars{values: make(map[string]float32)}
}

func (m *MapCvars) Value(name string) (float32, bool) {
	v, ok := m.values[name]
	return v, ok
}

func (m *MapCvars) SetValue(name string, v float32) {
	m.values[name] = v
}

// LogPrinter routes all four print destinations to a single
// *log.Logger, tagging each line with its destination's print built-in
// (bprint, sprint, dprint, eprint); centerprint lines carry the sprint
// tag and error/objerror lines the eprint tag. It's the default used by
// cmd/progsrun.
type LogPrinter struct {
	Log *log.Logger
}

func (p *LogPrinter) Broadcast(s string) { p.Log.Printf("bprint: %s", s) }
func (p *LogPrinter) ToClient(s string)  { p.Log.Printf("sprint: %s", s) }
func (p *LogPrinter) Dev(s string)       { p.Log.Printf("dprint: %s", s) }
func (p *LogPrinter) Err(s string)       { p.Log.Printf("eprint: %s", s) }

// BufferMessage accumulates the wire-format bytes the WriteByte family
// of built-ins marshals, in the same encoding the network layer expects
// (spec.md §6's out-of-scope network protocol consumes this buffer, but
// does not live in this package).
type BufferMessage struct {
	buf bytes.Buffer
}

func (m *BufferMessage) Bytes() []byte { return m.buf.Bytes() }

func (m *BufferMessage) WriteByte(b byte)    { m.buf.WriteByte(b) }
func (m *BufferMessage) WriteShort(v int16)  { binary.Write(&m.buf, binary.LittleEndian, v) }
func (m *BufferMessage) WriteLong(v int32)   { binary.Write(&m.buf, binary.LittleEndian, v) }
func (m *BufferMessage) WriteEntity(e int32) { binary.Write(&m.buf, binary.LittleEndian, int16(e)) }

// WriteCoord/WriteAngle use the original 1/8-unit and 360/256-degree
// fixed-point wire encodings QuakeC bytecode expects on the other end.
func (m *BufferMessage) WriteCoord(v float32) {
	binary.Write(&m.buf, binary.LittleEndian, int16(math.Round(float64(v)*8)))
}

func (m *BufferMessage) WriteAngle(v float32) {
	m.buf.WriteByte(byte(int32(v*256/360) & 0xff))
}

func (m *BufferMessage) WriteString(s string) {
	m.buf.WriteString(s)
	m.buf.WriteByte(0)
}

// NullPrecacher and NullSound record nothing and satisfy their
// interfaces for hosts that don't care about precaching or audio, e.g.
// a pure-simulation test harness.
type NullPrecacher struct{}

func (NullPrecacher) PrecacheModel(string) int32 { return 0 }
func (NullPrecacher) PrecacheSound(string) int32 { return 0 }
func (NullPrecacher) PrecacheFile(string)        {}

type NullSound struct{}

func (NullSound) StartSound(int32, int32, string, float32, float32)      {}
func (NullSound) AmbientSound([3]float32, string, float32, float32) {}
