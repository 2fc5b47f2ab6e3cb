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

// CvarRegistry is the console variable storage the VM calls into for
// the cvar/cvar_set built-ins. The registry itself — parsing, archiving,
// change callbacks — is out of scope for this package (spec.md §1); the
// VM only needs to read and write named float values.
type CvarRegistry interface {
	Value(name string) (float32, bool)
	SetValue(name string, v float32)
}

// Printer routes the four QuakeC print built-ins to their destinations.
type Printer interface {
	Broadcast(s string) // bprint: all clients
	ToClient(s string)   // sprint/centerprint: the calling client
	Dev(s string)        // dprint: developer console only
	Err(s string)        // eprint/error/objerror
}

// Precacher registers an asset as needed for the current level so the
// client can download/load it before it's referenced.
type Precacher interface {
	PrecacheModel(name string) int32
	PrecacheSound(name string) int32
	PrecacheFile(name string)
}

// SoundPlayer starts sounds in the world.
type SoundPlayer interface {
	StartSound(ent int32, channel int32, sample string, volume, attenuation float32)
	AmbientSound(origin [3]float32, sample string, volume, attenuation float32)
}

// MessageWriter appends to the network message buffer the WriteByte
// family of built-ins targets. The wire protocol itself is out of scope
// (spec.md §1); this is just the sink the VM writes marshalled values to.
type MessageWriter interface {
	WriteByte(b byte)
	WriteShort(v int16)
	WriteLong(v int32)
	WriteCoord(v float32)
	WriteAngle(v float32)
	WriteString(s string)
	WriteEntity(ent int32)
}

// Host bundles the external collaborators the built-in call table
// dispatches to. Every field is optional: a caller exercising only a
// subset of built-ins (e.g. a unit test that only reads cvars) leaves
// the rest nil, and the corresponding built-ins skip the call to that
// collaborator rather than panicking on a nil pointer; they still read
// their arguments and write any return value or error they produce.
type Host struct {
	Cvars     CvarRegistry
	Printer   Printer
	Precacher Precacher
	Sound     SoundPlayer
	Message   MessageWriter
}
