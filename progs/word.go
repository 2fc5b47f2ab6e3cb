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

// Package progs implements the loader, in-memory representation, and
// interpreter for QuakeC progs.dat bytecode: a register-style virtual
// machine over a mixed-type array of 32-bit global words.
package progs

// Word is the atomic 4-byte storage unit shared by globals and entity
// fields. Its type is never stored alongside it; the opcode reading a
// slot determines how its bits are interpreted.
type Word [4]byte

// StringID is an index into the string table: either an offset into the
// on-disk string lump, or a synthesized id for a runtime-interned string.
type StringID int32

// EntityID indexes into the EntityList. Entity 0 is world, the NULL entity.
type EntityID int32

// FunctionID indexes into the Functions definition table.
type FunctionID int32

// FieldAddr is a word offset within a single entity record.
type FieldAddr int32

// EntityFieldAddr is a packed (entity id, field offset) pair, the only
// form in which QuakeC bytecode can hold a writable handle to a specific
// entity's field. Produced by the address opcode, consumed by storep_*.
type EntityFieldAddr int32

// Well-known global addresses. These are fixed by the engine, not by the
// compiled progs.dat: the original QuakeC compiler hardcodes the same
// layout, so any conforming progs.dat agrees with these offsets.
const (
	GlobalAddrNull      = 0
	GlobalAddrReturn    = 1  // 3 words: Return, Return+1, Return+2
	GlobalAddrArg0      = 4  // 8 args * 3 words each: 4..27
	GlobalAddrSelf      = 28 // entity
	GlobalAddrOther     = 29 // entity
	GlobalAddrWorld     = 30 // entity, always 0
	GlobalAddrTime      = 31 // float
	GlobalAddrFrameTime = 32 // float
	GlobalAddrForward   = 33 // vector, 3 words: 33..35
	GlobalAddrUp        = 36 // vector, 3 words: 36..38
	GlobalAddrRight     = 39 // vector, 3 words: 39..41

	// GlobalStaticStart is the first address available to the
	// compiled program's own globals.
	GlobalStaticStart = 42
	// GlobalStaticCount is the minimum size a conforming globals
	// array must have, per invariant (vi).
	GlobalStaticCount = GlobalStaticStart

	MaxArgs             = 8
	MaxCallStackDepth    = 32
	MaxLocalStackDepth   = 2048
	DefaultRunawayBudget = 100000
)

// Type is the metadata tag carried by GlobalDef/FieldDef. It never drives
// opcode dispatch; it exists for savegames and introspection only.
type Type uint16

const (
	TypeVoid Type = iota
	TypeString
	TypeFloat
	TypeVector
	TypeEntity
	TypeField
	TypeFunction
	TypePointer
)

func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeString:
		return "string"
	case TypeFloat:
		return "float"
	case TypeVector:
		return "vector"
	case TypeEntity:
		return "entity"
	case TypeField:
		return "field"
	case TypeFunction:
		return "function"
	case TypePointer:
		return "pointer"
	default:
		return "unknown"
	}
}
