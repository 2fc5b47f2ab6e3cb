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
	"github.com/dchest/siphash"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// nameIndexKey hashes a definition's resolved name with siphash, the same
// string-bucketing idiom used elsewhere in this codebase for symbol
// interning, so building the name -> index map for a large definition
// table doesn't pay full string comparisons on every insert.
func nameIndexKey(name string) uint64 {
	lo, _ := siphash.Hash128(0, 0, []byte(name))
	return lo
}

// FunctionKind distinguishes QuakeC-defined functions (with an entry
// point into the statement array) from engine built-ins (with a numeric
// builtin id).
type FunctionKind int

const (
	FunctionQuakeC FunctionKind = iota
	FunctionBuiltin
)

// FunctionDef is immutable, load-once metadata for one function.
type FunctionDef struct {
	Kind           FunctionKind
	FirstStatement int // valid when Kind == FunctionQuakeC
	BuiltinID      BuiltinID
	ArgStart       int
	Locals         int
	NameID         StringID
	SrcFileID      StringID
	Argc           int
	Argsz          [MaxArgs]byte
}

// Statement is one bytecode instruction. Arguments are signed because
// control-flow opcodes use them as relative pc deltas; data opcodes use
// them as (necessarily nonnegative) word offsets.
type Statement struct {
	Opcode Opcode
	A, B, C int16
}

// Functions is the immutable function/statement definition table parsed
// from a progs.dat file.
type Functions struct {
	Strings    *StringTable
	Defs       []FunctionDef
	Statements []Statement

	byNameHash map[uint64][]int // hashed-name -> indexes sharing that hash, O(1) amortized lookup
}

func newFunctions(st *StringTable, defs []FunctionDef, statements []Statement) *Functions {
	f := &Functions{
		Strings:    st,
		Defs:       defs,
		Statements: statements,
		byNameHash: make(map[uint64][]int, len(defs)),
	}
	for i, d := range defs {
		name, _ := st.Get(d.NameID)
		h := nameIndexKey(name)
		f.byNameHash[h] = append(f.byNameHash[h], i)
	}
	return f
}

// Def resolves a FunctionID to its definition.
func (f *Functions) Def(id FunctionID) (*FunctionDef, error) {
	if id < 0 || int(id) >= len(f.Defs) {
		return nil, fmtErr(KindAddress, "function_def", "function id %d out of range [0,%d)", id, len(f.Defs))
	}
	return &f.Defs[id], nil
}

// Names returns every distinct function name in the table, sorted.
// Used by introspection tools (cmd/progsdump's -names flag); never
// consulted by opcode dispatch, which only ever uses a direct
// FunctionID.
func (f *Functions) Names() []string {
	set := make(map[string]struct{}, len(f.Defs))
	for _, d := range f.Defs {
		name, _ := f.Strings.Get(d.NameID)
		set[name] = struct{}{}
	}
	names := maps.Keys(set)
	slices.Sort(names)
	return names
}

// ByName does an O(1)-amortized lookup by resolved function name,
// confirming the exact string on hash collision. Used by introspection
// and host-side "find entry point by name" callers; it is not on the
// opcode dispatch path.
func (f *Functions) ByName(name string) (FunctionID, bool) {
	for _, i := range f.byNameHash[nameIndexKey(name)] {
		n, _ := f.Strings.Get(f.Defs[i].NameID)
		if n == name {
			return FunctionID(i), true
		}
	}
	return 0, false
}

// GlobalDef is immutable metadata about one compiler-emitted global.
// Type and the save flag are introspection/savegame metadata only; they
// never drive opcode dispatch.
type GlobalDef struct {
	Save   bool
	Type   Type
	Offset uint16
	NameID StringID
}

// FieldDef is immutable metadata about one entity field. The save flag
// from the on-disk encoding is illegal here and rejected at load time.
type FieldDef struct {
	Type   Type
	Offset uint16
	NameID StringID
}

// FieldDefs is the immutable entity field layout parsed from a
// progs.dat file.
type FieldDefs struct {
	Strings *StringTable
	Defs    []FieldDef

	byNameHash map[uint64][]int
}

func newFieldDefs(st *StringTable, defs []FieldDef) *FieldDefs {
	fd := &FieldDefs{Strings: st, Defs: defs, byNameHash: make(map[uint64][]int, len(defs))}
	for i, d := range defs {
		name, _ := st.Get(d.NameID)
		h := nameIndexKey(name)
		fd.byNameHash[h] = append(fd.byNameHash[h], i)
	}
	return fd
}

// ByName resolves a field's word offset by its compiled name. Used at
// load time to resolve WellKnownFields (nextthink, frame) and available
// to hosts/tools for the same purpose.
func (fd *FieldDefs) ByName(name string) (FieldAddr, bool) {
	for _, i := range fd.byNameHash[nameIndexKey(name)] {
		n, _ := fd.Strings.Get(fd.Defs[i].NameID)
		if n == name {
			return FieldAddr(fd.Defs[i].Offset), true
		}
	}
	return 0, false
}

const (
	saveGlobalBit uint16 = 1 << 15
)
