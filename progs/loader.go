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
	"io"

	"golang.org/x/crypto/blake2b"
)

const (
	version = 6
	crc     = 5927

	lumpCount      = 6
	statementSize  = 8
	functionSize   = 36
	defSize        = 8
	wordSize       = 4
)

// lump ordering as laid out on disk, per spec.md §4.E step 2.
const (
	lumpStatements = iota
	lumpGlobalDefs
	lumpFieldDefs
	lumpFunctions
	lumpStrings
	lumpGlobals
)

type lump struct {
	offset int32
	count  int32
}

// WellKnownFields holds the entity field offsets the VM's opcode
// dispatch needs by name rather than by fixed address, because field
// layout (unlike the global static region) is assigned by the QuakeC
// compiler and only known after reading FieldDefs. A missing field
// leaves its offset at -1; the VM only errors on first use, not at load
// time (SPEC_FULL.md §3).
type WellKnownFields struct {
	NextThink FieldAddr
	Frame     FieldAddr
}

// Loaded bundles everything Load produces: the three handles a host
// drives the VM through, plus a content digest for cache keys.
type Loaded struct {
	Context   *Context
	Globals   *Globals
	Entities  *EntityList
	Functions *Functions
	Fields    WellKnownFields
	Digest    [32]byte
}

// Load parses a complete progs.dat byte buffer per spec.md §4.E and
// §6's binary format, constructing the String Table, Definition
// Tables, Globals, and Entity List, and an ExecutionContext ready to
// run them.
func Load(data []byte) (*Loaded, error) {
	r := bytes.NewReader(data)

	var hdrVersion, hdrCRC int32
	if err := binary.Read(r, binary.LittleEndian, &hdrVersion); err != nil {
		return nil, fmtErr(KindFormat, "load", "reading version: %v", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdrCRC); err != nil {
		return nil, fmtErr(KindFormat, "load", "reading crc: %v", err)
	}
	if hdrVersion != version {
		return nil, fmtErr(KindFormat, "load", "unsupported version %d (want %d)", hdrVersion, version)
	}
	if hdrCRC != crc {
		return nil, fmtErr(KindFormat, "load", "unexpected crc %d (want %d)", hdrCRC, crc)
	}

	var lumps [lumpCount]lump
	for i := range lumps {
		if err := binary.Read(r, binary.LittleEndian, &lumps[i].offset); err != nil {
			return nil, fmtErr(KindFormat, "load", "reading lump %d offset: %v", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &lumps[i].count); err != nil {
			return nil, fmtErr(KindFormat, "load", "reading lump %d count: %v", i, err)
		}
	}

	var stride int32
	if err := binary.Read(r, binary.LittleEndian, &stride); err != nil {
		return nil, fmtErr(KindFormat, "load", "reading entity stride: %v", err)
	}

	strTab, err := loadStrings(data, lumps[lumpStrings])
	if err != nil {
		return nil, err
	}

	functions, err := loadFunctions(data, lumps[lumpFunctions], lumps[lumpStatements], strTab)
	if err != nil {
		return nil, err
	}

	globalDefs, err := loadGlobalDefs(data, lumps[lumpGlobalDefs], strTab)
	if err != nil {
		return nil, err
	}
	_ = globalDefs // retained on Globals below for introspection

	fieldDefs, err := loadFieldDefs(data, lumps[lumpFieldDefs], strTab)
	if err != nil {
		return nil, err
	}

	wordsLump := lumps[lumpGlobals]
	if wordsLump.count < GlobalStaticCount {
		return nil, fmtErr(KindFormat, "load", "global count %d below static count %d", wordsLump.count, GlobalStaticCount)
	}
	words, err := readWords(data, wordsLump)
	if err != nil {
		return nil, err
	}

	globals, err := NewGlobals(words)
	if err != nil {
		return nil, err
	}
	globals.defs = globalDefs

	entities := NewEntityList(int(stride), fieldDefs)

	var wk WellKnownFields
	wk.NextThink = -1
	wk.Frame = -1
	if ofs, ok := fieldDefs.ByName("nextthink"); ok {
		wk.NextThink = ofs
	}
	if ofs, ok := fieldDefs.ByName("frame"); ok {
		wk.Frame = ofs
	}

	ctx := newContext(functions, wk)

	return &Loaded{
		Context:   ctx,
		Globals:   globals,
		Entities:  entities,
		Functions: functions,
		Fields:    wk,
		Digest:    blake2b.Sum256(data),
	}, nil
}

func loadStrings(data []byte, l lump) (*StringTable, error) {
	buf, err := sliceLump(data, l, 1)
	if err != nil {
		return nil, fmtErr(KindFormat, "load_strings", "%v", err)
	}
	return NewStringTable(buf), nil
}

func loadFunctions(data []byte, fnLump, stLump lump, st *StringTable) (*Functions, error) {
	buf, err := sliceLump(data, fnLump, functionSize)
	if err != nil {
		return nil, fmtErr(KindFormat, "load_functions", "%v", err)
	}
	r := bytes.NewReader(buf)
	defs := make([]FunctionDef, fnLump.count)
	for i := range defs {
		var first, argStart, locals, profile, nameRaw, srcRaw, argc int32
		if err := readAll(r, &first, &argStart, &locals, &profile, &nameRaw, &srcRaw, &argc); err != nil {
			return nil, fmtErr(KindFormat, "load_functions", "function %d: %v", i, err)
		}
		var argsz [MaxArgs]byte
		if _, err := io.ReadFull(r, argsz[:]); err != nil {
			return nil, fmtErr(KindFormat, "load_functions", "function %d argsz: %v", i, err)
		}

		nameID, err := st.IDFromI32(nameRaw)
		if err != nil {
			return nil, fmtErr(KindFormat, "load_functions", "function %d name: %v", i, err)
		}
		srcID, err := st.IDFromI32(srcRaw)
		if err != nil {
			return nil, fmtErr(KindFormat, "load_functions", "function %d srcfile: %v", i, err)
		}

		d := FunctionDef{
			ArgStart:  int(argStart),
			Locals:    int(locals),
			NameID:    nameID,
			SrcFileID: srcID,
			Argc:      int(argc),
			Argsz:     argsz,
		}
		if first < 0 {
			bid, err := BuiltinByID(-first)
			if err != nil {
				return nil, fmtErr(KindFormat, "load_functions", "function %d: %v", i, err)
			}
			d.Kind = FunctionBuiltin
			d.BuiltinID = bid
		} else {
			d.Kind = FunctionQuakeC
			d.FirstStatement = int(first)
		}
		defs[i] = d
	}

	stbuf, err := sliceLump(data, stLump, statementSize)
	if err != nil {
		return nil, fmtErr(KindFormat, "load_statements", "%v", err)
	}
	sr := bytes.NewReader(stbuf)
	statements := make([]Statement, stLump.count)
	for i := range statements {
		var raw uint16
		var a, b, c int16
		if err := readAll(sr, &raw, &a, &b, &c); err != nil {
			return nil, fmtErr(KindFormat, "load_statements", "statement %d: %v", i, err)
		}
		op, err := DecodeOpcode(raw)
		if err != nil {
			return nil, fmtErr(KindFormat, "load_statements", "statement %d: %v", i, err)
		}
		statements[i] = Statement{Opcode: op, A: a, B: b, C: c}
	}

	for i, d := range defs {
		if d.Kind == FunctionQuakeC && (d.FirstStatement < 0 || d.FirstStatement > len(statements)) {
			return nil, fmtErr(KindFormat, "load_functions", "function %d entry point %d out of range [0,%d]", i, d.FirstStatement, len(statements))
		}
	}

	return newFunctions(st, defs, statements), nil
}

func loadGlobalDefs(data []byte, l lump, st *StringTable) ([]GlobalDef, error) {
	buf, err := sliceLump(data, l, defSize)
	if err != nil {
		return nil, fmtErr(KindFormat, "load_globaldefs", "%v", err)
	}
	r := bytes.NewReader(buf)
	defs := make([]GlobalDef, l.count)
	for i := range defs {
		var typ, offset uint16
		var nameRaw int32
		if err := readAll(r, &typ, &offset, &nameRaw); err != nil {
			return nil, fmtErr(KindFormat, "load_globaldefs", "def %d: %v", i, err)
		}
		nameID, err := st.IDFromI32(nameRaw)
		if err != nil {
			return nil, fmtErr(KindFormat, "load_globaldefs", "def %d: %v", i, err)
		}
		defs[i] = GlobalDef{
			Save:   typ&saveGlobalBit != 0,
			Type:   Type(typ &^ saveGlobalBit),
			Offset: offset,
			NameID: nameID,
		}
	}
	return defs, nil
}

func loadFieldDefs(data []byte, l lump, st *StringTable) (*FieldDefs, error) {
	buf, err := sliceLump(data, l, defSize)
	if err != nil {
		return nil, fmtErr(KindFormat, "load_fielddefs", "%v", err)
	}
	r := bytes.NewReader(buf)
	defs := make([]FieldDef, l.count)
	for i := range defs {
		var typ, offset uint16
		var nameRaw int32
		if err := readAll(r, &typ, &offset, &nameRaw); err != nil {
			return nil, fmtErr(KindFormat, "load_fielddefs", "def %d: %v", i, err)
		}
		if typ&saveGlobalBit != 0 {
			return nil, fmtErr(KindFormat, "load_fielddefs", "def %d: save flag not allowed in field definitions", i)
		}
		nameID, err := st.IDFromI32(nameRaw)
		if err != nil {
			return nil, fmtErr(KindFormat, "load_fielddefs", "def %d: %v", i, err)
		}
		defs[i] = FieldDef{Type: Type(typ), Offset: offset, NameID: nameID}
	}
	return newFieldDefs(st, defs), nil
}

func readWords(data []byte, l lump) ([]Word, error) {
	buf, err := sliceLump(data, l, wordSize)
	if err != nil {
		return nil, fmtErr(KindFormat, "load_globals", "%v", err)
	}
	words := make([]Word, l.count)
	for i := range words {
		copy(words[i][:], buf[i*wordSize:(i+1)*wordSize])
	}
	return words, nil
}

// sliceLump extracts a lump's bytes and verifies, per spec.md §4.E's
// "after each lump, verify the cursor equals offset + count*record_size"
// check, that the lump doesn't run past the end of the buffer.
func sliceLump(data []byte, l lump, recordSize int) ([]byte, error) {
	if l.offset < 0 || l.count < 0 {
		return nil, newErr(KindFormat, "slice_lump", "negative lump offset or count")
	}
	start := int64(l.offset)
	size := int64(l.count) * int64(recordSize)
	end := start + size
	if start > int64(len(data)) || end > int64(len(data)) {
		return nil, fmtErr(KindFormat, "slice_lump", "lump [%d,%d) out of range for %d-byte file", start, end, len(data))
	}
	return data[start:end], nil
}

func readAll(r io.Reader, fields ...any) error {
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}
