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

import "testing"

// newTestMain builds a single-function Functions table named "main"
// with the given statements, ready to drive straight through
// ExecuteProgram without going through the on-disk Load path.
func newTestMain(t *testing.T, lump string, statements []Statement, locals, argc int, argsz [MaxArgs]byte) (*Functions, FunctionID) {
	t.Helper()
	st := NewStringTable([]byte(lump))
	defs := []FunctionDef{{
		Kind:           FunctionQuakeC,
		FirstStatement: 0,
		ArgStart:       GlobalStaticStart,
		Locals:         locals,
		Argc:           argc,
		Argsz:          argsz,
	}}
	return newFunctions(st, defs, statements), 0
}

func newTestGlobals(t *testing.T, size int) *Globals {
	t.Helper()
	g, err := NewGlobals(make([]Word, size))
	if err != nil {
		t.Fatalf("NewGlobals: %v", err)
	}
	return g
}

func TestFloatArithmetic(t *testing.T) {
	a, b, c := int16(GlobalStaticStart), int16(GlobalStaticStart+1), int16(GlobalStaticStart+2)
	fns, id := newTestMain(t, "main\x00", []Statement{
		{Opcode: OpAddF, A: a, B: b, C: c},
		{Opcode: OpDone},
	}, 0, 0, [MaxArgs]byte{})

	g := newTestGlobals(t, 50)
	if err := g.PutFloat(3, a); err != nil {
		t.Fatal(err)
	}
	if err := g.PutFloat(4, b); err != nil {
		t.Fatal(err)
	}

	ctx := newContext(fns, WellKnownFields{NextThink: -1, Frame: -1})
	el := NewEntityList(1, newFieldDefs(fns.Strings, nil))

	if err := ctx.ExecuteProgram(g, el, nil, id); err != nil {
		t.Fatalf("ExecuteProgram: %v", err)
	}
	got, err := g.GetFloat(c)
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Errorf("3+4 = %v, want 7", got)
	}
}

func TestVectorArgumentMarshalling(t *testing.T) {
	argStart := int16(GlobalStaticStart)
	dest := argStart + 3
	argsz := [MaxArgs]byte{3}
	fns, id := newTestMain(t, "main\x00", []Statement{
		{Opcode: OpStoreV, A: argStart, B: dest},
		{Opcode: OpDone},
	}, 3, 1, argsz)

	g := newTestGlobals(t, 60)
	if err := g.PutVector([3]float32{1, 2, 3}, GlobalAddrArg0); err != nil {
		t.Fatal(err)
	}

	ctx := newContext(fns, WellKnownFields{NextThink: -1, Frame: -1})
	el := NewEntityList(1, newFieldDefs(fns.Strings, nil))

	if err := ctx.ExecuteProgram(g, el, nil, id); err != nil {
		t.Fatalf("ExecuteProgram: %v", err)
	}
	got, err := g.GetVector(dest)
	if err != nil {
		t.Fatal(err)
	}
	want := [3]float32{1, 2, 3}
	if got != want {
		t.Errorf("arg0 vector = %v, want %v", got, want)
	}
}

func newOriginFields(t *testing.T, st *StringTable, name string) *FieldDefs {
	t.Helper()
	id, ok := st.Find(name)
	if !ok {
		t.Fatalf("string table has no %q", name)
	}
	return newFieldDefs(st, []FieldDef{{Type: TypeVector, Offset: 0, NameID: id}})
}

func TestFieldLoad(t *testing.T) {
	entAddr, fieldAddrAddr, dest := int16(GlobalStaticStart), int16(GlobalStaticStart+1), int16(GlobalStaticStart+2)
	fns, id := newTestMain(t, "main\x00origin\x00", []Statement{
		{Opcode: OpLoadV, A: entAddr, B: fieldAddrAddr, C: dest},
		{Opcode: OpDone},
	}, 0, 0, [MaxArgs]byte{})

	fields := newOriginFields(t, fns.Strings, "origin")
	el := NewEntityList(3, fields)
	target := el.Spawn()

	e, err := el.TryGetEntityMut(int(target))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.PutVector([3]float32{9, 8, 7}, 0); err != nil {
		t.Fatal(err)
	}

	g := newTestGlobals(t, 50)
	if err := g.PutEntityID(target, entAddr); err != nil {
		t.Fatal(err)
	}
	if err := g.PutFieldAddr(0, fieldAddrAddr); err != nil {
		t.Fatal(err)
	}

	ctx := newContext(fns, WellKnownFields{NextThink: -1, Frame: -1})
	if err := ctx.ExecuteProgram(g, el, nil, id); err != nil {
		t.Fatalf("ExecuteProgram: %v", err)
	}
	got, err := g.GetVector(dest)
	if err != nil {
		t.Fatal(err)
	}
	if got != [3]float32{9, 8, 7} {
		t.Errorf("loaded origin = %v, want {9 8 7}", got)
	}
}

func TestIndirectStore(t *testing.T) {
	entAddr, fieldAddrAddr, ptrAddr, srcAddr := int16(GlobalStaticStart), int16(GlobalStaticStart+1), int16(GlobalStaticStart+2), int16(GlobalStaticStart+3)
	fns, id := newTestMain(t, "main\x00health\x00", []Statement{
		{Opcode: OpAddress, A: entAddr, B: fieldAddrAddr, C: ptrAddr},
		{Opcode: OpStorePF, A: srcAddr, B: ptrAddr},
		{Opcode: OpDone},
	}, 0, 0, [MaxArgs]byte{})

	healthID, ok := fns.Strings.Find("health")
	if !ok {
		t.Fatal("missing health in string lump")
	}
	fields := newFieldDefs(fns.Strings, []FieldDef{{Type: TypeFloat, Offset: 0, NameID: healthID}})
	el := NewEntityList(1, fields)
	target := el.Spawn()

	g := newTestGlobals(t, 50)
	if err := g.PutEntityID(target, entAddr); err != nil {
		t.Fatal(err)
	}
	if err := g.PutFieldAddr(0, fieldAddrAddr); err != nil {
		t.Fatal(err)
	}
	if err := g.PutFloat(75, srcAddr); err != nil {
		t.Fatal(err)
	}

	ctx := newContext(fns, WellKnownFields{NextThink: -1, Frame: -1})
	if err := ctx.ExecuteProgram(g, el, nil, id); err != nil {
		t.Fatalf("ExecuteProgram: %v", err)
	}

	e, err := el.TryGetEntity(int(target))
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.GetFloat(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 75 {
		t.Errorf("health = %v, want 75", got)
	}
}

func TestRunawayBudget(t *testing.T) {
	fns, id := newTestMain(t, "main\x00", []Statement{
		{Opcode: OpGoto, A: 0},
	}, 0, 0, [MaxArgs]byte{})

	g := newTestGlobals(t, 50)
	ctx := newContext(fns, WellKnownFields{NextThink: -1, Frame: -1})
	ctx.RunawayBudget = 10
	el := NewEntityList(1, newFieldDefs(fns.Strings, nil))

	err := ctx.ExecuteProgram(g, el, nil, id)
	if err == nil {
		t.Fatal("expected runaway error, got nil")
	}
	verr, ok := err.(*Error)
	if !ok || verr.Kind != KindRunaway {
		t.Errorf("err = %v, want KindRunaway", err)
	}
}

func TestBuiltinCvarCall(t *testing.T) {
	lump := "main\x00somecvar\x00"
	st := NewStringTable([]byte(lump))
	nameID, ok := st.Find("somecvar")
	if !ok {
		t.Fatal("missing somecvar in lump")
	}

	fnAddr := int16(GlobalStaticStart)
	defs := []FunctionDef{
		{Kind: FunctionQuakeC, FirstStatement: 0, ArgStart: GlobalStaticStart + 1},
		{Kind: FunctionBuiltin, BuiltinID: BuiltinCvar},
	}
	statements := []Statement{
		{Opcode: OpCall1, A: fnAddr},
		{Opcode: OpDone},
	}
	fns := newFunctions(st, defs, statements)

	g := newTestGlobals(t, 50)
	if err := g.PutFunctionID(1, fnAddr); err != nil {
		t.Fatal(err)
	}
	if err := g.PutStringID(nameID, GlobalAddrArg0); err != nil {
		t.Fatal(err)
	}

	cvars := NewMapCvars()
	cvars.SetValue("somecvar", 42)
	host := &Host{Cvars: cvars}

	ctx := newContext(fns, WellKnownFields{NextThink: -1, Frame: -1})
	el := NewEntityList(1, newFieldDefs(st, nil))

	if err := ctx.ExecuteProgram(g, el, host, FunctionID(0)); err != nil {
		t.Fatalf("ExecuteProgram: %v", err)
	}
	got, err := g.GetFloat(GlobalAddrReturn)
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("cvar(somecvar) = %v, want 42", got)
	}
}
