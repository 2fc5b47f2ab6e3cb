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

// step fetches and executes the statement at c.pc, leaving c.pc
// pointing at whatever should run next (the following statement for
// ordinary opcodes, a jump target for control flow, the callee's entry
// point for a CALL, or the caller's saved pc for a DONE/RETURN that
// unwinds the call stack). done reports the latter case.
func (c *Context) step(g *Globals, el *EntityList, h *Host) (done bool, err error) {
	if c.pc < 0 || c.pc >= len(c.functions.Statements) {
		return false, fmtErr(KindAddress, "step", "pc %d out of range [0,%d)", c.pc, len(c.functions.Statements))
	}
	st := c.functions.Statements[c.pc]
	next := c.pc + 1

	switch st.Opcode {
	case OpDone:
		if err := c.leaveFunction(g); err != nil {
			return false, err
		}
		return true, nil

	case OpReturn:
		for i := 0; i < 3; i++ {
			w, err := g.GetBytes(st.A + int16(i))
			if err != nil {
				return false, err
			}
			if err := g.PutBytes(w, int16(GlobalAddrReturn+i)); err != nil {
				return false, err
			}
		}
		if err := c.leaveFunction(g); err != nil {
			return false, err
		}
		return true, nil

	case OpMulF:
		err = binaryFloat(g, st, func(a, b float32) float32 { return a * b })
	case OpDiv:
		err = binaryFloat(g, st, func(a, b float32) float32 { return a / b })
	case OpAddF:
		err = binaryFloat(g, st, func(a, b float32) float32 { return a + b })
	case OpSubF:
		err = binaryFloat(g, st, func(a, b float32) float32 { return a - b })
	case OpAnd:
		err = binaryFloat(g, st, func(a, b float32) float32 { return boolFloat(a != 0 && b != 0) })
	case OpOr:
		err = binaryFloat(g, st, func(a, b float32) float32 { return boolFloat(a != 0 || b != 0) })
	case OpBitAnd:
		err = binaryFloat(g, st, func(a, b float32) float32 { return float32(int32(a) & int32(b)) })
	case OpBitOr:
		err = binaryFloat(g, st, func(a, b float32) float32 { return float32(int32(a) | int32(b)) })
	case OpEqF:
		err = binaryFloat(g, st, func(a, b float32) float32 { return boolFloat(a == b) })
	case OpNeF:
		err = binaryFloat(g, st, func(a, b float32) float32 { return boolFloat(a != b) })
	case OpLe:
		err = binaryFloat(g, st, func(a, b float32) float32 { return boolFloat(a <= b) })
	case OpGe:
		err = binaryFloat(g, st, func(a, b float32) float32 { return boolFloat(a >= b) })
	case OpLt:
		err = binaryFloat(g, st, func(a, b float32) float32 { return boolFloat(a < b) })
	case OpGt:
		err = binaryFloat(g, st, func(a, b float32) float32 { return boolFloat(a > b) })

	case OpMulV:
		err = opMulV(g, st)
	case OpMulFV:
		err = opMulFV(g, st)
	case OpMulVF:
		err = opMulVF(g, st)
	case OpAddV:
		err = binaryVector(g, st, func(a, b [3]float32) [3]float32 {
			return [3]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
		})
	case OpSubV:
		err = binaryVector(g, st, func(a, b [3]float32) [3]float32 {
			return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
		})
	case OpEqV:
		err = opEqV(g, st, true)
	case OpNeV:
		err = opEqV(g, st, false)

	case OpEqS:
		err = c.opEqS(g, st, true)
	case OpNeS:
		err = c.opEqS(g, st, false)
	case OpEqEnt:
		err = opEqInt32(g, st, true, g.GetEntityID, g.PutFloat)
	case OpNeEnt:
		err = opEqInt32(g, st, false, g.GetEntityID, g.PutFloat)
	case OpEqFnc:
		err = opEqFunction(g, st, true)
	case OpNeFnc:
		err = opEqFunction(g, st, false)

	case OpLoadF:
		err = loadScalar(g, el, st, (*Entity).GetFloat, g.PutFloat)
	case OpLoadS:
		err = loadScalar(g, el, st, (*Entity).GetStringID, func(v StringID, ofs int16) error { return g.PutStringID(v, ofs) })
	case OpLoadEnt:
		err = loadScalar(g, el, st, (*Entity).GetEntityID, func(v EntityID, ofs int16) error { return g.PutEntityID(v, ofs) })
	case OpLoadFnc:
		err = loadScalar(g, el, st, (*Entity).GetFunctionID, func(v FunctionID, ofs int16) error { return g.PutFunctionID(v, ofs) })
	case OpLoadFld:
		err = c.opLoadFld(g, el, st)
	case OpLoadV:
		err = c.opLoadV(g, el, st)

	case OpAddress:
		err = c.opAddress(g, el, st)

	case OpStoreF:
		err = directCopy(g, st, 1)
	case OpStoreS:
		err = directCopy(g, st, 1)
	case OpStoreEnt:
		err = directCopy(g, st, 1)
	case OpStoreFld:
		err = directCopy(g, st, 1)
	case OpStoreFnc:
		err = directCopy(g, st, 1)
	case OpStoreV:
		err = directCopy(g, st, 3)

	case OpStorePF:
		err = c.storeIndirect(g, el, st, 1)
	case OpStorePS:
		err = c.storeIndirect(g, el, st, 1)
	case OpStorePEnt:
		err = c.storeIndirect(g, el, st, 1)
	case OpStorePFld:
		err = c.storeIndirect(g, el, st, 1)
	case OpStorePFnc:
		err = c.storeIndirect(g, el, st, 1)
	case OpStorePV:
		err = c.storeIndirect(g, el, st, 3)

	case OpNotF:
		err = notOp(g, st, func(ofs int16) (bool, error) { f, e := g.GetFloat(ofs); return f == 0, e })
	case OpNotV:
		err = notOp(g, st, func(ofs int16) (bool, error) {
			v, e := g.GetVector(ofs)
			return v[0] == 0 && v[1] == 0 && v[2] == 0, e
		})
	case OpNotS:
		err = c.notS(g, st)
	case OpNotEnt:
		err = notOp(g, st, func(ofs int16) (bool, error) { v, e := g.GetEntityID(ofs); return v == 0, e })
	case OpNotFnc:
		err = notOp(g, st, func(ofs int16) (bool, error) { v, e := g.GetFunctionID(ofs); return v == 0, e })

	case OpIf:
		var cond float32
		cond, err = g.GetFloat(st.A)
		if err == nil && cond != 0 {
			next = c.pc + int(st.B)
		}
	case OpIfNot:
		var cond float32
		cond, err = g.GetFloat(st.A)
		if err == nil && cond == 0 {
			next = c.pc + int(st.B)
		}
	case OpGoto:
		next = c.pc + int(st.A)

	case OpState:
		err = c.opState(g, el, st)

	default:
		if _, ok := st.Opcode.IsCall(); ok {
			var callDone bool
			callDone, err = c.opCall(g, el, h, st, next)
			if err == nil && callDone {
				return false, nil // pc already set by enterFunction/callBuiltin path
			}
		} else {
			err = fmtErr(KindFormat, "step", "unhandled opcode %s", st.Opcode)
		}
	}

	if err != nil {
		return false, err
	}
	c.pc = next
	return false, nil
}

func boolFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

func binaryFloat(g *Globals, st Statement, f func(a, b float32) float32) error {
	a, err := g.GetFloat(st.A)
	if err != nil {
		return err
	}
	b, err := g.GetFloat(st.B)
	if err != nil {
		return err
	}
	return g.PutFloat(f(a, b), st.C)
}

func binaryVector(g *Globals, st Statement, f func(a, b [3]float32) [3]float32) error {
	a, err := g.GetVector(st.A)
	if err != nil {
		return err
	}
	b, err := g.GetVector(st.B)
	if err != nil {
		return err
	}
	return g.PutVector(f(a, b), st.C)
}

func opMulV(g *Globals, st Statement) error {
	a, err := g.GetVector(st.A)
	if err != nil {
		return err
	}
	b, err := g.GetVector(st.B)
	if err != nil {
		return err
	}
	return g.PutFloat(a[0]*b[0]+a[1]*b[1]+a[2]*b[2], st.C)
}

func opMulFV(g *Globals, st Statement) error {
	a, err := g.GetFloat(st.A)
	if err != nil {
		return err
	}
	b, err := g.GetVector(st.B)
	if err != nil {
		return err
	}
	return g.PutVector([3]float32{a * b[0], a * b[1], a * b[2]}, st.C)
}

func opMulVF(g *Globals, st Statement) error {
	a, err := g.GetVector(st.A)
	if err != nil {
		return err
	}
	b, err := g.GetFloat(st.B)
	if err != nil {
		return err
	}
	return g.PutVector([3]float32{a[0] * b, a[1] * b, a[2] * b}, st.C)
}

func opEqV(g *Globals, st Statement, wantEqual bool) error {
	a, err := g.GetVector(st.A)
	if err != nil {
		return err
	}
	b, err := g.GetVector(st.B)
	if err != nil {
		return err
	}
	eq := a == b
	return g.PutFloat(boolFloat(eq == wantEqual), st.C)
}

// opEqS compares strings both by raw id and by resolved text: two
// distinct ids that happen to intern equal text still compare equal,
// matching what the source engine's string table guarantees once
// interning is involved.
func (c *Context) opEqS(g *Globals, st Statement, wantEqual bool) error {
	a, err := g.GetStringID(st.A)
	if err != nil {
		return err
	}
	b, err := g.GetStringID(st.B)
	if err != nil {
		return err
	}
	eq := a == b
	if !eq {
		as, _ := c.functions.Strings.Get(a)
		bs, _ := c.functions.Strings.Get(b)
		eq = as == bs
	}
	return g.PutFloat(boolFloat(eq == wantEqual), st.C)
}

func opEqInt32[T ~int32](g *Globals, st Statement, wantEqual bool, get func(int16) (T, error), put func(float32, int16) error) error {
	a, err := get(st.A)
	if err != nil {
		return err
	}
	b, err := get(st.B)
	if err != nil {
		return err
	}
	return put(boolFloat((a == b) == wantEqual), st.C)
}

func opEqFunction(g *Globals, st Statement, wantEqual bool) error {
	a, err := g.GetFunctionID(st.A)
	if err != nil {
		return err
	}
	b, err := g.GetFunctionID(st.B)
	if err != nil {
		return err
	}
	return g.PutFloat(boolFloat((a == b) == wantEqual), st.C)
}

// loadScalar implements LOAD_F/S/ENT/FNC: argument order is
// (entity id address, field address address, destination address).
func loadScalar[T any](g *Globals, el *EntityList, st Statement, get func(*Entity, int16) (T, error), put func(T, int16) error) error {
	entID, err := g.GetEntityID(st.A)
	if err != nil {
		return err
	}
	fld, err := g.GetFieldAddr(st.B)
	if err != nil {
		return err
	}
	e, err := el.TryGetEntity(int(entID))
	if err != nil {
		return err
	}
	v, err := get(e, int16(fld))
	if err != nil {
		return err
	}
	return put(v, st.C)
}

// opLoadFld loads a field-typed entity member: the slot named by
// (entity, field) holds a field-address value itself, as when a
// progs.dat declares a field of type .field.
func (c *Context) opLoadFld(g *Globals, el *EntityList, st Statement) error {
	entID, err := g.GetEntityID(st.A)
	if err != nil {
		return err
	}
	fld, err := g.GetFieldAddr(st.B)
	if err != nil {
		return err
	}
	e, err := el.TryGetEntity(int(entID))
	if err != nil {
		return err
	}
	raw, err := e.getInt(int16(fld))
	if err != nil {
		return err
	}
	return g.PutFieldAddr(FieldAddr(raw), st.C)
}

func (c *Context) opLoadV(g *Globals, el *EntityList, st Statement) error {
	entID, err := g.GetEntityID(st.A)
	if err != nil {
		return err
	}
	fld, err := g.GetFieldAddr(st.B)
	if err != nil {
		return err
	}
	e, err := el.TryGetEntity(int(entID))
	if err != nil {
		return err
	}
	v, err := e.GetVector(int16(fld))
	if err != nil {
		return err
	}
	return g.PutVector(v, st.C)
}

// opAddress packs (entity, field) into the entity-field pointer form
// STOREP_* consumes.
func (c *Context) opAddress(g *Globals, el *EntityList, st Statement) error {
	entID, err := g.GetEntityID(st.A)
	if err != nil {
		return err
	}
	fld, err := g.GetFieldAddr(st.B)
	if err != nil {
		return err
	}
	if _, err := el.TryGetEntity(int(entID)); err != nil {
		return err
	}
	return g.PutEntityField(el.PackEntityField(entID, fld), st.C)
}

// directCopy implements the non-indirect STORE_* family: a plain
// global-to-global copy of width words, untyped, so it works uniformly
// whether the destination falls in the reserved static region or a
// function's own locals. arg3 is unused by these opcodes and must be
// zero.
func directCopy(g *Globals, st Statement, width int) error {
	if st.C != 0 {
		return fmtErr(KindDiscipline, "store", "nonzero arg3 (%d) on a direct store", st.C)
	}
	for i := 0; i < width; i++ {
		w, err := g.GetBytes(st.A + int16(i))
		if err != nil {
			return err
		}
		if err := g.PutBytes(w, st.B+int16(i)); err != nil {
			return err
		}
	}
	return nil
}

// storeIndirect implements the STOREP_* family: the destination is a
// packed entity-field pointer held in global B, not a literal address.
func (c *Context) storeIndirect(g *Globals, el *EntityList, st Statement, width int) error {
	ptr, err := g.GetEntityField(st.B)
	if err != nil {
		return err
	}
	entID, fld := el.UnpackEntityField(ptr)
	e, err := el.TryGetEntityMut(int(entID))
	if err != nil {
		return err
	}
	for i := 0; i < width; i++ {
		w, err := g.GetBytes(st.A + int16(i))
		if err != nil {
			return err
		}
		if err := e.PutBytes(w, int16(fld)+int16(i)); err != nil {
			return err
		}
	}
	return nil
}

func notOp(g *Globals, st Statement, isZero func(int16) (bool, error)) error {
	z, err := isZero(st.A)
	if err != nil {
		return err
	}
	return g.PutFloat(boolFloat(z), st.C)
}

func (c *Context) notS(g *Globals, st Statement) error {
	id, err := g.GetStringID(st.A)
	if err != nil {
		return err
	}
	if id == 0 {
		return g.PutFloat(1, st.C)
	}
	s, _ := c.functions.Strings.Get(id)
	return g.PutFloat(boolFloat(s == ""), st.C)
}

// opCall dispatches a CALLn statement: A holds the global slot with the
// function id to invoke; next is the statement following the call,
// saved as the resume point. QuakeC-defined callees get a fresh call
// frame and the pc jumps to their entry point; built-ins run to
// completion inline and execution simply continues at next.
func (c *Context) opCall(g *Globals, el *EntityList, h *Host, st Statement, next int) (bool, error) {
	id, err := g.GetFunctionID(st.A)
	if err != nil {
		return false, err
	}
	if id == 0 {
		return false, fmtErr(KindDiscipline, "call", "call through a null function value")
	}
	def, err := c.functions.Def(id)
	if err != nil {
		return false, err
	}
	if def.Kind == FunctionBuiltin {
		if err := callBuiltin(c, g, el, h, def.BuiltinID); err != nil {
			return false, err
		}
		c.pc = next
		return true, nil
	}
	if err := c.enterFunction(g, id, next); err != nil {
		return false, err
	}
	return true, nil
}

// opState sets the two well-known "thinking" fields on self: the frame
// to display, and the next time self should think, which is always
// the current globals.time plus one tenth of a second, not an operand
// value.
func (c *Context) opState(g *Globals, el *EntityList, st Statement) error {
	self, err := g.GetEntityID(GlobalAddrSelf)
	if err != nil {
		return err
	}
	e, err := el.TryGetEntityMut(int(self))
	if err != nil {
		return err
	}
	frame, err := g.GetFloat(st.A)
	if err != nil {
		return err
	}
	now, err := g.GetFloat(GlobalAddrTime)
	if err != nil {
		return err
	}
	nextThink := now + 0.1
	if c.fields.Frame < 0 {
		return fmtErr(KindAddress, "state", "progs has no 'frame' field")
	}
	if c.fields.NextThink < 0 {
		return fmtErr(KindAddress, "state", "progs has no 'nextthink' field")
	}
	if err := e.PutFloat(frame, int16(c.fields.Frame)); err != nil {
		return err
	}
	return e.PutFloat(nextThink, int16(c.fields.NextThink))
}
