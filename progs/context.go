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
	"log"
	"math/rand"
	"os"

	"github.com/google/uuid"
)

// Frame is one entry on the call stack: enough to resume the caller
// once the callee returns. pc is saved as the statement to resume at
// directly (the "return to pc" convention), not as the call site, so
// the execute loop never re-adds one after a return — only a fresh
// CALL advances past itself before saving.
type Frame struct {
	savedPC       int
	savedFunction FunctionID
	localBase     int // index into Context.localStack where this frame's saved locals begin
	locals        int // word count saved/restored for this frame
}

// Context is the per-run execution state of the interpreter: the
// program counter, the currently running function, and the call/local
// stacks, with no execution state held outside these fields. One
// Context can run many top-level calls in sequence (it is reset only
// by construction), and can be reentered from within a built-in's own
// call into ExecuteProgram, because the exit condition is keyed off
// the call-stack depth observed at entry, not a global "idle" flag.
type Context struct {
	pc              int
	currentFunction FunctionID
	callStack       []Frame
	localStack      []Word

	functions *Functions
	fields    WellKnownFields
	rng       *rand.Rand

	RunawayBudget int
	RunID         uuid.UUID
	Log           *log.Logger
}

func newContext(functions *Functions, fields WellKnownFields) *Context {
	return &Context{
		functions:     functions,
		fields:        fields,
		rng:           rand.New(rand.NewSource(1)),
		RunawayBudget: DefaultRunawayBudget,
		RunID:         uuid.New(),
		Log:           log.New(os.Stderr, "", log.LstdFlags),
	}
}

// NewContext builds a Context directly from a parsed Functions table,
// for callers assembling a VM from parts rather than through Load.
func NewContext(functions *Functions, fields WellKnownFields) *Context {
	return newContext(functions, fields)
}

// Depth reports the current call stack depth (0 at top level).
func (c *Context) Depth() int { return len(c.callStack) }

// CurrentFunction reports the function currently executing.
func (c *Context) CurrentFunction() FunctionID { return c.currentFunction }

func (c *Context) functionName(id FunctionID) string {
	def, err := c.functions.Def(id)
	if err != nil {
		return "?"
	}
	name, _ := c.functions.Strings.Get(def.NameID)
	return name
}

// enterFunction pushes a new call frame for a QuakeC-defined function,
// saving the caller's local-variable region to the local stack (globals
// and locals share the same static address space, so the region the
// callee will reuse has to be preserved across the call) and marshals
// the eight argument slots into the callee's own locals, honoring each
// argument's declared word width so vector arguments land contiguously
// instead of overlapping the next argument's slot.
func (c *Context) enterFunction(g *Globals, id FunctionID, returnPC int) error {
	if len(c.callStack) >= MaxCallStackDepth {
		return fmtErr(KindStack, "enter_function", "call stack depth exceeds %d", MaxCallStackDepth)
	}
	def, err := c.functions.Def(id)
	if err != nil {
		return err
	}
	if def.Kind != FunctionQuakeC {
		return fmtErr(KindDiscipline, "enter_function", "function %d is not a QuakeC function", id)
	}

	if len(c.localStack)+def.Locals > MaxLocalStackDepth {
		return fmtErr(KindStack, "enter_function", "local stack depth exceeds %d", MaxLocalStackDepth)
	}

	frame := Frame{
		savedPC:       returnPC,
		savedFunction: c.currentFunction,
		localBase:     len(c.localStack),
		locals:        def.Locals,
	}
	for i := 0; i < def.Locals; i++ {
		w, err := g.GetBytes(int16(def.ArgStart + i))
		if err != nil {
			return err
		}
		c.localStack = append(c.localStack, w)
	}

	argOffset := 0
	for i := 0; i < def.Argc; i++ {
		size := int(def.Argsz[i])
		for w := 0; w < size; w++ {
			word, err := g.GetBytes(int16(GlobalAddrArg0 + i*3 + w))
			if err != nil {
				return err
			}
			if err := g.PutBytes(word, int16(def.ArgStart+argOffset+w)); err != nil {
				return err
			}
		}
		argOffset += size
	}

	c.callStack = append(c.callStack, frame)
	c.currentFunction = id
	c.pc = def.FirstStatement
	return nil
}

// leaveFunction pops the current call frame, restoring the caller's
// saved locals and resuming at the saved pc without incrementing it —
// the statement that follows a CALL is the one the callee's RETURN/DONE
// resumes at, so the fetch loop must not add one again.
func (c *Context) leaveFunction(g *Globals) error {
	if len(c.callStack) == 0 {
		return fmtErr(KindStack, "leave_function", "call stack underflow")
	}
	frame := c.callStack[len(c.callStack)-1]
	c.callStack = c.callStack[:len(c.callStack)-1]

	def, err := c.functions.Def(c.currentFunction)
	if err != nil {
		return err
	}
	for i := def.Locals - 1; i >= 0; i-- {
		w := c.localStack[frame.localBase+i]
		if err := g.PutBytes(w, int16(def.ArgStart+i)); err != nil {
			return err
		}
	}
	c.localStack = c.localStack[:frame.localBase]

	c.pc = frame.savedPC
	c.currentFunction = frame.savedFunction
	return nil
}

// ExecuteProgram runs fn to completion (a DONE or RETURN that unwinds
// back to this call's own depth) and returns any error raised along the
// way. It is reentrant: a built-in invoked while running fn may itself
// call ExecuteProgram (e.g. to run a think function), because the exit
// condition is "call stack back to the depth seen on entry", not a
// single shared "running" flag.
func (c *Context) ExecuteProgram(g *Globals, el *EntityList, h *Host, fn FunctionID) error {
	entryDepth := len(c.callStack)

	def, err := c.functions.Def(fn)
	if err != nil {
		return err
	}
	if def.Kind == FunctionBuiltin {
		return callBuiltin(c, g, el, h, def.BuiltinID)
	}

	savedFunction := c.currentFunction
	savedPC := c.pc
	if err := c.enterFunction(g, fn, savedPC); err != nil {
		return err
	}

	budget := c.RunawayBudget
	if budget <= 0 {
		budget = DefaultRunawayBudget
	}
	steps := 0

	for {
		steps++
		if steps > budget {
			return fmtErr(KindRunaway, "execute_program", "instruction budget of %d exceeded", budget).at(c.pc, c.functionName(c.currentFunction))
		}

		done, err := c.step(g, el, h)
		if err != nil {
			if verr, ok := err.(*Error); ok {
				return verr.at(c.pc, c.functionName(c.currentFunction))
			}
			return err
		}
		if done && len(c.callStack) <= entryDepth {
			c.currentFunction = savedFunction
			return nil
		}
	}
}
