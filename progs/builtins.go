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
	"fmt"
	"math"
)

// BuiltinID enumerates the engine-provided functions a progs.dat can
// call by negative entry-point id. Numbering is consecutive from 1 in
// the order the constants below are declared; a real
// progs.dat's compiler only needs its numbering to agree with the
// engine it targets; it does not need to agree with any other engine.
type BuiltinID int32

const (
	_ BuiltinID = iota
	BuiltinMakeVectors
	BuiltinSetOrigin
	BuiltinSetModel
	BuiltinSetSize
	BuiltinBreak
	BuiltinRandom
	BuiltinSound
	BuiltinNormalize
	BuiltinError
	BuiltinObjError
	BuiltinVLen
	BuiltinVecToYaw
	BuiltinSpawn
	BuiltinRemove
	BuiltinTraceLine
	BuiltinCheckClient
	BuiltinFind
	BuiltinPrecacheSound
	BuiltinPrecacheModel
	BuiltinStuffCmd
	BuiltinFindRadius
	BuiltinBPrint
	BuiltinSPrint
	BuiltinDPrint
	BuiltinFToS
	BuiltinVToS
	BuiltinCoreDump
	BuiltinTraceOn
	BuiltinTraceOff
	BuiltinEPrint
	BuiltinWalkMove
	BuiltinDropToFloor
	BuiltinLightStyle
	BuiltinRInt
	BuiltinFloor
	BuiltinCeil
	BuiltinCheckBottom
	BuiltinPointContents
	BuiltinFAbs
	BuiltinAim
	BuiltinCvar
	BuiltinLocalCmd
	BuiltinNextEnt
	BuiltinParticle
	BuiltinChangeYaw
	BuiltinVecToAngles
	BuiltinWriteByte
	BuiltinWriteChar
	BuiltinWriteShort
	BuiltinWriteLong
	BuiltinWriteCoord
	BuiltinWriteAngle
	BuiltinWriteString
	BuiltinWriteEntity
	BuiltinMoveToGoal
	BuiltinPrecacheFile
	BuiltinMakeStatic
	BuiltinChangeLevel
	BuiltinCvarSet
	BuiltinCenterPrint
	BuiltinAmbientSound
	BuiltinPrecacheModel2
	BuiltinPrecacheSound2
	BuiltinPrecacheFile2
	BuiltinSetSpawnArgs

	builtinCount
)

var builtinNames = [...]string{
	BuiltinMakeVectors: "make_vectors", BuiltinSetOrigin: "set_origin", BuiltinSetModel: "set_model",
	BuiltinSetSize: "set_size", BuiltinBreak: "break", BuiltinRandom: "random", BuiltinSound: "sound",
	BuiltinNormalize: "normalize", BuiltinError: "error", BuiltinObjError: "objerror", BuiltinVLen: "vlen",
	BuiltinVecToYaw: "vectoyaw", BuiltinSpawn: "spawn", BuiltinRemove: "remove", BuiltinTraceLine: "traceline",
	BuiltinCheckClient: "checkclient", BuiltinFind: "find", BuiltinPrecacheSound: "precache_sound",
	BuiltinPrecacheModel: "precache_model", BuiltinStuffCmd: "stuffcmd", BuiltinFindRadius: "findradius",
	BuiltinBPrint: "bprint", BuiltinSPrint: "sprint", BuiltinDPrint: "dprint", BuiltinFToS: "ftos",
	BuiltinVToS: "vtos", BuiltinCoreDump: "coredump", BuiltinTraceOn: "traceon", BuiltinTraceOff: "traceoff",
	BuiltinEPrint: "eprint", BuiltinWalkMove: "walkmove", BuiltinDropToFloor: "droptofloor",
	BuiltinLightStyle: "lightstyle", BuiltinRInt: "rint", BuiltinFloor: "floor", BuiltinCeil: "ceil",
	BuiltinCheckBottom: "checkbottom", BuiltinPointContents: "pointcontents", BuiltinFAbs: "fabs",
	BuiltinAim: "aim", BuiltinCvar: "cvar", BuiltinLocalCmd: "localcmd", BuiltinNextEnt: "nextent",
	BuiltinParticle: "particle", BuiltinChangeYaw: "changeyaw", BuiltinVecToAngles: "vectoangles",
	BuiltinWriteByte: "WriteByte", BuiltinWriteChar: "WriteChar", BuiltinWriteShort: "WriteShort",
	BuiltinWriteLong: "WriteLong", BuiltinWriteCoord: "WriteCoord", BuiltinWriteAngle: "WriteAngle",
	BuiltinWriteString: "WriteString", BuiltinWriteEntity: "WriteEntity", BuiltinMoveToGoal: "movetogoal",
	BuiltinPrecacheFile: "precache_file", BuiltinMakeStatic: "makestatic", BuiltinChangeLevel: "changelevel",
	BuiltinCvarSet: "cvar_set", BuiltinCenterPrint: "centerprint", BuiltinAmbientSound: "ambientsound",
	BuiltinPrecacheModel2: "precache_model2", BuiltinPrecacheSound2: "precache_sound2",
	BuiltinPrecacheFile2: "precache_file2", BuiltinSetSpawnArgs: "setspawnargs",
}

func (b BuiltinID) String() string {
	if int(b) < len(builtinNames) && builtinNames[b] != "" {
		return builtinNames[b]
	}
	return fmt.Sprintf("builtin#%d", int32(b))
}

// BuiltinByID validates a raw builtin id taken from a negative function
// entry point (already negated by the caller).
func BuiltinByID(raw int32) (BuiltinID, error) {
	if raw <= 0 || raw >= int32(builtinCount) {
		return 0, fmtErr(KindFormat, "builtin_id", "invalid built-in function id %d", raw)
	}
	return BuiltinID(raw), nil
}

// builtinFunc is the shape every built-in handler implements: read
// arguments from GlobalAddrArg0.., write results to GlobalAddrReturn..,
// and call into whatever Host collaborator the built-in needs.
type builtinFunc func(c *Context, g *Globals, el *EntityList, h *Host) error

var builtinTable map[BuiltinID]builtinFunc

func init() {
	builtinTable = map[BuiltinID]builtinFunc{
		BuiltinMakeVectors:    bMakeVectors,
		BuiltinSetOrigin:      bSetOrigin,
		BuiltinSetModel:       bSetModel,
		BuiltinSetSize:        bSetSize,
		BuiltinRandom:         bRandom,
		BuiltinSound:          bSound,
		BuiltinNormalize:      bNormalize,
		BuiltinVLen:           bVLen,
		BuiltinError:          bError,
		BuiltinObjError:       bObjError,
		BuiltinSpawn:          bSpawn,
		BuiltinRemove:         bRemove,
		BuiltinPrecacheSound:  bPrecacheSound,
		BuiltinPrecacheModel:  bPrecacheModel,
		BuiltinPrecacheFile:   bPrecacheFile,
		BuiltinBPrint:         bBPrint,
		BuiltinSPrint:         bSPrint,
		BuiltinDPrint:         bDPrint,
		BuiltinEPrint:         bEPrint,
		BuiltinFToS:           bFToS,
		BuiltinVToS:           bVToS,
		BuiltinRInt:           bRInt,
		BuiltinFloor:          bFloor,
		BuiltinCeil:           bCeil,
		BuiltinFAbs:           bFAbs,
		BuiltinCvar:           bCvar,
		BuiltinCvarSet:        bCvarSet,
		BuiltinWriteByte:      bWriteByte,
		BuiltinWriteShort:     bWriteShort,
		BuiltinWriteLong:      bWriteLong,
		BuiltinWriteCoord:     bWriteCoord,
		BuiltinWriteAngle:     bWriteAngle,
		BuiltinWriteString:    bWriteString,
		BuiltinWriteEntity:    bWriteEntity,
		BuiltinCenterPrint:    bCenterPrint,
		BuiltinAmbientSound:   bAmbientSound,
		BuiltinFind:           bFind,
		BuiltinFindRadius:     bFindRadius,
		BuiltinNextEnt:        bNextEnt,
		BuiltinCheckClient:    bCheckClient,
		BuiltinStuffCmd:       bStuffCmd,
		BuiltinLocalCmd:       bLocalCmd,
		BuiltinChangeLevel:    bChangeLevel,
		BuiltinSetSpawnArgs:   bSetSpawnArgs,
		BuiltinVecToYaw:       bVecToYaw,
		BuiltinVecToAngles:    bVecToAngles,
		BuiltinChangeYaw:      bChangeYaw,
		BuiltinMakeStatic:     bMakeStatic,
		BuiltinParticle:       bParticle,
		BuiltinLightStyle:     bLightStyle,
	}
}

// callBuiltin dispatches a validated builtin id, returning a KindBuiltin
// error for anything not in builtinTable (valid id, unimplemented
// semantics — tracing, physics, and similar simulation-layer built-ins
// are out of scope per SPEC_FULL.md §1).
func callBuiltin(c *Context, g *Globals, el *EntityList, h *Host, id BuiltinID) error {
	fn, ok := builtinTable[id]
	if !ok {
		return fmtErr(KindBuiltin, "call_builtin", "built-in %s (%d) has no implementation", id, int32(id))
	}
	return fn(c, g, el, h)
}

func bMakeVectors(c *Context, g *Globals, el *EntityList, h *Host) error { return g.MakeVectors() }

func bSetOrigin(c *Context, g *Globals, el *EntityList, h *Host) error {
	ent, err := g.GetEntityID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	origin, err := g.GetVector(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	e, err := el.TryGetEntityMut(int(ent))
	if err != nil {
		return err
	}
	ofs, ok := el.Fields.ByName("origin")
	if !ok {
		return fmtErr(KindBuiltin, "set_origin", "progs has no 'origin' field")
	}
	return e.PutVector(origin, int16(ofs))
}

func bSetModel(c *Context, g *Globals, el *EntityList, h *Host) error {
	ent, err := g.GetEntityID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	nameID, err := g.GetStringID(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	name, _ := c.functions.Strings.Get(nameID)
	e, err := el.TryGetEntityMut(int(ent))
	if err != nil {
		return err
	}
	if ofs, ok := el.Fields.ByName("model"); ok {
		if err := e.PutStringID(nameID, int16(ofs)); err != nil {
			return err
		}
	}
	if h != nil && h.Precacher != nil {
		h.Precacher.PrecacheModel(name)
	}
	return nil
}

func bSetSize(c *Context, g *Globals, el *EntityList, h *Host) error {
	ent, err := g.GetEntityID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	min, err := g.GetVector(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	max, err := g.GetVector(GlobalAddrArg0 + 6)
	if err != nil {
		return err
	}
	e, err := el.TryGetEntityMut(int(ent))
	if err != nil {
		return err
	}
	if ofs, ok := el.Fields.ByName("mins"); ok {
		if err := e.PutVector(min, int16(ofs)); err != nil {
			return err
		}
	}
	if ofs, ok := el.Fields.ByName("maxs"); ok {
		if err := e.PutVector(max, int16(ofs)); err != nil {
			return err
		}
	}
	return nil
}

func bRandom(c *Context, g *Globals, el *EntityList, h *Host) error {
	return g.PutFloat(c.rng.Float32(), GlobalAddrReturn)
}

func bSound(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Sound == nil {
		return nil
	}
	ent, err := g.GetEntityID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	channel, err := g.GetFloat(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	sampleID, err := g.GetStringID(GlobalAddrArg0 + 6)
	if err != nil {
		return err
	}
	sample, _ := c.functions.Strings.Get(sampleID)
	volume, err := g.GetFloat(GlobalAddrArg0 + 9)
	if err != nil {
		return err
	}
	atten, err := g.GetFloat(GlobalAddrArg0 + 12)
	if err != nil {
		return err
	}
	h.Sound.StartSound(int32(ent), int32(channel), sample, volume, atten)
	return nil
}

func bNormalize(c *Context, g *Globals, el *EntityList, h *Host) error {
	v, err := g.GetVector(GlobalAddrArg0)
	if err != nil {
		return err
	}
	length := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
	if length == 0 {
		return g.PutVector([3]float32{}, GlobalAddrReturn)
	}
	return g.PutVector([3]float32{v[0] / length, v[1] / length, v[2] / length}, GlobalAddrReturn)
}

func bVLen(c *Context, g *Globals, el *EntityList, h *Host) error {
	v, err := g.GetVector(GlobalAddrArg0)
	if err != nil {
		return err
	}
	length := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
	return g.PutFloat(length, GlobalAddrReturn)
}

func bVecToYaw(c *Context, g *Globals, el *EntityList, h *Host) error {
	v, err := g.GetVector(GlobalAddrArg0)
	if err != nil {
		return err
	}
	if v[0] == 0 && v[1] == 0 {
		return g.PutFloat(0, GlobalAddrReturn)
	}
	yaw := float32(math.Atan2(float64(v[1]), float64(v[0])) * 180 / math.Pi)
	if yaw < 0 {
		yaw += 360
	}
	return g.PutFloat(yaw, GlobalAddrReturn)
}

func bVecToAngles(c *Context, g *Globals, el *EntityList, h *Host) error {
	v, err := g.GetVector(GlobalAddrArg0)
	if err != nil {
		return err
	}
	forward := math.Sqrt(float64(v[0]*v[0] + v[1]*v[1]))
	pitch := float32(0)
	if forward != 0 || v[2] != 0 {
		pitch = float32(math.Atan2(float64(-v[2]), forward) * 180 / math.Pi)
	}
	if pitch < 0 {
		pitch += 360
	}
	yaw := float32(0)
	if v[0] != 0 || v[1] != 0 {
		yaw = float32(math.Atan2(float64(v[1]), float64(v[0])) * 180 / math.Pi)
		if yaw < 0 {
			yaw += 360
		}
	}
	return g.PutVector([3]float32{pitch, yaw, 0}, GlobalAddrReturn)
}

func bChangeYaw(c *Context, g *Globals, el *EntityList, h *Host) error {
	return fmtErr(KindBuiltin, "changeyaw", "not implemented: ideal_yaw steering is a simulation-layer concern")
}

func bError(c *Context, g *Globals, el *EntityList, h *Host) error {
	msgID, err := g.GetStringID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	msg, _ := c.functions.Strings.Get(msgID)
	if h != nil && h.Printer != nil {
		h.Printer.Err(msg)
	}
	return fmtErr(KindBuiltin, "error", "program error: %s", msg)
}

func bObjError(c *Context, g *Globals, el *EntityList, h *Host) error {
	msgID, err := g.GetStringID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	msg, _ := c.functions.Strings.Get(msgID)
	self, _ := g.GetEntityID(GlobalAddrSelf)
	if h != nil && h.Printer != nil {
		h.Printer.Err(msg)
	}
	if self != 0 {
		_ = el.Remove(self)
	}
	return fmtErr(KindBuiltin, "objerror", "object error on entity %d: %s", self, msg)
}

func bSpawn(c *Context, g *Globals, el *EntityList, h *Host) error {
	id := el.Spawn()
	return g.PutEntityID(id, GlobalAddrReturn)
}

func bRemove(c *Context, g *Globals, el *EntityList, h *Host) error {
	ent, err := g.GetEntityID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	return el.Remove(ent)
}

func bPrecacheSound(c *Context, g *Globals, el *EntityList, h *Host) error {
	return precacheString(c, g, h, func(p Precacher, s string) int32 { return p.PrecacheSound(s) })
}

func bPrecacheModel(c *Context, g *Globals, el *EntityList, h *Host) error {
	return precacheString(c, g, h, func(p Precacher, s string) int32 { return p.PrecacheModel(s) })
}

func precacheString(c *Context, g *Globals, h *Host, use func(Precacher, string) int32) error {
	id, err := g.GetStringID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	name, _ := c.functions.Strings.Get(id)
	if h != nil && h.Precacher != nil {
		use(h.Precacher, name)
	}
	return g.PutStringID(id, GlobalAddrReturn)
}

func bPrecacheFile(c *Context, g *Globals, el *EntityList, h *Host) error {
	id, err := g.GetStringID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	if h != nil && h.Precacher != nil {
		name, _ := c.functions.Strings.Get(id)
		h.Precacher.PrecacheFile(name)
	}
	return g.PutStringID(id, GlobalAddrReturn)
}

func printString(c *Context, g *Globals, emit func(string)) error {
	id, err := g.GetStringID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	s, _ := c.functions.Strings.Get(id)
	emit(s)
	return nil
}

func bBPrint(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Printer == nil {
		return nil
	}
	return printString(c, g, h.Printer.Broadcast)
}

func bSPrint(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Printer == nil {
		return nil
	}
	return printString(c, g, h.Printer.ToClient)
}

func bDPrint(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Printer == nil {
		return nil
	}
	return printString(c, g, h.Printer.Dev)
}

func bEPrint(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Printer == nil {
		return nil
	}
	return printString(c, g, h.Printer.Err)
}

func bCenterPrint(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Printer == nil {
		return nil
	}
	return printString(c, g, h.Printer.ToClient)
}

func bFToS(c *Context, g *Globals, el *EntityList, h *Host) error {
	f, err := g.GetFloat(GlobalAddrArg0)
	if err != nil {
		return err
	}
	id := c.functions.Strings.Insert(formatQCFloat(f))
	return g.PutStringID(id, GlobalAddrReturn)
}

func bVToS(c *Context, g *Globals, el *EntityList, h *Host) error {
	v, err := g.GetVector(GlobalAddrArg0)
	if err != nil {
		return err
	}
	s := fmt.Sprintf("'%s %s %s'", formatQCFloat(v[0]), formatQCFloat(v[1]), formatQCFloat(v[2]))
	id := c.functions.Strings.Insert(s)
	return g.PutStringID(id, GlobalAddrReturn)
}

func formatQCFloat(f float32) string {
	return fmt.Sprintf("%.1f", f)
}

func bRInt(c *Context, g *Globals, el *EntityList, h *Host) error {
	f, err := g.GetFloat(GlobalAddrArg0)
	if err != nil {
		return err
	}
	return g.PutFloat(float32(math.Round(float64(f))), GlobalAddrReturn)
}

func bFloor(c *Context, g *Globals, el *EntityList, h *Host) error {
	f, err := g.GetFloat(GlobalAddrArg0)
	if err != nil {
		return err
	}
	return g.PutFloat(float32(math.Floor(float64(f))), GlobalAddrReturn)
}

func bCeil(c *Context, g *Globals, el *EntityList, h *Host) error {
	f, err := g.GetFloat(GlobalAddrArg0)
	if err != nil {
		return err
	}
	return g.PutFloat(float32(math.Ceil(float64(f))), GlobalAddrReturn)
}

func bFAbs(c *Context, g *Globals, el *EntityList, h *Host) error {
	f, err := g.GetFloat(GlobalAddrArg0)
	if err != nil {
		return err
	}
	return g.PutFloat(float32(math.Abs(float64(f))), GlobalAddrReturn)
}

func bCvar(c *Context, g *Globals, el *EntityList, h *Host) error {
	id, err := g.GetStringID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	name, _ := c.functions.Strings.Get(id)
	var v float32
	if h != nil && h.Cvars != nil {
		v, _ = h.Cvars.Value(name)
	}
	return g.PutFloat(v, GlobalAddrReturn)
}

func bCvarSet(c *Context, g *Globals, el *EntityList, h *Host) error {
	id, err := g.GetStringID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	name, _ := c.functions.Strings.Get(id)
	v, err := g.GetFloat(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	if h != nil && h.Cvars != nil {
		h.Cvars.SetValue(name, v)
	}
	return nil
}

func bWriteByte(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Message == nil {
		return nil
	}
	f, err := g.GetFloat(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	h.Message.WriteByte(byte(int32(f)))
	return nil
}

func bWriteShort(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Message == nil {
		return nil
	}
	f, err := g.GetFloat(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	h.Message.WriteShort(int16(f))
	return nil
}

func bWriteLong(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Message == nil {
		return nil
	}
	f, err := g.GetFloat(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	h.Message.WriteLong(int32(f))
	return nil
}

func bWriteCoord(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Message == nil {
		return nil
	}
	f, err := g.GetFloat(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	h.Message.WriteCoord(f)
	return nil
}

func bWriteAngle(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Message == nil {
		return nil
	}
	f, err := g.GetFloat(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	h.Message.WriteAngle(f)
	return nil
}

func bWriteString(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Message == nil {
		return nil
	}
	id, err := g.GetStringID(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	s, _ := c.functions.Strings.Get(id)
	h.Message.WriteString(s)
	return nil
}

func bWriteEntity(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Message == nil {
		return nil
	}
	ent, err := g.GetEntityID(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	h.Message.WriteEntity(int32(ent))
	return nil
}

func bAmbientSound(c *Context, g *Globals, el *EntityList, h *Host) error {
	if h == nil || h.Sound == nil {
		return nil
	}
	origin, err := g.GetVector(GlobalAddrArg0)
	if err != nil {
		return err
	}
	sampleID, err := g.GetStringID(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	sample, _ := c.functions.Strings.Get(sampleID)
	volume, err := g.GetFloat(GlobalAddrArg0 + 6)
	if err != nil {
		return err
	}
	atten, err := g.GetFloat(GlobalAddrArg0 + 9)
	if err != nil {
		return err
	}
	h.Sound.AmbientSound(origin, sample, volume, atten)
	return nil
}

func bFind(c *Context, g *Globals, el *EntityList, h *Host) error {
	start, err := g.GetEntityID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	fld, err := g.GetFieldAddr(GlobalAddrArg0 + 3)
	if err != nil {
		return err
	}
	matchID, err := g.GetStringID(GlobalAddrArg0 + 6)
	if err != nil {
		return err
	}
	match, _ := c.functions.Strings.Get(matchID)
	for i := int(start) + 1; i < el.Len(); i++ {
		e, err := el.TryGetEntity(i)
		if err != nil {
			continue
		}
		sid, err := e.GetStringID(int16(fld))
		if err != nil {
			continue
		}
		s, _ := c.functions.Strings.Get(sid)
		if s == match {
			return g.PutEntityID(EntityID(i), GlobalAddrReturn)
		}
	}
	return g.PutEntityID(0, GlobalAddrReturn)
}

func bFindRadius(c *Context, g *Globals, el *EntityList, h *Host) error {
	return fmtErr(KindBuiltin, "findradius", "not implemented: requires entity 'origin' geometry owned by the simulation layer")
}

func bNextEnt(c *Context, g *Globals, el *EntityList, h *Host) error {
	ent, err := g.GetEntityID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	next := int(ent) + 1
	if next >= el.Len() {
		return g.PutEntityID(0, GlobalAddrReturn)
	}
	return g.PutEntityID(EntityID(next), GlobalAddrReturn)
}

func bCheckClient(c *Context, g *Globals, el *EntityList, h *Host) error {
	return g.PutEntityID(0, GlobalAddrReturn)
}

func bStuffCmd(c *Context, g *Globals, el *EntityList, h *Host) error {
	return nil
}

func bLocalCmd(c *Context, g *Globals, el *EntityList, h *Host) error {
	return nil
}

func bChangeLevel(c *Context, g *Globals, el *EntityList, h *Host) error {
	return nil
}

func bSetSpawnArgs(c *Context, g *Globals, el *EntityList, h *Host) error {
	return nil
}

func bMakeStatic(c *Context, g *Globals, el *EntityList, h *Host) error {
	ent, err := g.GetEntityID(GlobalAddrArg0)
	if err != nil {
		return err
	}
	return el.Remove(ent)
}

func bParticle(c *Context, g *Globals, el *EntityList, h *Host) error {
	return nil
}

func bLightStyle(c *Context, g *Globals, el *EntityList, h *Host) error {
	return nil
}
