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

// Entity is a fixed-size word array mirroring the field layout declared
// by FieldDefs. Every entity in the world shares one layout.
type Entity struct {
	words []Word
	free  bool // true once removed; the slot may be reused by a later spawn
}

func newEntity(stride int) *Entity {
	return &Entity{words: make([]Word, stride)}
}

func (e *Entity) bounds(op string, ofs int16) (int, error) {
	if ofs < 0 || int(ofs) >= len(e.words) {
		return 0, fmtErr(KindAddress, op, "field offset %d out of range [0,%d)", ofs, len(e.words))
	}
	return int(ofs), nil
}

func (e *Entity) vecBounds(op string, ofs int16) (int, error) {
	i, err := e.bounds(op, ofs)
	if err != nil {
		return 0, err
	}
	if i+2 >= len(e.words) {
		return 0, fmtErr(KindAddress, op, "vector field at offset %d overruns entity of stride %d", ofs, len(e.words))
	}
	return i, nil
}

func (e *Entity) GetBytes(ofs int16) (Word, error) {
	i, err := e.bounds("get_bytes", ofs)
	if err != nil {
		return Word{}, err
	}
	return e.words[i], nil
}

func (e *Entity) PutBytes(w Word, ofs int16) error {
	i, err := e.bounds("put_bytes", ofs)
	if err != nil {
		return err
	}
	e.words[i] = w
	return nil
}

func (e *Entity) GetFloat(ofs int16) (float32, error) {
	i, err := e.bounds("get_float", ofs)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(e.words[i][:])), nil
}

func (e *Entity) PutFloat(v float32, ofs int16) error {
	i, err := e.bounds("put_float", ofs)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(e.words[i][:], math.Float32bits(v))
	return nil
}

func (e *Entity) GetVector(ofs int16) ([3]float32, error) {
	i, err := e.vecBounds("get_vector", ofs)
	if err != nil {
		return [3]float32{}, err
	}
	var v [3]float32
	for c := 0; c < 3; c++ {
		v[c] = math.Float32frombits(binary.LittleEndian.Uint32(e.words[i+c][:]))
	}
	return v, nil
}

func (e *Entity) PutVector(v [3]float32, ofs int16) error {
	i, err := e.vecBounds("put_vector", ofs)
	if err != nil {
		return err
	}
	for c := 0; c < 3; c++ {
		binary.LittleEndian.PutUint32(e.words[i+c][:], math.Float32bits(v[c]))
	}
	return nil
}

func (e *Entity) getInt(ofs int16) (int32, error) {
	i, err := e.bounds("get_int", ofs)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(e.words[i][:])), nil
}

func (e *Entity) putInt(v int32, ofs int16) error {
	i, err := e.bounds("put_int", ofs)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(e.words[i][:], uint32(v))
	return nil
}

func (e *Entity) GetStringID(ofs int16) (StringID, error) {
	v, err := e.getInt(ofs)
	return StringID(v), err
}

func (e *Entity) PutStringID(id StringID, ofs int16) error { return e.putInt(int32(id), ofs) }

func (e *Entity) GetEntityID(ofs int16) (EntityID, error) {
	v, err := e.getInt(ofs)
	return EntityID(v), err
}

func (e *Entity) PutEntityID(id EntityID, ofs int16) error { return e.putInt(int32(id), ofs) }

func (e *Entity) GetFunctionID(ofs int16) (FunctionID, error) {
	v, err := e.getInt(ofs)
	return FunctionID(v), err
}

func (e *Entity) PutFunctionID(id FunctionID, ofs int16) error { return e.putInt(int32(id), ofs) }

// EntityList is the array of entity records sharing one field layout.
// Entity 0 is world, the NULL entity, and is never spawned or removed
// (invariant (v)).
type EntityList struct {
	Fields   *FieldDefs
	stride   int
	entities []*Entity
}

// NewEntityList allocates an entity list with a single reserved world
// entity (index 0). stride is the total field word count declared in
// the progs.dat header.
func NewEntityList(stride int, fields *FieldDefs) *EntityList {
	el := &EntityList{Fields: fields, stride: stride}
	el.entities = append(el.entities, newEntity(stride))
	return el
}

func (el *EntityList) Stride() int { return el.stride }
func (el *EntityList) Len() int    { return len(el.entities) }

func (el *EntityList) TryGetEntity(i int) (*Entity, error) {
	if i < 0 || i >= len(el.entities) {
		return nil, fmtErr(KindAddress, "entity", "entity id %d out of range [0,%d)", i, len(el.entities))
	}
	if el.entities[i].free {
		return nil, fmtErr(KindAddress, "entity", "entity id %d has been removed", i)
	}
	return el.entities[i], nil
}

func (el *EntityList) TryGetEntityMut(i int) (*Entity, error) { return el.TryGetEntity(i) }

// Spawn allocates a new entity, reusing a previously-removed slot when
// one is available, and returns its id. Entity 0 (world) is never
// reused: invariant (v) keeps it reserved for the lifetime of the list.
func (el *EntityList) Spawn() EntityID {
	for i := 1; i < len(el.entities); i++ {
		if el.entities[i].free {
			el.entities[i] = newEntity(el.stride)
			return EntityID(i)
		}
	}
	el.entities = append(el.entities, newEntity(el.stride))
	return EntityID(len(el.entities) - 1)
}

// Remove frees an entity slot for future reuse by Spawn. Removing world
// (entity 0) is a programming error and rejected per invariant (v).
func (el *EntityList) Remove(id EntityID) error {
	if id == 0 {
		return fmtErr(KindDiscipline, "remove", "cannot remove entity 0 (world)")
	}
	e, err := el.TryGetEntity(int(id))
	if err != nil {
		return err
	}
	e.free = true
	return nil
}

// PackEntityField packs an (entity, field) pair into the word form the
// address opcode produces and storep_* consumes.
func (el *EntityList) PackEntityField(e EntityID, f FieldAddr) EntityFieldAddr {
	return EntityFieldAddr(int32(e)*int32(el.stride) + int32(f))
}

// UnpackEntityField is the inverse of PackEntityField.
func (el *EntityList) UnpackEntityField(n EntityFieldAddr) (EntityID, FieldAddr) {
	stride := int32(el.stride)
	return EntityID(int32(n) / stride), FieldAddr(int32(n) % stride)
}
