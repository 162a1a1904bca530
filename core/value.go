/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
)

// Kind is the discriminant of a Value.
type Kind int

const (
	VoidKind Kind = iota
	NumberKind
	StringKind
	BinaryKind
	ListKind
	ObjectKind
)

func (k Kind) String() string {
	switch k {
	case VoidKind:
		return "void"
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case BinaryKind:
		return "binary"
	case ListKind:
		return "list"
	case ObjectKind:
		return "object"
	default:
		return "kind" + strconv.Itoa(int(k))
	}
}

// BinaryHeader is the named-parameter header of a Binary.  Several
// Binaries can share one header; the header counts its holders.
type BinaryHeader struct {
	// Params holds format metadata ("jpeg", "320", "240", ...).
	Params []string

	refs int32
}

// NewBinaryHeader makes a header with no references yet.  Bin takes
// the first one.
func NewBinaryHeader(params ...string) *BinaryHeader {
	return &BinaryHeader{
		Params: params,
	}
}

// Retain adds a reference and returns the header.
func (h *BinaryHeader) Retain() *BinaryHeader {
	if h != nil {
		atomic.AddInt32(&h.refs, 1)
	}
	return h
}

// Release drops a reference and reports whether this was the last
// one.
func (h *BinaryHeader) Release() bool {
	if h == nil {
		return false
	}
	return atomic.AddInt32(&h.refs, -1) == 0
}

// Refs reports the current number of references.
func (h *BinaryHeader) Refs() int {
	if h == nil {
		return 0
	}
	return int(atomic.LoadInt32(&h.refs))
}

func (h *BinaryHeader) sameFormat(o *BinaryHeader) bool {
	if h == o {
		return true
	}
	if h == nil || o == nil || len(h.Params) != len(o.Params) {
		return false
	}
	for i, p := range h.Params {
		if o.Params[i] != p {
			return false
		}
	}
	return true
}

// Binary is an opaque byte buffer plus a shared header.
type Binary struct {
	Header *BinaryHeader
	Data   []byte
}

// Value is a tagged union of number, string, binary, list, object
// reference and void.
//
// The zero Value is void.
type Value struct {
	kind Kind
	num  float64
	str  string
	bin  *Binary
	list []Value
	obj  *Object
}

// Void is the void Value.
var Void = Value{}

// Num makes a number.
func Num(f float64) Value {
	return Value{kind: NumberKind, num: f}
}

// Str makes a string.
func Str(s string) Value {
	return Value{kind: StringKind, str: s}
}

// Bin makes a binary that takes a reference on the given header.
func Bin(h *BinaryHeader, data []byte) Value {
	return Value{kind: BinaryKind, bin: &Binary{Header: h.Retain(), Data: data}}
}

// ListOf makes a list that owns the given elements.
func ListOf(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: ListKind, list: vs}
}

// ObjRef makes an object reference.
func ObjRef(o *Object) Value {
	return Value{kind: ObjectKind, obj: o}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsVoid() bool { return v.kind == VoidKind }

// Float returns the number and whether the Value is a number.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == NumberKind
}

// Text returns the string and whether the Value is a string.
func (v Value) Text() (string, bool) {
	return v.str, v.kind == StringKind
}

// Binary returns the binary payload (or nil).
func (v Value) Binary() *Binary {
	if v.kind != BinaryKind {
		return nil
	}
	return v.bin
}

// List returns the list elements (or nil).
func (v Value) List() []Value {
	if v.kind != ListKind {
		return nil
	}
	return v.list
}

// Object returns the referenced object (or nil).
func (v Value) Object() *Object {
	if v.kind != ObjectKind {
		return nil
	}
	return v.obj
}

// Truthy reports whether the value counts as true in a condition.
func (v Value) Truthy() bool {
	switch v.kind {
	case NumberKind:
		return v.num != 0 && !math.IsNaN(v.num)
	case StringKind:
		return v.str != ""
	case BinaryKind:
		return v.bin != nil && 0 < len(v.bin.Data)
	case ListKind:
		return 0 < len(v.list)
	case ObjectKind:
		return v.obj != nil
	default:
		return false
	}
}

// Add implements the polymorphic '+'.
func (v Value) Add(o Value) (Value, error) {
	if v.kind != o.kind {
		if v.kind == StringKind || o.kind == StringKind {
			return Str(v.String() + o.String()), nil
		}
		return Void, &TypeMismatch{Op: "+", Left: v.kind, Right: o.kind}
	}
	switch v.kind {
	case NumberKind:
		return Num(v.num + o.num), nil
	case StringKind:
		return Str(v.str + o.str), nil
	case ListKind:
		acc := make([]Value, 0, len(v.list)+len(o.list))
		for _, x := range v.list {
			acc = append(acc, x.Copy())
		}
		for _, x := range o.list {
			acc = append(acc, x.Copy())
		}
		return ListOf(acc...), nil
	case BinaryKind:
		if !v.bin.Header.sameFormat(o.bin.Header) {
			return Void, &TypeMismatch{Op: "+", Left: v.kind, Right: o.kind}
		}
		data := make([]byte, 0, len(v.bin.Data)+len(o.bin.Data))
		data = append(data, v.bin.Data...)
		data = append(data, o.bin.Data...)
		return Bin(v.bin.Header, data), nil
	default:
		return Void, &TypeMismatch{Op: "+", Left: v.kind, Right: o.kind}
	}
}

// Equal is structural equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case VoidKind:
		return true
	case NumberKind:
		return v.num == o.num
	case StringKind:
		return v.str == o.str
	case BinaryKind:
		return v.bin.Header.sameFormat(o.bin.Header) && bytes.Equal(v.bin.Data, o.bin.Data)
	case ListKind:
		if len(v.list) != len(o.list) {
			return false
		}
		for i, x := range v.list {
			if !x.Equal(o.list[i]) {
				return false
			}
		}
		return true
	case ObjectKind:
		return v.obj == o.obj
	}
	return false
}

// Copy makes a copy that owns its list payload.  Binary data is
// copied but the header is shared.
func (v Value) Copy() Value {
	switch v.kind {
	case ListKind:
		acc := make([]Value, len(v.list))
		for i, x := range v.list {
			acc[i] = x.Copy()
		}
		return ListOf(acc...)
	case BinaryKind:
		data := make([]byte, len(v.bin.Data))
		copy(data, v.bin.Data)
		return Bin(v.bin.Header, data)
	default:
		return v
	}
}

func (v Value) String() string {
	switch v.kind {
	case VoidKind:
		return "void"
	case NumberKind:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case StringKind:
		return v.str
	case BinaryKind:
		return "BIN " + strconv.Itoa(len(v.bin.Data)) + " " + strings.Join(v.bin.Header.Params, " ")
	case ListKind:
		ss := make([]string, len(v.list))
		for i, x := range v.list {
			if x.kind == StringKind {
				ss[i] = strconv.Quote(x.str)
			} else {
				ss[i] = x.String()
			}
		}
		return "[" + strings.Join(ss, ", ") + "]"
	case ObjectKind:
		return v.obj.Name
	}
	return "?"
}

// Interface converts to plain Go data suitable for JSON.
func (v Value) Interface() interface{} {
	switch v.kind {
	case NumberKind:
		return v.num
	case StringKind:
		return v.str
	case BinaryKind:
		return map[string]interface{}{
			"bin":    v.bin.Data,
			"params": v.bin.Header.Params,
		}
	case ListKind:
		acc := make([]interface{}, len(v.list))
		for i, x := range v.list {
			acc[i] = x.Interface()
		}
		return acc
	case ObjectKind:
		return map[string]interface{}{"object": v.obj.Name}
	}
	return nil
}

// FromInterface converts plain Go data (as from JSON) to a Value.
//
// Maps become lists of [key, value] pairs sorted by key.
func FromInterface(x interface{}) Value {
	switch vv := x.(type) {
	case nil:
		return Void
	case Value:
		return vv
	case float64:
		return Num(vv)
	case float32:
		return Num(float64(vv))
	case int:
		return Num(float64(vv))
	case int64:
		return Num(float64(vv))
	case int32:
		return Num(float64(vv))
	case bool:
		if vv {
			return Num(1)
		}
		return Num(0)
	case string:
		return Str(vv)
	case json.Number:
		f, err := vv.Float64()
		if err != nil {
			return Str(vv.String())
		}
		return Num(f)
	case []byte:
		return Bin(NewBinaryHeader(), vv)
	case []interface{}:
		acc := make([]Value, len(vv))
		for i, y := range vv {
			acc[i] = FromInterface(y)
		}
		return ListOf(acc...)
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		acc := make([]Value, len(keys))
		for i, k := range keys {
			acc[i] = ListOf(Str(k), FromInterface(vv[k]))
		}
		return ListOf(acc...)
	}
	return Void
}

// MarshalJSON renders the Value via Interface.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON reads plain JSON via FromInterface.
func (v *Value) UnmarshalJSON(bs []byte) error {
	var x interface{}
	if err := json.Unmarshal(bs, &x); err != nil {
		return err
	}
	*v = FromInterface(x)
	return nil
}
