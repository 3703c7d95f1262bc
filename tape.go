/*
 * MinIO Cloud Storage, (C) 2020 MinIO, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package simdjson

import (
	"fmt"
	"math"
	"strconv"
)

const JSONVALUEMASK = 0xffffffffffffff
const JSONTAGOFFSET = 56
const JSONTAGMASK = 0xff << JSONTAGOFFSET
const STRINGBUFBIT = 0x80000000000000
const STRINGBUFMASK = 0x7fffffffffffff

// scopeIndexMask isolates the matching-slot index packed into the low 32
// bits of an object/array scope-start payload; the high 24 bits hold the
// saturated child count (spec §3.3).
const scopeIndexMask = 0xffffffff
const scopeChildCountShift = 32
const scopeChildCountMax = 0xffffff

// Tag indicates the data type of a tape entry.
type Tag uint8

const (
	// TagEnd is never stored on tape: it is the in-memory sentinel an Iter
	// reports once it has run off the end of the tape slice.
	TagEnd = Tag(0)
	// TagNop is the tombstone tag left by Object.DeleteElems; its payload is
	// the number of tape slots to skip. It shares TagEnd's zero value since
	// the two are never read from the same context (TagEnd is a synthetic
	// end-of-tape marker, TagNop is only ever produced on tape).
	TagNop         = Tag(0)
	TagString      = Tag('"')
	TagInteger     = Tag('l')
	TagUint        = Tag('u')
	TagFloat       = Tag('d')
	TagNull        = Tag('n')
	TagBoolTrue    = Tag('t')
	TagBoolFalse   = Tag('f')
	TagObjectStart = Tag('{')
	TagObjectEnd   = Tag('}')
	TagArrayStart  = Tag('[')
	TagArrayEnd    = Tag(']')
	TagRoot        = Tag('r')
)

func (t Tag) String() string {
	if t == TagEnd {
		return "(end)"
	}
	if t == TagNop {
		return "(nop)"
	}
	return string([]byte{byte(t)})
}

// Type is a JSON value type.
type Type uint8

const (
	TypeNone Type = iota
	TypeNull
	TypeString
	TypeInt
	TypeUint
	TypeFloat
	TypeBool
	TypeObject
	TypeArray
	TypeRoot
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "(no type)"
	case TypeNull:
		return "null"
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeUint:
		return "uint"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeObject:
		return "object"
	case TypeArray:
		return "array"
	case TypeRoot:
		return "root"
	}
	return "(invalid)"
}

// TagToType converts a tag to a type. Only scalar tags and scope-start tags
// have a type; everything else (scope ends, the tombstone tag) maps to
// TypeNone.
var TagToType = [256]Type{
	TagString:      TypeString,
	TagInteger:     TypeInt,
	TagUint:        TypeUint,
	TagFloat:       TypeFloat,
	TagNull:        TypeNull,
	TagBoolTrue:    TypeBool,
	TagBoolFalse:   TypeBool,
	TagObjectStart: TypeObject,
	TagArrayStart:  TypeArray,
	TagRoot:        TypeRoot,
}

// Type converts a tag to its type.
func (t Tag) Type() Type {
	return TagToType[t]
}

// tagOpenToClose maps a scope-start tag to its matching scope-end tag, used
// by the tape serializer to reconstruct closing slots without re-walking
// the source document.
var tagOpenToClose = map[Tag]Tag{
	TagObjectStart: TagObjectEnd,
	TagArrayStart:  TagArrayEnd,
}

// FloatFlag is a flag recorded when parsing floats.
type FloatFlag uint64

// FloatFlags are flags recorded when converting numbers.
type FloatFlags uint64

const (
	// FloatOverflowedInteger is set when a number was written in integer
	// notation but over/underflowed both int64 and uint64, and was
	// therefore stored as a float64.
	FloatOverflowedInteger FloatFlag = 1 << iota
)

// Contains returns whether f contains the specified flag.
func (f FloatFlags) Contains(flag FloatFlag) bool {
	return FloatFlag(f)&flag == flag
}

// ParsedJson holds a parsed tape: the tape words themselves, the decoded
// string payload buffer, and (optionally) the original message bytes for
// strings that were not copied (see WithCopyStrings).
type ParsedJson struct {
	Message []byte
	Tape    []uint64
	Strings []byte

	// internal, when set, allows Parse to reuse allocations across calls.
	internal *internalParsedJson
}

// Iter returns a new Iter positioned before the first tape entry.
func (pj *ParsedJson) Iter() Iter {
	return Iter{tape: *pj}
}

// Reset clears all buffers for reuse while keeping their capacity.
func (pj *ParsedJson) Reset() {
	pj.Tape = pj.Tape[:0]
	pj.Strings = pj.Strings[:0]
	pj.Message = pj.Message[:0]
}

func (pj *ParsedJson) stringAt(offset, length uint64) (string, error) {
	b, err := pj.stringByteAt(offset, length)
	return string(b), err
}

func (pj *ParsedJson) stringByteAt(offset, length uint64) ([]byte, error) {
	if offset&STRINGBUFBIT == 0 {
		if offset+length > uint64(len(pj.Message)) {
			return nil, errf(OUT_OF_BOUNDS, "string message offset (%v) outside valid area (%v)", offset+length, len(pj.Message))
		}
		return pj.Message[offset : offset+length], nil
	}
	offset &= STRINGBUFMASK
	if offset+length > uint64(len(pj.Strings)) {
		return nil, errf(OUT_OF_BOUNDS, "string buffer offset (%v) outside valid area (%v)", offset+length, len(pj.Strings))
	}
	return pj.Strings[offset : offset+length], nil
}

func (pj *ParsedJson) getCurrentLoc() uint64 {
	return uint64(len(pj.Tape))
}

func (pj *ParsedJson) writeTape(val uint64, c Tag) {
	pj.Tape = append(pj.Tape, val|(uint64(c)<<JSONTAGOFFSET))
}

func (pj *ParsedJson) writeTapeTagVal(tag Tag, val uint64) {
	pj.Tape = append(pj.Tape, uint64(tag)<<JSONTAGOFFSET, val)
}

func (pj *ParsedJson) writeTapeS64(val int64) {
	pj.writeTapeTagVal(TagInteger, uint64(val))
}

func (pj *ParsedJson) writeTapeU64(val uint64) {
	pj.writeTapeTagVal(TagUint, val)
}

func (pj *ParsedJson) writeTapeDouble(d float64, flags uint64) {
	pj.Tape = append(pj.Tape, uint64(TagFloat)<<JSONTAGOFFSET|flags, math.Float64bits(d))
}

func (pj *ParsedJson) annotatePreviousLoc(savedLoc uint64, val uint64) {
	pj.Tape[savedLoc] |= val
}

// Iter represents a section of JSON. To start iterating, use Advance,
// AdvanceInto or AdvanceIter, which queue the first element. If an Iter is
// copied, the copy is independent.
type Iter struct {
	tape ParsedJson

	// offset of the next entry to be decoded
	off int

	// addNext is the number of entries to skip for the next entry.
	addNext int

	// current value, tag bits excluded
	cur uint64

	// current tag
	t Tag
}

// Advance reads the type of the next element and queues up the value on
// the same level.
func (i *Iter) Advance() Type {
	i.off += i.addNext
	if i.off >= len(i.tape.Tape) {
		i.addNext = 0
		i.t = TagEnd
		return TypeNone
	}
	v := i.tape.Tape[i.off]
	i.cur = v & JSONVALUEMASK
	i.t = Tag(v >> JSONTAGOFFSET)
	i.off++
	if i.t == TagNop {
		i.off += int(i.cur) - 1
		return i.Advance()
	}
	i.calcNext(false)
	if i.addNext < 0 {
		i.moveToEnd()
		return TypeNone
	}
	return TagToType[i.t]
}

// AdvanceInto reads the tag of the next element and moves into and out of
// arrays, objects and root elements. Only use this for manual parsing.
func (i *Iter) AdvanceInto() Tag {
	i.off += i.addNext
	if i.off >= len(i.tape.Tape) {
		i.addNext = 0
		i.t = TagEnd
		return TagEnd
	}
	v := i.tape.Tape[i.off]
	i.cur = v & JSONVALUEMASK
	i.t = Tag(v >> JSONTAGOFFSET)
	i.off++
	if i.t == TagNop {
		i.off += int(i.cur) - 1
		return i.AdvanceInto()
	}
	i.calcNext(true)
	if i.addNext < 0 {
		i.moveToEnd()
		return TagEnd
	}
	return i.t
}

func (i *Iter) moveToEnd() {
	i.off = len(i.tape.Tape)
	i.addNext = 0
	i.t = TagEnd
}

// calcNext populates addNext with the number of tape slots to skip to reach
// the next sibling. into controls whether scopes are descended into.
func (i *Iter) calcNext(into bool) {
	i.addNext = 0
	switch i.t {
	case TagInteger, TagUint, TagFloat, TagString:
		i.addNext = 1
	case TagRoot:
		if !into {
			i.addNext = int(i.cur) - i.off
		}
	case TagObjectStart, TagArrayStart:
		if !into {
			i.addNext = int(i.cur&scopeIndexMask) + 1 - i.off
		}
	}
}

// ChildCount returns the saturated child count recorded in a scope-start
// payload (spec §4.D.2). Only meaningful when Type() is TypeArray or
// TypeObject.
func (i *Iter) ChildCount() int {
	return int(i.cur >> scopeChildCountShift)
}

// Type returns the queued value type from the previous call to Advance.
func (i *Iter) Type() Type {
	if i.off+i.addNext > len(i.tape.Tape) {
		return TypeNone
	}
	return TagToType[i.t]
}

// AdvanceIter reads the type of the next element and returns an iterator
// containing only that element. If dst and i are the same, both will
// contain the value inside.
func (i *Iter) AdvanceIter(dst *Iter) (Type, error) {
	i.off += i.addNext
	if i.off == len(i.tape.Tape) {
		i.addNext = 0
		i.t = TagEnd
		return TypeNone, nil
	}
	if i.off > len(i.tape.Tape) {
		return TypeNone, errc(OUT_OF_BOUNDS)
	}
	v := i.tape.Tape[i.off]
	i.cur = v & JSONVALUEMASK
	i.t = Tag(v >> JSONTAGOFFSET)
	i.off++
	if i.t == TagNop {
		i.off += int(i.cur) - 1
		return i.AdvanceIter(dst)
	}
	i.calcNext(false)
	if i.addNext < 0 {
		i.moveToEnd()
		return TypeNone, errc(TAPE_ERROR)
	}

	iEnd := i.off + i.addNext
	typ := TagToType[i.t]

	if i != dst {
		*dst = *i
	}
	dst.calcNext(true)
	if dst.addNext < 0 {
		i.moveToEnd()
		return TypeNone, errc(TAPE_ERROR)
	}
	if iEnd > len(dst.tape.Tape) {
		return TypeNone, errc(OUT_OF_BOUNDS)
	}
	dst.tape.Tape = dst.tape.Tape[:iEnd]
	return typ, nil
}

// PeekNext returns the next value's type without consuming it.
func (i *Iter) PeekNext() Type {
	if i.off+i.addNext >= len(i.tape.Tape) {
		return TypeNone
	}
	return TagToType[Tag(i.tape.Tape[i.off+i.addNext]>>JSONTAGOFFSET)]
}

// PeekNextTag returns the tag at the current offset, or TagEnd if at the end.
func (i *Iter) PeekNextTag() Tag {
	if i.off+i.addNext >= len(i.tape.Tape) {
		return TagEnd
	}
	return Tag(i.tape.Tape[i.off+i.addNext] >> JSONTAGOFFSET)
}

// Float returns the float value of the next element. Integers are
// automatically converted to float.
func (i *Iter) Float() (float64, error) {
	switch i.t {
	case TagFloat:
		if i.off >= len(i.tape.Tape) {
			return 0, errc(OUT_OF_BOUNDS)
		}
		return math.Float64frombits(i.tape.Tape[i.off]), nil
	case TagInteger:
		if i.off >= len(i.tape.Tape) {
			return 0, errc(OUT_OF_BOUNDS)
		}
		return float64(int64(i.tape.Tape[i.off])), nil
	case TagUint:
		if i.off >= len(i.tape.Tape) {
			return 0, errc(OUT_OF_BOUNDS)
		}
		return float64(i.tape.Tape[i.off]), nil
	default:
		return 0, errf(INCORRECT_TYPE, "unable to convert type %v to float", i.t)
	}
}

// FloatFlags returns the float value and any flags recorded while parsing.
func (i *Iter) FloatFlags() (float64, FloatFlags, error) {
	if i.off >= len(i.tape.Tape) {
		return 0, 0, errc(OUT_OF_BOUNDS)
	}
	switch i.t {
	case TagFloat:
		return math.Float64frombits(i.tape.Tape[i.off]), FloatFlags(i.cur), nil
	case TagInteger:
		return float64(int64(i.tape.Tape[i.off])), 0, nil
	case TagUint:
		return float64(i.tape.Tape[i.off]), 0, nil
	default:
		return 0, 0, errf(INCORRECT_TYPE, "unable to convert type %v to float", i.t)
	}
}

// Int returns the integer value of the next element. Floats and uints
// within range are automatically converted.
func (i *Iter) Int() (int64, error) {
	if i.off >= len(i.tape.Tape) {
		return 0, errc(OUT_OF_BOUNDS)
	}
	switch i.t {
	case TagFloat:
		v := math.Float64frombits(i.tape.Tape[i.off])
		if v > math.MaxInt64 || v < math.MinInt64 {
			return 0, errc(NUMBER_OUT_OF_RANGE)
		}
		return int64(v), nil
	case TagInteger:
		return int64(i.tape.Tape[i.off]), nil
	case TagUint:
		v := i.tape.Tape[i.off]
		if v > math.MaxInt64 {
			return 0, errc(NUMBER_OUT_OF_RANGE)
		}
		return int64(v), nil
	default:
		return 0, errf(INCORRECT_TYPE, "unable to convert type %v to int", i.t)
	}
}

// Uint returns the unsigned integer value of the next element.
func (i *Iter) Uint() (uint64, error) {
	if i.off >= len(i.tape.Tape) {
		return 0, errc(OUT_OF_BOUNDS)
	}
	switch i.t {
	case TagFloat:
		v := math.Float64frombits(i.tape.Tape[i.off])
		if v > math.MaxUint64 || v < 0 {
			return 0, errc(NUMBER_OUT_OF_RANGE)
		}
		return uint64(v), nil
	case TagInteger:
		v := int64(i.tape.Tape[i.off])
		if v < 0 {
			return 0, errc(NUMBER_OUT_OF_RANGE)
		}
		return uint64(v), nil
	case TagUint:
		return i.tape.Tape[i.off], nil
	default:
		return 0, errf(INCORRECT_TYPE, "unable to convert type %v to uint", i.t)
	}
}

// Bool returns the bool value.
func (i *Iter) Bool() (bool, error) {
	switch i.t {
	case TagBoolTrue:
		return true, nil
	case TagBoolFalse:
		return false, nil
	}
	return false, errf(INCORRECT_TYPE, "value is not bool, but %v", i.t)
}

// String returns a string value.
func (i *Iter) String() (string, error) {
	if i.t != TagString {
		return "", errf(INCORRECT_TYPE, "value is not string, but %v", i.t)
	}
	if i.off >= len(i.tape.Tape) {
		return "", errc(OUT_OF_BOUNDS)
	}
	return i.tape.stringAt(i.cur, i.tape.Tape[i.off])
}

// StringBytes returns the string value without copying it into a new string.
func (i *Iter) StringBytes() ([]byte, error) {
	if i.t != TagString {
		return nil, errf(INCORRECT_TYPE, "value is not string, but %v", i.t)
	}
	if i.off >= len(i.tape.Tape) {
		return nil, errc(OUT_OF_BOUNDS)
	}
	return i.tape.stringByteAt(i.cur, i.tape.Tape[i.off])
}

// StringCvt returns a string representation of any scalar value. Root,
// object and array values are not supported.
func (i *Iter) StringCvt() (string, error) {
	switch i.t {
	case TagString:
		return i.String()
	case TagInteger:
		v, err := i.Int()
		return strconv.FormatInt(v, 10), err
	case TagUint:
		v, err := i.Uint()
		return strconv.FormatUint(v, 10), err
	case TagFloat:
		v, err := i.Float()
		if err != nil {
			return "", err
		}
		return floatToString(v)
	case TagBoolFalse:
		return "false", nil
	case TagBoolTrue:
		return "true", nil
	case TagNull:
		return "null", nil
	}
	return "", errf(INCORRECT_TYPE, "cannot convert type %s to string", i.t.Type())
}

// Root returns the value embedded in a root tape slot as an iterator, along
// with the type of its first element. An optional destination can be given
// to avoid allocations.
func (i *Iter) Root(dst *Iter) (Type, *Iter, error) {
	if i.t != TagRoot {
		return TypeNone, dst, errf(INCORRECT_TYPE, "value is not root, but %v", i.t)
	}
	if i.cur > uint64(len(i.tape.Tape)) {
		return TypeNone, dst, errc(OUT_OF_BOUNDS)
	}
	if dst == nil {
		c := *i
		dst = &c
	} else {
		dst.cur = i.cur
		dst.off = i.off
		dst.t = i.t
		dst.tape.Strings = i.tape.Strings
		dst.tape.Message = i.tape.Message
	}
	dst.addNext = 0
	dst.tape.Tape = i.tape.Tape[:i.cur-1]
	return dst.AdvanceInto().Type(), dst, nil
}

// Interface decodes the value as a Go value: objects become
// map[string]interface{}, arrays become []interface{}, numbers become
// int64/uint64/float64, strings become string, booleans bool, null nil.
func (i *Iter) Interface() (interface{}, error) {
	switch i.t.Type() {
	case TypeUint:
		return i.Uint()
	case TypeInt:
		return i.Int()
	case TypeFloat:
		return i.Float()
	case TypeNull:
		return nil, nil
	case TypeArray:
		arr, err := i.Array(nil)
		if err != nil {
			return nil, err
		}
		return arr.Interface()
	case TypeString:
		return i.String()
	case TypeObject:
		obj, err := i.Object(nil)
		if err != nil {
			return nil, err
		}
		return obj.Map(nil)
	case TypeBool:
		return i.t == TagBoolTrue, nil
	case TypeRoot:
		var dst []interface{}
		var tmp Iter
		for {
			typ, obj, err := i.Root(&tmp)
			if err != nil {
				return nil, err
			}
			if typ == TypeNone {
				break
			}
			elem, err := obj.Interface()
			if err != nil {
				return nil, err
			}
			dst = append(dst, elem)
			if i.Advance() != TypeRoot {
				break
			}
		}
		return dst, nil
	case TypeNone:
		if i.PeekNextTag() == TagEnd {
			return nil, errc(OUT_OF_BOUNDS)
		}
		i.Advance()
		return i.Interface()
	}
	return nil, errf(UNEXPECTED_ERROR, "unknown tag type: %v", i.t)
}

// Object returns the next element as an object. An optional destination can
// be given to avoid allocations.
func (i *Iter) Object(dst *Object) (*Object, error) {
	if i.t != TagObjectStart {
		return nil, errf(INCORRECT_TYPE, "next item is not object, but %v", i.t)
	}
	end := i.cur & scopeIndexMask
	if end < uint64(i.off) {
		return nil, errc(TAPE_ERROR)
	}
	if uint64(len(i.tape.Tape)) < end {
		return nil, errc(OUT_OF_BOUNDS)
	}
	if dst == nil {
		dst = &Object{}
	}
	dst.tape.Tape = i.tape.Tape[:end]
	dst.tape.Strings = i.tape.Strings
	dst.tape.Message = i.tape.Message
	dst.off = i.off
	return dst, nil
}

// Array returns the next element as an array. An optional destination can
// be given to avoid allocations.
func (i *Iter) Array(dst *Array) (*Array, error) {
	if i.t != TagArrayStart {
		return nil, errf(INCORRECT_TYPE, "next item is not array, but %v", i.t)
	}
	end := i.cur&scopeIndexMask + 1
	if uint64(len(i.tape.Tape)) < end {
		return nil, errc(OUT_OF_BOUNDS)
	}
	if dst == nil {
		dst = &Array{}
	}
	dst.tape.Tape = i.tape.Tape[:end]
	dst.tape.Strings = i.tape.Strings
	dst.tape.Message = i.tape.Message
	dst.off = i.off
	return dst, nil
}

// MarshalJSON marshals the entire remaining scope of the iterator.
func (i *Iter) MarshalJSON() ([]byte, error) {
	return i.MarshalJSONBuffer(nil)
}

// MarshalJSONBuffer marshals the remaining scope of the iterator, including
// the current value, appending the result to dst.
func (i *Iter) MarshalJSONBuffer(dst []byte) ([]byte, error) {
	var stackTmp [100]uint8
	stack := stackTmp[:1]
	const (
		stackNone = iota
		stackArray
		stackObject
		stackRoot
	)

writeloop:
	for {
		if stack[len(stack)-1] == stackObject && i.t != TagObjectEnd {
			sb, err := i.StringBytes()
			if err != nil {
				return nil, fmt.Errorf("expected key within object: %w", err)
			}
			dst = append(dst, '"')
			dst = escapeBytes(dst, sb)
			dst = append(dst, '"', ':')
			if i.PeekNextTag() == TagEnd {
				return nil, errc(INCOMPLETE_ARRAY_OR_OBJECT)
			}
			i.AdvanceInto()
		}
	tagswitch:
		switch i.t {
		case TagRoot:
			isOpenRoot := int(i.cur) > i.off
			if len(stack) > 1 {
				if isOpenRoot {
					return dst, errc(TAPE_ERROR)
				}
				l := stack[len(stack)-1]
				switch l {
				case stackRoot:
					if i.PeekNextTag() != TagEnd {
						dst = append(dst, '\n')
					}
					stack = stack[:len(stack)-1]
					break tagswitch
				case stackNone:
					break writeloop
				default:
					return dst, errf(TAPE_ERROR, "root tag, but not at top of stack, got id %d", l)
				}
			}
			if isOpenRoot {
				i.addNext = 0
			}
			i.AdvanceInto()
			stack = append(stack, stackRoot)
			continue
		case TagString:
			sb, err := i.StringBytes()
			if err != nil {
				return nil, err
			}
			dst = append(dst, '"')
			dst = escapeBytes(dst, sb)
			dst = append(dst, '"')
		case TagInteger:
			v, err := i.Int()
			if err != nil {
				return nil, err
			}
			dst = strconv.AppendInt(dst, v, 10)
		case TagUint:
			v, err := i.Uint()
			if err != nil {
				return nil, err
			}
			dst = strconv.AppendUint(dst, v, 10)
		case TagFloat:
			v, err := i.Float()
			if err != nil {
				return nil, err
			}
			dst, err = appendFloat(dst, v)
			if err != nil {
				return nil, err
			}
		case TagNull:
			dst = append(dst, "null"...)
		case TagBoolTrue:
			dst = append(dst, "true"...)
		case TagBoolFalse:
			dst = append(dst, "false"...)
		case TagObjectStart:
			dst = append(dst, '{')
			stack = append(stack, stackObject)
			i.AdvanceInto()
			continue
		case TagObjectEnd:
			dst = append(dst, '}')
			if stack[len(stack)-1] != stackObject {
				return dst, errc(TAPE_ERROR)
			}
			stack = stack[:len(stack)-1]
		case TagArrayStart:
			dst = append(dst, '[')
			stack = append(stack, stackArray)
			i.AdvanceInto()
			continue
		case TagArrayEnd:
			dst = append(dst, ']')
			if stack[len(stack)-1] != stackArray {
				return nil, errc(TAPE_ERROR)
			}
			stack = stack[:len(stack)-1]
		case TagEnd:
			if i.PeekNextTag() == TagEnd {
				return nil, errc(UNINITIALIZED)
			}
			i.AdvanceInto()
			continue
		}

		if i.PeekNextTag() == TagEnd {
			break
		}
		i.AdvanceInto()

		switch stack[len(stack)-1] {
		case stackArray:
			if i.t != TagArrayEnd {
				dst = append(dst, ',')
			}
		case stackObject:
			if i.t != TagObjectEnd {
				dst = append(dst, ',')
			}
		}
	}
	if len(stack) > 1 {
		return nil, errf(INCOMPLETE_ARRAY_OR_OBJECT, "objects or arrays not closed, left on stack: %v", stack[1:])
	}
	return dst, nil
}

// DumpTape is a diagnostic entry point (spec §4.D.3): it walks the tape and
// writes one annotated line per slot. Not intended for serialization.
func (pj *ParsedJson) DumpTape(w interface{ Write([]byte) (int, error) }) error {
	write := func(format string, args ...interface{}) error {
		_, err := fmt.Fprintf(w, format, args...)
		return err
	}
	tape := pj.Tape
	for idx := 0; idx < len(tape); idx++ {
		val := tape[idx]
		tag := Tag(val >> JSONTAGOFFSET)
		payload := val & JSONVALUEMASK
		switch tag {
		case TagString:
			if idx+1 >= len(tape) {
				return errc(OUT_OF_BOUNDS)
			}
			length := tape[idx+1]
			s, err := pj.stringAt(payload, length)
			if err != nil {
				return err
			}
			if err := write("%d : string %q (o:%d, l:%d)\n", idx, s, payload, length); err != nil {
				return err
			}
			idx++
		case TagInteger:
			if idx+1 >= len(tape) {
				return errc(OUT_OF_BOUNDS)
			}
			idx++
			if err := write("%d : integer %d\n", idx-1, int64(tape[idx])); err != nil {
				return err
			}
		case TagUint:
			if idx+1 >= len(tape) {
				return errc(OUT_OF_BOUNDS)
			}
			idx++
			if err := write("%d : unsigned %d\n", idx-1, tape[idx]); err != nil {
				return err
			}
		case TagFloat:
			if idx+1 >= len(tape) {
				return errc(OUT_OF_BOUNDS)
			}
			idx++
			if err := write("%d : float %v\n", idx-1, math.Float64frombits(tape[idx])); err != nil {
				return err
			}
		case TagNull:
			if err := write("%d : null\n", idx); err != nil {
				return err
			}
		case TagBoolTrue:
			if err := write("%d : true\n", idx); err != nil {
				return err
			}
		case TagBoolFalse:
			if err := write("%d : false\n", idx); err != nil {
				return err
			}
		case TagObjectStart:
			if err := write("%d : { -> %d (children: %d)\n", idx, payload&scopeIndexMask, payload>>scopeChildCountShift); err != nil {
				return err
			}
		case TagObjectEnd:
			if err := write("%d : } -> %d\n", idx, payload); err != nil {
				return err
			}
		case TagArrayStart:
			if err := write("%d : [ -> %d (children: %d)\n", idx, payload&scopeIndexMask, payload>>scopeChildCountShift); err != nil {
				return err
			}
		case TagArrayEnd:
			if err := write("%d : ] -> %d\n", idx, payload); err != nil {
				return err
			}
		case TagRoot:
			if err := write("%d : root -> %d\n", idx, payload); err != nil {
				return err
			}
		case TagNop:
			if err := write("%d : nop (skip %d)\n", idx, payload); err != nil {
				return err
			}
		default:
			return errf(TAPE_ERROR, "unknown tag %d at slot %d", tag, idx)
		}
	}
	return nil
}

// escapeBytes escapes JSON bytes, appending the result to dst.
func escapeBytes(dst, src []byte) []byte {
	for _, s := range src {
		switch s {
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '"':
			dst = append(dst, '\\', '"')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\\':
			dst = append(dst, '\\', '\\')
		default:
			if s <= 0x1f {
				dst = append(dst, '\\', 'u', '0', '0', valToHex[s>>4], valToHex[s&0xf])
			} else {
				dst = append(dst, s)
			}
		}
	}
	return dst
}

var valToHex = [16]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 'a', 'b', 'c', 'd', 'e', 'f'}

// floatToString converts a float to a string the same way Go's stdlib would.
func floatToString(f float64) (string, error) {
	var tmp [32]byte
	v, err := appendFloat(tmp[:0], f)
	return string(v), err
}

// appendFloat converts a float to a string similar to the Go stdlib and
// appends it to dst. NaN/Inf are rejected: they cannot occur in valid JSON
// (spec §9.2).
func appendFloat(dst []byte, f float64) ([]byte, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, errc(NUMBER_ERROR)
	}
	// Convert as if by ES6 number-to-string conversion, matching most JSON
	// generators. See golang.org/issue/6384 and golang.org/issue/14135.
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 {
		if abs < 1e-6 || abs >= 1e21 {
			format = 'e'
		}
	}
	dst = strconv.AppendFloat(dst, f, format, -1, 64)
	if format == 'e' {
		// Clean up e-09 to e-9.
		n := len(dst)
		if n >= 4 && dst[n-4] == 'e' && dst[n-3] == '-' && dst[n-2] == '0' {
			dst[n-2] = dst[n-1]
			dst = dst[:n-1]
		}
	}
	return dst, nil
}
