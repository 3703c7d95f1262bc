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
)

// Object is a cursor over one object scope on a tape: a sequence of
// (name, value) pairs terminated by TagObjectEnd.
type Object struct {
	tape ParsedJson
	off  int
}

// fieldCursor walks the (name, value) pairs of one object scope without
// mutating the Object it was built from. Each call to next reads one
// field name and leaves val positioned at (but not past) the
// corresponding value.
type fieldCursor struct {
	val Iter
}

func (o *Object) cursor() fieldCursor {
	fc := fieldCursor{val: o.tape.Iter()}
	fc.val.off = o.off
	return fc
}

// next advances past one field name and reports it. ok is false once the
// enclosing object scope is exhausted; err is only set on a malformed tape.
func (fc *fieldCursor) next() (name []byte, ok bool, err error) {
	t := fc.val.Advance()
	if t != TypeString || fc.val.off+1 >= len(fc.val.tape.Tape) {
		if t == TypeNone {
			return nil, false, nil
		}
		return nil, false, errf(TAPE_ERROR, "object: unexpected name tag %v", fc.val.t)
	}
	offset := fc.val.cur
	length := fc.val.tape.Tape[fc.val.off]
	name, err = fc.val.tape.stringByteAt(offset, length)
	if err != nil {
		return nil, false, fmt.Errorf("reading object field name: %w", err)
	}
	return name, true, nil
}

// skipValue advances past whatever value follows the field name most
// recently returned by next, reporting whether a value was actually there.
func (fc *fieldCursor) skipValue() bool {
	return fc.val.Advance() != TypeNone
}

// takeValue advances past the value, leaving dst positioned on it.
func (fc *fieldCursor) takeValue(dst *Iter) (Type, error) {
	return fc.val.AdvanceIter(dst)
}

// Map unmarshals the object into dst, a map[string]interface{}; dst is
// allocated if nil. See Iter.Interface() for the value types produced.
func (o *Object) Map(dst map[string]interface{}) (map[string]interface{}, error) {
	if dst == nil {
		dst = make(map[string]interface{})
	}
	var tmp Iter
	for {
		name, typ, err := o.NextElement(&tmp)
		if err != nil {
			return nil, err
		}
		if typ == TypeNone {
			return dst, nil
		}
		v, err := tmp.Interface()
		if err != nil {
			return nil, fmt.Errorf("parsing element %q: %w", name, err)
		}
		dst[name] = v
	}
}

// Parse collects every (name, iterator) pair of the object into dst,
// preserving field order; dst is allocated (or reset) as needed. The
// Object is consumed by this call.
func (o *Object) Parse(dst *Elements) (*Elements, error) {
	if dst == nil {
		dst = &Elements{
			Elements: make([]Element, 0, 5),
			Index:    make(map[string]int, 5),
		}
	} else {
		dst.Elements = dst.Elements[:0]
		for k := range dst.Index {
			delete(dst.Index, k)
		}
	}
	var tmp Iter
	for {
		name, typ, err := o.NextElement(&tmp)
		if err != nil {
			return dst, err
		}
		if typ == TypeNone {
			return dst, nil
		}
		dst.Index[name] = len(dst.Elements)
		dst.Elements = append(dst.Elements, Element{Name: name, Type: typ, Iter: tmp})
	}
}

// FindKey locates a single named field without advancing the Object
// itself, for one-off lookups where the rest of the object is never
// needed afterwards. Returns nil if key is absent or the tape is
// malformed.
func (o *Object) FindKey(key string, dst *Element) *Element {
	fc := o.cursor()
	for {
		name, ok, err := fc.next()
		if err != nil || !ok {
			return nil
		}
		if string(name) != key {
			if !fc.skipValue() {
				return nil
			}
			continue
		}
		if dst == nil {
			dst = &Element{}
		}
		dst.Name = key
		typ, err := fc.takeValue(&dst.Iter)
		if err != nil {
			return nil
		}
		dst.Type = typ
		return dst
	}
}

// ForEach invokes fn once per field, in tape order. When onlyKeys is
// non-empty only those keys are visited and iteration stops once all of
// them have been seen; a nil or empty onlyKeys visits every field.
func (o *Object) ForEach(fn func(key []byte, i Iter), onlyKeys map[string]struct{}) error {
	fc := o.cursor()
	seen := 0
	for {
		name, ok, err := fc.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if len(onlyKeys) > 0 {
			if _, want := onlyKeys[string(name)]; !want {
				if !fc.skipValue() {
					return nil
				}
				continue
			}
		}
		var val Iter
		if _, err := fc.takeValue(&val); err != nil {
			return err
		}
		fn(name, val)
		seen++
		if seen == len(onlyKeys) {
			return nil
		}
	}
}

// DeleteElems visits every field and, when fn (or onlyKeys membership, if
// fn is nil) decides to remove it, overwrites the field's tape slots with
// TagNop tombstones carrying a skip count. A nil fn with an empty
// onlyKeys deletes everything.
func (o *Object) DeleteElems(fn func(key []byte, i Iter) bool, onlyKeys map[string]struct{}) error {
	fc := o.cursor()
	seen := 0
	for {
		name, ok, err := fc.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		// fc.val.off now sits on the name's length slot, one past the
		// tag slot where this field's tombstone range would begin.
		fieldStart := fc.val.off - 1
		if len(onlyKeys) > 0 {
			if _, want := onlyKeys[string(name)]; !want {
				if !fc.skipValue() {
					return nil
				}
				continue
			}
		}
		var val Iter
		if _, err := fc.takeValue(&val); err != nil {
			return err
		}
		if fn == nil || fn(name, val) {
			tombstoneRange(fc.val.tape.Tape, fieldStart, fc.val.off+fc.val.addNext)
		}
		seen++
		if seen == len(onlyKeys) {
			return nil
		}
	}
}

// tombstoneRange overwrites Tape[start:end] with TagNop entries, each
// carrying a countdown of the remaining entries to skip so a reader
// landing anywhere inside the range can jump straight past it.
func tombstoneRange(tape []uint64, start, end int) {
	remaining := uint64(end - start)
	for i := start; i < end; i++ {
		tape[i] = uint64(TagNop)<<JSONTAGOFFSET | remaining
		remaining--
	}
}

// ErrPathNotFound is returned by FindPath when any path segment cannot
// be resolved against the tape.
var ErrPathNotFound = errc(NO_SUCH_FIELD)

// FindPath resolves a sequence of object field names against nested
// objects, e.g. FindPath(dst, "Image", "Url") descends into the "Image"
// field and returns its "Url" value. Returns ErrPathNotFound if any
// segment is missing, or an error if the tape itself is malformed. The
// Object is not advanced.
func (o *Object) FindPath(dst *Element, path ...string) (*Element, error) {
	if len(path) == 0 {
		return dst, ErrPathNotFound
	}
	fc := o.cursor()
	remaining := path
	for {
		name, ok, err := fc.next()
		if err != nil {
			return dst, err
		}
		if !ok {
			return dst, ErrPathNotFound
		}
		if string(name) != remaining[0] {
			if !fc.skipValue() {
				return dst, ErrPathNotFound
			}
			continue
		}
		if len(remaining) == 1 {
			if dst == nil {
				dst = &Element{}
			}
			dst.Name = remaining[0]
			typ, err := fc.takeValue(&dst.Iter)
			if err != nil {
				return dst, err
			}
			dst.Type = typ
			return dst, nil
		}
		typ, err := fc.takeValue(&fc.val)
		if err != nil {
			return dst, err
		}
		if typ != TypeObject {
			return dst, errf(INCORRECT_TYPE, "value of key %v is not an object", remaining[0])
		}
		remaining = remaining[1:]
	}
}

// NextElement advances the Object by one field, allocating a string for
// its name. TypeNone with a nil error marks the end of the object.
func (o *Object) NextElement(dst *Iter) (name string, t Type, err error) {
	raw, t, err := o.NextElementBytes(dst)
	return string(raw), t, err
}

// NextElementBytes is NextElement without the name allocation: the
// returned slice aliases tape string storage and must not be retained
// past the next mutation of the Object's tape.
func (o *Object) NextElementBytes(dst *Iter) (name []byte, t Type, err error) {
	if o.off >= len(o.tape.Tape) {
		return nil, TypeNone, nil
	}
	entry := o.tape.Tape[o.off]
	switch Tag(entry >> JSONTAGOFFSET) {
	case TagObjectEnd:
		return nil, TypeNone, nil
	case TagNop:
		o.off += int(entry & JSONVALUEMASK)
		return o.NextElementBytes(dst)
	case TagString:
		if o.off+2 >= len(o.tape.Tape) {
			return nil, TypeNone, errf(OUT_OF_BOUNDS, "parsing object element name")
		}
		length := o.tape.Tape[o.off+1]
		offset := entry & JSONVALUEMASK
		name, err = o.tape.stringByteAt(offset, length)
		if err != nil {
			return nil, TypeNone, fmt.Errorf("reading object field name: %w", err)
		}
		o.off += 2
	default:
		return nil, TypeNone, errf(TAPE_ERROR, "object: unexpected tag %c", byte(entry>>JSONTAGOFFSET))
	}

	v := o.tape.Tape[o.off]
	o.off++

	dst.cur = v & JSONVALUEMASK
	dst.t = Tag(v >> JSONTAGOFFSET)
	dst.off = o.off
	dst.tape = o.tape
	dst.calcNext(false)
	size := dst.addNext
	dst.calcNext(true)
	if dst.off+size > len(dst.tape.Tape) {
		return nil, TypeNone, errc(OUT_OF_BOUNDS)
	}
	dst.tape.Tape = dst.tape.Tape[:dst.off+size]

	o.off += size
	return name, TagToType[dst.t], nil
}

// Element is one (name, value) pair captured from an object.
type Element struct {
	Name string
	Type Type
	Iter Iter
}

// Elements holds every field of an object, in original order, plus a
// name-to-index lookup table.
type Elements struct {
	Elements []Element
	Index    map[string]int
}

// Lookup returns the element stored under key, or nil if absent. Keys
// are matched case-sensitively.
func (e Elements) Lookup(key string) *Element {
	idx, ok := e.Index[key]
	if !ok {
		return nil
	}
	return &e.Elements[idx]
}

// MarshalJSON renders every captured field back out as a JSON object.
func (e Elements) MarshalJSON() ([]byte, error) {
	return e.MarshalJSONBuffer(nil)
}

// MarshalJSONBuffer is MarshalJSON with a caller-supplied destination
// buffer; the result is appended to dst.
func (e Elements) MarshalJSONBuffer(dst []byte) ([]byte, error) {
	dst = append(dst, '{')
	for i := range e.Elements {
		elem := &e.Elements[i]
		dst = append(dst, '"')
		dst = escapeBytes(dst, []byte(elem.Name))
		dst = append(dst, '"', ':')
		var err error
		dst, err = elem.Iter.MarshalJSONBuffer(dst)
		if err != nil {
			return nil, err
		}
		if i < len(e.Elements)-1 {
			dst = append(dst, ',')
		}
	}
	return append(dst, '}'), nil
}
