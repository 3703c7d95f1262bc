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

import "math"

// odState is the single shared cursor backing every handle vended out of
// one ODParser.Iter call (spec.md §4.E): the structural index from stage 1,
// the current position in it, and which generation of handle currently owns
// the right to read (see Value.checkActive).
type odState struct {
	buf []byte
	idx []uint32 // structural offsets, including the trailing sentinel
	pos int

	gen    int // last generation number handed out
	active int // generation currently allowed to read; 0 is the root Value

	err error
}

func (st *odState) current() (byte, bool) {
	if st.pos >= len(st.idx) {
		return 0, false
	}
	off := st.idx[st.pos]
	if int(off) >= len(st.buf) {
		return 0, false
	}
	return st.buf[off], true
}

func (st *odState) newGen() int {
	st.gen++
	return st.gen
}

// readRawString decodes the string whose opening quote sits at the current
// structural offset and advances past it. Mirrors tapeBuilder.parseStringAtCursor
// (stage2.go), minus the tape-writing: on-demand mode never materializes a
// tape, it only ever needs the decoded bytes of the field currently in hand.
func (st *odState) readRawString() (string, error) {
	off := st.idx[st.pos]
	bodyOff := off + 1
	body := st.buf[bodyOff:]
	end := indexOfUnescapedQuote(body)
	if end < 0 {
		return "", errc(UNCLOSED_STRING)
	}
	decoded, ok := decodeString(nil, body[:end])
	if !ok {
		return "", errc(STRING_ERROR)
	}
	st.pos++
	return string(decoded), nil
}

// skipValue advances past the value at the current structural offset
// without decoding it: scalars and string starts occupy exactly one
// structural slot (stage2.go builds on the same fact), containers are
// skipped by tracking brace/bracket depth across structural slots until
// it returns to zero.
func (st *odState) skipValue() error {
	c, ok := st.current()
	if !ok {
		return errc(TAPE_ERROR)
	}
	if c != '{' && c != '[' {
		st.pos++
		return nil
	}
	depth := 1
	st.pos++
	for depth > 0 {
		c, ok := st.current()
		if !ok {
			return errc(INCOMPLETE_ARRAY_OR_OBJECT)
		}
		switch c {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
		st.pos++
	}
	return nil
}

// Value is a transient handle over one JSON value (spec.md §4.E.4). Scalar
// accessors consume the value and advance the shared cursor; GetObject and
// GetArray transfer read access to the returned container.
type Value struct {
	st  *odState
	gen int
}

func (v Value) checkActive() error {
	if v.st.err != nil {
		return v.st.err
	}
	if v.st.active != v.gen {
		return errc(OUT_OF_ORDER_ITERATION)
	}
	return nil
}

func (v Value) fail(err error) error {
	v.st.err = err
	return err
}

// Type reports the value's type without consuming it.
func (v Value) Type() (Type, error) {
	if err := v.checkActive(); err != nil {
		return TypeNone, err
	}
	c, ok := v.st.current()
	if !ok {
		return TypeNone, v.fail(errc(TAPE_ERROR))
	}
	switch c {
	case '{':
		return TypeObject, nil
	case '[':
		return TypeArray, nil
	case '"':
		return TypeString, nil
	case 't', 'f':
		return TypeBool, nil
	case 'n':
		return TypeNull, nil
	default:
		off := v.st.idx[v.st.pos]
		tag, _, n := parseNumber(v.st.buf[off:])
		if tag == TagEnd || n == 0 {
			return TypeNone, v.fail(errc(NUMBER_ERROR))
		}
		return TagToType[tag], nil
	}
}

// String decodes the value as a JSON string.
func (v Value) String() (string, error) {
	if err := v.checkActive(); err != nil {
		return "", err
	}
	c, ok := v.st.current()
	if !ok || c != '"' {
		return "", v.fail(errf(INCORRECT_TYPE, "value is not a string"))
	}
	s, err := v.st.readRawString()
	if err != nil {
		return "", v.fail(err)
	}
	return s, nil
}

// Int decodes the value as a signed 64-bit integer, converting from a JSON
// unsigned or floating point literal if it fits.
func (v Value) Int() (int64, error) {
	if err := v.checkActive(); err != nil {
		return 0, err
	}
	off := v.st.idx[v.st.pos]
	tag, val, n := parseNumber(v.st.buf[off:])
	if tag == TagEnd || n == 0 {
		return 0, v.fail(errc(NUMBER_ERROR))
	}
	v.st.pos++
	switch tag {
	case TagInteger:
		return int64(val), nil
	case TagUint:
		if val > math.MaxInt64 {
			return 0, v.fail(errc(NUMBER_OUT_OF_RANGE))
		}
		return int64(val), nil
	case TagFloat:
		f := math.Float64frombits(val)
		if f > math.MaxInt64 || f < math.MinInt64 {
			return 0, v.fail(errc(NUMBER_OUT_OF_RANGE))
		}
		return int64(f), nil
	default:
		return 0, v.fail(errf(INCORRECT_TYPE, "value is not a number"))
	}
}

// Uint decodes the value as an unsigned 64-bit integer.
func (v Value) Uint() (uint64, error) {
	if err := v.checkActive(); err != nil {
		return 0, err
	}
	off := v.st.idx[v.st.pos]
	tag, val, n := parseNumber(v.st.buf[off:])
	if tag == TagEnd || n == 0 {
		return 0, v.fail(errc(NUMBER_ERROR))
	}
	v.st.pos++
	switch tag {
	case TagUint:
		return val, nil
	case TagInteger:
		if int64(val) < 0 {
			return 0, v.fail(errc(NUMBER_OUT_OF_RANGE))
		}
		return val, nil
	case TagFloat:
		f := math.Float64frombits(val)
		if f < 0 || f > math.MaxUint64 {
			return 0, v.fail(errc(NUMBER_OUT_OF_RANGE))
		}
		return uint64(f), nil
	default:
		return 0, v.fail(errf(INCORRECT_TYPE, "value is not a number"))
	}
}

// Float decodes the value as a float64, promoting integers.
func (v Value) Float() (float64, error) {
	if err := v.checkActive(); err != nil {
		return 0, err
	}
	off := v.st.idx[v.st.pos]
	tag, val, n := parseNumber(v.st.buf[off:])
	if tag == TagEnd || n == 0 {
		return 0, v.fail(errc(NUMBER_ERROR))
	}
	v.st.pos++
	switch tag {
	case TagFloat:
		return math.Float64frombits(val), nil
	case TagInteger:
		return float64(int64(val)), nil
	case TagUint:
		return float64(val), nil
	default:
		return 0, v.fail(errf(INCORRECT_TYPE, "value is not a number"))
	}
}

// Bool decodes the value as a boolean.
func (v Value) Bool() (bool, error) {
	if err := v.checkActive(); err != nil {
		return false, err
	}
	c, ok := v.st.current()
	if !ok {
		return false, v.fail(errc(TAPE_ERROR))
	}
	switch c {
	case 't':
		if !matchAtom(v.st.buf[v.st.idx[v.st.pos]:], "true") {
			return false, v.fail(errc(T_ATOM_ERROR))
		}
		v.st.pos++
		return true, nil
	case 'f':
		if !matchAtom(v.st.buf[v.st.idx[v.st.pos]:], "false") {
			return false, v.fail(errc(F_ATOM_ERROR))
		}
		v.st.pos++
		return false, nil
	default:
		return false, v.fail(errf(INCORRECT_TYPE, "value is not a boolean"))
	}
}

// Null reports whether the value is the JSON null literal, consuming it.
func (v Value) Null() (bool, error) {
	if err := v.checkActive(); err != nil {
		return false, err
	}
	c, ok := v.st.current()
	if !ok {
		return false, v.fail(errc(TAPE_ERROR))
	}
	if c != 'n' {
		return false, nil
	}
	if !matchAtom(v.st.buf[v.st.idx[v.st.pos]:], "null") {
		return false, v.fail(errc(N_ATOM_ERROR))
	}
	v.st.pos++
	return true, nil
}

// Skip consumes the value, whatever it is, without decoding it (spec.md
// §4.E.4: "an unstarted container that is dropped must skip itself to the
// matching close").
func (v Value) Skip() error {
	if err := v.checkActive(); err != nil {
		return err
	}
	if err := v.st.skipValue(); err != nil {
		return v.fail(err)
	}
	return nil
}

// GetObject transfers read access to a freshly opened ODObject over this
// value, which must currently sit at '{'.
func (v Value) GetObject() (*ODObject, error) {
	if err := v.checkActive(); err != nil {
		return nil, err
	}
	c, ok := v.st.current()
	if !ok || c != '{' {
		return nil, v.fail(errf(INCORRECT_TYPE, "value is not an object"))
	}
	v.st.pos++
	g := v.st.newGen()
	o := &ODObject{st: v.st, gen: g, parentGen: v.gen}
	v.st.active = g
	return o, nil
}

// GetArray transfers read access to a freshly opened ODArray over this
// value, which must currently sit at '['.
func (v Value) GetArray() (*ODArray, error) {
	if err := v.checkActive(); err != nil {
		return nil, err
	}
	c, ok := v.st.current()
	if !ok || c != '[' {
		return nil, v.fail(errf(INCORRECT_TYPE, "value is not an array"))
	}
	v.st.pos++
	g := v.st.newGen()
	a := &ODArray{st: v.st, gen: g, parentGen: v.gen}
	v.st.active = g
	return a, nil
}

// ODObject is a forward-only, single-pass view over an on-demand object
// (spec.md §4.E.2). Exactly one ODObject (or ODArray, or their current
// Value) is active at a time within a document.
type ODObject struct {
	st        *odState
	gen       int
	parentGen int
	start     int // index position of the first field, for find_field_unordered's wraparound
	haveStart bool
	started   bool
	done      bool
}

func (o *ODObject) checkActive() error {
	if o.st.err != nil {
		return o.st.err
	}
	if o.st.active != o.gen {
		return errc(OUT_OF_ORDER_ITERATION)
	}
	return nil
}

func (o *ODObject) fail(err error) error {
	o.st.err = err
	return err
}

func (o *ODObject) finish() {
	o.done = true
	o.st.active = o.parentGen
}

// NextField yields fields in document order. It returns ("", nil, nil) once
// the closing '}' is consumed, matching the for-range idiom used by ForEach.
func (o *ODObject) NextField() (string, *Value, error) {
	if o.done {
		return "", nil, nil
	}
	if err := o.checkActive(); err != nil {
		return "", nil, err
	}
	if o.started {
		c, ok := o.st.current()
		if !ok {
			return "", nil, o.fail(errc(TAPE_ERROR))
		}
		switch c {
		case ',':
			o.st.pos++
		case '}':
			o.st.pos++
			o.finish()
			return "", nil, nil
		default:
			return "", nil, o.fail(errf(TAPE_ERROR, "object: expected ',' or '}', got %q", c))
		}
	} else {
		if !o.haveStart {
			o.start = o.st.pos
			o.haveStart = true
		}
		c, ok := o.st.current()
		if !ok {
			return "", nil, o.fail(errc(TAPE_ERROR))
		}
		if c == '}' {
			o.st.pos++
			o.finish()
			return "", nil, nil
		}
	}

	c, ok := o.st.current()
	if !ok || c != '"' {
		return "", nil, o.fail(errf(TAPE_ERROR, "object: expected field name"))
	}
	key, err := o.st.readRawString()
	if err != nil {
		return "", nil, o.fail(err)
	}
	c, ok = o.st.current()
	if !ok || c != ':' {
		return "", nil, o.fail(errf(TAPE_ERROR, "object: expected ':'"))
	}
	o.st.pos++
	o.started = true
	return key, &Value{st: o.st, gen: o.gen}, nil
}

// FindField scans forward from the current position for name, consuming
// (and discarding) any intermediate fields. It cannot revisit fields
// already passed (spec.md §4.E.2).
func (o *ODObject) FindField(name string) (*Value, error) {
	for {
		key, val, err := o.NextField()
		if err != nil {
			return nil, err
		}
		if val == nil {
			return nil, errf(NO_SUCH_FIELD, "no such field %q", name)
		}
		if key == name {
			return val, nil
		}
		if err := val.Skip(); err != nil {
			return nil, err
		}
	}
}

// FindFieldUnordered is find_field_unordered / the "[name]" accessor: it scans
// forward and, if name isn't found before '}', wraps exactly once from the
// object's starting offset (spec.md §4.E.2).
func (o *ODObject) FindFieldUnordered(name string) (*Value, error) {
	wrapped := false
	for {
		key, val, err := o.NextField()
		if err != nil {
			return nil, err
		}
		if val == nil {
			if wrapped || !o.haveStart {
				return nil, errf(NO_SUCH_FIELD, "no such field %q", name)
			}
			wrapped = true
			o.st.pos = o.start
			o.done = false
			o.started = false
			o.st.active = o.gen
			continue
		}
		if key == name {
			return val, nil
		}
		if err := val.Skip(); err != nil {
			return nil, err
		}
	}
}

// ODArray is a forward-only, single-pass view over an on-demand array
// (spec.md §4.E.3). Named to avoid colliding with the tape-mode Array type.
type ODArray struct {
	st        *odState
	gen       int
	parentGen int
	started   bool
	done      bool
}

func (a *ODArray) checkActive() error {
	if a.st.err != nil {
		return a.st.err
	}
	if a.st.active != a.gen {
		return errc(OUT_OF_ORDER_ITERATION)
	}
	return nil
}

func (a *ODArray) fail(err error) error {
	a.st.err = err
	return err
}

func (a *ODArray) finish() {
	a.done = true
	a.st.active = a.parentGen
}

// Next yields the array's elements in order. It returns (nil, nil) once the
// closing ']' is consumed.
func (a *ODArray) Next() (*Value, error) {
	if a.done {
		return nil, nil
	}
	if err := a.checkActive(); err != nil {
		return nil, err
	}
	if a.started {
		c, ok := a.st.current()
		if !ok {
			return nil, a.fail(errc(TAPE_ERROR))
		}
		switch c {
		case ',':
			a.st.pos++
		case ']':
			a.st.pos++
			a.finish()
			return nil, nil
		default:
			return nil, a.fail(errf(TAPE_ERROR, "array: expected ',' or ']', got %q", c))
		}
	} else {
		c, ok := a.st.current()
		if !ok {
			return nil, a.fail(errc(TAPE_ERROR))
		}
		if c == ']' {
			a.st.pos++
			a.finish()
			return nil, nil
		}
		a.started = true
	}
	return &Value{st: a.st, gen: a.gen}, nil
}

// ODParser drives the on-demand front-end over a single document's raw
// bytes, sharing stage 1's structural index with tape mode (spec.md §4.E).
type ODParser struct {
	buf []byte
	idx []uint32
}

// NewODParser runs stage 1 over buf and returns a parser ready to vend a
// root Value via Iter.
func NewODParser(buf []byte) (*ODParser, error) {
	res := findStructuralIndices(buf, stage1Single)
	if res.err != SUCCESS {
		return nil, errc(res.err)
	}
	return &ODParser{buf: buf, idx: res.indexes}, nil
}

// Iter returns a Value positioned at the document's single top-level value.
func (p *ODParser) Iter() Value {
	st := &odState{buf: p.buf, idx: p.idx}
	return Value{st: st, gen: 0}
}
