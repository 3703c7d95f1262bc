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
	"math"
)

// Array represents a JSON array.
// There are methods that allow getting full arrays if the value type is the same.
// Otherwise an iterator can be retrieved.
type Array struct {
	tape ParsedJson
	off  int
}

// Iter returns the array as an iterator.
// This can be used for parsing mixed content arrays.
// The first value is ready with a call to Advance.
// Calling after the last element returns TypeNone.
func (a *Array) Iter() Iter {
	return Iter{tape: a.tape, off: a.off}
}

// FirstType returns the type of the first element.
// If there are no elements, TypeNone is returned.
func (a *Array) FirstType() Type {
	iter := a.Iter()
	return iter.PeekNext()
}

// MarshalJSON marshals the entire remaining scope of the array.
func (a *Array) MarshalJSON() ([]byte, error) {
	return a.MarshalJSONBuffer(nil)
}

// MarshalJSONBuffer marshals all elements, appending the result to dst.
func (a *Array) MarshalJSONBuffer(dst []byte) ([]byte, error) {
	dst = append(dst, '[')
	i := a.Iter()
	var elem Iter
	for {
		t, err := i.AdvanceIter(&elem)
		if err != nil {
			return nil, err
		}
		if t == TypeNone {
			break
		}
		dst, err = elem.MarshalJSONBuffer(dst)
		if err != nil {
			return nil, err
		}
		if i.PeekNextTag() == TagArrayEnd {
			break
		}
		dst = append(dst, ',')
	}
	if i.PeekNextTag() != TagArrayEnd {
		return nil, errc(INCOMPLETE_ARRAY_OR_OBJECT)
	}
	dst = append(dst, ']')
	return dst, nil
}

// Interface returns the array as a slice of interfaces.
// See Iter.Interface for a reference on value types.
func (a *Array) Interface() ([]interface{}, error) {
	dst := make([]interface{}, 0, a.lenEstimate())
	i := a.Iter()
	for i.Advance() != TypeNone {
		elem, err := i.Interface()
		if err != nil {
			return nil, err
		}
		dst = append(dst, elem)
	}
	return dst, nil
}

func (a *Array) lenEstimate() int {
	lenEst := (len(a.tape.Tape) - a.off - 1) / 2
	if lenEst < 0 {
		lenEst = 0
	}
	return lenEst
}

// AsFloat returns the array values as float64.
// Integers are automatically converted to float.
func (a *Array) AsFloat() ([]float64, error) {
	dst := make([]float64, 0, a.lenEstimate())
	off := a.off
readArray:
	for {
		tag := Tag(a.tape.Tape[off] >> JSONTAGOFFSET)
		off++
		switch tag {
		case TagFloat:
			if len(a.tape.Tape) <= off {
				return nil, errc(OUT_OF_BOUNDS)
			}
			dst = append(dst, math.Float64frombits(a.tape.Tape[off]))
		case TagInteger:
			if len(a.tape.Tape) <= off {
				return nil, errc(OUT_OF_BOUNDS)
			}
			dst = append(dst, float64(int64(a.tape.Tape[off])))
		case TagUint:
			if len(a.tape.Tape) <= off {
				return nil, errc(OUT_OF_BOUNDS)
			}
			dst = append(dst, float64(a.tape.Tape[off]))
		case TagArrayEnd:
			break readArray
		default:
			return nil, errf(INCORRECT_TYPE, "unable to convert type %v to float", tag)
		}
		off++
	}
	return dst, nil
}

// AsInteger returns the array values as int64.
// Uints/floats are automatically converted to int64 if they fit within range.
func (a *Array) AsInteger() ([]int64, error) {
	dst := make([]int64, 0, a.lenEstimate())
	off := a.off
readArray:
	for {
		tag := Tag(a.tape.Tape[off] >> JSONTAGOFFSET)
		off++
		switch tag {
		case TagFloat:
			if len(a.tape.Tape) <= off {
				return nil, errc(OUT_OF_BOUNDS)
			}
			val := math.Float64frombits(a.tape.Tape[off])
			if val > math.MaxInt64 || val < math.MinInt64 {
				return nil, errc(NUMBER_OUT_OF_RANGE)
			}
			dst = append(dst, int64(val))
		case TagInteger:
			if len(a.tape.Tape) <= off {
				return nil, errc(OUT_OF_BOUNDS)
			}
			dst = append(dst, int64(a.tape.Tape[off]))
		case TagUint:
			if len(a.tape.Tape) <= off {
				return nil, errc(OUT_OF_BOUNDS)
			}
			val := a.tape.Tape[off]
			if val > math.MaxInt64 {
				return nil, errc(NUMBER_OUT_OF_RANGE)
			}
			dst = append(dst, int64(val))
		case TagArrayEnd:
			break readArray
		default:
			return nil, errf(INCORRECT_TYPE, "unable to convert type %v to integer", tag)
		}
		off++
	}
	return dst, nil
}

// AsUint64 returns the array values as uint64.
// Ints/floats are automatically converted to uint64 if they fit within range.
func (a *Array) AsUint64() ([]uint64, error) {
	dst := make([]uint64, 0, a.lenEstimate())
	off := a.off
readArray:
	for {
		tag := Tag(a.tape.Tape[off] >> JSONTAGOFFSET)
		off++
		switch tag {
		case TagFloat:
			if len(a.tape.Tape) <= off {
				return nil, errc(OUT_OF_BOUNDS)
			}
			val := math.Float64frombits(a.tape.Tape[off])
			if val > math.MaxUint64 || val < 0 {
				return nil, errc(NUMBER_OUT_OF_RANGE)
			}
			dst = append(dst, uint64(val))
		case TagInteger:
			if len(a.tape.Tape) <= off {
				return nil, errc(OUT_OF_BOUNDS)
			}
			val := int64(a.tape.Tape[off])
			if val < 0 {
				return nil, errc(NUMBER_OUT_OF_RANGE)
			}
			dst = append(dst, uint64(val))
		case TagUint:
			if len(a.tape.Tape) <= off {
				return nil, errc(OUT_OF_BOUNDS)
			}
			dst = append(dst, a.tape.Tape[off])
		case TagArrayEnd:
			break readArray
		default:
			return nil, errf(INCORRECT_TYPE, "unable to convert type %v to integer", tag)
		}
		off++
	}
	return dst, nil
}

// AsString returns the array values as a slice of strings.
// No conversion is done; a non-string element is an error.
func (a *Array) AsString() ([]string, error) {
	dst := make([]string, 0, a.lenEstimate()*2)
	i := a.Iter()
	var elem Iter
	for {
		t, err := i.AdvanceIter(&elem)
		if err != nil {
			return nil, err
		}
		switch t {
		case TypeNone:
			return dst, nil
		case TypeString:
			s, err := elem.String()
			if err != nil {
				return nil, err
			}
			dst = append(dst, s)
		default:
			return nil, errf(INCORRECT_TYPE, "element in array is not string, but %v", t)
		}
	}
}

// AsStringCvt returns the array values as a slice of strings.
// Scalar types are converted. Root, object and array elements are not
// supported and return an error.
func (a *Array) AsStringCvt() ([]string, error) {
	dst := make([]string, 0, a.lenEstimate()*2)
	i := a.Iter()
	var elem Iter
	for {
		t, err := i.AdvanceIter(&elem)
		if err != nil {
			return nil, err
		}
		if t == TypeNone {
			return dst, nil
		}
		s, err := elem.StringCvt()
		if err != nil {
			return nil, err
		}
		dst = append(dst, s)
	}
}
