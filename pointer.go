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
	"strconv"
	"strings"
)

// AtPointer resolves an RFC 6901 JSON Pointer against i and sets dst to the
// resolved value. "" resolves to i itself. A pointer that does not start
// with "/" is INVALID_JSON_POINTER. Array tokens must be plain non-negative
// integers; "-" (the RFC 6901 past-the-end marker) is rejected with
// INDEX_OUT_OF_BOUNDS since there is no element to read there. A token that
// does not match any field returns NO_SUCH_FIELD, an index past the last
// element returns INDEX_OUT_OF_BOUNDS, and a token on an array that is not a
// non-negative integer returns INCORRECT_TYPE.
func (i *Iter) AtPointer(pointer string, dst *Iter) (*Iter, error) {
	if pointer == "" {
		if dst == nil {
			c := *i
			return &c, nil
		}
		*dst = *i
		return dst, nil
	}
	if pointer[0] != '/' {
		return nil, errf(INVALID_JSON_POINTER, "JSON pointer must start with '/': %q", pointer)
	}

	cur := *i
	for _, tok := range strings.Split(pointer[1:], "/") {
		tok, err := unescapePointerToken(tok)
		if err != nil {
			return nil, err
		}
		if err := descend(&cur, tok); err != nil {
			return nil, err
		}
	}
	if dst == nil {
		dst = &Iter{}
	}
	*dst = cur
	return dst, nil
}

// AtPath resolves the JSONPath subset restricted to "$.field" and
// "$[index]" segments (spec.md §4.D.1) by rewriting it into an equivalent
// JSON Pointer and resolving that.
func (i *Iter) AtPath(path string, dst *Iter) (*Iter, error) {
	ptr, err := pathToPointer(path)
	if err != nil {
		return nil, err
	}
	return i.AtPointer(ptr, dst)
}

// unescapePointerToken undoes RFC 6901 "~1" -> "/" and "~0" -> "~" escaping,
// rejecting any other use of "~".
func unescapePointerToken(tok string) (string, error) {
	if !strings.Contains(tok, "~") {
		return tok, nil
	}
	var b strings.Builder
	b.Grow(len(tok))
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if c != '~' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(tok) {
			return "", errf(INVALID_JSON_POINTER, "dangling '~' in token %q", tok)
		}
		switch tok[i+1] {
		case '0':
			b.WriteByte('~')
		case '1':
			b.WriteByte('/')
		default:
			return "", errf(INVALID_JSON_POINTER, "invalid escape '~%c' in token %q", tok[i+1], tok)
		}
		i++
	}
	return b.String(), nil
}

// descend moves cur to the field named tok (object) or element at index tok
// (array), in place.
func descend(cur *Iter, tok string) error {
	switch cur.t {
	case TagObjectStart:
		obj, err := cur.Object(nil)
		if err != nil {
			return err
		}
		var elem Element
		found := obj.FindKey(tok, &elem)
		if found == nil {
			return errf(NO_SUCH_FIELD, "no such field %q", tok)
		}
		*cur = elem.Iter
		return nil
	case TagArrayStart:
		if tok == "-" {
			return errc(INDEX_OUT_OF_BOUNDS)
		}
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 0 {
			return errf(INCORRECT_TYPE, "array index token %q is not a non-negative integer", tok)
		}
		arr, err := cur.Array(nil)
		if err != nil {
			return err
		}
		it := arr.Iter()
		for n := 0; ; n++ {
			t, err := it.AdvanceIter(cur)
			if err != nil {
				return err
			}
			if t == TypeNone {
				return errc(INDEX_OUT_OF_BOUNDS)
			}
			if n == idx {
				return nil
			}
		}
	default:
		return errf(INCORRECT_TYPE, "cannot descend into scalar value with token %q", tok)
	}
}

// pathToPointer rewrites the "$.field"/"$[index]" JSONPath subset into an
// RFC 6901 JSON Pointer.
func pathToPointer(path string) (string, error) {
	if path == "$" {
		return "", nil
	}
	if !strings.HasPrefix(path, "$") {
		return "", errf(INVALID_JSON_POINTER, "JSONPath must start with '$': %q", path)
	}
	rest := path[1:]
	var b strings.Builder
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			field := rest[:end]
			if field == "" {
				return "", errf(INVALID_JSON_POINTER, "empty field in JSONPath %q", path)
			}
			b.WriteByte('/')
			b.WriteString(strings.NewReplacer("~", "~0", "/", "~1").Replace(field))
			rest = rest[end:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return "", errf(INVALID_JSON_POINTER, "unterminated '[' in JSONPath %q", path)
			}
			idx := rest[1:end]
			if _, err := strconv.Atoi(idx); err != nil {
				return "", errf(INVALID_JSON_POINTER, "non-integer index %q in JSONPath %q", idx, path)
			}
			b.WriteByte('/')
			b.WriteString(idx)
			rest = rest[end+1:]
		default:
			return "", errf(INVALID_JSON_POINTER, "unexpected character %q in JSONPath %q", rest[0], path)
		}
	}
	return b.String(), nil
}
