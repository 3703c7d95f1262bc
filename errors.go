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

import "fmt"

// Code is a stable error ordinal, in the order the reference implementation
// defines them. Numeric values may be relied on for serialization but are
// not part of any wire format; only the names are part of the API.
type Code int

const (
	SUCCESS Code = iota
	CAPACITY
	MEMALLOC
	TAPE_ERROR
	DEPTH_ERROR
	STRING_ERROR
	T_ATOM_ERROR
	F_ATOM_ERROR
	N_ATOM_ERROR
	NUMBER_ERROR
	UTF8_ERROR
	UNINITIALIZED
	EMPTY
	UNESCAPED_CHARS
	UNCLOSED_STRING
	UNSUPPORTED_ARCHITECTURE
	INCORRECT_TYPE
	NUMBER_OUT_OF_RANGE
	INDEX_OUT_OF_BOUNDS
	NO_SUCH_FIELD
	IO_ERROR
	INVALID_JSON_POINTER
	INVALID_URI_FRAGMENT
	UNEXPECTED_ERROR
	PARSER_IN_USE
	OUT_OF_ORDER_ITERATION
	INSUFFICIENT_PADDING
	INCOMPLETE_ARRAY_OR_OBJECT
	SCALAR_DOCUMENT_AS_VALUE
	OUT_OF_BOUNDS
	NUM_ERROR_CODES
)

var codeMessages = [NUM_ERROR_CODES]string{
	SUCCESS:                     "no error",
	CAPACITY:                    "input exceeds configured capacity",
	MEMALLOC:                    "memory allocation failed",
	TAPE_ERROR:                  "malformed JSON: unexpected structural character",
	DEPTH_ERROR:                 "maximum nesting depth exceeded",
	STRING_ERROR:                "malformed string escape",
	T_ATOM_ERROR:                "invalid atom, expected 'true'",
	F_ATOM_ERROR:                "invalid atom, expected 'false'",
	N_ATOM_ERROR:                "invalid atom, expected 'null'",
	NUMBER_ERROR:                "malformed number",
	UTF8_ERROR:                  "invalid UTF-8 byte sequence",
	UNINITIALIZED:               "parser used before any input was parsed",
	EMPTY:                       "no structural character found in input",
	UNESCAPED_CHARS:             "unescaped control character inside string",
	UNCLOSED_STRING:             "unterminated string",
	UNSUPPORTED_ARCHITECTURE:    "unsupported CPU architecture",
	INCORRECT_TYPE:              "value is not of the requested type",
	NUMBER_OUT_OF_RANGE:         "number is out of range for the requested type",
	INDEX_OUT_OF_BOUNDS:         "array index out of bounds",
	NO_SUCH_FIELD:               "field not found",
	IO_ERROR:                    "I/O error while reading input",
	INVALID_JSON_POINTER:        "invalid JSON Pointer syntax",
	INVALID_URI_FRAGMENT:        "invalid URI fragment",
	UNEXPECTED_ERROR:            "unexpected internal error",
	PARSER_IN_USE:               "parser is already in use",
	OUT_OF_ORDER_ITERATION:      "On-Demand value accessed out of order",
	INSUFFICIENT_PADDING:        "input buffer is missing required trailing padding",
	INCOMPLETE_ARRAY_OR_OBJECT:  "array or object was not closed",
	SCALAR_DOCUMENT_AS_VALUE:    "root scalar accessed as a container",
	OUT_OF_BOUNDS:               "access beyond the end of the tape",
}

// String returns the human readable message for the code.
func (c Code) String() string {
	if c < 0 || int(c) >= len(codeMessages) {
		return "unknown error code"
	}
	return codeMessages[c]
}

// ParseError is the error type returned by every fallible operation in this
// package. It wraps one of the stable Code ordinals above together with
// free-form context.
type ParseError struct {
	Code Code
	msg  string
}

func (e *ParseError) Error() string {
	if e.msg == "" {
		return e.Code.String()
	}
	return e.msg + ": " + e.Code.String()
}

// Is allows errors.Is(err, SomeCode) style comparisons against a bare Code,
// as well as errors.Is(err1, err2) between two *ParseError of equal Code.
func (e *ParseError) Is(target error) bool {
	if o, ok := target.(*ParseError); ok {
		return o.Code == e.Code
	}
	return false
}

// errf builds a *ParseError with a formatted context message.
func errf(code Code, format string, args ...interface{}) *ParseError {
	return &ParseError{Code: code, msg: fmt.Sprintf(format, args...)}
}

// errc builds a bare *ParseError carrying only the code's default message.
func errc(code Code) *ParseError {
	return &ParseError{Code: code}
}
