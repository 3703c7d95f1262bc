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
	"bytes"
	"unicode/utf8"
)

// decodeString unescapes src (the bytes strictly between the opening and
// closing quote of a JSON string, as located by stage 1's quote bitmask)
// and appends the result to dst. It reports false on any malformed escape,
// truncated \uXXXX, lone/mismatched surrogate, or unescaped control byte.
func decodeString(dst, src []byte) ([]byte, bool) {
	for {
		bs := bytes.IndexByte(src, '\\')
		if bs < 0 {
			if !allPrintable(src) {
				return dst, false
			}
			return append(dst, src...), true
		}
		if !allPrintable(src[:bs]) {
			return dst, false
		}
		dst = append(dst, src[:bs]...)
		src = src[bs+1:]
		if len(src) == 0 {
			return dst, false
		}
		c := src[0]
		switch c {
		case '"', '\\', '/':
			dst = append(dst, c)
			src = src[1:]
		case 'b':
			dst = append(dst, '\b')
			src = src[1:]
		case 'f':
			dst = append(dst, '\f')
			src = src[1:]
		case 'n':
			dst = append(dst, '\n')
			src = src[1:]
		case 'r':
			dst = append(dst, '\r')
			src = src[1:]
		case 't':
			dst = append(dst, '\t')
			src = src[1:]
		case 'u':
			var r rune
			var ok bool
			r, src, ok = decodeEscapedRune(src[1:])
			if !ok {
				return dst, false
			}
			var buf [utf8.UTFMax]byte
			n := utf8.EncodeRune(buf[:], r)
			dst = append(dst, buf[:n]...)
		default:
			return dst, false
		}
	}
}

// decodeEscapedRune decodes one \uXXXX sequence (the leading "\u" already
// consumed) from the front of src, consuming a trailing low-surrogate
// \uYYYY if the first unit is a high surrogate. Returns the decoded rune,
// the remaining bytes of src, and whether decoding succeeded.
func decodeEscapedRune(src []byte) (rune, []byte, bool) {
	u1, rest, ok := decodeHex4(src)
	if !ok {
		return 0, src, false
	}
	if u1 < 0xd800 || u1 > 0xdfff {
		return rune(u1), rest, true
	}
	if u1 > 0xdbff {
		// Lone low surrogate.
		return 0, src, false
	}
	// High surrogate: must be followed by \uYYYY with YYYY a low surrogate.
	if len(rest) < 6 || rest[0] != '\\' || rest[1] != 'u' {
		return 0, src, false
	}
	u2, rest2, ok := decodeHex4(rest[2:])
	if !ok {
		return 0, src, false
	}
	if u2 < 0xdc00 || u2 > 0xdfff {
		// High surrogate not followed by a matching low surrogate.
		return 0, src, false
	}
	r := 0x10000 + (rune(u1)-0xd800)<<10 + (rune(u2) - 0xdc00)
	return r, rest2, true
}

func decodeHex4(src []byte) (uint32, []byte, bool) {
	if len(src) < 4 {
		return 0, src, false
	}
	var v uint32
	for i := 0; i < 4; i++ {
		d, ok := hexVal(src[i])
		if !ok {
			return 0, src, false
		}
		v = v<<4 | uint32(d)
	}
	return v, src[4:], true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// allPrintable reports whether b contains no unescaped control bytes (< 0x20).
func allPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 {
			return false
		}
	}
	return true
}
