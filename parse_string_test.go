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
	"testing"
)

// tests covers string bodies (the bytes strictly between the quotes) fed to
// decodeString. "str" uses Go double-quoted escaping, so "\\u1234" is the
// six-byte literal escape sequence a JSON document would carry, not a
// decoded character. Cases pairing a high surrogate with a unit that is
// not its matching low surrogate are expected to fail: a lone or
// mismatched surrogate cannot be re-emitted as valid UTF-8.
var tests = []struct {
	name    string
	str     string
	success bool
	want    []byte
}{
	{
		name:    "ascii-1",
		str:     "a",
		success: true,
		want:    []byte("a"),
	},
	{
		name:    "ascii-2",
		str:     "ba",
		success: true,
		want:    []byte("ba"),
	},
	{
		name:    "ascii-3",
		str:     "cba",
		success: true,
		want:    []byte("cba"),
	},
	{
		name:    "ascii-long",
		str:     "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
		success: true,
		want:    []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"),
	},
	{
		// ሴ is ETHIOPIC SYLLABLE SEE.
		name:    "unicode-escape-1",
		str:     "\\u1234",
		success: true,
		want:    []byte{225, 136, 180},
	},
	{
		name:    "unicode-short-by-1",
		str:     "\\u123",
		success: false,
	},
	{
		name:    "unicode-short-by-2",
		str:     "\\u12",
		success: false,
	},
	{
		name:    "unicode-short-by-3",
		str:     "\\u1",
		success: false,
	},
	{
		name:    "unicode-short-by-4",
		str:     "\\u",
		success: false,
	},
	{
		// A high surrogate (\udbff) followed by a unit that is not its low
		// surrogate is a mismatched pair, not a valid code point.
		name:    "mismatched-surrogate-pair",
		str:     "\\udbff\\u1234",
		success: false,
	},
	{
		name:    "lone-high-surrogate",
		str:     "\\udbff",
		success: false,
	},
	{
		name:    "lone-low-surrogate",
		str:     "\\udc00",
		success: false,
	},
	{
		// Proper high+low surrogate pair for U+1F600 GRINNING FACE.
		name:    "valid-surrogate-pair",
		str:     "\\ud83d\\ude00",
		success: true,
		want:    []byte{0xf0, 0x9f, 0x98, 0x80},
	},
	{
		name:    "outside-basic-multilingual-plane-short-by-1",
		str:     "\\udbff\\u123",
		success: false,
	},
	{
		name:    "outside-basic-multilingual-plane-short-by-2",
		str:     "\\udbff\\u12",
		success: false,
	},
	{
		name:    "outside-basic-multilingual-plane-short-by-3",
		str:     "\\udbff\\u1",
		success: false,
	},
	{
		name:    "outside-basic-multilingual-plane-short-by-4",
		str:     "\\udbff\\u",
		success: false,
	},
	{
		name:    "outside-basic-multilingual-plane-short-by-5",
		str:     "\\udbff\\",
		success: false,
	},
	{
		name:    "mismatched-surrogate-with-prefix",
		str:     "---------9---------9\\udbff\\u1234",
		success: false,
	},
	{
		name:    "quote1",
		str:     "a\\\"b",
		success: true,
		want:    []byte{97, 34, 98},
	},
	{
		name:    "quote2",
		str:     "a\\\"b\\\"c",
		success: true,
		want:    []byte{97, 34, 98, 34, 99},
	},
	{
		name:    "unicode-1-seq",
		str:     "\\u0123",
		success: true,
		want:    []byte{196, 163},
	},
	{
		name:    "unicode-2-seqs",
		str:     "\\u0123\\u4567",
		success: true,
		want:    []byte{196, 163, 228, 149, 167},
	},
	{
		name:    "unicode-3-seqs",
		str:     "\\u0123\\u4567\\u89AB",
		success: true,
		want:    []byte{196, 163, 228, 149, 167, 232, 166, 171},
	},
	{
		name:    "unicode-4-seqs",
		str:     "\\u0123\\u4567\\u89AB\\uCDEF",
		success: true,
		want:    []byte{196, 163, 228, 149, 167, 232, 166, 171, 236, 183, 175},
	},
	{
		name:    "uni-single-escape-long-prefix",
		str:     "---------9---------9------\\u20ac",
		success: true,
		want:    append([]byte("---------9---------9------"), 0xe2, 0x82, 0xac),
	},
	{
		name:    "uni-single-escape-longer-prefix",
		str:     "---------9---------9-------\\u20ac",
		success: true,
		want:    append([]byte("---------9---------9-------"), 0xe2, 0x82, 0xac),
	},
	{
		name:    "uni-single-escape-truncated",
		str:     "---------9---------9-------\\u20a",
		success: false,
	},
	{
		name:    "control-char-rejected",
		str:     "a\tb",
		success: false,
	},
	{
		name:    "invalid-escape",
		str:     "\\x41",
		success: false,
	},
	{
		name:    "unterminated-escape",
		str:     "a\\",
		success: false,
	},
}

func TestDecodeString(t *testing.T) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeString(nil, []byte(tt.str))
			if ok != tt.success {
				t.Fatalf("decodeString(%q) ok = %v, want %v", tt.str, ok, tt.success)
			}
			if ok && !bytes.Equal(got, tt.want) {
				t.Fatalf("decodeString(%q) = %v, want %v", tt.str, got, tt.want)
			}
		})
	}
}
