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
	"bufio"
	"fmt"
	"io"
)

// internalParsedJson is a parser context (spec.md §3.4): the configured
// options plus the allocated tape/string/scratch buffers, reused across
// parses when a caller supplies reuse to Parse/ParseND.
type internalParsedJson struct {
	ParsedJson

	copyStrings bool
	maxDepth    int
	maxCapacity uint64
	batchSize   int
	forceBackend string
	pipeline    bool

	indexes []uint32
}

func newInternalParsedJson() *internalParsedJson {
	return &internalParsedJson{
		copyStrings: true,
		maxDepth:    1024,
		batchSize:   1 << 20,
	}
}

func (pj *internalParsedJson) initialize(size int) {
	if cap(pj.Tape) == 0 {
		pj.Tape = make([]uint64, 0, size/2+32)
	}
	if cap(pj.Strings) == 0 {
		pj.Strings = make([]byte, 0, size+32)
	}
}

// parseMessage runs the full two-stage pipeline over b (spec.md §4.A–§4.C)
// for a single document.
func (pj *internalParsedJson) parseMessage(b []byte) error {
	if pj.maxCapacity != 0 && uint64(len(b)) > pj.maxCapacity {
		return errc(CAPACITY)
	}
	res := findStructuralIndices(b, stage1Single)
	if res.err != SUCCESS {
		return errc(res.err)
	}
	pj.Tape = pj.Tape[:0]
	pj.Strings = pj.Strings[:0]
	pj.Message = b

	tb := newTapeBuilder(&pj.ParsedJson, b, res.indexes, pj.maxDepth, pj.copyStrings)
	if err := tb.parseDocument(); err != nil {
		return err
	}
	if !tb.atEnd() {
		return errf(TAPE_ERROR, "trailing content after document end")
	}
	return nil
}

// parseMessageNdjson runs the pipeline repeatedly over b, treating it as a
// whitespace/newline-separated concatenation of documents, each wrapped in
// its own TagRoot pair on one shared tape (spec.md §4.F, single-window
// case: the entire input is one window).
func (pj *internalParsedJson) parseMessageNdjson(b []byte) error {
	if pj.maxCapacity != 0 && uint64(len(b)) > pj.maxCapacity {
		return errc(CAPACITY)
	}
	res := findStructuralIndices(b, stage1Single)
	if res.err != SUCCESS {
		return errc(res.err)
	}
	pj.Tape = pj.Tape[:0]
	pj.Strings = pj.Strings[:0]
	pj.Message = b

	tb := newTapeBuilder(&pj.ParsedJson, b, res.indexes, pj.maxDepth, pj.copyStrings)
	for !tb.atEnd() {
		if err := tb.parseDocument(); err != nil {
			return err
		}
	}
	return nil
}

// Pad returns a copy of b with the same length and at least 64 bytes of
// zeroed spare capacity past its end (spec.md §3.1, §6.3). Parse and ParseND pad internally on a
// per-block basis and do not require a pre-padded buffer, so calling Pad
// before them is optional; it exists so callers migrating a buffer-reuse
// strategy built against the padded-input contract have somewhere to put
// it. The error return is part of that contract and is always nil here.
func Pad(b []byte) ([]byte, error) {
	n := len(b)
	out := make([]byte, n, n+64)
	copy(out, b)
	out = out[:n]
	return out, nil
}

// Parse parses a single JSON document in b and returns the parsed tape.
// An optional block of previously parsed json can be supplied via reuse to
// reduce allocations.
func Parse(b []byte, reuse *ParsedJson, opts ...ParserOption) (*ParsedJson, error) {
	var pj *internalParsedJson
	if reuse != nil && reuse.internal != nil {
		pj = reuse.internal
		pj.ParsedJson = *reuse
		pj.ParsedJson.internal = nil
	} else {
		pj = newInternalParsedJson()
	}
	for _, o := range opts {
		if err := o(pj); err != nil {
			return nil, err
		}
	}
	pj.initialize(len(b))
	if err := pj.parseMessage(b); err != nil {
		return nil, err
	}
	parsed := &pj.ParsedJson
	pj.ParsedJson = ParsedJson{}
	parsed.internal = pj
	return parsed, nil
}

// ParseND parses newline (or whitespace) delimited JSON: a concatenation of
// documents, each addressable as one TagRoot element on the returned tape
// (spec.md §4.F, applied as a single in-memory window).
// An optional block of previously parsed json can be supplied to reduce
// allocations.
func ParseND(b []byte, reuse *ParsedJson, opts ...ParserOption) (*ParsedJson, error) {
	pj := newInternalParsedJson()
	if reuse != nil {
		pj.ParsedJson = *reuse
	}
	for _, o := range opts {
		if err := o(pj); err != nil {
			return nil, err
		}
	}
	pj.initialize(len(b))
	if err := pj.parseMessageNdjson(b); err != nil {
		return nil, err
	}
	return &pj.ParsedJson, nil
}

// Stream is a single result delivered by ParseNDStream.
type Stream struct {
	Value *ParsedJson
	Error error
}

// ParseNDStream parses a stream and delivers parsed JSON to the supplied
// result channel (spec.md §4.F windowing, applied one read-buffer at a
// time rather than with the optional stage1/stage2 worker pipeline — see
// StreamDriver.Run in stream.go for the pipelined batched driver).
// Each element is contained within a root tag.
//   <root>Element 1</root><root>Element 2</root>...
// Each result will contain an unspecified number of full elements,
// so it can be assumed that each result starts and ends with a root tag.
// The parser will keep parsing until writes to the result stream blocks.
// A stream is finished when a non-nil Error is returned.
// If the stream was parsed until the end the Error value will be io.EOF.
// The channel will be closed after an error has been returned.
// An optional channel for returning consumed results can be provided.
// There is no guarantee that elements will be consumed, so always use
// non-blocking writes to the reuse channel.
func ParseNDStream(r io.Reader, res chan<- Stream, reuse <-chan *ParsedJson) {
	const tmpSize = 10 << 20
	buf := bufio.NewReaderSize(r, tmpSize)
	tmp := make([]byte, tmpSize+1024)
	go func() {
		defer close(res)
		pj := newInternalParsedJson()
		for {
			select {
			case old := <-reuse:
				if old != nil && old.internal != nil {
					pj = old.internal
				}
			default:
			}

			tmp = tmp[:tmpSize]
			n, err := buf.Read(tmp)
			if err != nil && err != io.EOF {
				res <- Stream{Error: fmt.Errorf("reading input: %w", err)}
				return
			}
			tmp = tmp[:n]
			if err != io.EOF {
				line, rerr := buf.ReadBytes('\n')
				if rerr != nil && rerr != io.EOF {
					res <- Stream{Error: fmt.Errorf("reading input: %w", rerr)}
					return
				}
				tmp = append(tmp, line...)
			}
			if len(tmp) > 0 {
				pj.ParsedJson = ParsedJson{}
				pj.initialize(len(tmp))
				if parseErr := pj.parseMessageNdjson(tmp); parseErr != nil {
					res <- Stream{Error: fmt.Errorf("parsing input: %w", parseErr)}
					return
				}
				parsed := pj.ParsedJson
				parsed.internal = pj
				res <- Stream{Value: &parsed}
				pj = newInternalParsedJson()
			}
			if err != nil {
				res <- Stream{Error: err}
				return
			}
		}
	}()
}
