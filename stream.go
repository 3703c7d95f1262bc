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
	"io"
	"sync"
)

// StreamDriver slides a fixed-size window over a whitespace-separated
// concatenation of JSON documents, running the two-stage pipeline on each
// document as it is uncovered (spec.md §4.F). Unlike ParseNDStream, which
// hands a caller-sized read buffer straight to ParseND, StreamDriver owns
// the windowing and the window-boundary carry-over itself, and can overlap
// stage 1 of the next window with stage 2 of the current one.
type StreamDriver struct {
	r io.Reader

	batchSize   int
	maxCapacity uint64
	copyStrings bool
	maxDepth    int
	pipeline    bool
}

// NewStreamDriver creates a driver reading documents from r.
func NewStreamDriver(r io.Reader, opts ...ParserOption) (*StreamDriver, error) {
	pj := newInternalParsedJson()
	for _, o := range opts {
		if err := o(pj); err != nil {
			return nil, err
		}
	}
	return &StreamDriver{
		r:           r,
		batchSize:   pj.batchSize,
		maxCapacity: pj.maxCapacity,
		copyStrings: pj.copyStrings,
		maxDepth:    pj.maxDepth,
		pipeline:    pj.pipeline,
	}, nil
}

// window is one slid batch_size-sized read, plus the structural index stage
// 1 produced for it.
type window struct {
	buf     []byte
	atEOF   bool
	res     stage1Result
	readErr error
}

// stage1 runs stage 1 over a single window's bytes with the mode implied by
// whether this is the last window of the stream (spec.md §4.F.1).
func (w *window) stage1() {
	mode := stage1StreamingPartial
	if w.atEOF {
		mode = stage1StreamingFinal
	}
	w.res = findStructuralIndices(w.buf, mode)
}

// Run drives the stream, sending one Stream per fully parsed document to
// res. The channel is closed after a final Stream carrying io.EOF or a
// non-nil Error.
func (d *StreamDriver) Run(res chan<- Stream) {
	go d.run(res)
}

func (d *StreamDriver) run(res chan<- Stream) {
	defer close(res)

	batchSize := d.batchSize
	if batchSize <= 0 {
		batchSize = 1 << 20
	}

	var carry []byte
	var nextW *window
	var helper *pipelineHelper
	if d.pipeline {
		helper = newPipelineHelper()
		defer helper.stop()
	}

	readNext := func(prefix []byte) (*window, error) {
		buf := make([]byte, len(prefix), batchSize)
		copy(buf, prefix)
		n, err := io.ReadFull(d.r, buf[len(prefix):cap(buf)])
		buf = buf[:len(prefix)+n]
		atEOF := err == io.EOF || err == io.ErrUnexpectedEOF
		if err != nil && !atEOF {
			return nil, err
		}
		return &window{buf: buf, atEOF: atEOF}, nil
	}

	for {
		var w *window
		var err error
		if nextW != nil {
			w = nextW
			nextW = nil
			if helper != nil {
				helper.wait(w)
			} else {
				w.stage1()
			}
		} else {
			w, err = readNext(carry)
			if err != nil {
				res <- Stream{Error: fmt.Errorf("reading stream: %w", err)}
				return
			}
			w.stage1()
		}
		carry = nil

		if uint64(len(w.buf)) > d.maxCapacity && d.maxCapacity != 0 {
			res <- Stream{Error: errc(CAPACITY)}
			return
		}
		if w.res.err != SUCCESS && w.res.err != EMPTY {
			res <- Stream{Error: errc(w.res.err)}
			return
		}

		// Speculatively start stage 1 for the window after this one while
		// we run stage 2 here, assuming (optimistically) that this window
		// will end on a clean document boundary so no carry is needed. If
		// that assumption turns out wrong below, the speculative result is
		// discarded and stage 1 is simply re-run with the real carry.
		if helper != nil && !w.atEOF {
			spec, err := readNext(nil)
			if err != nil {
				res <- Stream{Error: fmt.Errorf("reading stream: %w", err)}
				return
			}
			helper.start(spec)
		}

		pj := newInternalParsedJson()
		pj.copyStrings = d.copyStrings
		pj.maxDepth = d.maxDepth
		pj.initialize(len(w.buf))
		pj.Message = w.buf

		tb := newTapeBuilder(&pj.ParsedJson, w.buf, w.res.indexes, pj.maxDepth, pj.copyStrings)
		for !tb.atEnd() {
			before := tb.indexOff
			if err := tb.parseDocument(); err != nil {
				if w.atEOF {
					res <- Stream{Error: fmt.Errorf("parsing document: %w", err)}
					return
				}
				// Truncated trailing document: carry the unparsed tail
				// (starting at its first structural offset) into the next
				// window and retry there.
				tb.indexOff = before
				break
			}
		}

		var tailOff uint32
		if tb.atEnd() {
			tailOff = uint32(len(w.buf))
		} else {
			tailOff = w.res.indexes[tb.indexOff]
		}
		leftover := w.buf[tailOff:]

		if len(leftover) > 0 {
			if len(leftover) >= batchSize {
				res <- Stream{Error: errc(CAPACITY)}
				return
			}
			if w.atEOF {
				res <- Stream{Error: fmt.Errorf("parsing document: %w", errc(TAPE_ERROR))}
				return
			}
			carry = append([]byte(nil), leftover...)
		}

		if len(pj.Tape) > 0 {
			parsed := pj.ParsedJson
			res <- Stream{Value: &parsed}
		}

		if w.atEOF && len(carry) == 0 {
			res <- Stream{Error: io.EOF}
			return
		}

		if helper != nil && !w.atEOF {
			if len(carry) == 0 {
				// Our optimistic read-ahead guess was right: hand its
				// window straight to the next loop iteration.
				nextW = helper.spec
			} else {
				// Guess was wrong: the precomputed window is missing the
				// carry-over prefix, so fold it back in and redo stage 1
				// (still off the caller's thread via the helper) before
				// the next iteration consumes it.
				fixed := &window{buf: append(append([]byte(nil), carry...), helper.spec.buf...), atEOF: helper.spec.atEOF}
				carry = nil
				helper.start(fixed)
				nextW = helper.spec
			}
		}
	}
}

// pipelineHelper is the "exactly one helper thread" of spec.md §4.F.3: a
// single goroutine that runs stage 1 for one window at a time, handed off
// via a mutex + condition variable rendezvous rather than a channel, since
// the contract is a single-slot synchronous exchange, not a queue.
type pipelineHelper struct {
	mu       sync.Mutex
	cond     *sync.Cond
	spec     *window
	pending  bool
	done     bool
	closed   bool
	quit     chan struct{}
	finished chan struct{}
}

func newPipelineHelper() *pipelineHelper {
	h := &pipelineHelper{
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	h.cond = sync.NewCond(&h.mu)
	go h.loop()
	return h
}

func (h *pipelineHelper) loop() {
	defer close(h.finished)
	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		for !h.pending && !h.closed {
			h.cond.Wait()
		}
		if h.closed {
			return
		}
		w := h.spec
		h.pending = false
		h.mu.Unlock()
		w.stage1()
		h.mu.Lock()
		h.done = true
		h.cond.Broadcast()
	}
}

// start hands w to the helper goroutine to run stage 1 on, replacing
// h.spec. The caller must not touch w until a matching wait returns.
func (h *pipelineHelper) start(w *window) {
	h.mu.Lock()
	h.spec = w
	h.pending = true
	h.done = false
	h.cond.Broadcast()
	h.mu.Unlock()
}

// wait blocks until the helper finishes stage 1 for w (which must be the
// same *window passed to the most recent start).
func (h *pipelineHelper) wait(w *window) {
	h.mu.Lock()
	for !h.done {
		h.cond.Wait()
	}
	h.mu.Unlock()
}

func (h *pipelineHelper) stop() {
	h.mu.Lock()
	h.closed = true
	h.cond.Broadcast()
	h.mu.Unlock()
	<-h.finished
}
