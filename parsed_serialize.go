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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
	"unsafe"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

const (
	stringBits        = 14
	stringSize        = 1 << stringBits
	stringmask        = stringSize - 1
	serializedVersion = 2
)

// CompressMode selects how a Serializer packs tape data.
type CompressMode uint8

const (
	// CompressNone stores every section uncompressed.
	CompressNone CompressMode = iota
	// CompressFast applies light compression with s2's fastest setting,
	// trading ratio for a faster Serialize. Strings are still deduplicated.
	CompressFast
	// CompressDefault applies light compression and deduplicates strings.
	CompressDefault
	// CompressBest favors ratio over speed.
	CompressBest
)

const (
	blockTypeUncompressed byte = 0
	blockTypeS2           byte = 1
	blockTypeZstd         byte = 2
)

// tagFloatWithFlag distinguishes a float tape entry that carries a
// non-default float-parsing flag (spec §4.E number flags) from the common
// case, since the latter omits the flag bits entirely from the wire form.
const tagFloatWithFlag = Tag('e')

// Serializer packs a ParsedJson tape into a compact, self-describing byte
// stream and back. One Serializer may be reused across calls but must not
// be shared across goroutines.
type Serializer struct {
	msgBuf    []byte
	tagBuf    []byte
	valBuf    []byte
	valZipBuf []byte
	tagZipBuf []byte

	modeVal, modeTag, modeMsg byte
	fastCompress              bool

	msgWr     io.Writer
	dedupe    [stringSize]uint32
	dedupeBuf []byte

	maxBlockSize uint64
}

// NewSerializer creates a Serializer using CompressDefault.
func NewSerializer() *Serializer {
	initSerializerOnce.Do(initSerializer)
	s := &Serializer{maxBlockSize: 1 << 31}
	s.CompressMode(CompressDefault)
	return s
}

// CompressMode switches the compression strategy used by subsequent calls
// to Serialize.
func (s *Serializer) CompressMode(c CompressMode) {
	switch c {
	case CompressNone:
		s.modeVal, s.modeTag, s.modeMsg = blockTypeUncompressed, blockTypeUncompressed, blockTypeUncompressed
		s.fastCompress = false
	case CompressFast:
		s.modeVal, s.modeTag, s.modeMsg = blockTypeS2, blockTypeS2, blockTypeS2
		s.fastCompress = true
	case CompressDefault:
		s.modeVal, s.modeTag, s.modeMsg = blockTypeS2, blockTypeS2, blockTypeS2
		s.fastCompress = false
	case CompressBest:
		s.modeVal, s.modeTag, s.modeMsg = blockTypeZstd, blockTypeZstd, blockTypeZstd
		s.fastCompress = false
	default:
		panic("unknown compression mode")
	}
}

// SerializeNDStream drains parsed documents from in (as delivered by
// ParseNDStream or a StreamDriver) and writes each one as a length-prefixed
// serialized block to dst, fanning the encoding work out across up to
// concurrency goroutines (GOMAXPROCS/2, rounded up, when concurrency <= 0).
// Consumed *ParsedJson values are handed back on reuse when the caller
// supplies one, mirroring the reuse convention used elsewhere in this
// package.
func SerializeNDStream(dst io.Writer, in <-chan Stream, reuse chan<- *ParsedJson, concurrency int, comp CompressMode) error {
	return serializeNDStream(dst, in, reuse, concurrency, comp)
}

func serializeNDStream(dst io.Writer, in <-chan Stream, reuse chan<- *ParsedJson, concurrency int, comp CompressMode) error {
	if concurrency <= 0 {
		concurrency = (runtime.GOMAXPROCS(0) + 1) / 2
	}

	type job struct {
		pj  *ParsedJson
		out chan []byte
	}
	jobs := make(chan job, concurrency)
	order := make(chan chan []byte, concurrency)
	bufPool := sync.Pool{New: func() interface{} { return make([]byte, 0, 64<<10) }}

	var workers sync.WaitGroup
	workers.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer workers.Done()
			enc := NewSerializer()
			enc.CompressMode(comp)
			for j := range jobs {
				j.out <- enc.Serialize(bufPool.Get().([]byte)[:0], *j.pj)
				select {
				case reuse <- j.pj:
				default:
				}
			}
		}()
	}

	var writeErr error
	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		for out := range order {
			block := <-out
			n, err := dst.Write(block)
			if err != nil {
				writeErr = err
			} else if n != len(block) {
				writeErr = io.ErrShortWrite
			}
		}
	}()

	var readErr error
	for s := range in {
		if s.Error != nil {
			readErr = s.Error
			break
		}
		out := make(chan []byte, 1)
		order <- out
		jobs <- job{pj: s.Value, out: out}
	}
	close(jobs)
	workers.Wait()
	close(order)
	writer.Wait()

	if readErr != nil {
		return readErr
	}
	return writeErr
}

// Serialize appends a self-contained encoding of pj's tape, strings and
// source message to dst and returns the extended slice.
//
// Layout: a version byte, a varint giving the length of everything that
// follows, then the tape's element count, and one length-prefixed
// compressed block each for the source message, the raw tag bytes and the
// packed per-entry values. Deserialize walks the tag block one byte at a
// time and consumes however many value bytes that tag needs to rebuild
// the corresponding tape entries.
func (s *Serializer) Serialize(dst []byte, pj ParsedJson) []byte {
	for i := range s.dedupe {
		s.dedupe[i] = 0
	}
	s.dedupeBuf = s.dedupeBuf[:0]
	s.msgBuf = s.msgBuf[:0]

	msgWr, msgDone := encBlock(s.modeMsg, s.msgBuf, s.fastCompress)
	s.msgWr = msgWr
	valWr, valDone := encBlock(s.modeVal, s.valZipBuf, s.fastCompress)
	tagWr, tagDone := encBlock(s.modeTag, s.tagZipBuf, s.fastCompress)

	const chunk = 64 << 10
	if cap(s.tagBuf) <= chunk {
		s.tagBuf = make([]byte, chunk)
	}
	s.tagBuf = s.tagBuf[:chunk]
	if cap(s.valBuf) < chunk+4 {
		s.valBuf = make([]byte, chunk+4)
	}
	s.valBuf = s.valBuf[:0]

	rawTags, rawVals := 0, 0
	tagN := 0
	off := 0
	for off < len(pj.Tape) {
		if tagN >= chunk {
			rawTags += tagN
			tagWr.Write(s.tagBuf[:tagN])
			tagN = 0
		}
		if len(s.valBuf) >= chunk {
			rawVals += len(s.valBuf)
			valWr.Write(s.valBuf)
			s.valBuf = s.valBuf[:0]
		}
		tag, next := s.encodeEntry(&pj, off)
		s.tagBuf[tagN] = uint8(tag)
		tagN++
		off = next
	}
	if tagN > 0 {
		rawTags += tagN
		tagWr.Write(s.tagBuf[:tagN])
	}
	if len(s.valBuf) > 0 {
		rawVals += len(s.valBuf)
		valWr.Write(s.valBuf)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	var tagErr, valErr, msgErr error
	go func() { defer wg.Done(); s.tagZipBuf, tagErr = tagDone() }()
	go func() { defer wg.Done(); s.valZipBuf, valErr = valDone() }()
	go func() { defer wg.Done(); s.msgBuf, msgErr = msgDone() }()
	wg.Wait()
	for _, err := range [...]error{tagErr, valErr, msgErr} {
		if err != nil {
			panic(err)
		}
	}

	return s.assemble(dst, len(pj.Tape), rawTags, rawVals)
}

// assemble writes the framed header and the three compressed sections
// that encodeEntry/Write accumulated into s.tagZipBuf/s.valZipBuf/s.msgBuf.
func (s *Serializer) assemble(dst []byte, tapeLen, rawTags, rawVals int) []byte {
	var tmp [8]byte
	dst = append(dst, serializedVersion)

	bodyLen := 2 + len(s.msgBuf) + len(s.tagZipBuf) + len(s.valZipBuf) +
		uvarintLen(uint64(tapeLen)) +
		uvarintLen(uint64(len(s.dedupeBuf))) + uvarintLen(uint64(len(s.msgBuf))) +
		uvarintLen(uint64(rawTags)) + uvarintLen(uint64(len(s.tagZipBuf))) +
		uvarintLen(uint64(rawVals)) + uvarintLen(uint64(len(s.valZipBuf)))

	n := binary.PutUvarint(tmp[:], uint64(bodyLen))
	dst = append(dst, tmp[:n]...)
	n = binary.PutUvarint(tmp[:], uint64(tapeLen))
	dst = append(dst, tmp[:n]...)

	// Deduplicated string storage is folded into the message block below;
	// this reader never emits a standalone strings section.
	dst = append(dst, 0, 0)

	dst = appendBlock(dst, uint64(len(s.dedupeBuf)), s.msgBuf)
	dst = appendBlock(dst, uint64(rawTags), s.tagZipBuf)
	dst = appendBlock(dst, uint64(rawVals), s.valZipBuf)
	return dst
}

func uvarintLen(v uint64) int {
	var tmp [binary.MaxVarintLen64]byte
	return binary.PutUvarint(tmp[:], v)
}

func appendBlock(dst []byte, rawLen uint64, compressed []byte) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], rawLen)
	dst = append(dst, tmp[:n]...)
	n = binary.PutUvarint(tmp[:], uint64(len(compressed)))
	dst = append(dst, tmp[:n]...)
	return append(dst, compressed...)
}

// encodeEntry writes the value bytes (if any) for the tape entry at off
// into s.valBuf, deduplicating string payloads through indexString, and
// returns the entry's tag plus the offset of the next entry.
func (s *Serializer) encodeEntry(pj *ParsedJson, off int) (Tag, int) {
	entry := pj.Tape[off]
	tag := Tag(entry >> JSONTAGOFFSET)
	payload := entry & JSONVALUEMASK
	var tmp [8]byte

	switch tag {
	case TagString:
		sb, err := pj.stringByteAt(payload, pj.Tape[off+1])
		if err != nil {
			panic(err)
		}
		strOff := s.indexString(sb)
		binary.LittleEndian.PutUint64(tmp[:], strOff)
		s.valBuf = append(s.valBuf, tmp[:]...)
		binary.LittleEndian.PutUint64(tmp[:], uint64(len(sb)))
		s.valBuf = append(s.valBuf, tmp[:]...)
		return tag, off + 2
	case TagUint, TagInteger:
		binary.LittleEndian.PutUint64(tmp[:], pj.Tape[off+1])
		s.valBuf = append(s.valBuf, tmp[:]...)
		return tag, off + 2
	case TagFloat:
		if payload == 0 {
			binary.LittleEndian.PutUint64(tmp[:], pj.Tape[off+1])
			s.valBuf = append(s.valBuf, tmp[:]...)
			return tag, off + 2
		}
		binary.LittleEndian.PutUint64(tmp[:], entry)
		s.valBuf = append(s.valBuf, tmp[:]...)
		binary.LittleEndian.PutUint64(tmp[:], pj.Tape[off+1])
		s.valBuf = append(s.valBuf, tmp[:]...)
		return tagFloatWithFlag, off + 2
	case TagNull, TagBoolTrue, TagBoolFalse:
		return tag, off + 1
	case TagObjectStart, TagArrayStart:
		// Only the forward distance to the matching close is kept; the
		// saturated child count packed into the high payload bits is a
		// navigation hint rebuilt as zero by Deserialize, not preserved.
		idx := payload & scopeIndexMask
		binary.LittleEndian.PutUint64(tmp[:], idx-uint64(off))
		s.valBuf = append(s.valBuf, tmp[:]...)
		return tag, off + 1
	case TagRoot:
		binary.LittleEndian.PutUint64(tmp[:], payload-uint64(off))
		s.valBuf = append(s.valBuf, tmp[:]...)
		return tag, off + 1
	case TagObjectEnd, TagArrayEnd, TagEnd:
		return tag, off + 1
	default:
		panic(fmt.Errorf("unknown tag: %d", int(tag)))
	}
}

func (s *Serializer) splitBlocks(r io.Reader, out chan []byte) error {
	br := bufio.NewReader(r)
	defer close(out)
	for {
		v, err := br.ReadByte()
		if err != nil {
			return err
		}
		if v != 1 {
			return errors.New("unknown version")
		}
		sz, err := binary.ReadUvarint(br)
		if err != nil {
			return err
		}
		if sz > s.maxBlockSize {
			return errors.New("compressed block too big")
		}
		block := make([]byte, sz)
		n, err := io.ReadFull(br, block)
		if err != nil {
			return err
		}
		if n > 0 {
			out <- block
		}
	}
}

// Deserialize rebuilds a ParsedJson from a stream produced by Serialize.
// Only basic framing checks are performed; a corrupted stream that still
// satisfies those checks will decode into a silently wrong tape.
func (s *Serializer) Deserialize(src []byte, dst *ParsedJson) (*ParsedJson, error) {
	br := bytes.NewBuffer(src)

	v, err := br.ReadByte()
	if err != nil {
		return dst, err
	}
	if v > serializedVersion {
		return dst, errors.New("unknown version")
	}
	if dst == nil {
		dst = &ParsedJson{}
	}

	bodyLen, err := binary.ReadUvarint(br)
	if err != nil {
		return dst, err
	}
	if int(bodyLen) > br.Len() {
		return dst, fmt.Errorf("stream too short, want %d, only have %d left", bodyLen, br.Len())
	}

	tapeLen, err := binary.ReadUvarint(br)
	if err != nil {
		return dst, err
	}
	if uint64(cap(dst.Tape)) < tapeLen {
		dst.Tape = make([]uint64, tapeLen)
	}
	dst.Tape = dst.Tape[:tapeLen]

	strLen, err := binary.ReadUvarint(br)
	if err != nil {
		return dst, err
	}
	if uint64(cap(dst.Strings)) < strLen || dst.Strings == nil {
		dst.Strings = make([]byte, strLen)
	}
	dst.Strings = dst.Strings[:strLen]

	var waitBlocks sync.WaitGroup
	var strErr, msgErr error
	if err := s.decBlock(br, dst.Strings, &waitBlocks, &strErr); err != nil {
		return dst, err
	}

	msgLen, err := binary.ReadUvarint(br)
	if err != nil {
		return dst, err
	}
	if uint64(cap(dst.Message)) < msgLen || dst.Message == nil {
		dst.Message = make([]byte, msgLen)
	}
	dst.Message = dst.Message[:msgLen]
	if err := s.decBlock(br, dst.Message, &waitBlocks, &msgErr); err != nil {
		return dst, err
	}
	defer waitBlocks.Wait()

	tagLen, err := binary.ReadUvarint(br)
	if err != nil {
		return dst, err
	}
	if uint64(cap(s.tagBuf)) < tagLen {
		s.tagBuf = make([]byte, tagLen)
	}
	s.tagBuf = s.tagBuf[:tagLen]

	var waitTape sync.WaitGroup
	var tagErr error
	if err := s.decBlock(br, s.tagBuf, &waitTape, &tagErr); err != nil {
		return dst, fmt.Errorf("decompressing tags: %w", err)
	}
	defer waitTape.Wait()

	valLen, err := binary.ReadUvarint(br)
	if err != nil {
		return dst, err
	}
	if uint64(cap(s.valBuf)) < valLen {
		s.valBuf = make([]byte, valLen)
	}
	s.valBuf = s.valBuf[:valLen]

	var valErr error
	if err := s.decBlock(br, s.valBuf, &waitTape, &valErr); err != nil {
		return dst, fmt.Errorf("decompressing values: %w", err)
	}

	waitTape.Wait()
	if tagErr != nil {
		return dst, fmt.Errorf("decompressing tags: %w", tagErr)
	}
	if valErr != nil {
		return dst, fmt.Errorf("decompressing values: %w", valErr)
	}

	values := s.valBuf
	off := 0
	for _, raw := range s.tagBuf {
		if off == len(dst.Tape) {
			return dst, errors.New("tags extended beyond tape")
		}
		consumed, err := decodeEntry(dst.Tape, off, Tag(raw), values)
		if err != nil {
			return dst, err
		}
		values = values[consumed.usedValueBytes:]
		off = consumed.nextOff
	}

	waitBlocks.Wait()
	if off != len(dst.Tape) {
		return dst, fmt.Errorf("tags did not fill tape, want %d, got %d", len(dst.Tape), off)
	}
	if len(values) > 0 {
		return dst, fmt.Errorf("values left over after filling tape of size %d", len(dst.Tape))
	}
	if strErr != nil {
		return dst, fmt.Errorf("reading strings: %w", strErr)
	}
	return dst, nil
}

// decodeStep reports how decodeEntry consumed one tag's worth of input.
type decodeStep struct {
	usedValueBytes int
	nextOff        int
}

// decodeEntry reconstructs the tape entry (or entries) for one byte of the
// tag stream at tape[off], consuming whatever prefix of values that tag
// needs. Scope-start tags additionally backfill the matching scope-end
// entry, whose own tag byte in the stream is only used to validate that
// fill against (see the TagObjectEnd/TagArrayEnd case below).
func decodeEntry(tape []uint64, off int, tag Tag, values []byte) (decodeStep, error) {
	tagBits := uint64(tag) << JSONTAGOFFSET
	switch tag {
	case TagString:
		if len(values) < 16 {
			return decodeStep{}, fmt.Errorf("reading %v: no values left", tag)
		}
		strOff := binary.LittleEndian.Uint64(values[:8])
		strLen := binary.LittleEndian.Uint64(values[8:16])
		tape[off] = tagBits | strOff
		tape[off+1] = strLen
		return decodeStep{16, off + 2}, nil
	case TagFloat, TagInteger, TagUint:
		if len(values) < 8 {
			return decodeStep{}, fmt.Errorf("reading %v: no values left", tag)
		}
		tape[off] = tagBits
		tape[off+1] = binary.LittleEndian.Uint64(values[:8])
		return decodeStep{8, off + 2}, nil
	case tagFloatWithFlag:
		if len(values) < 16 {
			return decodeStep{}, fmt.Errorf("reading %v: no values left", tag)
		}
		tape[off] = binary.LittleEndian.Uint64(values[:8])
		tape[off+1] = binary.LittleEndian.Uint64(values[8:16])
		return decodeStep{16, off + 2}, nil
	case TagNull, TagBoolTrue, TagBoolFalse, TagEnd:
		tape[off] = tagBits
		return decodeStep{0, off + 1}, nil
	case TagObjectStart, TagArrayStart:
		if len(values) < 8 {
			return decodeStep{}, fmt.Errorf("reading %v: no values left", tag)
		}
		dist := binary.LittleEndian.Uint64(values[:8])
		closeAt := dist + uint64(off)
		if closeAt >= uint64(len(tape)) {
			return decodeStep{}, fmt.Errorf("%v extends beyond tape (%d), offset %d", tag, len(tape), closeAt)
		}
		tape[off] = tagBits | closeAt
		tape[closeAt] = uint64(tagOpenToClose[tag])<<JSONTAGOFFSET | uint64(off)
		return decodeStep{8, off + 1}, nil
	case TagRoot:
		if len(values) < 8 {
			return decodeStep{}, fmt.Errorf("reading %v: no values left", tag)
		}
		// May point either direction; rely on unsigned wraparound.
		target := binary.LittleEndian.Uint64(values[:8]) + uint64(off)
		if target > uint64(len(tape)) {
			return decodeStep{}, fmt.Errorf("%v extends beyond tape (%d), offset %d", tag, len(tape), target)
		}
		tape[off] = tagBits | target
		return decodeStep{8, off + 1}, nil
	case TagObjectEnd, TagArrayEnd:
		if tape[off]&JSONTAGMASK != tagBits {
			return decodeStep{}, fmt.Errorf("reading %v, offset %d: start tag mismatch %x != %x", tag, off, tape[off]>>JSONTAGOFFSET, uint8(tag))
		}
		return decodeStep{0, off + 1}, nil
	default:
		return decodeStep{}, fmt.Errorf("unknown tag: %v", tag)
	}
}

func (s *Serializer) decBlock(br *bytes.Buffer, dst []byte, wg *sync.WaitGroup, dstErr *error) error {
	size, err := binary.ReadUvarint(br)
	if err != nil {
		return err
	}
	if size > uint64(br.Len()) {
		return fmt.Errorf("block size (%d) extends beyond input %d", size, br.Len())
	}
	if size == 0 && len(dst) == 0 {
		return nil
	}
	if size < 1 {
		return fmt.Errorf("block size (%d) too small for input %d", size, br.Len())
	}

	typ, err := br.ReadByte()
	if err != nil {
		return err
	}
	size--
	compressed := br.Next(int(size))
	if len(compressed) != int(size) {
		return errors.New("short block section")
	}
	switch typ {
	case blockTypeUncompressed:
		if len(compressed) != len(dst) {
			return fmt.Errorf("short uncompressed block: in (%d) != out (%d)", len(compressed), len(dst))
		}
		copy(dst, compressed)
	case blockTypeS2:
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec := s2Readers.Get().(*s2.Reader)
			dec.Reset(bytes.NewBuffer(compressed))
			_, err := io.ReadFull(dec, dst)
			dec.Reset(nil)
			s2Readers.Put(dec)
			*dstErr = err
		}()
	case blockTypeZstd:
		wg.Add(1)
		go func() {
			defer wg.Done()
			want := len(dst)
			got, err := zDec.DecodeAll(compressed, dst[:0])
			if err == nil && want != len(got) {
				err = errors.New("zstd decompressed size mismatch")
			}
			*dstErr = err
		}()
	default:
		return fmt.Errorf("unknown compression type: %d", typ)
	}
	return nil
}

var zDec *zstd.Decoder

var zEncFast = sync.Pool{New: func() interface{} {
	e, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderCRC(false))
	return e
}}

var s2FastWriters = sync.Pool{New: func() interface{} {
	return s2.NewWriter(nil)
}}

var s2Writers = sync.Pool{New: func() interface{} {
	return s2.NewWriter(nil, s2.WriterBetterCompression())
}}

var s2Readers = sync.Pool{New: func() interface{} {
	return s2.NewReader(nil)
}}

var initSerializerOnce sync.Once

func initSerializer() {
	zDec, _ = zstd.NewReader(nil)
}

type encodedResult func() ([]byte, error)

// encBlock starts a block writer for the given compression mode, writing
// the mode byte as the block's first output byte. The returned func
// finalizes the block and returns its encoded bytes.
func encBlock(mode byte, buf []byte, fast bool) (io.Writer, encodedResult) {
	out := bytes.NewBuffer(buf[:0])
	out.WriteByte(mode)
	switch mode {
	case blockTypeUncompressed:
		return out, func() ([]byte, error) {
			return out.Bytes(), nil
		}
	case blockTypeS2:
		pool := &s2Writers
		if fast {
			pool = &s2FastWriters
		}
		enc := pool.Get().(*s2.Writer)
		enc.Reset(out)
		return enc, func() ([]byte, error) {
			if err := enc.Close(); err != nil {
				return nil, err
			}
			enc.Reset(nil)
			pool.Put(enc)
			return out.Bytes(), nil
		}
	case blockTypeZstd:
		enc := zEncFast.Get().(*zstd.Encoder)
		enc.Reset(out)
		return enc, func() ([]byte, error) {
			if err := enc.Close(); err != nil {
				return nil, err
			}
			enc.Reset(nil)
			zEncFast.Put(enc)
			return out.Bytes(), nil
		}
	}
	panic("unknown compression mode")
}

// indexString deduplicates sb against strings already written this
// Serialize call, via a direct-mapped hash table keyed by a map-style
// content hash. A miss (including a hash collision against a different
// string) appends sb to the dedup buffer and records it for next time.
func (s *Serializer) indexString(sb []byte) (offset uint64) {
	if uint32(len(sb)) >= math.MaxUint32 {
		panic("string too long")
	}

	h := memHash(sb) & stringmask
	if at := int(s.dedupe[h]) - 1; at >= 0 {
		if end := at + len(sb); end <= len(s.dedupeBuf) && bytes.Equal(s.dedupeBuf[at:end], sb) {
			return uint64(at)
		}
	}
	at := len(s.dedupeBuf)
	s.dedupeBuf = append(s.dedupeBuf, sb...)
	s.dedupe[h] = uint32(at + 1)
	s.msgWr.Write(sb)
	return uint64(at)
}

//go:noescape
//go:linkname memhash runtime.memhash
func memhash(p unsafe.Pointer, h, n uintptr) uintptr

// memHash borrows the Go map runtime's string hash (AES-accelerated when
// available) purely to key the dedup table above; the seed is randomized
// per process, so this is never suitable as a persisted hash.
func memHash(data []byte) uint64 {
	ss := (*stringStruct)(unsafe.Pointer(&data))
	return uint64(memhash(ss.str, 0, uintptr(ss.len)))
}

type stringStruct struct {
	str unsafe.Pointer
	len int
}
