// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Esper Authors

package esp3

import "fmt"

// Result is one outcome of scanning the byte stream: either a validated
// frame or a dropped malformed candidate. Exactly one field is set.
type Result struct {
	Frame *Frame
	Err   error
}

// Framer reassembles ESP3 frames from a continuous byte stream. It is
// the only mutable, sequential piece of the receive pipeline: partial
// frames persist across Feed calls, so transport reads of any size can
// be fed directly.
//
// A candidate frame that fails header or data CRC validation is
// reported as a Result carrying a MalformedFrameError, the byte at the
// sync position is discarded, and scanning resumes from the next byte.
// Malformed input never loses stream synchronization beyond that one
// byte and never terminates processing.
//
// Framer is not safe for concurrent use; the inbound stream is
// processed sequentially by design.
type Framer struct {
	buf     []byte
	frames  uint64
	dropped uint64
}

// NewFramer creates a Framer with an empty reassembly buffer.
func NewFramer() *Framer {
	return &Framer{buf: make([]byte, 0, 256)}
}

// Reset discards any buffered partial frame.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// Frames returns the number of validated frames emitted.
func (f *Framer) Frames() uint64 {
	return f.frames
}

// Dropped returns the number of malformed candidates discarded.
func (f *Framer) Dropped() uint64 {
	return f.dropped
}

// Feed appends p to the reassembly buffer and returns all results that
// became available. A trailing partial frame is kept for the next call;
// an incomplete frame is not an error and produces no result.
func (f *Framer) Feed(p []byte) []Result {
	f.buf = append(f.buf, p...)

	var results []Result
	for {
		r, ok := f.scan()
		if !ok {
			return results
		}
		if r.Err != nil {
			f.dropped++
		} else {
			f.frames++
		}
		results = append(results, r)
	}
}

// scan attempts to extract one frame from the buffer. ok is false when
// more input is needed.
func (f *Framer) scan() (Result, bool) {
	// Resynchronize: bytes before the sync marker are radio noise or
	// the tail of a previously dropped frame.
	sync := -1
	for i, b := range f.buf {
		if b == SyncByte {
			sync = i
			break
		}
	}
	if sync == -1 {
		f.buf = f.buf[:0]
		return Result{}, false
	}
	if sync > 0 {
		f.buf = f.buf[sync:]
	}

	if len(f.buf) < HeaderSize {
		return Result{}, false
	}

	dataLen := int(f.buf[1])<<8 | int(f.buf[2])
	optLen := int(f.buf[3])
	crc8h := f.buf[5]

	if CRC8(f.buf[1:5]) != crc8h {
		return f.dropCandidate("header CRC mismatch"), true
	}
	if dataLen == 0 || dataLen > MaxDataSize {
		return f.dropCandidate(fmt.Sprintf("implausible data length %d", dataLen)), true
	}

	total := HeaderSize + dataLen + optLen + 1
	if len(f.buf) < total {
		// Incomplete: buffer more input.
		return Result{}, false
	}

	if CRC8(f.buf[HeaderSize:total-1]) != f.buf[total-1] {
		return f.dropCandidate("data CRC mismatch"), true
	}

	frame := &Frame{
		Type:     PacketType(f.buf[4]),
		Data:     append([]byte(nil), f.buf[HeaderSize:HeaderSize+dataLen]...),
		Optional: append([]byte(nil), f.buf[HeaderSize+dataLen:total-1]...),
	}
	f.buf = f.buf[total:]
	return Result{Frame: frame}, true
}

// dropCandidate discards the byte at the sync position only, so a valid
// frame overlapping the corrupt candidate is still found on rescan.
func (f *Framer) dropCandidate(reason string) Result {
	f.buf = f.buf[1:]
	return Result{Err: &MalformedFrameError{Reason: reason}}
}
