// Copyright 2026 The DraftWS Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/binary"
	"errors"
	"io"
)

// Padding reserved around every websocket payload. The emitter writes the
// framing bytes into the padding so header, payload and trailer go out as
// one contiguous span, with no copy of the payload.
const (
	// Covers the worst case header: revision 3 with an 8 byte length.
	SendBufferPrePadding = 12
	// Covers the revision 76 text trailer.
	SendBufferPostPadding = 1
)

// Chunk size at which a partial receive is delivered to the callback.
const maxUserRxBuffer = 4096

// WriteKind selects how a payload is framed on the wire.
type WriteKind int

const (
	// No framing, the bytes go out verbatim. Used for plain HTTP
	// responses and allowed in any connection state.
	HTTPWrite WriteKind = iota
	TextWrite
	BinaryWrite
)

var (
	errNotEstablished = errors.New("websocket write before connection is established")
)

// PaddedBuffer is a payload with framing headroom on both sides. It is the
// only thing the websocket write path accepts: constructing one always
// reserves the padding, so the emitter can write protocol bytes in place
// without any precondition on the caller's allocation.
type PaddedBuffer struct {
	b []byte
	n int
}

// NewPaddedBuffer reserves a payload region of the given capacity plus the
// framing padding. Fill the region via Payload and record the fill with
// SetLen.
func NewPaddedBuffer(capacity int) *PaddedBuffer {
	return &PaddedBuffer{
		b: make([]byte, SendBufferPrePadding+capacity+SendBufferPostPadding),
	}
}

// PaddedBufferFrom copies payload into a freshly padded buffer.
func PaddedBufferFrom(payload []byte) *PaddedBuffer {
	pb := NewPaddedBuffer(len(payload))
	copy(pb.Payload(), payload)
	pb.n = len(payload)
	return pb
}

// Payload returns the writable payload region.
func (pb *PaddedBuffer) Payload() []byte {
	return pb.b[SendBufferPrePadding : len(pb.b)-SendBufferPostPadding]
}

// Len returns the number of payload bytes in use.
func (pb *PaddedBuffer) Len() int { return pb.n }

// SetLen records how many payload bytes are in use.
func (pb *PaddedBuffer) SetLen(n int) {
	if n < 0 || n > len(pb.b)-SendBufferPrePadding-SendBufferPostPadding {
		panic("server: payload length out of padded buffer range")
	}
	pb.n = n
}

// ws76BinaryPrefixLen returns how many 7-bit groups the revision 76 binary
// length prefix needs for l.
func ws76BinaryPrefixLen(l uint64) int {
	pre := 1
	for l >>= 7; l != 0; l >>= 7 {
		pre++
	}
	return pre
}

// wsFill76BinaryPrefix writes the chunked length prefix into hdr: 7-bit
// groups most significant first, high bit set on every byte but the last.
func wsFill76BinaryPrefix(hdr []byte, l uint64) {
	pre := len(hdr)
	for i := 0; i < pre; i++ {
		g := byte(l>>uint(7*(pre-1-i))) & 0x7f
		if i != pre-1 {
			g |= 0x80
		}
		hdr[i] = g
	}
}

// wsFill03FrameHeader writes the revision 3 frame header for a payload of
// length l and returns the header size. Opcode 4 is text, 5 binary. The
// top bit of the 8 byte length form stays clear.
func wsFill03FrameHeader(hdr []byte, op byte, l uint64) int {
	switch {
	case l < 126:
		hdr[8] = op
		hdr[9] = byte(l)
		return 2
	case l < 65536:
		hdr[6] = op
		hdr[7] = 126
		binary.BigEndian.PutUint16(hdr[8:], uint16(l))
		return 4
	default:
		hdr[0] = op
		hdr[1] = 127
		binary.BigEndian.PutUint64(hdr[2:], l)
		hdr[2] &= 0x7f
		return 10
	}
}

// Write frames the payload in pb according to the connection's dialect and
// sends framing and payload as a single span. The framing lands in the
// buffer's padding, so pb is mutated but the payload itself never copied.
// Websocket kinds require an established connection; HTTPWrite bypasses
// framing entirely.
func (c *Client) Write(pb *PaddedBuffer, kind WriteKind) error {
	var pre, post int

	if kind != HTTPWrite {
		if c.State() != StateEstablished {
			return errNotEstablished
		}

		l := uint64(pb.n)
		switch c.revision {
		case 76:
			if kind == BinaryWrite {
				// Binary mode sends 7-bit used length blocks.
				pre = ws76BinaryPrefixLen(l)
				wsFill76BinaryPrefix(pb.b[SendBufferPrePadding-pre:SendBufferPrePadding], l)
				break
			}
			// Frame type text, length-free: 0x00 leader, 0xFF
			// EOT marker.
			pb.b[SendBufferPrePadding-1] = 0x00
			pb.b[SendBufferPrePadding+pb.n] = 0xff
			pre, post = 1, 1

		case 0:
			hdr := pb.b[SendBufferPrePadding-9 : SendBufferPrePadding]
			hdr[0] = 0xff
			binary.BigEndian.PutUint64(hdr[1:], l)
			pre = 9

		case 3:
			op := byte(4) // text
			if kind == BinaryWrite {
				op = 5
			}
			pre = wsFill03FrameHeader(pb.b[SendBufferPrePadding-10:SendBufferPrePadding], op, l)
		}
	}

	span := pb.b[SendBufferPrePadding-pre : SendBufferPrePadding+pb.n+post]
	n, err := c.sendRaw(span)
	if err != nil {
		return err
	}
	if n != len(span) {
		return io.ErrShortWrite
	}
	return nil
}

// sendRaw pushes bytes to the transport. The send may block; callers that
// need non-blocking behavior wrap the connection.
func (c *Client) sendRaw(p []byte) (int, error) {
	c.mu.Lock()
	nc := c.nc
	c.mu.Unlock()
	if nc == nil {
		return 0, io.ErrClosedPipe
	}
	return nc.Write(p)
}
