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
	"bytes"
	"crypto/sha1"
	"testing"
)

// collectProto records every delivered payload chunk.
func collectProto(chunks *[][]byte) *Protocol {
	return &Protocol{
		Name: "collect",
		Callback: func(c *Client, event CallbackEvent, user interface{}, data []byte) int {
			if event == CallbackReceive {
				*chunks = append(*chunks, append([]byte(nil), data...))
			}
			return 0
		},
	}
}

func TestRX76FrameDelivery(t *testing.T) {
	var chunks [][]byte
	c, _ := newTestEstablishedClient(t, 76, collectProto(&chunks))

	err := c.interpretIncomingPacket([]byte{0x00, 'h', 'i', 0xff})
	require_NoError(t, err)
	require_Len(t, len(chunks), 1)
	require_Equal(t, string(chunks[0]), "hi")
	require_True(t, c.rxState == rxStateNew)
}

func TestRX76MultipleFramesOnePacket(t *testing.T) {
	var chunks [][]byte
	c, _ := newTestEstablishedClient(t, 76, collectProto(&chunks))

	packet := []byte{0x00, 'a', 0xff, 0x00, 'b', 'c', 0xff}
	require_NoError(t, c.interpretIncomingPacket(packet))
	require_Len(t, len(chunks), 2)
	require_Equal(t, string(chunks[0]), "a")
	require_Equal(t, string(chunks[1]), "bc")
}

func TestRX76ByteAtATime(t *testing.T) {
	var chunks [][]byte
	c, _ := newTestEstablishedClient(t, 76, collectProto(&chunks))

	for _, b := range []byte{0x00, 'h', 'i', 0xff} {
		require_NoError(t, c.interpretIncomingPacket([]byte{b}))
	}
	require_Len(t, len(chunks), 1)
	require_Equal(t, string(chunks[0]), "hi")
}

func TestRX76ChunkedDeliveryAtBufferCap(t *testing.T) {
	var chunks [][]byte
	c, _ := newTestEstablishedClient(t, 76, collectProto(&chunks))

	payload := bytes.Repeat([]byte{'x'}, maxUserRxBuffer+904)
	packet := append([]byte{0x00}, payload...)
	packet = append(packet, 0xff)

	require_NoError(t, c.interpretIncomingPacket(packet))
	require_Len(t, len(chunks), 2)
	require_Len(t, len(chunks[0]), maxUserRxBuffer)
	require_Len(t, len(chunks[1]), 904)
	require_True(t, bytes.Equal(append(chunks[0], chunks[1]...), payload))
}

func TestRX76CloseAck(t *testing.T) {
	c, nc := newTestEstablishedClient(t, 76, nil)

	err := c.interpretIncomingPacket([]byte{0xff, 0x00})
	require_True(t, err == errClientClose)
	require_True(t, bytes.Equal(nc.wbuf.Bytes(), []byte{0xff, 0x00}))
}

func TestRX76CloseIgnoresNonZero(t *testing.T) {
	c, nc := newTestEstablishedClient(t, 76, nil)

	require_NoError(t, c.interpretIncomingPacket([]byte{0xff, 0x07, 0x07}))
	require_True(t, c.rxState == rxStateSeen76FF)
	require_Len(t, nc.wbuf.Len(), 0)

	err := c.interpretIncomingPacket([]byte{0x00})
	require_True(t, err == errClientClose)
}

func TestRX04MaskDerivation(t *testing.T) {
	c, _ := newTestEstablishedClient(t, 4, nil)
	for i := range c.maskingKey {
		c.maskingKey[i] = byte(i)
	}

	nonce := []byte{0x00, 0x01, 0x02, 0x03}
	require_NoError(t, c.interpretIncomingPacket(nonce))
	require_True(t, c.rxState == rxState04FrameHdr1)
	require_Len(t, c.frameMaskIndex, 0)

	var seed [24]byte
	copy(seed[:4], nonce)
	copy(seed[4:], c.maskingKey[:])
	want := sha1.Sum(seed[:])
	require_True(t, c.frameMask == want)
}

func TestRX04MaskIndexRecirculates(t *testing.T) {
	c, _ := newTestEstablishedClient(t, 4, nil)
	require_NoError(t, c.interpretIncomingPacket([]byte{0xaa, 0xbb, 0xcc, 0xdd}))

	// 45 masked bytes advance the index through two full cycles.
	masked := make([]byte, 45)
	require_NoError(t, c.interpretIncomingPacket(masked))
	require_Len(t, c.frameMaskIndex, 45%20)
}

func TestRX04UnmaskRoundTrip(t *testing.T) {
	c, _ := newTestEstablishedClient(t, 4, nil)
	for i := range c.maskingKey {
		c.maskingKey[i] = byte(0x40 + i)
	}
	require_NoError(t, c.interpretIncomingPacket([]byte{0x10, 0x20, 0x30, 0x40}))

	plain := []byte("the quick brown fox jumps over the lazy dog")
	masked := make([]byte, len(plain))
	for i, b := range plain {
		masked[i] = b ^ c.frameMask[i%20]
	}

	// XOR with the recirculating key is its own inverse.
	got := make([]byte, len(masked))
	for i, b := range masked {
		got[i] = c.unmaskByte(b)
	}
	require_True(t, bytes.Equal(got, plain))
}

func TestRXDriverStopsAtExhaustedGate(t *testing.T) {
	var chunks [][]byte
	c, _ := newTestEstablishedClient(t, 76, collectProto(&chunks))
	c.rxState = rxStatePayloadUntilLengthExhausted

	require_NoError(t, c.interpretIncomingPacket([]byte{0x00, 'h', 'i', 0xff}))
	require_Len(t, len(chunks), 0)
	require_True(t, c.rxState == rxStatePayloadUntilLengthExhausted)
}

func TestRXRevision0SentinelFraming(t *testing.T) {
	var chunks [][]byte
	c, _ := newTestEstablishedClient(t, 0, collectProto(&chunks))

	require_NoError(t, c.interpretIncomingPacket([]byte{0x00, 'o', 'k', 0xff}))
	require_Len(t, len(chunks), 1)
	require_Equal(t, string(chunks[0]), "ok")

	err := c.interpretIncomingPacket([]byte{0xff, 0x00})
	require_True(t, err == errClientClose)
}
