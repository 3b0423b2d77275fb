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

import "strconv"

// Token identifies a header the handshake parser recognizes. The parser
// matches header names byte by byte against the literals below, so each
// literal carries its own delimiter: the trailing space for the request
// line, the colon for headers. TokenChallenge is the blank-line sentinel
// that introduces the post-header key payload.
type Token int

const (
	TokenGetURI Token = iota
	TokenHost
	TokenConnection
	TokenKey1
	TokenKey2
	TokenProtocol
	TokenUpgrade
	TokenOrigin
	TokenDraft
	TokenChallenge
	TokenKey
	TokenVersion

	tokenCount
)

var tokenLiterals = [tokenCount]string{
	TokenGetURI:     "GET ",
	TokenHost:       "Host:",
	TokenConnection: "Connection:",
	TokenKey1:       "Sec-WebSocket-Key1:",
	TokenKey2:       "Sec-WebSocket-Key2:",
	TokenProtocol:   "Sec-WebSocket-Protocol:",
	TokenUpgrade:    "Upgrade:",
	TokenOrigin:     "Origin:",
	TokenDraft:      "Sec-WebSocket-Draft:",
	TokenChallenge:  "\x0d\x0a",
	TokenKey:        "Sec-WebSocket-Key:",
	TokenVersion:    "Sec-WebSocket-Version:",
}

const (
	// Hard cap on any single header value, including the reserved
	// terminator byte.
	maxHeaderLen = 1024
	// Initial capacity of a token value buffer, and the step it grows by.
	initialHdrAlloc    = 64
	additionalHdrAlloc = 64
)

// Written over a value that hit maxHeaderLen.
const hdrTruncatedSentinel = "!!! Length exceeded maximum supported !!!"

// tokenValue holds the collected value for one token. The buffer is nil
// until the header is first matched. Capacity is tracked by the owning
// connection's currentAllocLen while the token is being collected; one byte
// past len is always valid and holds the NUL terminator once the value ends.
type tokenValue struct {
	buf []byte
	len int
}

// Header returns the collected value for tok, or nil if the header never
// appeared in the handshake. The returned slice is valid until the
// connection is torn down.
func (c *Client) Header(tok Token) []byte {
	if tok < 0 || tok >= tokenCount || c.tokens[tok].buf == nil {
		return nil
	}
	return c.tokens[tok].buf[:c.tokens[tok].len]
}

// headerInt parses the collected value as a decimal integer, 0 if absent
// or malformed.
func (c *Client) headerInt(tok Token) int {
	n, _ := strconv.Atoi(string(c.Header(tok)))
	return n
}
