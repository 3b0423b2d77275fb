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

// Handshake parser states. The parser consumes the upgrade request one byte
// at a time and can be suspended at any byte boundary, so the transport may
// deliver the request in arbitrary chunks.
type parseState int

const (
	// Accumulating a header name into the fixed scratch buffer.
	psNamePart parseState = iota
	// Collecting the value of tokens[curToken].
	psTokenValue
	// Discarding an unrecognized or overlong header until CR.
	psSkipping
	// One byte after CR; LF starts the next header name.
	psSkippingSawCR
	// Terminal. Further bytes are ignored.
	psComplete
)

// Longest recognized header name plus its delimiter fits with room to spare.
const nameScratchSize = 32

// hsParse consumes one byte of the inbound handshake. Overlong names and
// values are skipped or truncated, never fatal; a request without an
// Upgrade header completes as a plain HTTP request.
func (c *Client) hsParse(b byte) {
	switch c.hsState {
	case psTokenValue:
		tok := &c.tokens[c.curToken]

		// Optional leading space swallow.
		if tok.len == 0 && b == ' ' {
			break
		}

		// The request target ends at the space before the HTTP
		// version, which is discarded.
		if c.curToken == TokenGetURI && b == ' ' {
			tok.buf[tok.len] = 0
			c.hsState = psSkipping
			break
		}

		// Grow the value buffer, keeping one byte reserved for the
		// terminator.
		if tok.len == c.currentAllocLen-1 {
			c.currentAllocLen += additionalHdrAlloc
			if c.currentAllocLen >= maxHeaderLen {
				tok.buf = append([]byte(hdrTruncatedSentinel), 0)
				tok.len = len(hdrTruncatedSentinel)
				c.hsState = psSkipping
				break
			}
			grown := make([]byte, c.currentAllocLen)
			copy(grown, tok.buf)
			tok.buf = grown
		}

		// Bail at EOL. The challenge payload is binary and may
		// legitimately contain CR.
		if c.curToken != TokenChallenge && b == '\x0d' {
			tok.buf[tok.len] = 0
			c.hsState = psSkippingSawCR
			break
		}

		tok.buf[tok.len] = b
		tok.len++

		if c.curToken != TokenChallenge {
			break
		}

		// The hixie drafts close the handshake with an 8 byte key
		// following the blank line: no version header at all, or a
		// version header below 4.
		if c.tokens[TokenVersion].len == 0 && tok.len != 8 {
			break
		}
		if c.tokens[TokenVersion].len != 0 && c.headerInt(TokenVersion) < 4 && tok.len != 8 {
			break
		}

		c.hsState = psComplete

	case psNamePart:
		if c.nameScratchPos == nameScratchSize-1 {
			// Name bigger than we can handle, skip until next.
			c.hsState = psSkipping
			break
		}
		c.nameScratch[c.nameScratchPos] = b
		c.nameScratchPos++

		for n := Token(0); n < tokenCount; n++ {
			lit := tokenLiterals[n]
			if c.nameScratchPos != len(lit) {
				continue
			}
			if string(c.nameScratch[:c.nameScratchPos]) != lit {
				continue
			}
			c.curToken = n
			c.hsState = psTokenValue
			c.currentAllocLen = initialHdrAlloc
			c.tokens[n].buf = make([]byte, initialHdrAlloc)
			c.tokens[n].len = 0
			break
		}

		// A colon with no match means we just don't know this name.
		if c.hsState == psNamePart && b == ':' {
			c.hsState = psSkipping
			break
		}

		// The blank line was just matched. Plain HTTP headers carry
		// no Upgrade and are complete right here; revisions 4 and up
		// carry no key payload after the headers either.
		if c.hsState == psTokenValue && c.curToken == TokenChallenge {
			if c.tokens[TokenUpgrade].len == 0 {
				c.hsState = psComplete
			} else if c.tokens[TokenVersion].len != 0 && c.headerInt(TokenVersion) >= 4 {
				c.hsState = psComplete
			}
		}

	case psSkipping:
		if b == '\x0d' {
			c.hsState = psSkippingSawCR
		}

	case psSkippingSawCR:
		if b == '\x0a' {
			c.hsState = psNamePart
		} else {
			c.hsState = psSkipping
		}
		c.nameScratchPos = 0

	case psComplete:
		// Done, ignore anything else.
	}
}
