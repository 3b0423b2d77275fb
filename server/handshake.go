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
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"
)

// From https://tools.ietf.org/html/rfc6455#section-1.3
var wsGUID = []byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11")

const _CRLF_ = "\r\n"

var errBadHixieKey = errors.New("malformed Sec-WebSocket-Key1/2 value")

// completeHandshake runs once the parser reaches its terminal state. Plain
// HTTP requests are handed to the callback and the connection closed; for
// upgrades the revision is fixed, origin and credentials checked, and the
// revision-appropriate 101 response written.
func (c *Client) completeHandshake() error {
	if c.tokens[TokenUpgrade].len == 0 {
		// They were HTTP headers, not a websocket upgrade.
		c.srv.Debugf("%s - plain http request for %q", c.cid, c.Header(TokenGetURI))
		c.callback(CallbackHTTP, c.Header(TokenGetURI))
		return io.EOF
	}

	c.revision = c.detectRevision()

	if err := c.srv.checkOrigin(c); err != nil {
		c.srv.Errorf("%s - origin not allowed: %v", c.cid, err)
		return err
	}
	if err := c.authorize(); err != nil {
		c.srv.Errorf("%s - authorization failed: %v", c.cid, err)
		return err
	}

	var err error
	switch c.revision {
	case 76:
		err = c.respondHixie()
	default:
		if c.tokens[TokenKey1].len != 0 {
			// Draft-76 style key exchange without a draft header.
			err = c.respondHixie()
		} else {
			err = c.respondAccept()
		}
	}
	if err != nil {
		return err
	}

	// The handshake deadline, if any, no longer applies.
	if c.srv.getOpts().HandshakeTimeout > 0 {
		c.mu.Lock()
		if c.nc != nil {
			c.nc.SetDeadline(time.Time{})
		}
		c.mu.Unlock()
	}

	c.setState(StateEstablished)
	c.srv.Debugf("%s - established, revision %d", c.cid, c.revision)
	c.callback(CallbackEstablished, nil)
	return nil
}

// detectRevision fixes the framing dialect from the handshake headers. A
// Sec-WebSocket-Version header marks the IETF series; Sec-WebSocket-Draft
// the browser-experiment series; a bare Key1 pair is hixie-76; anything
// older falls back to revision 0.
func (c *Client) detectRevision() int {
	if c.tokens[TokenVersion].len != 0 {
		if v := c.headerInt(TokenVersion); v >= 4 {
			return 4
		} else if v >= 1 {
			return 3
		}
		return 0
	}
	if c.tokens[TokenDraft].len != 0 {
		switch d := c.headerInt(TokenDraft); d {
		case 0, 3, 4, 76:
			return d
		default:
			return 76
		}
	}
	if c.tokens[TokenKey1].len != 0 {
		return 76
	}
	return 0
}

// wsHixieKeyNumber decodes a Sec-WebSocket-Key1/2 value: concatenate the
// digits, divide by the number of spaces.
func wsHixieKeyNumber(val []byte) (uint32, error) {
	var digits, spaces uint64
	for _, b := range val {
		switch {
		case b >= '0' && b <= '9':
			digits = digits*10 + uint64(b-'0')
		case b == ' ':
			spaces++
		}
	}
	if spaces == 0 || digits%spaces != 0 {
		return 0, errBadHixieKey
	}
	return uint32(digits / spaces), nil
}

// wsHixieChallengeResponse computes the 16 byte body of the hixie-76
// server handshake: MD5 over the two key numbers and the 8 byte key3.
func wsHixieChallengeResponse(k1, k2 uint32, key3 []byte) [16]byte {
	var in [16]byte
	binary.BigEndian.PutUint32(in[0:4], k1)
	binary.BigEndian.PutUint32(in[4:8], k2)
	copy(in[8:], key3)
	return md5.Sum(in[:])
}

// respondHixie writes the draft-76 style 101 response, echoing origin and
// location and closing with the MD5 challenge body.
func (c *Client) respondHixie() error {
	k1, err := wsHixieKeyNumber(c.Header(TokenKey1))
	if err != nil {
		return err
	}
	k2, err := wsHixieKeyNumber(c.Header(TokenKey2))
	if err != nil {
		return err
	}
	if c.tokens[TokenChallenge].len != 8 {
		return errors.New("missing 8 byte key3 payload")
	}
	sum := wsHixieChallengeResponse(k1, k2, c.Header(TokenChallenge))

	scheme := "ws"
	if c.srv.isTLS() {
		scheme = "wss"
	}

	var buf [1024]byte
	p := buf[:0]
	p = append(p, "HTTP/1.1 101 WebSocket Protocol Handshake\r\nUpgrade: WebSocket\r\nConnection: Upgrade\r\n"...)
	if c.tokens[TokenOrigin].len != 0 {
		p = append(p, "Sec-WebSocket-Origin: "...)
		p = append(p, c.Header(TokenOrigin)...)
		p = append(p, _CRLF_...)
	}
	p = append(p, "Sec-WebSocket-Location: "...)
	p = append(p, scheme...)
	p = append(p, "://"...)
	p = append(p, c.Header(TokenHost)...)
	p = append(p, c.Header(TokenGetURI)...)
	p = append(p, _CRLF_...)
	if c.tokens[TokenProtocol].len != 0 {
		p = append(p, "Sec-WebSocket-Protocol: "...)
		p = append(p, c.Header(TokenProtocol)...)
		p = append(p, _CRLF_...)
	}
	p = append(p, _CRLF_...)
	p = append(p, sum[:]...)

	_, err = c.sendRaw(p)
	return err
}

// wsAcceptKey concatenates the client key with the GUID, computes the SHA1
// hash and returns it base64 encoded.
func wsAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write(wsGUID)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// respondAccept writes the key/accept style 101 response used from
// revision 4 on. The same digest the accept header encodes doubles as the
// connection's 20 byte masking key, so both ends can derive it.
func (c *Client) respondAccept() error {
	key := c.Header(TokenKey)
	if len(key) == 0 {
		return errors.New("missing Sec-WebSocket-Key")
	}

	h := sha1.New()
	h.Write(key)
	h.Write(wsGUID)
	digest := h.Sum(nil)
	copy(c.maskingKey[:], digest)

	var buf [1024]byte
	p := buf[:0]
	p = append(p, "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Accept: "...)
	p = append(p, base64.StdEncoding.EncodeToString(digest)...)
	p = append(p, _CRLF_...)
	if c.tokens[TokenProtocol].len != 0 {
		p = append(p, "Sec-WebSocket-Protocol: "...)
		p = append(p, c.Header(TokenProtocol)...)
		p = append(p, _CRLF_...)
	}
	p = append(p, _CRLF_...)

	_, err := c.sendRaw(p)
	return err
}

// checkOrigin accepts anything unless the server was configured with
// same-origin or an allowed origin list. The origin is taken from the
// parsed Origin token; same-origin compares against the Host token.
func (s *Server) checkOrigin(c *Client) error {
	s.mu.Lock()
	checkSame := s.sameOrigin
	listEmpty := len(s.allowedOrigins) == 0
	s.mu.Unlock()
	if !checkSame && listEmpty {
		return nil
	}
	origin := string(c.Header(TokenOrigin))
	if origin == "" {
		return errors.New("origin not provided")
	}
	u, err := url.ParseRequestURI(origin)
	if err != nil {
		return err
	}
	oh, op, err := wsGetHostAndPort(u.Scheme == "https", u.Host)
	if err != nil {
		return err
	}
	if checkSame {
		rh, rp, err := wsGetHostAndPort(s.isTLS(), string(c.Header(TokenHost)))
		if err != nil {
			return err
		}
		if oh != rh || op != rp {
			return errors.New("not same origin")
		}
	}
	if !listEmpty {
		s.mu.Lock()
		ao := s.allowedOrigins[oh]
		s.mu.Unlock()
		if ao == nil || u.Scheme != ao.scheme || op != ao.port {
			return fmt.Errorf("origin %q not in the allowed list", origin)
		}
	}
	return nil
}

func wsGetHostAndPort(tls bool, hostport string) (string, string, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		// If the error is a missing port, use defaults based on the
		// scheme.
		if ae, ok := err.(*net.AddrError); ok && strings.Contains(ae.Err, "missing port") {
			err = nil
			host = hostport
			if tls {
				port = "443"
			} else {
				port = "80"
			}
		}
	}
	return strings.ToLower(host), port, err
}
