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
	"net"
	"testing"
	"time"
)

func require_True(t *testing.T, b bool) {
	t.Helper()
	if !b {
		t.Fatalf("require true, but got false")
	}
}

func require_NoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("require no error, but got: %v", err)
	}
}

func require_Error(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("require error, but got none")
	}
}

func require_Equal(t *testing.T, a, b string) {
	t.Helper()
	if a != b {
		t.Fatalf("require equal, but got: %q != %q", a, b)
	}
}

func require_Len(t *testing.T, a, b int) {
	t.Helper()
	if a != b {
		t.Fatalf("require len, but got: %v != %v", a, b)
	}
}

// testWSFakeNetConn captures everything written to it and serves reads from
// a preloaded buffer.
type testWSFakeNetConn struct {
	wbuf   bytes.Buffer
	rbuf   bytes.Buffer
	werr   error
	closed bool
}

func (c *testWSFakeNetConn) Read(p []byte) (int, error) { return c.rbuf.Read(p) }

func (c *testWSFakeNetConn) Write(p []byte) (int, error) {
	if c.werr != nil {
		return 0, c.werr
	}
	return c.wbuf.Write(p)
}
func (c *testWSFakeNetConn) Close() error                       { c.closed = true; return nil }
func (c *testWSFakeNetConn) LocalAddr() net.Addr                { return nil }
func (c *testWSFakeNetConn) RemoteAddr() net.Addr               { return nil }
func (c *testWSFakeNetConn) SetDeadline(_ time.Time) error      { return nil }
func (c *testWSFakeNetConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *testWSFakeNetConn) SetWriteDeadline(_ time.Time) error { return nil }

// newTestClient builds a client over a fake conn, optionally dispatching
// through proto. The server it hangs off is never started.
func newTestClient(t *testing.T, opts *Options, proto *Protocol) (*Client, *testWSFakeNetConn) {
	t.Helper()
	if opts == nil {
		opts = &Options{NoTLS: true}
	}
	s, err := New(opts, proto)
	require_NoError(t, err)
	s.SetLogger(nil, false, false)
	nc := &testWSFakeNetConn{}
	return s.createClient(nc), nc
}

// newTestEstablishedClient skips the handshake and pins the revision.
func newTestEstablishedClient(t *testing.T, revision int, proto *Protocol) (*Client, *testWSFakeNetConn) {
	t.Helper()
	c, nc := newTestClient(t, nil, proto)
	c.revision = revision
	c.state = StateEstablished
	return c, nc
}

// setTestHeader injects a collected token value as if the parser had seen
// the header.
func setTestHeader(c *Client, tok Token, val string) {
	c.tokens[tok].buf = append([]byte(val), 0)
	c.tokens[tok].len = len(val)
}

func feedHandshake(c *Client, data []byte) {
	for _, b := range data {
		c.hsParse(b)
	}
}
