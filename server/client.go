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
	"io"
	"net"
	"sync"

	"github.com/nats-io/nuid"
)

// ClientState is the connection lifecycle.
type ClientState int

const (
	StateHandshaking ClientState = iota
	StateEstablished
	StateClosing
	StateDead
)

// CallbackEvent identifies why the protocol callback is being invoked.
type CallbackEvent int

const (
	// The upgrade handshake finished and the connection can carry
	// websocket traffic.
	CallbackEstablished CallbackEvent = iota
	// A chunk of inbound payload is ready. data points into the
	// connection's padded receive buffer and is only valid for the
	// duration of the call.
	CallbackReceive
	// The request turned out to be plain HTTP. data holds the request
	// target; the connection closes once the callback returns.
	CallbackHTTP
	// The connection is going away.
	CallbackClosed
)

// Protocol is the dispatch record a connection delivers its events through.
type Protocol struct {
	Name     string
	Callback func(c *Client, event CallbackEvent, user interface{}, data []byte) int
}

// Client is the per-peer state: the handshake parser, the frame receiver
// and the emitter context all live here. A client is owned by its reader
// goroutine; the state machines never run concurrently.
type Client struct {
	mu  sync.Mutex
	srv *Server
	nc  net.Conn
	cid string

	state    ClientState
	revision int

	// Handshake parser.
	hsState         parseState
	curToken        Token
	tokens          [tokenCount]tokenValue
	nameScratch     [nameScratchSize]byte
	nameScratchPos  int
	currentAllocLen int

	// Frame receiver.
	rxState        rxState
	frameNonce     [4]byte
	maskingKey     [20]byte
	frameMask      [20]byte
	frameMaskIndex int
	rxBuf          *PaddedBuffer
	rxHead         int

	proto *Protocol
	user  interface{}
}

func (s *Server) createClient(conn net.Conn) *Client {
	c := &Client{
		srv:     s,
		nc:      conn,
		cid:     nuid.Next(),
		state:   StateHandshaking,
		hsState: psNamePart,
		rxState: rxStateNew,
		rxBuf:   NewPaddedBuffer(maxUserRxBuffer),
		proto:   s.proto,
	}
	s.registerClient(c)
	return c
}

// State returns the connection lifecycle state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(st ClientState) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
}

// Revision returns the framing dialect fixed at handshake time.
func (c *Client) Revision() int { return c.revision }

// RxBuffer returns the connection's padded receive buffer. During a
// CallbackReceive it holds the delivered chunk, so a callback can echo it
// back through Write without copying.
func (c *Client) RxBuffer() *PaddedBuffer { return c.rxBuf }

// SetUser attaches opaque user state handed back on every callback.
func (c *Client) SetUser(user interface{}) { c.user = user }

// readLoop feeds transport bytes through the handshake parser and then the
// frame receiver until the connection dies. Runs as the connection's only
// reader goroutine.
func (c *Client) readLoop() {
	defer c.teardown()

	var buf [4096]byte
	for {
		n, err := c.nc.Read(buf[:])
		if n > 0 {
			c.srv.Tracef("%s - <<- %d bytes", c.cid, n)
			if perr := c.processInbound(buf[:n]); perr != nil {
				if perr != io.EOF && perr != errClientClose {
					c.srv.Errorf("%s - processing error: %v", c.cid, perr)
				}
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				c.srv.Debugf("%s - read error: %v", c.cid, err)
			}
			return
		}
	}
}

// processInbound routes a chunk of transport bytes. While handshaking the
// bytes go one at a time into the handshake parser; once that reaches its
// terminal state the response is issued and the remainder of the chunk,
// plus everything after it, goes to the frame receiver.
func (c *Client) processInbound(buf []byte) error {
	i := 0
	if c.State() == StateHandshaking {
		for ; i < len(buf) && c.hsState != psComplete; i++ {
			c.hsParse(buf[i])
		}
		if c.hsState != psComplete {
			return nil
		}
		if err := c.completeHandshake(); err != nil {
			return err
		}
	}
	return c.interpretIncomingPacket(buf[i:])
}

// callback invokes the protocol callback if one is attached.
func (c *Client) callback(event CallbackEvent, data []byte) int {
	if c.proto == nil || c.proto.Callback == nil {
		return 0
	}
	return c.proto.Callback(c, event, c.user, data)
}

// teardown releases everything the connection owns: the socket, the token
// buffers and the frame mask context die with it.
func (c *Client) teardown() {
	c.mu.Lock()
	if c.state == StateDead {
		c.mu.Unlock()
		return
	}
	c.state = StateDead
	nc := c.nc
	c.nc = nil
	c.mu.Unlock()

	if nc != nil {
		nc.Close()
	}
	c.callback(CallbackClosed, nil)
	for i := range c.tokens {
		c.tokens[i].buf = nil
		c.tokens[i].len = 0
	}
	c.srv.removeClient(c)
	c.srv.Debugf("%s - connection closed", c.cid)
}
