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
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

type allowedOrigin struct {
	scheme string
	port   string
}

// Server accepts transport connections and drives one Client per peer.
type Server struct {
	mu       sync.Mutex
	id       string
	opts     *Options
	proto    *Protocol
	listener net.Listener
	tls      bool

	allowedOrigins map[string]*allowedOrigin
	sameOrigin     bool

	limiter *rate.Limiter

	clients  map[string]*Client
	grWG     sync.WaitGroup
	running  bool
	shutdown bool

	logging logging
}

// New validates opts and builds a server dispatching through proto.
func New(opts *Options, proto *Protocol) (*Server, error) {
	if opts == nil {
		opts = &Options{NoTLS: true}
	}
	if err := validateOptions(opts); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}
	s := &Server{
		id:      nuid.Next(),
		opts:    opts.clone(),
		proto:   proto,
		clients: make(map[string]*Client),
	}
	s.SetLogger(newStdLogger(), opts.Debug, opts.Trace)
	s.setOriginOptions()
	if opts.AcceptRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.AcceptRate), opts.AcceptBurst)
	}
	return s, nil
}

func (s *Server) getOpts() *Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// ID returns the server's unique identity.
func (s *Server) ID() string { return s.id }

func (s *Server) isTLS() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tls
}

// setOriginOptions digests the configured origin policy into the lookup map
// the handshake consults.
func (s *Server) setOriginOptions() {
	o := s.opts
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sameOrigin = o.SameOrigin
	s.allowedOrigins = nil
	for _, ao := range o.AllowedOrigins {
		// Parseability was checked during options validation, but if
		// we get an error, report and skip.
		u, err := url.ParseRequestURI(ao)
		if err != nil {
			s.Errorf("error parsing allowed origin: %v", err)
			continue
		}
		h, p, _ := wsGetHostAndPort(u.Scheme == "https", u.Host)
		if s.allowedOrigins == nil {
			s.allowedOrigins = make(map[string]*allowedOrigin, len(o.AllowedOrigins))
		}
		s.allowedOrigins[h] = &allowedOrigin{scheme: u.Scheme, port: p}
	}
}

// Start listens and runs the accept loop until Shutdown. The listener is
// bound before Start returns, so Addr is valid from then on.
func (s *Server) Start() error {
	o := s.getOpts()

	if limit, err := raiseFDLimit(); err != nil {
		s.Warnf("Unable to raise file descriptor limit: %v", err)
	} else if limit > 0 {
		s.Debugf("Maximum file descriptors: %d", limit)
	}

	port := o.Port
	if port == -1 {
		port = 0
	}
	hp := net.JoinHostPort(o.Host, strconv.Itoa(port))

	var (
		l     net.Listener
		proto string
		err   error
	)
	if o.TLSConfig != nil {
		proto = "wss"
		l, err = tls.Listen("tcp", hp, o.TLSConfig.Clone())
	} else {
		proto = "ws"
		l, err = net.Listen("tcp", hp)
	}
	if err != nil {
		return errors.Wrap(err, "unable to listen for websocket connections")
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		l.Close()
		return errors.New("server is shut down")
	}
	s.listener = l
	s.tls = proto == "wss"
	s.running = true
	s.mu.Unlock()

	s.Noticef("Listening for websocket clients on %s://%s", proto, l.Addr())
	if proto == "ws" {
		s.Warnf("Websocket not configured with TLS. DO NOT USE IN PRODUCTION!")
	}

	s.grWG.Add(1)
	go s.acceptLoop(l)
	return nil
}

// Addr returns the bound listener address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(l net.Listener) {
	defer s.grWG.Done()
	o := s.getOpts()
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(context.Background()); err != nil {
				return
			}
		}
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			down := s.shutdown
			s.mu.Unlock()
			if down {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				s.Errorf("Temporary accept error: %v", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			s.Errorf("Accept error: %v", err)
			return
		}
		if o.HandshakeTimeout > 0 {
			conn.SetDeadline(time.Now().Add(o.HandshakeTimeout))
		}
		c := s.createClient(conn)
		s.Debugf("%s - client connection from %s", c.cid, conn.RemoteAddr())
		s.grWG.Add(1)
		go func() {
			defer s.grWG.Done()
			c.readLoop()
		}()
	}
}

func (s *Server) registerClient(c *Client) {
	s.mu.Lock()
	s.clients[c.cid] = c
	s.mu.Unlock()
}

func (s *Server) removeClient(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.cid)
	s.mu.Unlock()
}

// NumClients returns the number of live connections.
func (s *Server) NumClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Shutdown stops the listener, tears down every connection and waits for
// the goroutines to drain.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	s.running = false
	l := s.listener
	s.listener = nil
	conns := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if l != nil {
		l.Close()
	}
	for _, c := range conns {
		c.teardown()
	}
	s.grWG.Wait()
	s.Noticef("Server exiting")
}
