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
	"log"
	"os"
	"sync"
)

// Logger is the logging surface the server writes through. Debug and trace
// output is gated by the flags given to SetLogger, so a quiet logger never
// pays for formatting.
type Logger interface {
	Noticef(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	Fatalf(format string, v ...interface{})
	Debugf(format string, v ...interface{})
	Tracef(format string, v ...interface{})
}

type logging struct {
	sync.RWMutex
	logger Logger
	debug  bool
	trace  bool
}

// SetLogger installs the logger the server reports through.
func (s *Server) SetLogger(l Logger, debug, trace bool) {
	s.logging.Lock()
	s.logging.logger = l
	s.logging.debug = debug
	s.logging.trace = trace
	s.logging.Unlock()
}

func (s *Server) Noticef(format string, v ...interface{}) {
	s.executeLogCall(func(l Logger) { l.Noticef(format, v...) })
}

func (s *Server) Warnf(format string, v ...interface{}) {
	s.executeLogCall(func(l Logger) { l.Warnf(format, v...) })
}

func (s *Server) Errorf(format string, v ...interface{}) {
	s.executeLogCall(func(l Logger) { l.Errorf(format, v...) })
}

func (s *Server) Fatalf(format string, v ...interface{}) {
	s.executeLogCall(func(l Logger) { l.Fatalf(format, v...) })
}

func (s *Server) Debugf(format string, v ...interface{}) {
	s.logging.RLock()
	dbg := s.logging.debug
	s.logging.RUnlock()
	if !dbg {
		return
	}
	s.executeLogCall(func(l Logger) { l.Debugf(format, v...) })
}

func (s *Server) Tracef(format string, v ...interface{}) {
	s.logging.RLock()
	trc := s.logging.trace
	s.logging.RUnlock()
	if !trc {
		return
	}
	s.executeLogCall(func(l Logger) { l.Tracef(format, v...) })
}

func (s *Server) executeLogCall(f func(l Logger)) {
	s.logging.RLock()
	l := s.logging.logger
	s.logging.RUnlock()
	if l == nil {
		return
	}
	f(l)
}

// stdLogger is the default Logger, a thin veneer over the standard library
// log package.
type stdLogger struct {
	l *log.Logger
}

func newStdLogger() *stdLogger {
	return &stdLogger{l: log.New(os.Stderr, "", log.LstdFlags)}
}

func (s *stdLogger) Noticef(format string, v ...interface{}) { s.l.Printf("[INF] "+format, v...) }
func (s *stdLogger) Warnf(format string, v ...interface{})   { s.l.Printf("[WRN] "+format, v...) }
func (s *stdLogger) Errorf(format string, v ...interface{})  { s.l.Printf("[ERR] "+format, v...) }
func (s *stdLogger) Fatalf(format string, v ...interface{})  { s.l.Fatalf("[FTL] "+format, v...) }
func (s *stdLogger) Debugf(format string, v ...interface{})  { s.l.Printf("[DBG] "+format, v...) }
func (s *stdLogger) Tracef(format string, v ...interface{})  { s.l.Printf("[TRC] "+format, v...) }
