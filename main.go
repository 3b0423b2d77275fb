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

package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/draftws/draftws-server/server"
)

func main() {
	opts := &server.Options{}
	var httpRoot string

	flag.StringVar(&opts.Host, "addr", "0.0.0.0", "Bind to host address")
	flag.IntVar(&opts.Port, "port", 7681, "Port to listen on")
	flag.BoolVar(&opts.NoTLS, "no_tls", true, "Disable TLS (development only)")
	flag.BoolVar(&opts.Debug, "D", false, "Enable debug output")
	flag.BoolVar(&opts.Trace, "V", false, "Enable trace output")
	flag.StringVar(&httpRoot, "http_root", "", "Directory served to plain http requests")
	flag.Parse()
	opts.HTTPRoot = httpRoot

	// A small echo protocol: websocket payloads come straight back, and
	// plain http requests are served from the configured root.
	echo := &server.Protocol{
		Name: "echo",
		Callback: func(c *server.Client, event server.CallbackEvent, user interface{}, data []byte) int {
			switch event {
			case server.CallbackReceive:
				// The receive buffer is padded, so the echo goes
				// out without a copy.
				if err := c.Write(c.RxBuffer(), server.TextWrite); err != nil {
					return -1
				}
			case server.CallbackHTTP:
				if httpRoot == "" {
					return -1
				}
				uri := string(data)
				if uri == "" || uri == "/" {
					uri = "/index.html"
				}
				c.ServeHTTPFile(filepath.Join(httpRoot, filepath.Clean(uri)), "text/html")
			}
			return 0
		},
	}

	s, err := server.New(opts, echo)
	if err != nil {
		log.Fatalf("error configuring server: %v", err)
	}
	if err := s.Start(); err != nil {
		log.Fatalf("error starting server: %v", err)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	s.Shutdown()
}
