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
	"fmt"
	"io"
	"os"
)

const httpServerName = "draftws"

// ServeHTTPFile issues a local file down the http link in a single step.
// Intended to be called from the callback in response to a CallbackHTTP
// event; the payload streams through the unframed HTTP write kind.
func (c *Client) ServeHTTPFile(file, contentType string) error {
	f, err := os.Open(file)
	if err != nil {
		hdr := fmt.Sprintf("HTTP/1.0 400 Bad\r\nServer: %s\r\n\r\n", httpServerName)
		c.Write(PaddedBufferFrom([]byte(hdr)), HTTPWrite)
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	hdr := fmt.Sprintf("HTTP/1.0 200 OK\r\nServer: %s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
		httpServerName, contentType, fi.Size())
	if err := c.Write(PaddedBufferFrom([]byte(hdr)), HTTPWrite); err != nil {
		return err
	}

	pb := NewPaddedBuffer(512)
	for {
		n, err := f.Read(pb.Payload())
		if n > 0 {
			pb.SetLen(n)
			if werr := c.Write(pb, HTTPWrite); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
