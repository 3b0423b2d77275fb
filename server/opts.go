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
	"crypto/tls"
	"net/url"
	"time"

	"github.com/nats-io/nkeys"
	"github.com/pkg/errors"
)

// Options configures a Server.
type Options struct {
	Host string
	Port int

	// TLS is enforced unless NoTLS is set; clients are expected to
	// present bearer credentials and those should not travel in clear.
	TLSConfig *tls.Config
	NoTLS     bool

	// How long a connection may sit in the handshake before the server
	// gives up on it. Zero means no deadline.
	HandshakeTimeout time.Duration

	// Origin policy. SameOrigin requires the Origin header to match the
	// request Host; AllowedOrigins is an explicit allow list of origin
	// URLs. Both empty means any origin is accepted.
	SameOrigin     bool
	AllowedOrigins []string

	// Trusted account public keys. When non-empty, clients must present
	// a user JWT issued by one of them as the handshake subprotocol.
	TrustedKeys []string

	// Directory served to plain HTTP requests, empty to refuse them.
	HTTPRoot string

	// Accept loop rate limiting. Zero disables it.
	AcceptRate  float64
	AcceptBurst int

	Debug bool
	Trace bool
}

// validateOptions rejects configurations the server cannot honor.
func validateOptions(o *Options) error {
	if o.TLSConfig == nil && !o.NoTLS {
		return errors.New("websocket requires TLS configuration")
	}
	for _, ao := range o.AllowedOrigins {
		if _, err := url.ParseRequestURI(ao); err != nil {
			return errors.Wrap(err, "unable to parse allowed origin")
		}
	}
	for _, k := range o.TrustedKeys {
		if !nkeys.IsValidPublicAccountKey(k) {
			return errors.Errorf("trusted key %q is not a valid account public key", k)
		}
	}
	if o.AcceptRate < 0 {
		return errors.New("accept rate cannot be negative")
	}
	if o.AcceptRate > 0 && o.AcceptBurst <= 0 {
		return errors.New("accept burst must be positive when rate limiting")
	}
	return nil
}

// clone so the running server owns its copy.
func (o *Options) clone() *Options {
	clone := *o
	if o.AllowedOrigins != nil {
		clone.AllowedOrigins = append([]string(nil), o.AllowedOrigins...)
	}
	if o.TrustedKeys != nil {
		clone.TrustedKeys = append([]string(nil), o.TrustedKeys...)
	}
	if o.TLSConfig != nil {
		clone.TLSConfig = o.TLSConfig.Clone()
	}
	return &clone
}
