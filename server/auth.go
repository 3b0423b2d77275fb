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
	jwt "github.com/nats-io/jwt/v2"
	"github.com/pkg/errors"
)

// authorize checks the credentials presented during the handshake. When the
// server is configured with trusted account keys, the client must present a
// user JWT as its subprotocol; the JWT's signature is verified on decode and
// its issuer must be one of the trusted keys. Without trusted keys the
// handshake is open.
func (c *Client) authorize() error {
	opts := c.srv.getOpts()
	if len(opts.TrustedKeys) == 0 {
		return nil
	}

	token := string(c.Header(TokenProtocol))
	if token == "" {
		return errors.New("authorization required but no credentials presented")
	}

	uc, err := jwt.DecodeUserClaims(token)
	if err != nil {
		return errors.Wrap(err, "invalid credentials")
	}

	for _, k := range opts.TrustedKeys {
		if k == uc.Issuer {
			c.srv.Debugf("%s - authorized user %q", c.cid, uc.Subject)
			return nil
		}
	}
	return errors.Errorf("issuer %q is not trusted", uc.Issuer)
}
