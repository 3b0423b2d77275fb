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
	"testing"

	jwt "github.com/nats-io/jwt/v2"
	"github.com/nats-io/nkeys"
	"github.com/stretchr/testify/require"
)

// issueUserJWT mints a user JWT signed by a fresh account and returns the
// token with the account public key.
func issueUserJWT(t *testing.T) (string, string) {
	t.Helper()
	akp, err := nkeys.CreateAccount()
	require.NoError(t, err)
	apub, err := akp.PublicKey()
	require.NoError(t, err)

	ukp, err := nkeys.CreateUser()
	require.NoError(t, err)
	upub, err := ukp.PublicKey()
	require.NoError(t, err)

	uc := jwt.NewUserClaims(upub)
	token, err := uc.Encode(akp)
	require.NoError(t, err)
	return token, apub
}

func TestAuthorizeOpenWithoutTrustedKeys(t *testing.T) {
	c, _ := newTestClient(t, nil, nil)
	require.NoError(t, c.authorize())
}

func TestAuthorizeAcceptsTrustedIssuer(t *testing.T) {
	token, apub := issueUserJWT(t)

	c, _ := newTestClient(t, &Options{NoTLS: true, TrustedKeys: []string{apub}}, nil)
	setTestHeader(c, TokenProtocol, token)
	require.NoError(t, c.authorize())
}

func TestAuthorizeRejectsUntrustedIssuer(t *testing.T) {
	token, _ := issueUserJWT(t)
	_, otherPub := issueUserJWT(t)

	c, _ := newTestClient(t, &Options{NoTLS: true, TrustedKeys: []string{otherPub}}, nil)
	setTestHeader(c, TokenProtocol, token)
	err := c.authorize()
	require.Error(t, err)
	require.Contains(t, err.Error(), "not trusted")
}

func TestAuthorizeRejectsMissingCredentials(t *testing.T) {
	_, apub := issueUserJWT(t)
	c, _ := newTestClient(t, &Options{NoTLS: true, TrustedKeys: []string{apub}}, nil)
	require.Error(t, c.authorize())
}

func TestAuthorizeRejectsGarbageToken(t *testing.T) {
	_, apub := issueUserJWT(t)
	c, _ := newTestClient(t, &Options{NoTLS: true, TrustedKeys: []string{apub}}, nil)
	setTestHeader(c, TokenProtocol, "not.a.jwt")
	require.Error(t, c.authorize())
}
