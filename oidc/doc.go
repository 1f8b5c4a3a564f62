// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package oidc provides the relying party side of the OIDC authorization code
flow used by the demo.

Primary types provided by the package

* Config: the client configuration for a typical 3-legged OIDC authorization
code flow (client id/secret, issuer, scopes, provider CA, etc).  An empty
client secret is allowed and describes a public client.

* Provider: the result of discovery against an issuer.  It can generate an
auth URL, exchange codes for tokens, fetch user info, build end session URLs
and, when asked to, verify id_tokens.

* Token: an id_token, access_token and optional refresh_token returned by a
successful code exchange.  The raw token values are redacted when printed or
marshaled to JSON.

* UnverifiedClaims: decodes the claims of a JWT for display only.  It never
verifies a signature and must not be used to make an authentication decision;
see Provider.VerifyIdToken for that.

* TestProvider: an in-process OIDC provider which makes writing tests much
easier.
*/
package oidc
