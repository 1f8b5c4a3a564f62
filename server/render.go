// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/hashicorp/go-hclog"
)

type formData struct {
	DiscoveryURL    string
	ClientID        string
	HasClientSecret bool
	RedirectURI     string
	IdpHint         string
}

func (s *Server) formData(r *http.Request) formData {
	d := formData{
		DiscoveryURL:    s.defaults.DiscoveryURL,
		ClientID:        s.defaults.ClientID,
		HasClientSecret: s.defaults.ClientSecret != "",
		RedirectURI:     s.defaults.RedirectURI,
		IdpHint:         s.defaults.IdpHint,
	}
	if d.DiscoveryURL == "" {
		d.DiscoveryURL = "https://your-oidc-provider/.well-known/openid-configuration"
	}
	if d.RedirectURI == "" {
		d.RedirectURI = s.defaultRedirectURI(r)
	}
	return d
}

// render executes the named page into a buffer before anything is written.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		hclog.FromContext(r.Context()).Error("unable to render page", "page", name, "error", err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// prettyJSON indents v for display; nil renders as "null".
func prettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "null"
	}
	return string(b)
}
