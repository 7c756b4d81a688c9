// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"

	"github.com/corvidae/gatehouse/pkg/auth"
	"github.com/corvidae/gatehouse/pkg/logger"
)

// GrantHandler processes a machine-endpoint request after the client has
// been authenticated. Token and ticket issuance live behind this interface
// so the authentication layer stays independent of the grant machinery.
type GrantHandler interface {
	// HandleToken serves the token and UMA token endpoints.
	HandleToken(w http.ResponseWriter, r *http.Request, client *auth.Identity)

	// HandleRevoke serves the revocation endpoint.
	HandleRevoke(w http.ResponseWriter, r *http.Request, client *auth.Identity)

	// HandleAuthorize serves the authorization endpoint for an already
	// authenticated principal.
	HandleAuthorize(w http.ResponseWriter, r *http.Request, principal *auth.Identity)
}

// UnimplementedGrantHandler is the default GrantHandler: clients are
// authenticated but no grant types are served.
type UnimplementedGrantHandler struct{}

// HandleToken replies that no grant types are implemented.
func (UnimplementedGrantHandler) HandleToken(w http.ResponseWriter, _ *http.Request, client *auth.Identity) {
	logger.Debugw("token request authenticated, no grant handler installed", "client_id", client.ClientID)
	writeOAuthError(w, http.StatusNotImplemented, "unsupported_grant_type", "No grant types are enabled on this server.")
}

// HandleRevoke acknowledges the revocation without acting on it. RFC 7009
// requires 200 even for tokens the server does not know.
func (UnimplementedGrantHandler) HandleRevoke(w http.ResponseWriter, _ *http.Request, _ *auth.Identity) {
	w.WriteHeader(http.StatusOK)
}

// HandleAuthorize replies that authorization responses are not implemented.
func (UnimplementedGrantHandler) HandleAuthorize(w http.ResponseWriter, _ *http.Request, _ *auth.Identity) {
	writeOAuthError(w, http.StatusNotImplemented, "unsupported_response_type", "No response types are enabled on this server.")
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		// The dispatcher passed the request through without a principal;
		// machine endpoints require one.
		h.dispatcher.WriteInvalidClient(w)
		return
	}
	h.grants.HandleToken(w, r, identity)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.dispatcher.WriteInvalidClient(w)
		return
	}
	h.grants.HandleRevoke(w, r, identity)
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	body := map[string]string{
		"error":             code,
		"error_description": description,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorw("failed to write error response", "error", err)
	}
}
