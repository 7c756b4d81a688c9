// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/corvidae/gatehouse/pkg/auth"
	"github.com/corvidae/gatehouse/pkg/logger"
	"github.com/corvidae/gatehouse/pkg/session"
	"github.com/corvidae/gatehouse/pkg/workflow"
)

// originalRequestKey stores the authorization request URI the login flow
// returns to after it completes.
const originalRequestKey = "original_request"

// handleAuthorize starts (or resumes) an authorization. An authenticated
// principal goes straight to grant processing; everyone else gets a fresh
// session and the interactive login workflow.
func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		h.grants.HandleAuthorize(w, r, identity)
		return
	}

	// prompt=none forbids the interactive fallback (OIDC Core 3.1.2.1).
	if auth.ParsePrompt(r.URL.Query().Get(auth.ParamPrompt)).None {
		writeOAuthError(w, http.StatusUnauthorized, "login_required",
			"No authenticated session and interactive login was disallowed.")
		return
	}

	sess := session.New(h.cfg.Session.TTL)
	ledger := session.NewLedger(sess)
	acr := r.URL.Query().Get(auth.ParamACRValues)
	if acr == "" {
		acr = h.cfg.Scripts.DefaultACR
	}
	if acr != "" {
		ledger.SetACR(acr)
	}
	sess.Attributes[originalRequestKey] = r.URL.RequestURI()

	if err := h.sessions.Save(r.Context(), sess); err != nil {
		logger.Errorw("failed to create login session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusFound)
}

// handleLoginPage runs the step pre-flight and renders the form for the
// session's current step.
func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	sessID := h.sessionID(r)
	params := r.URL.Query()

	redirector := &httpRedirector{w: w, r: r}
	presenter := &messageCollector{}
	outcome := h.engine.PrepareStep(r.Context(), workflow.StepRequest{
		SessionID:  sessID,
		Params:     params,
		Redirector: redirector,
		Presenter:  presenter,
	})
	if redirector.done {
		return
	}

	switch outcome {
	case workflow.PrepareSuccess:
		h.renderLogin(w, r, presenter.last())
	case workflow.PrepareNoPermissions:
		http.Error(w, "authentication steps out of order", http.StatusForbidden)
	case workflow.PrepareExpired:
		http.Redirect(w, r, workflow.ErrorPage+"?error="+url.QueryEscape(presenter.last()), http.StatusFound)
	default:
		http.Redirect(w, r, workflow.ErrorPage, http.StatusFound)
	}
}

// handleLoginSubmit runs one interactive authentication step.
func (h *Handler) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	sessID := h.sessionID(r)
	redirector := &httpRedirector{w: w, r: r}
	presenter := &messageCollector{}

	result := h.engine.AuthenticateStep(r.Context(), workflow.StepRequest{
		SessionID: sessID,
		Params:    r.Form,
		Credentials: workflow.Credentials{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
		},
		Redirector: redirector,
		Presenter:  presenter,
	})
	if redirector.done {
		return
	}

	switch result.Status {
	case workflow.StatusCompleted:
		http.Redirect(w, r, h.postLoginTarget(r, sessID), http.StatusFound)
	case workflow.StatusFailed:
		target := "/login"
		if msg := presenter.last(); msg != "" {
			target += "?error=" + url.QueryEscape(msg)
		}
		http.Redirect(w, r, target, http.StatusFound)
	default:
		// AwaitingStep always redirects through the Redirector; reaching
		// here means the caller supplied none.
		http.Redirect(w, r, result.Page, http.StatusFound)
	}
}

func (h *Handler) handleErrorPage(w http.ResponseWriter, r *http.Request) {
	msg := r.URL.Query().Get("error")
	if msg == "" {
		msg = "Authentication failed."
	}
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	if err := errorTemplate.Execute(w, map[string]string{"Message": msg}); err != nil {
		logger.Errorw("failed to render error page", "error", err)
	}
}

// postLoginTarget returns the original authorization request stored on the
// session, falling back to the root.
func (h *Handler) postLoginTarget(r *http.Request, sessID string) string {
	sess, err := h.sessions.Get(r.Context(), sessID)
	if err != nil {
		return "/"
	}
	if target := sess.Attributes[originalRequestKey]; target != "" {
		return target
	}
	return "/"
}

// sessionID resolves the session reference the same way the dispatcher
// does: explicit parameter first, cookie second.
func (h *Handler) sessionID(r *http.Request) string {
	if id := r.FormValue(auth.ParamSessionID); id != "" {
		return id
	}
	if c, err := r.Cookie(auth.SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = r.URL.Query().Get("error")
	}
	step := 1
	if sess, err := h.sessions.Get(r.Context(), h.sessionID(r)); err == nil {
		step = session.NewLedger(sess).CurrentStep()
	}

	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	err := loginTemplate.Execute(w, map[string]any{
		"Step":    step,
		"Message": message,
	})
	if err != nil {
		logger.Errorw("failed to render login page", "error", err)
	}
}

// httpRedirector adapts the engine's navigation decision to an HTTP
// redirect. At most one redirect is written per request.
type httpRedirector struct {
	w    http.ResponseWriter
	r    *http.Request
	done bool
}

func (h *httpRedirector) Redirect(page string) {
	if h.done {
		return
	}
	h.done = true
	http.Redirect(h.w, h.r, page, http.StatusFound)
}

// messageCollector buffers engine error messages for rendering.
type messageCollector struct {
	messages []string
}

func (c *messageCollector) PresentError(msg string) {
	c.messages = append(c.messages, msg)
}

func (c *messageCollector) last() string {
	if len(c.messages) == 0 {
		return ""
	}
	return c.messages[len(c.messages)-1]
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
{{if .Message}}<p class="error">{{.Message}}</p>{{end}}
<form method="post" action="/login">
  <p>Step {{.Step}}</p>
  <input type="text" name="username" autocomplete="username">
  <input type="password" name="password" autocomplete="current-password">
  <button type="submit">Sign in</button>
</form>
</body>
</html>
`))

var errorTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>Error</title></head>
<body><p class="error">{{.Message}}</p></body>
</html>
`))
