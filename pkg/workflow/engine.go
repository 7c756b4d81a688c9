// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"net/url"

	"github.com/corvidae/gatehouse/pkg/directory"
	"github.com/corvidae/gatehouse/pkg/errors"
	"github.com/corvidae/gatehouse/pkg/logger"
	"github.com/corvidae/gatehouse/pkg/script"
	"github.com/corvidae/gatehouse/pkg/session"
)

// Engine drives the script-governed authentication workflow. It holds no
// mutable state of its own; everything cross-request lives in the session
// record, everything per-request in the StepRequest and stepContext.
type Engine struct {
	sessions       session.Store
	users          directory.UserDirectory
	scripts        script.Host
	scriptsEnabled bool
	loginHook      LoginHook
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLoginHook registers the successful-login notification.
func WithLoginHook(hook LoginHook) EngineOption {
	return func(e *Engine) {
		e.loginHook = hook
	}
}

// WithScriptsDisabled turns script usage off: every interactive
// authentication degrades to the direct-credential path.
func WithScriptsDisabled() EngineOption {
	return func(e *Engine) {
		e.scriptsEnabled = false
	}
}

// NewEngine wires a workflow engine.
func NewEngine(
	sessions session.Store,
	users directory.UserDirectory,
	scripts script.Host,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		sessions:       sessions,
		users:          users,
		scripts:        scripts,
		scriptsEnabled: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AuthenticateStep runs one interactive round trip of the login sequence.
// Any panic or unexpected error is caught and mapped to StatusFailed; the
// ledger write is always the last action of a successful step, so the
// session never ends up in an undefined intermediate state.
func (e *Engine) AuthenticateStep(ctx context.Context, req StepRequest) (result Result) {
	sc := &stepContext{}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorw("panic during workflow step", "panic", rec, "session_id", req.SessionID)
			result = Result{Status: StatusFailed, Err: errors.NewInternalError("workflow step panicked", nil)}
		}
	}()

	// Load the session; a missing session is fatal for the whole flow.
	sess, err := e.sessions.Get(ctx, req.SessionID)
	if err != nil {
		logger.Warnw("workflow entered with invalid session", "session_id", req.SessionID, "error", err)
		sc.presentOnce(req.Presenter, "Your session is invalid. Please start over.")
		e.redirect(req.Redirector, ErrorPage)
		return Result{Status: StatusFailed, Page: ErrorPage, Err: errors.NewSessionInvalidError("session lookup failed", err)}
	}

	ledger := session.NewLedger(sess)
	sc.step = ledger.CurrentStep()
	sc.acr = ledger.ACR()

	// Legacy path: no script governs this login.
	if !e.scriptsEnabled || sc.acr == "" {
		return e.authenticateDirect(ctx, sess, req.Credentials)
	}

	cfg, ok := e.scripts.Resolve(script.UsageInteractive, sc.acr)
	if !ok {
		logger.Errorw("no script configuration for workflow", "acr", sc.acr, "session_id", req.SessionID)
		return Result{Status: StatusFailed, Err: errors.NewScriptMissingError("no script for ACR "+sc.acr, nil)}
	}

	// Step-skip protection: every previous step must be marked passed.
	if !ledger.PriorStepsPassed(sc.step) {
		logger.Warnw("workflow step entered with unpassed previous steps",
			"session_id", req.SessionID,
			"step", sc.step,
		)
		return Result{Status: StatusFailed, Err: errors.NewStepsNotPassedError("previous steps not passed", nil)}
	}

	passed, err := cfg.Authenticate(ctx, req.Params, sc.step)
	if err != nil {
		logger.Errorw("script authenticate failed", "acr", sc.acr, "step", sc.step, "error", err)
		return Result{Status: StatusFailed, Err: errors.NewScriptError("script authenticate failed", err)}
	}

	override := script.NoStepOverride
	if cfg.APIVersion() > 1 {
		override = cfg.NextStep(ctx, req.Params, sc.step)
	}

	if !passed && override == script.NoStepOverride {
		sc.presentOnce(req.Presenter, "Login failed. Please try again.")
		return Result{Status: StatusFailed, Err: errors.NewAuthenticationRejectedError("credentials rejected", nil)}
	}

	overridden := override != script.NoStepOverride
	if overridden {
		// Reload before acting on the override so a concurrent update
		// between our read and this write is not clobbered blindly. The
		// original step is deliberately not marked passed.
		sess, err = e.sessions.Reload(ctx, req.SessionID)
		if err != nil {
			logger.Errorw("session reload failed during step override", "session_id", req.SessionID, "error", err)
			return Result{Status: StatusFailed, Err: errors.NewInternalError("session reload failed", err)}
		}
		ledger = session.NewLedger(sess)
		ledger.SetStep(override)
		sc.step = override
		if err := e.sessions.Save(ctx, sess); err != nil {
			logger.Errorw("session save failed during step override", "session_id", req.SessionID, "error", err)
			return Result{Status: StatusFailed, Err: errors.NewInternalError("session save failed", err)}
		}
	}

	// Fresh read before deciding: the script run may itself have mutated the
	// session through the directory.
	sess, err = e.sessions.Reload(ctx, req.SessionID)
	if err != nil {
		logger.Errorw("session reload failed after script run", "session_id", req.SessionID, "error", err)
		return Result{Status: StatusFailed, Err: errors.NewInternalError("session reload failed", err)}
	}
	ledger = session.NewLedger(sess)

	count := cfg.StepCount()
	if overridden || sc.step < count {
		nextStep := sc.step + 1
		if overridden {
			nextStep = sc.step
		}

		page := cfg.PageForStep(nextStep)
		if page == "" {
			page = DefaultLoginPage
		}

		ledger.SetExtraParams(cfg.ExtraParametersForStep(nextStep), flatten(req.Params))
		if !overridden {
			ledger.SetStep(nextStep)
			ledger.MarkStepPassed(sc.step)
		}
		if err := e.sessions.Save(ctx, sess); err != nil {
			logger.Errorw("session save failed after step", "session_id", req.SessionID, "error", err)
			return Result{Status: StatusFailed, Err: errors.NewInternalError("session save failed", err)}
		}

		e.redirect(req.Redirector, page)
		return Result{Status: StatusAwaitingStep, Step: nextStep, Page: page}
	}

	// Final step passed; the workflow is complete.
	username := req.Credentials.Username
	if username == "" {
		username = req.Params.Get("username")
	}
	return e.finalize(ctx, sess, username)
}

// AuthenticateService runs the non-interactive, single-shot service mode.
// On a missing script or a script rejection it falls back to the direct
// directory check. No step state is persisted: service mode is always
// exactly one step.
func (e *Engine) AuthenticateService(ctx context.Context, acr string, creds Credentials) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorw("panic during service authentication", "panic", rec, "acr", acr)
			result = Result{Status: StatusFailed, Err: errors.NewInternalError("service authentication panicked", nil)}
		}
	}()

	if e.scriptsEnabled && acr != "" {
		if cfg, ok := e.scripts.Resolve(script.UsageService, acr); ok {
			params := url.Values{
				"username": {creds.Username},
				"password": {creds.Password},
			}
			passed, err := cfg.Authenticate(ctx, params, 1)
			if err != nil {
				logger.Errorw("service script authenticate failed", "acr", acr, "error", err)
			}
			if passed && err == nil {
				return Result{Status: StatusCompleted}
			}
		}
	}

	ok, err := e.users.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		logger.Errorw("user directory authenticate failed", "username", creds.Username, "error", err)
		return Result{Status: StatusFailed, Err: errors.NewInternalError("user directory failed", err)}
	}
	if !ok {
		return Result{Status: StatusFailed, Err: errors.NewAuthenticationRejectedError("credentials rejected", nil)}
	}
	return Result{Status: StatusCompleted}
}

// authenticateDirect is the legacy path for sessions without a governing
// script: a single username/password check against the user directory.
func (e *Engine) authenticateDirect(ctx context.Context, sess *session.Session, creds Credentials) Result {
	ok, err := e.users.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		logger.Errorw("user directory authenticate failed", "username", creds.Username, "error", err)
		return Result{Status: StatusFailed, Err: errors.NewInternalError("user directory failed", err)}
	}
	if !ok {
		return Result{Status: StatusFailed, Err: errors.NewAuthenticationRejectedError("credentials rejected", nil)}
	}
	return e.finalize(ctx, sess, creds.Username)
}

// finalize binds the principal, marks the session authenticated and fires
// the successful-login notification. The session save is the last action.
func (e *Engine) finalize(ctx context.Context, sess *session.Session, username string) Result {
	if username != "" {
		user, err := e.users.GetByUsername(ctx, username)
		if err != nil {
			logger.Errorw("cannot resolve user at workflow completion", "username", username, "error", err)
			return Result{Status: StatusFailed, Err: errors.NewInternalError("cannot resolve user", err)}
		}
		sess.UserID = user.ID
	}
	sess.State = session.StateAuthenticated

	if err := e.sessions.Save(ctx, sess); err != nil {
		logger.Errorw("session save failed at workflow completion", "session_id", sess.ID, "error", err)
		return Result{Status: StatusFailed, Err: errors.NewInternalError("session save failed", err)}
	}

	if e.loginHook != nil {
		e.loginHook(ctx, sess)
	}
	logger.Infow("session authenticated", "session_id", sess.ID, "user_id", sess.UserID)
	return Result{Status: StatusCompleted}
}

func (e *Engine) redirect(r Redirector, page string) {
	if r != nil {
		r.Redirect(page)
	}
}

// flatten reduces url.Values to the first value per key for ledger storage.
func flatten(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for k, vs := range params {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
