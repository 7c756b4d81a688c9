// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"

	"github.com/corvidae/gatehouse/pkg/logger"
	"github.com/corvidae/gatehouse/pkg/script"
	"github.com/corvidae/gatehouse/pkg/session"
)

// PrepareStep is the idempotent pre-flight invoked before rendering the page
// for the session's current step. It re-derives the applicable ACR (a script
// may hand the session over to a different workflow mid-flow), enforces the
// prior-steps invariant, and runs the script's own preparation. It never
// returns an error: every failure maps to one of the PrepareOutcome values.
func (e *Engine) PrepareStep(ctx context.Context, req StepRequest) (outcome PrepareOutcome) {
	sc := &stepContext{}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorw("panic during step preparation", "panic", rec, "session_id", req.SessionID)
			outcome = PrepareFailure
		}
	}()

	sess, err := e.sessions.Get(ctx, req.SessionID)
	if err != nil {
		sc.presentOnce(req.Presenter, "Your session has expired. Please start over.")
		return PrepareExpired
	}

	ledger := session.NewLedger(sess)
	sc.acr = ledger.ACR()
	sc.step = ledger.CurrentStep()

	if !e.scriptsEnabled || sc.acr == "" {
		return PrepareSuccess
	}

	// A script host that can re-determine the workflow may switch this
	// session to a different ACR; the workflow then restarts at step 1 under
	// the new script.
	if det, ok := e.scripts.(script.Determiner); ok {
		newACR := det.DetermineACR(ctx, script.UsageInteractive, sc.acr, req.Params)
		if newACR != "" && newACR != sc.acr {
			return e.switchWorkflow(ctx, sess, ledger, newACR, req)
		}
	}

	cfg, ok := e.scripts.Resolve(script.UsageInteractive, sc.acr)
	if !ok {
		logger.Errorw("no script configuration for workflow", "acr", sc.acr, "session_id", req.SessionID)
		return PrepareFailure
	}

	if sc.step > 1 && !ledger.PriorStepsPassed(sc.step) {
		logger.Warnw("step preparation without passed previous steps",
			"session_id", req.SessionID,
			"step", sc.step,
		)
		return PrepareNoPermissions
	}

	prepared, err := cfg.PrepareForStep(ctx, req.Params, sc.step)
	if err != nil {
		logger.Errorw("script prepare failed", "acr", sc.acr, "step", sc.step, "error", err)
		return PrepareFailure
	}
	if !prepared {
		return PrepareFailure
	}

	ledger.SetExtraParams(cfg.ExtraParametersForStep(sc.step), flatten(req.Params))
	if err := e.sessions.Save(ctx, sess); err != nil {
		logger.Errorw("session save failed after step preparation", "session_id", req.SessionID, "error", err)
		return PrepareFailure
	}
	return PrepareSuccess
}

// switchWorkflow moves the session to a different ACR, restarting at step 1
// and redirecting to the new workflow's first page.
func (e *Engine) switchWorkflow(
	ctx context.Context,
	sess *session.Session,
	ledger *session.Ledger,
	newACR string,
	req StepRequest,
) PrepareOutcome {
	cfg, ok := e.scripts.Resolve(script.UsageInteractive, newACR)
	if !ok {
		logger.Errorw("workflow redetermination named an unknown ACR", "acr", newACR, "session_id", req.SessionID)
		return PrepareFailure
	}

	ledger.SetACR(newACR)
	ledger.SetStep(1)
	if err := e.sessions.Save(ctx, sess); err != nil {
		logger.Errorw("session save failed during workflow switch", "session_id", req.SessionID, "error", err)
		return PrepareFailure
	}

	page := cfg.PageForStep(1)
	if page == "" {
		page = DefaultLoginPage
	}
	e.redirect(req.Redirector, page)

	logger.Infow("workflow switched to new ACR",
		"session_id", req.SessionID,
		"acr", newACR,
	)
	return PrepareSuccess
}
