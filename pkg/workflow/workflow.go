// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

// Package workflow implements the multi-step authentication state machine.
// Step count, per-step policy and step ordering are resolved at runtime from
// the script configuration governing the session's ACR; all cross-request
// state lives in the shared session record.
package workflow

import (
	"context"
	"net/url"

	"github.com/corvidae/gatehouse/pkg/session"
)

// Default pages for the interactive flow.
const (
	DefaultLoginPage = "/login.xhtml"
	ErrorPage        = "/error.xhtml"
)

// Status is the outcome of one engine invocation.
type Status string

const (
	// StatusCompleted means the workflow finished and the session is
	// authenticated.
	StatusCompleted Status = "completed"

	// StatusAwaitingStep means the workflow advanced (or was overridden) and
	// now waits for the user to complete the given step.
	StatusAwaitingStep Status = "awaiting_step"

	// StatusFailed means the attempt failed. The session stays on its
	// current step; the user may retry.
	StatusFailed Status = "failed"
)

// Result describes what the engine decided for one round trip.
type Result struct {
	Status Status

	// Step is the step the workflow now waits on, for StatusAwaitingStep.
	Step int

	// Page is the page the user was redirected to, for StatusAwaitingStep
	// and fatal failures.
	Page string

	// Err classifies the failure for StatusFailed. Callers match it with the
	// errors package predicates; it is never surfaced to the end user.
	Err error
}

// PrepareOutcome is the result of the pre-flight run before a step's page is
// rendered.
type PrepareOutcome string

const (
	// PrepareSuccess means the page for the current step may be rendered.
	PrepareSuccess PrepareOutcome = "success"

	// PrepareNoPermissions means a previous step has not been passed; the
	// request is trying to enter the workflow out of order.
	PrepareNoPermissions PrepareOutcome = "no_permissions"

	// PrepareExpired means the session is missing or expired.
	PrepareExpired PrepareOutcome = "expired"

	// PrepareFailure means the script pre-flight failed or its configuration
	// is broken.
	PrepareFailure PrepareOutcome = "failure"
)

// Redirector performs the navigation the engine decides on. The engine only
// picks the page; rendering and HTTP mechanics belong to the caller.
type Redirector interface {
	Redirect(page string)
}

// ErrorPresenter surfaces a user-facing error message. The engine adds at
// most one message per invocation.
type ErrorPresenter interface {
	PresentError(message string)
}

// LoginHook is notified after a session transitions to authenticated.
type LoginHook func(ctx context.Context, sess *session.Session)

// Credentials are the end-user credentials for one evaluation. They are
// never persisted beyond the request.
type Credentials struct {
	Username string
	Password string
}

// StepRequest carries everything one interactive round trip needs. The
// struct is built per request and discarded with it; the engine itself holds
// no request state.
type StepRequest struct {
	SessionID   string
	Params      url.Values
	Credentials Credentials

	Redirector Redirector
	Presenter  ErrorPresenter
}

// stepContext is the per-invocation mutable state: the resolved ACR, the
// step being executed, and whether an error message was already surfaced.
type stepContext struct {
	acr          string
	step         int
	addedMessage bool
}

func (c *stepContext) presentOnce(p ErrorPresenter, msg string) {
	if c.addedMessage || p == nil {
		return
	}
	c.addedMessage = true
	p.PresentError(msg)
}
