// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

// Package script defines the capability interface an external script host
// must satisfy for ACR-governed authentication workflows. The scripting
// engine itself is out of scope; gatehouse only calls this fixed surface.
package script

import (
	"context"
	"net/url"
)

// UsageType selects which family of scripts applies to an authentication.
type UsageType string

const (
	// UsageInteractive governs browser logins spanning several round trips.
	UsageInteractive UsageType = "interactive"

	// UsageService governs non-interactive, single-shot authentications such
	// as token-endpoint password grants.
	UsageService UsageType = "service"
)

// NoStepOverride is returned by NextStep when the script does not redirect
// the workflow to a different step.
const NoStepOverride = -1

// Configuration is one resolved policy script. Implementations are immutable
// per authentication attempt.
//
// NextStep is version-gated: callers must probe APIVersion and only invoke it
// when the version is greater than 1.
type Configuration interface {
	// Name returns the ACR name this configuration was registered under.
	Name() string

	// APIVersion reports which generation of the capability set the script
	// implements.
	APIVersion() int

	// Authenticate evaluates the credentials carried in params for the given
	// step. A false result with nil error is a plain rejection; an error is a
	// script failure.
	Authenticate(ctx context.Context, params url.Values, step int) (bool, error)

	// NextStep lets the script override the step the workflow moves to.
	// Returns NoStepOverride to accept the default progression.
	NextStep(ctx context.Context, params url.Values, step int) int

	// StepCount returns the total number of steps in this workflow.
	StepCount() int

	// ExtraParametersForStep names the request parameters the engine must
	// persist into the session before the given step runs.
	ExtraParametersForStep(step int) []string

	// PageForStep returns the page to render for the given step, or "" for
	// the engine default.
	PageForStep(step int) string

	// PrepareForStep runs the script's pre-flight for a step, before its page
	// is rendered.
	PrepareForStep(ctx context.Context, params url.Values, step int) (bool, error)
}

// Host resolves script configurations by usage type and ACR name.
type Host interface {
	Resolve(usage UsageType, acr string) (Configuration, bool)
}

// Determiner is implemented by hosts that can re-derive the applicable ACR
// for a session mid-flow, allowing a script to hand the workflow over to a
// different ACR. The empty string means "keep the current one".
type Determiner interface {
	DetermineACR(ctx context.Context, usage UsageType, current string, params url.Values) string
}
