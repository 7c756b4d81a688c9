// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"strconv"
)

// Ledger provides the step bookkeeping over a single session's attribute map.
// All operations are pure data manipulation; persisting the session afterwards
// is the caller's responsibility.
type Ledger struct {
	s *Session
}

// NewLedger returns a ledger over the given session, initializing its
// attribute map if needed.
func NewLedger(s *Session) *Ledger {
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	return &Ledger{s: s}
}

// CurrentStep returns the session's current workflow step. A missing or
// unparseable auth_step attribute counts as step 1.
func (l *Ledger) CurrentStep() int {
	raw, ok := l.s.Attributes[KeyAuthStep]
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// SetStep records n as the current workflow step.
func (l *Ledger) SetStep(n int) {
	l.s.Attributes[KeyAuthStep] = strconv.Itoa(n)
}

// ACR returns the name of the script governing the workflow, or "" if none.
func (l *Ledger) ACR() string {
	return l.s.Attributes[KeyACR]
}

// SetACR records the governing script name.
func (l *Ledger) SetACR(acr string) {
	l.s.Attributes[KeyACR] = acr
}

// MarkStepPassed records that step n completed successfully.
func (l *Ledger) MarkStepPassed(n int) {
	l.s.Attributes[stepPassedKey(n)] = "true"
}

// StepPassed reports whether step n was marked passed.
func (l *Ledger) StepPassed(n int) bool {
	return l.s.Attributes[stepPassedKey(n)] == "true"
}

// PriorStepsPassed reports whether every step in 1..n-1 was marked passed.
// A gap means the caller is trying to enter a step out of order, e.g. via a
// replayed or forged request.
func (l *Ledger) PriorStepsPassed(n int) bool {
	for i := 1; i < n; i++ {
		if !l.StepPassed(i) {
			return false
		}
	}
	return true
}

// SetExtraParams copies the script-declared extra parameters for a step into
// the session attributes. Only keys present in params are written; reserved
// keys are skipped.
func (l *Ledger) SetExtraParams(keys []string, params map[string]string) {
	for _, k := range keys {
		if k == KeyAuthStep || k == KeyACR {
			continue
		}
		if v, ok := params[k]; ok {
			l.s.Attributes[k] = v
		}
	}
}

// ExtraParam returns the stored value for a script-declared parameter key.
func (l *Ledger) ExtraParam(key string) (string, bool) {
	v, ok := l.s.Attributes[key]
	return v, ok
}

func stepPassedKey(n int) string {
	return fmt.Sprintf("%s%d", stepPassedPrefix, n)
}
