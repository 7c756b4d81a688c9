// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_CurrentStepDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		attrs map[string]string
		want  int
	}{
		{"absent attribute", map[string]string{}, 1},
		{"explicit step", map[string]string{KeyAuthStep: "3"}, 3},
		{"garbage value", map[string]string{KeyAuthStep: "banana"}, 1},
		{"zero value", map[string]string{KeyAuthStep: "0"}, 1},
		{"negative value", map[string]string{KeyAuthStep: "-2"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sess := New(time.Minute)
			sess.Attributes = tt.attrs
			assert.Equal(t, tt.want, NewLedger(sess).CurrentStep())
		})
	}
}

func TestLedger_StepRoundTrip(t *testing.T) {
	t.Parallel()

	sess := New(time.Minute)
	l := NewLedger(sess)

	l.SetStep(2)
	assert.Equal(t, 2, l.CurrentStep())
	assert.Equal(t, "2", sess.Attributes[KeyAuthStep])

	l.SetACR("otp")
	assert.Equal(t, "otp", l.ACR())
}

func TestLedger_PriorStepsPassed(t *testing.T) {
	t.Parallel()

	sess := New(time.Minute)
	l := NewLedger(sess)

	// Step 1 never has prior steps.
	assert.True(t, l.PriorStepsPassed(1))

	// Gap: step 1 not marked yet.
	assert.False(t, l.PriorStepsPassed(2))

	l.MarkStepPassed(1)
	assert.True(t, l.StepPassed(1))
	assert.True(t, l.PriorStepsPassed(2))

	// Marking step 3 does not close the gap at step 2.
	l.MarkStepPassed(3)
	assert.False(t, l.PriorStepsPassed(4))

	l.MarkStepPassed(2)
	assert.True(t, l.PriorStepsPassed(4))
}

func TestLedger_SetExtraParams(t *testing.T) {
	t.Parallel()

	sess := New(time.Minute)
	l := NewLedger(sess)

	l.SetExtraParams(
		[]string{"otp_channel", "missing", KeyAuthStep},
		map[string]string{
			"otp_channel": "sms",
			KeyAuthStep:   "99",
		},
	)

	v, ok := l.ExtraParam("otp_channel")
	require.True(t, ok)
	assert.Equal(t, "sms", v)

	_, ok = l.ExtraParam("missing")
	assert.False(t, ok)

	// Reserved keys cannot be smuggled in through extra parameters.
	assert.Equal(t, 1, l.CurrentStep())
}

func TestSession_Clone(t *testing.T) {
	t.Parallel()

	sess := New(time.Minute)
	sess.Attributes["k"] = "v"

	dup := sess.Clone()
	dup.Attributes["k"] = "changed"
	dup.State = StateAuthenticated

	assert.Equal(t, "v", sess.Attributes["k"])
	assert.Equal(t, StateUnauthenticated, sess.State)
}
