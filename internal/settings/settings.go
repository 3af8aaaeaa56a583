// Package settings persists the user's preferences record and broadcasts
// changes to observers.
package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpungsan/objective/internal/activity"
	"github.com/hpungsan/objective/internal/errors"
)

// Providers.
const (
	ProviderCloud = "cloud"
	ProviderLocal = "local"
)

// Judgement trigger policies.
const (
	PolicyPageLoad = "pageLoad"
	PolicyInterval = "interval"
	PolicyManual   = "manual"
)

// Debate behaviours.
const (
	DebateOneRound   = "oneRound"
	DebateMultiRound = "multiRound"
)

// Keys as they appear in settings.json and in change events.
const (
	KeyPrinciples          = "principles"
	KeyCurrentTask         = "currentTask"
	KeyProvider            = "provider"
	KeyLocalModel          = "localModel"
	KeyJudgementPolicy     = "judgementPolicy"
	KeyJudgementIntervalMs = "judgementIntervalMs"
	KeyDebateBehaviour     = "debateBehaviour"
	KeyDisableOnLoad       = "disableOnLoad"
	KeyPauseState          = "pauseState"
)

// MinJudgementIntervalMs is the shortest accepted interval period.
const MinJudgementIntervalMs = 1000

// Settings is the flat preferences record.
type Settings struct {
	Principles          string     `json:"principles"`
	CurrentTask         string     `json:"currentTask"`
	Provider            string     `json:"provider"`
	LocalModel          string     `json:"localModel"`
	JudgementPolicy     string     `json:"judgementPolicy"`
	JudgementIntervalMs int        `json:"judgementIntervalMs"`
	DebateBehaviour     string     `json:"debateBehaviour"`
	DisableOnLoad       bool       `json:"disableOnLoad"`
	PauseState          PauseState `json:"pauseState"`
}

// Defaults returns the record used when nothing has been stored.
func Defaults() Settings {
	return Settings{
		Provider:            ProviderCloud,
		JudgementPolicy:     PolicyPageLoad,
		JudgementIntervalMs: 240000,
		DebateBehaviour:     DebateOneRound,
	}
}

// JudgementInterval returns JudgementIntervalMs as a duration.
func (s Settings) JudgementInterval() time.Duration {
	return time.Duration(s.JudgementIntervalMs) * time.Millisecond
}

// PauseState is either unset (serialized as false) or the instant judgements
// resume.
type PauseState struct {
	Until time.Time
}

// PausedUntil returns a pause ending at t.
func PausedUntil(t time.Time) PauseState {
	return PauseState{Until: t.UTC()}
}

// IsSet reports whether a pause timestamp is stored, expired or not.
func (p PauseState) IsSet() bool {
	return !p.Until.IsZero()
}

// Active reports whether now is before the pause end.
func (p PauseState) Active(now time.Time) bool {
	return p.IsSet() && now.Before(p.Until)
}

// Equal compares two pause states by instant.
func (p PauseState) Equal(o PauseState) bool {
	return p.Until.Equal(o.Until)
}

// MarshalJSON encodes an unset pause as false and a set one as a timestamp.
func (p PauseState) MarshalJSON() ([]byte, error) {
	if !p.IsSet() {
		return []byte("false"), nil
	}
	return json.Marshal(activity.FormatTime(p.Until))
}

// UnmarshalJSON accepts false, null or a timestamp string.
func (p *PauseState) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "false", "null", "true", `""`:
		*p = PauseState{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("pauseState must be false or a timestamp: %w", err)
	}
	t, err := activity.ParseTime(s)
	if err != nil {
		return fmt.Errorf("pauseState must be false or a timestamp: %w", err)
	}
	*p = PauseState{Until: t}
	return nil
}

// String renders the pause the way it is stored.
func (p PauseState) String() string {
	if !p.IsSet() {
		return "false"
	}
	return activity.FormatTime(p.Until)
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Principles          *string     `json:"principles,omitempty"`
	CurrentTask         *string     `json:"currentTask,omitempty"`
	Provider            *string     `json:"provider,omitempty"`
	LocalModel          *string     `json:"localModel,omitempty"`
	JudgementPolicy     *string     `json:"judgementPolicy,omitempty"`
	JudgementIntervalMs *int        `json:"judgementIntervalMs,omitempty"`
	DebateBehaviour     *string     `json:"debateBehaviour,omitempty"`
	DisableOnLoad       *bool       `json:"disableOnLoad,omitempty"`
	PauseState          *PauseState `json:"pauseState,omitempty"`
}

// Validate checks enumerated fields and the interval bound.
func (p Patch) Validate() error {
	if p.Provider != nil && *p.Provider != ProviderCloud && *p.Provider != ProviderLocal {
		return errors.NewValidation(fmt.Sprintf("provider must be %q or %q", ProviderCloud, ProviderLocal))
	}
	if p.JudgementPolicy != nil {
		switch *p.JudgementPolicy {
		case PolicyPageLoad, PolicyInterval, PolicyManual:
		default:
			return errors.NewValidation(fmt.Sprintf("judgementPolicy must be one of %q, %q, %q", PolicyPageLoad, PolicyInterval, PolicyManual))
		}
	}
	if p.JudgementIntervalMs != nil && *p.JudgementIntervalMs < MinJudgementIntervalMs {
		return errors.NewValidation(fmt.Sprintf("judgementIntervalMs must be at least %d", MinJudgementIntervalMs))
	}
	if p.DebateBehaviour != nil && *p.DebateBehaviour != DebateOneRound && *p.DebateBehaviour != DebateMultiRound {
		return errors.NewValidation(fmt.Sprintf("debateBehaviour must be %q or %q", DebateOneRound, DebateMultiRound))
	}
	return nil
}

// Apply returns s with every non-nil field of p copied over.
func (p Patch) Apply(s Settings) Settings {
	if p.Principles != nil {
		s.Principles = *p.Principles
	}
	if p.CurrentTask != nil {
		s.CurrentTask = *p.CurrentTask
	}
	if p.Provider != nil {
		s.Provider = *p.Provider
	}
	if p.LocalModel != nil {
		s.LocalModel = *p.LocalModel
	}
	if p.JudgementPolicy != nil {
		s.JudgementPolicy = *p.JudgementPolicy
	}
	if p.JudgementIntervalMs != nil {
		s.JudgementIntervalMs = *p.JudgementIntervalMs
	}
	if p.DebateBehaviour != nil {
		s.DebateBehaviour = *p.DebateBehaviour
	}
	if p.DisableOnLoad != nil {
		s.DisableOnLoad = *p.DisableOnLoad
	}
	if p.PauseState != nil {
		s.PauseState = *p.PauseState
	}
	return s
}

// Change describes one modified key.
type Change struct {
	Key string
	Old any
	New any
}

var fields = []struct {
	key string
	get func(Settings) any
}{
	{KeyPrinciples, func(s Settings) any { return s.Principles }},
	{KeyCurrentTask, func(s Settings) any { return s.CurrentTask }},
	{KeyProvider, func(s Settings) any { return s.Provider }},
	{KeyLocalModel, func(s Settings) any { return s.LocalModel }},
	{KeyJudgementPolicy, func(s Settings) any { return s.JudgementPolicy }},
	{KeyJudgementIntervalMs, func(s Settings) any { return s.JudgementIntervalMs }},
	{KeyDebateBehaviour, func(s Settings) any { return s.DebateBehaviour }},
	{KeyDisableOnLoad, func(s Settings) any { return s.DisableOnLoad }},
	{KeyPauseState, func(s Settings) any { return s.PauseState }},
}

// Diff lists the keys whose values differ between before and after.
func Diff(before, after Settings) []Change {
	var changes []Change
	for _, f := range fields {
		o, n := f.get(before), f.get(after)
		if equal(o, n) {
			continue
		}
		changes = append(changes, Change{Key: f.key, Old: o, New: n})
	}
	return changes
}

func equal(a, b any) bool {
	if pa, ok := a.(PauseState); ok {
		return pa.Equal(b.(PauseState))
	}
	return a == b
}
