package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUpstreamUnavailable means the billing API could not be reached at scan start.
	ErrUpstreamUnavailable = errors.New("billing API unavailable")

	// ErrMalformedContext means a clicked message lacks the header or invoice list it was rendered with.
	ErrMalformedContext = errors.New("malformed interaction context")
)

// ItemResult is the outcome of one per-invoice billing call.
type ItemResult struct {
	ID    string
	Step  string
	Error error
}

// ActionOutcome collects per-invoice results for one click so failures are reported once.
// Chat-side steps (admin notifications, ephemeral replies) are kept apart from the invoice counts.
type ActionOutcome struct {
	Action    string
	Succeeded []string
	Failed    []ItemResult
	Chat      []ItemResult
}

func NewActionOutcome(action string) *ActionOutcome {
	return &ActionOutcome{Action: action}
}

func (o *ActionOutcome) Record(id, step string, err error) {
	if err != nil {
		o.Failed = append(o.Failed, ItemResult{ID: id, Step: step, Error: err})
		return
	}
	o.Succeeded = append(o.Succeeded, id)
}

// RecordChat notes a failed chat step addressed to target. Successful steps are not counted.
func (o *ActionOutcome) RecordChat(target, step string, err error) {
	if err != nil {
		o.Chat = append(o.Chat, ItemResult{ID: target, Step: step, Error: err})
	}
}

// Err returns a *PartialFailureError when anything failed, nil otherwise.
func (o *ActionOutcome) Err() error {
	if len(o.Failed) == 0 && len(o.Chat) == 0 {
		return nil
	}
	return &PartialFailureError{
		Action:         o.Action,
		Failed:         o.Failed,
		ChatFailures:   o.Chat,
		SucceededCount: len(o.Succeeded),
	}
}

type PartialFailureError struct {
	Action         string
	Failed         []ItemResult
	ChatFailures   []ItemResult
	SucceededCount int
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failed)+len(e.ChatFailures))
	for _, f := range append(append([]ItemResult{}, e.Failed...), e.ChatFailures...) {
		parts = append(parts, fmt.Sprintf("%s %s: %v", f.Step, f.ID, f.Error))
	}
	sort.Strings(parts)

	return fmt.Sprintf("%s: %d call(s) failed (%s)", e.Action, len(parts), strings.Join(parts, "; "))
}

// InvoiceCount is how many invoices the action touched.
func (e *PartialFailureError) InvoiceCount() int {
	return e.SucceededCount + len(e.FailedIDs())
}

// ChatSteps lists the failed chat steps, e.g. "notify", in the order first seen.
func (e *PartialFailureError) ChatSteps() []string {
	seen := make(map[string]bool, len(e.ChatFailures))
	steps := make([]string, 0, len(e.ChatFailures))
	for _, f := range e.ChatFailures {
		if seen[f.Step] {
			continue
		}
		seen[f.Step] = true
		steps = append(steps, f.Step)
	}
	return steps
}

// FailedIDs lists each failed invoice once, in the order first seen.
func (e *PartialFailureError) FailedIDs() []string {
	seen := make(map[string]bool, len(e.Failed))
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		ids = append(ids, f.ID)
	}
	return ids
}
