// Package memory provides a scripted analyzer for tests and development.
package memory

import (
	"context"
	"sync"

	"github.com/kavichu/picstream/pkg/picstream"
)

// Analyzer implements picstream.Analyzer from per-key scripted results. Keys
// without a script resolve to a clean, unlabeled result. The zero number of
// calls is observable through Calls, which tests use to assert idempotent
// re-runs.
type Analyzer struct {
	mu         sync.Mutex
	moderation map[string]*picstream.ModerationResult
	labels     map[string]*picstream.LabelResult
	fail       map[string]error
	calls      map[string]int
}

// New creates a new scripted analyzer.
func New() *Analyzer {
	return &Analyzer{
		moderation: make(map[string]*picstream.ModerationResult),
		labels:     make(map[string]*picstream.LabelResult),
		fail:       make(map[string]error),
		calls:      make(map[string]int),
	}
}

// ScriptModeration sets the moderation result for a key.
func (a *Analyzer) ScriptModeration(objectKey string, result picstream.ModerationResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.moderation[objectKey] = &result
}

// ScriptLabels sets the recognition result for a key.
func (a *Analyzer) ScriptLabels(objectKey string, result picstream.LabelResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.labels[objectKey] = &result
}

// ScriptFailure makes every analysis call for a key return err.
func (a *Analyzer) ScriptFailure(objectKey string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail[objectKey] = err
}

// Calls returns how many analysis calls have been made for a key.
func (a *Analyzer) Calls(objectKey string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[objectKey]
}

func (a *Analyzer) DetectModeration(ctx context.Context, objectKey string) (*picstream.ModerationResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls[objectKey]++
	if err := a.fail[objectKey]; err != nil {
		return nil, err
	}
	if result, ok := a.moderation[objectKey]; ok {
		resultCopy := *result
		return &resultCopy, nil
	}
	return &picstream.ModerationResult{}, nil
}

func (a *Analyzer) DetectLabels(ctx context.Context, objectKey string) (*picstream.LabelResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls[objectKey]++
	if err := a.fail[objectKey]; err != nil {
		return nil, err
	}
	if result, ok := a.labels[objectKey]; ok {
		resultCopy := *result
		resultCopy.Labels = append([]string(nil), result.Labels...)
		return &resultCopy, nil
	}
	return &picstream.LabelResult{}, nil
}
