package picstream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kavichu/picstream/pkg/picstream/objectkey"
)

// Pipeline reacts to upload-completion notifications and drives image
// records through the moderation lifecycle:
//
//	waiting_upload -> under_moderation -> rejected
//	                                   -> awaiting_recognition -> public
//
// Every transition is a conditional write on the record's current status, so
// redelivered notifications re-run analysis but can never regress a record.
// The pipeline performs no retries of its own; a failed analysis leaves the
// status where it was and the delivery layer redelivers.
type Pipeline struct {
	images    RecordStore
	analyzer  Analyzer
	events    EventSink
	publicURL func(objectKey string) string
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineEventSink sets the event sink notified on publish and reject.
func WithPipelineEventSink(sink EventSink) PipelineOption {
	return func(p *Pipeline) { p.events = sink }
}

// WithPublicURLFunc sets the strategy that derives a record's public URL
// from its object key when the record is published.
func WithPublicURLFunc(fn func(objectKey string) string) PipelineOption {
	return func(p *Pipeline) { p.publicURL = fn }
}

// NewPipeline creates a moderation pipeline over the given image store and
// analysis service.
func NewPipeline(images RecordStore, analyzer Analyzer, options ...PipelineOption) (*Pipeline, error) {
	if images == nil {
		return nil, fmt.Errorf("image record store is required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}

	p := &Pipeline{
		images:   images,
		analyzer: analyzer,
	}
	for _, option := range options {
		option(p)
	}
	return p, nil
}

// HandleUploadCompleted processes one completion notification from the
// object store. Notifications for keys outside the upload prefix are
// ignored. Safe to call concurrently and safe to call again with the same
// event.
func (p *Pipeline) HandleUploadCompleted(ctx context.Context, event CompletionEvent) error {
	id, ok := objectkey.Parse(event.Key)
	if !ok {
		slog.Debug("ignoring notification outside upload prefix", "key", event.Key)
		return nil
	}

	record, err := p.images.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load image %s for key %s: %w", id, event.Key, err)
	}

	if record.Status.IsTerminal() {
		// Redelivery against a finished record is a no-op, not an error.
		slog.Info("notification replay on terminal record", "record_id", id, "status", record.Status)
		return nil
	}

	if record.Status == ImageStatusWaitingUpload {
		record, err = p.transition(ctx, record, ImageStatusUnderModeration, nil)
		if err != nil {
			return err
		}
		if record == nil {
			return nil
		}
	}

	if record.Status == ImageStatusUnderModeration {
		record, err = p.moderate(ctx, record)
		if err != nil || record == nil {
			return err
		}
	}

	if record.Status == ImageStatusAwaitingRecognition {
		if _, err := p.recognize(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// moderate runs the moderation analysis and applies its verdict. Returns the
// updated record, or nil when a concurrent transition won.
func (p *Pipeline) moderate(ctx context.Context, record *Record) (*Record, error) {
	result, err := p.analyzer.DetectModeration(ctx, record.ObjectKey)
	if err != nil {
		return nil, &TransitionError{
			RecordID: record.ID,
			From:     ImageStatusUnderModeration,
			To:       ImageStatusAwaitingRecognition,
			Err:      err,
		}
	}

	if result.Flagged {
		rejected, err := p.transition(ctx, record, ImageStatusRejected, nil)
		if err != nil {
			return nil, err
		}
		if rejected != nil {
			p.fire(ctx, "image_rejected", rejected, p.eventImageRejected)
		}
		return nil, nil
	}

	return p.transition(ctx, record, ImageStatusAwaitingRecognition, nil)
}

// recognize runs the label analysis and publishes the record.
func (p *Pipeline) recognize(ctx context.Context, record *Record) (*Record, error) {
	result, err := p.analyzer.DetectLabels(ctx, record.ObjectKey)
	if err != nil {
		return nil, &TransitionError{
			RecordID: record.ID,
			From:     ImageStatusAwaitingRecognition,
			To:       ImageStatusPublic,
			Err:      err,
		}
	}

	published, err := p.transition(ctx, record, ImageStatusPublic, func(r *Record) {
		r.Labels = result.Labels
		r.Width = result.Width
		r.Height = result.Height
		if p.publicURL != nil {
			r.URL = p.publicURL(r.ObjectKey)
		}
	})
	if err != nil {
		return nil, err
	}
	if published != nil {
		p.fire(ctx, "image_published", published, p.eventImagePublished)
	}
	return published, nil
}

// transition applies a conditional status write: the record moves to next
// only if its stored status still equals the status we read. A lost race is
// benign; the winner already carried the machine forward.
func (p *Pipeline) transition(ctx context.Context, record *Record, next ImageStatus, mutate func(*Record)) (*Record, error) {
	if !record.Status.CanTransitionTo(next) {
		return nil, &TransitionError{
			RecordID: record.ID,
			From:     record.Status,
			To:       next,
			Err:      fmt.Errorf("%w: transition not permitted", ErrConflict),
		}
	}

	updated := record.Clone()
	updated.Status = next
	if mutate != nil {
		mutate(updated)
	}

	err := p.images.PutIf(ctx, updated, record.Status)
	if IsConflict(err) {
		slog.Info("lost transition race", "record_id", record.ID, "from", record.Status, "to", next)
		return nil, nil
	}
	if err != nil {
		return nil, &TransitionError{RecordID: record.ID, From: record.Status, To: next, Err: err}
	}

	return updated, nil
}

func (p *Pipeline) eventImagePublished(ctx context.Context, record *Record) error {
	return p.events.ImagePublished(ctx, record)
}

func (p *Pipeline) eventImageRejected(ctx context.Context, record *Record) error {
	return p.events.ImageRejected(ctx, record)
}

func (p *Pipeline) fire(ctx context.Context, name string, record *Record, fn func(context.Context, *Record) error) {
	if p.events == nil {
		return
	}
	if err := fn(ctx, record); err != nil {
		slog.Error("event sink failed", "event", name, "record_id", record.ID, "error", err)
	}
}
