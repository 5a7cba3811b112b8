package picstream

import (
	"context"
	"time"
)

// RecordStore defines the interface for durable record persistence.
//
// Put is an upsert keyed by record ID; the primary entry and the secondary
// owner-index entry are maintained as a single logical write, so no reader
// ever observes one without the other. PutIf applies the write only when the
// stored record's status equals expect, returning ErrConflict otherwise; the
// moderation transitions rely on this to keep the lifecycle monotonic under
// redelivered notifications.
type RecordStore interface {
	Put(ctx context.Context, record *Record) error
	PutIf(ctx context.Context, record *Record, expect ImageStatus) error
	Get(ctx context.Context, id string) (*Record, error)
	Query(ctx context.Context, req QueryRequest) (*Page, error)
}

// UserStore persists User records. CreateUser is create-only: confirming an
// already-confirmed subject returns ErrAlreadyExists.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
}

// UploadBroker mints time-boxed, constraint-bound upload grants. It keeps no
// state and never moves bytes; the object store enforces the constraints at
// commit time.
type UploadBroker interface {
	IssueGrant(ctx context.Context, req GrantRequest) (*UploadGrant, error)
}

// Analyzer is the external analysis service invoked on uploaded objects.
// Unavailability surfaces as ErrAnalysisUnavailable and leaves record state
// untouched; the delivery layer owns retries.
type Analyzer interface {
	// DetectModeration screens the object for disallowed content.
	DetectModeration(ctx context.Context, objectKey string) (*ModerationResult, error)

	// DetectLabels extracts descriptive labels from the object.
	DetectLabels(ctx context.Context, objectKey string) (*LabelResult, error)
}

// EventSink receives lifecycle notifications. Sink errors are logged and
// never fail the originating operation.
type EventSink interface {
	RecordCreated(ctx context.Context, record *Record) error
	ImagePublished(ctx context.Context, record *Record) error
	ImageRejected(ctx context.Context, record *Record) error
	UserConfirmed(ctx context.Context, user *User) error
}

// GrantRequest describes the constraints an upload grant must carry.
type GrantRequest struct {
	Key               string
	ContentType       string
	ContentTypePrefix string
	MinSize           int64
	MaxSize           int64
	TTL               time.Duration
}

// QueryRequest describes one page of an ordered range query against a
// secondary index.
type QueryRequest struct {
	Index     string
	Partition string
	Limit     int
	Cursor    string
	Ascending bool
}
