package picstream

import (
	"time"
)

// RecordKind discriminates the two persisted content kinds.
type RecordKind string

// Record kind constants (typed).
const (
	RecordKindPost  RecordKind = "post"
	RecordKindImage RecordKind = "image"
)

// ImageStatus is the domain type for image lifecycle states.
type ImageStatus string

// Image status constants (typed).
const (
	ImageStatusWaitingUpload       ImageStatus = "waiting_upload"
	ImageStatusUnderModeration     ImageStatus = "under_moderation"
	ImageStatusAwaitingRecognition ImageStatus = "awaiting_recognition"
	ImageStatusPublic              ImageStatus = "public"
	ImageStatusRejected            ImageStatus = "rejected"
)

// IsValid reports whether s is a known lifecycle state.
func (s ImageStatus) IsValid() bool {
	switch s {
	case ImageStatusWaitingUpload, ImageStatusUnderModeration,
		ImageStatusAwaitingRecognition, ImageStatusPublic, ImageStatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s admits no further transitions.
func (s ImageStatus) IsTerminal() bool {
	return s == ImageStatusPublic || s == ImageStatusRejected
}

// CanTransitionTo reports whether the lifecycle permits moving from s to next.
// The machine only moves forward; terminal states admit nothing.
func (s ImageStatus) CanTransitionTo(next ImageStatus) bool {
	switch s {
	case ImageStatusWaitingUpload:
		return next == ImageStatusUnderModeration
	case ImageStatusUnderModeration:
		return next == ImageStatusAwaitingRecognition || next == ImageStatusRejected
	case ImageStatusAwaitingRecognition:
		return next == ImageStatusPublic
	default:
		return false
	}
}

// Record is a persisted content item. Posts carry Text; images carry the
// object location, lifecycle status, and the attributes filled in by the
// moderation pipeline once the upload has been analyzed.
//
// ID, Owner, and CreatedAt are assigned at creation and never change. Owner
// is always taken from the authenticated claims, never from caller input.
type Record struct {
	ID        string     `json:"id"`
	Kind      RecordKind `json:"kind"`
	Owner     string     `json:"owner"`
	CreatedAt time.Time  `json:"created_at"`

	// Post fields
	Text string `json:"text,omitempty"`

	// Image fields
	ObjectKey string      `json:"object_key,omitempty"`
	Status    ImageStatus `json:"status,omitempty"`
	Labels    []string    `json:"labels,omitempty"`
	URL       string      `json:"url,omitempty"`
	Width     int         `json:"width,omitempty"`
	Height    int         `json:"height,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Labels != nil {
		cp.Labels = append([]string(nil), r.Labels...)
	}
	return &cp
}

// User is created exactly once by the identity provider's confirmation
// callback and is read-only afterwards. ID is the provider's stable subject
// claim.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadGrant is a time-limited capability authorizing one direct client
// upload to a specific object location. It is returned to the caller and
// never persisted.
type UploadGrant struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// UploadIntent is the result of registering an image upload: the new record
// plus the grant the client uses to push bytes to the object store.
type UploadIntent struct {
	ID    string       `json:"id"`
	Key   string       `json:"key"`
	Grant *UploadGrant `json:"grant"`
}

// CompletionEvent is the object store's notification that an upload to Key
// finished. Delivery is at least once; consumers must be idempotent.
type CompletionEvent struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

// ModerationResult is the outcome of a moderation analysis pass.
type ModerationResult struct {
	Flagged bool
	Labels  []string
}

// LabelResult is the outcome of a recognition analysis pass. Width and
// Height are zero when the analysis does not report image dimensions.
type LabelResult struct {
	Labels []string
	Width  int
	Height int
}

// Page is one window of an ordered listing. Cursor is an opaque token that
// resumes the listing where this page ended; it is empty on the final page.
type Page struct {
	Items  []*Record `json:"items"`
	Cursor string    `json:"cursor,omitempty"`
}

// Index names understood by RecordStore.Query.
const (
	IndexByOwner  = "byOwner"
	IndexByStatus = "byStatus"
)

// MaxPageSize is the hard cap on listing page sizes. Requests above it are
// rejected, not truncated.
const MaxPageSize = 25
