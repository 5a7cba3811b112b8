package picstream

import "context"

// NoopEventSink is an event sink that does nothing.
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-op event sink.
func NewNoopEventSink() *NoopEventSink {
	return &NoopEventSink{}
}

func (s *NoopEventSink) RecordCreated(ctx context.Context, record *Record) error   { return nil }
func (s *NoopEventSink) ImagePublished(ctx context.Context, record *Record) error  { return nil }
func (s *NoopEventSink) ImageRejected(ctx context.Context, record *Record) error   { return nil }
func (s *NoopEventSink) UserConfirmed(ctx context.Context, user *User) error       { return nil }
