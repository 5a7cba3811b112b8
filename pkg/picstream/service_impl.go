package picstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kavichu/picstream/pkg/picstream/objectkey"
	"github.com/kavichu/picstream/pkg/picstream/recid"
)

// UploadPolicy bounds what an issued upload grant permits. The reference
// policy mirrors the object store's commit-time conditions: image content
// types only, 1 KiB to 10 MiB, grants valid for ten minutes.
type UploadPolicy struct {
	ContentTypePrefix string
	MinSize           int64
	MaxSize           int64
	TTL               time.Duration
}

// DefaultUploadPolicy returns the reference upload policy.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		ContentTypePrefix: "image/",
		MinSize:           1024,
		MaxSize:           10 << 20,
		TTL:               600 * time.Second,
	}
}

// service implements the Service interface
type service struct {
	posts  RecordStore
	images RecordStore
	users  UserStore
	broker UploadBroker
	events EventSink
	policy UploadPolicy
	now    func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithPostStore sets the record store backing text posts.
func WithPostStore(store RecordStore) Option {
	return func(s *service) { s.posts = store }
}

// WithImageStore sets the record store backing image records.
func WithImageStore(store RecordStore) Option {
	return func(s *service) { s.images = store }
}

// WithUserStore sets the user store.
func WithUserStore(store UserStore) Option {
	return func(s *service) { s.users = store }
}

// WithUploadBroker sets the broker that mints upload grants.
func WithUploadBroker(broker UploadBroker) Option {
	return func(s *service) { s.broker = broker }
}

// WithEventSink sets the event sink for the service.
func WithEventSink(sink EventSink) Option {
	return func(s *service) { s.events = sink }
}

// WithUploadPolicy overrides the reference upload policy.
func WithUploadPolicy(policy UploadPolicy) Option {
	return func(s *service) { s.policy = policy }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// New creates a new service instance with the given options.
func New(options ...Option) (Service, error) {
	s := &service{
		policy: DefaultUploadPolicy(),
		now:    time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.posts == nil || s.images == nil {
		return nil, fmt.Errorf("post and image record stores are required")
	}
	if s.users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if s.broker == nil {
		return nil, fmt.Errorf("upload broker is required")
	}

	return s, nil
}

// Content operations

func (s *service) CreatePost(ctx context.Context, claims Claims, req CreatePostRequest) (*Record, error) {
	if claims.Username == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}

	record := &Record{
		ID:        recid.New(),
		Kind:      RecordKindPost,
		Owner:     claims.Username,
		CreatedAt: s.now().UTC(),
		Text:      req.Text,
	}

	if err := s.posts.Put(ctx, record); err != nil {
		return nil, &RecordError{RecordID: record.ID, Op: "create_post", Err: err}
	}

	s.fireRecordCreated(ctx, record)

	return record, nil
}

func (s *service) CreateUploadIntent(ctx context.Context, claims Claims, req CreateUploadIntentRequest) (*UploadIntent, error) {
	if claims.Username == "" {
		return nil, ErrUnauthorized
	}
	if req.Filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	if !strings.HasPrefix(req.ContentType, s.policy.ContentTypePrefix) {
		return nil, fmt.Errorf("%w: %q is not an image content type", ErrUnsupportedContentType, req.ContentType)
	}

	id := recid.New()
	key := objectkey.ForUpload(id, req.Filename)

	grant, err := s.broker.IssueGrant(ctx, GrantRequest{
		Key:               key,
		ContentType:       req.ContentType,
		ContentTypePrefix: s.policy.ContentTypePrefix,
		MinSize:           s.policy.MinSize,
		MaxSize:           s.policy.MaxSize,
		TTL:               s.policy.TTL,
	})
	if err != nil {
		return nil, &GrantError{Key: key, Err: err}
	}

	record := &Record{
		ID:        id,
		Kind:      RecordKindImage,
		Owner:     claims.Username,
		CreatedAt: s.now().UTC(),
		ObjectKey: key,
		Status:    ImageStatusWaitingUpload,
	}

	if err := s.images.Put(ctx, record); err != nil {
		return nil, &RecordError{RecordID: id, Op: "create_upload_intent", Err: err}
	}

	s.fireRecordCreated(ctx, record)

	return &UploadIntent{ID: id, Key: key, Grant: grant}, nil
}

// Query engine

func (s *service) ListOwnedPosts(ctx context.Context, claims Claims, req ListRequest) (*Page, error) {
	return s.listOwned(ctx, s.posts, claims, req)
}

func (s *service) ListOwnedImages(ctx context.Context, claims Claims, req ListRequest) (*Page, error) {
	return s.listOwned(ctx, s.images, claims, req)
}

func (s *service) listOwned(ctx context.Context, store RecordStore, claims Claims, req ListRequest) (*Page, error) {
	if claims.Username == "" {
		return nil, ErrUnauthorized
	}
	limit, err := clampLimit(req.Limit)
	if err != nil {
		return nil, err
	}

	return store.Query(ctx, QueryRequest{
		Index:     IndexByOwner,
		Partition: claims.Username,
		Limit:     limit,
		Cursor:    req.Cursor,
		Ascending: req.Ascending,
	})
}

func (s *service) ListPublicImages(ctx context.Context, req ListRequest) (*Page, error) {
	limit, err := clampLimit(req.Limit)
	if err != nil {
		return nil, err
	}

	return s.images.Query(ctx, QueryRequest{
		Index:     IndexByStatus,
		Partition: string(ImageStatusPublic),
		Limit:     limit,
		Cursor:    req.Cursor,
		Ascending: req.Ascending,
	})
}

func (s *service) GetImage(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.images.Get(ctx, id)
}

// clampLimit validates the requested page size before any store access.
// Oversized limits are rejected rather than silently truncated.
func clampLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	case limit == 0:
		return MaxPageSize, nil
	case limit > MaxPageSize:
		return 0, fmt.Errorf("%w: requested %d, maximum is %d", ErrLimitExceeded, limit, MaxPageSize)
	default:
		return limit, nil
	}
}

// User operations

func (s *service) ConfirmUser(ctx context.Context, req ConfirmUserRequest) (*User, error) {
	if req.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}

	user := &User{
		ID:        req.Subject,
		Email:     req.Email,
		CreatedAt: s.now().UTC(),
	}

	err := s.users.CreateUser(ctx, user)
	if errors.Is(err, ErrAlreadyExists) {
		// The provider delivers the confirmation at least once; a replay
		// returns the user created the first time.
		return s.users.GetUser(ctx, req.Subject)
	}
	if err != nil {
		return nil, fmt.Errorf("confirm user %s: %w", req.Subject, err)
	}

	if s.events != nil {
		if err := s.events.UserConfirmed(ctx, user); err != nil {
			slog.Error("event sink failed", "event", "user_confirmed", "user_id", user.ID, "error", err)
		}
	}

	return user, nil
}

func (s *service) GetUser(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return s.users.GetUser(ctx, id)
}

func (s *service) fireRecordCreated(ctx context.Context, record *Record) {
	if s.events == nil {
		return
	}
	if err := s.events.RecordCreated(ctx, record); err != nil {
		slog.Error("event sink failed", "event", "record_created", "record_id", record.ID, "error", err)
	}
}
