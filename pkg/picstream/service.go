package picstream

import (
	"context"
)

// Service defines the content lifecycle and query engine surface.
//
// Owner-scoped operations take the caller's Claims explicitly; the owner of
// every record they create or read comes from those claims, never from
// request input.
type Service interface {
	// Content operations
	CreatePost(ctx context.Context, claims Claims, req CreatePostRequest) (*Record, error)
	CreateUploadIntent(ctx context.Context, claims Claims, req CreateUploadIntentRequest) (*UploadIntent, error)

	// Query engine
	ListOwnedPosts(ctx context.Context, claims Claims, req ListRequest) (*Page, error)
	ListOwnedImages(ctx context.Context, claims Claims, req ListRequest) (*Page, error)
	ListPublicImages(ctx context.Context, req ListRequest) (*Page, error)
	GetImage(ctx context.Context, id string) (*Record, error)

	// User operations (identity provider confirmation callback)
	ConfirmUser(ctx context.Context, req ConfirmUserRequest) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
}
