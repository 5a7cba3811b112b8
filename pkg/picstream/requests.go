package picstream

// Request/Response DTOs

// CreatePostRequest contains parameters for creating a text post.
type CreatePostRequest struct {
	Text string
}

// CreateUploadIntentRequest contains parameters for registering an image
// upload. Filename contributes only its extension to the object key.
type CreateUploadIntentRequest struct {
	Filename    string
	ContentType string
}

// ListRequest contains pagination parameters for a listing. A zero Limit
// means the default page size; limits above MaxPageSize are rejected.
type ListRequest struct {
	Limit     int
	Cursor    string
	Ascending bool
}

// ConfirmUserRequest carries the identity provider's confirmation callback
// payload.
type ConfirmUserRequest struct {
	Subject string
	Email   string
}
