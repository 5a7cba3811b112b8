package signed_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavichu/picstream/pkg/picstream"
	"github.com/kavichu/picstream/pkg/picstream/broker/signed"
)

func testGrantRequest() picstream.GrantRequest {
	return picstream.GrantRequest{
		Key:               "uploaded-images/rec-1.jpg",
		ContentType:       "image/jpeg",
		ContentTypePrefix: "image/",
		MinSize:           1024,
		MaxSize:           10 << 20,
		TTL:               10 * time.Minute,
	}
}

func TestNew(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		_, err := signed.New(nil)
		assert.Error(t, err)
	})

	t.Run("with secret", func(t *testing.T) {
		broker, err := signed.New([]byte("secret"))
		assert.NoError(t, err)
		assert.NotNil(t, broker)
	})
}

func TestIssueGrant(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	broker, err := signed.New([]byte("secret"),
		signed.WithBaseURL("https://api.example.com"),
		signed.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	grant, err := broker.IssueGrant(context.Background(), testGrantRequest())
	require.NoError(t, err)

	assert.Contains(t, grant.URL, "https://api.example.com/upload/uploaded-images/rec-1.jpg?")
	assert.Contains(t, grant.URL, "signature=")
	assert.Equal(t, "image/jpeg", grant.Fields["Content-Type"])
	assert.Equal(t, now.Add(10*time.Minute), grant.ExpiresAt)
}

func TestIssueGrantValidation(t *testing.T) {
	broker, err := signed.New([]byte("secret"))
	require.NoError(t, err)

	t.Run("missing key", func(t *testing.T) {
		req := testGrantRequest()
		req.Key = ""
		_, err := broker.IssueGrant(context.Background(), req)
		assert.ErrorIs(t, err, picstream.ErrGrantFailed)
	})

	t.Run("inverted size range", func(t *testing.T) {
		req := testGrantRequest()
		req.MinSize, req.MaxSize = 100, 10
		_, err := broker.IssueGrant(context.Background(), req)
		assert.ErrorIs(t, err, picstream.ErrGrantFailed)
	})
}

func TestValidateRequestRoundTrip(t *testing.T) {
	broker, err := signed.New([]byte("secret"))
	require.NoError(t, err)

	grant, err := broker.IssueGrant(context.Background(), testGrantRequest())
	require.NoError(t, err)

	r := httptest.NewRequest("PUT", grant.URL, nil)
	constraints, err := broker.ValidateRequest(r)
	require.NoError(t, err)

	assert.Equal(t, "uploaded-images/rec-1.jpg", constraints.Key)
	assert.Equal(t, "image/", constraints.ContentTypePrefix)
	assert.Equal(t, int64(1024), constraints.MinSize)
	assert.Equal(t, int64(10<<20), constraints.MaxSize)
}

func TestValidateRequestRejections(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	broker, err := signed.New([]byte("secret"),
		signed.WithClock(func() time.Time { return *clock }),
	)
	require.NoError(t, err)

	grant, err := broker.IssueGrant(context.Background(), testGrantRequest())
	require.NoError(t, err)

	t.Run("missing signature", func(t *testing.T) {
		r := httptest.NewRequest("PUT", "/upload/uploaded-images/rec-1.jpg", nil)
		_, err := broker.ValidateRequest(r)
		assert.ErrorIs(t, err, picstream.ErrUnauthorized)
	})

	t.Run("tampered path", func(t *testing.T) {
		r := httptest.NewRequest("PUT", grant.URL, nil)
		r.URL.Path = "/upload/uploaded-images/other.jpg"
		_, err := broker.ValidateRequest(r)
		assert.ErrorIs(t, err, picstream.ErrUnauthorized)
	})

	t.Run("wrong method", func(t *testing.T) {
		r := httptest.NewRequest("POST", grant.URL, nil)
		_, err := broker.ValidateRequest(r)
		assert.ErrorIs(t, err, picstream.ErrUnauthorized)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := signed.New([]byte("other-secret"))
		require.NoError(t, err)
		r := httptest.NewRequest("PUT", grant.URL, nil)
		_, err = other.ValidateRequest(r)
		assert.ErrorIs(t, err, picstream.ErrUnauthorized)
	})

	t.Run("expired grant", func(t *testing.T) {
		later := now.Add(11 * time.Minute)
		clock = &later
		defer func() { clock = &now }()

		r := httptest.NewRequest("PUT", grant.URL, nil)
		_, err := broker.ValidateRequest(r)
		assert.ErrorIs(t, err, picstream.ErrUnauthorized)
	})
}
