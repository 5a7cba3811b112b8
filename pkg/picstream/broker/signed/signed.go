// Package signed implements the picstream upload broker with HMAC-signed
// upload URLs for self-hosted deployments that front their own object
// store. The grant binds the object key, expiry, and upload constraints
// into the signature, so the endpoint receiving the upload can verify all
// of them without shared state.
package signed

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kavichu/picstream/pkg/picstream"
)

// Broker mints and validates HMAC-SHA256 upload grants.
type Broker struct {
	secret     []byte
	baseURL    string
	pathPrefix string
	now        func() time.Time
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBaseURL prefixes issued URLs with the given base (e.g.
// "https://api.example.com").
func WithBaseURL(base string) BrokerOption {
	return func(b *Broker) { b.baseURL = strings.TrimSuffix(base, "/") }
}

// WithPathPrefix overrides the upload path prefix (default "/upload/").
func WithPathPrefix(prefix string) BrokerOption {
	return func(b *Broker) { b.pathPrefix = prefix }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) BrokerOption {
	return func(b *Broker) { b.now = now }
}

// New creates a broker signing with the given secret key.
func New(secret []byte, options ...BrokerOption) (*Broker, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret key is required")
	}

	b := &Broker{
		secret:     secret,
		pathPrefix: "/upload/",
		now:        time.Now,
	}
	for _, option := range options {
		option(b)
	}
	return b, nil
}

// IssueGrant produces a signed upload URL for exactly one key. The
// constraints ride in the query string and are covered by the signature.
func (b *Broker) IssueGrant(ctx context.Context, req picstream.GrantRequest) (*picstream.UploadGrant, error) {
	if req.Key == "" {
		return nil, fmt.Errorf("%w: object key is required", picstream.ErrGrantFailed)
	}
	if req.MaxSize > 0 && req.MinSize > req.MaxSize {
		return nil, fmt.Errorf("%w: size range %d-%d is inverted", picstream.ErrGrantFailed, req.MinSize, req.MaxSize)
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	expiresAt := b.now().Add(ttl)

	path := b.pathPrefix + req.Key
	signature := b.sign(http.MethodPut, path, req.ContentTypePrefix, req.MinSize, req.MaxSize, expiresAt.Unix())

	query := url.Values{}
	query.Set("signature", signature)
	query.Set("expires", strconv.FormatInt(expiresAt.Unix(), 10))
	if req.ContentTypePrefix != "" {
		query.Set("ct", req.ContentTypePrefix)
	}
	if req.MaxSize > 0 {
		query.Set("min", strconv.FormatInt(req.MinSize, 10))
		query.Set("max", strconv.FormatInt(req.MaxSize, 10))
	}

	return &picstream.UploadGrant{
		URL: b.baseURL + path + "?" + query.Encode(),
		Fields: map[string]string{
			"Content-Type": req.ContentType,
		},
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

// ValidateRequest checks the signature and expiry of an incoming upload
// request and returns the constraints the upload must satisfy.
func (b *Broker) ValidateRequest(r *http.Request) (*picstream.GrantRequest, error) {
	query := r.URL.Query()

	signature := query.Get("signature")
	if signature == "" {
		return nil, fmt.Errorf("%w: missing signature", picstream.ErrUnauthorized)
	}
	expiresAt, err := strconv.ParseInt(query.Get("expires"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid expiration", picstream.ErrUnauthorized)
	}
	if b.now().Unix() > expiresAt {
		return nil, fmt.Errorf("%w: grant expired", picstream.ErrUnauthorized)
	}

	ctPrefix := query.Get("ct")
	minSize, _ := strconv.ParseInt(query.Get("min"), 10, 64)
	maxSize, _ := strconv.ParseInt(query.Get("max"), 10, 64)

	expected := b.sign(r.Method, r.URL.Path, ctPrefix, minSize, maxSize, expiresAt)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, fmt.Errorf("%w: signature mismatch", picstream.ErrUnauthorized)
	}

	return &picstream.GrantRequest{
		Key:               strings.TrimPrefix(r.URL.Path, b.pathPrefix),
		ContentTypePrefix: ctPrefix,
		MinSize:           minSize,
		MaxSize:           maxSize,
	}, nil
}

func (b *Broker) sign(method, path, ctPrefix string, minSize, maxSize, expiresAt int64) string {
	payload := strings.Join([]string{
		method,
		path,
		ctPrefix,
		strconv.FormatInt(minSize, 10),
		strconv.FormatInt(maxSize, 10),
		strconv.FormatInt(expiresAt, 10),
	}, "\n")

	mac := hmac.New(sha256.New, b.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
