package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavichu/picstream/pkg/picstream"
	analyzermem "github.com/kavichu/picstream/pkg/picstream/analysis/memory"
	"github.com/kavichu/picstream/pkg/picstream/api"
	"github.com/kavichu/picstream/pkg/picstream/broker/signed"
	"github.com/kavichu/picstream/pkg/picstream/store/memory"
)

type apiEnv struct {
	server   *httptest.Server
	auth     *jwtauth.JWTAuth
	images   *memory.Store
	analyzer *analyzermem.Analyzer
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()

	posts := memory.NewStore()
	images := memory.NewStore()
	users := memory.NewUserStore()
	analyzer := analyzermem.New()

	broker, err := signed.New([]byte("test-secret"), signed.WithBaseURL("https://uploads.test"))
	require.NoError(t, err)

	svc, err := picstream.New(
		picstream.WithPostStore(posts),
		picstream.WithImageStore(images),
		picstream.WithUserStore(users),
		picstream.WithUploadBroker(broker),
	)
	require.NoError(t, err)

	pipeline, err := picstream.NewPipeline(images, analyzer)
	require.NoError(t, err)

	auth := jwtauth.New("HS256", []byte("jwt-secret"), nil)
	handler := api.NewHandler(svc, pipeline, auth)

	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	return &apiEnv{server: server, auth: auth, images: images, analyzer: analyzer}
}

func (env *apiEnv) token(t *testing.T, username string) string {
	t.Helper()

	_, tokenString, err := env.auth.Encode(map[string]interface{}{
		"sub":      "sub-" + username,
		"username": username,
		"email":    username + "@example.com",
	})
	require.NoError(t, err)
	return tokenString
}

func (env *apiEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, env.server.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func TestAuthRequired(t *testing.T) {
	env := setupAPI(t)

	paths := []struct {
		method string
		path   string
	}{
		{"POST", "/posts"},
		{"GET", "/posts"},
		{"POST", "/images"},
		{"GET", "/images"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			resp := env.do(t, p.method, p.path, "", nil)
			resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestCreatePostEndpoint(t *testing.T) {
	env := setupAPI(t)
	token := env.token(t, "alice")

	resp := env.do(t, "POST", "/posts", token, map[string]string{"text": "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var record picstream.Record
	decodeBody(t, resp, &record)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "alice", record.Owner)
	assert.Equal(t, "hello", record.Text)
}

func TestCreatePostEndpointValidation(t *testing.T) {
	env := setupAPI(t)
	token := env.token(t, "alice")

	t.Run("missing text", func(t *testing.T) {
		resp := env.do(t, "POST", "/posts", token, map[string]string{})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid json", func(t *testing.T) {
		req, err := http.NewRequest("POST", env.server.URL+"/posts", bytes.NewBufferString("{"))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := env.server.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCreateUploadIntentEndpoint(t *testing.T) {
	env := setupAPI(t)
	token := env.token(t, "alice")

	t.Run("image upload", func(t *testing.T) {
		resp := env.do(t, "POST", "/images", token, map[string]string{
			"filename":     "photo.jpg",
			"content_type": "image/jpeg",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var intent picstream.UploadIntent
		decodeBody(t, resp, &intent)
		assert.NotEmpty(t, intent.ID)
		assert.Equal(t, "uploaded-images/"+intent.ID+".jpg", intent.Key)
		require.NotNil(t, intent.Grant)
		assert.NotEmpty(t, intent.Grant.URL)
	})

	t.Run("non-image content type", func(t *testing.T) {
		resp := env.do(t, "POST", "/images", token, map[string]string{
			"filename":     "doc.pdf",
			"content_type": "application/pdf",
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestListOwnedPostsEndpoint(t *testing.T) {
	env := setupAPI(t)
	alice := env.token(t, "alice")
	bob := env.token(t, "bob")

	for i := 0; i < 3; i++ {
		resp := env.do(t, "POST", "/posts", alice, map[string]string{"text": fmt.Sprintf("post %d", i)})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp := env.do(t, "POST", "/posts", bob, map[string]string{"text": "bob's"})
	resp.Body.Close()

	resp = env.do(t, "GET", "/posts", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page picstream.Page
	decodeBody(t, resp, &page)
	require.Len(t, page.Items, 3)
	for _, item := range page.Items {
		assert.Equal(t, "alice", item.Owner)
	}
}

func TestListPagination(t *testing.T) {
	env := setupAPI(t)
	token := env.token(t, "alice")

	for i := 0; i < 5; i++ {
		resp := env.do(t, "POST", "/posts", token, map[string]string{"text": fmt.Sprintf("post %d", i)})
		resp.Body.Close()
	}

	resp := env.do(t, "GET", "/posts?limit=2&order=asc", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var first picstream.Page
	decodeBody(t, resp, &first)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.Cursor)

	resp = env.do(t, "GET", "/posts?limit=2&order=asc&cursor="+first.Cursor, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var second picstream.Page
	decodeBody(t, resp, &second)
	require.Len(t, second.Items, 2)
	assert.NotEqual(t, first.Items[1].ID, second.Items[0].ID)
	assert.True(t, first.Items[1].ID < second.Items[0].ID)
}

func TestListValidation(t *testing.T) {
	env := setupAPI(t)
	token := env.token(t, "alice")

	tests := []struct {
		name string
		path string
	}{
		{"limit above maximum", fmt.Sprintf("/posts?limit=%d", picstream.MaxPageSize+1)},
		{"non-integer limit", "/posts?limit=abc"},
		{"bad order", "/posts?order=sideways"},
		{"malformed cursor", "/posts?cursor=!!bad!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "GET", tt.path, token, nil)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestPublicImagesEndpoint(t *testing.T) {
	env := setupAPI(t)
	ctx := context.Background()

	require.NoError(t, env.images.Put(ctx, &picstream.Record{
		ID:     "img-pub",
		Kind:   picstream.RecordKindImage,
		Owner:  "alice",
		Status: picstream.ImageStatusPublic,
		URL:    "https://cdn.test/uploaded-images/img-pub.jpg",
	}))
	require.NoError(t, env.images.Put(ctx, &picstream.Record{
		ID:     "img-pending",
		Kind:   picstream.RecordKindImage,
		Owner:  "alice",
		Status: picstream.ImageStatusUnderModeration,
	}))

	// No token: the public listing is open.
	resp := env.do(t, "GET", "/public/images", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page picstream.Page
	decodeBody(t, resp, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "img-pub", page.Items[0].ID)
}

func TestGetImageEndpoint(t *testing.T) {
	env := setupAPI(t)

	require.NoError(t, env.images.Put(context.Background(), &picstream.Record{
		ID:     "img-1",
		Kind:   picstream.RecordKindImage,
		Owner:  "alice",
		Status: picstream.ImageStatusPublic,
	}))

	t.Run("found", func(t *testing.T) {
		resp := env.do(t, "GET", "/images/img-1", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var record picstream.Record
		decodeBody(t, resp, &record)
		assert.Equal(t, "img-1", record.ID)
	})

	t.Run("not found", func(t *testing.T) {
		resp := env.do(t, "GET", "/images/ghost", "", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestConfirmationHook(t *testing.T) {
	env := setupAPI(t)

	body := map[string]string{"sub": "sub-1", "email": "one@example.com"}

	resp := env.do(t, "POST", "/hooks/confirmation", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user picstream.User
	decodeBody(t, resp, &user)
	assert.Equal(t, "sub-1", user.ID)

	// The provider may deliver the callback more than once.
	resp = env.do(t, "POST", "/hooks/confirmation", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var replay picstream.User
	decodeBody(t, resp, &replay)
	assert.Equal(t, user.CreatedAt, replay.CreatedAt)
}

func TestConfirmationHookValidation(t *testing.T) {
	env := setupAPI(t)

	t.Run("missing subject", func(t *testing.T) {
		resp := env.do(t, "POST", "/hooks/confirmation", "", map[string]string{"email": "x@example.com"})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad email", func(t *testing.T) {
		resp := env.do(t, "POST", "/hooks/confirmation", "", map[string]string{"sub": "sub-1", "email": "not-an-email"})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestUploadCompletedHook(t *testing.T) {
	env := setupAPI(t)
	token := env.token(t, "alice")

	resp := env.do(t, "POST", "/images", token, map[string]string{
		"filename":     "photo.jpg",
		"content_type": "image/jpeg",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var intent picstream.UploadIntent
	decodeBody(t, resp, &intent)

	env.analyzer.ScriptLabels(intent.Key, picstream.LabelResult{Labels: []string{"Tree"}})

	resp = env.do(t, "POST", "/hooks/upload-completed", "", map[string]string{"key": intent.Key})
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	record, err := env.images.Get(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, picstream.ImageStatusPublic, record.Status)
	assert.Equal(t, []string{"Tree"}, record.Labels)
}
