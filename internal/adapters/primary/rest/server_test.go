package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
	"github.com/minsuRob/sportcomm-sub010/internal/core/ports"
)

// MockPostService is a mock implementation of ports.PostService
type MockPostService struct {
	mock.Mock
}

func (m *MockPostService) CreatePost(ctx context.Context, cmd ports.CreatePostCmd) (*domain.Post, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Post), args.Error(1)
}

func (m *MockPostService) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Post), args.Error(1)
}

// staticValidator accepte "good-token" pour u1.
type staticValidator struct{}

func (staticValidator) Validate(token string) (string, error) {
	if token == "good-token" {
		return "u1", nil
	}
	return "", errors.New("bad token")
}

func samplePost() *domain.Post {
	title := "Derby"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Post{
		ID:        "p1",
		Title:     &title,
		Content:   "What a game",
		Type:      domain.PostTypeGeneral,
		TeamID:    "t1",
		AuthorID:  "u1",
		MediaIDs:  []string{"m1", "m2"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func doRequest(t *testing.T, svc ports.PostService, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	NewServer(svc, staticValidator{}, []string{"http://localhost:3000"}).Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreatePost_Created(t *testing.T) {
	svc := new(MockPostService)
	svc.On("CreatePost", mock.Anything, ports.CreatePostCmd{
		Title:    "Derby",
		Content:  "What a game",
		Type:     "GENERAL",
		TeamID:   "t1",
		AuthorID: "u1",
		MediaIDs: []string{"m1", "m2"},
	}).Return(samplePost(), nil)

	rec := doRequest(t, svc, http.MethodPost, "/v1/teams/t1/posts", "good-token",
		`{"title":"Derby","content":"What a game","type":"GENERAL","mediaIds":["m1","m2"]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/posts/p1", rec.Header().Get("Location"))

	var resp postResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "p1", resp.ID)
	assert.Equal(t, []string{"m1", "m2"}, resp.MediaIDs)
	assert.Equal(t, 0, resp.Counters.LikeCount)
	svc.AssertExpectations(t)
}

func TestCreatePost_AuthorComesFromToken(t *testing.T) {
	svc := new(MockPostService)
	svc.On("CreatePost", mock.Anything, mock.MatchedBy(func(c ports.CreatePostCmd) bool {
		return c.AuthorID == "u1"
	})).Return(samplePost(), nil)

	// authorId dans le body est refusé (champ inconnu)
	rec := doRequest(t, svc, http.MethodPost, "/v1/teams/t1/posts", "good-token",
		`{"content":"x","type":"GENERAL","authorId":"u2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything)

	rec = doRequest(t, svc, http.MethodPost, "/v1/teams/t1/posts", "good-token",
		`{"content":"x","type":"GENERAL"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestCreatePost_Unauthenticated(t *testing.T) {
	svc := new(MockPostService)

	rec := doRequest(t, svc, http.MethodPost, "/v1/teams/t1/posts", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, svc, http.MethodPost, "/v1/teams/t1/posts", "forged", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything)
}

func TestCreatePost_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"author not found", domain.ErrAuthorNotFound, http.StatusNotFound, "author_not_found"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{"invalid input", domain.NewValidationError("content", "content is required"), http.StatusBadRequest, "invalid_input"},
		{"media not found", &domain.MediaNotFoundError{IDs: []string{"m9"}}, http.StatusUnprocessableEntity, "media_not_found"},
		{"media used", &domain.MediaAlreadyUsedError{IDs: []string{"m2"}}, http.StatusConflict, "media_already_used"},
		{"persistence", domain.NewPersistenceError("commit", errors.New("timeout")), http.StatusServiceUnavailable, "persistence_failure"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPostService)
			svc.On("CreatePost", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := doRequest(t, svc, http.MethodPost, "/v1/teams/t1/posts", "good-token",
				`{"content":"x","type":"GENERAL","mediaIds":["m1","m2"]}`)
			assert.Equal(t, tt.status, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error)
		})
	}
}

func TestCreatePost_ErrorDetails(t *testing.T) {
	svc := new(MockPostService)
	svc.On("CreatePost", mock.Anything, mock.Anything).
		Return(nil, &domain.MediaAlreadyUsedError{IDs: []string{"m2"}}).Once()
	svc.On("CreatePost", mock.Anything, mock.Anything).
		Return(nil, domain.NewValidationError("type", "unknown post type RUMOR")).Once()
	svc.On("CreatePost", mock.Anything, mock.Anything).
		Return(nil, domain.NewPersistenceError("commit", errors.New("timeout"))).Once()

	body := `{"content":"x","type":"GENERAL"}`

	rec := doRequest(t, svc, http.MethodPost, "/v1/teams/t1/posts", "good-token", body)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"m2"}, resp.MediaIDs)

	rec = doRequest(t, svc, http.MethodPost, "/v1/teams/t1/posts", "good-token", body)
	resp = errorResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "type", resp.Field)

	rec = doRequest(t, svc, http.MethodPost, "/v1/teams/t1/posts", "good-token", body)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestCreatePost_MalformedBody(t *testing.T) {
	svc := new(MockPostService)

	rec := doRequest(t, svc, http.MethodPost, "/v1/teams/t1/posts", "good-token", `{"content":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything)
}

func TestGetPost(t *testing.T) {
	svc := new(MockPostService)
	svc.On("GetPost", mock.Anything, "p1").Return(samplePost(), nil)
	svc.On("GetPost", mock.Anything, "nope").Return(nil, domain.ErrPostNotFound)

	rec := doRequest(t, svc, http.MethodGet, "/v1/posts/p1", "good-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp postResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Title)
	assert.Equal(t, "Derby", *resp.Title)

	rec = doRequest(t, svc, http.MethodGet, "/v1/posts/nope", "good-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, new(MockPostService), http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
