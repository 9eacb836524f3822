package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
	"github.com/minsuRob/sportcomm-sub010/internal/core/ports"
)

const maxBodyBytes = 64 << 10

type Server struct {
	service   ports.PostService
	validator TokenValidator
	origins   []string
}

func NewServer(service ports.PostService, validator TokenValidator, allowedOrigins []string) *Server {
	return &Server{service: service, validator: validator, origins: allowedOrigins}
}

// Handler construit la chaîne : OTEL -> CORS -> router (auth sur /v1).
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/v1", func(r chi.Router) {
		r.Use(Authenticate(s.validator))
		r.Post("/teams/{teamID}/posts", s.CreatePost)
		r.Get("/posts/{postID}", s.GetPost)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "baggage", "traceparent"},
		AllowCredentials: true,
	})

	return otelhttp.NewHandler(c.Handler(r), "post-service", otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))
}

// --- COMMANDS (Write) ---

type createPostRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Type     string   `json:"type"`
	MediaIDs []string `json:"mediaIds"`
}

func (s *Server) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body", nil)
		return
	}

	post, err := s.service.CreatePost(r.Context(), ports.CreatePostCmd{
		Title:    req.Title,
		Content:  req.Content,
		Type:     req.Type,
		TeamID:   chi.URLParam(r, "teamID"),
		AuthorID: ForContext(r.Context()),
		MediaIDs: req.MediaIDs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/posts/"+post.ID)
	writeJSON(w, http.StatusCreated, mapDomainToResponse(post))
}

// --- QUERIES (Read) ---

func (s *Server) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.service.GetPost(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapDomainToResponse(post))
}

// --- HELPERS (Mappers) ---

type countersResponse struct {
	LikeCount    int `json:"likeCount"`
	CommentCount int `json:"commentCount"`
	ViewCount    int `json:"viewCount"`
}

type postResponse struct {
	ID        string           `json:"id"`
	Title     *string          `json:"title,omitempty"`
	Content   string           `json:"content"`
	Type      string           `json:"type"`
	TeamID    string           `json:"teamId"`
	AuthorID  string           `json:"authorId"`
	MediaIDs  []string         `json:"mediaIds"`
	Counters  countersResponse `json:"counters"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func mapDomainToResponse(p *domain.Post) postResponse {
	media := p.MediaIDs
	if media == nil {
		media = []string{}
	}
	return postResponse{
		ID:       p.ID,
		Title:    p.Title,
		Content:  p.Content,
		Type:     string(p.Type),
		TeamID:   p.TeamID,
		AuthorID: p.AuthorID,
		MediaIDs: media,
		Counters: countersResponse{
			LikeCount:    p.Counters.LikeCount,
			CommentCount: p.Counters.CommentCount,
			ViewCount:    p.Counters.ViewCount,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
