package eventbroker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

const (
	StreamName         = "POSTS"
	SubjectPattern     = "post.>"
	SubjectPostCreated = "post.created"
)

// PostCreatedEvent : contrat JSON avec les consommateurs (compteurs, recherche, notifs).
type PostCreatedEvent struct {
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	TeamID    string    `json:"team_id"`
	Type      string    `json:"type"`
	Title     *string   `json:"title,omitempty"`
	Content   string    `json:"content"`
	MediaIDs  []string  `json:"media_ids"`
	CreatedAt time.Time `json:"created_at"`
}

func EncodePostCreated(fact domain.PostCreatedFact) ([]byte, error) {
	media := fact.MediaIDs
	if media == nil {
		media = []string{}
	}
	data, err := json.Marshal(PostCreatedEvent{
		PostID:    fact.PostID,
		AuthorID:  fact.AuthorID,
		TeamID:    fact.TeamID,
		Type:      string(fact.Type),
		Title:     fact.Title,
		Content:   fact.Content,
		MediaIDs:  media,
		CreatedAt: fact.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling error: %w", err)
	}
	return data, nil
}

func DecodePostCreated(data []byte) (domain.PostCreatedFact, error) {
	var e PostCreatedEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return domain.PostCreatedFact{}, fmt.Errorf("invalid event format: %w", err)
	}
	if e.PostID == "" || e.TeamID == "" {
		return domain.PostCreatedFact{}, fmt.Errorf("invalid event: post_id and team_id are required")
	}
	return domain.PostCreatedFact{
		PostID:    e.PostID,
		AuthorID:  e.AuthorID,
		TeamID:    e.TeamID,
		Type:      domain.PostType(e.Type),
		Title:     e.Title,
		Content:   e.Content,
		MediaIDs:  e.MediaIDs,
		CreatedAt: e.CreatedAt,
	}, nil
}
