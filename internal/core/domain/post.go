package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PostType string

const (
	PostTypeGeneral     PostType = "GENERAL"
	PostTypeAnalysis    PostType = "ANALYSIS"
	PostTypeHighlight   PostType = "HIGHLIGHT"
	PostTypeMatchReport PostType = "MATCH_REPORT"
	PostTypeQuestion    PostType = "QUESTION"
	PostTypeNews        PostType = "NEWS"
)

var postTypes = map[PostType]struct{}{
	PostTypeGeneral:     {},
	PostTypeAnalysis:    {},
	PostTypeHighlight:   {},
	PostTypeMatchReport: {},
	PostTypeQuestion:    {},
	PostTypeNews:        {},
}

// ParsePostType accepte n'importe quelle casse et renvoie la forme canonique.
func ParsePostType(raw string) (PostType, error) {
	t := PostType(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := postTypes[t]; !ok {
		return "", NewValidationError("type", "unknown post type "+raw)
	}
	return t, nil
}

type Counters struct {
	LikeCount    int
	CommentCount int
	ViewCount    int
}

type Post struct {
	ID        string
	Title     *string // nil = pas de titre
	Content   string
	Type      PostType
	TeamID    string
	AuthorID  string
	MediaIDs  []string // ordre de la requête conservé
	Counters  Counters
	CreatedAt time.Time
	UpdatedAt time.Time
}

// --- FACTORY ---

// NewPost construit un agrégat valide, prêt à être persisté.
// Les compteurs partent à zéro et ne sont jamais modifiés ici.
func NewPost(title, content, postType, teamID, authorID string, mediaIDs []string) (*Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, NewValidationError("content", "content is required")
	}
	if strings.TrimSpace(teamID) == "" {
		return nil, NewValidationError("team_id", "team id is required")
	}
	if strings.TrimSpace(authorID) == "" {
		return nil, NewValidationError("author_id", "author id is required")
	}

	t, err := ParsePostType(postType)
	if err != nil {
		return nil, err
	}

	media, err := normalizeMediaIDs(mediaIDs)
	if err != nil {
		return nil, err
	}

	var titlePtr *string
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		titlePtr = &trimmed
	}

	now := time.Now().UTC()
	return &Post{
		ID:        uuid.NewString(),
		Title:     titlePtr,
		Content:   content,
		Type:      t,
		TeamID:    teamID,
		AuthorID:  authorID,
		MediaIDs:  media,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasMedia indique si le post référence au moins un média.
func (p *Post) HasMedia() bool {
	return len(p.MediaIDs) > 0
}

// normalizeMediaIDs refuse les doublons et les identifiants vides.
func normalizeMediaIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, NewValidationError("media_ids", "media id cannot be empty")
		}
		if _, dup := seen[id]; dup {
			return nil, NewValidationError("media_ids", "duplicate media id "+id)
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
