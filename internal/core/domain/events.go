package domain

import "time"

// PostCreatedFact est le fait publié après commit.
// Il se reconstruit entièrement à partir du post persisté (redelivery).
type PostCreatedFact struct {
	PostID    string
	AuthorID  string
	TeamID    string
	Type      PostType
	Title     *string
	Content   string
	MediaIDs  []string
	CreatedAt time.Time
}

func NewPostCreatedFact(p *Post) PostCreatedFact {
	media := make([]string, len(p.MediaIDs))
	copy(media, p.MediaIDs)

	var title *string
	if p.Title != nil {
		t := *p.Title
		title = &t
	}

	return PostCreatedFact{
		PostID:    p.ID,
		AuthorID:  p.AuthorID,
		TeamID:    p.TeamID,
		Type:      p.Type,
		Title:     title,
		Content:   p.Content,
		MediaIDs:  media,
		CreatedAt: p.CreatedAt,
	}
}

// CreationState suit une requête CreatePost (logs + traces).
type CreationState string

const (
	StateValidating    CreationState = "validating"
	StateAuthorizing   CreationState = "authorizing"
	StateClaimingMedia CreationState = "claiming_media"
	StatePersisting    CreationState = "persisting"
	StateCommitted     CreationState = "committed"
	StatePublishing    CreationState = "publishing"
	StateDone          CreationState = "done"
	StateFailed        CreationState = "failed"
)
