package domain

// Media : seule la relation d'attachement nous intéresse ici.
type Media struct {
	ID     string
	PostID *string // nil = non rattaché
}

func (m Media) IsAttached() bool {
	return m.PostID != nil
}

// Membership autorise un user à publier dans une équipe.
type Membership struct {
	UserID   string
	TeamID   string
	Priority int
}

// Author est l'auteur résolu avec ses équipes.
type Author struct {
	ID      string
	TeamIDs []string
}

func (a *Author) IsMemberOf(teamID string) bool {
	for _, id := range a.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}
