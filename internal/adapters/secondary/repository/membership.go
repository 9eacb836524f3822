package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MembershipIndex lit team_memberships à chaque appel, sans cache.
type MembershipIndex struct {
	db querier
}

func NewMembershipIndex(db *pgxpool.Pool) *MembershipIndex {
	return &MembershipIndex{db: db}
}

func (m *MembershipIndex) HasAccess(ctx context.Context, userID, teamID string) (bool, error) {
	var ok bool
	err := m.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_memberships WHERE user_id = $1 AND team_id = $2)`,
		userID, teamID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("db: has access: %w", err)
	}
	return ok, nil
}
