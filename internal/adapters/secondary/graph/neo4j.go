package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

// Neo4jMembershipIndex : (:User)-[:MEMBER_OF {priority}]->(:Team).
type Neo4jMembershipIndex struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jMembershipIndex(driver neo4j.DriverWithContext) *Neo4jMembershipIndex {
	return &Neo4jMembershipIndex{driver: driver}
}

// EnsureSchema crée les contraintes d'unicité (Idempotent)
func (r *Neo4jMembershipIndex) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, q := range []string{
			`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
			`CREATE CONSTRAINT team_id_unique IF NOT EXISTS FOR (t:Team) REQUIRE t.id IS UNIQUE`,
		} {
			if _, err := tx.Run(ctx, q, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// AddMembership est idempotent (MERGE).
func (r *Neo4jMembershipIndex) AddMembership(ctx context.Context, m domain.Membership) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (u:User {id: $userId})
			MERGE (t:Team {id: $teamId})
			MERGE (u)-[r:MEMBER_OF]->(t)
			SET r.priority = $priority
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"userId":   m.UserID,
			"teamId":   m.TeamID,
			"priority": m.Priority,
		})
		return nil, err
	})
	return err
}

func (r *Neo4jMembershipIndex) HasAccess(ctx context.Context, userID, teamID string) (bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			OPTIONAL MATCH (u:User {id: $userId})-[r:MEMBER_OF]->(t:Team {id: $teamId})
			RETURN r IS NOT NULL AS member
		`
		res, err := tx.Run(ctx, query, map[string]any{"userId": userID, "teamId": teamID})
		if err != nil {
			return false, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return false, err
		}
		member, _ := rec.Get("member")
		ok, _ := member.(bool)
		return ok, nil
	})
	if err != nil {
		return false, fmt.Errorf("neo4j: has access: %w", err)
	}
	return result.(bool), nil
}
