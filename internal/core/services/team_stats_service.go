package services

import (
	"context"
	"log/slog"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
	"github.com/minsuRob/sportcomm-sub010/internal/core/ports"
)

// TeamStatsService tient les compteurs d'équipe à jour à partir des faits publiés.
type TeamStatsService struct {
	counter ports.TeamCounter
}

func NewTeamStatsService(counter ports.TeamCounter) *TeamStatsService {
	return &TeamStatsService{counter: counter}
}

func (s *TeamStatsService) RecordPostCreated(ctx context.Context, fact domain.PostCreatedFact) error {
	applied, err := s.counter.IncrementPostCount(ctx, fact)
	if err != nil {
		return err
	}
	if !applied {
		// Redelivery (at-least-once) : déjà compté
		slog.DebugContext(ctx, "Duplicate post.created ignored", "post_id", fact.PostID)
		return nil
	}
	slog.DebugContext(ctx, "Team post count incremented", "team_id", fact.TeamID, "post_id", fact.PostID)
	return nil
}
