package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minsuRob/sportcomm-sub010/internal/core/domain"
)

// Le marqueur et l'incrément sont appliqués atomiquement côté Redis :
// une redelivery du même post ne compte jamais deux fois.
var incrementOnce = redis.NewScript(`
if redis.call("SET", KEYS[1], "1", "NX", "EX", ARGV[1]) then
	redis.call("HINCRBY", KEYS[2], "posts", 1)
	return 1
end
return 0
`)

type RedisTeamCounter struct {
	client    *redis.Client
	markerTTL time.Duration // fenêtre de déduplication
}

func NewRedisTeamCounter(client *redis.Client) *RedisTeamCounter {
	return &RedisTeamCounter{
		client:    client,
		markerTTL: 7 * 24 * time.Hour,
	}
}

func (r *RedisTeamCounter) IncrementPostCount(ctx context.Context, fact domain.PostCreatedFact) (bool, error) {
	marker := fmt.Sprintf("post:counted:%s", fact.PostID)
	stats := fmt.Sprintf("team:%s:stats", fact.TeamID)

	applied, err := incrementOnce.Run(ctx, r.client,
		[]string{marker, stats}, int(r.markerTTL.Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis: increment post count: %w", err)
	}
	return applied == 1, nil
}

// PostCount lit le compteur d'une équipe.
func (r *RedisTeamCounter) PostCount(ctx context.Context, teamID string) (int64, error) {
	n, err := r.client.HGet(ctx, fmt.Sprintf("team:%s:stats", teamID), "posts").Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
