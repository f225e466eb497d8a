package storage

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

const (
	enrolledKeyPrefix = "enrolled:"
	cartKeyPrefix     = "cart:"
)

// RedisAdapter keeps per-user enrollment and cart sets. Both are Redis sets,
// so adding an already present course is a no-op.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Enroll(ctx context.Context, userID string, courseIDs []string) (int, error) {
	if len(courseIDs) == 0 {
		return 0, nil
	}

	members := make([]any, 0, len(courseIDs))
	for _, id := range courseIDs {
		members = append(members, id)
	}

	added, err := r.client.SAdd(ctx, enrolledKeyPrefix+userID, members...).Result()
	if err != nil {
		return 0, err
	}
	return int(added), nil
}

func (r *RedisAdapter) EnrolledCourses(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, enrolledKeyPrefix+userID).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *RedisAdapter) AddToCart(ctx context.Context, userID string, courseIDs ...string) error {
	if len(courseIDs) == 0 {
		return nil
	}
	members := make([]any, 0, len(courseIDs))
	for _, id := range courseIDs {
		members = append(members, id)
	}
	return r.client.SAdd(ctx, cartKeyPrefix+userID, members...).Err()
}

func (r *RedisAdapter) CartItems(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, cartKeyPrefix+userID).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *RedisAdapter) ClearCart(ctx context.Context, userID string) error {
	return r.client.Del(ctx, cartKeyPrefix+userID).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
