package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"alumnus/internal/session/models"
	"alumnus/pkg/platform/sentinel"
)

const refreshTokenKeyPrefix = "session:refresh:"

// Redis stores refresh sessions as JSON values that expire with the token.
// Consume uses GETDEL so a token can be redeemed at most once across
// instances.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Save(ctx context.Context, session *models.RefreshSession, ttl time.Duration) error {
	if err := checkSave(session, ttl); err != nil {
		return err
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode refresh session: %w", err)
	}
	stored, err := s.client.SetNX(ctx, refreshTokenKeyPrefix+session.Token, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store refresh session: %w", err)
	}
	if !stored {
		return fmt.Errorf("refresh token already stored: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *Redis) Consume(ctx context.Context, token string) (*models.RefreshSession, error) {
	raw, err := s.client.GetDel(ctx, refreshTokenKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("consume refresh session: %w", err)
	}
	var session models.RefreshSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode refresh session: %w", err)
	}
	return &session, nil
}
