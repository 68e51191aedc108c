package store

import (
	"fmt"
	"time"

	"alumnus/internal/session/models"
	"alumnus/pkg/platform/sentinel"
)

// checkSave rejects sessions that could never be looked up or expired.
func checkSave(session *models.RefreshSession, ttl time.Duration) error {
	if session == nil || session.Token == "" {
		return fmt.Errorf("refresh session without token: %w", sentinel.ErrInvalidState)
	}
	if ttl <= 0 {
		return fmt.Errorf("refresh session ttl must be positive, got %s: %w", ttl, sentinel.ErrInvalidState)
	}
	return nil
}
