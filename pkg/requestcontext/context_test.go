package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "alumnus/pkg/domain"
)

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := Now(context.Background())
	assert.False(t, got.Before(before))
}

func TestWithTimePinsNow(t *testing.T) {
	fixed := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	ctx := WithTime(context.Background(), fixed)
	assert.Equal(t, fixed, Now(ctx))
}

func TestActiveProfileID(t *testing.T) {
	_, ok := ActiveProfileID(context.Background())
	assert.False(t, ok)

	profileID := id.NewProfileID()
	got, ok := ActiveProfileID(WithActiveProfileID(context.Background(), profileID))
	assert.True(t, ok)
	assert.Equal(t, profileID, got)
}

func TestAccountIDDefaultsToNil(t *testing.T) {
	assert.True(t, AccountID(context.Background()).IsNil())
}
