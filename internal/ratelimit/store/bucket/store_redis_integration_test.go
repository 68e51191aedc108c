//go:build integration

package bucket_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"alumnus/internal/ratelimit/store/bucket"
	"alumnus/pkg/testutil/containers"
)

type RedisBucketSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bucket.Redis
}

func TestRedisBucketSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketSuite))
}

func (s *RedisBucketSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = bucket.NewRedis(s.redis.Client)
}

func (s *RedisBucketSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisBucketSuite) TestAllowUpToLimit() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := s.store.Allow(ctx, "ip:10.0.0.1:auth", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}

	res, err := s.store.Allow(ctx, "ip:10.0.0.1:auth", 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Positive(res.RetryAfter)

	keys, err := s.redis.Keys(ctx, "ratelimit:*")
	s.Require().NoError(err)
	s.Equal([]string{"ratelimit:ip:10.0.0.1:auth"}, keys)
	ttl, err := s.redis.Client.PTTL(ctx, keys[0]).Result()
	s.Require().NoError(err)
	s.Positive(ttl, "window keys expire on their own")
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisBucketSuite) TestResetClearsKey() {
	ctx := context.Background()
	_, err := s.store.Allow(ctx, "ip:10.0.0.2:auth", 1, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "ip:10.0.0.2:auth"))

	res, err := s.store.Allow(ctx, "ip:10.0.0.2:auth", 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *RedisBucketSuite) TestConcurrentRequestsNeverExceedLimit() {
	const goroutines = 40
	var wg sync.WaitGroup
	var allowed atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(context.Background(), "ip:race:auth", 5, time.Minute)
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(5), allowed.Load())
}
