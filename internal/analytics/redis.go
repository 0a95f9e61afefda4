// Package analytics keeps rolling trigger-outcome counters in Redis for the
// console's dashboard. Counters are best-effort: a write failure is logged
// and never affects dispatch.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/jobadmin/internal/domain"
)

// DefaultRetention is how long an hourly counter bucket survives.
const DefaultRetention = 7 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client, retention: DefaultRetention}
}

// WithRetention overrides the counter bucket TTL.
func (s *RedisSink) WithRetention(retention time.Duration) *RedisSink {
	s.retention = retention
	return s
}

// Record increments the hourly success or failure counter for a job.
func (s *RedisSink) Record(ctx context.Context, groupID, jobID int64, code int, at time.Time) {
	outcome := "fail"
	if code == domain.CodeSuccess {
		outcome = "ok"
	}
	key := buildKey(groupID, jobID, outcome, at)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: counter write failed for job=%d: %v", jobID, err)
	}
}

func buildKey(groupID, jobID int64, outcome string, t time.Time) string {
	return fmt.Sprintf("trig:g:%d:j:%d:%s:%s", groupID, jobID, outcome, t.UTC().Format("2006010215"))
}
