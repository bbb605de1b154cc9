// Package outbox hands notifications and activity records to workers through
// redis lists. Producers LPUSH JSON jobs, workers BRPOP them.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/FlameGreat-1/nswcleaningcompany-sub001/activitymap"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultNotificationQueue = "accounts:notifications"
	DefaultActivityStream    = "accounts:activity"
	DefaultActivityMaxLen    = 10000
)

// NotificationJob is the payload a delivery worker pops from the queue.
type NotificationJob struct {
	ID         string                `json:"id"`
	Kind       auth.NotificationKind `json:"kind"`
	UserID     string                `json:"user_id"`
	Email      string                `json:"email"`
	FirstName  string                `json:"first_name,omitempty"`
	Data       map[string]any        `json:"data,omitempty"`
	EnqueuedAt time.Time             `json:"enqueued_at"`
}

// RedisNotifier implements auth.Notifier by queueing jobs.
type RedisNotifier struct {
	client redis.UniversalClient
	queue  string
	clock  func() time.Time
}

var _ auth.Notifier = (*RedisNotifier)(nil)

type NotifierOption func(*RedisNotifier)

func WithQueue(queue string) NotifierOption {
	return func(n *RedisNotifier) {
		if q := strings.TrimSpace(queue); q != "" {
			n.queue = q
		}
	}
}

func WithNotifierClock(clock func() time.Time) NotifierOption {
	return func(n *RedisNotifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

func NewRedisNotifier(client redis.UniversalClient, opts ...NotifierOption) *RedisNotifier {
	n := &RedisNotifier{
		client: client,
		queue:  DefaultNotificationQueue,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Queue returns the list jobs are pushed to
func (n *RedisNotifier) Queue() string {
	return n.queue
}

func (n *RedisNotifier) Send(ctx context.Context, kind auth.NotificationKind, user *auth.User, data map[string]any) error {
	if n.client == nil {
		return fmt.Errorf("outbox: redis client is nil")
	}
	if user == nil {
		return fmt.Errorf("outbox: %s notification without recipient", kind)
	}

	job := NotificationJob{
		ID:         uuid.NewString(),
		Kind:       kind,
		UserID:     user.ID.String(),
		Email:      user.Email,
		FirstName:  user.FirstName,
		Data:       data,
		EnqueuedAt: n.clock(),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("outbox: encode %s job: %w", kind, err)
	}

	if err := n.client.LPush(ctx, n.queue, payload).Err(); err != nil {
		return fmt.Errorf("outbox: push %s job: %w", kind, err)
	}
	return nil
}

// Pop blocks up to timeout for the oldest job. It returns nil, nil when the
// queue stayed empty.
func (n *RedisNotifier) Pop(ctx context.Context, timeout time.Duration) (*NotificationJob, error) {
	res, err := n.client.BRPop(ctx, timeout, n.queue).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("outbox: pop job: %w", err)
	}

	// BRPOP replies with [key, value]
	var job NotificationJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("outbox: decode job: %w", err)
	}
	return &job, nil
}

// RedisActivitySink implements auth.ActivitySink. It keeps a capped list of
// the latest activitymap records, newest first.
type RedisActivitySink struct {
	client redis.UniversalClient
	key    string
	maxLen int64
	opts   []activitymap.Option
}

var _ auth.ActivitySink = (*RedisActivitySink)(nil)

type ActivityOption func(*RedisActivitySink)

func WithActivityKey(key string) ActivityOption {
	return func(s *RedisActivitySink) {
		if k := strings.TrimSpace(key); k != "" {
			s.key = k
		}
	}
}

// WithActivityMaxLen caps the list. Zero or less keeps every record.
func WithActivityMaxLen(n int64) ActivityOption {
	return func(s *RedisActivitySink) {
		s.maxLen = n
	}
}

// WithMapOptions passes options through to activitymap.Map
func WithMapOptions(opts ...activitymap.Option) ActivityOption {
	return func(s *RedisActivitySink) {
		s.opts = append(s.opts, opts...)
	}
}

func NewRedisActivitySink(client redis.UniversalClient, opts ...ActivityOption) *RedisActivitySink {
	s := &RedisActivitySink{
		client: client,
		key:    DefaultActivityStream,
		maxLen: DefaultActivityMaxLen,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	if s.client == nil {
		return fmt.Errorf("outbox: redis client is nil")
	}

	payload, err := json.Marshal(activitymap.Map(event, s.opts...))
	if err != nil {
		return fmt.Errorf("outbox: encode activity: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, payload)
		if s.maxLen > 0 {
			pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox: push activity: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first
func (s *RedisActivitySink) Recent(ctx context.Context, limit int64) ([]activitymap.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := s.client.LRange(ctx, s.key, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("outbox: read activity: %w", err)
	}

	out := make([]activitymap.Record, 0, len(raw))
	for _, item := range raw {
		var rec activitymap.Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("outbox: decode activity: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
