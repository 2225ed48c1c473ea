// Package cache wires github.com/redis/go-redis/v9 into two concerns the
// optimizer and clusterer need: per-task optimizer conversation memory
// (spec.md §4.I, §5 "_conversation[task_id] ... must be reset at the
// start of each run") and a short-lived clustering candidate cache so the
// ingest pipeline doesn't re-scan a project's recent traces on every
// still-unmatched trace.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps a redis.Client with the two narrow operations tracepilot
// needs; it is not a general-purpose cache wrapper.
type Client struct {
	rdb *redis.Client
}

// New builds a Client from a redis connection URL
// (e.g. "redis://localhost:6379/0").
func New(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func conversationKey(taskID string) string {
	return "tracepilot:optimize:conversation:" + taskID
}

// ResetConversation clears a task's optimizer conversation memory at the
// start of a run (spec.md §4.I "Per-task conversation memory is reset at
// the start").
func (c *Client) ResetConversation(ctx context.Context, taskID string) error {
	return c.rdb.Del(ctx, conversationKey(taskID)).Err()
}

// AppendConversationMessage appends one message (already JSON-encodable)
// to the task's conversation list.
func (c *Client) AppendConversationMessage(ctx context.Context, taskID string, message interface{}) error {
	b, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("cache: marshal conversation message: %w", err)
	}
	return c.rdb.RPush(ctx, conversationKey(taskID), b).Err()
}

// Conversation returns every message appended so far for taskID, in
// append order.
func (c *Client) Conversation(ctx context.Context, taskID string) ([]json.RawMessage, error) {
	raw, err := c.rdb.LRange(ctx, conversationKey(taskID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: read conversation: %w", err)
	}
	out := make([]json.RawMessage, len(raw))
	for i, s := range raw {
		out[i] = json.RawMessage(s)
	}
	return out, nil
}

func clusterCandidateKey(projectID string) string {
	return "tracepilot:cluster:candidates:" + projectID
}

// ClusterCandidateTTL bounds how long an ingest-time "no eligible cluster
// yet" result is remembered before the next still-unmatched trace forces
// a fresh re-scan.
const ClusterCandidateTTL = 30 * time.Second

// ExpireClusterCandidates invalidates the clustering candidate cache for
// a project. The ingest pipeline calls it after an auto-create run
// succeeds, so the next unmatched trace triggers a fresh scan.
func (c *Client) ExpireClusterCandidates(ctx context.Context, projectID string) error {
	return c.rdb.Del(ctx, clusterCandidateKey(projectID)).Err()
}

// MarkNoEligibleCluster remembers, for ClusterCandidateTTL, that the last
// scan of a project's unmatched traces found nothing eligible, so the
// ingest pipeline can skip re-running the clusterer on every single
// still-unmatched trace that arrives in a burst.
func (c *Client) MarkNoEligibleCluster(ctx context.Context, projectID string) error {
	return c.rdb.Set(ctx, clusterCandidateKey(projectID), "1", ClusterCandidateTTL).Err()
}

// RecentlyCheckedNoEligibleCluster reports whether MarkNoEligibleCluster
// was called for projectID within the last ClusterCandidateTTL.
func (c *Client) RecentlyCheckedNoEligibleCluster(ctx context.Context, projectID string) bool {
	n, err := c.rdb.Exists(ctx, clusterCandidateKey(projectID)).Result()
	return err == nil && n > 0
}

func scoreCacheKey(taskID string) string {
	return "tracepilot:optimize:scores:" + taskID
}

// InvalidateScoreCache implements the "Expire session cache afterwards"
// step of spec.md §4.I's per-iteration evaluate step: the per-task cache
// of each implementation's avg_final_evaluation_score (used by
// load_baseline) must be dropped once a new evaluation completes so the
// next iteration's baseline comparison sees it.
func (c *Client) InvalidateScoreCache(ctx context.Context, taskID string) error {
	return c.rdb.Del(ctx, scoreCacheKey(taskID)).Err()
}
