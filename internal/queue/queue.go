package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresmejia3/blurbox/internal/job"
	"github.com/andresmejia3/blurbox/internal/types"
	"github.com/redis/go-redis/v9"
)

const (
	jobsStream = "blurbox:jobs"
	group      = "workers"
	statusTTL  = 7 * 24 * time.Hour
)

// ErrUnknownJob is returned by Status for IDs the queue has never seen (or has expired).
var ErrUnknownJob = errors.New("unknown job")

// Message is a job read off the stream together with its stream ID.
type Message struct {
	ID   string
	Spec *job.Spec
}

// Queue hands blur jobs to workers over a Redis stream consumer group.
type Queue struct {
	client *redis.Client
	// ClaimIdle is how long a delivered job may stay unacknowledged before
	// another worker takes it over.
	ClaimIdle time.Duration
}

// New connects to Redis and makes sure the consumer group exists.
func New(ctx context.Context, addr string) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	q := &Queue{client: client, ClaimIdle: time.Minute}
	if err := q.ensureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func (q *Queue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, jobsStream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func statusKey(id string) string {
	return "blurbox:job:" + id + ":status"
}

// Submit enqueues a job and returns its ID.
func (q *Queue) Submit(ctx context.Context, spec *job.Spec) (string, error) {
	b, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: jobsStream,
		Values: map[string]interface{}{"data": b},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	if err := q.SetStatus(ctx, types.JobStatus{ID: id, State: types.JobQueued}); err != nil {
		return id, err
	}
	return id, nil
}

// Next returns a job left pending by a stopped worker if there is one,
// otherwise it blocks up to block for the next new job.
// It returns a nil message when nothing arrived in time.
func (q *Queue) Next(ctx context.Context, consumer string, block time.Duration) (*Message, error) {
	if msg, err := q.reclaim(ctx, consumer); err != nil || msg != nil {
		return msg, err
	}

	res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{jobsStream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, nil
	}
	return q.message(ctx, consumer, res[0].Messages[0])
}

// reclaim moves the oldest job idle for at least ClaimIdle to consumer.
func (q *Queue) reclaim(ctx context.Context, consumer string) (*Message, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   jobsStream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  q.ClaimIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reclaim pending jobs: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return q.message(ctx, consumer, msgs[0])
}

func (q *Queue) message(ctx context.Context, consumer string, msg redis.XMessage) (*Message, error) {
	spec, err := decodeSpec(msg.Values["data"])
	if err != nil {
		// A poison message would be redelivered forever; ack it and surface the error.
		_ = q.Ack(ctx, msg.ID)
		_ = q.SetStatus(ctx, types.JobStatus{ID: msg.ID, State: types.JobFailed, Consumer: consumer, Error: err.Error()})
		return nil, fmt.Errorf("malformed job %s: %w", msg.ID, err)
	}
	return &Message{ID: msg.ID, Spec: spec}, nil
}

func decodeSpec(v interface{}) (*job.Spec, error) {
	var data []byte
	switch t := v.(type) {
	case string:
		data = []byte(t)
	case []byte:
		data = t
	default:
		return nil, fmt.Errorf("unexpected payload type %T", v)
	}
	var spec job.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Ack removes a finished job from the consumer group's pending list.
func (q *Queue) Ack(ctx context.Context, id string) error {
	return q.client.XAck(ctx, jobsStream, group, id).Err()
}

// SetStatus stores the job state as a hash that expires after a week.
func (q *Queue) SetStatus(ctx context.Context, st types.JobStatus) error {
	if st.UpdatedAt == "" {
		st.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	key := statusKey(st.ID)
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"state":      string(st.State),
		"consumer":   st.Consumer,
		"error":      st.Error,
		"updated_at": st.UpdatedAt,
	})
	pipe.Expire(ctx, key, statusTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Status reads back what SetStatus stored.
func (q *Queue) Status(ctx context.Context, id string) (types.JobStatus, error) {
	vals, err := q.client.HGetAll(ctx, statusKey(id)).Result()
	if err != nil {
		return types.JobStatus{}, err
	}
	if len(vals) == 0 {
		return types.JobStatus{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return types.JobStatus{
		ID:        id,
		State:     types.JobState(vals["state"]),
		Consumer:  vals["consumer"],
		Error:     vals["error"],
		UpdatedAt: vals["updated_at"],
	}, nil
}
