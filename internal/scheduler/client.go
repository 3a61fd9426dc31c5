package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"crm_automation_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	retryDelay    = 30 * time.Second
	stopMaxRetry  = 20
	classMaxRetry = 5
)

type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.inspector != nil {
		_ = c.inspector.Close()
	}
	return c.client.Close()
}

// ScheduleStopRetry enqueues one pending stop per lead. A retry that is still
// pending is left in place; one that already ran to completion or was
// archived is replaced.
func (c *Client) ScheduleStopRetry(ctx context.Context, leadID uuid.UUID, reason string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewStopRetryTask(StopRetryPayload{LeadID: leadID.String(), Reason: reason})
	if err != nil {
		return err
	}

	return c.enqueue(ctx, task, stopTaskID(leadID), asynq.MaxRetry(stopMaxRetry))
}

func (c *Client) ScheduleClassifyRetry(ctx context.Context, leadID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewClassifyRetryTask(ClassifyRetryPayload{LeadID: leadID.String()})
	if err != nil {
		return err
	}

	return c.enqueue(ctx, task, classifyTaskID(leadID), asynq.MaxRetry(classMaxRetry))
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, taskID string, opts ...asynq.Option) error {
	opts = append(opts, asynq.TaskID(taskID), asynq.ProcessIn(retryDelay), asynq.Queue(c.queue))
	_, err := c.client.EnqueueContext(ctx, task, opts...)
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}

	// The id stays taken after a task is archived or retained as completed.
	info, err := c.inspector.GetTaskInfo(c.queue, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) {
			_, err = c.client.EnqueueContext(ctx, task, opts...)
			return ignoreConflict(err)
		}
		return fmt.Errorf("inspect task %s: %w", taskID, err)
	}
	if info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return nil
	}

	if err := c.inspector.DeleteTask(c.queue, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return fmt.Errorf("delete finished task %s: %w", taskID, err)
	}
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	return ignoreConflict(err)
}

// ignoreConflict treats a concurrent scheduler winning the id as success.
func ignoreConflict(err error) error {
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func stopTaskID(leadID uuid.UUID) string     { return "stop:" + leadID.String() }
func classifyTaskID(leadID uuid.UUID) string { return "classify:" + leadID.String() }

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
