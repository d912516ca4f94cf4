package rerun

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/config"
)

// Enqueuer submits regeneration work. Satisfied by Client; tests substitute
// an in-memory recorder.
type Enqueuer interface {
	EnqueueRerun(ctx context.Context, payload RerunPayload) error
}

// Client enqueues regeneration tasks onto the redis-backed queue.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.QueueConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	queue := cfg.Name
	if queue == "" {
		queue = "default"
	}
	return &Client{client: asynq.NewClient(opt), queue: queue}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueRerun(ctx context.Context, payload RerunPayload) error {
	task, err := NewRosterRerunTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return eris.Wrapf(err, "rerun: enqueue for %s", payload.CompanyID)
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	if redisURL == "" {
		return asynq.RedisClientOpt{}, eris.New("rerun: redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, eris.Wrap(err, "rerun: parse redis url")
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
