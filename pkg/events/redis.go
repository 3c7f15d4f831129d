package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"botframe/pkg/logger"
)

// record is the JSON form of an Event published to Redis.
type record struct {
	Name         Name      `json:"name"`
	InvocationID string    `json:"invocation_id"`
	Time         time.Time `json:"time"`
	Platform     string    `json:"platform,omitempty"`
	MessageID    string    `json:"message_id,omitempty"`
	ChannelID    string    `json:"channel_id,omitempty"`
	GuildID      string    `json:"guild_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	Command      string    `json:"command,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	RemainingMS  int64     `json:"remaining_ms,omitempty"`
	Error        string    `json:"error,omitempty"`
	Prefix       string    `json:"prefix,omitempty"`
	Alias        string    `json:"alias,omitempty"`
}

func newRecord(ev *Event) record {
	r := record{
		Name:         ev.Name,
		InvocationID: ev.InvocationID,
		Time:         ev.Time,
		Command:      ev.Command,
		Reason:       ev.Reason,
		RemainingMS:  ev.Remaining.Milliseconds(),
		Prefix:       ev.Prefix,
		Alias:        ev.Alias,
	}
	if ev.Err != nil {
		r.Error = ev.Err.Error()
	}
	if m := ev.Message; m != nil {
		r.Platform = m.Platform()
		r.MessageID = m.ID()
		r.ChannelID = m.ChannelID()
		r.GuildID = m.GuildID()
		r.UserID = m.Author().ID
	}
	return r
}

// RedisPublisherConfig configures the Redis sink.
type RedisPublisherConfig struct {
	Addr       string
	Password   string
	DB         int
	Prefix     string
	BufferSize int
}

// RedisPublisher publishes events to Redis channels named prefix+event.
// Publishing happens on a background worker; a full buffer drops events.
type RedisPublisher struct {
	log    *logger.Logger
	client *redis.Client
	prefix string
	queue  chan record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	published   uint64
	dropped     uint64
	metricsLock sync.Mutex
}

// NewRedisPublisher connects to Redis.
func NewRedisPublisher(log *logger.Logger, cfg *RedisPublisherConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return newRedisPublisher(log, client, cfg), nil
}

func newRedisPublisher(log *logger.Logger, client *redis.Client, cfg *RedisPublisherConfig) *RedisPublisher {
	if cfg.Prefix == "" {
		cfg.Prefix = "botframe:events:"
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RedisPublisher{
		log:    log.Named("events.redis"),
		client: client,
		prefix: cfg.Prefix,
		queue:  make(chan record, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the publish worker.
func (p *RedisPublisher) Start() error {
	p.wg.Add(1)
	go p.process()
	p.log.Info("Redis event publisher started", zap.String("prefix", p.prefix))
	return nil
}

// Stop drains nothing further and closes the client.
func (p *RedisPublisher) Stop() error {
	var err error
	p.once.Do(func() {
		p.cancel()
		p.wg.Wait()
		err = p.client.Close()
	})
	return err
}

// Publish enqueues ev.
func (p *RedisPublisher) Publish(_ context.Context, ev *Event) error {
	select {
	case p.queue <- newRecord(ev):
		return nil
	default:
		p.metricsLock.Lock()
		p.dropped++
		p.metricsLock.Unlock()
		return fmt.Errorf("event buffer full, dropped %s", ev.Name)
	}
}

// Channel returns the Redis channel an event name is published on.
func (p *RedisPublisher) Channel(name Name) string {
	return p.prefix + string(name)
}

func (p *RedisPublisher) process() {
	defer p.wg.Done()

	for {
		select {
		case rec := <-p.queue:
			p.publish(rec)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *RedisPublisher) publish(rec record) {
	data, err := json.Marshal(rec)
	if err != nil {
		p.log.Error("Failed to marshal event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()

	if err := p.client.Publish(ctx, p.Channel(rec.Name), data).Err(); err != nil {
		p.log.Warn("Failed to publish event",
			zap.String("event", string(rec.Name)),
			zap.Error(err))
		return
	}

	p.metricsLock.Lock()
	p.published++
	p.metricsLock.Unlock()
}

// GetMetrics returns publish counters.
func (p *RedisPublisher) GetMetrics() map[string]uint64 {
	p.metricsLock.Lock()
	defer p.metricsLock.Unlock()
	return map[string]uint64{
		"published": p.published,
		"dropped":   p.dropped,
	}
}
