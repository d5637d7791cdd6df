// Package feed publishes repository change events over Redis so other
// processes can re-render when issues or profiles change.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/store"
)

const (
	DefaultChannel = "civicvoice:changes"
	recentLimit    = 100
	publishTimeout = 2 * time.Second
)

// Observer is told about publish failures. Notify never returns them.
type Observer interface {
	FeedPublishFailed()
}

// RedisFeed implements store.ChangeNotifier on Redis pub/sub. It also keeps
// the most recent changes in a capped list for late joiners.
type RedisFeed struct {
	client   *redis.Client
	channel  string
	observer Observer
}

// NewRedisFeed connects to redisURL and verifies the connection.
func NewRedisFeed(redisURL, channel string) (*RedisFeed, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisFeedWithClient(client, channel), nil
}

// NewRedisFeedWithClient creates a feed from an existing Redis client.
func NewRedisFeedWithClient(client *redis.Client, channel string) *RedisFeed {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisFeed{client: client, channel: channel}
}

// SetObserver installs the publish-failure observer.
func (f *RedisFeed) SetObserver(o Observer) {
	f.observer = o
}

func (f *RedisFeed) recentKey() string {
	return f.channel + ":recent"
}

// Publish sends change to subscribers and records it in the recent list.
func (f *RedisFeed) Publish(ctx context.Context, change store.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	_, err = f.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, f.recentKey(), payload)
		pipe.LTrim(ctx, f.recentKey(), 0, recentLimit-1)
		pipe.Publish(ctx, f.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Notify implements store.ChangeNotifier. Failures are logged, never
// propagated to the write that caused them.
func (f *RedisFeed) Notify(ctx context.Context, change store.Change) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := f.Publish(ctx, change); err != nil {
		log.Printf("feed: %s %s: %v", change.Kind, change.IssueID, err)
		if f.observer != nil {
			f.observer.FeedPublishFailed()
		}
	}
}

// Recent returns up to n changes, newest first.
func (f *RedisFeed) Recent(ctx context.Context, n int) ([]store.Change, error) {
	if n <= 0 || n > recentLimit {
		n = recentLimit
	}
	raw, err := f.client.LRange(ctx, f.recentKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent changes: %w", err)
	}
	changes := make([]store.Change, 0, len(raw))
	for _, item := range raw {
		var change store.Change
		if err := json.Unmarshal([]byte(item), &change); err != nil {
			log.Printf("feed: skipping malformed change: %v", err)
			continue
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// Subscribe streams changes until ctx is cancelled. The subscription is
// confirmed before Subscribe returns.
func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan store.Change, error) {
	sub := f.client.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	out := make(chan store.Change)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var change store.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					log.Printf("feed: skipping malformed message: %v", err)
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the Redis connection.
func (f *RedisFeed) Close() error {
	return f.client.Close()
}

// Ping checks if Redis is reachable.
func (f *RedisFeed) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}
