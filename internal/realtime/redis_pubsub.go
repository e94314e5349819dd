package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "peerlearn:"
	publishTTL    = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance
// fan-out. Instance tags the publisher so it skips its own messages;
// Origin names the sending connection so relays stay exclusive of it.
type redisPayload struct {
	Instance string          `json:"instance"`
	Origin   string          `json:"origin,omitempty"`
	Event    string          `json:"event"`
	Data     json.RawMessage `json:"data"`
	At       int64           `json:"at"`
}

// RedisPubSub implements Publisher and Subscriber over Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for room and user events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// PublishEvent publishes an event to a room or user channel.
func (r *RedisPubSub) PublishEvent(channel, instanceID, originConn, event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{
		Instance: instanceID,
		Origin:   originConn,
		Event:    event,
		Data:     payload,
		At:       time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTTL)
	defer cancel()
	return r.client.Publish(ctx, channelPrefix+channel, body).Err()
}

// Subscribe subscribes to a channel and calls handler for each message.
// Returns a cancel function to stop the subscription.
func (r *RedisPubSub) Subscribe(channel string, handler func(instanceID, originConn, event string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channelPrefix+channel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					continue
				}
				handler(p.Instance, p.Origin, p.Event, p.Data)
			}
		}
	}()
	return func() { cancelCtx() }, nil
}
