package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "trees:"
	channelSuffix  = ":events"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Event types published for tree activity.
const (
	EventReviewCreated = "review_created"
	EventReviewUpdated = "review_updated"
	EventReviewDeleted = "review_deleted"
	EventTreeDeleted   = "tree_deleted"
)

// Event is the payload websocket subscribers of a tree receive.
type Event struct {
	Type          string  `json:"type"`
	TreeID        string  `json:"tree_id"`
	ReviewID      string  `json:"review_id,omitempty"`
	AverageRating float64 `json:"average_rating"`
	ClimbCount    int     `json:"climb_count"`
}

// Hub fans tree events out to websocket clients. With Redis configured every
// event goes through a pattern subscription so all instances deliver it;
// otherwise events are delivered to local clients only.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	log     *zap.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	TreeID string
	Send   chan []byte
}

func NewHub(redisClient *redis.Client, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		log:     logger,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ctx := context.Background()
		pubsub := redisClient.PSubscribe(ctx, channelPattern)
		if _, err := pubsub.Receive(ctx); err != nil {
			logger.Warn("redis subscribe failed, delivering locally", zap.Error(err))
			_ = pubsub.Close()
		} else {
			h.redis = redisClient
			h.pubsub = pubsub
			go h.forward(pubsub.Channel())
		}
	}
	return h
}

func (h *Hub) Register(treeID string) *Client {
	client := &Client{
		TreeID: treeID,
		Send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[treeID] == nil {
		h.clients[treeID] = map[*Client]struct{}{}
	}
	h.clients[treeID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if treeClients, ok := h.clients[client.TreeID]; ok {
		delete(treeClients, client)
		if len(treeClients) == 0 {
			delete(h.clients, client.TreeID)
		}
	}
	close(client.Send)
}

// Publish encodes ev and broadcasts it on its tree's channel.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode event", zap.String("tree_id", ev.TreeID), zap.Error(err))
		return
	}
	h.Broadcast(ctx, ev.TreeID, payload)
}

func (h *Hub) Broadcast(ctx context.Context, treeID string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(ctx, redisChannel(treeID), payload).Err()
		if err == nil {
			return
		}
		h.log.Warn("redis publish failed, delivering locally", zap.String("tree_id", treeID), zap.Error(err))
	}
	h.deliver(treeID, payload)
}

// Close stops the Redis subscription.
func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	return h.pubsub.Close()
}

func (h *Hub) deliver(treeID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[treeID] {
		select {
		case client.Send <- payload:
		default:
			h.log.Debug("dropping event for slow client", zap.String("tree_id", treeID))
		}
	}
}

func (h *Hub) forward(ch <-chan *redis.Message) {
	for msg := range ch {
		treeID := treeIDFromChannel(msg.Channel)
		if treeID == "" {
			continue
		}
		h.deliver(treeID, []byte(msg.Payload))
	}
}

func redisChannel(treeID string) string {
	return channelPrefix + treeID + channelSuffix
}

func treeIDFromChannel(ch string) string {
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}

func (h *Hub) clientCount(treeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[treeID])
}
