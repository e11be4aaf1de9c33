package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/liftoff-ranking/internal/domain"
)

// Message types
const (
	MessageTypeRankUpdate  = "rank_update"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// ChannelGlobal receives every rank update
const ChannelGlobal = "global"

const userChannelPrefix = "user:"

// UserChannel returns the channel carrying one user's rank updates
func UserChannel(userID int64) string {
	return userChannelPrefix + strconv.FormatInt(userID, 10)
}

// ValidChannel reports whether clients may subscribe to channel
func ValidChannel(channel string) bool {
	if channel == ChannelGlobal {
		return true
	}
	id, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return false
	}
	n, err := strconv.ParseInt(id, 10, 64)
	return err == nil && n > 0
}

// Message represents a WebSocket message
type Message struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RankUpdate is pushed whenever a user's ranking is recalculated
type RankUpdate struct {
	UserID         int64        `json:"user_id"`
	Username       string       `json:"username,omitempty"`
	RankPoints     int          `json:"rank_points"`
	Tier           domain.Tier  `json:"rank_tier"`
	Level          int          `json:"level"`
	Color          string       `json:"rank_color"`
	ProgressToNext float64      `json:"progress_to_next"`
	PointsToNext   int          `json:"points_to_next"`
	TierChanged    bool         `json:"tier_changed"`
	PreviousTier   *domain.Tier `json:"previous_tier,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by channel
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client  *Client
	channel string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for channel, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, channel)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.channel]; !ok {
				h.clients[req.channel] = make(map[*Client]bool)
			}
			h.clients[req.channel][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "channel", req.channel)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.channel]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.channel)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "channel", req.channel)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to the clients subscribed to its channel
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	for client := range h.clients[message.Channel] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// BroadcastRankUpdate publishes a recalculated ranking to the user's channel
// and the global channel. change is nil when the tier did not move.
func (h *Hub) BroadcastRankUpdate(update domain.UserRanking, change *domain.RankChangeEvent) {
	payload := RankUpdate{
		UserID:         update.UserID,
		Username:       update.Username,
		RankPoints:     update.RankPoints,
		Tier:           update.Progress.Tier,
		Level:          update.Progress.Level,
		Color:          update.Progress.Color,
		ProgressToNext: update.Progress.ProgressToNext,
		PointsToNext:   update.Progress.PointsToNext,
		TierChanged:    change != nil,
	}
	if change != nil && change.FromTier.Valid() {
		previous := change.FromTier
		payload.PreviousTier = &previous
	}

	now := time.Now()
	for _, channel := range []string{UserChannel(update.UserID), ChannelGlobal} {
		h.enqueue(&Message{
			Type:      MessageTypeRankUpdate,
			Channel:   channel,
			Data:      payload,
			Timestamp: now,
		})
	}
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "channel", message.Channel)
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a channel
func (h *Hub) Subscribe(client *Client, channel string) error {
	if !ValidChannel(channel) {
		return fmt.Errorf("unknown channel %q", channel)
	}
	h.subscribe <- &subscriptionRequest{client: client, channel: channel}
	return nil
}

// Unsubscribe removes a client from a channel
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.unsubscribe <- &subscriptionRequest{client: client, channel: channel}
}

// GetSubscriberCount returns the number of subscribers for a channel
func (h *Hub) GetSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[channel])
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}

// Stats reports connection counts per channel
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()

	channels := make(map[string]int, len(h.clients))
	for channel, clients := range h.clients {
		channels[channel] = len(clients)
	}
	return map[string]any{
		"total_connections": len(h.allClients),
		"channels":          channels,
	}
}
