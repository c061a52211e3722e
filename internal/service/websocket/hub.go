// Package websocket delivers accepted incidents to live subscribers.
package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"weaponwatch/internal/logger"
	"weaponwatch/internal/metrics"
	"weaponwatch/internal/model"
)

const (
	// SendQueueSize is the number of events buffered per subscriber before it counts as slow.
	SendQueueSize = 16
	// WriteTimeout bounds a single write to a subscriber.
	WriteTimeout = 5 * time.Second
)

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one live subscriber.
type Client struct {
	ID   string
	conn Conn
	send chan []byte
}

// HubService fans incidents out to every connected client. Each client has its own
// queue and writer goroutine; a client that falls behind or fails a write is dropped.
type HubService struct {
	clients   map[*Client]struct{}
	mutex     sync.RWMutex
	publishMu sync.Mutex
	wg        sync.WaitGroup
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewHubService(logger *logger.Logger, m *metrics.Metrics) *HubService {
	return &HubService{
		clients: make(map[*Client]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// Register adds conn to the active set. It only receives incidents broadcast afterwards.
func (h *HubService) Register(conn Conn) *Client {
	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, SendQueueSize),
	}

	h.mutex.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mutex.Unlock()

	h.metrics.SetLiveSubscribers(total)
	h.logger.Info("Subscriber %s connected. Total: %d", client.ID, total)

	h.wg.Add(1)
	go h.writer(client)
	return client
}

// Unregister removes client. Safe to call more than once.
func (h *HubService) Unregister(client *Client) {
	if h.remove(client) {
		h.logger.Info("Subscriber %s disconnected. Total: %d", client.ID, h.GetClientCount())
	}
}

// Broadcast sends inc to every client in publish order. It never blocks on a client.
func (h *HubService) Broadcast(inc model.Incident) error {
	message, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("failed to marshal incident %s: %w", inc.ID, err)
	}

	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	var slow []*Client
	h.mutex.RLock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range slow {
		h.drop(client, "send queue full")
	}
	return nil
}

// GetClientCount returns the number of active clients.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their writers to exit.
func (h *HubService) Close() {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		h.remove(client)
	}
	h.wg.Wait()
}

func (h *HubService) writer(client *Client) {
	defer h.wg.Done()
	defer client.conn.Close()

	for message := range client.send {
		if err := client.conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
			h.drop(client, err.Error())
			return
		}
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.drop(client, err.Error())
			return
		}
	}
}

func (h *HubService) drop(client *Client, reason string) {
	if h.remove(client) {
		h.metrics.LiveSubscriberDropped()
		h.logger.Warning("Dropped subscriber %s: %s", client.ID, reason)
	}
}

// remove deletes client from the set, stops its writer and closes the connection.
// It reports whether client was still active.
func (h *HubService) remove(client *Client) bool {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return false
	}
	delete(h.clients, client)
	close(client.send)
	total := len(h.clients)
	h.mutex.Unlock()

	h.metrics.SetLiveSubscribers(total)
	client.conn.Close()
	return true
}
