// Package collector implements the RIS-Live ingestion stage: it dials the
// RIPE RIS Live WebSocket feed, subscribes to BGP UPDATE messages, and
// writes peer/base_attrs/ip_rib rows for every prefix it sees.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bgpensemble/anomaly-pipeline/internal/metrics"
)

// reconnectDelay is fixed, not exponential, per the collector's explicit
// deviation from the RIS-Live client in the wider retrieval pack.
const reconnectDelay = 5 * time.Second

const subscribeFrame = `{"type":"ris_subscribe","data":{"type":"UPDATE"}}`

// RISMessage is the subset of a RIS Live ris_message envelope the
// collector cares about.
type RISMessage struct {
	Type string      `json:"type"`
	Data UpdateFrame `json:"data"`
}

// UpdateFrame mirrors the "data" object of a RIS Live UPDATE message.
type UpdateFrame struct {
	Type          string             `json:"type"`
	Timestamp     float64            `json:"timestamp"`
	Peer          string             `json:"peer"`
	PeerASN       json.Number        `json:"peer_asn"`
	Path          []int64            `json:"path"`
	Announcements []AnnouncementItem `json:"announcements"`
	Withdrawals   []json.RawMessage  `json:"withdrawals"`
}

type AnnouncementItem struct {
	NextHop  string   `json:"next_hop"`
	Prefixes []string `json:"prefixes"`
}

// Client is a long-lived RIS-Live consumer that reconnects on any read or
// dial failure, with a fixed backoff, and hands each UPDATE frame to
// Handle.
type Client struct {
	url    string
	logger *zap.Logger
	dialer *websocket.Dialer
	Handle func(ctx context.Context, frame UpdateFrame)
	OnUp   func(up bool)
}

func NewClient(url string, logger *zap.Logger) *Client {
	return &Client{
		url:    url,
		logger: logger,
		dialer: websocket.DefaultDialer,
	}
}

// Run blocks, reconnecting forever until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.runOnce(ctx); err != nil {
			c.logger.Warn("ris-live connection ended, reconnecting", zap.Error(err), zap.Duration("delay", reconnectDelay))
			metrics.WSReconnectsTotal.WithLabelValues("error").Inc()
		}
		if c.OnUp != nil {
			c.OnUp(false)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing ris-live: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(subscribeFrame)); err != nil {
		return fmt.Errorf("sending subscribe frame: %w", err)
	}
	c.logger.Info("ris-live connected and subscribed")
	if c.OnUp != nil {
		c.OnUp(true)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading ris-live frame: %w", err)
		}
		if len(raw) == 0 {
			continue
		}

		var msg RISMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("malformed ris-live frame, skipping", zap.Error(err))
			continue
		}
		if msg.Type != "ris_message" || msg.Data.Type != "UPDATE" {
			continue
		}
		c.Handle(ctx, msg.Data)
	}
}
