package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/urbanbuzz/explorer/internal/core/domain"
	"github.com/urbanbuzz/explorer/internal/pkg/metrics"
)

// streamMessage is one frame sent to an exploration stream client.
type streamMessage struct {
	Type     string              `json:"type"` // "snapshot" | "result" | "error"
	Snapshot *domain.Snapshot    `json:"snapshot,omitempty"`
	Result   *domain.Exploration `json:"result,omitempty"`
	Error    *APIError           `json:"error,omitempty"`
}

const (
	pingInterval = 30 * time.Second
	// closeGrace bounds the wait for the client's answer to our close frame.
	closeGrace = 5 * time.Second
)

// ExplorationStreamHandler runs one exploration per connection. The client
// sends {"origin": "...", "destination": "..."}; the server streams snapshots
// and ends with a single result or error frame followed by a normal close.
// Closing the socket cancels the run.
//
// Reads stay on the handler goroutine and every goroutine started here is
// joined before returning: the connection is recycled once the handler exits.
func ExplorationStreamHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		log := slog.Default().With("remote_addr", c.RemoteAddr().String())
		if rid, ok := c.Locals("requestid").(string); ok {
			log = log.With("request_id", rid)
		}

		var mu sync.Mutex
		write := func(messageType int, data []byte) error {
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(messageType, data)
		}
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			return write(websocket.TextMessage, data)
		}
		fail := func(err error) {
			apiErr := toAPIError(err)
			apiErr.Status = 0
			_ = writeJSON(streamMessage{Type: "error", Error: &apiErr})
		}
		closeNormal := func(reason string) {
			_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
		}

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req exploreRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			fail(&domain.ExploreError{Kind: domain.ErrInvalidInput, Message: "invalid JSON"})
			closeNormal("invalid request")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), deps.ExploreTimeout)
		defer cancel()

		var wg sync.WaitGroup
		finished := make(chan struct{})

		wg.Add(2)
		go func() {
			defer wg.Done()
			defer close(finished)

			log.Info("exploration stream started", "origin", req.Origin, "destination", req.Destination)
			result, err := deps.Explorations.Explore(ctx, req.Origin, req.Destination, func(s domain.Snapshot) {
				if err := writeJSON(streamMessage{Type: "snapshot", Snapshot: &s}); err != nil {
					cancel()
				}
			})
			switch {
			case err != nil && errors.Is(ctx.Err(), context.Canceled):
				log.Info("exploration stream closed by client")
				return
			case err != nil:
				fail(err)
			default:
				_ = writeJSON(streamMessage{Type: "result", Result: result})
			}
			closeNormal("done")
			_ = c.SetReadDeadline(time.Now().Add(closeGrace))
		}()

		go func() {
			defer wg.Done()
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := write(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-finished:
					return
				case <-ctx.Done():
					return
				}
			}
		}()

		// Further client frames are ignored. A read error means the client
		// went away or answered our close frame.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		cancel()
		wg.Wait()
	}
}
