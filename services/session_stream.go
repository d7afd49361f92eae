package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StreamSessionsSSE streams new receipts for the gateway-authenticated address.
func (s *ActivityService) StreamSessionsSSE(c *fiber.Ctx) error {
	address, _ := c.Locals("address").(string)
	if address == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user address"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	poll := s.StreamPoll
	if poll <= 0 {
		poll = 2 * time.Second
	}
	ctx := c.Context()

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()

		// Only receipts written after the stream opened are sent.
		cursor, err := s.Ledger.LatestID(ctx, address)
		if err != nil {
			// a zero cursor would replay the whole history
			zap.L().Warn("[SSE] cursor init failed", zap.String("address", address), zap.Error(err))
			w.WriteString("event: error\ndata: {\"error\":\"failed to open session stream\"}\n\n")
			_ = w.Flush()
			return
		}

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				receipts, err := s.Ledger.After(ctx, address, cursor)
				if err != nil {
					zap.L().Warn("[SSE] ledger poll failed", zap.String("address", address), zap.Error(err))
					continue
				}
				if len(receipts) == 0 {
					// keepalive
					w.WriteString(":\n\n")
				}
				for _, r := range receipts {
					payload, _ := json.Marshal(r)
					fmt.Fprintf(w, "id: %d\nevent: session\ndata: %s\n\n", r.ID, payload)
					cursor = r.ID
				}
				if err := w.Flush(); err != nil {
					// client disconnected
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})
	return nil
}
