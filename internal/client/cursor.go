package client

import "github.com/hydraplus/hydra/internal/models"

// restartThreshold: an ID regression is only treated as a server restart
// when the new maximum is this small; larger regressions are assumed to be
// out-of-order noise and ignored.
const restartThreshold = 10

// EventCursor tracks a consumer's event high-water mark across /status
// polls, including detection of state-service restarts. When the status
// document carries an instance nonce the nonce is authoritative; the
// max-below-threshold heuristic covers older servers.
type EventCursor struct {
	lastID   uint64
	instance string
}

// LastID returns the current high-water mark.
func (c *EventCursor) LastID() uint64 {
	return c.lastID
}

// Advance ingests one /status poll and returns the events the consumer has
// not seen yet, in insertion order.
func (c *EventCursor) Advance(instance string, events []models.Event) []models.Event {
	if instance != "" && instance != c.instance {
		if c.instance != "" {
			c.lastID = 0
		}
		c.instance = instance
	}

	if len(events) == 0 {
		return nil
	}

	maxID := events[len(events)-1].ID
	if maxID < c.lastID && maxID < restartThreshold {
		c.lastID = 0
	}

	fresh := make([]models.Event, 0, len(events))
	for _, e := range events {
		if e.ID > c.lastID {
			fresh = append(fresh, e)
		}
	}
	if maxID > c.lastID {
		c.lastID = maxID
	}
	return fresh
}
