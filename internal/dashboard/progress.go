package dashboard

import (
	"sync"

	"ms-minting/internal/models"
)

// ProgressCache keeps the latest per-batch progress event received from
// Kafka so the dashboard can show in-flight issuance without polling the
// store.
type ProgressCache struct {
	mu     sync.RWMutex
	latest map[int64]models.BatchProgressEvent
}

func NewProgressCache() *ProgressCache {
	return &ProgressCache{
		latest: make(map[int64]models.BatchProgressEvent),
	}
}

// Update records a progress event, keeping only the furthest one per batch.
func (c *ProgressCache) Update(event models.BatchProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.latest[event.BatchID]; ok && prev.Issued >= event.Issued {
		return
	}
	c.latest[event.BatchID] = event
}

// Get returns the latest progress for one batch.
func (c *ProgressCache) Get(batchID int64) (models.BatchProgressEvent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	event, ok := c.latest[batchID]
	return event, ok
}

// Snapshot returns the latest progress of every tracked batch.
func (c *ProgressCache) Snapshot() []models.BatchProgressEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	events := make([]models.BatchProgressEvent, 0, len(c.latest))
	for _, event := range c.latest {
		events = append(events, event)
	}
	return events
}
