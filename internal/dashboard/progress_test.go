package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-minting/internal/models"
)

func TestProgressCache_KeepsFurthestEvent(t *testing.T) {
	cache := NewProgressCache()

	cache.Update(models.BatchProgressEvent{BatchID: 1, UnitLabel: "PAM", Issued: 2, Total: 5})
	cache.Update(models.BatchProgressEvent{BatchID: 1, UnitLabel: "PAM", Issued: 4, Total: 5})

	// Kafka redelivery can replay an older event; it must not win
	cache.Update(models.BatchProgressEvent{BatchID: 1, UnitLabel: "PAM", Issued: 2, Total: 5})

	event, ok := cache.Get(1)
	assert.True(t, ok)
	assert.Equal(t, 4, event.Issued)

	_, ok = cache.Get(2)
	assert.False(t, ok)
}

func TestProgressCache_Snapshot(t *testing.T) {
	cache := NewProgressCache()
	assert.Empty(t, cache.Snapshot())

	cache.Update(models.BatchProgressEvent{BatchID: 1, UnitLabel: "PAM", Issued: 5, Total: 5})
	cache.Update(models.BatchProgressEvent{BatchID: 2, UnitLabel: "GOLD", Issued: 1, Total: 3})

	snapshot := cache.Snapshot()
	assert.Len(t, snapshot, 2)
}
