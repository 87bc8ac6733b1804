package models

import "time"

// BatchCreatedEvent is published once per issuance call, after the
// mint-history row exists.
type BatchCreatedEvent struct {
	BatchID     int64     `json:"batch_id"`
	UnitLabel   string    `json:"unit_label"`
	AssetID     int64     `json:"asset_id"`
	AssetName   string    `json:"asset_name"`
	Issuer      string    `json:"issuer"`
	Quantity    int       `json:"quantity"`
	StartSerial uint64    `json:"start_serial"`
	CreatedAt   time.Time `json:"created_at"`
}

// BatchProgressEvent is published after every committed chunk.
type BatchProgressEvent struct {
	BatchID   int64     `json:"batch_id"`
	UnitLabel string    `json:"unit_label"`
	Issued    int       `json:"issued"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}
