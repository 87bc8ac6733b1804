package models

import (
	"time"

	"github.com/uptrace/bun"
)

// BatchRequest is the JSON body accepted by the issuance endpoint.
// The issuer identity is taken from the access token, not the body.
type BatchRequest struct {
	Quantity    int    `json:"quantity"`
	Description string `json:"description"`
	AssetID     int64  `json:"asset_id"`
	AssetName   string `json:"asset_name"`
	UnitLabel   string `json:"unit_label"`
}

// MintBatch is one issuance event. Rows are written once and never
// updated or deleted by this service.
type MintBatch struct {
	bun.BaseModel `bun:"table:token_mint_history"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Quantity    int       `bun:"quantity,notnull" json:"quantity"`
	Description string    `bun:"description" json:"description"`
	Issuer      string    `bun:"issuer,notnull" json:"issuer"`
	UnitLabel   string    `bun:"unit_label,notnull" json:"unit_label"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

// BatchResult summarizes what one IssueBatch call actually persisted.
// Issued may be lower than Requested when a chunk insert failed.
type BatchResult struct {
	BatchID     int64    `json:"batch_id"`
	UnitLabel   string   `json:"unit_label"`
	StartSerial uint64   `json:"start_serial"`
	Requested   int      `json:"requested"`
	Issued      int      `json:"issued"`
	Codes       []string `json:"codes,omitempty"`
}
