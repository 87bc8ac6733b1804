package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Coupon lifecycle statuses. This service only ever writes ISSUED;
// the later states belong to the assignment/redemption workflows.
const (
	StatusIssued          = "ISSUED"
	StatusAssignedCompany = "ASSIGNED_COMPANY"
	StatusAssignedUser    = "ASSIGNED_USER"
	StatusUsed            = "USED"
	StatusRedeemed        = "REDEEMED"
	StatusExpired         = "EXPIRED"
)

// Coupon is one redeemable unit. CouponCode is globally unique and is
// formed as "<unit_label>-<base62 serial>".
type Coupon struct {
	bun.BaseModel `bun:"table:esg_coupons"`

	ID         int64  `bun:"id,pk,autoincrement" json:"id"`
	CouponCode string `bun:"coupon_code,unique,notnull" json:"coupon_code"`
	AssetID    int64  `bun:"asset_id,notnull" json:"asset_id"`
	AssetName  string `bun:"asset_name" json:"asset_name"`
	BatchID    int64  `bun:"batch_id,notnull" json:"batch_id"`
	Status     string `bun:"status,notnull" json:"status"`

	// Downstream holders, populated by external workflows only.
	CompanyID string `bun:"company_id,nullzero" json:"company_id,omitempty"`
	UserID    string `bun:"user_id,nullzero" json:"user_id,omitempty"`
	TxID      string `bun:"tx_id,nullzero" json:"tx_id,omitempty"`

	AssignedAt time.Time `bun:"assigned_at,nullzero" json:"assigned_at,omitempty"`
	UsedAt     time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	RedeemedAt time.Time `bun:"redeemed_at,nullzero" json:"redeemed_at,omitempty"`
	ExpiredAt  time.Time `bun:"expired_at,nullzero" json:"expired_at,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Batch *MintBatch `bun:"rel:belongs-to,join:batch_id=id" json:"-"`
}
