package qr

import (
	"encoding/json"

	"github.com/skip2/go-qrcode"

	"ms-minting/internal/models"
)

// CouponPayload is what ends up inside a coupon QR image. Redemption
// scanners look the code up in the store, so the payload stays plain.
type CouponPayload struct {
	Code      string `json:"code"`
	AssetID   int64  `json:"asset_id"`
	AssetName string `json:"asset_name"`
	BatchID   int64  `json:"batch_id"`
}

type Generator struct {
	size int
}

func NewGenerator() *Generator {
	return &Generator{size: 256}
}

// GenerateCouponQR renders a coupon as a PNG QR image.
func (g *Generator) GenerateCouponQR(coupon *models.Coupon) ([]byte, error) {
	payload := CouponPayload{
		Code:      coupon.CouponCode,
		AssetID:   coupon.AssetID,
		AssetName: coupon.AssetName,
		BatchID:   coupon.BatchID,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(string(data), qrcode.Medium, g.size)
}
