package dashboard

import (
	"context"

	"github.com/uptrace/bun"

	"ms-minting/internal/models"
)

// Service handles read-only dashboard aggregates over the coupon store
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// IssuanceSummary is the top-level dashboard card
type IssuanceSummary struct {
	TotalBatches  int            `json:"total_batches"`
	TotalCoupons  int            `json:"total_coupons"`
	CouponsByStat []StatusCount  `json:"coupons_by_status"`
	DailyIssuance []DailyMetrics `json:"daily_issuance"`
}

// LabelSummary aggregates one unit label's issuance history
type LabelSummary struct {
	UnitLabel     string            `json:"unit_label"`
	TotalCoupons  int               `json:"total_coupons"`
	TotalBatches  int               `json:"total_batches"`
	LatestBatch   *models.MintBatch `json:"latest_batch,omitempty"`
	DailyIssuance []DailyMetrics    `json:"daily_issuance"`
}

type StatusCount struct {
	Status string `bun:"status" json:"status"`
	Count  int    `bun:"count" json:"count"`
}

// DailyMetrics contains issuance counts for a single day
type DailyMetrics struct {
	Date   string `bun:"date" json:"date"`
	Issued int    `bun:"issued" json:"issued"`
}

// GetIssuanceSummary returns store-wide issuance aggregates
func (s *Service) GetIssuanceSummary(ctx context.Context) (*IssuanceSummary, error) {
	totalBatches, err := s.db.NewSelect().
		Model((*models.MintBatch)(nil)).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	totalCoupons, err := s.db.NewSelect().
		Model((*models.Coupon)(nil)).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	var byStatus []StatusCount
	err = s.db.NewRaw(`
		SELECT
			status,
			COUNT(*) AS count
		FROM
			esg_coupons
		GROUP BY
			status
		ORDER BY
			count DESC`).Scan(ctx, &byStatus)
	if err != nil {
		return nil, err
	}

	daily, err := s.getDailyIssuance(ctx, "")
	if err != nil {
		return nil, err
	}

	return &IssuanceSummary{
		TotalBatches:  totalBatches,
		TotalCoupons:  totalCoupons,
		CouponsByStat: byStatus,
		DailyIssuance: daily,
	}, nil
}

// GetLabelSummary returns aggregates for one unit label
func (s *Service) GetLabelSummary(ctx context.Context, unitLabel string) (*LabelSummary, error) {
	totalCoupons, err := s.db.NewSelect().
		Model((*models.Coupon)(nil)).
		Where("coupon_code LIKE ?", unitLabel+"-%").
		Count(ctx)
	if err != nil {
		return nil, err
	}

	totalBatches, err := s.db.NewSelect().
		Model((*models.MintBatch)(nil)).
		Where("unit_label = ?", unitLabel).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	summary := &LabelSummary{
		UnitLabel:    unitLabel,
		TotalCoupons: totalCoupons,
		TotalBatches: totalBatches,
	}

	if totalBatches > 0 {
		var latest models.MintBatch
		err = s.db.NewSelect().
			Model(&latest).
			Where("unit_label = ?", unitLabel).
			Order("created_at DESC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			return nil, err
		}
		summary.LatestBatch = &latest
	}

	daily, err := s.getDailyIssuance(ctx, unitLabel)
	if err != nil {
		return nil, err
	}
	summary.DailyIssuance = daily

	return summary, nil
}

// getDailyIssuance groups committed coupon rows per day, optionally
// filtered by unit label prefix.
func (s *Service) getDailyIssuance(ctx context.Context, unitLabel string) ([]DailyMetrics, error) {
	rawSQL := `
		SELECT
			DATE(created_at) AS date,
			COUNT(*) AS issued
		FROM
			esg_coupons`

	var args []interface{}
	if unitLabel != "" {
		rawSQL += " WHERE coupon_code LIKE ?"
		args = append(args, unitLabel+"-%")
	}
	rawSQL += " GROUP BY DATE(created_at) ORDER BY date"

	var daily []DailyMetrics
	if err := s.db.NewRaw(rawSQL, args...).Scan(ctx, &daily); err != nil {
		return nil, err
	}
	return daily, nil
}

// ListBatches returns all mint batches, newest first
func (s *Service) ListBatches(ctx context.Context) ([]models.MintBatch, error) {
	var batches []models.MintBatch
	err := s.db.NewSelect().
		Model(&batches).
		Order("created_at DESC").
		Scan(ctx)
	return batches, err
}
