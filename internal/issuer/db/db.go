package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"ms-minting/internal/models"
)

// ErrCodeCollision signals a unique-constraint violation on coupon_code.
// Under the per-unit-label lock this should never happen; when it does it
// means the single-writer invariant was violated and the caller must not
// blindly retry.
var ErrCodeCollision = errors.New("coupon code collision")

type DB struct {
	Bun *bun.DB
}

// CreateMintBatch inserts one mint-history row and fills in the
// store-assigned id on the model.
func (d *DB) CreateMintBatch(ctx context.Context, batch *models.MintBatch) error {
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now()
	}
	_, err := d.Bun.NewInsert().Model(batch).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create mint batch: %w", err)
	}
	return nil
}

// CountCouponsWithPrefix counts coupons whose code carries the unit-label
// prefix. Coupon rows are append-only, so this count doubles as the highest
// serial ever issued for the label.
func (d *DB) CountCouponsWithPrefix(ctx context.Context, unitLabel string) (int, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.Coupon)(nil)).
		Where("coupon_code LIKE ?", unitLabel+"-%").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count coupons for %s: %w", unitLabel, err)
	}
	return count, nil
}

// InsertCouponChunk writes one chunk of coupon rows in a single multi-row
// insert inside its own transaction. The chunk is either fully committed
// or not at all.
func (d *DB) InsertCouponChunk(ctx context.Context, coupons []models.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}

	tx, err := d.Bun.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin chunk transaction: %w", err)
	}

	if _, err := tx.NewInsert().Model(&coupons).Exec(ctx); err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrCodeCollision, err)
		}
		return fmt.Errorf("failed to insert coupon chunk: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit coupon chunk: %w", err)
	}
	return nil
}

func (d *DB) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := d.Bun.NewSelect().
		Model(&coupon).
		Where("coupon_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (d *DB) ListCouponsByBatch(ctx context.Context, batchID int64) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := d.Bun.NewSelect().
		Model(&coupons).
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons for batch %d: %w", batchID, err)
	}
	return coupons, nil
}

func (d *DB) GetMintBatch(ctx context.Context, id int64) (*models.MintBatch, error) {
	var batch models.MintBatch
	err := d.Bun.NewSelect().
		Model(&batch).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (d *DB) ListMintBatches(ctx context.Context) ([]models.MintBatch, error) {
	var batches []models.MintBatch
	err := d.Bun.NewSelect().
		Model(&batches).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mint batches: %w", err)
	}
	return batches, nil
}

// GetTotalCouponsCount returns the total number of coupons in the store.
func (d *DB) GetTotalCouponsCount(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Coupon)(nil)).
		Count(ctx)
}

// isUniqueViolation recognizes unique-constraint errors from both the
// production Postgres driver and the sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
