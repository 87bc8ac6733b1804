package issuer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"ms-minting/internal/issuer/db"
	"ms-minting/internal/metrics"
	"ms-minting/internal/models"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrInvalidUnitLabel = errors.New("unit label must be a short alphanumeric token")
	ErrLabelLocked      = errors.New("unit label is locked by another issuance")
)

// unit labels double as the uniqueness namespace inside coupon codes, so
// they must never contain the "-" separator
var unitLabelPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)

// ChunkError reports a failed chunk insert with enough context for an
// operator to resume: prior chunks stay committed, and a re-invocation
// re-derives its start serial from what is actually persisted.
type ChunkError struct {
	ChunkStart uint64 // first serial of the failed chunk
	Committed  int    // coupons committed before the failure
	Err        error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk insert failed at serial %d after %d committed coupons: %v",
		e.ChunkStart, e.Committed, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

type DBLayer interface {
	CreateMintBatch(ctx context.Context, batch *models.MintBatch) error
	CountCouponsWithPrefix(ctx context.Context, unitLabel string) (int, error)
	InsertCouponChunk(ctx context.Context, coupons []models.Coupon) error
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	ListCouponsByBatch(ctx context.Context, batchID int64) ([]models.Coupon, error)
	GetMintBatch(ctx context.Context, id int64) (*models.MintBatch, error)
	ListMintBatches(ctx context.Context) ([]models.MintBatch, error)
	GetTotalCouponsCount(ctx context.Context) (int, error)
}

type LabelLock interface {
	LockLabel(ctx context.Context, unitLabel, holderID string) (bool, error)
	UnlockLabel(ctx context.Context, unitLabel, holderID string) error
}

type KafkaPublisher interface {
	PublishBatchCreated(event models.BatchCreatedEvent) error
	PublishBatchProgress(event models.BatchProgressEvent) error
}

// ProgressFunc receives cumulative progress after each committed chunk.
type ProgressFunc func(issued, total int)

const DefaultChunkSize = 1000

type IssuerService struct {
	DB         DBLayer
	Lock       LabelLock
	Kafka      KafkaPublisher
	ChunkSize  int
	OnProgress ProgressFunc
}

func NewIssuerService(database DBLayer, lock LabelLock, kafka KafkaPublisher) *IssuerService {
	return &IssuerService{
		DB:        database,
		Lock:      lock,
		Kafka:     kafka,
		ChunkSize: DefaultChunkSize,
	}
}

// IssueBatch creates one mint-history row and quantity coupon rows with
// codes "<unit_label>-<base62 serial>", continuing from the highest serial
// already persisted for that label. Coupon rows are written in fixed-size
// chunks, each committed in its own transaction, so a failure mid-run
// leaves earlier chunks committed and a later re-invocation resumes with
// no code overlap.
func (s *IssuerService) IssueBatch(ctx context.Context, req models.BatchRequest, issuerID string) (*models.BatchResult, error) {
	start := time.Now()
	status := "failed"
	defer func() {
		metrics.RecordIssueBatchDuration(status, time.Since(start).Seconds())
	}()

	// Contract violations are rejected before any side effect
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if !unitLabelPattern.MatchString(req.UnitLabel) {
		return nil, ErrInvalidUnitLabel
	}

	// The recount-based serial derivation below is only safe with a
	// single writer per unit label, so the lock is held end to end.
	holderID := uuid.New().String()
	ok, err := s.Lock.LockLabel(ctx, req.UnitLabel, holderID)
	if err != nil {
		return nil, fmt.Errorf("label lock error: %w", err)
	}
	if !ok {
		return nil, ErrLabelLocked
	}
	defer func() {
		// Release with a fresh context so a cancelled request still unlocks
		if err := s.Lock.UnlockLabel(context.Background(), req.UnitLabel, holderID); err != nil {
			fmt.Printf("Failed to release label lock for %s: %v\n", req.UnitLabel, err)
		}
	}()

	batch := &models.MintBatch{
		Quantity:    req.Quantity,
		Description: req.Description,
		Issuer:      issuerID,
		UnitLabel:   req.UnitLabel,
		CreatedAt:   time.Now(),
	}
	if err := s.DB.CreateMintBatch(ctx, batch); err != nil {
		return nil, err
	}

	// Rows are append-only, so the count is the highest serial ever used
	existing, err := s.DB.CountCouponsWithPrefix(ctx, req.UnitLabel)
	if err != nil {
		return nil, err
	}
	startSerial := uint64(existing) + 1

	codes := make([]string, req.Quantity)
	for i := range codes {
		codes[i] = CouponCode(req.UnitLabel, startSerial+uint64(i))
	}

	if s.Kafka != nil {
		err := s.Kafka.PublishBatchCreated(models.BatchCreatedEvent{
			BatchID:     batch.ID,
			UnitLabel:   req.UnitLabel,
			AssetID:     req.AssetID,
			AssetName:   req.AssetName,
			Issuer:      issuerID,
			Quantity:    req.Quantity,
			StartSerial: startSerial,
		})
		if err != nil {
			// The store is the source of truth; event loss is logged only
			fmt.Printf("Kafka publish error (batch created): %v\n", err)
		}
	}

	chunkSize := s.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	issued := 0
	now := time.Now()
	for offset := 0; offset < len(codes); offset += chunkSize {
		if err := ctx.Err(); err != nil {
			if issued > 0 {
				status = "partial"
			}
			return nil, &ChunkError{
				ChunkStart: startSerial + uint64(offset),
				Committed:  issued,
				Err:        err,
			}
		}

		end := offset + chunkSize
		if end > len(codes) {
			end = len(codes)
		}

		chunk := make([]models.Coupon, 0, end-offset)
		for _, code := range codes[offset:end] {
			chunk = append(chunk, models.Coupon{
				CouponCode: code,
				AssetID:    req.AssetID,
				AssetName:  req.AssetName,
				BatchID:    batch.ID,
				Status:     models.StatusIssued,
				CreatedAt:  now,
			})
		}

		if err := s.DB.InsertCouponChunk(ctx, chunk); err != nil {
			if errors.Is(err, db.ErrCodeCollision) {
				// A collision means the single-writer invariant was
				// violated; retrying would collide again.
				fmt.Printf("Code collision for %s at serial %d; issuance invariant violated\n",
					req.UnitLabel, startSerial+uint64(offset))
			}
			if issued > 0 {
				status = "partial"
			}
			return nil, &ChunkError{
				ChunkStart: startSerial + uint64(offset),
				Committed:  issued,
				Err:        err,
			}
		}

		issued += end - offset
		metrics.RecordCouponsIssued(req.UnitLabel, end-offset)
		fmt.Printf("Issued %d/%d coupons for batch %d (%s)\n", issued, req.Quantity, batch.ID, req.UnitLabel)

		if s.OnProgress != nil {
			s.OnProgress(issued, req.Quantity)
		}
		if s.Kafka != nil {
			err := s.Kafka.PublishBatchProgress(models.BatchProgressEvent{
				BatchID:   batch.ID,
				UnitLabel: req.UnitLabel,
				Issued:    issued,
				Total:     req.Quantity,
			})
			if err != nil {
				fmt.Printf("Kafka publish error (batch progress): %v\n", err)
			}
		}
	}

	status = "success"
	return &models.BatchResult{
		BatchID:     batch.ID,
		UnitLabel:   req.UnitLabel,
		StartSerial: startSerial,
		Requested:   req.Quantity,
		Issued:      issued,
		Codes:       codes,
	}, nil
}

// ---------------- READ SIDE ----------------

func (s *IssuerService) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.DB.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("coupon %s not found: %w", code, err)
	}
	return coupon, nil
}

func (s *IssuerService) GetBatch(ctx context.Context, id int64) (*models.MintBatch, error) {
	batch, err := s.DB.GetMintBatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("batch %d not found: %w", id, err)
	}
	return batch, nil
}

func (s *IssuerService) ListBatches(ctx context.Context) ([]models.MintBatch, error) {
	return s.DB.ListMintBatches(ctx)
}

func (s *IssuerService) ListBatchCoupons(ctx context.Context, batchID int64) ([]models.Coupon, error) {
	if _, err := s.DB.GetMintBatch(ctx, batchID); err != nil {
		return nil, fmt.Errorf("batch %d not found: %w", batchID, err)
	}
	return s.DB.ListCouponsByBatch(ctx, batchID)
}

func (s *IssuerService) GetTotalCouponsCount(ctx context.Context) (int, error) {
	return s.DB.GetTotalCouponsCount(ctx)
}
