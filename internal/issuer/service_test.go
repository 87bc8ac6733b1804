package issuer_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-minting/internal/issuer"
	issuerdb "ms-minting/internal/issuer/db"
	"ms-minting/internal/models"
)

func setupTestDB(t *testing.T) (*issuerdb.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.MintBatch)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create token_mint_history table: %v", err)
	}

	_, err = bunDB.NewCreateTable().Model((*models.Coupon)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create esg_coupons table: %v", err)
	}

	return &issuerdb.DB{Bun: bunDB}, bunDB
}

// fakeLock is an in-process LabelLock so service tests don't need Redis.
type fakeLock struct {
	denied bool
	locks  map[string]string
}

func newFakeLock() *fakeLock {
	return &fakeLock{locks: map[string]string{}}
}

func (f *fakeLock) LockLabel(_ context.Context, unitLabel, holderID string) (bool, error) {
	if f.denied {
		return false, nil
	}
	if _, held := f.locks[unitLabel]; held {
		return false, nil
	}
	f.locks[unitLabel] = holderID
	return true, nil
}

func (f *fakeLock) UnlockLabel(_ context.Context, unitLabel, holderID string) error {
	if f.locks[unitLabel] == holderID {
		delete(f.locks, unitLabel)
	}
	return nil
}

// flakyDB fails every chunk insert after the first failAfter chunks.
type flakyDB struct {
	*issuerdb.DB
	failAfter int
	chunks    int
}

func (f *flakyDB) InsertCouponChunk(ctx context.Context, coupons []models.Coupon) error {
	if f.chunks >= f.failAfter {
		return errors.New("connection reset by peer")
	}
	f.chunks++
	return f.DB.InsertCouponChunk(ctx, coupons)
}

func newService(store issuer.DBLayer) *issuer.IssuerService {
	return issuer.NewIssuerService(store, newFakeLock(), nil)
}

func TestIssueBatch_FreshLabel(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	svc := newService(store)
	result, err := svc.IssueBatch(context.Background(), models.BatchRequest{
		Quantity:    3,
		Description: "pilot run",
		AssetID:     7310293,
		AssetName:   "ESG-Gold",
		UnitLabel:   "PAM",
	}, "issuer-account")
	require.NoError(t, err)

	assert.Equal(t, []string{"PAM-1", "PAM-2", "PAM-3"}, result.Codes)
	assert.Equal(t, uint64(1), result.StartSerial)
	assert.Equal(t, 3, result.Issued)
	assert.Equal(t, 3, result.Requested)

	// Batch row persisted with issuer identity
	batch, err := store.GetMintBatch(context.Background(), result.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "issuer-account", batch.Issuer)
	assert.Equal(t, "PAM", batch.UnitLabel)
	assert.Equal(t, 3, batch.Quantity)

	// Coupon rows persisted in ISSUED state with the batch reference
	coupons, err := store.ListCouponsByBatch(context.Background(), result.BatchID)
	require.NoError(t, err)
	require.Len(t, coupons, 3)
	for _, c := range coupons {
		assert.Equal(t, models.StatusIssued, c.Status)
		assert.Equal(t, result.BatchID, c.BatchID)
		assert.Equal(t, int64(7310293), c.AssetID)
	}
}

func TestIssueBatch_InvalidQuantity(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	svc := newService(store)
	for _, quantity := range []int{0, -5} {
		_, err := svc.IssueBatch(context.Background(), models.BatchRequest{
			Quantity:  quantity,
			UnitLabel: "PAM",
		}, "issuer-account")
		assert.ErrorIs(t, err, issuer.ErrInvalidQuantity)
	}

	// Rejected before any persistence: no batch row was created
	batches, err := store.ListMintBatches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestIssueBatch_InvalidUnitLabel(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	svc := newService(store)
	for _, label := range []string{"", "PAM-GOLD", "PAM POINT", "waytoolongforalabelxx"} {
		_, err := svc.IssueBatch(context.Background(), models.BatchRequest{
			Quantity:  1,
			UnitLabel: label,
		}, "issuer-account")
		assert.ErrorIs(t, err, issuer.ErrInvalidUnitLabel, "label %q", label)
	}
}

func TestIssueBatch_SerialContinuation(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	svc := newService(store)
	ctx := context.Background()

	// Fill serials 1..61; the last single-digit code is PAM-z
	first, err := svc.IssueBatch(ctx, models.BatchRequest{
		Quantity: 61, AssetID: 1, AssetName: "ESG-Gold", UnitLabel: "PAM",
	}, "issuer-account")
	require.NoError(t, err)
	assert.Equal(t, "PAM-z", first.Codes[60])

	// The next run crosses the base62 digit boundary: serial 62 -> "10"
	second, err := svc.IssueBatch(ctx, models.BatchRequest{
		Quantity: 2, AssetID: 1, AssetName: "ESG-Gold", UnitLabel: "PAM",
	}, "issuer-account")
	require.NoError(t, err)
	assert.Equal(t, []string{"PAM-10", "PAM-11"}, second.Codes)
	assert.Equal(t, uint64(62), second.StartSerial)

	// Monotonicity: every serial of the second batch is strictly greater
	lastFirst, err := issuer.DecodeBase62(first.Codes[60][len("PAM-"):])
	require.NoError(t, err)
	for _, code := range second.Codes {
		serial, err := issuer.DecodeBase62(code[len("PAM-"):])
		require.NoError(t, err)
		assert.Greater(t, serial, lastFirst)
	}
}

func TestIssueBatch_LabelsAreIndependentNamespaces(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	svc := newService(store)
	ctx := context.Background()

	_, err := svc.IssueBatch(ctx, models.BatchRequest{
		Quantity: 5, AssetID: 1, AssetName: "ESG-Gold", UnitLabel: "PAM",
	}, "issuer-account")
	require.NoError(t, err)

	// A different label starts over at serial 1 even though the serials overlap
	result, err := svc.IssueBatch(ctx, models.BatchRequest{
		Quantity: 2, AssetID: 2, AssetName: "PAM-POINT", UnitLabel: "GOLD",
	}, "issuer-account")
	require.NoError(t, err)
	assert.Equal(t, []string{"GOLD-1", "GOLD-2"}, result.Codes)
}

func TestIssueBatch_ChunkingTransparency(t *testing.T) {
	// The produced code set must not depend on the internal chunk size
	var codeSets [][]string
	for _, chunkSize := range []int{1, 3, 100} {
		store, bunDB := setupTestDB(t)
		svc := newService(store)
		svc.ChunkSize = chunkSize

		result, err := svc.IssueBatch(context.Background(), models.BatchRequest{
			Quantity: 7, AssetID: 1, AssetName: "ESG-Gold", UnitLabel: "PAM",
		}, "issuer-account")
		require.NoError(t, err)
		codeSets = append(codeSets, result.Codes)
		bunDB.Close()
	}

	assert.Equal(t, codeSets[0], codeSets[1])
	assert.Equal(t, codeSets[0], codeSets[2])
}

func TestIssueBatch_ProgressPerChunk(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	svc := newService(store)
	svc.ChunkSize = 2

	var progress [][2]int
	svc.OnProgress = func(issued, total int) {
		progress = append(progress, [2]int{issued, total})
	}

	_, err := svc.IssueBatch(context.Background(), models.BatchRequest{
		Quantity: 5, AssetID: 1, AssetName: "ESG-Gold", UnitLabel: "PAM",
	}, "issuer-account")
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, progress)
}

func TestIssueBatch_ResumeAfterChunkFailure(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()

	// First invocation fails on its second chunk, after 2 committed coupons
	flaky := &flakyDB{DB: store, failAfter: 1}
	svc := newService(flaky)
	svc.ChunkSize = 2

	_, err := svc.IssueBatch(ctx, models.BatchRequest{
		Quantity: 6, AssetID: 1, AssetName: "ESG-Gold", UnitLabel: "PAM",
	}, "issuer-account")
	require.Error(t, err)

	var chunkErr *issuer.ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, 2, chunkErr.Committed)
	assert.Equal(t, uint64(3), chunkErr.ChunkStart)

	// The committed chunk survives: serials 1 and 2 exist
	count, err := store.CountCouponsWithPrefix(ctx, "PAM")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Re-invocation resumes strictly after the highest committed serial
	retry := newService(store)
	retry.ChunkSize = 2
	result, err := retry.IssueBatch(ctx, models.BatchRequest{
		Quantity: 4, AssetID: 1, AssetName: "ESG-Gold", UnitLabel: "PAM",
	}, "issuer-account")
	require.NoError(t, err)
	assert.Equal(t, []string{"PAM-3", "PAM-4", "PAM-5", "PAM-6"}, result.Codes)

	// No duplicates across the partial batch and the resumed batch
	count, err = store.CountCouponsWithPrefix(ctx, "PAM")
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestIssueBatch_LabelLocked(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	lock := newFakeLock()
	lock.denied = true
	svc := issuer.NewIssuerService(store, lock, nil)

	_, err := svc.IssueBatch(context.Background(), models.BatchRequest{
		Quantity: 1, UnitLabel: "PAM",
	}, "issuer-account")
	assert.ErrorIs(t, err, issuer.ErrLabelLocked)
}

func TestIssueBatch_CollisionIsFatal(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	ctx := context.Background()

	// Seed a gapped row: with one existing PAM coupon the next run starts
	// at serial 2, whose code is already taken. This is exactly the state
	// a violated single-writer invariant produces.
	seed := models.Coupon{
		CouponCode: "PAM-2",
		AssetID:    1,
		BatchID:    999,
		Status:     models.StatusIssued,
	}
	_, err := bunDB.NewInsert().Model(&seed).Exec(ctx)
	require.NoError(t, err)

	svc := newService(store)
	_, err = svc.IssueBatch(ctx, models.BatchRequest{
		Quantity: 1, AssetID: 1, AssetName: "ESG-Gold", UnitLabel: "PAM",
	}, "issuer-account")
	require.Error(t, err)
	assert.ErrorIs(t, err, issuerdb.ErrCodeCollision)
}

func TestIssueBatch_ReleasesLockOnFailure(t *testing.T) {
	store, bunDB := setupTestDB(t)
	defer bunDB.Close()

	lock := newFakeLock()
	flaky := &flakyDB{DB: store, failAfter: 0}
	svc := issuer.NewIssuerService(flaky, lock, nil)

	_, err := svc.IssueBatch(context.Background(), models.BatchRequest{
		Quantity: 1, AssetID: 1, AssetName: "ESG-Gold", UnitLabel: "PAM",
	}, "issuer-account")
	require.Error(t, err)

	// The label must be lockable again after the failed run
	ok, err := lock.LockLabel(context.Background(), "PAM", "again")
	require.NoError(t, err)
	assert.True(t, ok, fmt.Sprintf("label should be unlocked, held: %v", lock.locks))
}
