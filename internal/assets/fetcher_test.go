package assets

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-minting/internal/logger"
)

const accountJSON = `{
	"address": "ISSUERADDRESS",
	"amount": 4999000,
	"assets": [
		{"asset-id": 7310293, "amount": 250, "is-frozen": false},
		{"asset-id": 99, "amount": 1, "is-frozen": false}
	]
}`

const assetJSON = `{
	"asset": {
		"index": 7310293,
		"deleted": false,
		"params": {
			"name": "ESG-Gold",
			"unit-name": "PAM",
			"total": 1000000,
			"decimals": 0,
			"creator": "ISSUERADDRESS",
			"default-frozen": false
		}
	}
}`

func newTestFetcher(serverURL string) *Fetcher {
	return NewFetcher(&http.Client{}, serverURL, serverURL, "test-token", logger.NewLogger())
}

func TestFetchAccountBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/accounts/ISSUERADDRESS", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("X-Algo-API-Token"))
		w.Write([]byte(accountJSON))
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.URL)
	balance, err := fetcher.FetchAccountBalance("ISSUERADDRESS", 7310293)
	require.NoError(t, err)
	assert.Equal(t, uint64(4999000), balance.MicroAlgos)
	assert.Equal(t, uint64(250), balance.AssetAmount)
	assert.True(t, balance.AssetOptedIn)
}

func TestFetchAccountBalance_NotOptedIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(accountJSON))
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.URL)
	balance, err := fetcher.FetchAccountBalance("ISSUERADDRESS", 12345)
	require.NoError(t, err)
	assert.False(t, balance.AssetOptedIn)
	assert.Equal(t, uint64(0), balance.AssetAmount)
}

func TestFetchAssetInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/assets/7310293", r.URL.Path)
		w.Write([]byte(assetJSON))
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.URL)
	info, err := fetcher.FetchAssetInfo(7310293)
	require.NoError(t, err)
	assert.Equal(t, "ESG-Gold", info.Name)
	assert.Equal(t, "PAM", info.UnitName)
	assert.Equal(t, uint64(1000000), info.Total)
	assert.False(t, info.Destroyed)
}

func TestFetch_NotFoundIsPermanent(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.URL)
	_, err := fetcher.FetchAssetInfo(404404)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "404 must not be retried")
}

func TestFetch_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(assetJSON))
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.URL)
	info, err := fetcher.FetchAssetInfo(7310293)
	require.NoError(t, err)
	assert.Equal(t, "ESG-Gold", info.Name)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
