package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ms-minting/internal/logger"
	"ms-minting/internal/models"
)

// ErrNotFound is returned for unknown accounts and assets.
var ErrNotFound = errors.New("not found on ledger")

// Fetcher reads account balances and asset params from algod and the
// indexer. All calls go through one shared retry-with-backoff policy;
// the ledger endpoints are public rate-limited services and transient
// failures are the norm.
type Fetcher struct {
	client     *http.Client
	algodURL   string
	indexerURL string
	apiToken   string
	logger     *logger.Logger
}

func NewFetcher(client *http.Client, algodURL, indexerURL, apiToken string, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:     client,
		algodURL:   strings.TrimRight(algodURL, "/"),
		indexerURL: strings.TrimRight(indexerURL, "/"),
		apiToken:   apiToken,
		logger:     log,
	}
}

// getJSON performs one GET with the uniform retry policy and decodes the
// body into dest. 404s are permanent and come back as ErrNotFound.
func (f *Fetcher) getJSON(url string, dest interface{}) error {
	operation := func() error {
		req, err := http.NewRequest("GET", url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create ledger request: %w", err))
		}
		if f.apiToken != "" {
			req.Header.Set("X-Algo-API-Token", f.apiToken)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			f.logger.Warn("LEDGER", fmt.Sprintf("Ledger request failed, will retry: %v", err))
			return err
		}
		defer func(body io.ReadCloser) {
			if err := body.Close(); err != nil {
				f.logger.Error("LEDGER", fmt.Sprintf("Failed to close ledger response body: %v", err))
			}
		}(resp.Body)

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(ErrNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("ledger returned status %d", resp.StatusCode)
			f.logger.Warn("LEDGER", fmt.Sprintf("%v, will retry", err))
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode ledger response: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second

	return backoff.Retry(operation, backoff.WithMaxRetries(policy, 4))
}

// algod /v2/accounts/{address} response, trimmed to what the dashboards use
type algodAccount struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
	Assets  []struct {
		AssetID int64  `json:"asset-id"`
		Amount  uint64 `json:"amount"`
	} `json:"assets"`
}

// indexer /v2/assets/{id} response
type indexerAsset struct {
	Asset struct {
		Index   int64 `json:"index"`
		Deleted bool  `json:"deleted"`
		Params  struct {
			Name          string `json:"name"`
			UnitName      string `json:"unit-name"`
			Total         uint64 `json:"total"`
			Decimals      uint32 `json:"decimals"`
			Creator       string `json:"creator"`
			URL           string `json:"url"`
			MetadataHash  string `json:"metadata-hash"`
			Manager       string `json:"manager"`
			Reserve       string `json:"reserve"`
			Clawback      string `json:"clawback"`
			DefaultFrozen bool   `json:"default-frozen"`
		} `json:"params"`
	} `json:"asset"`
}

// FetchAccountBalance returns an account's algo balance, plus its holding
// of assetID when assetID is non-zero.
func (f *Fetcher) FetchAccountBalance(address string, assetID int64) (*models.AccountBalance, error) {
	url := fmt.Sprintf("%s/v2/accounts/%s", f.algodURL, address)
	f.logger.Debug("LEDGER", fmt.Sprintf("Fetching account: %s", url))

	var account algodAccount
	if err := f.getJSON(url, &account); err != nil {
		return nil, fmt.Errorf("failed to fetch account %s: %w", address, err)
	}

	balance := &models.AccountBalance{
		Address:    account.Address,
		MicroAlgos: account.Amount,
		AssetID:    assetID,
	}
	for _, holding := range account.Assets {
		if holding.AssetID == assetID {
			balance.AssetAmount = holding.Amount
			balance.AssetOptedIn = true
			break
		}
	}

	f.logger.Info("LEDGER", fmt.Sprintf("Account %s: %d microalgos", address, account.Amount))
	return balance, nil
}

// FetchAssetInfo returns the indexer's view of an asset's params.
func (f *Fetcher) FetchAssetInfo(assetID int64) (*models.AssetInfo, error) {
	url := fmt.Sprintf("%s/v2/assets/%d", f.indexerURL, assetID)
	f.logger.Debug("LEDGER", fmt.Sprintf("Fetching asset: %s", url))

	var asset indexerAsset
	if err := f.getJSON(url, &asset); err != nil {
		return nil, fmt.Errorf("failed to fetch asset %d: %w", assetID, err)
	}

	params := asset.Asset.Params
	info := &models.AssetInfo{
		AssetID:   asset.Asset.Index,
		Name:      params.Name,
		UnitName:  params.UnitName,
		Total:     params.Total,
		Decimals:  params.Decimals,
		Creator:   params.Creator,
		Frozen:    params.DefaultFrozen,
		URL:       params.URL,
		MetaHash:  params.MetadataHash,
		Clawback:  params.Clawback,
		Manager:   params.Manager,
		Reserve:   params.Reserve,
		Destroyed: asset.Asset.Deleted,
	}

	f.logger.Info("LEDGER", fmt.Sprintf("Asset %d: %s (%s)", info.AssetID, info.Name, info.UnitName))
	return info, nil
}
