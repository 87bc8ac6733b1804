package models

// AssetInfo is the subset of indexer asset params the dashboards show.
type AssetInfo struct {
	AssetID   int64  `json:"asset_id"`
	Name      string `json:"name"`
	UnitName  string `json:"unit_name"`
	Total     uint64 `json:"total"`
	Decimals  uint32 `json:"decimals"`
	Creator   string `json:"creator"`
	Frozen    bool   `json:"frozen"`
	URL       string `json:"url,omitempty"`
	MetaHash  string `json:"metadata_hash,omitempty"`
	Clawback  string `json:"clawback,omitempty"`
	Manager   string `json:"manager,omitempty"`
	Reserve   string `json:"reserve,omitempty"`
	Destroyed bool   `json:"destroyed"`
}

// AccountBalance is an account's algo balance plus its holding of one
// asset, as reported by algod.
type AccountBalance struct {
	Address      string `json:"address"`
	MicroAlgos   uint64 `json:"micro_algos"`
	AssetID      int64  `json:"asset_id,omitempty"`
	AssetAmount  uint64 `json:"asset_amount"`
	AssetOptedIn bool   `json:"asset_opted_in"`
}
