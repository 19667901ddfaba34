package domain

// PoolSnapshot represents one observation of a monitored pool's market
// state. Corresponds to pool_snapshots table in PostgreSQL and ClickHouse.
type PoolSnapshot struct {
	ID           int64   // BIGSERIAL primary key (PostgreSQL only)
	PoolID       string  // AMM account address
	TimestampMs  int64   // Unix timestamp in milliseconds
	BaseMint     string  // base token mint address
	QuoteMint    string  // quote token mint address
	BaseSymbol   string  // resolved base token symbol
	QuoteSymbol  string  // resolved quote token symbol
	BaseReserve  float64 // base vault balance, UI units
	QuoteReserve float64 // quote vault balance, UI units
	Price        float64 // quote per base
	TVL          float64 // total value locked, quote units
	BuyPressure  float64 // cumulative swap quote-in volume, UI units
	SellPressure float64 // cumulative swap base-in volume, UI units
	CreatedAt    int64   // record creation timestamp (ms)
}

// PoolRecord represents a tracked pool's identity and lifecycle outcome.
// Corresponds to pools table in PostgreSQL.
type PoolRecord struct {
	PoolID            string // PRIMARY KEY, AMM account address
	BaseMint          string
	QuoteMint         string
	BaseVault         string
	QuoteVault        string
	LPMint            string
	PoolOpenTime      int64  // Unix seconds, from account state
	DetectedAtMs      int64  // first observation timestamp (ms)
	Stage             string // current lifecycle stage
	MissedTeeUp       bool   // opened before an initialized sighting
	TimeToStatusSixMs *int64 // initialized-to-open delay, NULL if missed
	CreatedAt         int64  // record creation timestamp (ms)
}
