package models

// StockUpdate represents a single market tick for a stock symbol as it
// arrives on the feed.
type StockUpdate struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix micro
	SeqID     int64   `json:"seq_id"`    // monotonic counter per symbol
}

// PriceSnapshot is the latest known price of a symbol, as stored for late readers.
type PriceSnapshot struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	UpdatedAt int64   `json:"updated_at"` // unix micro
}

// PriceAlert is emitted when a price moves more than the configured
// threshold relative to the previous tick.
type PriceAlert struct {
	Symbol    string  `json:"symbol"`
	Previous  float64 `json:"previous"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"` // relative, e.g. 0.05 for +5%
	Timestamp int64   `json:"timestamp"`
}
