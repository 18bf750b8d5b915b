package models

// CandlesHistoryRequest carries the path and query parameters of the candles
// history endpoint.
type CandlesHistoryRequest struct {
	AssetPairID  string `param:"assetPairId" validate:"required"`
	PriceType    string `param:"priceType" validate:"required"`
	TimeInterval string `param:"timeInterval" validate:"required"`
	FromMoment   string `query:"fromMoment" validate:"required"`
	ToMoment     string `query:"toMoment" validate:"required"`
}

// CandlesHistoryResponse is the payload of the candles history endpoint.
type CandlesHistoryResponse struct {
	AssetPairID  string   `json:"assetPairId"`
	PriceType    string   `json:"priceType"`
	TimeInterval string   `json:"timeInterval"`
	History      []Candle `json:"history"`
}

// IsAliveResponse is the payload of the liveness endpoint.
type IsAliveResponse struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Env         string          `json:"env"`
	Persistence PersistenceInfo `json:"persistence"`
}
