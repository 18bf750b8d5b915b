package models

// PersistenceInfo is the health snapshot of the write-behind persistence
// pipeline, exposed read-only for external reporting.
type PersistenceInfo struct {
	TotalCandlesPersistedCount    int64   `json:"totalCandlesPersistedCount"`
	TotalCandleRowsPersistedCount int64   `json:"totalCandleRowsPersistedCount"`
	BatchesToPersistQueueLength   int     `json:"batchesToPersistQueueLength"`
	CandlesToDispatchQueueLength  int     `json:"candlesToDispatchQueueLength"`
	AveragePersistTimeMs          float64 `json:"averagePersistTimeMs"`
	AverageCandlesPersistedPerSec float64 `json:"averageCandlesPersistedPerSecond"`
}
