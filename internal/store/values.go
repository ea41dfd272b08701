package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ValuesFilename is the fetched-values file name inside the data directory.
const ValuesFilename = "values.jsonl"

// ValueRecord is one fetched value appended to the value log.
type ValueRecord struct {
	Kind      string    `json:"kind"` // price, benchmark, currency
	SourceID  int64     `json:"source_id,omitempty"`
	Value     float64   `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ValueLog appends fetched values as JSON lines. It implements the fetcher's
// sink; downstream consumers import the file from here.
type ValueLog struct {
	mu       sync.Mutex
	filePath string
}

// NewValueLog creates a value log rooted at dataDir.
func NewValueLog(dataDir string) *ValueLog {
	return &ValueLog{
		filePath: filepath.Join(dataDir, ValuesFilename),
	}
}

// StorePrice appends a price value.
func (v *ValueLog) StorePrice(id int64, value float64, at time.Time) error {
	return v.append(ValueRecord{Kind: "price", SourceID: id, Value: value, FetchedAt: at})
}

// StoreBenchmark appends a benchmark value.
func (v *ValueLog) StoreBenchmark(id int64, value float64, at time.Time) error {
	return v.append(ValueRecord{Kind: "benchmark", SourceID: id, Value: value, FetchedAt: at})
}

// StoreCurrencyRate appends an exchange-rate value.
func (v *ValueLog) StoreCurrencyRate(value float64, at time.Time) error {
	return v.append(ValueRecord{Kind: "currency", Value: value, FetchedAt: at})
}

func (v *ValueLog) append(rec ValueRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(v.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	file, err := os.OpenFile(v.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open value log: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal value record: %w", err)
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write value record: %w", err)
	}
	return nil
}
