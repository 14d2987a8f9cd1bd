package snapshot

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the persisted form of one extension's latest SET state.
type Record struct {
	Extension string         `json:"extension"`
	Version   int64          `json:"version"`
	Data      map[string]any `json:"data"`
	SavedAt   time.Time      `json:"saved_at"`
}

// Encode serializes a record for a Store.
func Encode(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", r.Extension, err)
	}
	return data, nil
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return r, nil
}
