package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/utils"
)

// Ensure BadgerCache implements domain.Cache
var _ domain.Cache = (*BadgerCache)(nil)

// ScanEntry is the cached result of one successful layer scan
type ScanEntry struct {
	URL       string    `json:"url"`
	Revision  string    `json:"revision"`
	Layers    []string  `json:"layers"`
	ScannedAt time.Time `json:"scanned_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true if the entry has expired
func (e *ScanEntry) IsExpired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Encode serializes the entry for storage
func (e *ScanEntry) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeScanEntry parses a stored entry
func DecodeScanEntry(data []byte) (*ScanEntry, error) {
	var e ScanEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode scan entry: %w", err)
	}
	return &e, nil
}

// Options contains cache configuration options
type Options struct {
	// Directory holds the badger files; required unless InMemory
	Directory string
	InMemory  bool
	// Logger receives badger warnings and errors; nil silences badger
	Logger *utils.Logger
}
