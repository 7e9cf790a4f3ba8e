package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/ruralcare/carenav/internal/errors"
)

// Store persists session records between requests and restarts.
type Store interface {
	Save(ctx context.Context, rec Record) error
	// Load returns a SESSION_NOT_FOUND error for unknown or expired ids.
	Load(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
}

// snapshot is the on-disk layout of a MemoryStore.
type snapshot struct {
	Records   []Record  `json:"records"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MemoryStore keeps records in process. With a data dir it can be written
// to and reloaded from a JSON file across restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	ttl     time.Duration
	now     func() time.Time
	path    string
}

func NewMemoryStore(dataDir string, ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]Record),
		ttl:     ttl,
		now:     time.Now,
	}
	if dataDir != "" {
		s.path = filepath.Join(dataDir, "sessions.json")
	}
	return s
}

func (s *MemoryStore) Save(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok || s.expired(rec) {
		return Record{}, apperrors.NewSessionNotFoundError(id)
	}
	return rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Len reports how many records are held, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Prune drops expired records and returns how many were removed.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.records {
		if s.expired(rec) {
			delete(s.records, id)
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(rec Record) bool {
	return s.ttl > 0 && s.now().Sub(rec.UpdatedAt) > s.ttl
}

// LoadFromDisk loads the snapshot file. Returns nil if there is no data
// dir or the file doesn't exist.
func (s *MemoryStore) LoadFromDisk() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode sessions: %w", err)
	}

	s.records = make(map[string]Record, len(snap.Records))
	for _, rec := range snap.Records {
		if !s.expired(rec) {
			s.records[rec.ID] = rec
		}
	}
	return nil
}

// SaveToDisk writes every live record to the snapshot file.
func (s *MemoryStore) SaveToDisk() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	snap := snapshot{
		Records:   make([]Record, 0, len(s.records)),
		UpdatedAt: s.now(),
	}
	for _, rec := range s.records {
		if !s.expired(rec) {
			snap.Records = append(snap.Records, rec)
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
