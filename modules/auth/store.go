package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/strautils/strava/common/model"
)

// CredentialStore is persistent storage for athlete auth info, keyed by
// athlete id. Implementations may be a secret vault, an encrypted file, or a
// database; the client only requires read-after-write consistency per key.
//
// Get returns (nil, nil) when no credential is stored for the athlete.
type CredentialStore interface {
	Get(ctx context.Context, athleteID int64) (*model.AthleteAuthInfo, error)
	Put(ctx context.Context, info *model.AthleteAuthInfo) error
}

// MemoryStore is a CredentialStore backed by a process-local map. Useful for
// tests and single-run tools.
type MemoryStore struct {
	mu    sync.RWMutex
	infos map[int64]model.AthleteAuthInfo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{infos: make(map[int64]model.AthleteAuthInfo)}
}

func (s *MemoryStore) Get(_ context.Context, athleteID int64) (*model.AthleteAuthInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.infos[athleteID]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (s *MemoryStore) Put(_ context.Context, info *model.AthleteAuthInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos[info.AthleteID] = *info
	return nil
}

// FileStore is a CredentialStore backed by a single JSON file holding all
// athletes' credentials. The file is written with 0600 permissions.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context, athleteID int64) (*model.AthleteAuthInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.load()
	if err != nil {
		return nil, err
	}
	info, ok := infos[strconv.FormatInt(athleteID, 10)]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (s *FileStore) Put(_ context.Context, info *model.AthleteAuthInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.load()
	if err != nil {
		return err
	}
	infos[strconv.FormatInt(info.AthleteID, 10)] = *info

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential file: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create credential dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

func (s *FileStore) load() (map[string]model.AthleteAuthInfo, error) {
	infos := make(map[string]model.AthleteAuthInfo)
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return infos, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}
	if len(data) == 0 {
		return infos, nil
	}
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, fmt.Errorf("failed to decode credential file: %w", err)
	}
	return infos, nil
}
