/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/Seednode/bellpath/puzzle"
)

// Record is the persisted identity of a session. It survives restarts and is
// cleared on explicit disconnect.
type Record struct {
	Role     puzzle.Role `toml:"role"`
	RoomCode string      `toml:"room_code"`
	HostID   string      `toml:"host_id,omitempty"`
}

// Store persists a single Record.
type Store interface {
	Load() (Record, bool, error)
	Save(Record) error
	Clear() error
}

var memoryStores = struct {
	sync.Mutex
	records map[string]Record
}{records: make(map[string]Record)}

// MemoryStore is process-wide storage keyed by namespace. Two stores with the
// same namespace see the same record.
type MemoryStore struct {
	namespace string
}

func NewMemoryStore(namespace string) *MemoryStore {
	return &MemoryStore{namespace: namespace}
}

func (s *MemoryStore) Load() (Record, bool, error) {
	memoryStores.Lock()
	defer memoryStores.Unlock()

	r, ok := memoryStores.records[s.namespace]
	return r, ok, nil
}

func (s *MemoryStore) Save(r Record) error {
	memoryStores.Lock()
	defer memoryStores.Unlock()

	memoryStores.records[s.namespace] = r
	return nil
}

func (s *MemoryStore) Clear() error {
	memoryStores.Lock()
	defer memoryStores.Unlock()

	delete(memoryStores.records, s.namespace)
	return nil
}

// FileStore keeps records for several namespaces in one TOML file, one table
// per namespace.
type FileStore struct {
	mu        sync.Mutex
	path      string
	namespace string
}

func NewFileStore(path, namespace string) *FileStore {
	return &FileStore{path: path, namespace: namespace}
}

func (s *FileStore) readAll() (map[string]Record, error) {
	all := make(map[string]Record)

	_, err := toml.DecodeFile(s.path, &all)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return all, nil
	case err != nil:
		return nil, fmt.Errorf("session: read %s: %w", s.path, err)
	}

	return all, nil
}

func (s *FileStore) writeAll(all map[string]Record) error {
	if len(all) == 0 {
		err := os.Remove(s.path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(all); err != nil {
		tmp.Close()
		return fmt.Errorf("session: encode %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) Load() (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return Record{}, false, err
	}

	r, ok := all[s.namespace]
	return r, ok, nil
}

func (s *FileStore) Save(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	all[s.namespace] = r

	return s.writeAll(all)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	if _, ok := all[s.namespace]; !ok {
		return nil
	}
	delete(all, s.namespace)

	return s.writeAll(all)
}
