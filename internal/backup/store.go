package backup

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"grimm.is/aliasync/internal/errors"
)

// ErrExists is returned when an artifact name is already taken. Artifacts are
// write-once; a store never overwrites.
var ErrExists = errors.New("artifact already exists")

// ErrNotExist is returned when reading or deleting an unknown artifact.
var ErrNotExist = errors.New("artifact does not exist")

// Entry describes a stored artifact.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is a directory-like blob store for artifacts.
type Store interface {
	Write(name string, data []byte) error
	Read(name string) ([]byte, error)
	List() ([]Entry, error)
	Delete(name string) error
}

// FileStore keeps artifacts as files in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created lazily.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the backing directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", errors.Newf("invalid artifact name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Write creates name exclusively. A partial file is removed on failure.
func (s *FileStore) Write(name string, data []byte) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return errors.Wrap(err, "failed to create backup directory")
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		if os.IsExist(err) {
			return errors.Wrapf(ErrExists, "%s", name)
		}
		return errors.Wrap(err, "failed to create backup")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(p)
		return errors.Wrap(err, "failed to write backup")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(p)
		return errors.Wrap(err, "failed to sync backup")
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return errors.Wrap(err, "failed to close backup")
	}
	return nil
}

// Read returns the content of name.
func (s *FileStore) Read(name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotExist, "%s", name)
	}
	return data, err
}

// List returns the regular files in the directory. A missing directory is empty.
func (s *FileStore) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read backup directory")
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return entries, nil
}

// Delete removes name.
func (s *FileStore) Delete(name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotExist, "%s", name)
		}
		return errors.Wrap(err, "failed to delete backup")
	}
	return nil
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	// FailWrites makes every Write fail, simulating unavailable storage.
	FailWrites bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Write(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errors.New("storage unavailable")
	}
	if _, exists := s.blobs[name]; exists {
		return errors.Wrapf(ErrExists, "%s", name)
	}
	s.blobs[name] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Read(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotExist, "%s", name)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) List() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, 0, len(s.blobs))
	for name, data := range s.blobs {
		entries = append(entries, Entry{Name: name, Size: int64(len(data))})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (s *MemoryStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[name]; !ok {
		return errors.Wrapf(ErrNotExist, "%s", name)
	}
	delete(s.blobs, name)
	return nil
}
