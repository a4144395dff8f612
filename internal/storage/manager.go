package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/macapark/dashboard/internal/models"
)

// File statuses.
const (
	StatusStored   = "stored"
	StatusApplied  = "applied"
	StatusRejected = "rejected"
)

const indexFile = "index.json"

// ErrNotFound is returned for unknown file ids.
var ErrNotFound = errors.New("file not found")

// Store keeps imported lot definition files.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	SaveBytes(name string, data []byte) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	Read(id string) ([]byte, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	SetStatus(id, status, lotID string) (*models.FileInfo, error)
}

// LocalStore implements Store on the local filesystem. File metadata is
// kept in an index next to the files so the recent list survives
// restarts.
type LocalStore struct {
	mu    sync.RWMutex
	dir   string
	files map[string]*models.FileInfo
	now   func() time.Time
}

// NewLocalStore creates dir if needed and loads its index.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating lot file directory: %w", err)
	}

	s := &LocalStore{
		dir:   dir,
		files: make(map[string]*models.FileInfo),
		now:   time.Now,
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save stores the contents of r under a new id.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.dir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: s.now(),
		Status:     StatusStored,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info
	if err := s.saveIndexLocked(); err != nil {
		return nil, err
	}
	return copyInfo(info), nil
}

// SaveBytes stores data under a new id.
func (s *LocalStore) SaveBytes(name string, data []byte) (*models.FileInfo, error) {
	return s.Save(name, bytes.NewReader(data))
}

// Get retrieves file metadata by id.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyInfo(info), nil
}

// Read returns the stored bytes of a file.
func (s *LocalStore) Read(id string) ([]byte, error) {
	s.mu.RLock()
	_, ok := s.files[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// List returns up to limit files, newest first. A non-positive limit
// returns everything.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, copyInfo(info))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].UploadedAt.Equal(list[j].UploadedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes a file and its metadata.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(filepath.Join(s.dir, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	delete(s.files, id)
	return s.saveIndexLocked()
}

// SetStatus records the outcome of importing a file.
func (s *LocalStore) SetStatus(id, status, lotID string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	info.Status = status
	info.LotID = lotID
	if err := s.saveIndexLocked(); err != nil {
		return nil, err
	}
	return copyInfo(info), nil
}

func (s *LocalStore) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file index: %w", err)
	}
	var list []*models.FileInfo
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parsing file index: %w", err)
	}
	for _, info := range list {
		if _, err := os.Stat(filepath.Join(s.dir, info.ID)); err == nil {
			s.files[info.ID] = info
		}
	}
	return nil
}

func (s *LocalStore) saveIndexLocked() error {
	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding file index: %w", err)
	}
	tmp := filepath.Join(s.dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing file index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, indexFile)); err != nil {
		return fmt.Errorf("writing file index: %w", err)
	}
	return nil
}

func copyInfo(info *models.FileInfo) *models.FileInfo {
	c := *info
	return &c
}
