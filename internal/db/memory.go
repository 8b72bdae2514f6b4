package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dpolishuk/coderag/internal/errs"
	"github.com/dpolishuk/coderag/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. Lists preserve insertion order.
type MemoryStore struct {
	mu         sync.RWMutex
	codebases  map[string]*models.Codebase
	files      map[string][]*models.SourceFile
	classes    map[string][]*models.CodeClass
	rels       map[string][]*models.CodeRelationship
	embeddings map[string][]*models.EmbeddingRecord
	metrics    map[string]*models.CodeMetrics
	users      map[string]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codebases:  map[string]*models.Codebase{},
		files:      map[string][]*models.SourceFile{},
		classes:    map[string][]*models.CodeClass{},
		rels:       map[string][]*models.CodeRelationship{},
		embeddings: map[string][]*models.EmbeddingRecord{},
		metrics:    map[string]*models.CodeMetrics{},
		users:      map[string]*models.User{},
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) CreateCodebase(_ context.Context, cb *models.Codebase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb.ID == "" {
		cb.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	cb.CreatedAt, cb.UpdatedAt = now, now
	c := *cb
	s.codebases[cb.ID] = &c
	return nil
}

func (s *MemoryStore) GetCodebase(_ context.Context, id string) (*models.Codebase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cb, ok := s.codebases[id]
	if !ok {
		return nil, fmt.Errorf("codebase %s: %w", id, errs.ErrNotFound)
	}
	c := *cb
	return &c, nil
}

func (s *MemoryStore) ListCodebases(_ context.Context, userID string) ([]*models.Codebase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Codebase{}
	for _, cb := range s.codebases {
		if userID == "" || cb.UserID == userID {
			c := *cb
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateCodebase(_ context.Context, cb *models.Codebase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codebases[cb.ID]; !ok {
		return fmt.Errorf("codebase %s: %w", cb.ID, errs.ErrNotFound)
	}
	cb.UpdatedAt = time.Now().UTC()
	c := *cb
	s.codebases[cb.ID] = &c
	return nil
}

func (s *MemoryStore) DeleteCodebase(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codebases[id]; !ok {
		return fmt.Errorf("codebase %s: %w", id, errs.ErrNotFound)
	}
	delete(s.codebases, id)
	return nil
}

func (s *MemoryStore) SaveFiles(_ context.Context, files []*models.SourceFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range files {
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		s.files[f.CodebaseID] = append(s.files[f.CodebaseID], f)
	}
	return nil
}

func (s *MemoryStore) ListFiles(_ context.Context, codebaseID string) ([]*models.SourceFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.SourceFile{}, s.files[codebaseID]...), nil
}

func (s *MemoryStore) GetFile(_ context.Context, id string) (*models.SourceFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, files := range s.files {
		for _, f := range files {
			if f.ID == id {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("file %s: %w", id, errs.ErrNotFound)
}

func (s *MemoryStore) DeleteFiles(_ context.Context, codebaseID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.files[codebaseID])
	delete(s.files, codebaseID)
	return n, nil
}

func (s *MemoryStore) SaveClasses(_ context.Context, classes []*models.CodeClass) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range classes {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		s.classes[c.CodebaseID] = append(s.classes[c.CodebaseID], c)
	}
	return nil
}

func (s *MemoryStore) ListClasses(_ context.Context, codebaseID string) ([]*models.CodeClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.CodeClass{}, s.classes[codebaseID]...), nil
}

func (s *MemoryStore) GetClass(_ context.Context, id string) (*models.CodeClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, classes := range s.classes {
		for _, c := range classes {
			if c.ID == id {
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("class %s: %w", id, errs.ErrNotFound)
}

func (s *MemoryStore) DeleteClasses(_ context.Context, codebaseID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.classes[codebaseID])
	delete(s.classes, codebaseID)
	return n, nil
}

func (s *MemoryStore) SaveRelationships(_ context.Context, rels []*models.CodeRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rels {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		s.rels[r.CodebaseID] = append(s.rels[r.CodebaseID], r)
	}
	return nil
}

func (s *MemoryStore) ListRelationships(_ context.Context, codebaseID string) ([]*models.CodeRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.CodeRelationship{}, s.rels[codebaseID]...), nil
}

func (s *MemoryStore) DeleteRelationships(_ context.Context, codebaseID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.rels[codebaseID])
	delete(s.rels, codebaseID)
	return n, nil
}

func (s *MemoryStore) SaveEmbeddings(_ context.Context, records []*models.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		s.embeddings[r.CodebaseID] = append(s.embeddings[r.CodebaseID], r)
	}
	return nil
}

func (s *MemoryStore) ListEmbeddings(_ context.Context, codebaseID string, kind models.ElementKind) ([]*models.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.EmbeddingRecord{}
	for _, r := range s.embeddings[codebaseID] {
		if matchesKind(r.ElementKind, kind) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetEmbedding(_ context.Context, id string) (*models.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, records := range s.embeddings {
		for _, r := range records {
			if r.ID == id {
				return r, nil
			}
		}
	}
	return nil, fmt.Errorf("embedding %s: %w", id, errs.ErrNotFound)
}

func (s *MemoryStore) DeleteEmbeddings(_ context.Context, codebaseID string, kind models.ElementKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*models.EmbeddingRecord
	removed := 0
	for _, r := range s.embeddings[codebaseID] {
		if matchesKind(r.ElementKind, kind) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		delete(s.embeddings, codebaseID)
	} else {
		s.embeddings[codebaseID] = kept
	}
	return removed, nil
}

func (s *MemoryStore) SaveMetrics(_ context.Context, m *models.CodeMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *m
	s.metrics[m.CodebaseID] = &c
	return nil
}

func (s *MemoryStore) GetMetrics(_ context.Context, codebaseID string) (*models.CodeMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.metrics[codebaseID]
	if !ok {
		return nil, fmt.Errorf("metrics for codebase %s: %w", codebaseID, errs.ErrNotFound)
	}
	c := *m
	return &c, nil
}

func (s *MemoryStore) DeleteMetrics(_ context.Context, codebaseID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.metrics[codebaseID]; !ok {
		return 0, nil
	}
	delete(s.metrics, codebaseID)
	return 1, nil
}

func (s *MemoryStore) SaveUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.GitHubID == u.GitHubID {
			u.ID = existing.ID
			u.CreatedAt = existing.CreatedAt
			break
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
		u.CreatedAt = time.Now().UTC()
	}
	c := *u
	s.users[u.ID] = &c
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, errs.ErrNotFound)
	}
	c := *u
	return &c, nil
}
