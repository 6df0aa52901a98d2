package notify

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// MemoryStore - лента уведомлений в памяти процесса
type MemoryStore struct {
	mu    sync.Mutex
	seq   int
	notes []models.Notification
}

// NewMemoryStore создает новый экземпляр MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ Feed = (*MemoryStore)(nil)

// Notify сохраняет уведомления
func (s *MemoryStore) Notify(_ context.Context, notes []models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notes {
		s.seq++
		n.ID = strconv.Itoa(s.seq)
		s.notes = append(s.notes, n)
	}
	return nil
}

// List возвращает уведомления пользователя, новые первыми
func (s *MemoryStore) List(_ context.Context, userID uuid.UUID, limit int, unreadOnly bool) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Notification
	for i := len(s.notes) - 1; i >= 0; i-- {
		n := s.notes[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UnreadCount возвращает число непрочитанных уведомлений
func (s *MemoryStore) UnreadCount(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, note := range s.notes {
		if note.UserID == userID && !note.IsRead {
			n++
		}
	}
	return n, nil
}

// MarkRead отмечает уведомления прочитанными
func (s *MemoryStore) MarkRead(_ context.Context, userID uuid.UUID, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var n int64
	for i := range s.notes {
		note := &s.notes[i]
		if note.UserID != userID || note.IsRead {
			continue
		}
		if len(ids) > 0 && !wanted[note.ID] {
			continue
		}
		note.IsRead = true
		n++
	}
	return n, nil
}
