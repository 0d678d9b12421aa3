// Package session persists per-conversation metadata so the bridge can
// report activity and keep routing stable across restarts.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Session is the stored record for one conversation key.
type Session struct {
	Key           string    `json:"key"`
	ChatType      string    `json:"chat_type"`
	ChatID        int64     `json:"chat_id,omitempty"`
	UserID        int64     `json:"user_id,omitempty"`
	Title         string    `json:"title,omitempty"`
	LastActivity  time.Time `json:"last_activity"`
	InboundCount  int64     `json:"inbound_count"`
	OutboundCount int64     `json:"outbound_count"`
}

// Store keeps sessions in memory and mirrors them to a JSON file.
type Store struct {
	mu       sync.Mutex
	path     string
	sessions map[string]*Session
	now      func() time.Time
}

// NewStore opens (or creates) the session store at path.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:     path,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Touch records activity on a session, creating it on first sight. direction
// is "in" for platform-to-host traffic and "out" for replies.
func (s *Store) Touch(key, chatType string, chatID, userID int64, direction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[key]
	if !ok {
		session = &Session{
			Key:      key,
			ChatType: chatType,
			ChatID:   chatID,
			UserID:   userID,
		}
		s.sessions[key] = session
	}
	session.LastActivity = s.now()
	if direction == "out" {
		session.OutboundCount++
	} else {
		session.InboundCount++
	}
	return s.saveLocked()
}

// SetTitle records the chat title, used when the platform reports renames.
func (s *Store) SetTitle(key, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[key]
	if !ok {
		return fmt.Errorf("unknown session: %s", key)
	}
	session.Title = title
	return s.saveLocked()
}

// Get returns a copy of the session for key, or nil when unknown.
func (s *Store) Get(key string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[key]
	if !ok {
		return nil
	}
	copied := *session
	return &copied
}

// List returns all sessions ordered by most recent activity.
func (s *Store) List() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, *session)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// Delete drops a session record.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[key]; !ok {
		return nil
	}
	delete(s.sessions, key)
	return s.saveLocked()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session store: %w", err)
	}
	var sessions []*Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return fmt.Errorf("failed to parse session store: %w", err)
	}
	for _, session := range sessions {
		s.sessions[session.Key] = session
	}
	return nil
}

func (s *Store) saveLocked() error {
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Key < sessions[j].Key
	})

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session store: %w", err)
	}
	return nil
}
