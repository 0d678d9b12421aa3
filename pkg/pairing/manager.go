// Package pairing implements code-based DM approval. Unknown senders get a
// short-lived code; an operator approves it out of band, which moves the
// sender onto a persistent allowlist.
package pairing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// codeAlphabet avoids ambiguous characters (0/O, 1/I/l).
	codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength   = 8

	// DefaultTTL is how long a pending code stays claimable.
	DefaultTTL = 24 * time.Hour

	maxPending = 200
)

// Pending is one outstanding pairing request.
type Pending struct {
	Code      string    `json:"code"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager tracks pending pairing codes and the approved allowlist for one
// account. State lives in two JSON files so approvals survive restarts and
// can be edited by the CLI while the daemon runs.
type Manager struct {
	mu           sync.Mutex
	pendingPath  string
	approvedPath string
	ttl          time.Duration

	pending       map[string]Pending // keyed by user id
	approved      map[string]bool
	pendingMtime  time.Time
	approvedMtime time.Time
}

// NewManager creates a pairing manager storing state under dir.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create pairing directory: %w", err)
	}
	m := &Manager{
		pendingPath:  filepath.Join(dir, "pending.json"),
		approvedPath: filepath.Join(dir, "approved.json"),
		ttl:          DefaultTTL,
		pending:      make(map[string]Pending),
		approved:     make(map[string]bool),
	}
	if err := m.loadLocked(); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsurePending returns the pairing code for a user, creating one if none is
// outstanding. created reports whether a new code was minted this call, so
// callers can send the code once instead of on every message.
func (m *Manager) EnsurePending(userID, username, name string) (code string, created bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshLocked()
	m.expireLocked()

	if entry, ok := m.pending[userID]; ok {
		return entry.Code, false, nil
	}
	if len(m.pending) >= maxPending {
		return "", false, fmt.Errorf("pairing queue is full")
	}

	code, err = gonanoid.Generate(codeAlphabet, codeLength)
	if err != nil {
		return "", false, fmt.Errorf("failed to generate pairing code: %w", err)
	}

	m.pending[userID] = Pending{
		Code:      code,
		UserID:    userID,
		Username:  username,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := m.savePendingLocked(); err != nil {
		return "", false, err
	}
	return code, true, nil
}

// Approve redeems a code: the matching user moves to the allowlist and the
// pending entry is dropped. Returns the approved user id.
func (m *Manager) Approve(code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshLocked()
	m.expireLocked()

	for userID, entry := range m.pending {
		if entry.Code != code {
			continue
		}
		delete(m.pending, userID)
		m.approved[userID] = true
		if err := m.savePendingLocked(); err != nil {
			return "", err
		}
		if err := m.saveApprovedLocked(); err != nil {
			return "", err
		}
		return userID, nil
	}
	return "", fmt.Errorf("unknown or expired pairing code: %s", code)
}

// IsApproved reports whether a user has completed pairing.
func (m *Manager) IsApproved(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshLocked()
	return m.approved[userID]
}

// Revoke removes a user from the allowlist.
func (m *Manager) Revoke(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshLocked()
	if !m.approved[userID] {
		return fmt.Errorf("user %s is not approved", userID)
	}
	delete(m.approved, userID)
	return m.saveApprovedLocked()
}

// ListPending returns outstanding pairing requests, oldest first.
func (m *Manager) ListPending() []Pending {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshLocked()
	m.expireLocked()

	entries := make([]Pending, 0, len(m.pending))
	for _, entry := range m.pending {
		entries = append(entries, entry)
	}
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].CreatedAt.Before(entries[i].CreatedAt) {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	return entries
}

// ListApproved returns approved user ids.
func (m *Manager) ListApproved() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshLocked()
	ids := make([]string, 0, len(m.approved))
	for id := range m.approved {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) expireLocked() {
	cutoff := time.Now().Add(-m.ttl)
	dirty := false
	for userID, entry := range m.pending {
		if entry.CreatedAt.Before(cutoff) {
			delete(m.pending, userID)
			dirty = true
		}
	}
	if dirty {
		m.savePendingLocked()
	}
}

// refreshLocked re-reads state files modified by another process, keyed on
// mtime so the common path stays a stat call.
func (m *Manager) refreshLocked() {
	if info, err := os.Stat(m.pendingPath); err == nil && info.ModTime().After(m.pendingMtime) {
		m.loadPendingLocked()
	}
	if info, err := os.Stat(m.approvedPath); err == nil && info.ModTime().After(m.approvedMtime) {
		m.loadApprovedLocked()
	}
}

func (m *Manager) loadLocked() error {
	if err := m.loadPendingLocked(); err != nil {
		return err
	}
	return m.loadApprovedLocked()
}

func (m *Manager) loadPendingLocked() error {
	data, err := os.ReadFile(m.pendingPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read pending pairings: %w", err)
	}
	var entries []Pending
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse pending pairings: %w", err)
	}
	m.pending = make(map[string]Pending, len(entries))
	for _, entry := range entries {
		m.pending[entry.UserID] = entry
	}
	if info, err := os.Stat(m.pendingPath); err == nil {
		m.pendingMtime = info.ModTime()
	}
	return nil
}

func (m *Manager) loadApprovedLocked() error {
	data, err := os.ReadFile(m.approvedPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read allowlist: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("failed to parse allowlist: %w", err)
	}
	m.approved = make(map[string]bool, len(ids))
	for _, id := range ids {
		m.approved[id] = true
	}
	if info, err := os.Stat(m.approvedPath); err == nil {
		m.approvedMtime = info.ModTime()
	}
	return nil
}

func (m *Manager) savePendingLocked() error {
	entries := make([]Pending, 0, len(m.pending))
	for _, entry := range m.pending {
		entries = append(entries, entry)
	}
	if err := writeJSON(m.pendingPath, entries); err != nil {
		return err
	}
	if info, err := os.Stat(m.pendingPath); err == nil {
		m.pendingMtime = info.ModTime()
	}
	return nil
}

func (m *Manager) saveApprovedLocked() error {
	ids := make([]string, 0, len(m.approved))
	for id := range m.approved {
		ids = append(ids, id)
	}
	if err := writeJSON(m.approvedPath, ids); err != nil {
		return err
	}
	if info, err := os.Stat(m.approvedPath); err == nil {
		m.approvedMtime = info.ModTime()
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
