package maxbot

import "sync"

// StickerCache remembers the last sticker code seen per chat so a later
// "resend last sticker" action can omit the code.
type StickerCache struct {
	mu     sync.Mutex
	byChat map[int64]string
}

// NewStickerCache creates an empty cache.
func NewStickerCache() *StickerCache {
	return &StickerCache{byChat: make(map[int64]string)}
}

// Remember stores the latest sticker code for a chat. Last write wins.
func (s *StickerCache) Remember(chatID int64, code string) {
	if code == "" {
		return
	}
	s.mu.Lock()
	s.byChat[chatID] = code
	s.mu.Unlock()
}

// Last returns the most recent sticker code for a chat, if any.
func (s *StickerCache) Last(chatID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.byChat[chatID]
	return code, ok
}
