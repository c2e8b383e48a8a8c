package engine

import (
	"sync"

	"github.com/theanh9911/agno-ui-sub003/conversation"
)

// assemblerSet keys one conversation assembler per session. Sessions start
// under a client-provisional id and are re-keyed when the backend confirms
// the real id.
type assemblerSet struct {
	mu  sync.Mutex
	set map[string]*conversation.Assembler
}

func newAssemblerSet() *assemblerSet {
	return &assemblerSet{set: make(map[string]*conversation.Assembler)}
}

func (s *assemblerSet) get(sessionID string) *conversation.Assembler {
	s.mu.Lock()
	defer s.mu.Unlock()
	asm, ok := s.set[sessionID]
	if !ok {
		asm = conversation.NewAssembler()
		s.set[sessionID] = asm
	}
	return asm
}

func (s *assemblerSet) rekey(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if asm, ok := s.set[from]; ok {
		delete(s.set, from)
		s.set[to] = asm
	}
}

func (s *assemblerSet) drop(sessionID string) {
	s.mu.Lock()
	delete(s.set, sessionID)
	s.mu.Unlock()
}
