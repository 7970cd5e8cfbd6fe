package signer

import (
	"context"
	"strings"
	"sync"

	xerrors "IntentFlow-Chain/internal/errors"
)

// MemoryStore provides an in-memory implementation of the Store interface,
// intended for development and testing scenarios.
type MemoryStore struct {
	mu      sync.RWMutex
	signers map[string]*Signer
}

// NewMemoryStore initialises the store with the provided seed keys, mapping
// session identifiers to hex encoded private keys.
func NewMemoryStore(seeds map[string]string) (*MemoryStore, error) {
	store := &MemoryStore{signers: make(map[string]*Signer)}
	for session, hexKey := range seeds {
		session = strings.TrimSpace(session)
		if session == "" {
			continue
		}
		sg, err := FromHex(hexKey)
		if err != nil {
			return nil, err
		}
		store.signers[session] = sg
	}
	return store, nil
}

// Get retrieves the signer registered for the session.
func (s *MemoryStore) Get(_ context.Context, session string) (*Signer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sg, ok := s.signers[strings.TrimSpace(session)]; ok {
		return sg, nil
	}
	return nil, ErrSignerNotFound
}

// Put registers or replaces the signer for the session.
func (s *MemoryStore) Put(_ context.Context, session string, sg *Signer) error {
	session = strings.TrimSpace(session)
	if session == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "会话标识不能为空")
	}
	if sg == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "签名者不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signers == nil {
		s.signers = make(map[string]*Signer)
	}
	s.signers[session] = sg
	return nil
}

// Delete removes the signer registered for the session.
func (s *MemoryStore) Delete(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.signers, strings.TrimSpace(session))
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
