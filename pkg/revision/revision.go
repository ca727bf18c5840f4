// Package revision tracks the optimistic-concurrency revision sent with
// mutating NiFi requests. Each process identifies itself with a random client
// id so the server can tell its own updates apart from other users'.
package revision

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/greg-hellings/stateview/pkg/nifi"
)

// Provider hands out the current revision and records the server's answer.
type Provider interface {
	GetRevision() nifi.Revision
	SetRevision(nifi.Revision)
}

// Store is a thread-safe in-memory Provider.
type Store struct {
	mu       sync.RWMutex
	version  int64
	clientID string
}

// NewStore creates a store at version 0 with a fresh client id.
func NewStore() *Store {
	return &Store{clientID: uuid.NewString()}
}

// NewStoreWithClientID creates a store that reuses an existing client id.
// Any non-empty id is kept as is; an empty one is replaced by a fresh UUID.
func NewStoreWithClientID(clientID string) *Store {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		clientID = uuid.NewString()
	}
	return &Store{clientID: clientID}
}

// GetRevision returns the current version and client id.
func (s *Store) GetRevision() nifi.Revision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nifi.Revision{Version: s.version, ClientID: s.clientID}
}

// SetRevision records rev. The client id is kept when rev carries none.
func (s *Store) SetRevision(rev nifi.Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = rev.Version
	if rev.ClientID != "" {
		s.clientID = rev.ClientID
	}
}
