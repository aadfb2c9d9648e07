package store

import (
	"inkwell.app/assistant/core/db/sqlc"
)

// Stores provides access to all store implementations.
// The queries can be backed by either a connection pool or a transaction.
type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) Users() UserStore {
	return newUserStore(s.queries)
}

func (s *Stores) Sessions() SessionStore {
	return newSessionStore(s.queries)
}

func (s *Stores) Conversations() ConversationStore {
	return newConversationStore(s.queries)
}

func (s *Stores) Rounds() RoundStore {
	return newRoundStore(s.queries)
}
