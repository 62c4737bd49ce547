package admin

import (
	"sync"
	"time"

	"github.com/margindesk/admin-api/internal/types"
	"github.com/rs/zerolog/log"
)

// Resolver computes the assignment set for a non-super admin: the end users
// reachable through invitation codes that admin created. The relation is a
// single redemption hop; delegate chains are deliberately not followed.
//
// Resolved sets are cached for a short TTL. Lineage changes rarely relative
// to settlement traffic, but new redemptions must become visible, so the
// cache is never longer than seconds-scale.
type Resolver struct {
	db    *Database
	clock types.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]assignmentEntry
}

type assignmentEntry struct {
	userIDs   map[string]struct{}
	expiresAt time.Time
}

func NewResolver(db *Database, clock types.Clock, ttl time.Duration) *Resolver {
	return &Resolver{
		db:      db,
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]assignmentEntry),
	}
}

// ResolveAssignedUsers returns the set of user ids the given admin may act
// on. An admin with no invitation codes resolves to an empty set, never to
// "no filter": the default is maximally restrictive.
func (r *Resolver) ResolveAssignedUsers(adminID string) (map[string]struct{}, error) {
	now := r.clock.Now()

	r.mu.RLock()
	entry, ok := r.entries[adminID]
	r.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.userIDs, nil
	}

	codes, err := r.db.GetCodesByCreator(adminID)
	if err != nil {
		return nil, err
	}

	codeStrings := make([]string, 0, len(codes))
	for _, c := range codes {
		codeStrings = append(codeStrings, c.Code)
	}

	userIDs, err := r.db.GetUserIDsByCodes(codeStrings)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		set[id] = struct{}{}
	}

	r.mu.Lock()
	r.entries[adminID] = assignmentEntry{userIDs: set, expiresAt: now.Add(r.ttl)}
	r.mu.Unlock()

	log.Debug().
		Str("component", "assignment_resolver").
		Str("admin_id", adminID).
		Int("codes", len(codeStrings)).
		Int("assigned_users", len(set)).
		Msg("resolved assignment set")

	return set, nil
}

// Invalidate drops the cached set for an admin, forcing the next check to
// re-read the lineage.
func (r *Resolver) Invalidate(adminID string) {
	r.mu.Lock()
	delete(r.entries, adminID)
	r.mu.Unlock()
}
