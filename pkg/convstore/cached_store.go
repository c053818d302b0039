package convstore

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	session   Session
	expiresAt time.Time
}

// CachedStore decorates a ConversationStore with a short-TTL in-process
// read cache keyed by both session ID and (phone, clinic, channel), plus
// in-flight request deduplication on the GetOrCreate path, bounding load
// on the backing store under concurrent first-contact from the same
// patient. Writes go through to the backing store and refresh the cache.
type CachedStore struct {
	backing ConversationStore
	ttl     time.Duration
	group   singleflight.Group

	mu        sync.Mutex
	byID      map[string]cacheEntry
	byContact map[string]cacheEntry
}

// NewCachedStore wraps backing with a read-through cache of the given TTL.
func NewCachedStore(backing ConversationStore, ttl time.Duration) *CachedStore {
	return &CachedStore{
		backing:   backing,
		ttl:       ttl,
		byID:      make(map[string]cacheEntry),
		byContact: make(map[string]cacheEntry),
	}
}

func contactKey(phone, clinicID string, channel Channel) string {
	return string(channel) + "|" + clinicID + "|" + phone
}

func (c *CachedStore) GetOrCreate(ctx context.Context, phone, clinicID string, channel Channel, initial Session) (Session, error) {
	key := contactKey(phone, clinicID, channel)

	if session, ok := c.getByContact(key); ok {
		return session, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// A call for the same key may have finished between the cache
		// check above and this one; reuse what it cached.
		if session, ok := c.getByContact(key); ok {
			return session, nil
		}
		session, err := c.backing.GetOrCreate(ctx, phone, clinicID, channel, initial)
		if err != nil {
			return Session{}, err
		}
		c.put(key, session)
		return session, nil
	})
	if err != nil {
		return Session{}, err
	}
	return result.(Session), nil
}

func (c *CachedStore) Get(ctx context.Context, sessionID string) (Session, error) {
	if session, ok := c.getByID(sessionID); ok {
		return session, nil
	}
	session, err := c.backing.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	c.put(contactKey(session.UserIdentifier, session.ClinicID, session.Channel), session)
	return session, nil
}

func (c *CachedStore) Save(ctx context.Context, session Session) error {
	if err := c.backing.Save(ctx, session); err != nil {
		return err
	}
	c.put(contactKey(session.UserIdentifier, session.ClinicID, session.Channel), session)
	return nil
}

func (c *CachedStore) AppendMessage(ctx context.Context, msg Message) error {
	return c.backing.AppendMessage(ctx, msg)
}

func (c *CachedStore) History(ctx context.Context, sessionID string, opts HistoryOptions) ([]Message, error) {
	return c.backing.History(ctx, sessionID, opts)
}

func (c *CachedStore) Close() error {
	return c.backing.Close()
}

func (c *CachedStore) getByID(sessionID string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.byID[sessionID]
	if !ok || time.Now().After(entry.expiresAt) {
		return Session{}, false
	}
	return entry.session.Clone(), true
}

func (c *CachedStore) getByContact(key string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.byContact[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return Session{}, false
	}
	return entry.session.Clone(), true
}

func (c *CachedStore) put(contactKey string, session Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := cacheEntry{session: session.Clone(), expiresAt: time.Now().Add(c.ttl)}
	c.byID[session.ID] = entry
	c.byContact[contactKey] = entry
}
