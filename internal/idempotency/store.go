// Package idempotency remembers responses to POST requests sent with an
// Idempotency-Key header so a retried request gets the first answer back
// instead of creating a second record. The same database keeps revoked
// session ids so a logout survives a restart.
package idempotency

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	responsesBucket   = []byte("responses")
	revocationsBucket = []byte("revocations")
)

// Response is a stored reply.
type Response struct {
	Status      int       `json:"status"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	StoredAt    time.Time `json:"storedAt"`
}

// Store is a bbolt-backed response log with per-entry expiry.
type Store struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (or creates) the database at path.
func Open(path string, ttl time.Duration) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open idempotency db: %w", err)
	}
	s, err := New(db, ttl)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *bolt.DB, ttl time.Duration) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{responsesBucket, revocationsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create idempotency buckets: %w", err)
	}
	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Key scopes a client key to an owner and a route so two users, or two
// endpoints, never share a slot.
func Key(owner, route, clientKey string) string {
	return owner + "\x00" + route + "\x00" + clientKey
}

// Lookup returns the stored response for key if one exists and is fresh.
func (s *Store) Lookup(key string) (Response, bool, error) {
	var (
		resp  Response
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(responsesBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &resp); err != nil {
			return fmt.Errorf("decode stored response: %w", err)
		}
		found = !s.expired(resp)
		return nil
	})
	if err != nil || !found {
		return Response{}, false, err
	}
	return resp, true, nil
}

// Save stores resp under key unless a fresh response is already there, in
// which case the existing one is kept and returned with stored=false.
func (s *Store) Save(key string, resp Response) (kept Response, stored bool, err error) {
	resp.StoredAt = s.now()
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(responsesBucket)
		if v := b.Get([]byte(key)); v != nil {
			var existing Response
			if err := json.Unmarshal(v, &existing); err == nil && !s.expired(existing) {
				kept = existing
				return nil
			}
		}
		raw, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(key), raw); err != nil {
			return err
		}
		kept, stored = resp, true
		return nil
	})
	if err != nil {
		return Response{}, false, fmt.Errorf("save response: %w", err)
	}
	return kept, stored, nil
}

// CleanExpired deletes stale entries and returns how many were removed.
func (s *Store) CleanExpired() int {
	removed := 0
	_ = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(responsesBucket)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var r Response
			if json.Unmarshal(v, &r) != nil || s.expired(r) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed + s.cleanRevocations()
}

// Revoke records that session id is no longer valid up to until.
func (s *Store) Revoke(id string, until time.Time) error {
	raw, err := until.UTC().MarshalText()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(revocationsBucket).Put([]byte(id), raw)
	})
}

// Revoked reports whether id was revoked. Entries past their expiry no
// longer count.
func (s *Store) Revoked(id string) (bool, error) {
	var revoked bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(revocationsBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		var until time.Time
		if err := until.UnmarshalText(v); err != nil {
			return fmt.Errorf("decode revocation: %w", err)
		}
		revoked = !s.now().After(until)
		return nil
	})
	return revoked, err
}

func (s *Store) cleanRevocations() int {
	removed := 0
	_ = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(revocationsBucket)
		now := s.now()
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var until time.Time
			if until.UnmarshalText(v) != nil || now.After(until) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed
}

func (s *Store) expired(r Response) bool {
	return s.ttl > 0 && s.now().Sub(r.StoredAt) > s.ttl
}

func (s *Store) Close() error {
	return s.db.Close()
}
