// Package session stores login sessions in Redis.
//
// Each session lives under app:sess:<id> with a TTL. A per-user set
// app:user_sessions:<uid> indexes the ids so a deleted user can be logged out everywhere.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned for unknown, expired or unreadable session ids.
var ErrNoSession = errors.New("session not found")

type AppSessionStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewAppSessionStore(rdb redis.UniversalClient, ttl time.Duration) *AppSessionStore {
	return &AppSessionStore{rdb: rdb, ttl: ttl}
}

// AppSession is the JSON value kept under the session key.
type AppSession struct {
	UserID    uint  `json:"uid"`
	IssuedAt  int64 `json:"iat"`
	ExpiresAt int64 `json:"exp"`
}

// TTL is the lifetime given to new sessions; the cookie uses the same value.
func (s *AppSessionStore) TTL() time.Duration { return s.ttl }

func sessionKey(id string) string { return "app:sess:" + id }

func userIndexKey(uid uint) string {
	return "app:user_sessions:" + strconv.FormatUint(uint64(uid), 10)
}

// Create stores a session for userID and adds it to the user's index.
// The index TTL is pushed forward on every login so it outlives its newest member.
func (s *AppSessionStore) Create(ctx context.Context, id string, userID uint) error {
	now := time.Now()
	raw, err := json.Marshal(AppSession{
		UserID:    userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(id), raw, s.ttl)
		p.SAdd(ctx, userIndexKey(userID), id)
		p.Expire(ctx, userIndexKey(userID), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get loads a live session. A value that no longer decodes counts as no session.
func (s *AppSessionStore) Get(ctx context.Context, id string) (*AppSession, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrNoSession
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	}
	var as AppSession
	if err := json.Unmarshal(raw, &as); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return &as, nil
}

// Delete drops one session and unlinks it from its owner's index.
// Unknown ids are a no-op; a failed lookup is returned and nothing is removed.
func (s *AppSessionStore) Delete(ctx context.Context, id string) error {
	as, err := s.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKey(id))
		if as != nil {
			p.SRem(ctx, userIndexKey(as.UserID), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RevokeAllForUser 删除用户时撤销其全部会话
func (s *AppSessionStore) RevokeAllForUser(ctx context.Context, userID uint) error {
	ids, err := s.rdb.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			p.Del(ctx, sessionKey(id))
		}
		p.Del(ctx, userIndexKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}
