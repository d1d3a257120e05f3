package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/types"
)

// maxSessions is how many concurrent tokens a user may hold. Issuing a new
// one evicts the oldest beyond this count.
const maxSessions = 5

// IssueSession mints a new token for the user and trims the session set.
func (s *Store) IssueSession(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	key := types.SessionKey(userID)

	pipe := s.Redis.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(time.Now().Unix()), Member: token})
	pipe.ZRemRangeByRank(ctx, key, 0, -(maxSessions + 1))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", wrapRedisErr(err)
	}
	return token, nil
}

// VerifySession checks a token and returns its owner. When refresh is set the
// token's timestamp is bumped so active sessions stay ahead of eviction.
func (s *Store) VerifySession(ctx context.Context, userID int64, token string, refresh bool) (types.User, error) {
	key := types.SessionKey(userID)

	if err := s.Redis.ZScore(ctx, key, token).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return types.User{}, errs.ErrUnauthorized
		}
		return types.User{}, wrapRedisErr(err)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return types.User{}, errs.BadRequest("User not exists")
		}
		return types.User{}, err
	}
	if !user.Active {
		return types.User{}, errs.ErrForbidden
	}

	if refresh {
		s.Redis.ZAdd(ctx, key, redis.Z{Score: float64(time.Now().Unix()), Member: token})
	}
	return user, nil
}

// ListSessions returns the user's tokens, newest first, marking the caller's
// own. A caller whose token is no longer in the set gets Unauthorized.
func (s *Store) ListSessions(ctx context.Context, userID int64, callerToken string) ([]types.Session, error) {
	members, err := s.Redis.ZRangeWithScores(ctx, types.SessionKey(userID), 0, -1).Result()
	if err != nil {
		return nil, wrapRedisErr(err)
	}

	sessions := make([]types.Session, 0, len(members))
	current := false
	for i := len(members) - 1; i >= 0; i-- {
		id, _ := members[i].Member.(string)
		sess := types.Session{
			ID:        id,
			Timestamp: int64(members[i].Score),
			Current:   id == callerToken,
		}
		current = current || sess.Current
		sessions = append(sessions, sess)
	}
	if !current {
		return nil, errs.ErrUnauthorized
	}
	return sessions, nil
}

// RevokeSession removes one token from the user's set.
func (s *Store) RevokeSession(ctx context.Context, userID int64, token string) error {
	return wrapRedisErr(s.Redis.ZRem(ctx, types.SessionKey(userID), token).Err())
}
