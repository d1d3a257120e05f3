package store

import (
	"context"
	"errors"

	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/types"
)

// orderPair returns the ids in canonical order plus whether userID is the
// lower one.
func orderPair(userID, friendID int64) (lo, hi int64, first bool) {
	if userID < friendID {
		return userID, friendID, true
	}
	return friendID, userID, false
}

// FindFriendship loads the canonical row for an unordered pair.
func (s *Store) FindFriendship(ctx context.Context, userID, friendID int64) (types.Friendship, error) {
	lo, hi, _ := orderPair(userID, friendID)

	var fsp types.Friendship
	row := s.DB.QueryRowContext(ctx,
		"SELECT id0, id1, status FROM friendships WHERE id0 = $1 AND id1 = $2", lo, hi)
	if err := row.Scan(&fsp.ID0, &fsp.ID1, &fsp.Status); err != nil {
		return types.Friendship{}, wrapDBErr(err)
	}
	return fsp, nil
}

func (s *Store) updateFriendship(ctx context.Context, lo, hi int64, status types.FriendStatus) (types.Friendship, error) {
	var fsp types.Friendship
	row := s.DB.QueryRowContext(ctx,
		"UPDATE friendships SET status = $3 WHERE id0 = $1 AND id1 = $2 RETURNING id0, id1, status",
		lo, hi, status)
	if err := row.Scan(&fsp.ID0, &fsp.ID1, &fsp.Status); err != nil {
		return types.Friendship{}, wrapDBErr(err)
	}
	return fsp, nil
}

// AddFriendship opens a friend request from userID toward friendID. A fresh
// pair gets a new row; a previously deleted pair is revived. Any other state
// is rejected.
func (s *Store) AddFriendship(ctx context.Context, userID, friendID int64) (types.Friendship, error) {
	if userID == friendID {
		return types.Friendship{}, errs.BadRequest("Cannot add yourself")
	}
	lo, hi, first := orderPair(userID, friendID)

	// From the requester's view the new state is Adding. Stored status is
	// from ID0's view.
	status := types.StatusAdding
	if !first {
		status = types.StatusAdded
	}

	existing, err := s.FindFriendship(ctx, userID, friendID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		var fsp types.Friendship
		row := s.DB.QueryRowContext(ctx,
			"INSERT INTO friendships (id0, id1, status) VALUES ($1, $2, $3) RETURNING id0, id1, status",
			lo, hi, status)
		if err := row.Scan(&fsp.ID0, &fsp.ID1, &fsp.Status); err != nil {
			return types.Friendship{}, wrapDBErr(err)
		}
		return fsp, nil
	case err != nil:
		return types.Friendship{}, err
	}

	if existing.Status != types.StatusDeleted {
		return types.Friendship{}, errs.BadRequest("Status must be deleted")
	}
	return s.updateFriendship(ctx, lo, hi, status)
}

// AcceptFriendship completes a request the counterparty opened.
func (s *Store) AcceptFriendship(ctx context.Context, userID, friendID int64) (types.Friendship, error) {
	fsp, err := s.FindFriendship(ctx, userID, friendID)
	if err != nil {
		return types.Friendship{}, err
	}

	_, _, first := orderPair(userID, friendID)
	if fsp.StatusFor(first) != types.StatusAdded {
		return types.Friendship{}, errs.BadRequest("Status must be added")
	}
	return s.updateFriendship(ctx, fsp.ID0, fsp.ID1, types.StatusAccepted)
}

// RevertFriendship withdraws or declines a pending request.
func (s *Store) RevertFriendship(ctx context.Context, userID, friendID int64) (types.Friendship, error) {
	fsp, err := s.FindFriendship(ctx, userID, friendID)
	if err != nil {
		return types.Friendship{}, err
	}

	if fsp.Status != types.StatusAdding && fsp.Status != types.StatusAdded {
		return types.Friendship{}, errs.BadRequest("Status must be adding or added")
	}
	return s.updateFriendship(ctx, fsp.ID0, fsp.ID1, types.StatusDeleted)
}

// DeleteFriendship dissolves an accepted friendship.
func (s *Store) DeleteFriendship(ctx context.Context, userID, friendID int64) (types.Friendship, error) {
	fsp, err := s.FindFriendship(ctx, userID, friendID)
	if err != nil {
		return types.Friendship{}, err
	}

	if fsp.Status != types.StatusAccepted {
		return types.Friendship{}, errs.BadRequest("Status must be accepted")
	}
	return s.updateFriendship(ctx, fsp.ID0, fsp.ID1, types.StatusDeleted)
}

// FriendPair loads both users of a friendship and returns the projection of
// each side: the caller's own card first, the counterparty's second.
func (s *Store) FriendPair(ctx context.Context, userID int64, fsp types.Friendship) (self, other types.Friend, err error) {
	user0, err := s.GetUser(ctx, fsp.ID0)
	if err != nil {
		return types.Friend{}, types.Friend{}, err
	}
	user1, err := s.GetUser(ctx, fsp.ID1)
	if err != nil {
		return types.Friend{}, types.Friend{}, err
	}

	friend0 := types.FriendFromUser(fsp, user0, true)
	friend1 := types.FriendFromUser(fsp, user1, false)
	if userID == fsp.ID0 {
		return friend0, friend1, nil
	}
	return friend1, friend0, nil
}

const friendJoinColumns = "f.id0, f.id1, f.status, u.id, u.username, u.nickname, u.avatar, u.role, u.active"

// ListFriends returns the projections of every non-deleted friendship of the
// user.
func (s *Store) ListFriends(ctx context.Context, userID int64) ([]types.Friend, error) {
	friends := []types.Friend{}

	scan := func(query string, first bool) error {
		rows, err := s.DB.QueryContext(ctx, query, userID, types.StatusDeleted)
		if err != nil {
			return wrapDBErr(err)
		}
		defer rows.Close()

		for rows.Next() {
			var fsp types.Friendship
			var user types.User
			if err := rows.Scan(&fsp.ID0, &fsp.ID1, &fsp.Status,
				&user.ID, &user.Username, &user.Nickname, &user.Avatar, &user.Role, &user.Active); err != nil {
				return wrapDBErr(err)
			}
			friends = append(friends, types.FriendFromUser(fsp, user, first))
		}
		return wrapDBErr(rows.Err())
	}

	// Counterparties on the ID0 side, then on the ID1 side.
	if err := scan(
		"SELECT "+friendJoinColumns+" FROM friendships f JOIN users u ON u.id = f.id0 WHERE f.id1 = $1 AND f.status != $2",
		true); err != nil {
		return nil, err
	}
	if err := scan(
		"SELECT "+friendJoinColumns+" FROM friendships f JOIN users u ON u.id = f.id1 WHERE f.id0 = $1 AND f.status != $2",
		false); err != nil {
		return nil, err
	}
	return friends, nil
}
