// Package social implements the friend-request state machine over the
// relationship store. Each ordered (owner, target) pair moves through
// absent -> pending -> accepted; declining or removing returns it to
// absent. A mutual friendship is two accepted edges kept in lock-step.
package social

import (
	"errors"
	"fmt"
	"log"

	"github.com/messagram/messagram-server/internal/database"
	"github.com/messagram/messagram-server/internal/types"
)

var (
	// ErrSelfRequest is returned for a friend request targeting the
	// requester's own identity.
	ErrSelfRequest = errors.New("cannot send a friend request to yourself")
	// ErrAlreadyRequested is returned when an edge for the ordered
	// pair already exists, pending or accepted.
	ErrAlreadyRequested = errors.New("friend request already exists")
)

type Service struct {
	log *log.Logger
	db  database.MessagramRepository
}

func NewService(logger *log.Logger, db database.MessagramRepository) *Service {
	return &Service{log: logger, db: db}
}

// Request creates the pending edge (owner, target). Uniqueness is
// enforced by the store's constraint rather than a pre-check, so two
// racing requests cannot both insert.
func (s *Service) Request(owner, target string) error {
	owner = types.NormalizeUsername(owner)
	target = types.NormalizeUsername(target)

	if owner == "" || target == "" {
		return fmt.Errorf("owner and target are required")
	}

	if owner == target {
		return ErrSelfRequest
	}

	err := s.db.CreateFriendEdge(owner, target, database.EdgeStatusPending)
	if errors.Is(err, database.ErrDuplicate) {
		return ErrAlreadyRequested
	}

	return err
}

// Respond resolves the pending edge (requester, user). Accepting
// transitions it to accepted and ensures the mirror edge exists, which
// makes the relationship symmetric. Any other action deletes the edge;
// the same path covers declining a request and removing a friend.
// Responding to a nonexistent edge is a no-op, not an error.
func (s *Service) Respond(user, requester string, accept bool) error {
	user = types.NormalizeUsername(user)
	requester = types.NormalizeUsername(requester)

	if user == "" || requester == "" {
		return fmt.Errorf("user and requester are required")
	}

	if !accept {
		return s.db.DeleteFriendEdge(requester, user)
	}

	if err := s.db.UpdateFriendEdgeStatus(requester, user, database.EdgeStatusAccepted); err != nil {
		return err
	}

	return s.db.EnsureFriendEdge(user, requester, database.EdgeStatusAccepted)
}

// Friends lists the accepted targets of the user's edges with their
// display attributes.
func (s *Service) Friends(user string) ([]types.User, error) {
	accounts, err := s.db.ListFriends(types.NormalizeUsername(user))
	if err != nil {
		return nil, err
	}

	return toWireUsers(accounts), nil
}

// IncomingRequests lists the identities with a pending edge toward
// the user.
func (s *Service) IncomingRequests(user string) ([]types.User, error) {
	accounts, err := s.db.ListFriendRequests(types.NormalizeUsername(user))
	if err != nil {
		return nil, err
	}

	return toWireUsers(accounts), nil
}

func toWireUsers(accounts []database.Account) []types.User {
	users := make([]types.User, len(accounts))
	for i, a := range accounts {
		users[i] = types.User{
			Id:        a.Id,
			Username:  a.Username,
			AvatarUrl: a.AvatarUrl,
		}
	}

	return users
}
