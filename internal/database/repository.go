package database

import "errors"

// ErrDuplicate is returned when an insert violates a unique constraint,
// such as registering an existing username or re-sending a pending
// friend request. Uniqueness is enforced by the store rather than a
// check-then-insert to avoid racing concurrent writers.
var ErrDuplicate = errors.New("duplicate row")

type MessagramRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountByUsername(username string) (Account, error)
	UpdateAccount(params UpdateAccountParams) (Account, error)
	SearchAccounts(query, exclude string) ([]Account, error)

	CreateMessage(msg Message) (Message, error)
	GlobalMessages() ([]Message, error)
	ConversationMessages(a, b string) ([]Message, error)
	UpdateMessageSender(oldName, newName string) error
	UpdateMessageReceiver(oldName, newName string) error

	CreateFriendEdge(owner, target, status string) error
	EnsureFriendEdge(owner, target, status string) error
	UpdateFriendEdgeStatus(owner, target, status string) error
	DeleteFriendEdge(owner, target string) error
	ListFriends(username string) ([]Account, error)
	ListFriendRequests(username string) ([]Account, error)
	UpdateFriendEdgeOwner(oldName, newName string) error
	UpdateFriendEdgeTarget(oldName, newName string) error
}
