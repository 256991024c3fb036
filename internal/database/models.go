package database

import "time"

const (
	EdgeStatusPending  = "pending"
	EdgeStatusAccepted = "accepted"
)

type Account struct {
	Id           int
	Username     string
	PasswordHash string
	AvatarUrl    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message mirrors a row in the messages table. Receiver is empty for
// global messages; the column is NULL in that case. Timestamp is a
// display string assigned at send time, never used for ordering.
type Message struct {
	Id        int
	Text      string
	Sender    string
	Receiver  string
	Timestamp string
	Kind      string
	FileUrl   string
}

// FriendEdge is one direction of a relationship: the owner's view of
// the target. A mutual friendship is two accepted edges.
type FriendEdge struct {
	Id     int
	Owner  string
	Target string
	Status string
}

type CreateAccountParams struct {
	Username     string
	PasswordHash string
}

type UpdateAccountParams struct {
	UserId    int
	Username  string
	AvatarUrl string
}
