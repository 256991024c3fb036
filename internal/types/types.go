package types

import "strings"

const (
	// KindText is the default message kind.
	KindText = "text"
	// KindFile marks a message carrying an uploaded attachment.
	KindFile = "file"
)

type User struct {
	Id        int    `json:"id,omitempty"`
	Username  string `json:"username"`
	AvatarUrl string `json:"avatar_url,omitempty"`
}

type Message struct {
	Id        int    `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender_username"`
	Receiver  string `json:"receiver_username,omitempty"`
	Timestamp string `json:"timestamp"`
	Kind      string `json:"type"`
	FileUrl   string `json:"file_url,omitempty"`
}

// Global reports whether the message belongs to the shared broadcast
// conversation rather than a direct one.
func (m Message) Global() bool {
	return m.Receiver == ""
}

// NormalizeUsername produces the canonical identity string. Every
// comparison and storage lookup goes through this.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
