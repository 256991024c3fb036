package database

import (
	"database/sql"
	"time"
)

func (db *PgMessagramRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $3) RETURNING id, username, avatar_url",
		params.Username,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.AvatarUrl,
	)

	return a, translateError(err)
}

func (db *PgMessagramRepository) GetAccountByUsername(username string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, password_hash, avatar_url FROM accounts "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.PasswordHash,
		&a.AvatarUrl,
	)

	return a, err
}

func (db *PgMessagramRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"UPDATE accounts SET username = $2, avatar_url = $3, updated_at = $4 "+
			"WHERE id = $1 RETURNING id, username, avatar_url",
		params.UserId,
		params.Username,
		params.AvatarUrl,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.AvatarUrl,
	)

	return a, translateError(err)
}

func (db *PgMessagramRepository) SearchAccounts(query, exclude string) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT id, username, avatar_url FROM accounts "+
			"WHERE username LIKE '%' || $1 || '%' AND username != $2 ORDER BY username",
		query,
		exclude,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err = rows.Scan(&a.Id, &a.Username, &a.AvatarUrl); err != nil {
			break
		}

		accounts = append(accounts, a)
	}

	return accounts, err
}

func (db *PgMessagramRepository) CreateMessage(msg Message) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (text, sender, receiver, timestamp, kind, file_url) "+
			"VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, '')) RETURNING id",
		msg.Text,
		msg.Sender,
		msg.Receiver,
		msg.Timestamp,
		msg.Kind,
		msg.FileUrl,
	)

	err := res.Scan(&msg.Id)

	return msg, err
}

func (db *PgMessagramRepository) GlobalMessages() ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, text, sender, receiver, timestamp, kind, file_url FROM messages " +
			"WHERE receiver IS NULL ORDER BY id",
	)
	if err != nil {
		return nil, err
	}

	return scanMessages(rows)
}

func (db *PgMessagramRepository) ConversationMessages(a, b string) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, text, sender, receiver, timestamp, kind, file_url FROM messages "+
			"WHERE (sender = $1 AND receiver = $2) OR (sender = $2 AND receiver = $1) ORDER BY id",
		a,
		b,
	)
	if err != nil {
		return nil, err
	}

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg      Message
			receiver sql.NullString
			fileUrl  sql.NullString
		)

		err := rows.Scan(
			&msg.Id,
			&msg.Text,
			&msg.Sender,
			&receiver,
			&msg.Timestamp,
			&msg.Kind,
			&fileUrl,
		)
		if err != nil {
			return nil, err
		}

		msg.Receiver = receiver.String
		msg.FileUrl = fileUrl.String
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgMessagramRepository) UpdateMessageSender(oldName, newName string) error {
	_, err := db.conn.Exec(
		"UPDATE messages SET sender = $2 WHERE sender = $1",
		oldName,
		newName,
	)

	return err
}

func (db *PgMessagramRepository) UpdateMessageReceiver(oldName, newName string) error {
	_, err := db.conn.Exec(
		"UPDATE messages SET receiver = $2 WHERE receiver = $1",
		oldName,
		newName,
	)

	return err
}

func (db *PgMessagramRepository) CreateFriendEdge(owner, target, status string) error {
	_, err := db.conn.Exec(
		"INSERT INTO friend_edges (owner, target, status) VALUES ($1, $2, $3)",
		owner,
		target,
		status,
	)

	return translateError(err)
}

// EnsureFriendEdge creates the edge unless the ordered pair already has
// one, in which case the existing edge is left untouched.
func (db *PgMessagramRepository) EnsureFriendEdge(owner, target, status string) error {
	_, err := db.conn.Exec(
		"INSERT INTO friend_edges (owner, target, status) VALUES ($1, $2, $3) "+
			"ON CONFLICT (owner, target) DO NOTHING",
		owner,
		target,
		status,
	)

	return err
}

func (db *PgMessagramRepository) UpdateFriendEdgeStatus(owner, target, status string) error {
	_, err := db.conn.Exec(
		"UPDATE friend_edges SET status = $3 WHERE owner = $1 AND target = $2",
		owner,
		target,
		status,
	)

	return err
}

func (db *PgMessagramRepository) DeleteFriendEdge(owner, target string) error {
	_, err := db.conn.Exec(
		"DELETE FROM friend_edges WHERE owner = $1 AND target = $2",
		owner,
		target,
	)

	return err
}

func (db *PgMessagramRepository) ListFriends(username string) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username, a.avatar_url FROM friend_edges e "+
			"JOIN accounts a ON a.username = e.target "+
			"WHERE e.owner = $1 AND e.status = $2 ORDER BY a.username",
		username,
		EdgeStatusAccepted,
	)
	if err != nil {
		return nil, err
	}

	return scanAccounts(rows)
}

func (db *PgMessagramRepository) ListFriendRequests(username string) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username, a.avatar_url FROM friend_edges e "+
			"JOIN accounts a ON a.username = e.owner "+
			"WHERE e.target = $1 AND e.status = $2 ORDER BY a.username",
		username,
		EdgeStatusPending,
	)
	if err != nil {
		return nil, err
	}

	return scanAccounts(rows)
}

func scanAccounts(rows *sql.Rows) ([]Account, error) {
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Id, &a.Username, &a.AvatarUrl); err != nil {
			return nil, err
		}

		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

func (db *PgMessagramRepository) UpdateFriendEdgeOwner(oldName, newName string) error {
	_, err := db.conn.Exec(
		"UPDATE friend_edges SET owner = $2 WHERE owner = $1",
		oldName,
		newName,
	)

	return err
}

func (db *PgMessagramRepository) UpdateFriendEdgeTarget(oldName, newName string) error {
	_, err := db.conn.Exec(
		"UPDATE friend_edges SET target = $2 WHERE target = $1",
		oldName,
		newName,
	)

	return err
}
