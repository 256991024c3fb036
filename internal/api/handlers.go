package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/messagram/messagram-server/internal/database"
	"github.com/messagram/messagram-server/internal/server"
	"github.com/messagram/messagram-server/internal/social"
	"github.com/messagram/messagram-server/internal/types"
	"github.com/teris-io/shortid"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UpdateAccountRequest struct {
	Username  string `json:"username"`
	AvatarUrl string `json:"avatar_url"`
}

type FriendRequestRequest struct {
	Username string `json:"username"`
}

type FriendRespondRequest struct {
	Username string `json:"username"`
	Action   string `json:"action"`
}

func (s *MessagramApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *MessagramApp) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *MessagramApp) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	username := types.NormalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		errResp := NewBadRequestErrorWithMessage("missing fields")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newAccount, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     username,
		PasswordHash: pwdHash,
	})
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrDuplicate) {
			errResp = NewConflictError("user exists")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.User{
		Id:        newAccount.Id,
		Username:  newAccount.Username,
		AvatarUrl: newAccount.AvatarUrl,
	})
}

func (s *MessagramApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	username := types.NormalizeUsername(lr.Username)
	if username == "" || lr.Password == "" {
		errResp := NewBadRequestErrorWithMessage("missing fields")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountByUsername(username)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(account.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.createJwtForSession(account.Username, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, types.User{
		Id:        account.Id,
		Username:  account.Username,
		AvatarUrl: account.AvatarUrl,
	})
}

func (s *MessagramApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", 0))
	w.WriteHeader(http.StatusNoContent)
}

func (s *MessagramApp) searchUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	query := types.NormalizeUsername(r.URL.Query().Get("q"))
	accounts, err := s.db.SearchAccounts(query, identity)
	if err != nil {
		s.log.Println("search accounts:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := make([]types.User, len(accounts))
	for i, a := range accounts {
		users[i] = types.User{
			Id:        a.Id,
			Username:  a.Username,
			AvatarUrl: a.AvatarUrl,
		}
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *MessagramApp) profile(w http.ResponseWriter, r *http.Request) {
	username := types.NormalizeUsername(r.URL.Query().Get("username"))
	if username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountByUsername(username)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.User{
		Username:  account.Username,
		AvatarUrl: account.AvatarUrl,
	})
}

// updateAccount applies a rename and/or avatar change. A rename
// cascades to every message and friend edge referencing the old
// identity, since both tables key on the username string. The four
// rewrites are issued independently and are not transactional: a
// failure in one leaves stale references in that table only. The
// failure is logged and the remaining rewrites still run.
func (s *MessagramApp) updateAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	curAccount, err := s.db.GetAccountByUsername(identity)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newName := types.NormalizeUsername(req.Username)
	if newName == "" {
		newName = curAccount.Username
	}

	newAvatar := req.AvatarUrl
	if newAvatar == "" {
		newAvatar = curAccount.AvatarUrl
	}

	updated, err := s.db.UpdateAccount(database.UpdateAccountParams{
		UserId:    curAccount.Id,
		Username:  newName,
		AvatarUrl: newAvatar,
	})
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrDuplicate) {
			errResp = NewConflictError("user exists")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if newName != curAccount.Username {
		s.renameCascade(curAccount.Username, newName)
	}

	token, err := s.createJwtForSession(updated.Username, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, types.User{
		Id:        updated.Id,
		Username:  updated.Username,
		AvatarUrl: updated.AvatarUrl,
	})
}

func (s *MessagramApp) renameCascade(oldName, newName string) {
	if err := s.db.UpdateMessageSender(oldName, newName); err != nil {
		s.log.Printf("rename cascade: messages sender %q -> %q: %v", oldName, newName, err)
	}
	if err := s.db.UpdateMessageReceiver(oldName, newName); err != nil {
		s.log.Printf("rename cascade: messages receiver %q -> %q: %v", oldName, newName, err)
	}
	if err := s.db.UpdateFriendEdgeOwner(oldName, newName); err != nil {
		s.log.Printf("rename cascade: edges owner %q -> %q: %v", oldName, newName, err)
	}
	if err := s.db.UpdateFriendEdgeTarget(oldName, newName); err != nil {
		s.log.Printf("rename cascade: edges target %q -> %q: %v", oldName, newName, err)
	}
}

func (s *MessagramApp) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req FriendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	err := s.social.Request(identity, req.Username)
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, social.ErrSelfRequest):
			errResp = NewBadRequestErrorWithMessage(err.Error())
		case errors.Is(err, social.ErrAlreadyRequested):
			errResp = NewConflictError("already requested")
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, map[string]bool{"success": true})
}

func (s *MessagramApp) respondFriendRequest(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req FriendRespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.social.Respond(identity, req.Username, req.Action == "accept"); err != nil {
		s.log.Println("respond friend request:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *MessagramApp) listFriends(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	friends, err := s.social.Friends(identity)
	if err != nil {
		s.log.Println("list friends:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, friends)
}

func (s *MessagramApp) listFriendRequests(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	requests, err := s.social.IncomingRequests(identity)
	if err != nil {
		s.log.Println("list friend requests:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, requests)
}

const maxUploadSize = 10 << 20

func (s *MessagramApp) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	defer file.Close()

	sid, err := shortid.Generate()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	name := sid + filepath.Ext(header.Filename)
	dst, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		s.log.Println("create upload file:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		s.log.Println("write upload file:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	s.writeJson(w, http.StatusOK, map[string]string{
		"url": fmt.Sprintf("%s://%s/uploads/%s", scheme, r.Host, name),
	})
}

func (s *MessagramApp) serveWs(w http.ResponseWriter, r *http.Request) {
	if _, ok := Identity(r.Context()); !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
