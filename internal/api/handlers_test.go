package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/messagram/messagram-server/internal/config"
	"github.com/messagram/messagram-server/internal/database"
	"github.com/messagram/messagram-server/internal/server"
	"github.com/messagram/messagram-server/internal/social"
	"github.com/messagram/messagram-server/internal/testutil"
	"github.com/messagram/messagram-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

func newTestApp(t *testing.T, db database.MessagramRepository) *MessagramApp {
	logger := testutil.TestLogger(t)
	cfg := &config.Config{
		ServerAddr:     "localhost:3001",
		DatabaseDSN:    "dsn",
		SigningKey:     []byte("secret"),
		AllowedOrigins: []string{"http://localhost:5173"},
		UploadDir:      t.TempDir(),
	}

	return NewMessagramApp(http.NewServeMux(), logger, &server.ChatServer{}, db, social.NewService(logger, db), cfg)
}

// findCookie is a helper function to find a cookie by name in the response recorder.
// It returns the cookie if found, or nil if not found.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func asIdentity(req *http.Request, identity string) *http.Request {
	return req.WithContext(WithIdentity(req.Context(), identity))
}

func Test_health(t *testing.T) {
	app := newTestApp(t, &database.MockMessagramRepository{})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	app.health(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String(), "expected health check body")
}

func Test_register(t *testing.T) {
	expectedAccount := database.Account{
		Id:        1,
		Username:  "newuser",
		AvatarUrl: "http://example.com/avatar.png",
	}
	tcases := []struct {
		name        string
		body        any
		success     bool
		mockAccount database.Account
		mockErr     error
		expectedErr *ApiError
	}{
		{
			name:        "successfully creates a new account",
			body:        RegisterRequest{Username: "NewUser ", Password: "password"},
			success:     true,
			mockAccount: expectedAccount,
		},
		{
			name:        "fails with invalid json body",
			body:        "invalid json",
			expectedErr: NewBadRequestError(),
		},
		{
			name:        "fails with missing username",
			body:        RegisterRequest{Password: "password"},
			expectedErr: NewBadRequestErrorWithMessage("missing fields"),
		},
		{
			name:        "fails with missing password",
			body:        RegisterRequest{Username: "newuser"},
			expectedErr: NewBadRequestErrorWithMessage("missing fields"),
		},
		{
			name:        "fails with duplicate username",
			body:        RegisterRequest{Username: "newuser", Password: "password"},
			mockErr:     database.ErrDuplicate,
			expectedErr: NewConflictError("user exists"),
		},
		{
			name:        "fails with storage error",
			body:        RegisterRequest{Username: "newuser", Password: "password"},
			mockErr:     errors.New("db down"),
			expectedErr: NewInternalServerError(nil),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockMessagramRepository{}
			defer db.AssertExpectations(t)

			if tc.success || tc.mockErr != nil {
				db.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
					return p.Username == "newuser" && p.PasswordHash != ""
				})).Return(tc.mockAccount, tc.mockErr).Once()
			}

			app := newTestApp(t, db)
			body, _ := json.Marshal(tc.body)
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
			app.register(rr, req)

			if tc.expectedErr != nil {
				assert.Equal(t, tc.expectedErr.StatusCode, rr.Code, "expected error status code")
				return
			}

			assert.Equal(t, http.StatusCreated, rr.Code, "expected status code to be 201")
			var user types.User
			assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
			assert.Equal(t, expectedAccount.Username, user.Username, "expected normalized username")
		})
	}
}

func Test_login(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	assert.NoError(t, err)

	account := database.Account{
		Id:           1,
		Username:     "alice",
		PasswordHash: string(hash),
		AvatarUrl:    "http://example.com/alice.png",
	}

	t.Run("successful login sets a token cookie", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("GetAccountByUsername", "alice").Return(account, nil).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		body, _ := json.Marshal(LoginRequest{Username: " Alice", Password: "password"})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
		app.login(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		cookie := findCookie(rr, tokenCookieKey)
		assert.NotNil(t, cookie, "expected token cookie to be set")

		identity, err := app.extractIdentityFromToken(cookie.Value)
		assert.NoError(t, err, "expected token to be valid")
		assert.Equal(t, "alice", identity, "expected token to carry the identity")
	})

	t.Run("unknown user returns not found", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("GetAccountByUsername", "ghost").Return(database.Account{}, sql.ErrNoRows).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		body, _ := json.Marshal(LoginRequest{Username: "ghost", Password: "password"})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
		app.login(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected status code to be 404")
	})

	t.Run("wrong password returns unauthorized", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("GetAccountByUsername", "alice").Return(account, nil).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		body, _ := json.Marshal(LoginRequest{Username: "alice", Password: "wrong"})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
		app.login(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
		assert.Nil(t, findCookie(rr, tokenCookieKey), "expected no token cookie")
	})

	t.Run("missing fields returns bad request", func(t *testing.T) {
		app := newTestApp(t, &database.MockMessagramRepository{})
		body, _ := json.Marshal(LoginRequest{Username: "alice"})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
		app.login(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected status code to be 400")
	})
}

func Test_searchUsers(t *testing.T) {
	t.Run("excludes the caller from results", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("SearchAccounts", "bo", "alice").Return([]database.Account{
			{Id: 2, Username: "bob", AvatarUrl: "http://example.com/bob.png"},
		}, nil).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		req := asIdentity(httptest.NewRequest(http.MethodGet, "/api/users?q=Bo", nil), "alice")
		app.searchUsers(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		var users []types.User
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
		assert.Len(t, users, 1, "expected one match")
		assert.Equal(t, "bob", users[0].Username)
	})

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		app := newTestApp(t, &database.MockMessagramRepository{})
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/users?q=bo", nil)
		app.searchUsers(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected status code to be 401")
	})
}

func Test_profile(t *testing.T) {
	t.Run("returns public attributes", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("GetAccountByUsername", "bob").Return(database.Account{
			Id:           2,
			Username:     "bob",
			PasswordHash: "secret-hash",
			AvatarUrl:    "http://example.com/bob.png",
		}, nil).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/users/profile?username=Bob", nil)
		app.profile(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		assert.NotContains(t, rr.Body.String(), "secret-hash", "expected no credential material in the profile")

		var user types.User
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
		assert.Equal(t, "bob", user.Username)
		assert.Equal(t, "http://example.com/bob.png", user.AvatarUrl)
	})

	t.Run("unknown username returns not found", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("GetAccountByUsername", "ghost").Return(database.Account{}, sql.ErrNoRows).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/users/profile?username=ghost", nil)
		app.profile(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code, "expected status code to be 404")
	})
}

func Test_updateAccount(t *testing.T) {
	current := database.Account{
		Id:        1,
		Username:  "alice",
		AvatarUrl: "http://example.com/alice.png",
	}

	t.Run("rename cascades to messages and edges", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("GetAccountByUsername", "alice").Return(current, nil).Once()
		db.On("UpdateAccount", database.UpdateAccountParams{
			UserId:    1,
			Username:  "alice2",
			AvatarUrl: current.AvatarUrl,
		}).Return(database.Account{Id: 1, Username: "alice2", AvatarUrl: current.AvatarUrl}, nil).Once()
		db.On("UpdateMessageSender", "alice", "alice2").Return(nil).Once()
		db.On("UpdateMessageReceiver", "alice", "alice2").Return(nil).Once()
		db.On("UpdateFriendEdgeOwner", "alice", "alice2").Return(nil).Once()
		db.On("UpdateFriendEdgeTarget", "alice", "alice2").Return(nil).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		body, _ := json.Marshal(UpdateAccountRequest{Username: "Alice2 "})
		rr := httptest.NewRecorder()
		req := asIdentity(httptest.NewRequest(http.MethodPut, "/api/account", bytes.NewReader(body)), "alice")
		app.updateAccount(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

		cookie := findCookie(rr, tokenCookieKey)
		assert.NotNil(t, cookie, "expected a refreshed token cookie")
		identity, err := app.extractIdentityFromToken(cookie.Value)
		assert.NoError(t, err)
		assert.Equal(t, "alice2", identity, "expected the token to carry the new identity")
	})

	t.Run("a cascade failure does not stop the remaining rewrites", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("GetAccountByUsername", "alice").Return(current, nil).Once()
		db.On("UpdateAccount", mock.AnythingOfType("database.UpdateAccountParams")).
			Return(database.Account{Id: 1, Username: "alice2", AvatarUrl: current.AvatarUrl}, nil).Once()
		db.On("UpdateMessageSender", "alice", "alice2").Return(errors.New("db down")).Once()
		db.On("UpdateMessageReceiver", "alice", "alice2").Return(nil).Once()
		db.On("UpdateFriendEdgeOwner", "alice", "alice2").Return(nil).Once()
		db.On("UpdateFriendEdgeTarget", "alice", "alice2").Return(nil).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		body, _ := json.Marshal(UpdateAccountRequest{Username: "alice2"})
		rr := httptest.NewRecorder()
		req := asIdentity(httptest.NewRequest(http.MethodPut, "/api/account", bytes.NewReader(body)), "alice")
		app.updateAccount(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected the update to still succeed")
	})

	t.Run("avatar-only update skips the cascade", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("GetAccountByUsername", "alice").Return(current, nil).Once()
		db.On("UpdateAccount", database.UpdateAccountParams{
			UserId:    1,
			Username:  "alice",
			AvatarUrl: "http://example.com/new.png",
		}).Return(database.Account{Id: 1, Username: "alice", AvatarUrl: "http://example.com/new.png"}, nil).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		body, _ := json.Marshal(UpdateAccountRequest{AvatarUrl: "http://example.com/new.png"})
		rr := httptest.NewRecorder()
		req := asIdentity(httptest.NewRequest(http.MethodPut, "/api/account", bytes.NewReader(body)), "alice")
		app.updateAccount(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
		db.AssertNotCalled(t, "UpdateMessageSender")
	})

	t.Run("rename to an existing username is a conflict", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("GetAccountByUsername", "alice").Return(current, nil).Once()
		db.On("UpdateAccount", mock.AnythingOfType("database.UpdateAccountParams")).
			Return(database.Account{}, database.ErrDuplicate).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		body, _ := json.Marshal(UpdateAccountRequest{Username: "bob"})
		rr := httptest.NewRecorder()
		req := asIdentity(httptest.NewRequest(http.MethodPut, "/api/account", bytes.NewReader(body)), "alice")
		app.updateAccount(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code, "expected status code to be 409")
		db.AssertNotCalled(t, "UpdateMessageSender")
	})
}

func Test_sendFriendRequest(t *testing.T) {
	tcases := []struct {
		name         string
		target       string
		mockErr      error
		expectedCode int
	}{
		{
			name:         "creates a pending request",
			target:       "bob",
			expectedCode: http.StatusCreated,
		},
		{
			name:         "self request is rejected",
			target:       "alice",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "duplicate request is a conflict",
			target:       "bob",
			mockErr:      database.ErrDuplicate,
			expectedCode: http.StatusConflict,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockMessagramRepository{}
			defer db.AssertExpectations(t)

			if tc.target != "alice" {
				db.On("CreateFriendEdge", "alice", tc.target, database.EdgeStatusPending).Return(tc.mockErr).Once()
			}

			app := newTestApp(t, db)
			body, _ := json.Marshal(FriendRequestRequest{Username: tc.target})
			rr := httptest.NewRecorder()
			req := asIdentity(httptest.NewRequest(http.MethodPost, "/api/friends/request", bytes.NewReader(body)), "alice")
			app.sendFriendRequest(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code to match")
		})
	}
}

func Test_respondFriendRequest(t *testing.T) {
	t.Run("accept updates the edge and ensures the mirror", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("UpdateFriendEdgeStatus", "alice", "bob", database.EdgeStatusAccepted).Return(nil).Once()
		db.On("EnsureFriendEdge", "bob", "alice", database.EdgeStatusAccepted).Return(nil).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		body, _ := json.Marshal(FriendRespondRequest{Username: "alice", Action: "accept"})
		rr := httptest.NewRecorder()
		req := asIdentity(httptest.NewRequest(http.MethodPost, "/api/friends/respond", bytes.NewReader(body)), "bob")
		app.respondFriendRequest(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
	})

	t.Run("decline deletes the edge", func(t *testing.T) {
		db := &database.MockMessagramRepository{}
		db.On("DeleteFriendEdge", "alice", "bob").Return(nil).Once()
		defer db.AssertExpectations(t)

		app := newTestApp(t, db)
		body, _ := json.Marshal(FriendRespondRequest{Username: "alice", Action: "decline"})
		rr := httptest.NewRecorder()
		req := asIdentity(httptest.NewRequest(http.MethodPost, "/api/friends/respond", bytes.NewReader(body)), "bob")
		app.respondFriendRequest(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
	})
}

func Test_listFriends(t *testing.T) {
	db := &database.MockMessagramRepository{}
	db.On("ListFriends", "alice").Return([]database.Account{
		{Id: 2, Username: "bob", AvatarUrl: "http://example.com/bob.png"},
	}, nil).Once()
	defer db.AssertExpectations(t)

	app := newTestApp(t, db)
	rr := httptest.NewRecorder()
	req := asIdentity(httptest.NewRequest(http.MethodGet, "/api/friends", nil), "alice")
	app.listFriends(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
	var friends []types.User
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &friends))
	assert.Len(t, friends, 1, "expected one friend")
	assert.Equal(t, "bob", friends[0].Username)
}

func Test_listFriendRequests(t *testing.T) {
	db := &database.MockMessagramRepository{}
	db.On("ListFriendRequests", "bob").Return([]database.Account{
		{Id: 1, Username: "alice", AvatarUrl: "http://example.com/alice.png"},
	}, nil).Once()
	defer db.AssertExpectations(t)

	app := newTestApp(t, db)
	rr := httptest.NewRecorder()
	req := asIdentity(httptest.NewRequest(http.MethodGet, "/api/friends/requests", nil), "bob")
	app.listFriendRequests(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
	var requests []types.User
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &requests))
	assert.Len(t, requests, 1, "expected one pending request")
	assert.Equal(t, "alice", requests[0].Username)
}

func Test_upload(t *testing.T) {
	app := newTestApp(t, &database.MockMessagramRepository{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "picture.png")
	assert.NoError(t, err)
	_, err = fw.Write([]byte("fake image bytes"))
	assert.NoError(t, err)
	assert.NoError(t, mw.Close())

	rr := httptest.NewRecorder()
	req := asIdentity(httptest.NewRequest(http.MethodPost, "/upload", &buf), "alice")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	app.upload(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp["url"], "/uploads/", "expected the upload URL to be returned")
	assert.Contains(t, resp["url"], ".png", "expected the original extension to be kept")

	entries, err := os.ReadDir(app.uploadDir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1, "expected the file to be written to the upload dir")

	content, err := os.ReadFile(filepath.Join(app.uploadDir, entries[0].Name()))
	assert.NoError(t, err)
	assert.Equal(t, "fake image bytes", string(content), "expected file content to match the upload")
}
