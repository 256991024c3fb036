package api

import (
	"net/http"
	"testing"

	"github.com/messagram/messagram-server/internal/config"
	"github.com/messagram/messagram-server/internal/database"
	"github.com/messagram/messagram-server/internal/server"
	"github.com/messagram/messagram-server/internal/social"
	"github.com/messagram/messagram-server/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMessagramApp(t *testing.T) {
	logger := testutil.TestLogger(t)
	db := &database.MockMessagramRepository{}
	cs := &server.ChatServer{}
	svc := social.NewService(logger, db)
	cfg := &config.Config{
		ServerAddr:     "localhost:3001",
		DatabaseDSN:    "dsn",
		SigningKey:     []byte("secret"),
		AllowedOrigins: []string{"http://localhost:5173"},
		UploadDir:      t.TempDir(),
	}

	app := NewMessagramApp(http.NewServeMux(), logger, cs, db, svc, cfg)

	assert.NotNil(t, app, "expected app to be non-nil")
	assert.Equal(t, logger, app.log, "expected logger to be set")
	assert.Equal(t, db, app.db, "expected repository to be set")
	assert.Equal(t, cs, app.cs, "expected chat server to be set")
	assert.Equal(t, svc, app.social, "expected social service to be set")
	assert.Equal(t, cfg.SigningKey, app.signingKey, "expected signing key from config")
	assert.Equal(t, cfg.AllowedOrigins, app.allowedOrigins, "expected allowed origins from config")
	assert.Equal(t, cfg.UploadDir, app.uploadDir, "expected upload dir from config")
	assert.NotNil(t, app.mux, "expected http server to be configured")
	assert.Equal(t, cfg.ServerAddr, app.mux.Addr, "expected server address from config")
}
