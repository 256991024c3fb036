package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/messagram/messagram-server/internal/config"
	"github.com/messagram/messagram-server/internal/database"
	"github.com/messagram/messagram-server/internal/server"
	"github.com/messagram/messagram-server/internal/social"
)

type MessagramApp struct {
	log            *log.Logger
	db             database.MessagramRepository
	mux            *http.Server
	cs             *server.ChatServer
	social         *social.Service
	signingKey     []byte
	allowedOrigins []string
	uploadDir      string
}

func NewMessagramApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.MessagramRepository,
	social *social.Service, cfg *config.Config) *MessagramApp {
	s := &MessagramApp{
		log:            logger,
		db:             db,
		cs:             cs,
		social:         social,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		uploadDir:      cfg.UploadDir,
	}

	mux.HandleFunc("GET /{$}", s.health)
	mux.HandleFunc("POST /register", s.register)
	mux.HandleFunc("POST /login", s.login)
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/users", s.authMiddleware(s.searchUsers))
	mux.HandleFunc("GET /api/users/profile", s.profile)
	mux.Handle("PUT /api/account", s.authMiddleware(s.updateAccount))
	mux.Handle("POST /api/friends/request", s.authMiddleware(s.sendFriendRequest))
	mux.Handle("POST /api/friends/respond", s.authMiddleware(s.respondFriendRequest))
	mux.Handle("GET /api/friends", s.authMiddleware(s.listFriends))
	mux.Handle("GET /api/friends/requests", s.authMiddleware(s.listFriendRequests))
	mux.Handle("POST /upload", s.authMiddleware(s.upload))
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *MessagramApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *MessagramApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
