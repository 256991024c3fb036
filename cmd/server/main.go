package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/messagram/messagram-server/internal/api"
	"github.com/messagram/messagram-server/internal/config"
	"github.com/messagram/messagram-server/internal/database"
	"github.com/messagram/messagram-server/internal/server"
	"github.com/messagram/messagram-server/internal/social"
	"github.com/messagram/messagram-server/internal/stats"
)

const defaultSigningKey = "d2hhdGV2ZXJfeW91X2RvX2NoYW5nZV90aGlzX2tleQ=="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	uploadDir      string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:3001", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=messagram sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.StringVar(&uploadDir, "upload-dir", "uploads", "directory for uploaded files")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[messagram] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, uploadDir)
	if err != nil {
		logger.Fatal("config:", err)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal("create upload dir:", err)
	}

	dbConn, err := database.NewPgMessagramRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.RegisterMetric(stats.ActiveSessions)
	statsUpdater.RegisterMetric(stats.MessagesSent)
	statsUpdater.RegisterMetric(stats.MessagesDelivered)

	chatServer, err := server.NewChatServer(logger, dbConn, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	socialService := social.NewService(logger, dbConn)

	srv := api.NewMessagramApp(mux, logger, chatServer, dbConn, socialService, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	chatServer.Shutdown()

	logger.Println("shutdown complete")
}
