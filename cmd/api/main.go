package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"deskhub.org/internal/account"
	"deskhub.org/internal/audit"
	"deskhub.org/internal/auth"
	"deskhub.org/internal/config"
	"deskhub.org/internal/httpapi"
	"deskhub.org/internal/obs"
	"deskhub.org/internal/session"
	"deskhub.org/internal/ticket"
)

var (
	version = "1.2.0"
	commit  = "dev"
)

// logResetSender stands in when no mail transport is configured. It records
// that a reset was requested without exposing the token.
type logResetSender struct{}

func (logResetSender) SendReset(ctx context.Context, email, token string) error {
	obs.LogRequest(map[string]any{
		"level": "info",
		"msg":   "password_reset_issued",
		"email": email,
	})
	return nil
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.FromEnv()
	if cfg.PGDSN == "" {
		log.Fatal("missing DESKHUB_PG_DSN")
	}

	db, err := sql.Open("pgx", cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	resetTokens, err := auth.NewResetTokenizer(cfg.ResetSecret, cfg.ResetTTL)
	if err != nil {
		log.Fatalf("reset tokens: %v", err)
	}

	accountStore := account.NewPGStore(db)
	auditlog := audit.NewPGRecorder(db)
	hasher := auth.NewBcryptHasher()
	sessions := session.NewStore(rdb, "deskhub", cfg.SessionTTL)
	accounts := account.NewService(accountStore, hasher, sessions, auditlog)
	authn := auth.NewAuthenticator(accountStore, hasher)
	tickets := ticket.NewService(ticket.NewPGStore(db), accountStore, auditlog)

	api := httpapi.New(httpapi.Config{
		Accounts:      accounts,
		AccountStore:  accountStore,
		Authenticator: authn,
		Sessions:      sessions,
		SessionTTL:    cfg.SessionTTL,
		Tickets:       tickets,
		ResetTokens:   resetTokens,
		ResetSender:   logResetSender{},
		ReadyProbe:    httpapi.ReadyProbe{DB: db},
		Version:       version,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting deskhub-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = rdb.Close()
	_ = db.Close()
	log.Println("Stopped")
}
