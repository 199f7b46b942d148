package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"authflow/internal/auth"
	"authflow/internal/config"
	"authflow/internal/database"
	"authflow/internal/mailer"
	"authflow/internal/server"
	"authflow/internal/token"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("mongo connect error: %v", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Errorf("mongo disconnect error: %v", err)
		}
	}()
	log.Info("connected to MongoDB")

	users := database.UserCollection(client, cfg.MongoDB)
	if err := database.EnsureIndexes(ctx, users); err != nil {
		log.Fatalf("index error: %v", err)
	}

	tokens, err := token.NewManager([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatalf("token manager error: %v", err)
	}
	sender, err := mailer.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPUser, cfg.SMTPPassword, cfg.SenderEmail)
	if err != nil {
		log.Fatalf("mailer error: %v", err)
	}

	svc := auth.NewService(auth.NewMongoStore(users), tokens, sender, cfg.BaseURL, log)

	srv := server.New(server.Config{
		Addr:        ":" + cfg.Port,
		Production:  cfg.Production(),
		CORSOrigins: cfg.CORSOrigins,
	}, svc, log)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Info("server exited gracefully")
}
