package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/mkravets/isp-cabinet/internal/config"
	"github.com/mkravets/isp-cabinet/internal/database"
	"github.com/mkravets/isp-cabinet/internal/handler"
	"github.com/mkravets/isp-cabinet/internal/queue"
	"github.com/mkravets/isp-cabinet/internal/repository"
	"github.com/mkravets/isp-cabinet/internal/router"
	"github.com/mkravets/isp-cabinet/internal/service"
	"github.com/mkravets/isp-cabinet/internal/session"
)

func main() {
	_ = godotenv.Load() // optional .env for local runs
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("database: %v", err)
	}
	cancel()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable: web sessions disabled, rate limiting off")
	}

	accounts := repository.NewAccountRepo(db)
	cards := repository.NewCardRepo(db)
	tokens := repository.NewTokenRepo(db)
	redemption := service.NewRedemptionService(db, cards)

	authHandler := handler.NewAuthHandler(cfg, accounts, tokens)
	userHandler := handler.NewUserHandler(accounts, redemption, cards)
	adminHandler := handler.NewAdminHandler(accounts, tokens)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAPI(e, cfg, rdb, authHandler, userHandler, adminHandler, tokens)

	if rdb != nil {
		sessions := session.NewStore(rdb, time.Duration(cfg.SessionTTLMin)*time.Minute)
		webHandler := handler.NewWebHandler(accounts, sessions, redemption, cards, adminHandler, cfg.BcryptCost)
		router.RegisterWeb(e, webHandler, sessions)
	}

	go func() {
		if err := queue.StartPaymentsConsumer(); err != nil {
			log.Printf("payments consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
