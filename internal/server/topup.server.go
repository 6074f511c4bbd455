package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"topup-service/internal/config"
	"topup-service/internal/handler"
	"topup-service/internal/provider/gateway"
	"topup-service/internal/pub"
	"topup-service/internal/repository"
	"topup-service/internal/router"
	deposit "topup-service/internal/usecase/deposit"
	"topup-service/internal/wallet"
	"topup-service/internal/wizard"
)

func NewServer(cfg config.AppConfig) *http.Server {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	// --- Connect Postgres ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect DB: %v", err)
	}

	// --- Init Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	// --- Gateway and wallet collaborators ---
	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayToken, nil)
	walletSvc := wallet.NewHTTPService(cfg.WalletBaseURL, cfg.WalletToken, nil)
	reconciler := wallet.NewReconciler(gatewayClient, walletSvc, wallet.NewRedisMarker(rdb), logger)

	// --- Core wiring ---
	repo := repository.NewDepositRepo(db)
	publisher := pub.NewPublisher(rdb, logger)
	sessions := wizard.NewStore()
	uc := deposit.NewUsecase(sessions, gatewayClient, reconciler, repo, publisher, logger,
		deposit.WithPolling(cfg.PollInterval, cfg.PollTimeout),
	)

	// --- Handlers ---
	topupHandler := handler.NewTopupHandler(uc, logger)

	// --- Router ---
	r := chi.NewRouter()
	router.SetupRoutes(r, topupHandler, rdb)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}
}
