package main

import (
	"fmt"
	"os"

	"github.com/aselim/homecare-contracts/internal/auth"
	"github.com/aselim/homecare-contracts/internal/config"
	"github.com/aselim/homecare-contracts/internal/db"
	"github.com/aselim/homecare-contracts/internal/excel"
	httphandler "github.com/aselim/homecare-contracts/internal/http"
	"github.com/aselim/homecare-contracts/internal/http/middleware"
	"github.com/aselim/homecare-contracts/internal/logger"
	"github.com/aselim/homecare-contracts/internal/pdf"
	"github.com/aselim/homecare-contracts/internal/repository"
	"github.com/aselim/homecare-contracts/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	contractRepo := repository.NewContractRepository(database)
	ledgerRepo := repository.NewLedgerRepository(database)

	replacementService := service.NewReplacementService(contractRepo, cfg, log)
	signatureService := service.NewSignatureService(contractRepo, log)
	queryService := service.NewQueryService(contractRepo, ledgerRepo)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(
		replacementService,
		signatureService,
		queryService,
		excel.NewGenerator(),
		pdf.NewGenerator(),
		log,
	)
	authMiddleware := middleware.Auth(tokenParser)
	webhookMiddleware := middleware.WebhookToken(cfg.Signature.WebhookToken)
	router := httphandler.NewRouter(handler, authMiddleware, webhookMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting contracts service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
