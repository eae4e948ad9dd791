package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldops/maintenance-visits/internal/auth"
	"github.com/fieldops/maintenance-visits/internal/config"
	"github.com/fieldops/maintenance-visits/internal/db"
	"github.com/fieldops/maintenance-visits/internal/excel"
	httphandler "github.com/fieldops/maintenance-visits/internal/http"
	"github.com/fieldops/maintenance-visits/internal/http/middleware"
	"github.com/fieldops/maintenance-visits/internal/logger"
	"github.com/fieldops/maintenance-visits/internal/pdf"
	"github.com/fieldops/maintenance-visits/internal/repository"
	"github.com/fieldops/maintenance-visits/internal/service"
	"github.com/fieldops/maintenance-visits/internal/sweep"
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
	visitRepo := repository.NewVisitRepository(database)
	stockRepo := repository.NewStockRepository(database)
	directoryRepo := repository.NewDirectoryRepository(database)
	analyticsRepo := repository.NewAnalyticsRepository(database)

	contractService := service.NewContractService(contractRepo, visitRepo, directoryRepo, log, cfg.Engine.ExpiringSoonDays)
	schedulingService := service.NewSchedulingService(contractRepo, visitRepo, log)
	executionService := service.NewExecutionService(visitRepo, contractRepo, log, cfg.Engine.MissedGrace)
	analyticsService := service.NewAnalyticsService(analyticsRepo, contractRepo, visitRepo, excel.NewGenerator(), pdf.NewGenerator(), log, cfg.Engine)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := sweep.NewRunner(contractService, executionService, schedulingService, log, cfg.Engine)
	go runner.Run(ctx)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(contractService, schedulingService, executionService, analyticsService, stockRepo, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting visits service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
