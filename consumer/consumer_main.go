package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-document-gateway/config"
	"github.com/tnqbao/gau-document-gateway/consumer/worker"
	infraPkg "github.com/tnqbao/gau-document-gateway/infra"
	"github.com/tnqbao/gau-document-gateway/repository"
)

func main() {
	err := godotenv.Load("../staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	defer infra.Close()
	repo := repository.InitRepository(infra)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repairConsumer := worker.NewRepairConsumer(infra.RabbitMQ.Channel, infra, repo)
	if err := repairConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start Repair consumer: %v", err)
		log.Fatalf("Failed to start Repair consumer: %v", err)
	}

	inconsistencyConsumer := worker.NewInconsistencyConsumer(infra.RabbitMQ.Channel, infra)
	if err := inconsistencyConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start Inconsistency consumer: %v", err)
		log.Fatalf("Failed to start Inconsistency consumer: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()

	infra.Logger.InfoWithContextf(ctx, "Consumer exited properly")
}
