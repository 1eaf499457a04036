package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-document-gateway/config"
	"github.com/tnqbao/gau-document-gateway/http/controller"
	"github.com/tnqbao/gau-document-gateway/http/route"
	infraPkg "github.com/tnqbao/gau-document-gateway/infra"
	"github.com/tnqbao/gau-document-gateway/repository"
)

func main() {
	err := godotenv.Load("staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	defer infra.Close()
	repo := repository.InitRepository(infra)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := infra.Blob.EnsureBucket(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to ensure bucket %s: %v", cfg.EnvConfig.Storage.Bucket, err)
	}
	cancel()

	ctrl := controller.NewController(cfg, infra, repo)

	router := routes.SetupRouter(ctrl)

	addr := ":" + cfg.EnvConfig.Port
	log.Println("HTTP Server started on", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
