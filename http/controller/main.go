package controller

import (
	"github.com/tnqbao/gau-document-gateway/config"
	"github.com/tnqbao/gau-document-gateway/infra"
	"github.com/tnqbao/gau-document-gateway/repository"
	"github.com/tnqbao/gau-document-gateway/service"
)

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository
	Service    *service.DocumentService
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}

	documentService := service.NewDocumentService(
		infra.Blob,
		repo.DocumentRepo,
		infra.Produce.DocumentService,
		infra.Logger,
		service.Options{
			Bucket:            config.EnvConfig.Storage.Bucket,
			SignedURLTTL:      config.EnvConfig.Storage.SignedURLTTL,
			DependencyTimeout: config.EnvConfig.Storage.DependencyTimeout,
		},
	)

	return &Controller{
		Config:     config,
		Infra:      infra,
		Repository: repo,
		Service:    documentService,
	}
}
