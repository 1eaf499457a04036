package repository

import (
	"github.com/tnqbao/gau-document-gateway/infra"
)

type Repository struct {
	DocumentRepo *DocumentRepository
}

func InitRepository(infra *infra.Infra) *Repository {
	return &Repository{
		DocumentRepo: NewDocumentRepository(infra.Postgres.DB),
	}
}
