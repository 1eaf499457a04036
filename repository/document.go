package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-document-gateway/entity"
	"github.com/tnqbao/gau-document-gateway/service"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository is the Postgres metadata store.
type DocumentRepository struct {
	db *gorm.DB
}

var _ service.MetadataStore = (*DocumentRepository)(nil)

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// upsertColumns are overwritten when the path already exists. id, owner_id and
// created_at are never part of the update set.
var upsertColumns = []string{"filename", "content_type", "sign_status", "size", "last_modified", "attributes"}

func (r *DocumentRepository) UpsertByPath(ctx context.Context, doc *entity.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(doc).Error
	if err != nil {
		return err
	}

	// On conflict the stored id differs from doc.ID, so reload into a zero value
	// to keep gorm from adding the primary key to the filter.
	var stored entity.Document
	if err := r.db.WithContext(ctx).Where("path = ?", doc.Path).Take(&stored).Error; err != nil {
		return err
	}
	*doc = stored
	return nil
}

func (r *DocumentRepository) FindByPath(ctx context.Context, path string) (*entity.Document, error) {
	var doc entity.Document
	err := r.db.WithContext(ctx).Where("path = ?", path).First(&doc).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

func (r *DocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	var doc entity.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

func (r *DocumentRepository) FindByOwner(ctx context.Context, ownerID string, limit, offset int) ([]entity.Document, int64, error) {
	return r.page(r.db.WithContext(ctx).Model(&entity.Document{}).Where("owner_id = ?", ownerID), limit, offset)
}

func (r *DocumentRepository) FindAll(ctx context.Context, limit, offset int) ([]entity.Document, int64, error) {
	return r.page(r.db.WithContext(ctx).Model(&entity.Document{}), limit, offset)
}

func (r *DocumentRepository) page(query *gorm.DB, limit, offset int) ([]entity.Document, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []entity.Document
	err := query.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("path ASC").
		Limit(limit).
		Offset(offset).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *DocumentRepository) DeleteByPath(ctx context.Context, path string) error {
	result := r.db.WithContext(ctx).Where("path = ?", path).Delete(&entity.Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return service.ErrRecordNotFound
	}
	return nil
}

func (r *DocumentRepository) PatchByPath(ctx context.Context, path string, patch service.DocumentPatch) error {
	updates := map[string]interface{}{
		"last_modified": patch.LastModified,
	}
	if patch.ContentType != "" {
		updates["content_type"] = patch.ContentType
	}
	if patch.Size != nil {
		updates["size"] = *patch.Size
	}

	result := r.db.WithContext(ctx).Model(&entity.Document{}).Where("path = ?", path).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return service.ErrRecordNotFound
	}
	return nil
}

// MarkSigned only touches unsigned records, so concurrent signers change at most
// one row between them.
func (r *DocumentRepository) MarkSigned(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.Document{}).
		Where("id = ? AND sign_status = ?", id, entity.SignStatusUnsigned).
		Updates(map[string]interface{}{
			"sign_status":   entity.SignStatusSigned,
			"last_modified": at,
		})
	return result.RowsAffected, result.Error
}

func (r *DocumentRepository) FindByPathPrefix(ctx context.Context, prefix string) ([]entity.Document, error) {
	var docs []entity.Document
	err := r.db.WithContext(ctx).
		Where("path LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Order("path ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return service.ErrRecordNotFound
	}
	return err
}
