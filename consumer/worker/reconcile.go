package worker

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-document-gateway/entity"
	"github.com/tnqbao/gau-document-gateway/policy"
	"github.com/tnqbao/gau-document-gateway/service"
	"gorm.io/datatypes"
)

// Reconciler re-applies metadata for blobs whose metadata write failed. The
// blob store is the source of truth: a job for a blob that no longer exists
// never creates a record.
type Reconciler struct {
	blobs  service.BlobStore
	meta   service.MetadataStore
	logger service.Logger
	now    func() time.Time
}

func NewReconciler(blobs service.BlobStore, meta service.MetadataStore, logger service.Logger) *Reconciler {
	return &Reconciler{
		blobs:  blobs,
		meta:   meta,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Handle applies job. A returned error is transient and the job should be
// retried.
func (r *Reconciler) Handle(ctx context.Context, job entity.MetadataRepairJob) error {
	if job.Path == "" {
		r.logger.WarningWithContextf(ctx, "[Reconcile] Dropping repair job without path (operation=%s)", job.Operation)
		return nil
	}

	exists, err := r.blobs.Exists(ctx, job.Path)
	if err != nil {
		return fmt.Errorf("blob lookup failed: %w", err)
	}

	if job.Operation == entity.RepairOperationDelete {
		return r.finishDelete(ctx, job, exists)
	}

	if !exists {
		r.logger.WarningWithContextf(ctx, "[Reconcile] Blob %s is gone, nothing to repair for %s", job.Path, job.Operation)
		return nil
	}

	current, err := r.meta.FindByPath(ctx, job.Path)
	switch {
	case errors.Is(err, service.ErrRecordNotFound):
		return r.create(ctx, job)
	case err != nil:
		return fmt.Errorf("metadata lookup failed: %w", err)
	}

	patch := service.DocumentPatch{
		ContentType:  job.ContentType,
		Size:         job.Size,
		LastModified: r.now(),
	}
	if err := r.meta.PatchByPath(ctx, current.Path, patch); err != nil {
		return fmt.Errorf("metadata patch failed: %w", err)
	}
	r.logger.InfoWithContextf(ctx, "[Reconcile] Refreshed metadata of %s after failed %s", job.Path, job.Operation)
	return nil
}

func (r *Reconciler) create(ctx context.Context, job entity.MetadataRepairJob) error {
	owner := job.OwnerID
	if owner == "" {
		owner = policy.FirstSegment(job.Path)
	}
	filename := job.Filename
	if filename == "" {
		filename = path.Base(job.Path)
	}

	now := r.now()
	doc := &entity.Document{
		ID:           uuid.New(),
		Path:         job.Path,
		OwnerID:      owner,
		Filename:     filename,
		ContentType:  job.ContentType,
		SignStatus:   entity.SignStatusUnsigned,
		Size:         job.Size,
		CreatedAt:    now,
		LastModified: now,
		Attributes:   datatypes.JSONMap{"source": "reconcile", "repaired_operation": job.Operation},
	}
	if err := r.meta.UpsertByPath(ctx, doc); err != nil {
		return fmt.Errorf("metadata upsert failed: %w", err)
	}
	r.logger.InfoWithContextf(ctx, "[Reconcile] Created missing metadata for %s (owner=%s)", job.Path, owner)
	return nil
}

// finishDelete removes the record left behind by a delete whose blob is gone. A
// blob that exists again was re-uploaded and its record is kept.
func (r *Reconciler) finishDelete(ctx context.Context, job entity.MetadataRepairJob, blobExists bool) error {
	if blobExists {
		r.logger.InfoWithContextf(ctx, "[Reconcile] Blob %s exists again, keeping its metadata", job.Path)
		return nil
	}

	err := r.meta.DeleteByPath(ctx, job.Path)
	if err != nil && !errors.Is(err, service.ErrRecordNotFound) {
		return fmt.Errorf("metadata delete failed: %w", err)
	}
	r.logger.InfoWithContextf(ctx, "[Reconcile] Removed stale metadata for deleted blob %s", job.Path)
	return nil
}
