// Package service holds the document operations engine. It authorizes every
// request against the path policy before touching a store, and drives the blob
// store and the metadata store in a fixed order: blob first, metadata second.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-document-gateway/entity"
	"github.com/tnqbao/gau-document-gateway/identity"
	"github.com/tnqbao/gau-document-gateway/policy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
)

const (
	DefaultSignedURLTTL      = 15 * time.Minute
	DefaultDependencyTimeout = 30 * time.Second
	DefaultPageLimit         = 20
	MaxPageLimit             = 100

	// maxCollisionAttempts bounds the counter suffix search of a copy.
	maxCollisionAttempts = 1000

	instrumentationName = "github.com/tnqbao/gau-document-gateway/service"
)

type Options struct {
	Bucket            string
	SignedURLTTL      time.Duration
	DependencyTimeout time.Duration
	Now               func() time.Time
}

type DocumentService struct {
	blobs  BlobStore
	meta   MetadataStore
	events EventPublisher
	logger Logger
	opts   Options

	tracer     trace.Tracer
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewDocumentService wires the engine to its stores. events may be nil, in which
// case no events or repair jobs are published.
func NewDocumentService(blobs BlobStore, meta MetadataStore, events EventPublisher, logger Logger, opts Options) *DocumentService {
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = DefaultSignedURLTTL
	}
	if opts.DependencyTimeout <= 0 {
		opts.DependencyTimeout = DefaultDependencyTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = nopLogger{}
	}

	meter := otel.Meter(instrumentationName)
	operations, err := meter.Int64Counter("document.operations",
		metric.WithDescription("Document operations by operation and result"))
	if err != nil {
		operations = noop.Int64Counter{}
	}
	duration, err := meter.Float64Histogram("document.operation.duration",
		metric.WithDescription("Document operation latency"),
		metric.WithUnit("s"))
	if err != nil {
		duration = noop.Float64Histogram{}
	}

	return &DocumentService{
		blobs:      blobs,
		meta:       meta,
		events:     events,
		logger:     logger,
		opts:       opts,
		tracer:     otel.Tracer(instrumentationName),
		operations: operations,
		duration:   duration,
	}
}

func (s *DocumentService) Bucket() string {
	return s.opts.Bucket
}

func (s *DocumentService) SignedURLTTL() time.Duration {
	return s.opts.SignedURLTTL
}

type UploadInput struct {
	Path        string
	ContentType string
	// Size is the body length, or -1 when unknown.
	Size int64
	Body io.Reader
}

type UploadResult struct {
	Document *entity.Document
	Replaced bool
	// URL is a signed GET URL for the stored blob. It is empty when signing failed.
	URL string
}

type Download struct {
	Document *entity.Document
	Info     BlobInfo
	// Body must be closed by the caller.
	Body io.ReadCloser
}

type SignResult struct {
	Document      *entity.Document
	AlreadySigned bool
}

type Page struct {
	Limit  int
	Offset int
}

type ListResult struct {
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Items  []entity.Document `json:"items"`
}

type Namespace struct {
	Owner string
	Paths []string
	// URLs is only set when signed URLs were requested.
	URLs map[string]string
}

// Upload creates the document at in.Path or replaces its content. A replaced
// document goes back to unsigned.
func (s *DocumentService) Upload(ctx context.Context, caller *identity.Context, in UploadInput) (result *UploadResult, err error) {
	ctx, done := s.begin(ctx, policy.OpUpload)
	defer func() { done(err) }()

	p, err := NormalizePath(in.Path)
	if err != nil {
		return nil, err
	}
	if err := requireCaller(caller, p); err != nil {
		return nil, err
	}

	existing, err := s.findByPath(ctx, p)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	req := policy.Request{Operation: policy.OpUpload, Paths: []string{p}}
	if existing != nil {
		req.Exists = true
		req.OwnerID = existing.OwnerID
	}
	if err := s.authorize(ctx, caller, req); err != nil {
		return nil, err
	}

	if err := s.putBlob(ctx, p, in.Body, in.Size, in.ContentType); err != nil {
		return nil, err
	}

	now := s.now()
	doc := &entity.Document{
		ID:           uuid.New(),
		Path:         p,
		OwnerID:      caller.UserID,
		Filename:     path.Base(p),
		ContentType:  in.ContentType,
		SignStatus:   entity.SignStatusUnsigned,
		Size:         sizePtr(in.Size),
		CreatedAt:    now,
		LastModified: now,
		Attributes:   datatypes.JSONMap{"source": "upload", "uploaded_by": caller.UserID},
	}
	eventType := entity.EventDocumentUploaded
	if existing != nil {
		doc.ID = existing.ID
		doc.OwnerID = existing.OwnerID
		doc.CreatedAt = existing.CreatedAt
		doc.Attributes["source"] = "replace"
		eventType = entity.EventDocumentReplaced
	}

	if err := s.upsert(ctx, doc, entity.RepairOperationUpload); err != nil {
		return nil, err
	}

	s.logger.InfoWithContextf(ctx, "[Document] Stored %s for owner %s (replaced=%t)", p, doc.OwnerID, existing != nil)
	s.publish(ctx, entity.DocumentEvent{Type: eventType, Path: p, DocumentID: doc.ID.String(), OwnerID: doc.OwnerID, ActorID: caller.UserID})

	result = &UploadResult{Document: doc, Replaced: existing != nil}
	url, err := s.signURL(ctx, p)
	if err != nil {
		s.logger.WarningWithContextf(ctx, "[Document] Failed to sign URL for %s: %v", p, err)
	} else {
		result.URL = url
	}
	return result, nil
}

// Update rewrites the content of an existing document. The sign status is kept.
func (s *DocumentService) Update(ctx context.Context, caller *identity.Context, in UploadInput) (doc *entity.Document, err error) {
	ctx, done := s.begin(ctx, policy.OpUpdate)
	defer func() { done(err) }()

	p, err := NormalizePath(in.Path)
	if err != nil {
		return nil, err
	}
	if err := requireCaller(caller, p); err != nil {
		return nil, err
	}

	doc, err = s.findByPath(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, policy.Request{Operation: policy.OpUpdate, Paths: []string{p}, OwnerID: doc.OwnerID}); err != nil {
		return nil, err
	}

	if err := s.putBlob(ctx, p, in.Body, in.Size, in.ContentType); err != nil {
		return nil, err
	}

	patch := DocumentPatch{ContentType: in.ContentType, Size: sizePtr(in.Size), LastModified: s.now()}
	mctx, cancel := s.bounded(ctx)
	err = s.meta.PatchByPath(mctx, p, patch)
	cancel()
	if err != nil {
		s.requestRepair(ctx, doc.OwnerID, p, in.ContentType, patch.Size, entity.RepairOperationUpdate, err)
		return nil, newError(ErrMetadataWriteError, p, "blob updated but metadata patch failed", err)
	}

	if patch.ContentType != "" {
		doc.ContentType = patch.ContentType
	}
	if patch.Size != nil {
		doc.Size = patch.Size
	}
	doc.LastModified = patch.LastModified

	s.logger.InfoWithContextf(ctx, "[Document] Updated %s", p)
	s.publish(ctx, entity.DocumentEvent{Type: entity.EventDocumentUpdated, Path: p, DocumentID: doc.ID.String(), OwnerID: doc.OwnerID, ActorID: caller.UserID})
	return doc, nil
}

// Download opens the blob behind a document. A record without a blob is a store
// inconsistency and is reported as such.
func (s *DocumentService) Download(ctx context.Context, caller *identity.Context, rawPath string) (dl *Download, err error) {
	ctx, done := s.begin(ctx, policy.OpDownload)
	defer func() { done(err) }()

	p, err := NormalizePath(rawPath)
	if err != nil {
		return nil, err
	}
	if err := requireCaller(caller, p); err != nil {
		return nil, err
	}

	doc, err := s.findByPath(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, policy.Request{Operation: policy.OpDownload, Paths: []string{p}, OwnerID: doc.OwnerID}); err != nil {
		return nil, err
	}

	// The read outlives this call, so the timeout is released when the body is closed.
	bctx, cancel := s.bounded(ctx)
	body, info, err := s.blobs.Get(bctx, p)
	if err != nil {
		cancel()
		if errors.Is(err, ErrBlobNotFound) {
			s.reportInconsistency(ctx, caller, doc, "metadata record has no blob")
			return nil, newError(ErrStoreInconsistency, p, "metadata record exists but blob is missing", err)
		}
		return nil, dependencyError(err, p, "blob read failed")
	}
	if info.ContentType == "" {
		info.ContentType = doc.ContentType
	}

	return &Download{Document: doc, Info: info, Body: &cancelOnClose{ReadCloser: body, cancel: cancel}}, nil
}

// Delete removes the blob and then the metadata record. A blob that is already
// gone does not stop the metadata delete.
func (s *DocumentService) Delete(ctx context.Context, caller *identity.Context, rawPath string) (err error) {
	ctx, done := s.begin(ctx, policy.OpDelete)
	defer func() { done(err) }()

	p, err := NormalizePath(rawPath)
	if err != nil {
		return err
	}
	if err := requireCaller(caller, p); err != nil {
		return err
	}

	doc, err := s.findByPath(ctx, p)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, caller, policy.Request{Operation: policy.OpDelete, Paths: []string{p}, OwnerID: doc.OwnerID}); err != nil {
		return err
	}

	bctx, cancel := s.bounded(ctx)
	err = s.blobs.Delete(bctx, p)
	cancel()
	switch {
	case errors.Is(err, ErrBlobNotFound):
		s.logger.WarningWithContextf(ctx, "[Document] Blob %s already absent, removing metadata only", p)
	case err != nil:
		return dependencyError(err, p, "blob delete failed, metadata left untouched")
	}

	mctx, cancel := s.bounded(ctx)
	err = s.meta.DeleteByPath(mctx, p)
	cancel()
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		s.requestRepair(ctx, doc.OwnerID, p, doc.ContentType, doc.Size, entity.RepairOperationDelete, err)
		return newError(ErrMetadataWriteError, p, "blob deleted but metadata delete failed", err)
	}

	s.logger.InfoWithContextf(ctx, "[Document] Deleted %s", p)
	s.publish(ctx, entity.DocumentEvent{Type: entity.EventDocumentDeleted, Path: p, DocumentID: doc.ID.String(), OwnerID: doc.OwnerID, ActorID: caller.UserID})
	return nil
}

// Copy copies every source into destFolder, which must already hold at least one
// object. Existing destinations are never overwritten: the copy is renamed with a
// millisecond timestamp suffix, then a counter. The batch stops at the first
// failing item.
func (s *DocumentService) Copy(ctx context.Context, caller *identity.Context, sources []string, destFolder string) (paths []string, err error) {
	ctx, done := s.begin(ctx, policy.OpCopy)
	defer func() { done(err) }()

	if len(sources) == 0 {
		return nil, newError(ErrValidation, "", "source_paths must not be empty", nil)
	}
	if strings.TrimSpace(destFolder) == "" {
		return nil, newError(ErrValidation, "", "destination_folder is required", nil)
	}
	dest, err := NormalizeFolder(destFolder)
	if err != nil {
		return nil, err
	}
	normalized := make([]string, len(sources))
	for i, src := range sources {
		if normalized[i], err = NormalizePath(src); err != nil {
			return nil, err
		}
	}
	if err := requireCaller(caller, dest); err != nil {
		return nil, err
	}

	bctx, cancel := s.bounded(ctx)
	destExists, err := s.blobs.HasPrefix(bctx, dest+"/")
	cancel()
	if err != nil {
		return nil, dependencyError(err, dest, "destination lookup failed")
	}

	req := policy.Request{Operation: policy.OpCopy, Paths: normalized, DestinationExists: destExists}
	if err := s.authorize(ctx, caller, req); err != nil {
		return nil, err
	}

	paths = make([]string, 0, len(normalized))
	for _, src := range normalized {
		dst, err := s.copyOne(ctx, caller, src, dest)
		if err != nil {
			return nil, err
		}
		paths = append(paths, dst)
	}
	return paths, nil
}

func (s *DocumentService) copyOne(ctx context.Context, caller *identity.Context, src, dest string) (string, error) {
	exists, err := s.blobExists(ctx, src)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", newError(ErrNotFound, src, "source blob does not exist", nil)
	}

	dst, err := s.destinationPath(ctx, dest, path.Base(src))
	if err != nil {
		return "", err
	}

	bctx, cancel := s.bounded(ctx)
	err = s.blobs.Copy(bctx, src, dst)
	cancel()
	if err != nil {
		return "", dependencyError(err, src, "blob copy failed")
	}

	var contentType string
	var size *int64
	if source, err := s.findByPath(ctx, src); err == nil {
		contentType = source.ContentType
		size = source.Size
	}

	now := s.now()
	doc := &entity.Document{
		ID:           uuid.New(),
		Path:         dst,
		OwnerID:      policy.FirstSegment(dst),
		Filename:     path.Base(dst),
		ContentType:  contentType,
		SignStatus:   entity.SignStatusUnsigned,
		Size:         size,
		CreatedAt:    now,
		LastModified: now,
		Attributes:   datatypes.JSONMap{"source": "copy", "uploaded_by": caller.UserID},
	}
	if err := s.upsert(ctx, doc, entity.RepairOperationCopy); err != nil {
		return "", err
	}

	s.logger.InfoWithContextf(ctx, "[Document] Copied %s to %s", src, dst)
	s.publish(ctx, entity.DocumentEvent{Type: entity.EventDocumentCopied, Path: dst, SourcePath: src, DocumentID: doc.ID.String(), OwnerID: doc.OwnerID, ActorID: caller.UserID})
	return dst, nil
}

// destinationPath picks a free key for name under dest.
func (s *DocumentService) destinationPath(ctx context.Context, dest, name string) (string, error) {
	candidate := dest + "/" + name
	taken, err := s.pathTaken(ctx, candidate)
	if err != nil || !taken {
		return candidate, err
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}
	stamped := fmt.Sprintf("%s_%d", stem, s.now().UnixMilli())

	candidate = dest + "/" + stamped + ext
	for n := 1; n <= maxCollisionAttempts; n++ {
		taken, err := s.pathTaken(ctx, candidate)
		if err != nil || !taken {
			return candidate, err
		}
		candidate = fmt.Sprintf("%s/%s-%d%s", dest, stamped, n, ext)
	}
	return "", newError(ErrServiceUnavailable, dest+"/"+name, "no free destination name", nil)
}

// Sign moves a document to signed. Signing an already signed document succeeds
// without changing it.
func (s *DocumentService) Sign(ctx context.Context, caller *identity.Context, id uuid.UUID) (result *SignResult, err error) {
	ctx, done := s.begin(ctx, policy.OpSign)
	defer func() { done(err) }()

	if err := requireCaller(caller, ""); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, policy.Request{Operation: policy.OpSign}); err != nil {
		return nil, err
	}

	doc, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.SignStatus.CanTransitionTo(entity.SignStatusSigned) {
		return &SignResult{Document: doc, AlreadySigned: true}, nil
	}

	now := s.now()
	mctx, cancel := s.bounded(ctx)
	changed, err := s.meta.MarkSigned(mctx, id, now)
	cancel()
	if err != nil {
		return nil, newError(ErrMetadataWriteError, doc.Path, "sign status update failed", err)
	}
	if changed == 0 {
		// Lost a race with another signer or a delete.
		current, err := s.findByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &SignResult{Document: current, AlreadySigned: current.Signed()}, nil
	}

	doc.SignStatus = entity.SignStatusSigned
	doc.LastModified = now

	s.logger.InfoWithContextf(ctx, "[Document] %s signed by %s", doc.Path, caller.UserID)
	s.publish(ctx, entity.DocumentEvent{Type: entity.EventDocumentSigned, Path: doc.Path, DocumentID: doc.ID.String(), OwnerID: doc.OwnerID, ActorID: caller.UserID})
	return &SignResult{Document: doc}, nil
}

// ListAll pages through every document. It requires a privileged caller and fails
// closed when the classification cannot be confirmed.
func (s *DocumentService) ListAll(ctx context.Context, caller *identity.Context, page Page) (result *ListResult, err error) {
	ctx, done := s.begin(ctx, policy.OpListAll)
	defer func() { done(err) }()

	if page, err = normalizePage(page); err != nil {
		return nil, err
	}
	if err := requireCaller(caller, ""); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, policy.Request{Operation: policy.OpListAll}); err != nil {
		return nil, err
	}

	mctx, cancel := s.bounded(ctx)
	items, total, err := s.meta.FindAll(mctx, page.Limit, page.Offset)
	cancel()
	if err != nil {
		return nil, dependencyError(err, "", "metadata listing failed")
	}
	return &ListResult{Total: total, Limit: page.Limit, Offset: page.Offset, Items: items}, nil
}

func (s *DocumentService) ListByOwner(ctx context.Context, caller *identity.Context, ownerID string, page Page) (result *ListResult, err error) {
	ctx, done := s.begin(ctx, policy.OpListOwner)
	defer func() { done(err) }()

	if page, err = normalizePage(page); err != nil {
		return nil, err
	}
	owner, err := normalizeOwner(ownerID)
	if err != nil {
		return nil, err
	}
	if err := requireCaller(caller, owner); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, policy.Request{Operation: policy.OpListOwner, Paths: []string{owner}}); err != nil {
		return nil, err
	}

	mctx, cancel := s.bounded(ctx)
	items, total, err := s.meta.FindByOwner(mctx, owner, page.Limit, page.Offset)
	cancel()
	if err != nil {
		return nil, dependencyError(err, owner, "metadata listing failed")
	}
	return &ListResult{Total: total, Limit: page.Limit, Offset: page.Offset, Items: items}, nil
}

// SignedURLs issues GET-only URLs for every path, or none at all. The whole batch
// is authorized and checked for existence before the first URL is generated.
func (s *DocumentService) SignedURLs(ctx context.Context, caller *identity.Context, rawPaths []string) (urls map[string]string, err error) {
	ctx, done := s.begin(ctx, policy.OpSignedURL)
	defer func() { done(err) }()

	if len(rawPaths) == 0 {
		return nil, newError(ErrValidation, "", "paths must not be empty", nil)
	}
	paths := make([]string, len(rawPaths))
	for i, raw := range rawPaths {
		if paths[i], err = NormalizePath(raw); err != nil {
			return nil, err
		}
	}
	if err := requireCaller(caller, paths[0]); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, policy.Request{Operation: policy.OpSignedURL, Paths: paths}); err != nil {
		return nil, err
	}

	for _, p := range paths {
		exists, err := s.blobExists(ctx, p)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, newError(ErrNotFound, p, "blob does not exist", nil)
		}
	}

	urls = make(map[string]string, len(paths))
	for _, p := range paths {
		url, err := s.signURL(ctx, p)
		if err != nil {
			return nil, err
		}
		urls[p] = url
	}
	return urls, nil
}

// ListNamespace returns every path stored under owner, optionally with signed URLs.
func (s *DocumentService) ListNamespace(ctx context.Context, caller *identity.Context, ownerID string, withURLs bool) (ns *Namespace, err error) {
	ctx, done := s.begin(ctx, policy.OpListOwner)
	defer func() { done(err) }()

	owner, err := normalizeOwner(ownerID)
	if err != nil {
		return nil, err
	}
	if err := requireCaller(caller, owner); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, policy.Request{Operation: policy.OpListOwner, Paths: []string{owner}}); err != nil {
		return nil, err
	}

	mctx, cancel := s.bounded(ctx)
	docs, err := s.meta.FindByPathPrefix(mctx, owner+"/")
	cancel()
	if err != nil {
		return nil, dependencyError(err, owner, "metadata listing failed")
	}

	ns = &Namespace{Owner: owner, Paths: make([]string, 0, len(docs))}
	for _, doc := range docs {
		ns.Paths = append(ns.Paths, doc.Path)
	}
	if !withURLs {
		return ns, nil
	}

	ns.URLs = make(map[string]string, len(ns.Paths))
	for _, p := range ns.Paths {
		url, err := s.signURL(ctx, p)
		if err != nil {
			return nil, err
		}
		ns.URLs[p] = url
	}
	return ns, nil
}

// authorize evaluates req without privilege first and only asks for the caller
// classification when that evaluation denies an operation privilege could allow.
func (s *DocumentService) authorize(ctx context.Context, caller *identity.Context, req policy.Request) error {
	req.Identity = caller.UserID
	decision := policy.Authorize(req)

	if !decision.Allowed && decision.Reason != policy.ReasonDestinationMissing && policy.AcceptsPrivilege(req.Operation) {
		cctx, cancel := s.bounded(ctx)
		class, err := caller.Classification(cctx)
		cancel()
		switch {
		case err != nil && policy.RequiresPrivilege(req.Operation):
			s.audit(ctx, caller, req, decision, "classification unavailable")
			return newError(ErrForbidden, decision.Path, "privileged classification could not be confirmed", err)
		case err != nil:
			s.logger.WarningWithContextf(ctx, "[Auth] Classification unavailable for %s, using unprivileged rules: %v", caller.UserID, err)
		default:
			req.Classification = class
			decision = policy.Authorize(req)
		}
	}

	s.audit(ctx, caller, req, decision, "")
	if decision.Allowed {
		return nil
	}
	return denialError(decision)
}

func (s *DocumentService) audit(ctx context.Context, caller *identity.Context, req policy.Request, decision policy.Decision, note string) {
	result := "allow"
	if !decision.Allowed {
		result = "deny"
	}
	target := decision.Path
	if target == "" && len(req.Paths) > 0 {
		target = strings.Join(req.Paths, ",")
	}
	s.logger.InfoWithContextf(ctx, "[Audit] user=%s classification=%q operation=%s path=%s result=%s reason=%s%s",
		caller.UserID, req.Classification, req.Operation, target, result, decision.Reason, auditNote(note))
}

func auditNote(note string) string {
	if note == "" {
		return ""
	}
	return " note=" + note
}

func denialError(decision policy.Decision) error {
	switch decision.Reason {
	case policy.ReasonUnauthenticated:
		return newError(ErrUnauthenticated, decision.Path, string(decision.Reason), nil)
	case policy.ReasonDestinationMissing:
		return newError(ErrValidation, decision.Path, string(decision.Reason), nil)
	default:
		return newError(ErrForbidden, decision.Path, string(decision.Reason), nil)
	}
}

func requireCaller(caller *identity.Context, p string) error {
	if caller == nil || caller.UserID == "" {
		return newError(ErrUnauthenticated, p, "missing caller identity", nil)
	}
	return nil
}

func (s *DocumentService) findByPath(ctx context.Context, p string) (*entity.Document, error) {
	mctx, cancel := s.bounded(ctx)
	defer cancel()

	doc, err := s.meta.FindByPath(mctx, p)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newError(ErrNotFound, p, "document does not exist", nil)
	}
	if err != nil {
		return nil, dependencyError(err, p, "metadata lookup failed")
	}
	return doc, nil
}

func (s *DocumentService) findByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	mctx, cancel := s.bounded(ctx)
	defer cancel()

	doc, err := s.meta.FindByID(mctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newError(ErrNotFound, "", fmt.Sprintf("document %s does not exist", id), nil)
	}
	if err != nil {
		return nil, dependencyError(err, "", "metadata lookup failed")
	}
	return doc, nil
}

func (s *DocumentService) putBlob(ctx context.Context, p string, body io.Reader, size int64, contentType string) error {
	if body == nil {
		return newError(ErrValidation, p, "file content is required", nil)
	}
	bctx, cancel := s.bounded(ctx)
	defer cancel()

	if err := s.blobs.Put(bctx, p, body, size, contentType); err != nil {
		return dependencyError(err, p, "blob write failed")
	}
	return nil
}

func (s *DocumentService) blobExists(ctx context.Context, p string) (bool, error) {
	bctx, cancel := s.bounded(ctx)
	defer cancel()

	exists, err := s.blobs.Exists(bctx, p)
	if err != nil {
		return false, dependencyError(err, p, "blob lookup failed")
	}
	return exists, nil
}

// pathTaken reports whether p is held by a blob or by a metadata record, even
// one whose blob has gone missing.
func (s *DocumentService) pathTaken(ctx context.Context, p string) (bool, error) {
	exists, err := s.blobExists(ctx, p)
	if err != nil || exists {
		return exists, err
	}

	_, err = s.findByPath(ctx, p)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *DocumentService) signURL(ctx context.Context, p string) (string, error) {
	bctx, cancel := s.bounded(ctx)
	defer cancel()

	url, err := s.blobs.SignedURL(bctx, p, s.opts.SignedURLTTL, http.MethodGet)
	if err != nil {
		return "", dependencyError(err, p, "signed URL generation failed")
	}
	return url, nil
}

// upsert writes doc after its blob is in place. A failure leaves the blob where it
// is and asks the reconciler to repair the metadata.
func (s *DocumentService) upsert(ctx context.Context, doc *entity.Document, operation string) error {
	mctx, cancel := s.bounded(ctx)
	err := s.meta.UpsertByPath(mctx, doc)
	cancel()
	if err == nil {
		return nil
	}

	s.logger.ErrorWithContextf(ctx, err, "[Document] Metadata upsert failed for %s after blob write", doc.Path)
	s.requestRepair(ctx, doc.OwnerID, doc.Path, doc.ContentType, doc.Size, operation, err)
	return newError(ErrMetadataWriteError, doc.Path, "blob stored but metadata write failed", err)
}

func (s *DocumentService) requestRepair(ctx context.Context, ownerID, p, contentType string, size *int64, operation string, cause error) {
	if s.events == nil {
		return
	}
	job := entity.MetadataRepairJob{
		Path:        p,
		OwnerID:     ownerID,
		Filename:    path.Base(p),
		ContentType: contentType,
		Size:        size,
		Operation:   operation,
		Reason:      cause.Error(),
		Timestamp:   s.now().Unix(),
	}
	if err := s.events.PublishMetadataRepair(context.WithoutCancel(ctx), job); err != nil {
		s.logger.ErrorWithContextf(ctx, err, "[Document] Failed to publish metadata repair job for %s", p)
	}
}

func (s *DocumentService) reportInconsistency(ctx context.Context, caller *identity.Context, doc *entity.Document, detail string) {
	s.logger.ErrorWithContextf(ctx, ErrStoreInconsistency, "[Document] %s: %s", doc.Path, detail)
	s.publish(ctx, entity.DocumentEvent{
		Type:       entity.EventDocumentInconsistent,
		Path:       doc.Path,
		DocumentID: doc.ID.String(),
		OwnerID:    doc.OwnerID,
		ActorID:    caller.UserID,
		Detail:     detail,
	})
}

// publish is best effort: a failed publish never fails the operation.
func (s *DocumentService) publish(ctx context.Context, event entity.DocumentEvent) {
	if s.events == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = s.now().Unix()
	}
	if err := s.events.PublishDocumentEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WarningWithContextf(ctx, "[Document] Failed to publish %s event for %s: %v", event.Type, event.Path, err)
	}
}

func (s *DocumentService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.DependencyTimeout)
}

func (s *DocumentService) now() time.Time {
	return s.opts.Now().UTC()
}

func (s *DocumentService) begin(ctx context.Context, op policy.Operation) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "document."+string(op))
	return ctx, func(err error) {
		result := "ok"
		if err != nil {
			result = Code(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		attrs := metric.WithAttributes(
			attribute.String("operation", string(op)),
			attribute.String("result", result),
		)
		s.operations.Add(ctx, 1, attrs)
		s.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		span.End()
	}
}

// dependencyError classifies a store failure as a timeout or an outage.
func dependencyError(err error, p, reason string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrDependencyTimeout, p, reason, err)
	}
	return newError(ErrServiceUnavailable, p, reason, err)
}

func normalizePage(page Page) (Page, error) {
	if page.Limit < 0 {
		return page, newError(ErrValidation, "", "limit must not be negative", nil)
	}
	if page.Offset < 0 {
		return page, newError(ErrValidation, "", "offset must not be negative", nil)
	}
	if page.Limit == 0 {
		page.Limit = DefaultPageLimit
	}
	if page.Limit > MaxPageLimit {
		page.Limit = MaxPageLimit
	}
	return page, nil
}

func normalizeOwner(raw string) (string, error) {
	owner := strings.Trim(strings.TrimSpace(raw), "/")
	if owner == "" || strings.Contains(owner, "/") || owner == "." || owner == ".." {
		return "", newError(ErrValidation, raw, "owner id must be a single path segment", nil)
	}
	return owner, nil
}

func sizePtr(size int64) *int64 {
	if size < 0 {
		return nil
	}
	return &size
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

type nopLogger struct{}

func (nopLogger) InfoWithContextf(context.Context, string, ...any) {}
func (nopLogger) WarningWithContextf(context.Context, string, ...any) {}
func (nopLogger) ErrorWithContextf(context.Context, error, string, ...any) {}
