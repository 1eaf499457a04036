package controller

import (
	"context"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-document-gateway/http/controller/dto"
	"github.com/tnqbao/gau-document-gateway/service"
	"github.com/tnqbao/gau-document-gateway/utils"
)

// Room for the multipart envelope around the file part.
const multipartOverhead = 1 << 20

func (ctrl *Controller) UploadDocument(c *gin.Context) {
	ctx := c.Request.Context()
	caller := callerFrom(c)

	citizenID := c.Param("citizen_id")
	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Document] Received upload request for citizen %s", citizenID)

	fileHeader, ok := ctrl.readFile(c)
	if !ok {
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Failed to open uploaded file: %v", err)
		utils.JSON400(c, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	result, err := ctrl.Service.Upload(ctx, caller, service.UploadInput{
		Path:        joinPath(citizenID, c.PostForm("folder"), fileHeader.Filename),
		ContentType: detectContentType(fileHeader.Header.Get("Content-Type"), fileHeader.Filename),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Upload failed: %v", err)
		utils.JSONError(c, err)
		return
	}

	message := "Document uploaded successfully"
	if result.Replaced {
		message = "Document replaced successfully"
	}

	utils.JSON200(c, gin.H{
		"id":       result.Document.ID.String(),
		"path":     result.Document.Path,
		"bucket":   ctrl.Service.Bucket(),
		"signed":   result.Document.Signed(),
		"replaced": result.Replaced,
		"url":      result.URL,
		"message":  message,
	})
}

func (ctrl *Controller) ListCitizenDocuments(c *gin.Context) {
	ctx := c.Request.Context()
	withURLs := c.Query("signed_urls") == "true"

	ns, err := ctrl.Service.ListNamespace(ctx, callerFrom(c), c.Param("citizen_id"), withURLs)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Failed to list namespace: %v", err)
		utils.JSONError(c, err)
		return
	}

	resp := gin.H{
		"owner": ns.Owner,
		"paths": ns.Paths,
		"count": len(ns.Paths),
	}
	if withURLs {
		resp["urls"] = ns.URLs
		resp["expires_in"] = int(ctrl.Service.SignedURLTTL().Seconds())
	}
	utils.JSON200(c, resp)
}

func (ctrl *Controller) DownloadDocument(c *gin.Context) {
	ctx := c.Request.Context()

	dl, err := ctrl.Service.Download(ctx, callerFrom(c), c.Param("path"))
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Download failed: %v", err)
		utils.JSONError(c, err)
		return
	}
	defer dl.Body.Close()

	contentType := dl.Document.ContentType
	if contentType == "" {
		contentType = dl.Info.ContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	headers := map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": dl.Document.Filename}),
		"Last-Modified":       dl.Document.LastModified.UTC().Format(http.TimeFormat),
	}
	c.DataFromReader(http.StatusOK, dl.Info.Size, contentType, dl.Body, headers)
}

func (ctrl *Controller) UpdateDocument(c *gin.Context) {
	ctx := c.Request.Context()

	fileHeader, ok := ctrl.readFile(c)
	if !ok {
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Failed to open uploaded file: %v", err)
		utils.JSON400(c, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	doc, err := ctrl.Service.Update(ctx, callerFrom(c), service.UploadInput{
		Path:        c.Param("path"),
		ContentType: detectContentType(fileHeader.Header.Get("Content-Type"), fileHeader.Filename),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Update failed: %v", err)
		utils.JSONError(c, err)
		return
	}

	utils.JSON200(c, gin.H{
		"document": doc,
		"message":  "Document updated successfully",
	})
}

func (ctrl *Controller) DeleteDocument(c *gin.Context) {
	ctx := c.Request.Context()
	p := strings.TrimPrefix(c.Param("path"), "/")

	if err := ctrl.Service.Delete(ctx, callerFrom(c), p); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Delete failed: %v", err)
		utils.JSONError(c, err)
		return
	}

	utils.JSON200(c, gin.H{
		"path":    p,
		"message": "Document deleted successfully",
	})
}

func (ctrl *Controller) ListAllMetadata(c *gin.Context) {
	ctx := c.Request.Context()

	page, ok := parsePage(c)
	if !ok {
		utils.JSON400(c, "limit and offset must be integers")
		return
	}

	result, err := ctrl.Service.ListAll(ctx, callerFrom(c), page)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Failed to list metadata: %v", err)
		utils.JSONError(c, err)
		return
	}
	utils.JSON200(c, listResponse(result))
}

func (ctrl *Controller) ListOwnerMetadata(c *gin.Context) {
	ctx := c.Request.Context()

	page, ok := parsePage(c)
	if !ok {
		utils.JSON400(c, "limit and offset must be integers")
		return
	}

	result, err := ctrl.Service.ListByOwner(ctx, callerFrom(c), c.Param("owner_id"), page)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Failed to list owner metadata: %v", err)
		utils.JSONError(c, err)
		return
	}
	utils.JSON200(c, listResponse(result))
}

func (ctrl *Controller) SignDocument(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Document] Invalid document id %q", c.Param("id"))
		utils.JSON400(c, "Invalid document id format")
		return
	}

	result, err := ctrl.Service.Sign(ctx, callerFrom(c), id)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Sign failed: %v", err)
		utils.JSONError(c, err)
		return
	}

	utils.JSON200(c, gin.H{
		"id":             result.Document.ID.String(),
		"path":           result.Document.Path,
		"signed":         result.Document.Signed(),
		"sign_status":    result.Document.SignStatus,
		"last_modified":  result.Document.LastModified,
		"already_signed": result.AlreadySigned,
	})
}

func (ctrl *Controller) GenerateSignedURLs(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SignedURLsRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Failed to bind signed URL request: %v", err)
		utils.JSON400(c, "paths must be a non-empty list")
		return
	}

	urls, err := ctrl.Service.SignedURLs(ctx, callerFrom(c), req.Paths)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Failed to generate signed URLs: %v", err)
		utils.JSONError(c, err)
		return
	}

	utils.JSON200(c, gin.H{
		"urls":       urls,
		"expires_in": int(ctrl.Service.SignedURLTTL().Seconds()),
	})
}

func (ctrl *Controller) CopyDocuments(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CopyRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Failed to bind copy request: %v", err)
		utils.JSON400(c, "source_paths and destination_folder are required")
		return
	}

	paths, err := ctrl.Service.Copy(ctx, callerFrom(c), req.SourcePaths, req.DestinationFolder)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Copy failed: %v", err)
		utils.JSONError(c, err)
		return
	}

	utils.JSON200(c, gin.H{"paths": paths})
}

func (ctrl *Controller) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	info, err := ctrl.Infra.Blob.StorageInfo(ctx)
	if err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Health] Storage check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "component": "storage", "error": err.Error()})
		return
	}

	cache := "disabled"
	if ctrl.Infra.Redis != nil {
		if err := ctrl.Infra.Redis.Ping(ctx); err != nil {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Health] Cache check failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "component": "cache", "error": err.Error()})
			return
		}
		cache = "ok"
	}
	utils.JSON200(c, gin.H{"status": "ok", "storage": info, "cache": cache})
}

// readFile returns the "file" part, answering 400 or 413 itself on failure.
func (ctrl *Controller) readFile(c *gin.Context) (*multipart.FileHeader, bool) {
	ctx := c.Request.Context()
	maxSize := ctrl.Config.EnvConfig.Storage.MaxUploadSize
	if maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Document] Upload body exceeds %d bytes", maxSize)
			utils.JSON413(c, "File exceeds the maximum upload size")
			return nil, false
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Document] Missing file part: %v", err)
		utils.JSON400(c, "file is required")
		return nil, false
	}

	if maxSize > 0 && fileHeader.Size > maxSize {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Document] File %s is %d bytes, limit %d", fileHeader.Filename, fileHeader.Size, maxSize)
		utils.JSON413(c, "File exceeds the maximum upload size")
		return nil, false
	}
	return fileHeader, true
}

func listResponse(result *service.ListResult) gin.H {
	return gin.H{
		"total":  result.Total,
		"limit":  result.Limit,
		"offset": result.Offset,
		"items":  result.Items,
	}
}

// joinPath joins non-empty segments with "/". Dot segments are kept so path
// validation can reject them.
func joinPath(parts ...string) string {
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.Trim(part, "/"); part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, "/")
}
