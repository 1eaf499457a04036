package controller_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-document-gateway/config"
	"github.com/tnqbao/gau-document-gateway/entity"
	"github.com/tnqbao/gau-document-gateway/http/controller"
	"github.com/tnqbao/gau-document-gateway/http/route"
	"github.com/tnqbao/gau-document-gateway/infra"
	"github.com/tnqbao/gau-document-gateway/service"
	"github.com/tnqbao/gau-document-gateway/testutil"
)

const testSecret = "test-secret"

type harness struct {
	router *gin.Engine
	ctrl   *controller.Controller
	blobs  *testutil.MemoryBlobStore
	meta   *testutil.MemoryMetadataStore
}

func newHarness(t *testing.T, maxUpload int64) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{EnvConfig: &config.EnvConfig{}}
	cfg.EnvConfig.JWT.SecretKey = testSecret
	cfg.EnvConfig.JWT.Algorithm = "HS256"
	cfg.EnvConfig.Storage.MaxUploadSize = maxUpload

	h := &harness{
		blobs: testutil.NewMemoryBlobStore(),
		meta:  testutil.NewMemoryMetadataStore(),
	}
	classifier := &testutil.StaticClassifier{Classes: map[string]entity.Classification{
		"official": entity.ClassificationPrivileged,
	}}
	logger := infra.NewLoggerClient(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctrl := &controller.Controller{
		Config: cfg,
		Infra: &infra.Infra{
			Logger:                logger,
			Blob:                  h.blobs,
			ClassificationService: classifier,
		},
		Service: service.NewDocumentService(h.blobs, h.meta, &testutil.RecordingPublisher{}, logger, service.Options{
			Bucket:            "citizen-documents",
			SignedURLTTL:      15 * time.Minute,
			DependencyTimeout: time.Second,
		}),
	}
	h.ctrl = ctrl
	h.router = routes.SetupRouter(ctrl)
	return h
}

func token(t *testing.T, userID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (h *harness) do(t *testing.T, userID string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) doJSON(t *testing.T, userID, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return h.do(t, userID, req)
}

func multipartRequest(t *testing.T, method, target, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (h *harness) upload(t *testing.T, userID, citizenID, filename, content string) map[string]any {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/api/v1/documents/citizens/"+citizenID+"/documents", filename, content, nil)
	w := h.do(t, userID, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)
}

func TestUploadAndDownload(t *testing.T) {
	h := newHarness(t, 0)

	body := h.upload(t, "alice", "alice", "passport.pdf", "%PDF-1.7")
	assert.Equal(t, "alice/passport.pdf", body["path"])
	assert.Equal(t, "citizen-documents", body["bucket"])
	assert.Equal(t, false, body["signed"])
	assert.Equal(t, false, body["replaced"])
	assert.Contains(t, body["url"], "alice/passport.pdf")

	w := h.do(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/documents/objects/alice/passport.pdf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.7", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "passport.pdf")
}

func TestUploadIntoFolderAndReplace(t *testing.T) {
	h := newHarness(t, 0)

	req := multipartRequest(t, http.MethodPost, "/api/v1/documents/citizens/alice/documents", "id.png", "v1",
		map[string]string{"folder": "identity/"})
	w := h.do(t, "alice", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "alice/identity/id.png", decode(t, w)["path"])

	req = multipartRequest(t, http.MethodPost, "/api/v1/documents/citizens/alice/documents", "id.png", "v2",
		map[string]string{"folder": "identity"})
	w = h.do(t, "alice", req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["replaced"])
	assert.Equal(t, []byte("v2"), h.blobs.Data("alice/identity/id.png"))
}

func TestUploadRejectsTraversalFolder(t *testing.T) {
	h := newHarness(t, 0)

	req := multipartRequest(t, http.MethodPost, "/api/v1/documents/citizens/alice/documents", "x.pdf", "data",
		map[string]string{"folder": "../bob"})
	w := h.do(t, "alice", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decode(t, w)["error"])
	assert.Equal(t, 0, h.blobs.Puts)
}

func TestUploadTooLarge(t *testing.T) {
	h := newHarness(t, 4)

	req := multipartRequest(t, http.MethodPost, "/api/v1/documents/citizens/alice/documents", "big.pdf", "0123456789", nil)
	w := h.do(t, "alice", req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, h.blobs.Puts)
}

func TestUploadWithoutFile(t *testing.T) {
	h := newHarness(t, 0)

	w := h.doJSON(t, "alice", http.MethodPost, "/api/v1/documents/citizens/alice/documents", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	h := newHarness(t, 0)

	w := h.do(t, "", httptest.NewRequest(http.MethodGet, "/api/v1/documents/objects/alice/a.pdf", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/objects/alice/a.pdf", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDownloadForbiddenAndMissing(t *testing.T) {
	h := newHarness(t, 0)
	h.upload(t, "alice", "alice", "a.pdf", "secret")

	w := h.do(t, "bob", httptest.NewRequest(http.MethodGet, "/api/v1/documents/objects/alice/a.pdf", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decode(t, w)
	assert.Equal(t, "forbidden", body["error"])
	assert.Equal(t, "not-owner", body["reason"])

	w = h.do(t, "official", httptest.NewRequest(http.MethodGet, "/api/v1/documents/objects/alice/a.pdf", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/documents/objects/alice/none.pdf", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadInconsistentStore(t *testing.T) {
	h := newHarness(t, 0)
	h.upload(t, "alice", "alice", "a.pdf", "secret")
	h.blobs.Remove("alice/a.pdf")

	w := h.do(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/documents/objects/alice/a.pdf", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "store_inconsistency", decode(t, w)["error"])
}

func TestUpdateAndDelete(t *testing.T) {
	h := newHarness(t, 0)
	h.upload(t, "alice", "alice", "a.txt", "one")

	req := multipartRequest(t, http.MethodPut, "/api/v1/documents/objects/alice/a.txt", "a.txt", "two", nil)
	w := h.do(t, "alice", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []byte("two"), h.blobs.Data("alice/a.txt"))

	req = multipartRequest(t, http.MethodPut, "/api/v1/documents/objects/alice/missing.txt", "missing.txt", "x", nil)
	w = h.do(t, "alice", req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, "bob", httptest.NewRequest(http.MethodDelete, "/api/v1/documents/objects/alice/a.txt", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, "alice", httptest.NewRequest(http.MethodDelete, "/api/v1/documents/objects/alice/a.txt", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, h.blobs.Has("alice/a.txt"))
	assert.Equal(t, 0, h.meta.Len())
}

func TestListMetadata(t *testing.T) {
	h := newHarness(t, 0)
	h.upload(t, "alice", "alice", "a.pdf", "a")
	h.upload(t, "alice", "alice", "b.pdf", "b")
	h.upload(t, "bob", "bob", "c.pdf", "c")

	w := h.do(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/documents/metadata", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, "official", httptest.NewRequest(http.MethodGet, "/api/v1/documents/metadata?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 2, body["limit"])
	assert.Len(t, body["items"], 2)

	w = h.do(t, "official", httptest.NewRequest(http.MethodGet, "/api/v1/documents/metadata?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, "official", httptest.NewRequest(http.MethodGet, "/api/v1/documents/metadata?offset=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/documents/metadata/owners/alice", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["total"])

	w = h.do(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/documents/metadata/owners/bob", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSignDocument(t *testing.T) {
	h := newHarness(t, 0)
	uploaded := h.upload(t, "alice", "alice", "a.pdf", "a")
	id := uploaded["id"].(string)

	w := h.do(t, "official", httptest.NewRequest(http.MethodPost, "/api/v1/documents/metadata/not-a-uuid/sign", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, "alice", httptest.NewRequest(http.MethodPost, "/api/v1/documents/metadata/"+id+"/sign", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, "official", httptest.NewRequest(http.MethodPost, "/api/v1/documents/metadata/"+id+"/sign", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["signed"])
	assert.Equal(t, "signed", body["sign_status"])
	assert.Equal(t, false, body["already_signed"])

	w = h.do(t, "official", httptest.NewRequest(http.MethodPost, "/api/v1/documents/metadata/"+id+"/sign", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["already_signed"])
}

func TestGenerateSignedURLs(t *testing.T) {
	h := newHarness(t, 0)
	h.upload(t, "alice", "alice", "a.pdf", "a")
	h.upload(t, "bob", "bob", "b.pdf", "b")

	w := h.doJSON(t, "alice", http.MethodPost, "/api/v1/documents/signed-urls", gin.H{"paths": []string{"alice/a.pdf"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 900, body["expires_in"])
	assert.Contains(t, body["urls"], "alice/a.pdf")

	w = h.doJSON(t, "alice", http.MethodPost, "/api/v1/documents/signed-urls", gin.H{"paths": []string{"alice/a.pdf", "bob/b.pdf"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "bob/b.pdf", decode(t, w)["path"])

	w = h.doJSON(t, "alice", http.MethodPost, "/api/v1/documents/signed-urls", gin.H{"paths": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCopyDocuments(t *testing.T) {
	h := newHarness(t, 0)
	h.upload(t, "alice", "alice", "a.pdf", "a")
	req := multipartRequest(t, http.MethodPost, "/api/v1/documents/citizens/alice/documents", "keep.txt", "k",
		map[string]string{"folder": "archive"})
	require.Equal(t, http.StatusOK, h.do(t, "alice", req).Code)

	w := h.doJSON(t, "alice", http.MethodPost, "/api/v1/documents/copy", gin.H{
		"source_paths":       []string{"alice/a.pdf"},
		"destination_folder": "alice/archive",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{"alice/archive/a.pdf"}, decode(t, w)["paths"])

	w = h.doJSON(t, "alice", http.MethodPost, "/api/v1/documents/copy", gin.H{
		"source_paths":       []string{"alice/a.pdf"},
		"destination_folder": "alice/empty",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "destination-missing", decode(t, w)["reason"])
}

func TestListCitizenDocuments(t *testing.T) {
	h := newHarness(t, 0)
	h.upload(t, "alice", "alice", "a.pdf", "a")
	h.upload(t, "alice", "alice", "b.pdf", "b")

	w := h.do(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/documents/citizens/alice/documents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 2, body["count"])
	assert.NotContains(t, body, "urls")

	w = h.do(t, "alice", httptest.NewRequest(http.MethodGet, "/api/v1/documents/citizens/alice/documents?signed_urls=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["urls"], 2)

	w = h.do(t, "bob", httptest.NewRequest(http.MethodGet, "/api/v1/documents/citizens/alice/documents", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, 0)

	w := h.do(t, "", httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["storage"].(map[string]any)["backend"])
	assert.Equal(t, "disabled", body["cache"])
}

func TestHealthzReportsUnreachableCache(t *testing.T) {
	h := newHarness(t, 0)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	h.ctrl.Infra.Redis = &infra.RedisClient{Client: client}

	w := h.do(t, "", httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "cache", body["component"])
}
