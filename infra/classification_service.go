package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tnqbao/gau-document-gateway/config"
	"github.com/tnqbao/gau-document-gateway/entity"
	"github.com/tnqbao/gau-document-gateway/identity"
)

type classificationResponse struct {
	UserID         string `json:"user_id"`
	Classification string `json:"classification"`
}

// ClassificationService looks up the user class of a caller over HTTP.
type ClassificationService struct {
	ClassificationServiceURL string
	PrivateKey               string

	client *http.Client
}

func InitClassificationService(cfg *config.EnvConfig) *ClassificationService {
	serviceURL := cfg.ExternalService.ClassificationServiceURL
	if serviceURL == "" {
		panic("Classification service URL is not configured")
	}

	return &ClassificationService{
		ClassificationServiceURL: serviceURL,
		PrivateKey:               cfg.PrivateKey,
		client:                   &http.Client{Timeout: cfg.Storage.DependencyTimeout},
	}
}

func (s *ClassificationService) Classify(ctx context.Context, userID, credential string) (entity.Classification, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/%s/classification", s.ClassificationServiceURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return entity.ClassificationUnknown, fmt.Errorf("failed to create request: %w", err)
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	req.Header.Set("Private-Key", s.PrivateKey)

	client := s.client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return entity.ClassificationUnknown, errors.Join(identity.ErrClassificationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return entity.ClassificationUnknown, fmt.Errorf("%w: classification service returned %d: %s",
			identity.ErrClassificationUnavailable, resp.StatusCode, string(raw))
	}

	var body classificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return entity.ClassificationUnknown, fmt.Errorf("%w: failed to decode response: %v",
			identity.ErrClassificationUnavailable, err)
	}

	return entity.Classification(body.Classification), nil
}

// JSONCache is the subset of RedisClient used for classification caching.
type JSONCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// CachedClassifier keeps confirmed classifications in Redis. Failures are never
// cached, and a Redis outage falls through to the wrapped classifier.
type CachedClassifier struct {
	next   identity.Classifier
	cache  JSONCache
	ttl    time.Duration
	logger *LoggerClient
}

func NewCachedClassifier(next identity.Classifier, cache JSONCache, ttl time.Duration, logger *LoggerClient) *CachedClassifier {
	return &CachedClassifier{next: next, cache: cache, ttl: ttl, logger: logger}
}

func classificationKey(userID string) string {
	return "document-gateway:classification:" + userID
}

func (c *CachedClassifier) Classify(ctx context.Context, userID, credential string) (entity.Classification, error) {
	var cached string
	err := c.cache.Get(ctx, classificationKey(userID), &cached)
	switch {
	case err == nil:
		return entity.Classification(cached), nil
	case !errors.Is(err, ErrCacheMiss) && c.logger != nil:
		c.logger.WarningWithContextf(ctx, "[Classification] Cache read failed for %s: %v", userID, err)
	}

	class, err := c.next.Classify(ctx, userID, credential)
	if err != nil {
		return class, err
	}
	if class == entity.ClassificationUnknown {
		return class, nil
	}

	if err := c.cache.Set(ctx, classificationKey(userID), string(class), c.ttl); err != nil && c.logger != nil {
		c.logger.WarningWithContextf(ctx, "[Classification] Cache write failed for %s: %v", userID, err)
	}
	return class, nil
}
