package infra

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tnqbao/gau-document-gateway/config"
)

type AuthorizationService struct {
	AuthorizationServiceURL string
	PrivateKey              string

	client *http.Client
}

func InitAuthorizationService(config *config.EnvConfig) *AuthorizationService {
	url := config.ExternalService.AuthorizationServiceURL
	if url == "" {
		panic("Authorization service URL is not configured")
	}

	privateKey := config.PrivateKey
	if privateKey == "" {
		panic("Private key is not configured")
	}

	return &AuthorizationService{
		AuthorizationServiceURL: url,
		PrivateKey:              privateKey,
		client:                  &http.Client{Timeout: 5 * time.Second},
	}
}

// CheckAccessToken asks the authorization service whether token is still valid.
func (s *AuthorizationService) CheckAccessToken(token string) error {
	endpoint := fmt.Sprintf("%s/api/v2/authorization/token/validate?token=%s",
		s.AuthorizationServiceURL, url.QueryEscape(token))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Private-Key", s.PrivateKey)

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("invalid token: %s", string(raw))
	}

	return nil
}

func (s *AuthorizationService) httpClient() *http.Client {
	if s.client == nil {
		return &http.Client{Timeout: 5 * time.Second}
	}
	return s.client
}
