// Package oauth resolves provider access tokens to verified email addresses.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	ProviderGoogle = "google"
	ProviderApple  = "apple"
)

// Verifier resolves an access token issued by an external provider to the
// account email it belongs to.
type Verifier interface {
	Email(ctx context.Context, provider, accessToken string) (string, error)
}

type httpVerifier struct {
	client      *http.Client
	googleURL   string
	appleURL    string
}

// NewVerifier returns a Verifier backed by the providers' userinfo endpoints.
func NewVerifier() Verifier {
	return &httpVerifier{
		client:    &http.Client{Timeout: 10 * time.Second},
		googleURL: "https://www.googleapis.com/oauth2/v3/userinfo",
		appleURL:  "https://appleid.apple.com/auth/userinfo",
	}
}

func (v *httpVerifier) Email(ctx context.Context, provider, accessToken string) (string, error) {
	var endpoint string
	switch provider {
	case ProviderGoogle:
		endpoint = v.googleURL
	case ProviderApple:
		endpoint = v.appleURL
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s userinfo request failed: %w", provider, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s rejected access token: %s", provider, res.Status)
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Email == "" {
		return "", fmt.Errorf("%s userinfo did not include an email", provider)
	}
	return body.Email, nil
}
