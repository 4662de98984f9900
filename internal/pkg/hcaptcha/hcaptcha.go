package hcaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackmine/storefront/internal/pkg/env"
)

const DefaultVerifyURL = "https://hcaptcha.com/siteverify"

type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verifier checks hCaptcha tokens against the siteverify endpoint.
type Verifier struct {
	Secret     string
	SiteKey    string
	VerifyURL  string
	HTTPClient *http.Client
}

// NewVerifierFromEnv reads HCAPTCHA_SECRET and HCAPTCHA_SITEKEY.
func NewVerifierFromEnv() *Verifier {
	return &Verifier{
		Secret:     env.GetEnv("HCAPTCHA_SECRET", ""),
		SiteKey:    env.GetEnv("HCAPTCHA_SITEKEY", ""),
		VerifyURL:  DefaultVerifyURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a secret is configured. Checkout skips the captcha otherwise.
func (v *Verifier) Enabled() bool {
	return v != nil && v.Secret != ""
}

func (v *Verifier) Verify(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, errors.New("hCaptcha token is empty")
	}
	if v.Secret == "" {
		return false, errors.New("hCaptcha secret is not set")
	}

	form := url.Values{
		"secret":   {v.Secret},
		"response": {token},
	}
	endpoint := v.VerifyURL
	if endpoint == "" {
		endpoint = DefaultVerifyURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := v.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request to hCaptcha API: %w", err)
	}
	defer resp.Body.Close()

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return false, fmt.Errorf("failed to decode hCaptcha API response: %w", err)
	}

	if !response.Success {
		msg := "hCaptcha validation failed"
		if len(response.ErrorCodes) > 0 {
			msg = msg + ": " + strings.Join(response.ErrorCodes, ", ")
		}
		return false, errors.New(msg)
	}

	return true, nil
}
