package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/gateway/httpclient"
)

// OIDCIntrospector validates opaque tokens against the identity
// provider's RFC 7662 introspection endpoint. The introspection call
// itself is authenticated with client credentials, so the provider
// must grant this service a client of its own.
type OIDCIntrospector struct {
	introspectURL string
	client        *http.Client
}

func NewOIDCIntrospector(issuer, clientID, clientSecret string) (*OIDCIntrospector, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("oidc issuer and client id required")
	}

	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     strings.TrimRight(issuer, "/") + "/oauth/token",
	}
	base := context.WithValue(context.Background(), oauth2.HTTPClient, httpclient.New(10*time.Second))
	client := cc.Client(base)
	client.Timeout = 10 * time.Second

	return &OIDCIntrospector{
		introspectURL: strings.TrimRight(issuer, "/") + "/oauth/introspect",
		client:        client,
	}, nil
}

type introspectionResponse struct {
	Active   bool   `json:"active"`
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Issuer   string `json:"iss"`
	Expires  int64  `json:"exp"`
	IssuedAt int64  `json:"iat"`
}

func (a *OIDCIntrospector) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, errors.New("token empty")
	}

	form := url.Values{"token": {token}}.Encode()

	var resp *http.Response
	err := httpclient.Retry(ctx, 3, 200*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.introspectURL, strings.NewReader(form))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		r, err := a.client.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("introspection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("introspection endpoint returned %d", resp.StatusCode)
	}

	var result introspectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode introspection response: %w", err)
	}
	if !result.Active {
		return nil, errors.New("token inactive")
	}

	claims := &Claims{
		Issuer:    result.Issuer,
		Subject:   result.Subject,
		Email:     result.Email,
		Role:      result.Role,
		IssuedAt:  result.IssuedAt,
		ExpiresAt: result.Expires,
	}
	if id, err := uuid.Parse(result.Subject); err == nil {
		claims.UserID = id
	}
	return claims, nil
}
