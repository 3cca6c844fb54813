// Package directory looks up user profiles in the external user service.
// Callers pass the request's auth token explicitly; nothing is pulled from
// ambient request state.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"cipherchat/models"
)

// ErrProfileNotFound indicates the directory has no such user.
var ErrProfileNotFound = errors.New("directory: profile not found")

// Client resolves user ids to display profiles.
type Client interface {
	GetUserProfile(ctx context.Context, authToken string, userID int64) (*models.UserProfile, error)
}

const defaultRequestTimeout = 10 * time.Second

// HTTPClient talks to the directory service over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient builds a client rooted at the directory base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

// GetUserProfile fetches one user's profile. The auth token, when present,
// travels as the Authorization header of the downstream call.
func (c *HTTPClient) GetUserProfile(ctx context.Context, authToken string, userID int64) (*models.UserProfile, error) {
	url := fmt.Sprintf("%s/api/v1/users/%d/profile", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request for user %d: %w", userID, err)
	}
	if authToken != "" {
		req.Header.Set("Authorization", authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile for user %d: %w", userID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProfileNotFound
	case resp.StatusCode != http.StatusOK:
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"status":  resp.StatusCode,
		}).Warn("directory lookup returned unexpected status")
		return nil, fmt.Errorf("fetch profile for user %d: unexpected status %d", userID, resp.StatusCode)
	}

	var profile models.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile for user %d: %w", userID, err)
	}
	if profile.UserID == 0 {
		profile.UserID = userID
	}

	return &profile, nil
}
