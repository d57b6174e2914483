package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/soundwall/api/internal/config"
)

// Asset provider failure modes, mapped to user-facing messages by the
// handler layer.
var (
	ErrSoundNotFound       = errors.New("sound not found")
	ErrSoundTooLong        = errors.New("sound too long")
	ErrAuthExpired         = errors.New("freesound credentials expired")
	ErrProviderUnavailable = errors.New("freesound unavailable")
)

// SoundInfo is the Freesound metadata passed through to the client
type SoundInfo struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Username string            `json:"username"`
	Type     string            `json:"type"`
	Duration float64           `json:"duration"`
	License  string            `json:"license,omitempty"`
	Download string            `json:"download,omitempty"`
	Previews map[string]string `json:"previews,omitempty"`
}

// AssetProvider resolves a sound id to its metadata and a local copy
// of the original audio file.
type AssetProvider interface {
	Resolve(ctx context.Context, soundID int64) (*SoundInfo, string, error)
}

// FreesoundClient implements AssetProvider against the Freesound API,
// downloading sounds into the shared data dir with an on-disk cache.
type FreesoundClient struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	username    string
	password    string
	dataDir     string
	maxDuration float64

	mu          sync.Mutex
	accessToken string
}

// NewFreesoundClient creates a new Freesound API client
func NewFreesoundClient(cfg *config.FreesoundConfig, dataDir string, maxDuration float64) *FreesoundClient {
	return &FreesoundClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		clientID:    cfg.ClientID,
		username:    cfg.Username,
		password:    cfg.Password,
		dataDir:     dataDir,
		maxDuration: maxDuration,
	}
}

// IsConfigured returns true if the client has credentials
func (c *FreesoundClient) IsConfigured() bool {
	return c.clientID != "" && c.username != "" && c.password != ""
}

// Authenticate obtains a user access token via the OAuth2 password
// grant and keeps it for subsequent requests.
func (c *FreesoundClient) Authenticate(ctx context.Context) error {
	if !c.IsConfigured() {
		return fmt.Errorf("freesound credentials not set")
	}

	form := url.Values{
		"client_id":  {c.clientID},
		"grant_type": {"password"},
		"username":   {c.username},
		"password":   {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/apiv2/oauth2/access_token/", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: token request returned %d", ErrAuthExpired, resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return fmt.Errorf("unexpected token response: %s", string(body))
	}

	c.mu.Lock()
	c.accessToken = token.AccessToken
	c.mu.Unlock()
	log.Println("[Freesound] authenticated successfully")
	return nil
}

// Resolve fetches the sound's metadata, enforces the duration limit
// and downloads the original file unless it is already cached.
func (c *FreesoundClient) Resolve(ctx context.Context, soundID int64) (*SoundInfo, string, error) {
	info, err := c.getSound(ctx, soundID)
	if err != nil {
		return nil, "", err
	}

	if c.maxDuration > 0 && info.Duration > c.maxDuration {
		return nil, "", fmt.Errorf("%w: %.1fs exceeds limit of %.0fs", ErrSoundTooLong, info.Duration, c.maxDuration)
	}

	localPath := filepath.Join(c.dataDir, fmt.Sprintf("%d.%s", info.ID, info.Type))
	if _, statErr := os.Stat(localPath); statErr != nil {
		log.Printf("[Freesound] downloading sound %d to %s", info.ID, localPath)
		if err := c.download(ctx, info.Download, localPath); err != nil {
			return nil, "", err
		}
	}

	return info, localPath, nil
}

// getSound retrieves sound metadata, re-authenticating exactly once if
// the access token has expired.
func (c *FreesoundClient) getSound(ctx context.Context, soundID int64) (*SoundInfo, error) {
	endpoint := fmt.Sprintf("%s/apiv2/sounds/%d/?fields=id,name,username,type,duration,license,download,previews", c.baseURL, soundID)

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response: %w", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			var info SoundInfo
			if err := json.Unmarshal(body, &info); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sound info: %w", err)
			}
			return &info, nil
		case resp.StatusCode == http.StatusUnauthorized && attempt == 0:
			log.Println("[Freesound] access token rejected, re-authenticating")
			if err := c.Authenticate(ctx); err != nil {
				return nil, fmt.Errorf("%w: re-authentication failed", ErrAuthExpired)
			}
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, ErrAuthExpired
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrSoundNotFound
		default:
			return nil, fmt.Errorf("%w: sound lookup returned %d", ErrProviderUnavailable, resp.StatusCode)
		}
	}
}

func (c *FreesoundClient) download(ctx context.Context, downloadURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download returned %d", ErrProviderUnavailable, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create download temp: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close download: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit download: %w", err)
	}
	return nil
}

func (c *FreesoundClient) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// FakeProvider serves the bundled test file when Freesound is not
// reachable, so the full pipeline still runs locally.
type FakeProvider struct {
	dataDir string
}

func NewFakeProvider(dataDir string) *FakeProvider {
	return &FakeProvider{dataDir: dataDir}
}

func (p *FakeProvider) Resolve(ctx context.Context, soundID int64) (*SoundInfo, string, error) {
	info := &SoundInfo{
		ID:       soundID,
		Name:     "test sound",
		Username: "soundwall",
		Type:     "wav",
	}
	return info, filepath.Join(p.dataDir, "test.wav"), nil
}
