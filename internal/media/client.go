// Package media talks to the Mux video platform: direct uploads, image
// URLs, and webhook signature checks.
package media

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	muxgo "github.com/muxinc/mux-go/v6"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// max bytes read from an image download
const maxImageBytes = 16 << 20

// Config holds the settings of a Client
type Config struct {
	TokenID      string
	TokenSecret  string
	ImageBaseURL string
	RateLimit    float64
	MaxRetries   int
	Timeout      time.Duration
	CaptionLangs []string
}

// DefaultConfig returns a config with production endpoints
func DefaultConfig() *Config {
	return &Config{
		ImageBaseURL: "https://image.mux.com",
		RateLimit:    5,
		MaxRetries:   3,
		Timeout:      15 * time.Second,
		CaptionLangs: []string{"en"},
	}
}

// Upload is a direct-upload slot on the media host
type Upload struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP status %d: %s", e.StatusCode, e.Body)
}

// createDirectUpload is the SDK call behind CreateUpload
type createDirectUpload func(req muxgo.CreateUploadRequest) (muxgo.UploadResponse, error)

// Client talks to the media host. Uploads go through the Mux SDK, image
// downloads through a rate-limited HTTP client that retries failed GETs.
type Client struct {
	client       *http.Client
	limiter      *rate.Limiter
	config       *Config
	createUpload createDirectUpload
}

// NewClient creates a new media-host client
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Create rate limiter using token bucket algorithm
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)

	transport := &retryTransport{
		next: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		limiter:     limiter,
		maxRetries:  cfg.MaxRetries,
		backoffBase: time.Second,
	}

	api := muxgo.NewAPIClient(muxgo.NewConfiguration(
		muxgo.WithBasicAuth(cfg.TokenID, cfg.TokenSecret),
	))

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter: limiter,
		config:  cfg,
		createUpload: func(req muxgo.CreateUploadRequest) (muxgo.UploadResponse, error) {
			return api.DirectUploadsApi.CreateDirectUpload(req)
		},
	}
}

// ThumbnailURL returns the still image generated for a playback id
func (c *Client) ThumbnailURL(playbackID string) string {
	return strings.TrimRight(c.config.ImageBaseURL, "/") + "/" + playbackID + "/thumbnail.jpg"
}

// PreviewURL returns the animated preview generated for a playback id
func (c *Client) PreviewURL(playbackID string) string {
	return strings.TrimRight(c.config.ImageBaseURL, "/") + "/" + playbackID + "/animated.gif"
}

var subtitleNames = map[string]string{
	"en": "English CC",
	"uk": "Ukrainian CC",
	"es": "Spanish CC",
	"de": "German CC",
	"fr": "French CC",
}

func subtitlesFor(langs []string) []muxgo.AssetGeneratedSubtitleSettings {
	var subs []muxgo.AssetGeneratedSubtitleSettings
	for _, lang := range langs {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		name, ok := subtitleNames[lang]
		if !ok {
			name = strings.ToUpper(lang) + " CC"
		}
		subs = append(subs, muxgo.AssetGeneratedSubtitleSettings{LanguageCode: lang, Name: name})
	}
	return subs
}

// CreateUpload opens a direct upload whose asset carries passthrough (the
// local user id) and generates captions for the configured languages.
// Creating an upload is not idempotent, so it is attempted exactly once.
func (c *Client) CreateUpload(ctx context.Context, corsOrigin, passthrough string) (*Upload, error) {
	req := muxgo.CreateUploadRequest{
		CorsOrigin: corsOrigin,
		NewAssetSettings: muxgo.CreateAssetRequest{
			Passthrough:    passthrough,
			PlaybackPolicy: []muxgo.PlaybackPolicy{muxgo.PUBLIC},
		},
	}
	if subs := subtitlesFor(c.config.CaptionLangs); len(subs) > 0 {
		req.NewAssetSettings.Input = []muxgo.InputSettings{{GeneratedSubtitles: subs}}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	resp, err := c.createUpload(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}
	if resp.Data.Id == "" || resp.Data.Url == "" {
		return nil, fmt.Errorf("upload response is missing id or url")
	}

	log.Info().Str("uploadId", resp.Data.Id).Msg("Created media upload")
	return &Upload{ID: resp.Data.Id, URL: resp.Data.Url}, nil
}

// FetchImage downloads an image, returning its bytes and content type
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request error: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, "", fmt.Errorf("failed to fetch image: %w", &StatusError{StatusCode: resp.StatusCode, Body: snippet})
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("unexpected content type %q", contentType)
	}
	return body, contentType, nil
}

// retryTransport waits on the rate limiter before every attempt and retries
// idempotent requests with exponential backoff. Other methods get exactly
// one attempt since a failed response says nothing about whether the host
// acted on them.
type retryTransport struct {
	next        http.RoundTripper
	limiter     *rate.Limiter
	maxRetries  int
	backoffBase time.Duration
}

func idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	retries := t.maxRetries
	if !idempotent(req.Method) {
		retries = 0
	}

	for attempt := 0; ; attempt++ {
		// Wait for rate limiter
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := t.next.RoundTrip(req)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt >= retries {
			return resp, err
		}
		if resp != nil {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxImageBytes))
			resp.Body.Close()
		}

		// Exponential backoff: 1s, 2s, 4s
		backoff := time.Duration(math.Pow(2, float64(attempt))) * t.backoffBase
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Str("url", req.URL.String()).Msg("Media request failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}
