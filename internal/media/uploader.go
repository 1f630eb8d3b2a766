package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/internal/metrics"
	"github.com/clintrovert/ourstreet/internal/platform"
	"github.com/clintrovert/ourstreet/pkg/types"
)

const (
	// DefaultMaxBytes is the platform's image size cap
	DefaultMaxBytes = 5 << 20

	defaultMimeType = "image/jpeg"
	fetchTimeout    = 20 * time.Second
)

// Upload outcomes, also used as metric labels
const (
	OutcomeSkipped      = "skipped"
	OutcomeNotReady     = "not_ready"
	OutcomeFetchFailed  = "fetch_failed"
	OutcomeTooLarge     = "too_large"
	OutcomeUploadFailed = "upload_failed"
	OutcomeUploaded     = "uploaded"
)

var errTooLarge = errors.New("photo exceeds size limit")

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("photo fetch returned HTTP %d", e.code)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// Option configures an Uploader
type Option func(*Uploader)

// WithHTTPClient sets the client used to fetch photos
func WithHTTPClient(hc *http.Client) Option {
	return func(u *Uploader) {
		u.httpClient = hc
	}
}

// WithMaxBytes overrides the photo size cap
func WithMaxBytes(n int64) Option {
	return func(u *Uploader) {
		u.maxBytes = n
	}
}

// WithRetryBackoff overrides the photo fetch retry backoff
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(u *Uploader) {
		u.retryBase, u.retryMax = base, maxDelay
	}
}

// WithMetrics records upload outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(u *Uploader) {
		u.metrics = m
	}
}

// Uploader fetches an issue's photo and hands it to the platform. Nothing
// here can fail a post: every problem degrades to a text-only post.
type Uploader struct {
	publisher  platform.Publisher
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
	maxBytes   int64
	retryBase  time.Duration
	retryMax   time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewUploader creates an uploader for the given publisher
func NewUploader(publisher platform.Publisher, logger *zap.Logger, opts ...Option) *Uploader {
	u := &Uploader{
		publisher:  publisher,
		httpClient: &http.Client{Timeout: fetchTimeout},
		maxBytes:   DefaultMaxBytes,
		retryBase:  200 * time.Millisecond,
		retryMax:   2 * time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(u)
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(_ *http.Response, err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.retryable()
			}
			return err != nil
		}).
		WithBackoff(u.retryBase, u.retryMax).
		WithMaxRetries(2).
		Build()
	u.executor = failsafe.With(retry)

	return u
}

// Upload returns the platform media id for the issue's photo, or "" when
// there is no photo, it is not wanted, or anything along the way fails.
func (u *Uploader) Upload(ctx context.Context, issue *types.Issue, includeImage bool) string {
	if !includeImage || issue == nil || !issue.HasPhoto() {
		u.logger.Debug("no image to upload, skipping media upload")
		u.metrics.ObserveMediaUpload(OutcomeSkipped)
		return ""
	}

	if !u.publisher.IsReady() {
		u.logger.Warn("platform client not ready, posting without image", zap.String("issue_id", issue.ID))
		u.metrics.ObserveMediaUpload(OutcomeNotReady)
		return ""
	}

	data, mimeType, err := u.fetch(ctx, issue.PhotoURL)
	if err != nil {
		outcome := OutcomeFetchFailed
		if errors.Is(err, errTooLarge) {
			outcome = OutcomeTooLarge
		}
		u.logger.Warn("failed to fetch issue photo, posting without image",
			zap.String("issue_id", issue.ID),
			zap.String("photo_url", issue.PhotoURL),
			zap.Error(err),
		)
		u.metrics.ObserveMediaUpload(outcome)
		return ""
	}

	mediaID := u.publisher.UploadMedia(ctx, data, mimeType)
	if mediaID == "" {
		u.logger.Warn("media upload failed, posting without image", zap.String("issue_id", issue.ID))
		u.metrics.ObserveMediaUpload(OutcomeUploadFailed)
		return ""
	}

	u.logger.Info("media uploaded",
		zap.String("issue_id", issue.ID),
		zap.String("media_id", mediaID),
	)
	u.metrics.ObserveMediaUpload(OutcomeUploaded)
	return mediaID
}

func (u *Uploader) fetch(ctx context.Context, photoURL string) ([]byte, string, error) {
	resp, err := u.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build photo request: %w", err)
		}
		resp, err := u.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, &statusError{code: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, u.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read photo: %w", err)
	}
	if int64(len(data)) > u.maxBytes {
		return nil, "", errTooLarge
	}

	return data, contentType(resp.Header.Get("Content-Type")), nil
}

func contentType(header string) string {
	if header == "" {
		return defaultMimeType
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return header
	}
	return mediaType
}
