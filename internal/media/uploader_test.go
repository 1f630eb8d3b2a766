package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/internal/metrics"
	"github.com/clintrovert/ourstreet/pkg/types"
)

type fakePublisher struct {
	mu      sync.Mutex
	ready   bool
	mediaID string
	uploads []string
	sizes   []int
}

func (f *fakePublisher) IsReady() bool { return f.ready }

func (f *fakePublisher) PostTweet(context.Context, types.TweetContent) types.TweetResult {
	return types.Failure("not used")
}

func (f *fakePublisher) UploadMedia(_ context.Context, data []byte, mimeType string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, mimeType)
	f.sizes = append(f.sizes, len(data))
	return f.mediaID
}

func newUploader(t *testing.T, pub *fakePublisher, opts ...Option) (*Uploader, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	opts = append([]Option{WithRetryBackoff(time.Millisecond, 5*time.Millisecond), WithMetrics(m)}, opts...)
	return NewUploader(pub, zap.NewNop(), opts...), m
}

func photoServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func issueWithPhoto(url string) *types.Issue {
	return &types.Issue{ID: "issue-1", Title: "Pothole", PhotoURL: url}
}

func TestUpload_SkipsWithoutPhotoOrWhenDisabled(t *testing.T) {
	pub := &fakePublisher{ready: true, mediaID: "m-1"}
	u, m := newUploader(t, pub)
	srv, hits := photoServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("img"))
	})

	assert.Empty(t, u.Upload(t.Context(), issueWithPhoto(srv.URL), false))
	assert.Empty(t, u.Upload(t.Context(), &types.Issue{ID: "x"}, true))
	assert.Empty(t, u.Upload(t.Context(), nil, true))

	assert.Zero(t, hits.Load())
	assert.Empty(t, pub.uploads)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.MediaUploadsTotal.WithLabelValues(OutcomeSkipped)))
}

func TestUpload_NotReadySkipsFetch(t *testing.T) {
	pub := &fakePublisher{ready: false}
	u, m := newUploader(t, pub)
	srv, hits := photoServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("img"))
	})

	assert.Empty(t, u.Upload(t.Context(), issueWithPhoto(srv.URL), true))
	assert.Zero(t, hits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MediaUploadsTotal.WithLabelValues(OutcomeNotReady)))
}

func TestUpload_Success(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		wantMime    string
	}{
		{name: "declared type", contentType: "image/png", wantMime: "image/png"},
		{name: "type with params", contentType: "image/webp; q=0.9", wantMime: "image/webp"},
		{name: "no type defaults to jpeg", contentType: "", wantMime: "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{ready: true, mediaID: "media-77"}
			u, m := newUploader(t, pub)
			srv, _ := photoServer(t, func(w http.ResponseWriter, _ *http.Request) {
				// An explicit empty value stops net/http from sniffing one.
				w.Header()["Content-Type"] = []string{tt.contentType}
				_, _ = w.Write([]byte("fake-image-bytes"))
			})

			got := u.Upload(t.Context(), issueWithPhoto(srv.URL), true)

			assert.Equal(t, "media-77", got)
			require.Len(t, pub.uploads, 1)
			assert.Equal(t, tt.wantMime, pub.uploads[0])
			assert.Equal(t, len("fake-image-bytes"), pub.sizes[0])
			assert.Equal(t, 1.0, testutil.ToFloat64(m.MediaUploadsTotal.WithLabelValues(OutcomeUploaded)))
		})
	}
}

func TestUpload_NonSuccessStatusSkipsUpload(t *testing.T) {
	pub := &fakePublisher{ready: true, mediaID: "m-1"}
	u, m := newUploader(t, pub)
	srv, hits := photoServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})

	assert.Empty(t, u.Upload(t.Context(), issueWithPhoto(srv.URL), true))
	assert.Equal(t, int32(1), hits.Load(), "4xx is not retried")
	assert.Empty(t, pub.uploads)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MediaUploadsTotal.WithLabelValues(OutcomeFetchFailed)))
}

func TestUpload_RetriesTransientFailures(t *testing.T) {
	pub := &fakePublisher{ready: true, mediaID: "m-9"}
	u, _ := newUploader(t, pub)

	var calls atomic.Int32
	srv, _ := photoServer(t, func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png"))
		}
	})

	assert.Equal(t, "m-9", u.Upload(t.Context(), issueWithPhoto(srv.URL), true))
	assert.Equal(t, int32(3), calls.Load())
}

func TestUpload_GivesUpAfterRetries(t *testing.T) {
	pub := &fakePublisher{ready: true, mediaID: "m-1"}
	u, _ := newUploader(t, pub)
	srv, hits := photoServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	assert.Empty(t, u.Upload(t.Context(), issueWithPhoto(srv.URL), true))
	assert.Equal(t, int32(3), hits.Load())
	assert.Empty(t, pub.uploads)
}

func TestUpload_TooLarge(t *testing.T) {
	pub := &fakePublisher{ready: true, mediaID: "m-1"}
	u, m := newUploader(t, pub, WithMaxBytes(8))
	srv, _ := photoServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 9)))
	})

	assert.Empty(t, u.Upload(t.Context(), issueWithPhoto(srv.URL), true))
	assert.Empty(t, pub.uploads)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MediaUploadsTotal.WithLabelValues(OutcomeTooLarge)))
}

func TestUpload_PlatformRejectsMedia(t *testing.T) {
	pub := &fakePublisher{ready: true, mediaID: ""}
	u, m := newUploader(t, pub)
	srv, _ := photoServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("img"))
	})

	assert.Empty(t, u.Upload(t.Context(), issueWithPhoto(srv.URL), true))
	assert.Len(t, pub.uploads, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MediaUploadsTotal.WithLabelValues(OutcomeUploadFailed)))
}

func TestUpload_UnreachableHost(t *testing.T) {
	pub := &fakePublisher{ready: true, mediaID: "m-1"}
	u, _ := newUploader(t, pub)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Empty(t, u.Upload(t.Context(), issueWithPhoto(url), true))
	assert.Empty(t, pub.uploads)
}
