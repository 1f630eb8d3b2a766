package workflow

import (
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/internal/config"
	"github.com/clintrovert/ourstreet/internal/generator"
	"github.com/clintrovert/ourstreet/internal/media"
	"github.com/clintrovert/ourstreet/internal/metrics"
	"github.com/clintrovert/ourstreet/internal/platform"
)

// NewFromConfig wires the generator, platform client and media uploader
// from configuration. A generator that cannot be built is replaced by one
// that fails open on moderation and fails generation, so the service still
// starts and reports why posts are not going out.
func NewFromConfig(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*Poster, *platform.Client) {
	var gen generator.ContentGenerator
	ai, err := generator.NewAIGenerator(cfg.AI, logger.Named("generator"))
	if err != nil {
		logger.Error("content generator unavailable", zap.Error(err))
		gen = generator.Unavailable{Err: err}
	} else {
		gen = ai
	}

	client := platform.NewClient(cfg.Twitter, logger.Named("platform"))
	uploader := media.NewUploader(client, logger.Named("media"), media.WithMetrics(m))

	return NewPoster(gen, uploader, client, logger.Named("workflow"), WithMetrics(m)), client
}
