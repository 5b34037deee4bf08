package main

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoprofiles/internal/alias"
	"github.com/sells-group/geoprofiles/internal/confidence"
	"github.com/sells-group/geoprofiles/internal/config"
	"github.com/sells-group/geoprofiles/internal/resilience"
	"github.com/sells-group/geoprofiles/pkg/anthropic"
	"github.com/sells-group/geoprofiles/pkg/geocode"
)

func loadAliases(c *config.Config) (*alias.Table, error) {
	if c.Aliases.File == "" {
		return alias.Default(), nil
	}
	t, err := alias.Load(c.Aliases.File)
	if err != nil {
		return nil, eris.Wrap(err, "load aliases")
	}
	zap.L().Info("aliases loaded",
		zap.String("file", c.Aliases.File),
		zap.String("version", t.Version()),
		zap.Int("entries", t.Len()),
	)
	return t, nil
}

func newGeocoder(c config.GeocodeConfig) geocode.Client {
	opts := []geocode.Option{
		geocode.WithBaseURL(c.BaseURL),
		geocode.WithUserAgent(c.UserAgent),
		geocode.WithMinInterval(time.Duration(c.MinIntervalMs) * time.Millisecond),
	}
	if c.TimeoutSecs > 0 {
		opts = append(opts, geocode.WithHTTPClient(&http.Client{Timeout: time.Duration(c.TimeoutSecs) * time.Second}))
	}
	return geocode.NewClient(opts...)
}

func newGeocodeBreakerConfig(c config.GeocodeConfig) resilience.CircuitBreakerConfig {
	cb := resilience.FromCircuitSettings(c.CircuitFailureThreshold, c.CircuitResetSecs)
	cb.OnStateChange = resilience.CircuitLogger("geocoder")
	return cb
}

func newClassifier(c *config.Config, client anthropic.Client) *confidence.Classifier {
	retry := resilience.FromSettings(c.Confidence.MaxAttempts, c.Confidence.InitialBackoffMs, 0)
	retry.OnRetry = resilience.RetryLogger("confidence")
	return confidence.New(client, c.Anthropic.HaikuModel,
		confidence.WithBatchSize(c.Confidence.BatchSize),
		confidence.WithTimeout(time.Duration(c.Confidence.TimeoutSecs)*time.Second),
		confidence.WithConcurrency(c.Confidence.Concurrency),
		confidence.WithRetry(retry),
	)
}
