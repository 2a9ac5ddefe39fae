package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/karyatek/storefront/internal/media/storage"
)

// warnUsageRatio is the consumption fraction above which a warning is logged.
const warnUsageRatio = 0.8

var (
	mediaStorageUsedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "media_storage_used_bytes",
		Help: "Bytes currently stored on the media CDN",
	})
	mediaStorageLimitBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "media_storage_limit_bytes",
		Help: "Storage limit of the media CDN plan in bytes",
	})
	mediaCreditsUsed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "media_credits_used",
		Help: "Credits consumed on the media CDN plan",
	})
	mediaCreditsLimit = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "media_credits_limit",
		Help: "Credit limit of the media CDN plan",
	})
)

func init() {
	prometheus.MustRegister(
		mediaStorageUsedBytes,
		mediaStorageLimitBytes,
		mediaCreditsUsed,
		mediaCreditsLimit,
	)
}

// UsageMonitor polls the CDN usage endpoint and exports the numbers as
// Prometheus gauges.
type UsageMonitor struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewUsageMonitor creates a usage monitor.
func NewUsageMonitor(store storage.Storage, logger *slog.Logger) *UsageMonitor {
	return &UsageMonitor{storage: store, logger: logger}
}

// Check fetches usage once, updates the gauges, and logs a warning when
// consumption crosses the threshold.
func (m *UsageMonitor) Check(ctx context.Context) (*storage.Usage, error) {
	usage, err := m.storage.Usage(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch cdn usage: %w", err)
	}

	mediaStorageUsedBytes.Set(float64(usage.StorageBytes))
	mediaStorageLimitBytes.Set(float64(usage.StorageLimitBytes))
	mediaCreditsUsed.Set(usage.CreditsUsed)
	mediaCreditsLimit.Set(usage.CreditsLimit)

	if ratio := usage.StorageRatio(); ratio > warnUsageRatio {
		m.logger.WarnContext(ctx, "media storage consumption is high",
			slog.Int64("used_bytes", usage.StorageBytes),
			slog.Int64("limit_bytes", usage.StorageLimitBytes),
			slog.Float64("ratio", ratio),
		)
	}
	if ratio := usage.CreditsRatio(); ratio > warnUsageRatio {
		m.logger.WarnContext(ctx, "media credit consumption is high",
			slog.Float64("used", usage.CreditsUsed),
			slog.Float64("limit", usage.CreditsLimit),
			slog.Float64("ratio", ratio),
		)
	}
	return usage, nil
}

// Run polls on the given interval until the context is cancelled.
func (m *UsageMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.Check(ctx); err != nil {
			m.logger.ErrorContext(ctx, "usage check failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
