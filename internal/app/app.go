// Package app assembles the service: config, logger, stores, pipeline,
// HTTP. cmd/sheetbridge is a thin shell around Run.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsdesk/sheetbridge/pkg/api"
	"github.com/opsdesk/sheetbridge/pkg/audit"
	"github.com/opsdesk/sheetbridge/pkg/cache"
	"github.com/opsdesk/sheetbridge/pkg/config"
	"github.com/opsdesk/sheetbridge/pkg/extract"
	"github.com/opsdesk/sheetbridge/pkg/ingest"
	"github.com/opsdesk/sheetbridge/pkg/logger"
	"github.com/opsdesk/sheetbridge/pkg/store"
	"github.com/opsdesk/sheetbridge/pkg/tabular"
	"github.com/opsdesk/sheetbridge/pkg/tabular/sqlitegrid"
	"github.com/opsdesk/sheetbridge/pkg/telemetry"

	"github.com/opsdesk/sheetbridge/internal/retention"
)

// Options carries resolved startup parameters.
type Options struct {
	Addr   string
	DBPath string
	Cfg    *config.Config
}

// Run starts the service and blocks until SIGINT/SIGTERM, then drains.
func Run(opts Options) error {
	cfg := opts.Cfg

	if err := store.Open(opts.DBPath); err != nil {
		return fmt.Errorf("open message log: %w", err)
	}
	defer func() { _ = store.Close() }()

	grid, err := sqlitegrid.Open(cfg.Sheet.DBPath)
	if err != nil {
		return fmt.Errorf("open grid store: %w", err)
	}
	defer func() { _ = grid.Close() }()

	ctx := context.Background()
	if len(cfg.Sheet.Headers) > 0 {
		if err := grid.EnsureSheet(ctx, cfg.Sheet.Name, cfg.Sheet.Headers); err != nil {
			return fmt.Errorf("seed sheet headers: %w", err)
		}
	}
	if err := grid.EnsureSheet(ctx, cfg.Sheet.AuditName, audit.Headers); err != nil {
		return fmt.Errorf("seed audit headers: %w", err)
	}

	if cfg.Storage.AuditDir != "" {
		if err := logger.AttachAuditFileSink(cfg.Storage.AuditDir); err != nil {
			logger.Warn("audit_sink_attach_failed", "error", err)
		}
	}

	extractor, err := buildExtractor(cfg.Extract)
	if err != nil {
		return err
	}

	if n := cfg.Ingest.MaxPooledBufferBytes.Int64(); n > 0 {
		ingest.SetMaxPooledBuffer(int(n))
	}
	queue := ingest.NewQueue(cfg.Ingest.QueueCapacity)
	telemetry.RegisterQueueDepth(func() float64 { return float64(queue.Len()) })

	hintTTL := cfg.Ingest.HintTTL.Duration()
	if hintTTL == 0 {
		hintTTL = 5 * time.Minute
	}
	pipeline := &ingest.Pipeline{
		Sheet:            grid,
		SheetSpec:        tabular.RangeSpec{Sheet: cfg.Sheet.Name},
		Extractor:        extractor,
		Audit:            audit.NewRecorder(grid, tabular.RangeSpec{Sheet: cfg.Sheet.AuditName}),
		Locks:            ingest.NewKeyLocks(),
		Hints:            cache.NewRowHints(hintTTL),
		IdentifierColumn: cfg.Sheet.IdentifierColumn,
		AppendFields:     cfg.Sheet.AppendFields,
		AllowCreate:      cfg.Ingest.AllowCreate,
	}
	processor := ingest.NewProcessor(queue, pipeline)
	processor.Start(cfg.Ingest.Workers)

	cancelRetention, err := retention.Start(ctx, cfg.Retention)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           api.Router(api.Deps{Queue: queue, Cfg: cfg}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", opts.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal", "signal", sig.String())
	case err := <-errCh:
		logger.Error("http_server_failed", "error", err)
		cancelRetention()
		processor.Stop()
		return err
	}

	// drain: stop intake first, then let workers finish queued messages
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)
	cancelRetention()
	queue.Close()
	processor.Wait()
	logger.Info("shutdown_complete")
	return nil
}

func buildExtractor(cfg config.ExtractConfig) (extract.Extractor, error) {
	switch cfg.Provider {
	case "", "pattern":
		return extract.NewPattern(), nil
	case "anthropic":
		key := config.AnthropicAPIKey()
		if key == "" {
			return nil, fmt.Errorf("extract provider anthropic requires SHEETBRIDGE_ANTHROPIC_API_KEY")
		}
		return extract.NewAnthropic(key, cfg.Model, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown extract provider %q", cfg.Provider)
	}
}
