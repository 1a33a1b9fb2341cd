package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/config"
	"github.com/rshade/greenreport/internal/engine"
	"github.com/rshade/greenreport/internal/engine/archive"
	"github.com/rshade/greenreport/internal/llm"
	"github.com/rshade/greenreport/internal/metrics"
	"github.com/rshade/greenreport/internal/store/file"
	"github.com/rshade/greenreport/internal/store/influx"
	"github.com/rshade/greenreport/internal/store/postgres"
)

// errNoSource is returned when neither --data nor a database URL is set.
var errNoSource = errors.New("no data source: pass --data or set database.url")

// app holds the collaborators one command invocation needs.
type app struct {
	cfg     *config.Config
	orch    *engine.Orchestrator
	archive *archive.Store
	db      *postgres.Store
	closers []func()
}

// Close releases every opened store in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// newApp opens the data sources named by flags and configuration and
// builds the orchestrator over them.
func newApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	cfg := config.GetGlobalConfig()
	a := &app{cfg: cfg}

	source, readings, err := a.openSources(ctx, cmd)
	if err != nil {
		a.Close()
		return nil, err
	}

	table := carbon.DefaultFactorTable()
	factor, err := carbon.ResolveFactor(table, cfg.Carbon.Factor)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("carbon.factor: %w", err)
	}

	opts := []engine.Option{
		engine.WithFactor(factor),
		engine.WithVoltage(cfg.Carbon.Voltage),
		engine.WithRecorder(metrics.NewRecorder()),
	}
	if readings != nil {
		opts = append(opts, engine.WithReadingSource(readings))
	}

	model, err := openModel(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if model != nil {
		opts = append(opts, engine.WithModel(model))
	}

	store, err := openArchive(cfg)
	if err != nil {
		logger.Warn().Ctx(ctx).Err(err).Msg("report archive unavailable")
	} else {
		a.archive = store
		opts = append(opts, engine.WithReportStore(store))
	}

	a.orch, err = engine.New(source, table, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openSources(ctx context.Context, cmd *cobra.Command) (engine.DataSource, engine.ReadingSource, error) {
	var (
		source   engine.DataSource
		readings engine.ReadingSource
	)

	dataPath, _ := cmd.Flags().GetString("data")
	switch {
	case dataPath != "":
		fixture, err := file.Load(dataPath)
		if err != nil {
			return nil, nil, err
		}
		source, readings = fixture, fixture
		logger.Debug().Ctx(ctx).Str("source", fixture.String()).Msg("using fixture data source")
	case a.cfg.Database.URL != "":
		db, err := postgres.Open(ctx, postgres.Config{
			URL:      a.cfg.Database.URL,
			MaxConns: a.cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		source, readings = db, db
	default:
		return nil, nil, errNoSource
	}

	if a.cfg.Influx.Enabled() {
		store, err := openInflux(a.cfg)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		readings = store
	}
	return source, readings, nil
}

func openInflux(cfg *config.Config) (*influx.Store, error) {
	store, err := influx.Open(influx.Config{
		URL:         cfg.Influx.URL,
		Token:       cfg.Influx.Token,
		Org:         cfg.Influx.Org,
		Bucket:      cfg.Influx.Bucket,
		Measurement: cfg.Influx.Measurement,
	})
	if err != nil {
		return nil, fmt.Errorf("opening influx: %w", err)
	}
	return store, nil
}

// openModel returns nil without error when no API key is configured so
// that test-mode and summary queries keep working.
func openModel(cfg *config.Config) (llm.Client, error) {
	if cfg.Model.APIKey == "" {
		return nil, nil //nolint:nilnil // absent model is a valid configuration
	}
	client, err := llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Name,
		Timeout: cfg.Model.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring model client: %w", err)
	}
	return client, nil
}

func openArchive(cfg *config.Config) (*archive.Store, error) {
	dir, err := cfg.ArchiveDir()
	if err != nil {
		return nil, err
	}
	return archive.NewStore(dir, cfg.Archive.Enabled, cfg.RetentionPeriod())
}
