package cli

import (
	"fmt"
	"log/slog"

	"github.com/lazypower/pulse/internal/config"
	"github.com/lazypower/pulse/internal/engine"
	"github.com/lazypower/pulse/internal/policy"
	"github.com/lazypower/pulse/internal/store"
	"github.com/lazypower/pulse/internal/taxonomy"
)

// runtime is a fully wired local engine with its supporting resources.
type runtime struct {
	engine *engine.Engine
	gate   *policy.Gate
	db     *store.DB // nil when persistence is off
	dbPath string
}

// openRuntime builds an engine from cfg. With persist set, state is restored
// from and saved to the SQLite store.
func openRuntime(cfg config.Config, logger *slog.Logger, persist bool) (*runtime, error) {
	tax := loadTaxonomy(cfg.Engine.TaxonomyPath, logger)

	gate, err := policy.NewGate(cfg.Engine.PolicyPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	if cfg.Engine.PolicyWatch && cfg.Engine.PolicyPath != "" {
		if err := gate.StartHotReload(); err != nil {
			logger.Warn("policy hot reload disabled", "err", err)
		}
	}

	rt := &runtime{gate: gate}
	opts := engine.Options{
		Taxonomy:       tax,
		TopN:           cfg.Engine.TopN,
		GeoBucket:      cfg.Engine.GeoBucket,
		Gate:           gate,
		AuditRetention: cfg.Engine.AuditRetention,
		Logger:         logger,
	}

	if persist {
		dbPath := cfg.Database.Path
		if dbPath == "" {
			dbPath, err = store.DefaultDBPath()
			if err != nil {
				gate.Stop()
				return nil, fmt.Errorf("resolve db path: %w", err)
			}
		}
		db, err := store.Open(dbPath)
		if err != nil {
			gate.Stop()
			return nil, fmt.Errorf("open database: %w", err)
		}
		rt.db, rt.dbPath = db, dbPath
		opts.Persister = db
	}

	rt.engine = engine.New(opts)
	if err := rt.engine.Restore(); err != nil {
		logger.Warn("starting with empty state", "err", err)
	}
	return rt, nil
}

// Close stops the engine, which saves a final snapshot, then releases the
// policy watcher and the database.
func (rt *runtime) Close() {
	rt.engine.Stop()
	rt.gate.Stop()
	if rt.db != nil {
		rt.db.Close()
	}
}

// loadTaxonomy returns the configured taxonomy. An unreadable file yields an
// empty taxonomy so the engine still runs.
func loadTaxonomy(path string, logger *slog.Logger) *taxonomy.Taxonomy {
	if path == "" {
		return taxonomy.Default()
	}
	tax, err := taxonomy.Load(path)
	if err != nil {
		logger.Error("taxonomy unavailable, extraction disabled", "path", path, "err", err)
		return taxonomy.Empty()
	}
	for _, rej := range tax.Rejected() {
		logger.Warn("taxonomy entry rejected", "path", path, "err", rej)
	}
	logger.Info("taxonomy loaded", "path", path, "leaves", tax.Len(), "intents", len(tax.Intents()))
	return tax
}
