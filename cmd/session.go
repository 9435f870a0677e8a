package cmd

import (
	"fmt"
	"io"

	"grimm.is/aliasync/internal/alias"
	"grimm.is/aliasync/internal/audit"
	"grimm.is/aliasync/internal/backup"
	"grimm.is/aliasync/internal/client"
	"grimm.is/aliasync/internal/config"
	"grimm.is/aliasync/internal/logging"
	"grimm.is/aliasync/internal/metrics"
)

// session is everything a command needs, built from one config file.
type session struct {
	cfg     *config.Config
	set     *alias.Set
	logger  *logging.Logger
	client  *client.HTTPClient
	metrics *metrics.Registry
	backups *backup.Manager

	// audit is nil when audit_db = "off".
	audit *audit.Store
}

// openSession loads the config and wires the engine's dependencies. Logs go
// to stderr (and log_file when configured).
func openSession(g *globalOptions, stderr io.Writer) (*session, error) {
	cfg, err := config.LoadFile(g.configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	set, err := cfg.AliasSet()
	if err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}

	levelName := cfg.LogLevel
	if g.logLevel != "" {
		levelName = g.logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logger, err := logging.Open(logging.Config{
		Level:  level,
		Output: stderr,
		JSON:   cfg.LogFormat == "json",
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)

	s := &session{
		cfg:     cfg,
		set:     set,
		logger:  logger,
		metrics: metrics.New(),
	}

	opts := append(cfg.ClientOptions(),
		client.WithLogger(logger.WithComponent("client")),
		client.WithObserver(s.metrics),
	)
	s.client = client.NewHTTPClient(cfg.Appliance.URL, opts...)

	s.backups = backup.NewManager(s.client, backup.NewFileStore(cfg.Backup.Dir), backup.Options{
		Retain:    cfg.RetainBackups(),
		Appliance: cfg.Appliance.URL,
		Logger:    logger.WithComponent("backup"),
	})
	return s, nil
}

// openAudit opens the audit trail unless it is disabled.
func (s *session) openAudit() error {
	if s.cfg.AuditDB == "off" {
		return nil
	}
	store, err := audit.NewStore(s.cfg.AuditDB, s.cfg.AuditRetain)
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}
	s.audit = store
	return nil
}

// writeMetrics writes the run's metrics when metrics_file is configured.
func (s *session) writeMetrics() {
	if s.cfg.MetricsFile == "" {
		return
	}
	if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
		s.logger.Warn("failed to write metrics", "path", s.cfg.MetricsFile, "error", err)
	}
}

func (s *session) Close() error {
	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			s.logger.Warn("failed to close audit trail", "error", err)
		}
	}
	return s.logger.Close()
}
