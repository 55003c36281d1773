package backend

import (
	"context"
	"fmt"
	"log/slog"

	"flowtrack/internal/adapters"
	"flowtrack/internal/amqp"
	"flowtrack/internal/services"
	"flowtrack/internal/storage"
	gsheet "flowtrack/internal/store/google"
	"flowtrack/internal/store/memory"
)

// Factory opens backends and logs what it wired.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Open validates cfg and opens the selected store.
func (f *Factory) Open(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		b   *Backend
		err error
	)
	switch cfg.Kind {
	case SQLite:
		b, err = f.openSQLite(cfg)
	case Sheets:
		b, err = f.openSheets(ctx, cfg)
	default:
		b, err = f.openMemory(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Kind, err)
	}
	return b, nil
}

func (f *Factory) openSQLite(cfg Config) (*Backend, error) {
	s := cfg.SQLite
	repo, err := storage.NewSQLiteRepository(s.Path, cfg.Location)
	if err != nil {
		return nil, err
	}

	// Without a broker the worker still finds pending rows on its sweep.
	var publisher services.Publisher
	if s.AMQPURL != "" {
		client, err := amqp.NewClient(s.AMQPURL, s.AMQPExchange, s.AMQPQueue)
		if err != nil {
			f.logger.Warn("AMQP unavailable, change events disabled", "error", err)
		} else {
			publisher = client
		}
	}

	svc := services.NewTransactionService(repo, publisher)
	adapter := adapters.NewSQLiteAdapter(repo, svc)
	f.logger.Info("Opened SQLite backend",
		"db_path", s.Path,
		"exchange", s.AMQPExchange,
		"events", publisher != nil)

	return &Backend{Store: adapter, Ready: adapter.Ping, close: svc.Close}, nil
}

func (f *Factory) openSheets(ctx context.Context, cfg Config) (*Backend, error) {
	s := cfg.Sheets
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   s.SpreadsheetID,
		SheetName:       s.SheetName,
		CredentialsJSON: s.CredentialsJSON,
		CredentialsFile: s.CredentialsFile,
		Location:        cfg.Location,
	})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("prepare sheet %q: %w", s.SheetName, err)
	}
	f.logger.Info("Opened Google Sheets backend", "spreadsheet_id", s.SpreadsheetID, "sheet", s.SheetName)
	return &Backend{Store: client}, nil
}

func (f *Factory) openMemory(cfg Config) (*Backend, error) {
	st, err := memory.NewFromFile(cfg.Memory.SeedFile, cfg.Location)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Opened memory backend", "seed_file", cfg.Memory.SeedFile)
	return &Backend{Store: st}, nil
}
