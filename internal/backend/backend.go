// Package backend opens the transaction store selected by DATA_BACKEND.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flowtrack/internal/config"
	"flowtrack/internal/store"
)

// Kind names a store implementation.
type Kind string

const (
	SQLite Kind = "sqlite"
	Sheets Kind = "sheets"
	Memory Kind = "memory"
)

// Kinds returns every supported kind.
func Kinds() []Kind {
	return []Kind{SQLite, Sheets, Memory}
}

func (k Kind) Valid() bool {
	switch k {
	case SQLite, Sheets, Memory:
		return true
	}
	return false
}

// Backend is an open store plus its lifecycle hooks.
type Backend struct {
	Store store.TransactionStore
	// Ready is nil when the store has nothing to probe.
	Ready func(ctx context.Context) error

	close func() error
}

// Close releases the store's resources. It is safe on a nil Backend.
func (b *Backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

type SQLiteSettings struct {
	Path string
	// Change events are published only when AMQPURL is set.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type SheetsSettings struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type MemorySettings struct {
	// SeedFile is optional; without it the store starts empty.
	SeedFile string
}

// Config selects a Kind and carries the settings of every kind.
type Config struct {
	Kind Kind
	// Location applies to stored dates without a zone.
	Location *time.Location

	SQLite SQLiteSettings
	Sheets SheetsSettings
	Memory MemorySettings
}

// FromAppConfig extracts the store settings from the service configuration.
func FromAppConfig(cfg *config.Config, loc *time.Location) (Config, error) {
	if cfg == nil {
		return Config{}, errors.New("backend: nil configuration")
	}
	kind := Kind(cfg.DataBackend)
	if !kind.Valid() {
		return Config{}, fmt.Errorf("backend: unknown kind %q", cfg.DataBackend)
	}
	return Config{
		Kind:     kind,
		Location: loc,
		SQLite: SQLiteSettings{
			Path:         cfg.SQLiteDBPath,
			AMQPURL:      cfg.AMQPURL,
			AMQPExchange: cfg.AMQPExchange,
			AMQPQueue:    cfg.AMQPQueue,
		},
		Sheets: SheetsSettings{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		},
		Memory: MemorySettings{SeedFile: cfg.MemorySeedFile},
	}, nil
}

// Validate checks the settings of the selected kind only.
func (c Config) Validate() error {
	switch c.Kind {
	case SQLite:
		if c.SQLite.Path == "" {
			return errors.New("backend: sqlite needs a database path")
		}
	case Sheets:
		if c.Sheets.SpreadsheetID == "" || c.Sheets.SheetName == "" {
			return errors.New("backend: sheets needs a spreadsheet ID and a sheet name")
		}
	case Memory:
	default:
		return fmt.Errorf("backend: unknown kind %q", c.Kind)
	}
	return nil
}
