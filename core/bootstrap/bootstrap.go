// Package bootstrap prepares the infrastructure a bot binary needs before it
// starts serving updates.
package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/proxyrelay/core/config"
	coredatabase "github.com/m3rciful/proxyrelay/core/database"
	"github.com/m3rciful/proxyrelay/core/logger"
)

// Options select what Run prepares. The function fields default to the core
// implementations and exist for tests.
type Options struct {
	Config *coreconfig.Config
	// Database is nil when the bot keeps no state in PostgreSQL.
	Database *coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

func (o *Options) fill() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}

// Result holds what Run opened. DB is nil without a database section.
type Result struct {
	DB *sqlx.DB
}

// Close releases the database pool, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run starts the logger, then opens and migrates the database when one is
// configured. A failed migration closes the pool it opened.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.fill()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	res := &Result{}
	if opts.Database == nil {
		return res, nil
	}

	db, err := opts.Connect(*opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	res.DB = db
	if err := opts.Migrate(*opts.Database); err != nil {
		return nil, errors.Join(fmt.Errorf("bootstrap: migrations: %w", err), res.Close())
	}
	return res, nil
}
