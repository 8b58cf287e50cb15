package main

import (
	"context"
	"log"

	corebootstrap "github.com/m3rciful/proxyrelay/core/bootstrap"
	corecmd "github.com/m3rciful/proxyrelay/core/cmd"
	coredatabase "github.com/m3rciful/proxyrelay/core/database"
	"github.com/m3rciful/proxyrelay/relay/bot"
	"github.com/m3rciful/proxyrelay/relay/config"
)

// app closes the bootstrap resources after the relay itself.
type app struct {
	*bot.App
	infra *corebootstrap.Result
}

func (a app) Close() error {
	err := a.App.Close()
	if cerr := a.infra.Close(); err == nil {
		err = cerr
	}
	return err
}

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg := carrier.(*config.Config)

			var db *coredatabase.Config
			if cfg.NeedsDatabase() {
				db = &cfg.Database
			}
			infra, err := corebootstrap.Run(corebootstrap.Options{
				Config:   cfg.CoreConfig(),
				Database: db,
			})
			if err != nil {
				return nil, err
			}

			relay, err := bot.New(context.Background(), cfg, infra.DB)
			if err != nil {
				_ = infra.Close()
				return nil, err
			}
			return app{App: relay, infra: infra}, nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
