// Package e2e is a black-box scenario suite run against a live server.
// It is skipped unless MINIRC_E2E_ADDR points at one.
package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MINIRC_E2E_ADDR is the host:port of the server under test.
	Addr string `envconfig:"MINIRC_E2E_ADDR"`
	// MINIRC_E2E_COLOURS enables colorized output for better log readability
	Colours bool          `envconfig:"MINIRC_E2E_COLOURS" default:"true"`
	Timeout time.Duration `envconfig:"MINIRC_E2E_TIMEOUT" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
