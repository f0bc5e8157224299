// Copyright (c) 2014 Canonical Ltd.
// Licensed under the GPLv3, see the COPYING file for details.

package siglink

import (
	"errors"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/signal-golang/siglink/config"
)

// ReadConfig reads a YAML config file
func ReadConfig(fileName string) (*config.Config, error) {
	b, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{}
	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig saves a config to a file
func WriteConfig(filename string, cfg *config.Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, b, 0600)
}

// LoadConfig reads fileName if it exists and makes sure that for unset
// values sane defaults are used. A missing file yields the defaults.
func LoadConfig(fileName string) (*config.Config, error) {
	log.Debugln("[siglink] loading config", fileName)
	cfg, err := ReadConfig(fileName)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = &config.Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.Defaults()
	return cfg, nil
}
