// Package config loads the service's TOML configuration file, following the
// load-defaults-then-decode-over-them shape of jduranf-device-sdk-go's
// internal/config/loader.go.
package config

import (
	"io/ioutil"
	"path/filepath"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/bluerobotics-go/sonarfleetd/internal/common"
)

// Load reads and decodes the TOML file at path, starting from common.Defaults()
// so any section the file omits keeps its spec-mandated default.
//
// As in the teacher, go-toml's Unmarshal can panic on badly shaped input; a
// deferred recover turns that into a plain error instead of crashing the
// service.
func Load(path string) (cfg common.Config, err error) {
	cfg = common.Defaults()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "could not resolve configuration path %s", path)
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("could not load configuration file; invalid TOML (%s): %v", absPath, r)
		}
	}()

	contents, err := ioutil.ReadFile(absPath)
	if err != nil {
		return cfg, errors.Wrapf(err, "could not load configuration file (%s)", absPath)
	}

	if unmarshalErr := toml.Unmarshal(contents, &cfg); unmarshalErr != nil {
		return cfg, errors.Wrapf(unmarshalErr, "unable to parse configuration file (%s)", absPath)
	}

	return cfg, nil
}
