package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"reflect"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/rimage/transform"
)

// Read reads a config from the given file. Environment variables referenced as $VAR or ${VAR}
// are substituted before parsing.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
// Fields left out keep their defaults.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := Default()
	cfg.ConfigFilePath = originalPath
	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config from json")
	}
	if err := cfg.process(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromAttributes decodes an untyped attribute map, as handed over by a host embedding the
// pipeline, over the defaults.
func FromAttributes(attributes map[string]interface{}) (*Config, error) {
	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     cfg,
		DecodeHook: levelHook,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error creating decoder")
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config from attributes")
	}
	if err := cfg.process(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func levelHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(logging.Level(0)) || from.Kind() != reflect.String {
		return data, nil
	}
	return logging.LevelFromString(data.(string))
}

func (cfg *Config) process() error {
	if cfg.Camera.IntrinsicsFile != "" {
		fn := cfg.Camera.IntrinsicsFile
		if !filepath.IsAbs(fn) && cfg.ConfigFilePath != "" {
			fn = filepath.Join(filepath.Dir(cfg.ConfigFilePath), fn)
		}
		intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(fn)
		if err != nil {
			return errors.Wrapf(err, "failed to load camera intrinsics from %q", fn)
		}
		cfg.Camera.IntrinsicParams = intrinsics
	}
	return cfg.Validate("config")
}
