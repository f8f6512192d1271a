// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix marks environment variables read by Load. A double underscore
// separates sections: IDENTITY_DATABASE__MAX_CONNS sets database.max_conns.
const EnvPrefix = "IDENTITY_"

// Flag names bound by BindFlags, and the keys they set.
var flagKeys = map[string]string{
	"database-url": "database.url",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
}

// LoadOptions selects the layers Load reads.
type LoadOptions struct {
	// File is an optional YAML file.
	File string
	// Flags, when set, must carry the flags registered by BindFlags.
	Flags *pflag.FlagSet
}

// Load builds a Config from, lowest precedence first: defaults, the YAML
// file, IDENTITY_ environment variables and explicitly set flags.
// The result is validated.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "defaults").Wrap(err)
	}
	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("layer", "file").
				With("file", opts.File).
				Wrap(err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "env").Wrap(err)
	}
	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps IDENTITY_TOKEN__ACCESS_TTL to token.access_ttl.
func envKey(name string) string {
	name = strings.TrimPrefix(name, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(name), "__", ".")
}

func defaultValues() map[string]any {
	d := Default()
	return map[string]any{
		"database.url":              d.Database.URL,
		"database.max_conns":        d.Database.MaxConns,
		"database.connect_attempts": d.Database.ConnectAttempts,
		"database.connect_backoff":  d.Database.ConnectBackoff,
		"log.format":                d.Log.Format,
		"log.level":                 d.Log.Level,
		"lockout.threshold":         d.Lockout.Threshold,
		"lockout.cadence":           d.Lockout.Cadence,
		"lockout.duration":          d.Lockout.Duration,
		"password.memory_kib":       d.Password.MemoryKiB,
		"password.iterations":       d.Password.Iterations,
		"password.parallelism":      d.Password.Parallelism,
		"password.salt_length":      d.Password.SaltLength,
		"password.key_length":       d.Password.KeyLength,
		"password.min_length":       d.Password.MinLength,
		"token.secret":              d.Token.Secret,
		"token.issuer":              d.Token.Issuer,
		"token.access_ttl":          d.Token.AccessTTL,
		"token.refresh_bytes":       d.Token.RefreshBytes,
	}
}
