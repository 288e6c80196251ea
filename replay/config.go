package replay

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// validate is the shared validator instance.
var validate = validator.New()

// Config controls playback of a recorded message log.
type Config struct {
	// File is the path to the recorded log: a JSON or YAML array of
	// records with topic, receive_time, and data.
	File string `koanf:"file" validate:"required"`

	// Rate scales playback speed. 1.0 replays at recorded pace, 2.0 at
	// twice the pace, 0 delivers everything without pacing.
	Rate float64 `koanf:"rate" validate:"gte=0"`

	// Loop restarts playback from the beginning, under a new seek epoch,
	// when the log is exhausted.
	Loop bool `koanf:"loop"`

	// Topics optionally restricts playback to the named topics.
	Topics []string `koanf:"topics"`
}

// LoadConfig merges YAML (if present) with env vars
// (prefix `FOLD_REPLAY__`, delimiter `__`).
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	_ = k.Load(env.Provider("FOLD_REPLAY__", "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "FOLD_REPLAY__"))
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	if !k.Exists("rate") {
		cfg.Rate = 1.0
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid replay config: %w", err)
	}
	return cfg, nil
}
