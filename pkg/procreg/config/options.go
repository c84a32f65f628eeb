package config

import (
	"fmt"

	"github.com/randalmurphal/procreg/pkg/procreg"
)

// Options translates a configuration document into registry Start options.
//
// Recognized keys:
//
//	keys: unique | duplicate   (required)
//	partitions: <int>          (default 1)
//	meta: { <key>: <value> }   (seeded meta entries)
//
// Unknown keys are ignored, so registry configuration can live inside a
// larger application document.
func (c Config) Options() ([]procreg.Option, error) {
	mode, err := parseKeys(c.String("keys", ""))
	if err != nil {
		return nil, err
	}

	opts := []procreg.Option{
		procreg.WithKeys(mode),
		procreg.WithPartitions(c.Int("partitions", 1)),
	}
	for k, v := range c.Map("meta") {
		opts = append(opts, procreg.WithMeta(k, v))
	}
	return opts, nil
}

func parseKeys(s string) (procreg.Keys, error) {
	switch s {
	case "unique":
		return procreg.KeysUnique, nil
	case "duplicate":
		return procreg.KeysDuplicate, nil
	case "":
		return 0, fmt.Errorf("config: %w: keys is required", procreg.ErrBadOptions)
	default:
		return 0, fmt.Errorf("config: %w: unknown keys mode %q", procreg.ErrBadOptions, s)
	}
}
