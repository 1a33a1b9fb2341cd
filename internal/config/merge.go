package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyServer   = "server"
	keyModel    = "model"
	keyCarbon   = "carbon"
	keyDatabase = "database"
	keyInflux   = "influx"
	keyKafka    = "kafka"
	keyArchive  = "archive"
	keyLogging  = "logging"
)

// knownTopLevelKeys lists the YAML keys that correspond to exported Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyServer:   true,
	keyModel:    true,
	keyCarbon:   true,
	keyDatabase: true,
	keyInflux:   true,
	keyKafka:    true,
	keyArchive:  true,
	keyLogging:  true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	// Empty or comment-only file.
	if len(overlay) == 0 {
		return nil
	}

	for key, node := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}
		if err = unmarshalSection(target, key, &node); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}

	return nil
}

// unmarshalSection decodes node into a fresh zero value of the section
// named key and replaces that section of target wholesale.
func unmarshalSection(target *Config, key string, node *yaml.Node) error {
	switch key {
	case keyServer:
		return replace(node, &target.Server)
	case keyModel:
		return replace(node, &target.Model)
	case keyCarbon:
		return replace(node, &target.Carbon)
	case keyDatabase:
		return replace(node, &target.Database)
	case keyInflux:
		return replace(node, &target.Influx)
	case keyKafka:
		return replace(node, &target.Kafka)
	case keyArchive:
		return replace(node, &target.Archive)
	case keyLogging:
		return replace(node, &target.Logging)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

func replace[T any](node *yaml.Node, dst *T) error {
	var v T
	if err := node.Decode(&v); err != nil {
		return err
	}
	*dst = v
	return nil
}
