package config

import (
	kcfg "modelwrap/source/kafka"
)

// LoadStreamSource delegates to the Kafka source loader while centralizing
// loader entrypoints under internal/config.
func LoadStreamSource(path string) (kcfg.Config, error) {
	return kcfg.LoadConfig(path)
}
