// Package config loads and validates the JSON configuration consumed by
// cmd/server: shelf capacities and decay factors, kitchen production rate,
// simulation duration, and the HTTP bind address.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ShelfConfig configures one shelf in the pod.
type ShelfConfig struct {
	ID              string  `json:"id" validate:"required"`
	Capacity        int     `json:"capacity" validate:"required,gt=0"`
	Temperature     string  `json:"temperature" validate:"required,oneof=hot cold frozen overflow"`
	DecayRateFactor float64 `json:"decayRateFactor" validate:"gte=0"`
}

// Config is the full configuration for a running shelfpod server.
type Config struct {
	Shelves           []ShelfConfig `json:"shelves" validate:"required,len=4,dive"`
	OrdersPerSecond   float64       `json:"ordersPerSecond" validate:"gt=0"`
	SimulationSeconds int           `json:"simulationSeconds" validate:"gte=0"`
	HTTPAddr          string        `json:"httpAddr" validate:"required"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Shelves: []ShelfConfig{
			{ID: "hot", Capacity: 20, Temperature: "hot", DecayRateFactor: 1},
			{ID: "cold", Capacity: 20, Temperature: "cold", DecayRateFactor: 1},
			{ID: "frozen", Capacity: 20, Temperature: "frozen", DecayRateFactor: 1},
			{ID: "overflow", Capacity: 30, Temperature: "overflow", DecayRateFactor: 2},
		},
		OrdersPerSecond:   2.0,
		SimulationSeconds: 300,
		HTTPAddr:          ":8080",
	}
}

// LoadConfig loads configuration from path, falling back to DefaultConfig
// when the file does not exist. Every loaded (or default) configuration is
// validated before being returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			if verr := validate.Struct(cfg); verr != nil {
				return nil, fmt.Errorf("config: default config failed validation: %w", verr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %s failed validation: %w", path, err)
	}

	return cfg, nil
}
