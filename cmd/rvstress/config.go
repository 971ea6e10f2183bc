package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/creachadair/rendezvous/internal/stress"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// fileConfig is the layout of the optional YAML configuration file.
type fileConfig struct {
	Workload stress.Config `yaml:"workload"`
	LogLevel string        `yaml:"log_level"`
	Name     string        `yaml:"name"` // channel label for metrics
}

// defaultConfig is used for settings neither the file nor the flags supply.
func defaultConfig() fileConfig {
	return fileConfig{
		Workload: stress.Config{
			Speakers:  8,
			Listeners: 8,
			Rounds:    1000,
			Timeout:   time.Minute,
		},
		LogLevel: "info",
		Name:     "rvstress",
	}
}

// loadConfig parses args, reading the YAML file named by -config (if any)
// and then applying any flags given explicitly on the command line.
func loadConfig(args []string) (fileConfig, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("rvstress", flag.ContinueOnError)
	path := fs.String("config", "", "YAML configuration file")
	speakers := fs.Int("speakers", cfg.Workload.Speakers, "Number of concurrent speakers")
	listeners := fs.Int("listeners", cfg.Workload.Listeners, "Number of concurrent listeners")
	rounds := fs.Int("rounds", cfg.Workload.Rounds, "Values spoken by each speaker")
	fifo := fs.Bool("fifo", cfg.Workload.FIFO, "Admit speakers and listeners in arrival order")
	timeout := fs.Duration("timeout", cfg.Workload.Timeout, "Overall time limit (0 for none)")
	level := fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	name := fs.String("name", cfg.Name, "Channel name used to label metrics")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() != 0 {
		return cfg, fmt.Errorf("unexpected arguments: %q", fs.Args())
	}

	if *path != "" {
		data, err := os.ReadFile(*path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", *path, err)
		}
	}

	// Flags set explicitly take precedence over the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "speakers":
			cfg.Workload.Speakers = *speakers
		case "listeners":
			cfg.Workload.Listeners = *listeners
		case "rounds":
			cfg.Workload.Rounds = *rounds
		case "fifo":
			cfg.Workload.FIFO = *fifo
		case "timeout":
			cfg.Workload.Timeout = *timeout
		case "log-level":
			cfg.LogLevel = *level
		case "name":
			cfg.Name = *name
		}
	})

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	if err := cfg.Workload.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid workload: %w", err)
	}
	return cfg, nil
}
