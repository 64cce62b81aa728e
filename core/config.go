package core

import (
	"fmt"
	"strings"
	"time"
)

type ProcessingConfig struct {
	// MaxAttempts is the dead-letter ceiling. Zero leaves the ceiling
	// unconfigured: failed events stay failed and remain retriable.
	MaxAttempts    int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	HandlerTimeout time.Duration `koanf:"handler_timeout" mapstructure:"handler_timeout"`
	// ReclaimAfter is how long an event may sit in processing before a
	// reclaim pass considers its worker crashed.
	ReclaimAfter time.Duration `koanf:"reclaim_after" mapstructure:"reclaim_after"`
}

type SweepConfig struct {
	BatchSize int `koanf:"batch_size" mapstructure:"batch_size"`
}

type DispatchConfig struct {
	Workers   int `koanf:"workers" mapstructure:"workers"`
	QueueSize int `koanf:"queue_size" mapstructure:"queue_size"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Processing  ProcessingConfig `koanf:"processing" mapstructure:"processing"`
	Sweep       SweepConfig      `koanf:"sweep" mapstructure:"sweep"`
	Dispatch    DispatchConfig   `koanf:"dispatch" mapstructure:"dispatch"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "eventhub",
		Processing: ProcessingConfig{
			MaxAttempts:    0,
			HandlerTimeout: 30 * time.Second,
			ReclaimAfter:   15 * time.Minute,
		},
		Sweep: SweepConfig{
			BatchSize: 0,
		},
		Dispatch: DispatchConfig{
			Workers:   4,
			QueueSize: 64,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Processing.MaxAttempts < 0 {
		return fmt.Errorf("core: processing.max_attempts must not be negative")
	}
	if c.Processing.HandlerTimeout < 0 {
		return fmt.Errorf("core: processing.handler_timeout must not be negative")
	}
	if c.Processing.ReclaimAfter < 0 {
		return fmt.Errorf("core: processing.reclaim_after must not be negative")
	}
	if c.Sweep.BatchSize < 0 {
		return fmt.Errorf("core: sweep.batch_size must not be negative")
	}
	if c.Dispatch.Workers < 0 {
		return fmt.Errorf("core: dispatch.workers must not be negative")
	}
	if c.Dispatch.QueueSize < 0 {
		return fmt.Errorf("core: dispatch.queue_size must not be negative")
	}
	return nil
}
