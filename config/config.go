// Package config loads the provisioning server configuration file.
//
// Every setting can also be given on the command line. Flags that are set
// explicitly take precedence over the file, the file takes precedence over
// built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk representation of the server settings.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Issuer   IssuerConfig   `yaml:"issuer"`
	Node     NodeConfig     `yaml:"node"`
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Archive lists storage backend URIs issued bundles are copied to.
	Archive []string `yaml:"archive,omitempty"`
}

type ServerConfig struct {
	ListenAddr               string   `yaml:"listen_addr"`
	MetricsAddr              string   `yaml:"metrics_addr"`
	EnablePprof              bool     `yaml:"pprof"`
	DrainDuration            Duration `yaml:"drain_duration"`
	GracefulShutdownDuration Duration `yaml:"graceful_shutdown_duration"`
	ReadTimeout              Duration `yaml:"read_timeout"`
	WriteTimeout             Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Debug   bool   `yaml:"debug"`
	JSON    bool   `yaml:"json"`
	UID     bool   `yaml:"uid"`
	Service string `yaml:"service"`
}

type IssuerConfig struct {
	Binary     string `yaml:"binary"`
	CACertPath string `yaml:"ca_crt"`
	CAKeyPath  string `yaml:"ca_key"`
}

type NodeConfig struct {
	ConfigPath    string  `yaml:"config"`
	WorkDir       string  `yaml:"work_dir"`
	Network       string  `yaml:"network"`
	Offset        *uint64 `yaml:"offset,omitempty"`
	RecyclePolicy string  `yaml:"recycle_policy"`
	FailurePolicy string  `yaml:"failure_policy"`
}

type PipelineConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:8080"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = "127.0.0.1:8090"
	}
	if c.Server.DrainDuration == 0 {
		c.Server.DrainDuration = Duration(45 * time.Second)
	}
	if c.Server.GracefulShutdownDuration == 0 {
		c.Server.GracefulShutdownDuration = Duration(30 * time.Second)
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(60 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Log.Service == "" {
		c.Log.Service = "overlay-provisioning"
	}
	if c.Issuer.Binary == "" {
		c.Issuer.Binary = "nebula-cert"
	}
	if c.Issuer.CACertPath == "" {
		c.Issuer.CACertPath = "./ca.crt"
	}
	if c.Issuer.CAKeyPath == "" {
		c.Issuer.CAKeyPath = "./ca.key"
	}
	if c.Node.ConfigPath == "" {
		c.Node.ConfigPath = "./config.yml"
	}
	if c.Node.WorkDir == "" {
		c.Node.WorkDir = "./nodes"
	}
	if c.Node.Network == "" {
		c.Node.Network = "192.168.0.2/24"
	}
	if c.Node.Offset == nil {
		offset := uint64(1)
		c.Node.Offset = &offset
	}
	if c.Node.RecyclePolicy == "" {
		c.Node.RecyclePolicy = "permissive"
	}
	if c.Node.FailurePolicy == "" {
		c.Node.FailurePolicy = "leak"
	}
	if c.Pipeline.QueueSize == 0 {
		c.Pipeline.QueueSize = 128
	}
}
