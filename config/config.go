package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInstanceType  = "t2.micro"
	DefaultSSHKeyName    = "aws-network-benchmark"
	DefaultInstanceCount = 1
	DefaultPingCount     = 20
	DefaultP2PDuration   = 10
	DefaultP2PParallel   = 1
	DefaultUDPBandwidth  = "1G"
	DefaultUDPDuration   = 10
	DefaultRunDir        = "runs"
)

// Config holds everything one benchmark run needs: which regions to
// provision, how to reach the instances, and which test phases to run.
type Config struct {
	AWSRegions           []string       `json:"aws_regions" yaml:"aws_regions"`
	InstanceType         string         `json:"instance_type" yaml:"instance_type"`
	InstanceCount        int            `json:"instance_count" yaml:"instance_count"`
	RegionInstanceCounts map[string]int `json:"region_instance_counts" yaml:"region_instance_counts"`
	SSHKeyName           string         `json:"ssh_key_name" yaml:"ssh_key_name"`
	CreateSSHKey         bool           `json:"create_ssh_key" yaml:"create_ssh_key"`
	UsePrivateIP         bool           `json:"use_private_ip" yaml:"use_private_ip"`
	TestIntraRegion      bool           `json:"test_intra_region" yaml:"test_intra_region"`

	RunLatencyTests bool `json:"run_latency_tests" yaml:"run_latency_tests"`
	PingCount       int  `json:"ping_count" yaml:"ping_count"`

	RunP2PTests bool `json:"run_p2p_tests" yaml:"run_p2p_tests"`
	P2PDuration int  `json:"p2p_duration" yaml:"p2p_duration"`
	P2PParallel int  `json:"p2p_parallel" yaml:"p2p_parallel"`

	RunUDPTests     bool   `json:"run_udp_tests" yaml:"run_udp_tests"`
	UDPServerRegion string `json:"udp_server_region" yaml:"udp_server_region"`
	UDPBandwidth    string `json:"udp_bandwidth" yaml:"udp_bandwidth"`
	UDPDuration     int    `json:"udp_duration" yaml:"udp_duration"`

	MonitorSystem bool `json:"monitor_system" yaml:"monitor_system"`

	RunTerraformApply      bool   `json:"run_terraform_apply" yaml:"run_terraform_apply"`
	CleanupResources       bool   `json:"cleanup_resources" yaml:"cleanup_resources"`
	GenerateVisualizations bool   `json:"generate_visualizations" yaml:"generate_visualizations"`
	GenerateReport         bool   `json:"generate_report" yaml:"generate_report"`
	TestConcurrency        int    `json:"test_concurrency" yaml:"test_concurrency"`
	ArchiveBucket          string `json:"archive_bucket" yaml:"archive_bucket"`
	RunDir                 string `json:"run_dir" yaml:"run_dir"`
}

// Load reads a JSON or YAML config file, applies defaults, and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RunLatencyTests:        true,
		RunP2PTests:            true,
		RunUDPTests:            true,
		RunTerraformApply:      true,
		CleanupResources:       true,
		GenerateVisualizations: true,
		GenerateReport:         true,
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.InstanceType == "" {
		cfg.InstanceType = DefaultInstanceType
	}
	if cfg.InstanceCount == 0 {
		cfg.InstanceCount = DefaultInstanceCount
	}
	if cfg.SSHKeyName == "" {
		cfg.SSHKeyName = DefaultSSHKeyName
	}
	if cfg.PingCount == 0 {
		cfg.PingCount = DefaultPingCount
	}
	if cfg.P2PDuration == 0 {
		cfg.P2PDuration = DefaultP2PDuration
	}
	if cfg.P2PParallel == 0 {
		cfg.P2PParallel = DefaultP2PParallel
	}
	if cfg.UDPBandwidth == "" {
		cfg.UDPBandwidth = DefaultUDPBandwidth
	}
	if cfg.UDPDuration == 0 {
		cfg.UDPDuration = DefaultUDPDuration
	}
	if cfg.UDPServerRegion == "" && len(cfg.AWSRegions) > 0 {
		cfg.UDPServerRegion = cfg.AWSRegions[0]
	}
	if cfg.RunDir == "" {
		cfg.RunDir = DefaultRunDir
	}
}

// Validate rejects configs that would fail mid-run.
func Validate(cfg *Config) error {
	if len(cfg.AWSRegions) == 0 {
		return fmt.Errorf("aws_regions must not be empty")
	}
	for region, count := range cfg.RegionInstanceCounts {
		if !slices.Contains(cfg.AWSRegions, region) {
			return fmt.Errorf("region_instance_counts names %s which is not in aws_regions", region)
		}
		if count < 1 {
			return fmt.Errorf("region_instance_counts[%s] must be at least 1", region)
		}
	}
	if cfg.RunUDPTests && !slices.Contains(cfg.AWSRegions, cfg.UDPServerRegion) {
		return fmt.Errorf("udp_server_region %s must be one of aws_regions", cfg.UDPServerRegion)
	}
	return nil
}

// InstancesIn returns the instance count for a region, honoring per-region overrides.
func (cfg *Config) InstancesIn(region string) int {
	if n, ok := cfg.RegionInstanceCounts[region]; ok {
		return n
	}
	return cfg.InstanceCount
}
