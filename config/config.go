package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	LogPath      = "./logs/"
	BackendLog   = "backend"
	MintLog      = "mint"
	HarvestLog   = "harvest"
	StoreLog     = "store"
	ServerLog    = "server"
	NetworkLog   = "network"
	KeystoreLog  = "keystore"
	DefaultBatch = 30
)

var ErrNoNodes = errors.New("config: no usable rpc node")

type Node struct {
	Rpc    string `json:"rpc" yaml:"rpc"`
	Ws     string `json:"ws" yaml:"ws"`
	Usable bool   `json:"usable" yaml:"usable"`
}

type Config struct {
	Nodes       []*Node `json:"nodes" yaml:"nodes"`
	DetectNodes bool    `json:"detect_nodes" yaml:"detect_nodes"`
	Commitment  string  `json:"commitment" yaml:"commitment"`
	// ConfirmTimeout and PollInterval are in seconds and milliseconds.
	ConfirmTimeout int `json:"confirm_timeout" yaml:"confirm_timeout"`
	PollInterval   int `json:"poll_interval" yaml:"poll_interval"`
	// PriorityFee is the compute unit price in micro-lamports.
	PriorityFee uint64 `json:"priority_fee" yaml:"priority_fee"`

	Key             string `json:"key" yaml:"key"`
	KeyFile         string `json:"key_file" yaml:"key_file"`
	KeySecret       string `json:"key_secret" yaml:"key_secret"`
	AuthorityKey    string `json:"authority_key" yaml:"authority_key"`
	AuthoritySecret string `json:"authority_secret" yaml:"authority_secret"`

	BatchSize   int    `json:"batch_size" yaml:"batch_size"`
	HarvestMode string `json:"harvest_mode" yaml:"harvest_mode"`
	Parallelism int    `json:"parallelism" yaml:"parallelism"`

	DBUrl    string `json:"db_url" yaml:"db_url"`
	DBScheme string `json:"db_scheme" yaml:"db_scheme"`
	DBUser   string `json:"db_user" yaml:"db_user"`
	DBPasswd string `json:"db_passwd" yaml:"db_passwd"`

	Listen  string `json:"listen" yaml:"listen"`
	DingUrl string `json:"ding-url" yaml:"ding_url"`
	LogPath string `json:"log_path" yaml:"log_path"`
}

// Load reads a json config, or a yaml one when the file ends in .yaml/.yml,
// and fills in defaults.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, cfg)
	default:
		err = json.Unmarshal(content, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.setDefaults()
	if len(cfg.UsableNodes()) == 0 {
		return nil, ErrNoNodes
	}
	if cfg.LogPath != "" {
		LogPath = cfg.LogPath
	}
	return cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatch
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 90
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500
	}
	if cfg.HarvestMode == "" {
		cfg.HarvestMode = "sequential"
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.Listen == "" {
		cfg.Listen = "0.0.0.0:8089"
	}
	if cfg.LogPath != "" && !strings.HasSuffix(cfg.LogPath, "/") {
		cfg.LogPath += "/"
	}
}

func (cfg *Config) UsableNodes() []*Node {
	nodes := make([]*Node, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		if node.Usable {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// DSN is the mysql data source name, empty when no database is configured.
func (cfg *Config) DSN() string {
	if cfg.DBUrl == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DBUser, cfg.DBPasswd, cfg.DBUrl, cfg.DBScheme)
}
