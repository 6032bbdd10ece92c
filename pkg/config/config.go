// Package config loads runtime configuration from SUBWAY_* environment
// variables and an optional YAML file describing realtime feed partitions.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/travigo/subway/pkg/util"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFeedTTL     = 30 * time.Second
	DefaultFeedTimeout = 10 * time.Second

	defaultGTFSSource = "http://web.mta.info/developers/data/nyct/subway/google_transit.zip"
)

var ErrNonPositiveDuration = errors.New("duration must be positive")

// FeedPartition is one independently polled GTFS-realtime endpoint
type FeedPartition struct {
	ID  string `yaml:"id" validate:"required"`
	URL string `yaml:"url" validate:"required,url|file"`
}

type FeedsFile struct {
	APIKey     string          `yaml:"api_key"`
	Partitions []FeedPartition `yaml:"partitions" validate:"required,min=1,dive"`
}

type Config struct {
	GTFSSource       string
	GTFSRefresh      string
	EdgeWeightPolicy string

	FeedPartitions []FeedPartition
	FeedAPIKey     string
	FeedTTL        time.Duration
	FeedTimeout    time.Duration
}

// DefaultFeedPartitions are the NYC subway GTFS-realtime feeds, which need no API key
func DefaultFeedPartitions() []FeedPartition {
	return []FeedPartition{
		{ID: "ACE", URL: "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-ace"},
		{ID: "BDFM", URL: "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-bdfm"},
		{ID: "G", URL: "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-g"},
		{ID: "JZ", URL: "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-jz"},
		{ID: "NQRW", URL: "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-nqrw"},
		{ID: "L", URL: "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-l"},
		{ID: "1234567", URL: "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs"},
		{ID: "SIR", URL: "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2Fgtfs-si"},
	}
}

func Load() (*Config, error) {
	return LoadFromEnvironment(util.GetEnvironmentVariables())
}

func LoadFromEnvironment(env map[string]string) (*Config, error) {
	cfg := &Config{
		GTFSSource:       defaultGTFSSource,
		GTFSRefresh:      env["SUBWAY_GTFS_REFRESH"],
		EdgeWeightPolicy: env["SUBWAY_EDGE_WEIGHT_POLICY"],
		FeedPartitions:   DefaultFeedPartitions(),
		FeedAPIKey:       env["SUBWAY_MTA_API_KEY"],
	}

	if env["SUBWAY_GTFS_SOURCE"] != "" {
		cfg.GTFSSource = env["SUBWAY_GTFS_SOURCE"]
	}

	var err error
	if cfg.FeedTTL, err = positiveDuration(env, "SUBWAY_FEED_TTL", DefaultFeedTTL); err != nil {
		return nil, err
	}
	if cfg.FeedTimeout, err = positiveDuration(env, "SUBWAY_FEED_TIMEOUT", DefaultFeedTimeout); err != nil {
		return nil, err
	}

	if path := env["SUBWAY_FEEDS_CONFIG"]; path != "" {
		feeds, err := LoadFeedsFile(path)
		if err != nil {
			return nil, err
		}

		cfg.FeedPartitions = feeds.Partitions
		if feeds.APIKey != "" && cfg.FeedAPIKey == "" {
			cfg.FeedAPIKey = feeds.APIKey
		}
	}

	return cfg, nil
}

func positiveDuration(env map[string]string, key string, fallback time.Duration) (time.Duration, error) {
	duration, err := util.EnvDuration(env, key, fallback)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%s: %w: %s", key, ErrNonPositiveDuration, duration)
	}

	return duration, nil
}

// LoadFeedsFile reads and validates a YAML feed partition file
func LoadFeedsFile(path string) (*FeedsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds config: %w", err)
	}

	return ParseFeeds(data)
}

func ParseFeeds(data []byte) (*FeedsFile, error) {
	var feeds FeedsFile
	if err := yaml.Unmarshal(data, &feeds); err != nil {
		return nil, fmt.Errorf("parse feeds config: %w", err)
	}

	v := validator.New()
	if err := v.Struct(feeds); err != nil {
		return nil, fmt.Errorf("invalid feeds config: %w", err)
	}

	seen := map[string]bool{}
	for _, partition := range feeds.Partitions {
		if seen[partition.ID] {
			return nil, fmt.Errorf("invalid feeds config: duplicate partition %q", partition.ID)
		}
		seen[partition.ID] = true
	}

	return &feeds, nil
}

// PartitionIDs lists the configured partition ids in configuration order
func (c *Config) PartitionIDs() []string {
	ids := make([]string, 0, len(c.FeedPartitions))
	for _, partition := range c.FeedPartitions {
		ids = append(ids, partition.ID)
	}

	return util.RemoveDuplicateStrings(ids, nil)
}
