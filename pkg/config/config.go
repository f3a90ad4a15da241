// Package config loads the yaml configuration for processes embedding the
// index layer: storage path, logging level, and the seed list of initial
// chat-list holes for bootstrapping a fresh database.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"messagebox/pkg/models"
)

// SeedHole is one configured initial hole region.
type SeedHole struct {
	PeerId    int64 `yaml:"peer_id"`
	Namespace int32 `yaml:"namespace"`
	Id        int32 `yaml:"id"`
	Timestamp int32 `yaml:"timestamp"`
}

// Config is the top-level configuration.
type Config struct {
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	ChatList struct {
		SeedHoles []SeedHole `yaml:"seed_holes"`
	} `yaml:"chat_list"`
}

// Load reads and parses the yaml config at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return &cfg, nil
}

// SeedHoles converts the configured hole regions to model holes.
func (c *Config) SeedHoles() []models.Hole {
	out := make([]models.Hole, 0, len(c.ChatList.SeedHoles))
	for _, h := range c.ChatList.SeedHoles {
		out = append(out, models.Hole{Index: models.MessageIndex{
			Id: models.MessageId{
				PeerId:    h.PeerId,
				Namespace: h.Namespace,
				Id:        h.Id,
			},
			Timestamp: h.Timestamp,
		}})
	}
	return out
}
