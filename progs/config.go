// Copyright (C) 2024 The progsvm Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package progs

import (
	"os"

	"sigs.k8s.io/yaml"
)

// Config is the host-supplied tuning knobs for a VM run: default cvar
// values, the runaway instruction budget, and the stack caps. It is
// decoded from YAML via sigs.k8s.io/yaml (JSON struct tags, like the
// rest of this codebase's config surface) rather than a dedicated YAML
// library, so the same struct also round-trips through encoding/json.
type Config struct {
	Cvars                map[string]float32 `json:"cvars,omitempty"`
	RunawayBudget         int                `json:"runawayBudget,omitempty"`
	MaxCallStackDepth     int                `json:"maxCallStackDepth,omitempty"`
	MaxLocalStackDepth    int                `json:"maxLocalStackDepth,omitempty"`
}

// DefaultConfig returns the package's built-in defaults, equivalent to
// what a Context gets when constructed without an explicit Config.
func DefaultConfig() Config {
	return Config{
		RunawayBudget:      DefaultRunawayBudget,
		MaxCallStackDepth:  MaxCallStackDepth,
		MaxLocalStackDepth: MaxLocalStackDepth,
	}
}

// LoadConfigFile reads and decodes a YAML config file from path.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmtErr(KindFormat, "load_config", "reading %s: %v", path, err)
	}
	return DecodeConfig(data)
}

// DecodeConfig parses YAML config bytes, applying DefaultConfig for any
// field the document leaves zero.
func DecodeConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmtErr(KindFormat, "decode_config", "parsing yaml: %v", err)
	}
	if cfg.RunawayBudget <= 0 {
		cfg.RunawayBudget = DefaultRunawayBudget
	}
	if cfg.MaxCallStackDepth <= 0 {
		cfg.MaxCallStackDepth = MaxCallStackDepth
	}
	if cfg.MaxLocalStackDepth <= 0 {
		cfg.MaxLocalStackDepth = MaxLocalStackDepth
	}
	return cfg, nil
}

// Encode serializes the config back to YAML, primarily so tools and
// tests can round-trip a Config through disk.
func (c Config) Encode() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmtErr(KindFormat, "encode_config", "marshaling yaml: %v", err)
	}
	return out, nil
}

// ApplyCvars seeds a MapCvars with the config's default values, the
// form cmd/progsrun uses to build a Host from a Config before a run.
func (c Config) ApplyCvars(cvars *MapCvars) {
	for name, v := range c.Cvars {
		cvars.SetValue(name, v)
	}
}

// Apply configures a Context's runaway budget from the config. Stack
// caps are compile-time constants in this package (MaxCallStackDepth,
// MaxLocalStackDepth); the config fields exist so a host can observe
// and validate the caps it's running under even though only the
// runaway budget is actually mutable per run.
func (c Config) Apply(ctx *Context) {
	ctx.RunawayBudget = c.RunawayBudget
}
