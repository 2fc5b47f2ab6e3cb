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

import "testing"

func TestConfigRoundTrip(t *testing.T) {
	cfg := Config{
		Cvars:         map[string]float32{"sv_gravity": 800, "sv_friction": 4},
		RunawayBudget: 50000,
	}
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeConfig(encoded)
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if decoded.RunawayBudget != cfg.RunawayBudget {
		t.Errorf("RunawayBudget = %d, want %d", decoded.RunawayBudget, cfg.RunawayBudget)
	}
	if decoded.Cvars["sv_gravity"] != 800 {
		t.Errorf("sv_gravity = %v, want 800", decoded.Cvars["sv_gravity"])
	}
	if decoded.MaxCallStackDepth != MaxCallStackDepth {
		t.Errorf("MaxCallStackDepth = %d, want default %d", decoded.MaxCallStackDepth, MaxCallStackDepth)
	}
}

func TestConfigDefaultsFillZeroFields(t *testing.T) {
	cfg, err := DecodeConfig([]byte(`{}`))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.RunawayBudget != DefaultRunawayBudget {
		t.Errorf("RunawayBudget = %d, want default %d", cfg.RunawayBudget, DefaultRunawayBudget)
	}
}

func TestConfigApplyCvars(t *testing.T) {
	cfg := Config{Cvars: map[string]float32{"sv_gravity": 800}}
	cvars := NewMapCvars()
	cfg.ApplyCvars(cvars)
	v, ok := cvars.Value("sv_gravity")
	if !ok || v != 800 {
		t.Errorf("sv_gravity = %v, %v; want 800, true", v, ok)
	}
}
