package persist

/*
Copyright (C) 2017 Jan Kasiak

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Sidecar is a small YAML file recording driver state that is not part of
// the per-HomeId XML schema: which HomeIds have a document on disk, and
// the poll interval last used, so a restart can enumerate config files
// without a directory scan.
type Sidecar struct {
	HomeIDs             []string `yaml:"home_ids"`
	PollIntervalSeconds uint32   `yaml:"poll_interval_seconds"`
}

// LoadSidecar reads path, returning a zero-value Sidecar if it does not
// exist yet.
func LoadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Sidecar{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: read sidecar %s: %w", path, err)
	}
	s := &Sidecar{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("persist: parse sidecar %s: %w", path, err)
	}
	return s, nil
}

// SaveSidecar writes s to path.
func SaveSidecar(path string, s *Sidecar) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("persist: marshal sidecar: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("persist: write sidecar %s: %w", path, err)
	}
	return nil
}
