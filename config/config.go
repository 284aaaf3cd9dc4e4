// Package config holds Driver tunables, independent of the excluded
// XML device-database / option-parsing layer (spec Out of scope).
package config

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
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Driver holds the tunables of the transaction engine and poll pump.
// A zero-value Driver is invalid; call Defaulted() or pass it to
// driver.New, which fills in zero fields via Defaulted().
type Driver struct {
	// Baud is the serial line rate. Default 115200 (spec §6.1).
	Baud int `yaml:"baud"`
	// ACKTimeout is how long the framer waits for an ACK before retrying
	// the current frame (spec §4.1). Default 5s.
	ACKTimeout time.Duration `yaml:"ack_timeout"`
	// TransactionTimeout is how long the matcher waits for a response or
	// callback before retrying (spec §4.2). Default 5s.
	TransactionTimeout time.Duration `yaml:"transaction_timeout"`
	// MaxSendAttempts bounds retransmission of a single frame (spec §4.1,
	// §7 TransactionTimeout, testable property 4). Default 3.
	MaxSendAttempts int `yaml:"max_send_attempts"`
	// PollInterval is the period over which the poll pump sweeps the
	// entire poll list (spec §4.10). Default 1 minute.
	PollInterval time.Duration `yaml:"poll_interval"`
	// PersistDir is the directory holding per-HomeId XML documents
	// (spec §4.8, §6.3). Default "."
	PersistDir string `yaml:"persist_dir"`
}

// Defaulted returns a copy of d with zero fields replaced by spec defaults.
func (d Driver) Defaulted() Driver {
	if d.Baud == 0 {
		d.Baud = 115200
	}
	if d.ACKTimeout == 0 {
		d.ACKTimeout = 5 * time.Second
	}
	if d.TransactionTimeout == 0 {
		d.TransactionTimeout = 5 * time.Second
	}
	if d.MaxSendAttempts == 0 {
		d.MaxSendAttempts = 3
	}
	if d.PollInterval == 0 {
		d.PollInterval = time.Minute
	}
	if d.PersistDir == "" {
		d.PersistDir = "."
	}
	return d
}

// Load reads a YAML Driver config from path, applying defaults for
// anything the file omits.
func Load(path string) (Driver, error) {
	var d Driver

	bytes, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}

	if err := yaml.Unmarshal(bytes, &d); err != nil {
		return d, err
	}

	return d.Defaulted(), nil
}

// Save writes d as YAML to path.
func Save(path string, d Driver) error {
	bytes, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bytes, 0644)
}
