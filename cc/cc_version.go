package cc

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
	"sync"

	"github.com/zwavehost/zwdriver/device"
	"github.com/zwavehost/zwdriver/value"
)

const (
	versionGet            uint8 = 0x11
	versionReport         uint8 = 0x12
	versionCommandClassGet uint8 = 0x13
	versionCommandClassReport uint8 = 0x14
)

// Version is COMMAND_CLASS_VERSION (0x86): the library/application version
// report, plus the per-command-class version query this node's other
// registered classes rely on to switch decoding behavior (spec §4.4 step 3).
type Version struct {
	Base

	mu          sync.Mutex
	Library     uint8
	Protocol    string
	Application string

	// onVersion is invoked once a per-command-class VersionReport arrives,
	// so the node can call SetVersion on the right CommandClass instance
	// without Version needing to import node.
	onVersion func(commandClassID uint8, version uint8)
}

func init() {
	Default.Register(device.CommandClassVersion,
		func() CommandClass { return &Version{Base: NewBase()} })
}

func (c *Version) ID() uint8 { return device.CommandClassVersion }

// SetCommandClassVersionCallback installs the hook node.Node binds after
// construction so this class can feed discovered per-class versions back
// into the node's registry.
func (c *Version) SetCommandClassVersionCallback(fn func(commandClassID uint8, version uint8)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onVersion = fn
}

func (c *Version) RequestState(stage Stage, instance uint8) error {
	if stage != StageStatic {
		return nil
	}
	return c.send(c.ID(), []uint8{versionGet}, PriorityQuery)
}

// QueryCommandClass issues VERSION_COMMAND_CLASS_GET for a single class id,
// called once per registered class at the static query stage.
func (c *Version) QueryCommandClass(commandClassID uint8) error {
	return c.send(c.ID(), []uint8{versionCommandClassGet, commandClassID}, PriorityQuery)
}

func (c *Version) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	switch commandID {
	case versionReport:
		if len(payload) < 6 {
			return fmt.Errorf("version report too short")
		}
		c.mu.Lock()
		c.Library = payload[1]
		c.Protocol = fmt.Sprintf("%d.%02d", payload[2], payload[3])
		c.Application = fmt.Sprintf("%d.%02d", payload[4], payload[5])
		c.mu.Unlock()
		return nil

	case versionCommandClassReport:
		if len(payload) < 3 {
			return fmt.Errorf("version command class report too short")
		}
		commandClassID := payload[1]
		version := payload[2]
		c.mu.Lock()
		cb := c.onVersion
		c.mu.Unlock()
		if cb != nil {
			cb(commandClassID, version)
		}
		return nil

	default:
		return nil
	}
}

func (c *Version) SetValue(v *value.Value, newPayload interface{}) error {
	return fmt.Errorf("version is read only")
}
