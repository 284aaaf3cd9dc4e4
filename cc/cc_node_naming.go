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
	nodeNamingSet       uint8 = 0x01
	nodeNamingGet       uint8 = 0x02
	nodeNamingReport    uint8 = 0x03
	nodeNamingLocSet    uint8 = 0x04
	nodeNamingLocGet    uint8 = 0x05
	nodeNamingLocReport uint8 = 0x06
)

// NodeNaming is COMMAND_CLASS_NODE_NAMING (0x77): a free-text name and
// location string, ASCII only in this port (the encoding byte in the wire
// format is ignored on read and always sent as ASCII on write).
type NodeNaming struct {
	Base

	mu       sync.Mutex
	name     string
	location string
}

func init() {
	Default.Register(device.CommandClassNodeNaming,
		func() CommandClass { return &NodeNaming{Base: NewBase()} })
}

func (c *NodeNaming) ID() uint8 { return device.CommandClassNodeNaming }

func (c *NodeNaming) RequestState(stage Stage, instance uint8) error {
	if stage != StageStatic {
		return nil
	}
	if err := c.send(c.ID(), []uint8{nodeNamingGet}, PriorityQuery); err != nil {
		return err
	}
	return c.send(c.ID(), []uint8{nodeNamingLocGet}, PriorityQuery)
}

func (c *NodeNaming) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *NodeNaming) Location() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

func (c *NodeNaming) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	switch commandID {
	case nodeNamingReport:
		if len(payload) < 1 {
			return fmt.Errorf("node naming report too short")
		}
		c.mu.Lock()
		c.name = string(payload[1:])
		c.mu.Unlock()
		return nil

	case nodeNamingLocReport:
		if len(payload) < 1 {
			return fmt.Errorf("node naming location report too short")
		}
		c.mu.Lock()
		c.location = string(payload[1:])
		c.mu.Unlock()
		return nil

	default:
		return nil
	}
}

// SetName issues NODE_NAMING_SET with an ASCII encoding byte.
func (c *NodeNaming) SetName(name string) error {
	payload := append([]uint8{nodeNamingSet, 0x00}, []uint8(name)...)
	return c.send(c.ID(), payload, PrioritySend)
}

// SetLocation issues NODE_NAMING_LOCATION_SET with an ASCII encoding byte.
func (c *NodeNaming) SetLocation(location string) error {
	payload := append([]uint8{nodeNamingLocSet, 0x00}, []uint8(location)...)
	return c.send(c.ID(), payload, PrioritySend)
}

func (c *NodeNaming) SetValue(v *value.Value, newPayload interface{}) error {
	return fmt.Errorf("node naming is modified via SetName/SetLocation, not SetValue")
}
