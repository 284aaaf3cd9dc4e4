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
	associationSet             uint8 = 0x01
	associationGet             uint8 = 0x02
	associationReport          uint8 = 0x03
	associationRemove          uint8 = 0x04
	associationGroupingsGet    uint8 = 0x05
	associationGroupingsReport uint8 = 0x06
)

// Association is COMMAND_CLASS_ASSOCIATION (0x85). Group membership feeds
// the node's Group table (spec §3); this command class only owns the wire
// protocol and the raw member lists, not the Group objects themselves.
type Association struct {
	Base

	mu     sync.RWMutex
	groups map[uint8][]uint8
}

func init() {
	Default.Register(device.CommandClassAssociation, func() CommandClass {
		return &Association{Base: NewBase(), groups: make(map[uint8][]uint8)}
	})
}

func (c *Association) ID() uint8 { return device.CommandClassAssociation }

func (c *Association) RequestState(stage Stage, instance uint8) error {
	if stage != StageStatic {
		return nil
	}
	return c.send(c.ID(), []uint8{associationGroupingsGet}, PriorityQuery)
}

// Groups returns a snapshot of group number to member node id list.
func (c *Association) Groups() map[uint8][]uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[uint8][]uint8, len(c.groups))
	for g, members := range c.groups {
		cp := make([]uint8, len(members))
		copy(cp, members)
		out[g] = cp
	}
	return out
}

func (c *Association) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	switch commandID {
	case associationGroupingsReport:
		if len(payload) < 1 {
			return fmt.Errorf("association groupings report too short")
		}
		numGroups := payload[0]
		for g := uint8(1); g <= numGroups; g++ {
			if err := c.send(c.ID(), []uint8{associationGet, g}, PriorityQuery); err != nil {
				return err
			}
		}
		return nil

	case associationReport:
		if len(payload) < 3 {
			return fmt.Errorf("association report too short")
		}
		group := payload[0]
		// payload[1] is max associations, payload[2] is reports-to-follow;
		// member node ids start at payload[3].
		members := append([]uint8(nil), payload[3:]...)
		c.mu.Lock()
		c.groups[group] = members
		c.mu.Unlock()
		return nil

	default:
		return nil
	}
}

// Add issues ASSOCIATION_SET adding nodeID to group.
func (c *Association) Add(group uint8, nodeID uint8) error {
	return c.send(c.ID(), []uint8{associationSet, group, nodeID}, PrioritySend)
}

// Remove issues ASSOCIATION_REMOVE dropping nodeID from group.
func (c *Association) Remove(group uint8, nodeID uint8) error {
	return c.send(c.ID(), []uint8{associationRemove, group, nodeID}, PrioritySend)
}

func (c *Association) SetValue(v *value.Value, newPayload interface{}) error {
	return fmt.Errorf("association is modified via Add/Remove, not SetValue")
}
