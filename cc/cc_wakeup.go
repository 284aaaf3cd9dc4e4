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
	"github.com/zwavehost/zwdriver/valueid"
)

const (
	wakeUpIntervalSet    uint8 = 0x04
	wakeUpIntervalGet    uint8 = 0x05
	wakeUpIntervalReport uint8 = 0x06
	wakeUpNotification   uint8 = 0x07
	wakeUpNoMoreInfo     uint8 = 0x08

	// DefaultIntervalSeconds is rebound onto the node at the session query
	// stage so the controller receives a WAKE_UP_NOTIFICATION at a known
	// cadence (spec §4.5). One hour, matching common OpenZWave defaults.
	DefaultIntervalSeconds uint32 = 3600
)

// WakeUp is COMMAND_CLASS_WAKE_UP (0x84). At the session query stage it
// rebinds the node's wake-up target to the controller's own node id with
// Interval, resolving the spec §9 Open Question on when interval binding
// happens: once per session stage, not on every wake notification, so a
// battery node that changes its own interval out of band still gets
// corrected on its next scheduled query pass.
type WakeUp struct {
	Base

	mu           sync.Mutex
	Interval     uint32
	ControllerID uint8
}

func init() {
	Default.Register(device.CommandClassWakeUp, func() CommandClass {
		return &WakeUp{Base: NewBase(), Interval: DefaultIntervalSeconds}
	})
}

func (c *WakeUp) ID() uint8 { return device.CommandClassWakeUp }

func (c *WakeUp) valueID(index uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreSystem,
		CommandClassID: c.ID(), Instance: 1, Index: index, ValueType: valueid.TypeInt}
}

func (c *WakeUp) RequestState(stage Stage, instance uint8) error {
	switch stage {
	case StageStatic:
		return c.send(c.ID(), []uint8{wakeUpIntervalGet}, PriorityQuery)
	case StageSession:
		c.mu.Lock()
		interval := c.Interval
		controller := c.ControllerID
		c.mu.Unlock()
		payload := []uint8{
			wakeUpIntervalSet,
			uint8(interval >> 16), uint8(interval >> 8), uint8(interval),
			controller,
		}
		return c.send(c.ID(), payload, PriorityCommand)
	default:
		return nil
	}
}

func (c *WakeUp) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	switch commandID {
	case wakeUpIntervalReport:
		if len(payload) < 5 {
			return fmt.Errorf("wake up interval report too short")
		}
		interval := uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
		c.mu.Lock()
		c.Interval = interval
		c.mu.Unlock()
		c.refreshValue(c.valueID(0), "Wake-up Interval", int32(interval))
		return nil

	case wakeUpNotification:
		if c.Ctx.Wake != nil {
			c.Ctx.Wake.NodeAwake(c.Ctx.NodeID)
		}
		return nil

	default:
		return nil
	}
}

func (c *WakeUp) SetValue(v *value.Value, newPayload interface{}) error {
	seconds, ok := newPayload.(int32)
	if !ok || seconds < 0 {
		return fmt.Errorf("wake up SetValue expects non-negative int32 seconds")
	}
	c.mu.Lock()
	c.Interval = uint32(seconds)
	interval := c.Interval
	controller := c.ControllerID
	c.mu.Unlock()

	v.SetLocal(seconds)
	c.Ctx.Notify.ValueChanged(v)

	payload := []uint8{
		wakeUpIntervalSet,
		uint8(interval >> 16), uint8(interval >> 8), uint8(interval),
		controller,
	}
	return c.send(c.ID(), payload, PrioritySend)
}

// NoMoreInformation sends WAKE_UP_NO_MORE_INFORMATION, telling the node it
// may return to sleep. Called by the driver once a node's wake-up queue has
// drained (spec §4.5), not part of the RequestState/HandleMsg contract.
func (c *WakeUp) NoMoreInformation() error {
	return c.send(c.ID(), []uint8{wakeUpNoMoreInfo}, PriorityWakeUp)
}
