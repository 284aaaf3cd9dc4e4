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
	indicatorSet    uint8 = 0x01
	indicatorGet    uint8 = 0x02
	indicatorReport uint8 = 0x03

	legacyIndicatorID uint8 = 0x00
)

// Indicator is COMMAND_CLASS_INDICATOR (0x87). Like Meter, RequestState
// issues one Get per individually-known indicator id rather than a single
// combined request, discovering ids as reports arrive; before anything has
// been observed it probes the legacy single-indicator id 0x00.
type Indicator struct {
	Base

	mu  sync.Mutex
	ids map[uint8]bool
}

func init() {
	Default.Register(device.CommandClassIndicator, func() CommandClass {
		return &Indicator{Base: NewBase(), ids: make(map[uint8]bool)}
	})
}

func (c *Indicator) ID() uint8 { return device.CommandClassIndicator }

func (c *Indicator) valueID(instance uint8, indicatorID uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreUser,
		CommandClassID: c.ID(), Instance: instance, Index: indicatorID, ValueType: valueid.TypeByte}
}

func (c *Indicator) RequestState(stage Stage, instance uint8) error {
	if stage != StageDynamic {
		return nil
	}
	c.mu.Lock()
	ids := make([]uint8, 0, len(c.ids))
	for id := range c.ids {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	if len(ids) == 0 {
		return c.send(c.ID(), []uint8{indicatorGet, legacyIndicatorID}, PriorityQuery)
	}
	for _, id := range ids {
		if err := c.send(c.ID(), []uint8{indicatorGet, id}, PriorityQuery); err != nil {
			return err
		}
	}
	return nil
}

func (c *Indicator) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != indicatorReport {
		return nil
	}
	if len(payload) < 2 {
		return fmt.Errorf("indicator report too short")
	}
	indicatorID := legacyIndicatorID
	level := payload[1]
	if len(payload) >= 3 {
		indicatorID = payload[1]
		level = payload[2]
	}

	c.mu.Lock()
	c.ids[indicatorID] = true
	c.mu.Unlock()

	c.refreshValue(c.valueID(instance, indicatorID), "Indicator", level)
	return nil
}

func (c *Indicator) SetValue(v *value.Value, newPayload interface{}) error {
	level, ok := newPayload.(uint8)
	if !ok {
		return fmt.Errorf("indicator SetValue expects uint8")
	}
	v.SetLocal(level)
	c.Ctx.Notify.ValueChanged(v)
	return c.send(c.ID(), []uint8{indicatorSet, level}, PrioritySend)
}
