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
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/zwavehost/zwdriver/device"
	"github.com/zwavehost/zwdriver/value"
	"github.com/zwavehost/zwdriver/valueid"
)

const (
	meterGet    uint8 = 0x01
	meterReport uint8 = 0x02
)

// meterScaleBit marks which of the 4 possible scales (index 0..3) within a
// meter type this node has reported so far.
type meterScaleBit struct {
	mu     sync.Mutex
	scales map[uint8]bool
}

// Meter is COMMAND_CLASS_METER (0x32). Per spec §9 Open Questions /
// SUPPLEMENTED (original_source Meter.cpp), RequestState issues one Get per
// individually-known scale rather than a single combined "get all" request
// — each scale is tracked as it is first observed in a report and then
// explicitly re-requested on subsequent dynamic-stage passes.
type Meter struct {
	Base
	seen meterScaleBit
}

func init() {
	Default.Register(device.CommandClassMeter, func() CommandClass {
		return &Meter{Base: NewBase(), seen: meterScaleBit{scales: make(map[uint8]bool)}}
	})
}

func (c *Meter) ID() uint8 { return device.CommandClassMeter }

func (c *Meter) valueID(instance uint8, scale uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreUser,
		CommandClassID: c.ID(), Instance: instance, Index: scale, ValueType: valueid.TypeDecimal}
}

func (c *Meter) RequestState(stage Stage, instance uint8) error {
	if stage != StageDynamic {
		return nil
	}

	c.seen.mu.Lock()
	scales := make([]uint8, 0, len(c.seen.scales))
	for s := range c.seen.scales {
		scales = append(scales, s)
	}
	c.seen.mu.Unlock()

	if len(scales) == 0 {
		// Nothing observed yet: probe scale 0 to discover the meter type.
		return c.send(c.ID(), []uint8{meterGet, 0x00}, PriorityQuery)
	}

	for _, scale := range scales {
		if err := c.send(c.ID(), []uint8{meterGet, scale << 3}, PriorityQuery); err != nil {
			return err
		}
	}
	return nil
}

func (c *Meter) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != meterReport {
		return nil
	}
	if len(payload) < 2 {
		return fmt.Errorf("meter report too short")
	}

	precision := (payload[1] >> 5) & 0x07
	scale := (payload[1] >> 3) & 0x03
	size := payload[1] & 0x07
	if len(payload) < int(2+size) {
		return fmt.Errorf("meter report size mismatch")
	}

	var raw int32
	switch size {
	case 1:
		raw = int32(int8(payload[2]))
	case 2:
		raw = int32(int16(binary.BigEndian.Uint16(payload[2:4])))
	case 4:
		raw = int32(binary.BigEndian.Uint32(payload[2:6]))
	default:
		return fmt.Errorf("bad meter size: %d", size)
	}

	div := float64(1)
	for i := uint8(0); i < precision; i++ {
		div *= 10
	}

	c.seen.mu.Lock()
	c.seen.scales[scale] = true
	c.seen.mu.Unlock()

	v := c.refreshValue(c.valueID(instance, scale), "Meter", float64(raw)/div)
	v.ReadOnly = true
	return nil
}

func (c *Meter) SetValue(v *value.Value, newPayload interface{}) error {
	return fmt.Errorf("meter is read only")
}
