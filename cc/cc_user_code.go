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
	userCodeSet        uint8 = 0x01
	userCodeGet        uint8 = 0x02
	userCodeReport     uint8 = 0x03
	usersNumberGet     uint8 = 0x04
	usersNumberReport  uint8 = 0x05

	// UserIDStatusAvailable marks a slot with no code programmed.
	UserIDStatusAvailable uint8 = 0x00
	UserIDStatusOccupied  uint8 = 0x01
)

// UserCode is COMMAND_CLASS_USER_CODE (0x63): a small table of PIN-code
// slots used by door locks. RequestState discovers the slot count, then
// issues one Get per slot, mirroring Meter/Indicator's per-capability
// query pattern rather than a single combined request (the protocol has
// no "get all codes" command).
type UserCode struct {
	Base

	mu       sync.Mutex
	numUsers uint8
}

func init() {
	Default.Register(device.CommandClassUserCode,
		func() CommandClass { return &UserCode{Base: NewBase()} })
}

func (c *UserCode) ID() uint8 { return device.CommandClassUserCode }

func (c *UserCode) valueID(slot uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreUser,
		CommandClassID: c.ID(), Instance: 1, Index: slot, ValueType: valueid.TypeString}
}

func (c *UserCode) RequestState(stage Stage, instance uint8) error {
	if stage != StageStatic {
		return nil
	}
	return c.send(c.ID(), []uint8{usersNumberGet}, PriorityQuery)
}

func (c *UserCode) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	switch commandID {
	case usersNumberReport:
		if len(payload) < 2 {
			return fmt.Errorf("users number report too short")
		}
		numUsers := payload[1]
		c.mu.Lock()
		c.numUsers = numUsers
		c.mu.Unlock()
		for slot := uint8(1); slot <= numUsers; slot++ {
			if err := c.send(c.ID(), []uint8{userCodeGet, slot}, PriorityQuery); err != nil {
				return err
			}
		}
		return nil

	case userCodeReport:
		if len(payload) < 3 {
			return fmt.Errorf("user code report too short")
		}
		slot := payload[1]
		status := payload[2]
		code := ""
		if status == UserIDStatusOccupied && len(payload) > 3 {
			code = string(payload[3:])
		}
		v := c.refreshValue(c.valueID(slot), fmt.Sprintf("User Code #%d", slot), code)
		if status == UserIDStatusAvailable {
			v.SetLocal("")
		}
		return nil

	default:
		return nil
	}
}

func (c *UserCode) SetValue(v *value.Value, newPayload interface{}) error {
	code, ok := newPayload.(string)
	if !ok {
		return fmt.Errorf("user code SetValue expects string")
	}
	if len(code) < 4 || len(code) > 10 {
		return fmt.Errorf("user code must be 4-10 digits")
	}
	slot := v.ID.Index

	v.SetLocal(code)
	c.Ctx.Notify.ValueChanged(v)

	payload := append([]uint8{userCodeSet, slot, UserIDStatusOccupied}, []uint8(code)...)
	return c.send(c.ID(), payload, PrioritySend)
}
