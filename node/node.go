// Package node represents a Z-Wave node attached to a controller, and
// drives the nine-step query-stage interrogation pipeline that populates
// its command classes and values (spec §4.4).
package node

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
	"time"

	"github.com/rs/zerolog"

	"github.com/zwavehost/zwdriver/cc"
	"github.com/zwavehost/zwdriver/device"
	"github.com/zwavehost/zwdriver/value"
	"github.com/zwavehost/zwdriver/valueid"
)

// Stage is the node-level query stage (spec §4.4): a superset of
// cc.Stage that also covers the driver-owned steps (protocol info, node
// info, manufacturer specific, per-class versions, instance counts) that
// happen before any CommandClass.RequestState call.
type Stage uint8

const (
	StageNone Stage = iota
	StageProtocolInfo
	StageNodeInfo
	StageManufacturerSpecific
	StageVersions
	StageInstances
	StageStatic
	StageDynamic
	StageSession
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "None"
	case StageProtocolInfo:
		return "ProtocolInfo"
	case StageNodeInfo:
		return "NodeInfo"
	case StageManufacturerSpecific:
		return "ManufacturerSpecific"
	case StageVersions:
		return "Versions"
	case StageInstances:
		return "Instances"
	case StageStatic:
		return "Static"
	case StageDynamic:
		return "Dynamic"
	case StageSession:
		return "Session"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Group is one Association group's membership (spec §3).
type Group struct {
	Number  uint8
	Members []uint8
}

// Node aggregates everything the driver knows about a single Z-Wave node:
// its protocol capabilities, device class, command class registry, value
// store and query-stage cursor.
type Node struct {
	HomeID uint32
	ID     uint8

	mu sync.RWMutex

	listening         bool
	frequentListening bool
	routing           bool
	maxBaud           uint8
	securityVersion   uint8

	basicClass    uint8
	genericClass  uint8
	specificClass uint8

	commandClasses    map[uint8]cc.CommandClass
	controlledClasses []uint8

	values *value.Store

	stage       Stage
	awake       bool
	lastContact time.Time

	registry *cc.Registry
	sender   cc.Sender
	notify   cc.Notifier
	waker    cc.Waker
	log      zerolog.Logger
}

// New constructs a Node bound to the given driver-provided collaborators.
// Listening nodes start awake (always reachable); sleeping nodes start
// asleep until their first WAKE_UP_NOTIFICATION (spec §4.5).
func New(homeID uint32, nodeID uint8, registry *cc.Registry, sender cc.Sender,
	notify cc.Notifier, waker cc.Waker, log zerolog.Logger) *Node {
	return &Node{
		HomeID:         homeID,
		ID:             nodeID,
		commandClasses: make(map[uint8]cc.CommandClass),
		values:         value.NewStore(),
		registry:       registry,
		sender:         sender,
		notify:         notify,
		waker:          waker,
		log:            log.With().Uint8("node", nodeID).Logger(),
	}
}

// Values returns the node's value store.
func (n *Node) Values() *value.Store { return n.values }

// Stage returns the node's current query-stage cursor.
func (n *Node) Stage() Stage {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stage
}

// SetStage advances (or resets, for RefreshNodeInfo) the query-stage cursor.
func (n *Node) SetStage(s Stage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stage = s
}

// IsListening reports whether the node is always-on (spec §4.5): a
// listening node is queried immediately; a non-listening node's queries
// wait for a wake-up.
func (n *Node) IsListening() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.listening
}

// IsAwake reports whether a sleeping node is currently reachable.
// Listening nodes are always reported awake.
func (n *Node) IsAwake() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.listening || n.awake
}

// MarkAwake flips the awake flag, called by the driver on
// WAKE_UP_NOTIFICATION (spec §4.5 via cc.Waker).
func (n *Node) MarkAwake() {
	n.mu.Lock()
	n.awake = true
	n.lastContact = time.Now()
	n.mu.Unlock()
}

// MarkAsleep flips the awake flag off, called by the driver once the
// wake-up queue has drained and WAKE_UP_NO_MORE_INFORMATION was sent.
func (n *Node) MarkAsleep() {
	n.mu.Lock()
	n.awake = false
	n.mu.Unlock()
}

// ApplyProtocolInfo installs the ZW_GET_NODE_PROTOCOL_INFO result (query
// stage ProtocolInfo, spec §4.4 step 0) and seeds the command classes spec
// §4.4 step 1 says must not wait for NodeInfo: for a non-listening node,
// WakeUp, and for every generic device type device.MandatoryCommandClasses
// names, its catalog entries. WakeUp must be eager because NodeInfo only
// proceeds once IsAwake is true, and the only thing that ever flips that
// flag is a WAKE_UP_NOTIFICATION reaching a bound WakeUp instance
// (cc.WakeUp.HandleMsg -> cc.Waker.NodeAwake) — without this, a sleeping
// node could never receive that notification and would be stuck at
// StageNodeInfo forever. The mandatory-class seed is installed the same
// way so a consumer can see e.g. SWITCH_BINARY on a binary switch without
// waiting on the node's own NodeInfo round trip; ApplyNodeInfo reconciles
// this against the device's self-reported supported list afterward.
func (n *Node) ApplyProtocolInfo(listening, routing bool, maxBaud uint8, securityVersion uint8,
	basic, generic, specific uint8) {
	n.mu.Lock()
	n.listening = listening
	n.routing = routing
	n.maxBaud = maxBaud
	n.securityVersion = securityVersion
	n.basicClass = basic
	n.genericClass = generic
	n.specificClass = specific
	if listening {
		n.awake = true
	}
	n.mu.Unlock()

	seed := make([]uint8, 0, len(device.MandatoryCommandClasses[generic])+1)
	if !listening {
		seed = append(seed, device.CommandClassWakeUp)
	}
	seed = append(seed, device.MandatoryCommandClasses[generic]...)

	for _, id := range seed {
		n.mu.Lock()
		_, already := n.commandClasses[id]
		n.mu.Unlock()
		if already {
			continue
		}
		instance, ok := n.bindNewInstance(id)
		if !ok {
			continue
		}
		if wu, ok := instance.(*cc.WakeUp); ok {
			wu.ControllerID = 1
		}
		n.mu.Lock()
		n.commandClasses[id] = instance
		n.mu.Unlock()
	}
}

// DeviceClass returns the (basic, generic, specific) device class triple.
func (n *Node) DeviceClass() (basic, generic, specific uint8) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.basicClass, n.genericClass, n.specificClass
}

// ApplyNodeInfo installs the supported/controlled command class lists
// parsed from a RequestNodeInfo-triggered ApplicationUpdate (query stage
// NodeInfo, spec §4.4 step 1), instantiating a CommandClass for every
// supported id with a registered factory. An id with no factory is logged
// and dropped per the spec §7 UnsupportedCommandClass case — it is not an
// error, since OpenZWave's real command-class catalog is larger than what
// this port implements.
func (n *Node) ApplyNodeInfo(basic, generic, specific uint8, supported, controlled []uint8) {
	n.mu.Lock()
	n.basicClass = basic
	n.genericClass = generic
	n.specificClass = specific
	n.controlledClasses = append([]uint8(nil), controlled...)
	existing := n.commandClasses
	n.mu.Unlock()

	classes := make(map[uint8]cc.CommandClass, len(supported))
	for _, id := range supported {
		// A non-listening node's WakeUp instance (see ApplyProtocolInfo)
		// was already bound and may already have handled a notification;
		// reuse it instead of discarding its state.
		if instance, ok := existing[id]; ok {
			classes[id] = instance
			continue
		}
		instance, ok := n.bindNewInstance(id)
		if !ok {
			n.log.Debug().Uint8("command_class", id).Msg("unsupported command class, dropping")
			continue
		}
		classes[id] = instance
	}

	if wu, ok := classes[device.CommandClassWakeUp].(*cc.WakeUp); ok {
		wu.ControllerID = 1
	}
	if ver, ok := classes[device.CommandClassVersion].(*cc.Version); ok {
		ver.SetCommandClassVersionCallback(n.applyCommandClassVersion)
	}
	if mi, ok := classes[device.CommandClassMultiInstance].(*cc.MultiInstance); ok {
		mi.SetInstanceCountCallback(n.applyInstanceCount)
	}

	n.mu.Lock()
	n.commandClasses = classes
	n.mu.Unlock()
}

// bindNewInstance constructs id's CommandClass from the registry and binds
// it to this node's collaborators, or returns false if id has no factory.
func (n *Node) bindNewInstance(id uint8) (cc.CommandClass, bool) {
	instance, ok := n.registry.New(id)
	if !ok {
		return nil, false
	}
	instance.Bind(&cc.Context{
		HomeID: n.HomeID,
		NodeID: n.ID,
		Values: n.values,
		Sender: n.sender,
		Notify: n.notify,
		Wake:   n.waker,
		Log:    n.log,
	})
	return instance, true
}

func (n *Node) applyCommandClassVersion(commandClassID uint8, version uint8) {
	n.mu.RLock()
	instance, ok := n.commandClasses[commandClassID]
	n.mu.RUnlock()
	if ok {
		instance.SetVersion(version)
	}
}

func (n *Node) applyInstanceCount(commandClassID uint8, count uint8) {
	n.mu.RLock()
	instance, ok := n.commandClasses[commandClassID]
	n.mu.RUnlock()
	if ok && count > 0 {
		instance.SetInstanceCount(count)
	}
}

// CommandClass returns the bound instance for id, or false if the node
// does not support it.
func (n *Node) CommandClass(id uint8) (cc.CommandClass, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	instance, ok := n.commandClasses[id]
	return instance, ok
}

// CommandClassIDs returns the supported command class ids with a bound
// instance.
func (n *Node) CommandClassIDs() []uint8 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]uint8, 0, len(n.commandClasses))
	for id := range n.commandClasses {
		out = append(out, id)
	}
	return out
}

// RunStage calls RequestState(stage, instance) on every supported command
// class, for every instance the class reports (spec §4.4). It is the
// node-level half of query stages Static/Dynamic/Session; ProtocolInfo,
// NodeInfo, ManufacturerSpecific, Versions and Instances are driven
// directly by the driver since they are not ordinary command-class
// traffic.
func (n *Node) RunStage(stage cc.Stage) error {
	n.mu.RLock()
	classes := make([]cc.CommandClass, 0, len(n.commandClasses))
	for _, instance := range n.commandClasses {
		classes = append(classes, instance)
	}
	n.mu.RUnlock()

	for _, instance := range classes {
		count := instance.InstanceCount()
		for i := uint8(1); i <= count; i++ {
			if err := instance.RequestState(stage, i); err != nil {
				return fmt.Errorf("node %d command class 0x%02x stage %v: %w",
					n.ID, instance.ID(), stage, err)
			}
		}
	}
	return nil
}

// Dispatch routes an incoming command-class subcommand payload to the
// owning CommandClass's HandleMsg, unwrapping one level of
// MULTI_INSTANCE_CMD_ENCAP if present (spec §4.4).
func (n *Node) Dispatch(commandClassID uint8, commandID uint8, payload []uint8) error {
	instance := uint8(1)

	if commandClassID == device.CommandClassMultiInstance && commandID == cc.MultiInstanceEncapCommandID {
		inst, innerClass, inner, err := cc.DecapsulateV1(payload)
		if err != nil {
			return err
		}
		if len(inner) < 1 {
			return fmt.Errorf("encapsulated payload too short")
		}
		instance = inst
		commandClassID = innerClass
		commandID = inner[0]
		payload = inner[1:]
	}

	target, ok := n.CommandClass(commandClassID)
	if !ok {
		n.log.Debug().Uint8("command_class", commandClassID).
			Msg("message for unsupported command class, dropping")
		return nil
	}
	return target.HandleMsg(commandID, payload, instance)
}

// SetValue applies a consumer-initiated write, routing to the value's
// owning command class.
func (n *Node) SetValue(id valueid.ID, payload interface{}) error {
	target, ok := n.CommandClass(id.CommandClassID)
	if !ok {
		return fmt.Errorf("node %d does not support command class 0x%02x", n.ID, id.CommandClassID)
	}
	v := n.values.Get(id)
	if v == nil {
		return fmt.Errorf("unknown value %s", id)
	}
	return target.SetValue(v, payload)
}

// Groups returns the node's Association group membership, empty if the
// node has no Association command class or it has not queried yet.
func (n *Node) Groups() []Group {
	instance, ok := n.CommandClass(device.CommandClassAssociation)
	if !ok {
		return nil
	}
	assoc, ok := instance.(*cc.Association)
	if !ok {
		return nil
	}
	raw := assoc.Groups()
	out := make([]Group, 0, len(raw))
	for number, members := range raw {
		out = append(out, Group{Number: number, Members: members})
	}
	return out
}
