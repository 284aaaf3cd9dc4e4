// Package driver implements the serial transaction engine and the
// consumer-facing API surface of a Z-Wave PC controller host (spec §4.1
// through §4.10, §6.2): framing, retry, priority send queues, the node
// interrogation pipeline, wake-up coordination, controller-command FSMs
// and notification fan-out.
package driver

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
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/zwavehost/zwdriver/cc"
	"github.com/zwavehost/zwdriver/config"
	"github.com/zwavehost/zwdriver/frame"
	"github.com/zwavehost/zwdriver/node"
	"github.com/zwavehost/zwdriver/persist"
	"github.com/zwavehost/zwdriver/proto"
	"github.com/zwavehost/zwdriver/serialport"
	"github.com/zwavehost/zwdriver/valueid"
	"github.com/zwavehost/zwdriver/zwlog"
)

// wakeUpNoMoreInformation mirrors cc's unexported wakeUpNoMoreInfo
// subcommand id (spec §6.1): the driver needs to recognize this specific
// send completing so it can mark the node asleep again.
const wakeUpNoMoreInformation uint8 = 0x08

// Driver owns one serial connection to a Z-Wave PC controller: the
// transaction engine, the node table, and the notification fan-out (spec
// §2 data flow, §4).
type Driver struct {
	cfg      config.Driver
	port     serialport.Port
	registry *cc.Registry
	log      zerolog.Logger

	homeID           uint32
	controllerNodeID uint8

	nodesMu sync.RWMutex
	nodes   map[uint8]*node.Node

	sendQ *queue

	pendingSleepMu sync.Mutex
	pendingSleep   map[uint8]bool

	watchersMu       sync.Mutex
	watchers         map[int]Watcher
	nextWatcherToken int

	notifyMu    sync.Mutex
	notifyQueue []Notification

	callbackSeq uint32 // atomic, wraps 1..255 (0 reserved for "no callback")

	incoming chan *frame.Frame

	// writeMu serializes whole transact()/runCallbackFSM-style calls so the
	// bootstrap/interrogation goroutine and mainLoop's send pump can both
	// safely own the wire without a second mutex per frame: only one
	// goroutine is ever inside the write-ACK-response critical section, so
	// the single d.incoming consumer in awaitACK/awaitResponse/awaitCallback
	// stays correct even though two goroutines may call transact (spec §5:
	// I/O pump and send pump are separate activities sharing one serial
	// lock, grounded on the teacher's controller.go doRequests/doResponses
	// split).
	writeMu sync.Mutex

	stopCh           chan struct{}
	stoppedIO        chan struct{}
	stoppedBootstrap chan struct{}
	stoppedMain      chan struct{}
	closeOnce        sync.Once

	controllerCmdCh chan *controllerCommandRequest
	cmdMu           sync.Mutex
	activeCmd       *controllerCommandRequest

	syncResultMu sync.Mutex
	syncResults  map[*controllerCommandRequest]chan syncCommandResult

	pollMu   sync.Mutex
	pollList []*pollEntry
	pollNext int

	pendingPollMu sync.Mutex
	pendingPoll   map[uint8][]valueid.ID

	stoppedPoll chan struct{}

	updateWaitersMu sync.Mutex
	updateWaiters   map[uint8]chan *proto.ApplicationUpdate

	// persisted is the prior restart's Document for this HomeId, loaded
	// once bootstrap learns the HomeId (spec §6.2 "implicit read on driver
	// start"). nil if no document exists yet. Read-only after bootstrap,
	// so reconcileNode reads it without a lock.
	persisted *persist.Document

	reconciledMu sync.Mutex
	reconciled   map[uint8]bool
}

// New constructs a Driver bound to port, ready for Open. registry supplies
// the command-class factories used to populate every discovered node
// (normally cc.Default).
func New(cfg config.Driver, port serialport.Port, registry *cc.Registry) *Driver {
	return &Driver{
		cfg:              cfg.Defaulted(),
		port:             port,
		registry:         registry,
		log:              zwlog.Component("driver"),
		nodes:            make(map[uint8]*node.Node),
		sendQ:            newQueue(),
		pendingSleep:     make(map[uint8]bool),
		watchers:         make(map[int]Watcher),
		incoming:         make(chan *frame.Frame, 64),
		stopCh:           make(chan struct{}),
		stoppedIO:        make(chan struct{}),
		stoppedBootstrap: make(chan struct{}),
		stoppedMain:      make(chan struct{}),
		stoppedPoll:      make(chan struct{}),
		controllerCmdCh:  make(chan *controllerCommandRequest),
		syncResults:      make(map[*controllerCommandRequest]chan syncCommandResult),
		updateWaiters:    make(map[uint8]chan *proto.ApplicationUpdate),
		pendingPoll:      make(map[uint8][]valueid.ID),
		reconciled:       make(map[uint8]bool),
	}
}

// Open starts the I/O and pump goroutines (spec §6.2 AddDriver). It
// returns once the reader is running; bootstrap (GET_VERSION, MEMORY_GET_ID,
// SERIAL_API_GET_INIT_DATA) and node interrogation continue asynchronously
// and are reported via NotificationDriverReady/NotificationDriverFailed and
// per-node notifications, matching the async nature of real hardware round
// trips (spec §4.4).
func (d *Driver) Open() {
	go d.ioReader()
	go d.mainLoop()
	go d.bootstrapAndInterrogate()
	go d.pollPump()
}

// Close stops all four goroutines and closes the underlying port (spec
// §6.2 RemoveDriver). It is safe to call more than once.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		close(d.stopCh)
	})
	<-d.stoppedBootstrap
	<-d.stoppedMain
	<-d.stoppedPoll
	<-d.stoppedIO
	return d.port.Close()
}

// HomeID returns the controller's HomeId, valid once bootstrap completes.
func (d *Driver) HomeID() uint32 { return d.homeID }

// ControllerNodeID returns the controller's own NodeId.
func (d *Driver) ControllerNodeID() uint8 { return d.controllerNodeID }

// Node returns the node with the given id, or false if unknown.
func (d *Driver) Node(nodeID uint8) (*node.Node, bool) {
	d.nodesMu.RLock()
	defer d.nodesMu.RUnlock()
	n, ok := d.nodes[nodeID]
	return n, ok
}

// NodeIDs returns every known node id.
func (d *Driver) NodeIDs() []uint8 {
	d.nodesMu.RLock()
	defer d.nodesMu.RUnlock()
	out := make([]uint8, 0, len(d.nodes))
	for id := range d.nodes {
		out = append(out, id)
	}
	return out
}

// SetValue applies a consumer-initiated write to one node's value (spec
// §6.2).
func (d *Driver) SetValue(id valueid.ID, payload interface{}) error {
	n, ok := d.Node(id.NodeID)
	if !ok {
		return fmt.Errorf("driver: unknown node %d", id.NodeID)
	}
	return n.SetValue(id, payload)
}

// RefreshNodeInfo re-runs the interrogation pipeline for nodeID from the
// ProtocolInfo stage (spec §4.7), discarding none of its persisted values
// but re-querying every command class's static/dynamic state.
func (d *Driver) RefreshNodeInfo(nodeID uint8) error {
	n, ok := d.Node(nodeID)
	if !ok {
		return fmt.Errorf("driver: unknown node %d", nodeID)
	}
	n.SetStage(node.StageNone)
	go func() {
		if err := d.interrogate(nodeID); err != nil {
			d.log.Warn().Err(err).Uint8("node", nodeID).Msg("refresh node info failed")
		}
		d.flushNotifications()
	}()
	return nil
}

// persistPath returns the Document path for the driver's current HomeId
// (spec §4.8, §6.3), shared by WriteConfig and the bootstrap-time load.
func (d *Driver) persistPath() string {
	return fmt.Sprintf("%s/0x%08x.xml", d.cfg.PersistDir, d.homeID)
}

// WriteConfig persists every known node to a Document and saves it under
// cfg.PersistDir, keyed by HomeId (spec §4.8, §6.3).
func (d *Driver) WriteConfig() error {
	doc := &persist.Document{
		HomeID:           fmt.Sprintf("0x%08x", d.homeID),
		ControllerNodeID: d.controllerNodeID,
		PollInterval:     uint32(d.cfg.PollInterval / time.Second),
	}

	for _, nodeID := range d.NodeIDs() {
		n, ok := d.Node(nodeID)
		if !ok {
			continue
		}
		basic, generic, specific := n.DeviceClass()
		elem := persist.NodeElement{
			ID: nodeID, Listening: n.IsListening(),
			Basic: basic, Generic: generic, Specific: specific,
		}
		for _, ccID := range n.CommandClassIDs() {
			instance, ok := n.CommandClass(ccID)
			if !ok {
				continue
			}
			ccElem := persist.CommandClassElement{
				ID: ccID, Version: instance.Version(), Instances: instance.InstanceCount(),
			}
			for _, v := range n.Values().All() {
				if v.ID.CommandClassID != ccID {
					continue
				}
				payload, isSet := v.Raw()
				if !isSet {
					continue
				}
				valElem := persist.ValueElement{
					Genre: uint8(v.ID.Genre), Index: v.ID.Index, Instance: v.ID.Instance,
					Type: uint8(v.ID.ValueType), Label: v.Label, Units: v.Units, ReadOnly: v.ReadOnly,
					Raw: fmt.Sprintf("%v", payload),
				}
				if v.ID.ValueType == valueid.TypeList {
					for _, item := range v.Items() {
						valElem.Items = append(valElem.Items, persist.ListItemElement{Label: item.Label, Value: item.Value})
					}
				}
				ccElem.Values = append(ccElem.Values, valElem)
			}
			elem.CommandClasses = append(elem.CommandClasses, ccElem)
		}
		for _, g := range n.Groups() {
			members := ""
			for i, m := range g.Members {
				if i > 0 {
					members += ","
				}
				members += fmt.Sprintf("%d", m)
			}
			elem.Groups = append(elem.Groups, persist.GroupElement{Number: g.Number, Members: members})
		}
		doc.Nodes = append(doc.Nodes, elem)
	}

	return persist.Save(d.persistPath(), doc)
}

// Send implements cc.Sender: it queues a SendData envelope addressed to
// nodeID at the requested priority tier (spec §4.3). payload is the
// command class's own subcommand + arguments; the SendData wrapper and
// its callback id are added when the message is actually transmitted.
func (d *Driver) Send(nodeID uint8, commandClassID uint8, payload []uint8, priority cc.Priority) error {
	if !proto.IsValidNodeID(nodeID) {
		return fmt.Errorf("driver: invalid node id 0x%02x", nodeID)
	}
	d.sendQ.push(&msg{nodeID: nodeID, commandClassID: commandClassID,
		payload: append([]uint8(nil), payload...), priority: priority}, d.isNodeAwake)
	return nil
}

func (d *Driver) nextCallbackID() uint8 {
	n := atomic.AddUint32(&d.callbackSeq, 1)
	return uint8(1 + (n % 255))
}

func (d *Driver) isNodeAwake(nodeID uint8) bool {
	n, ok := d.Node(nodeID)
	if !ok {
		return true // unknown node: do not block the queue behind it
	}
	return n.IsAwake()
}

// nodeLogger returns the zwlog.ForNode logger for a node, used before the
// node object itself exists (e.g. in bootstrap).
func (d *Driver) nodeLogger(nodeID uint8) zerolog.Logger {
	return zwlog.ForNode("node", d.homeID, nodeID)
}
