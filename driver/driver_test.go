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
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/zwavehost/zwdriver/cc"
	"github.com/zwavehost/zwdriver/config"
	"github.com/zwavehost/zwdriver/device"
	"github.com/zwavehost/zwdriver/frame"
	"github.com/zwavehost/zwdriver/node"
	"github.com/zwavehost/zwdriver/persist"
	"github.com/zwavehost/zwdriver/proto"
	"github.com/zwavehost/zwdriver/valueid"
)

// newTestNodeFor builds a bare Node bound to d's own collaborator
// interfaces (d satisfies cc.Sender/cc.Notifier/cc.Waker), the way
// bootstrap constructs one, without going through a fake wire exchange.
func newTestNodeFor(d *Driver, nodeID uint8, listening bool) (*node.Node, *Driver) {
	n := node.New(0x12345678, nodeID, cc.Default, d, d, d, zerolog.Nop())
	n.ApplyProtocolInfo(listening, false, 0, 0, 0, 0, 0)
	return n, d
}

func (d *Driver) registerTestNode(n *node.Node) {
	d.nodesMu.Lock()
	d.nodes[n.ID] = n
	d.nodesMu.Unlock()
}

// fakePort is an in-memory serialport.Port stand-in for driver tests: Write
// calls are handed one at a time to a script goroutine, which inspects the
// outgoing frame and pushes back whatever ACK/RESPONSE/REQUEST bytes the
// scenario calls for via push.
type fakePort struct {
	mu     sync.Mutex
	closed bool
	writes chan []byte
	toRead chan []byte
}

func newFakePort() *fakePort {
	return &fakePort{writes: make(chan []byte, 64), toRead: make(chan []byte, 64)}
}

func (p *fakePort) Write(b []byte) (int, error) {
	cp := append([]byte(nil), b...)
	select {
	case p.writes <- cp:
	default:
	}
	return len(b), nil
}

func (p *fakePort) Read(buf []byte) (int, error) {
	select {
	case chunk := <-p.toRead:
		n := copy(buf, chunk)
		return n, nil
	case <-time.After(20 * time.Millisecond):
		return 0, io.EOF
	}
}

func (p *fakePort) Flush() error { return nil }

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) pushACK()           { p.toRead <- []byte{frame.PreambleACK} }
func (p *fakePort) pushFrame(f *frame.Frame) error {
	b, err := f.Bytes()
	if err != nil {
		return err
	}
	p.toRead <- b
	return nil
}

// TestOpenBootstrapsAndInterrogatesListeningNode scripts a controller with
// a single always-on node carrying no command classes (so every
// command-class-driven stage is a no-op) and checks the interrogation
// pipeline reaches completion concurrently with mainLoop already running,
// the scenario the writeMu split exists to make safe (spec §5).
func TestOpenBootstrapsAndInterrogatesListeningNode(t *testing.T) {
	port := newFakePort()
	d := New(config.Driver{ACKTimeout: time.Second, TransactionTimeout: 200 * time.Millisecond,
		MaxSendAttempts: 1, PollInterval: time.Hour}, port, cc.Default)
	d.log = zerolog.Nop()

	const testNodeID = 2

	notifications := make(chan Notification, 32)
	d.AddWatcher(func(n Notification) { notifications <- n })

	go func() {
		for raw := range port.writes {
			if len(raw) < 4 {
				continue
			}
			funcID := raw[3]
			port.pushACK()

			switch funcID {
			case proto.FuncGetVersion:
				body := make([]uint8, 13)
				copy(body, []byte("Z-Wave 3.99\x00"))
				_ = port.pushFrame(&frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeResponse,
					MessageType: funcID, Body: body})

			case proto.FuncMemoryGetID:
				body := []uint8{0xde, 0xad, 0xbe, 0xef, 0x01}
				_ = port.pushFrame(&frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeResponse,
					MessageType: funcID, Body: body})

			case proto.FuncSerialAPIGetInitData:
				body := make([]uint8, 34)
				body[0] = 5
				body[1] = 0
				body[2] = 29
				body[3] = 1 << (testNodeID - 1) // node 2 -> bit 1 of byte 0
				_ = port.pushFrame(&frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeResponse,
					MessageType: funcID, Body: body})

			case proto.FuncGetNodeProtocolInfo:
				body := []uint8{0x80, 0, 0, 0, 0, 0} // listening, no security, device class 0/0/0
				_ = port.pushFrame(&frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeResponse,
					MessageType: funcID, Body: body})

			case proto.FuncRequestNodeInfo:
				_ = port.pushFrame(&frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeResponse,
					MessageType: funcID, Body: []uint8{1}})
				upd := []uint8{proto.ApplicationUpdateStateReceived, testNodeID, 3, 0, 0, 0}
				_ = port.pushFrame(&frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
					MessageType: proto.FuncApplicationUpdate, Body: upd})
			}
		}
	}()

	d.Open()
	defer func() {
		// Close stops every driver goroutine first, so no further Write
		// calls can race the channel close that lets the script goroutine
		// above exit its range loop.
		_ = d.Close()
		close(port.writes)
	}()

	var gotReady, gotComplete bool
	deadline := time.After(3 * time.Second)
	for !gotReady || !gotComplete {
		select {
		case n := <-notifications:
			switch n.Type {
			case NotificationDriverReady:
				gotReady = true
			case NotificationNodeQueriesComplete:
				if n.NodeID == testNodeID {
					gotComplete = true
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for bootstrap+interrogation, ready=%v complete=%v", gotReady, gotComplete)
		}
	}

	n, ok := d.Node(testNodeID)
	if !ok {
		t.Fatalf("expected node %d to be registered", testNodeID)
	}
	if got := n.Stage(); got != node.StageComplete {
		t.Fatalf("expected node stage Complete, got %v", got)
	}
	if !n.IsListening() {
		t.Fatalf("expected node to be recorded as listening")
	}
}

func TestNextCallbackIDWrapsSkippingZero(t *testing.T) {
	d := New(config.Driver{}, nil, nil)
	d.log = zerolog.Nop()
	d.callbackSeq = 254 // next AddUint32 -> 255, 255 % 255 == 0, so id = 1

	id := d.nextCallbackID()
	if id != 1 {
		t.Fatalf("expected callback id to wrap to 1, got %d", id)
	}
	if got := d.nextCallbackID(); got == 0 {
		t.Fatalf("callback id should never be 0, got %d", got)
	}
}

func TestIsNodeAwakeUnknownNodeDoesNotBlockQueue(t *testing.T) {
	d := New(config.Driver{}, nil, nil)
	d.log = zerolog.Nop()
	if !d.isNodeAwake(99) {
		t.Fatalf("an unknown node id should report awake so it never blocks the send queue")
	}
}

// TestWriteConfigPersistsValues covers the round-trip WriteConfig must
// support (spec §4.8): a node's SwitchBinary value, once set, shows up as
// a Value element of its owning CommandClass element in the saved
// Document, not just the bare version/instance-count attributes.
func TestWriteConfigPersistsValues(t *testing.T) {
	dir := t.TempDir()
	d := New(config.Driver{PersistDir: dir}, nil, cc.Default)
	d.log = zerolog.Nop()
	d.homeID = 0x12345678

	n, _ := newTestNodeFor(d, 9, true)
	n.ApplyNodeInfo(0x04, 0x10, 0x01, []uint8{device.CommandClassSwitchBinary}, nil)
	d.registerTestNode(n)

	id := valueid.ID{HomeID: d.homeID, NodeID: 9, CommandClassID: device.CommandClassSwitchBinary,
		Instance: 1, Index: 0, ValueType: valueid.TypeBool}
	v, _ := n.Values().GetOrCreate(id, "Switch")
	v.SetLocal(true)

	if err := d.WriteConfig(); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	doc, err := persist.Load(d.persistPath())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Nodes) != 1 || doc.Nodes[0].ID != 9 {
		t.Fatalf("expected node 9 in document, got %+v", doc.Nodes)
	}
	ccElems := doc.Nodes[0].CommandClasses
	if len(ccElems) != 1 || ccElems[0].ID != device.CommandClassSwitchBinary {
		t.Fatalf("expected one SwitchBinary command class element, got %+v", ccElems)
	}
	if len(ccElems[0].Values) != 1 || ccElems[0].Values[0].Raw != "true" {
		t.Fatalf("expected persisted value true, got %+v", ccElems[0].Values)
	}
}

// TestBootstrapReconcilesPersistedValues checks the other half of the
// round trip: a Document left behind by a prior run is loaded on the next
// bootstrap and its values are seeded into the node's ValueStore once
// NodeInfo installs the matching command class, under the same ValueID a
// live report would use (spec §4.8, §6.2 implicit read on start).
func TestBootstrapReconcilesPersistedValues(t *testing.T) {
	dir := t.TempDir()
	homeID := uint32(0x12345678)
	path := dir + "/0x12345678.xml"

	doc := &persist.Document{
		HomeID: "0x12345678", ControllerNodeID: 1,
		Nodes: []persist.NodeElement{
			{
				ID: 9, Listening: true, Basic: 0x04, Generic: 0x10, Specific: 0x01,
				CommandClasses: []persist.CommandClassElement{
					{
						ID: device.CommandClassSwitchBinary, Version: 2, Instances: 1,
						Values: []persist.ValueElement{
							{Genre: 0, Index: 0, Instance: 1, Type: uint8(valueid.TypeBool), Label: "Switch", Raw: "true"},
						},
					},
				},
			},
		},
	}
	if err := persist.Save(path, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	d := New(config.Driver{PersistDir: dir}, nil, cc.Default)
	d.log = zerolog.Nop()
	d.homeID = homeID
	d.persisted = doc

	n, _ := newTestNodeFor(d, 9, true)
	d.registerTestNode(n)
	n.ApplyNodeInfo(0x04, 0x10, 0x01, []uint8{device.CommandClassSwitchBinary}, nil)
	d.reconcileNode(n)

	instance, ok := n.CommandClass(device.CommandClassSwitchBinary)
	if !ok {
		t.Fatalf("expected SwitchBinary bound")
	}
	if instance.Version() != 2 {
		t.Fatalf("expected persisted version 2, got %d", instance.Version())
	}

	id := valueid.ID{HomeID: homeID, NodeID: 9, CommandClassID: device.CommandClassSwitchBinary,
		Instance: 1, Index: 0, ValueType: valueid.TypeBool}
	v := n.Values().Get(id)
	if v == nil {
		t.Fatalf("expected reconciled value present under the live ValueID")
	}
	if payload, isSet := v.Raw(); !isSet || payload != "true" {
		t.Fatalf("expected reconciled payload \"true\", got %v set=%v", payload, isSet)
	}
}
