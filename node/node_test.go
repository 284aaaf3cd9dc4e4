package node

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/zwavehost/zwdriver/cc"
	"github.com/zwavehost/zwdriver/device"
	"github.com/zwavehost/zwdriver/value"
	"github.com/zwavehost/zwdriver/valueid"
)

type fakeSender struct {
	sent []sentFrame
}

type sentFrame struct {
	nodeID         uint8
	commandClassID uint8
	payload        []uint8
}

func (f *fakeSender) Send(nodeID uint8, commandClassID uint8, payload []uint8, priority cc.Priority) error {
	f.sent = append(f.sent, sentFrame{nodeID, commandClassID, payload})
	return nil
}

type noopNotifier struct{}

func (noopNotifier) ValueAdded(v *value.Value)     {}
func (noopNotifier) ValueChanged(v *value.Value)   {}
func (noopNotifier) ValueRefreshed(v *value.Value) {}

type noopWaker struct{}

func (noopWaker) NodeAwake(nodeID uint8) {}

func newTestNode() (*Node, *fakeSender) {
	sender := &fakeSender{}
	n := New(0x12345678, 9, cc.Default, sender, noopNotifier{}, noopWaker{}, zerolog.Nop())
	return n, sender
}

func TestApplyNodeInfoRegistersKnownClasses(t *testing.T) {
	n, _ := newTestNode()
	n.ApplyProtocolInfo(true, false, 0x01, 0, device.GenericTypeSwitchBinary, device.GenericTypeSwitchBinary, 0)
	n.ApplyNodeInfo(device.GenericTypeSwitchBinary, device.GenericTypeSwitchBinary, 0,
		[]uint8{device.CommandClassBasic, device.CommandClassSwitchBinary, 0xfe}, nil)

	if _, ok := n.CommandClass(device.CommandClassSwitchBinary); !ok {
		t.Fatalf("expected SwitchBinary to be registered")
	}
	if _, ok := n.CommandClass(0xfe); ok {
		t.Fatalf("expected unknown command class 0xfe to be dropped, not registered")
	}
}

func TestDispatchRoutesToBoundClass(t *testing.T) {
	n, sender := newTestNode()
	n.ApplyNodeInfo(0, 0, 0, []uint8{device.CommandClassSwitchBinary}, nil)

	if err := n.Dispatch(device.CommandClassSwitchBinary, 0x03, []uint8{0xff}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	id := valueid.ID{HomeID: n.HomeID, NodeID: n.ID, Genre: valueid.GenreUser,
		CommandClassID: device.CommandClassSwitchBinary, Instance: 1, Index: 0, ValueType: valueid.TypeBool}
	v := n.Values().Get(id)
	if v == nil {
		t.Fatalf("expected switch binary value to be created")
	}
	payload, isSet := v.Raw()
	if !isSet || payload != true {
		t.Fatalf("expected value true, got %v set=%v", payload, isSet)
	}

	_ = sender
}

func TestDispatchDropsUnsupportedCommandClass(t *testing.T) {
	n, _ := newTestNode()
	if err := n.Dispatch(0xfe, 0x01, []uint8{0x00}); err != nil {
		t.Fatalf("dispatch to unsupported class should not error: %v", err)
	}
}

func TestAwakeListeningAlwaysTrue(t *testing.T) {
	n, _ := newTestNode()
	n.ApplyProtocolInfo(true, false, 0, 0, 0, 0, 0)
	if !n.IsAwake() {
		t.Fatalf("listening node should always report awake")
	}
}

func TestAwakeSleepingFollowsWakeUpNotification(t *testing.T) {
	n, _ := newTestNode()
	n.ApplyProtocolInfo(false, false, 0, 0, 0, 0, 0)
	if n.IsAwake() {
		t.Fatalf("sleeping node should start asleep")
	}
	n.MarkAwake()
	if !n.IsAwake() {
		t.Fatalf("expected awake after MarkAwake")
	}
	n.MarkAsleep()
	if n.IsAwake() {
		t.Fatalf("expected asleep after MarkAsleep")
	}
}
