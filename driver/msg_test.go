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
	"testing"

	"github.com/zwavehost/zwdriver/cc"
)

func alwaysAwake(uint8) bool { return true }

func TestQueuePopSendableOrdersByPriority(t *testing.T) {
	q := newQueue()
	q.push(&msg{nodeID: 1, priority: cc.PriorityPoll}, nil)
	q.push(&msg{nodeID: 2, priority: cc.PriorityCommand}, nil)
	q.push(&msg{nodeID: 3, priority: cc.PrioritySend}, nil)
	q.push(&msg{nodeID: 4, priority: cc.PriorityQuery}, nil)
	q.push(&msg{nodeID: 5, priority: cc.PriorityWakeUp}, nil)

	want := []uint8{5, 2, 3, 4, 1}
	for _, w := range want {
		m, ok := q.popSendable(alwaysAwake)
		if !ok {
			t.Fatalf("expected a message, queue empty early")
		}
		if m.nodeID != w {
			t.Fatalf("expected node %d, got %d", w, m.nodeID)
		}
	}
	if _, ok := q.popSendable(alwaysAwake); ok {
		t.Fatalf("expected queue to be empty")
	}
}

func TestQueuePopSendableFIFOWithinTier(t *testing.T) {
	q := newQueue()
	q.push(&msg{nodeID: 1, priority: cc.PrioritySend}, nil)
	q.push(&msg{nodeID: 2, priority: cc.PrioritySend}, nil)
	q.push(&msg{nodeID: 3, priority: cc.PrioritySend}, nil)

	for _, want := range []uint8{1, 2, 3} {
		m, ok := q.popSendable(alwaysAwake)
		if !ok || m.nodeID != want {
			t.Fatalf("expected node %d, got %+v ok=%v", want, m, ok)
		}
	}
}

func TestQueuePopSendableSkipsSleepingNode(t *testing.T) {
	q := newQueue()
	q.push(&msg{nodeID: 9, priority: cc.PrioritySend}, nil)
	q.push(&msg{nodeID: 2, priority: cc.PrioritySend}, nil)

	asleep := func(nodeID uint8) bool { return nodeID != 9 }

	m, ok := q.popSendable(asleep)
	if !ok || m.nodeID != 2 {
		t.Fatalf("expected to skip sleeping node 9 and return node 2, got %+v ok=%v", m, ok)
	}
	if !q.hasNode(9) {
		t.Fatalf("expected node 9's entry to remain queued")
	}
}

func TestQueueHasNode(t *testing.T) {
	q := newQueue()
	if q.hasNode(1) {
		t.Fatalf("empty queue should not have any node")
	}
	q.push(&msg{nodeID: 1, priority: cc.PrioritySend}, nil)
	if !q.hasNode(1) {
		t.Fatalf("expected hasNode(1) after push")
	}
	if q.hasNode(2) {
		t.Fatalf("hasNode(2) should be false")
	}
	if _, ok := q.popSendable(alwaysAwake); !ok {
		t.Fatalf("expected to pop the one entry")
	}
	if q.hasNode(1) {
		t.Fatalf("expected hasNode(1) false after drain")
	}
}

// TestQueuePushReplacesDuplicateEntryForSleepingNode covers the dedup path
// a sleeping node actually hits: WAKE_UP_NO_MORE_INFORMATION re-queued at
// PriorityWakeUp, and ordinary consumer writes (e.g. SwitchBinary.SetValue)
// re-queued at PrioritySend, must both collapse to one entry when the node
// isn't awake, since dedup keys off node-awake state, not the priority tag.
func TestQueuePushReplacesDuplicateEntryForSleepingNode(t *testing.T) {
	asleep := func(uint8) bool { return false }

	q := newQueue()
	q.push(&msg{nodeID: 7, commandClassID: 0x84, payload: []uint8{0x08}, priority: cc.PriorityWakeUp}, asleep)
	q.push(&msg{nodeID: 7, commandClassID: 0x84, payload: []uint8{0x08}, priority: cc.PriorityWakeUp}, asleep)

	q.push(&msg{nodeID: 7, commandClassID: 0x25, payload: []uint8{0x01, 0xff}, priority: cc.PrioritySend}, asleep)
	q.push(&msg{nodeID: 7, commandClassID: 0x25, payload: []uint8{0x01, 0xff}, priority: cc.PrioritySend}, asleep)

	count := 0
	for {
		if _, ok := q.popSendable(alwaysAwake); !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected one collapsed WakeUp entry and one collapsed Send entry, got %d", count)
	}
}

// TestQueuePushDoesNotDedupAwakeNode checks the flip side: once a node is
// reported awake, repeated identical writes are not collapsed, since the
// dedup's whole purpose is bounding a sleeping node's backlog, not
// deduplicating traffic in general.
func TestQueuePushDoesNotDedupAwakeNode(t *testing.T) {
	q := newQueue()
	q.push(&msg{nodeID: 3, commandClassID: 0x25, payload: []uint8{0x01, 0xff}, priority: cc.PrioritySend}, alwaysAwake)
	q.push(&msg{nodeID: 3, commandClassID: 0x25, payload: []uint8{0x01, 0xff}, priority: cc.PrioritySend}, alwaysAwake)

	count := 0
	for {
		if _, ok := q.popSendable(alwaysAwake); !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected both entries to remain queued for an awake node, got %d", count)
	}
}
