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
	"sync"

	"github.com/zwavehost/zwdriver/cc"
)

// msg is one outbound frame with its routing metadata (spec §4.3): the
// target node, the expected ACK/reply/callback shape, its priority tier
// and how many times it has been attempted.
type msg struct {
	nodeID         uint8
	commandClassID uint8
	payload        []uint8
	priority       cc.Priority

	attempts int
}

// queue holds the driver's priority tiers (spec §4.3: Command > Send >
// Query > Poll, plus a WakeUp tier above Command that carries
// WAKE_UP_NO_MORE_INFORMATION). Within a tier, FIFO order. Every tier
// admits entries for any node; popSendable passes over entries addressed
// to a node the driver believes asleep, in every tier.
//
// The pump goroutine cannot block inside the queue waiting for work — it
// also has to watch the serial reader and its retry timers in the same
// select — so readiness is signaled through a buffered channel instead of
// a condition variable (spec §4.3, grounded on the teacher's doRequests
// select-loop in controller.go).
type queue struct {
	mu    sync.Mutex
	tiers [5][]*msg
	ready chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

// signal wakes the pump without blocking if it is already awake.
func (q *queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// readyCh is selected by the pump alongside the serial reader and retry
// timers.
func (q *queue) readyCh() <-chan struct{} { return q.ready }

// push appends m to its priority tier. If isAwake reports the destination
// node is not currently reachable, any prior entry in the same tier
// addressed to that node with the same command class id and payload is
// removed first, so repeated writes to a sleeping node — a second
// SetValue with the same payload, a re-queued WAKE_UP_NO_MORE_INFORMATION
// — collapse into the one entry that is actually transmitted once it
// wakes, instead of growing the backlog without bound (spec §9 Open
// Question, resolved per SUPPLEMENTED: "remove any prior identical entry,
// then append"). This has to key off node-awake state rather than a
// specific priority tag: ordinary consumer traffic to a sleeping node
// (e.g. SwitchBinary.SetValue) is tagged PrioritySend like any other
// write, not PriorityWakeUp, which is reserved for
// WAKE_UP_NO_MORE_INFORMATION itself. isAwake is nil only in tests
// exercising pure tier/FIFO behavior, where dedup does not apply.
func (q *queue) push(m *msg, isAwake func(nodeID uint8) bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if isAwake != nil && !isAwake(m.nodeID) {
		tier := q.tiers[m.priority]
		for i := 0; i < len(tier); i++ {
			if tier[i].nodeID == m.nodeID && tier[i].commandClassID == m.commandClassID &&
				bytesEqual(tier[i].payload, m.payload) {
				tier = append(tier[:i], tier[i+1:]...)
				break
			}
		}
		q.tiers[m.priority] = tier
	}

	q.tiers[m.priority] = append(q.tiers[m.priority], m)
	q.signal()
}

// popSendable removes and returns the first queued message (highest
// priority tier first, FIFO within a tier) addressed to a node that
// isAwake reports reachable, leaving every entry for a still-sleeping
// node in place (spec §4.5): a battery node's backlog waits for its
// WAKE_UP_NOTIFICATION instead of blocking traffic to other nodes, and
// instead of being skipped entirely.
func (q *queue) popSendable(isAwake func(nodeID uint8) bool) (m *msg, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for p := len(q.tiers) - 1; p >= 0; p-- {
		tier := q.tiers[p]
		for i, m := range tier {
			if isAwake(m.nodeID) {
				q.tiers[p] = append(tier[:i:i], tier[i+1:]...)
				return m, true
			}
		}
	}
	return nil, false
}

// hasNode reports whether any tier still holds an entry for nodeID.
func (q *queue) hasNode(nodeID uint8) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, tier := range q.tiers {
		for _, m := range tier {
			if m.nodeID == nodeID {
				return true
			}
		}
	}
	return false
}

func bytesEqual(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
