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
	"github.com/zwavehost/zwdriver/node"
	"github.com/zwavehost/zwdriver/value"
)

// NotificationType classifies a Notification (spec §4.9).
type NotificationType uint8

const (
	NotificationNodeAdded NotificationType = iota
	NotificationNodeRemoved
	NotificationNodeQueriesComplete
	NotificationValueAdded
	NotificationValueChanged
	NotificationValueRefreshed
	NotificationValueRemoved
	NotificationNodeAwake
	NotificationNodeAsleep
	NotificationControllerCommand
	NotificationDriverReady
	NotificationDriverFailed
)

func (t NotificationType) String() string {
	switch t {
	case NotificationNodeAdded:
		return "NodeAdded"
	case NotificationNodeRemoved:
		return "NodeRemoved"
	case NotificationNodeQueriesComplete:
		return "NodeQueriesComplete"
	case NotificationValueAdded:
		return "ValueAdded"
	case NotificationValueChanged:
		return "ValueChanged"
	case NotificationValueRefreshed:
		return "ValueRefreshed"
	case NotificationValueRemoved:
		return "ValueRemoved"
	case NotificationNodeAwake:
		return "NodeAwake"
	case NotificationNodeAsleep:
		return "NodeAsleep"
	case NotificationControllerCommand:
		return "ControllerCommand"
	case NotificationDriverReady:
		return "DriverReady"
	case NotificationDriverFailed:
		return "DriverFailed"
	default:
		return "Unknown"
	}
}

// Notification is the single event type fanned out to watchers (spec §4.9,
// §6.2). Only the fields relevant to Type are populated.
type Notification struct {
	Type    NotificationType
	HomeID  uint32
	NodeID  uint8
	Value   *value.Value
	Command *ControllerCommand
}

// Watcher receives every Notification in emission order.
type Watcher func(Notification)

// AddWatcher registers fn to receive every future notification (spec
// §6.2). It returns a token usable with RemoveWatcher.
func (d *Driver) AddWatcher(fn Watcher) int {
	d.watchersMu.Lock()
	defer d.watchersMu.Unlock()
	token := d.nextWatcherToken
	d.nextWatcherToken++
	d.watchers[token] = fn
	return token
}

// RemoveWatcher unregisters a watcher previously returned by AddWatcher.
func (d *Driver) RemoveWatcher(token int) {
	d.watchersMu.Lock()
	defer d.watchersMu.Unlock()
	delete(d.watchers, token)
}

// enqueueNotification appends n to the pending queue. The queue is only
// ever flushed from the pump goroutine, guaranteeing the ValueAdded before
// ValueChanged/ValueRefreshed ordering invariant (spec §8 testable
// property 8): every command class call that can emit more than one
// notification for the same value runs on that same goroutine, so there is
// never a race between two notifications about one value.
func (d *Driver) enqueueNotification(n Notification) {
	d.notifyMu.Lock()
	d.notifyQueue = append(d.notifyQueue, n)
	d.notifyMu.Unlock()
}

// flushNotifications dispatches every pending notification to every
// registered watcher, in order, and is called by the pump goroutine at
// safe points (after a frame has been fully handled, and after a send
// attempt completes).
func (d *Driver) flushNotifications() {
	d.notifyMu.Lock()
	pending := d.notifyQueue
	d.notifyQueue = nil
	d.notifyMu.Unlock()

	if len(pending) == 0 {
		return
	}

	d.watchersMu.Lock()
	watchers := make([]Watcher, 0, len(d.watchers))
	for _, w := range d.watchers {
		watchers = append(watchers, w)
	}
	d.watchersMu.Unlock()

	for _, n := range pending {
		for _, w := range watchers {
			w(n)
		}
	}
}

// ValueAdded implements cc.Notifier.
func (d *Driver) ValueAdded(v *value.Value) {
	d.enqueueNotification(Notification{Type: NotificationValueAdded, HomeID: d.homeID, NodeID: v.ID.NodeID, Value: v})
}

// ValueChanged implements cc.Notifier.
func (d *Driver) ValueChanged(v *value.Value) {
	d.enqueueNotification(Notification{Type: NotificationValueChanged, HomeID: d.homeID, NodeID: v.ID.NodeID, Value: v})
}

// ValueRefreshed implements cc.Notifier.
func (d *Driver) ValueRefreshed(v *value.Value) {
	d.enqueueNotification(Notification{Type: NotificationValueRefreshed, HomeID: d.homeID, NodeID: v.ID.NodeID, Value: v})
}

// NodeAwake implements cc.Waker. It marks the node reachable and wakes the
// pump so it re-scans the send queue: entries addressed to this node that
// were sitting in queue while it slept (spec §4.5, queue.popSendable) only
// become eligible once this flips IsAwake. The pump is responsible for
// sending WAKE_UP_NO_MORE_INFORMATION once that backlog drains (see
// runtime.go onSendComplete). If the node's query-stage pipeline bailed out earlier
// waiting for exactly this wake-up (spec §4.4 step 1), this resumes it.
func (d *Driver) NodeAwake(nodeID uint8) {
	d.nodesMu.RLock()
	n, ok := d.nodes[nodeID]
	d.nodesMu.RUnlock()
	if !ok {
		return
	}

	wasAwake := n.IsAwake()
	n.MarkAwake()
	if !wasAwake {
		d.enqueueNotification(Notification{Type: NotificationNodeAwake, HomeID: d.homeID, NodeID: nodeID})
		d.pendingSleepMu.Lock()
		d.pendingSleep[nodeID] = true
		d.pendingSleepMu.Unlock()
		d.flushPendingPolls(nodeID)
		if n.Stage() < node.StageComplete {
			go func() {
				if err := d.interrogate(nodeID); err != nil {
					d.log.Warn().Err(err).Uint8("node", nodeID).Msg("resumed node interrogation failed")
				}
				d.flushNotifications()
			}()
		}
	}
	d.sendQ.signal()
}
