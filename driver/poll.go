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
	"time"

	"github.com/zwavehost/zwdriver/cc"
	"github.com/zwavehost/zwdriver/valueid"
)

// pollEntry is one value under poll, with its own intensity and pass
// counter (spec §4.10).
type pollEntry struct {
	id        valueid.ID
	intensity uint32
	pass      uint32
}

// EnablePoll marks id for polling at the given intensity: 0 disables it,
// N polls it on every Nth sweep of the poll list (spec §4.10). Calling it
// again for an id already under poll just updates the intensity.
func (d *Driver) EnablePoll(id valueid.ID, intensity uint32) {
	d.pollMu.Lock()
	defer d.pollMu.Unlock()

	if intensity == 0 {
		d.removePollLocked(id)
		return
	}
	for _, e := range d.pollList {
		if e.id == id {
			e.intensity = intensity
			return
		}
	}
	d.pollList = append(d.pollList, &pollEntry{id: id, intensity: intensity})
}

// DisablePoll removes id from the poll list.
func (d *Driver) DisablePoll(id valueid.ID) {
	d.pollMu.Lock()
	defer d.pollMu.Unlock()
	d.removePollLocked(id)
}

func (d *Driver) removePollLocked(id valueid.ID) {
	for i, e := range d.pollList {
		if e.id == id {
			d.pollList = append(d.pollList[:i:i], d.pollList[i+1:]...)
			if d.pollNext > i {
				d.pollNext--
			}
			return
		}
	}
}

// pollPump sweeps the poll list at cfg.PollInterval, divided by the list
// length so a long list does not burst all its Gets at once (spec §4.10,
// §5 "Poll pump"). It is the third of the driver's three cooperating
// activities, alongside the I/O pump and the send pump (mainLoop).
func (d *Driver) pollPump() {
	defer close(d.stoppedPoll)
	for {
		wait := d.nextPollWait()
		select {
		case <-d.stopCh:
			return
		case <-time.After(wait):
		}
		d.pollTick()
	}
}

func (d *Driver) nextPollWait() time.Duration {
	d.pollMu.Lock()
	n := len(d.pollList)
	d.pollMu.Unlock()
	if n == 0 {
		return d.cfg.PollInterval
	}
	return d.cfg.PollInterval / time.Duration(n)
}

// pollTick advances the round-robin cursor by one entry and, if that
// entry's intensity divides its pass count, requests a refresh for it.
func (d *Driver) pollTick() {
	d.pollMu.Lock()
	if len(d.pollList) == 0 {
		d.pollMu.Unlock()
		return
	}
	e := d.pollList[d.pollNext]
	d.pollNext = (d.pollNext + 1) % len(d.pollList)
	e.pass++
	fire := e.pass%e.intensity == 0
	id := e.id
	d.pollMu.Unlock()

	if fire {
		d.requestPoll(id)
	}
}

// requestPoll asks id's owning command class to refresh its dynamic
// state. For a non-listening node that is currently asleep, the request
// is deferred as a "poll required" flag and replayed once the node wakes
// (spec §4.10), rather than emitting traffic the node cannot receive.
func (d *Driver) requestPoll(id valueid.ID) {
	n, ok := d.Node(id.NodeID)
	if !ok {
		return
	}
	if !n.IsAwake() {
		d.pendingPollMu.Lock()
		d.pendingPoll[id.NodeID] = append(d.pendingPoll[id.NodeID], id)
		d.pendingPollMu.Unlock()
		return
	}
	d.pollCommandClass(n.CommandClass, id)
}

// pollCommandClass looks up id's command class and nudges it to refresh
// at the Dynamic stage. The CommandClass contract does not expose a
// caller-chosen send priority, so a poll rides the same RequestState path
// (and whatever priority the class's own Get call uses internally) as an
// ordinary dynamic-stage refresh; this is the intentional simplification
// behind the spec's PriorityPoll tier in this port.
func (d *Driver) pollCommandClass(lookup func(uint8) (cc.CommandClass, bool), id valueid.ID) {
	instance, ok := lookup(id.CommandClassID)
	if !ok {
		return
	}
	if err := instance.RequestState(cc.StageDynamic, id.Instance); err != nil {
		d.nodeLogger(id.NodeID).Debug().Err(err).Str("value", id.String()).Msg("poll request failed")
	}
}

// flushPendingPolls replays every poll deferred while nodeID was asleep
// (spec §4.10). Called by NodeAwake once the node is reachable again.
func (d *Driver) flushPendingPolls(nodeID uint8) {
	d.pendingPollMu.Lock()
	pending := d.pendingPoll[nodeID]
	delete(d.pendingPoll, nodeID)
	d.pendingPollMu.Unlock()
	if len(pending) == 0 {
		return
	}

	n, ok := d.Node(nodeID)
	if !ok {
		return
	}
	for _, id := range pending {
		d.pollCommandClass(n.CommandClass, id)
	}
}
