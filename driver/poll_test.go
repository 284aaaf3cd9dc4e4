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
	"time"

	"github.com/rs/zerolog"

	"github.com/zwavehost/zwdriver/config"
	"github.com/zwavehost/zwdriver/valueid"
)

func newTestDriver() *Driver {
	d := New(config.Driver{}, nil, nil)
	d.log = zerolog.Nop()
	return d
}

func TestEnableDisablePoll(t *testing.T) {
	d := newTestDriver()
	id := valueid.ID{NodeID: 3, CommandClassID: 0x25, Instance: 1}

	d.EnablePoll(id, 4)
	if len(d.pollList) != 1 || d.pollList[0].intensity != 4 {
		t.Fatalf("expected one poll entry with intensity 4, got %+v", d.pollList)
	}

	d.EnablePoll(id, 2)
	if len(d.pollList) != 1 || d.pollList[0].intensity != 2 {
		t.Fatalf("expected re-enabling to update intensity in place, got %+v", d.pollList)
	}

	d.DisablePoll(id)
	if len(d.pollList) != 0 {
		t.Fatalf("expected poll list empty after DisablePoll, got %+v", d.pollList)
	}
}

func TestEnablePollZeroIntensityDisables(t *testing.T) {
	d := newTestDriver()
	id := valueid.ID{NodeID: 3, CommandClassID: 0x25, Instance: 1}
	d.EnablePoll(id, 3)
	d.EnablePoll(id, 0)
	if len(d.pollList) != 0 {
		t.Fatalf("expected intensity 0 to remove the entry, got %+v", d.pollList)
	}
}

func TestPollTickRoundRobinAdvance(t *testing.T) {
	d := newTestDriver()
	idA := valueid.ID{NodeID: 1, CommandClassID: 0x25, Instance: 1}
	idB := valueid.ID{NodeID: 2, CommandClassID: 0x25, Instance: 1}
	d.EnablePoll(idA, 1)
	d.EnablePoll(idB, 1)

	if d.pollNext != 0 {
		t.Fatalf("expected cursor to start at 0")
	}
	d.pollTick()
	if d.pollNext != 1 {
		t.Fatalf("expected cursor to advance to 1, got %d", d.pollNext)
	}
	d.pollTick()
	if d.pollNext != 0 {
		t.Fatalf("expected cursor to wrap to 0, got %d", d.pollNext)
	}
}

func TestPollTickIntensitySkipsPasses(t *testing.T) {
	d := newTestDriver()
	// A sleeping node makes each fired poll observable as a deferred entry.
	n, _ := newTestNodeFor(d, 5, false)
	d.registerTestNode(n)
	id := valueid.ID{NodeID: 5, CommandClassID: 0x25, Instance: 1}
	d.EnablePoll(id, 3)

	for i := 0; i < 2; i++ {
		d.pollTick()
	}
	if got := d.pollList[0].pass; got != 2 {
		t.Fatalf("expected pass count 2, got %d", got)
	}
	if len(d.pendingPoll[5]) != 0 {
		t.Fatalf("expected no poll before the third pass, got %+v", d.pendingPoll)
	}

	d.pollTick()
	if got := d.pollList[0].pass; got != 3 {
		t.Fatalf("expected pass count 3 on the firing tick, got %d", got)
	}
	if len(d.pendingPoll[5]) != 1 {
		t.Fatalf("expected exactly one poll on the firing tick, got %+v", d.pendingPoll)
	}
}

func TestNextPollWaitDividesByListLength(t *testing.T) {
	d := newTestDriver()
	d.cfg = d.cfg.Defaulted()
	d.cfg.PollInterval = 10 * time.Second

	if got := d.nextPollWait(); got != 10*time.Second {
		t.Fatalf("expected full interval with an empty list, got %v", got)
	}

	d.EnablePoll(valueid.ID{NodeID: 1}, 1)
	d.EnablePoll(valueid.ID{NodeID: 2}, 1)
	if got := d.nextPollWait(); got != 5*time.Second {
		t.Fatalf("expected interval/2 with two entries, got %v", got)
	}
}

func TestRequestPollDefersForSleepingNode(t *testing.T) {
	d := newTestDriver()
	n, _ := newTestNodeFor(d, 7, false)
	d.registerTestNode(n)
	id := valueid.ID{NodeID: 7, CommandClassID: 0x25, Instance: 1}

	d.requestPoll(id)

	if len(d.pendingPoll[7]) != 1 {
		t.Fatalf("expected the poll to be deferred for the sleeping node, got %+v", d.pendingPoll)
	}
}

func TestFlushPendingPollsReplaysOnWake(t *testing.T) {
	d := newTestDriver()
	n, _ := newTestNodeFor(d, 7, false)
	d.registerTestNode(n)
	id := valueid.ID{NodeID: 7, CommandClassID: 0x25, Instance: 1}

	d.requestPoll(id)
	if len(d.pendingPoll[7]) != 1 {
		t.Fatalf("expected deferred poll before wake")
	}

	n.MarkAwake()
	d.flushPendingPolls(7)

	if len(d.pendingPoll[7]) != 0 {
		t.Fatalf("expected pending polls drained after flush, got %+v", d.pendingPoll)
	}
}
