// Package cc is the polymorphic command-class dispatch layer (spec §3, §4.4,
// §9 "Command-class open set"). Each command class is keyed by its 8-bit id,
// produced by a factory registered at startup, and implements the same
// three-behavior contract: RequestState, HandleMsg, SetValue. The registry
// does not know command-class payloads; it only routes by id.
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

	"github.com/rs/zerolog"
	"github.com/zwavehost/zwdriver/value"
)

// Priority mirrors the driver's send-queue tiers (spec §4.3). Defined here,
// not in the driver package, so a command class can request a tier for its
// own traffic without importing the driver (which imports cc).
type Priority uint8

const (
	PriorityPoll Priority = iota
	PriorityQuery
	PrioritySend
	PriorityCommand
	PriorityWakeUp
)

func (p Priority) String() string {
	switch p {
	case PriorityPoll:
		return "Poll"
	case PriorityQuery:
		return "Query"
	case PrioritySend:
		return "Send"
	case PriorityCommand:
		return "Command"
	case PriorityWakeUp:
		return "WakeUp"
	default:
		return "Unknown"
	}
}

// Stage names the query-stage (spec §4.4) that a RequestState call is
// being made on behalf of.
type Stage uint8

const (
	StageStatic Stage = iota
	StageDynamic
	StageSession
)

// Sender is how a command class reaches the outside world: enqueue a
// SendData request through the driver's transaction engine. The driver
// implements this; command classes never see a driver.Driver directly.
type Sender interface {
	Send(nodeID uint8, commandClassID uint8, payload []uint8, priority Priority) error
}

// Context is bound to a CommandClass instance at construction time and
// gives it access to its parent Node's identity, value store and outbound
// path, without a direct dependency on the node or driver packages.
type Context struct {
	HomeID uint32
	NodeID uint8
	Values *value.Store
	Sender Sender
	Notify Notifier
	Wake   Waker
	Log    zerolog.Logger
}

// Waker lets the WakeUp command class tell the driver a sleeping node has
// woken up, so the send pump can drain that node's wake-up queue (spec
// §4.5). The driver implements this; command classes never see the queue
// directly.
type Waker interface {
	NodeAwake(nodeID uint8)
}

// CommandClass is the dispatch contract every variant implements (spec §3).
type CommandClass interface {
	// ID returns the static 8-bit command class id.
	ID() uint8
	// Version returns the protocol version (default 1 until VERSION
	// reports it).
	Version() uint8
	SetVersion(v uint8)
	// InstanceCount returns how many logical instances this class has on
	// the node (default 1 until MULTI_INSTANCE reports it).
	InstanceCount() uint8
	SetInstanceCount(n uint8)
	// Bind attaches the owning node's context; called once at creation.
	Bind(ctx *Context)
	// RequestState asks the class to emit whatever Get requests are
	// appropriate for the given stage and instance.
	RequestState(stage Stage, instance uint8) error
	// HandleMsg processes an incoming command-class subcommand payload for
	// the given instance.
	HandleMsg(commandID uint8, payload []uint8, instance uint8) error
	// SetValue applies a consumer-initiated write to one of this class's
	// values, producing the wire request.
	SetValue(v *value.Value, newPayload interface{}) error
}

// Base is embeddable by concrete command classes to satisfy the
// bookkeeping parts of the CommandClass interface (version, instance count,
// context binding), leaving RequestState/HandleMsg/SetValue to be defined by
// the embedder. Mirrors the teacher's `*Node` embedding pattern
// (node.BinarySwitch embeds *node.Node) generalized to a class hierarchy of
// one.
type Base struct {
	mu            sync.RWMutex
	version       uint8
	instanceCount uint8
	Ctx           *Context
}

// NewBase returns a Base with spec defaults: version 1, 1 instance.
func NewBase() Base {
	return Base{version: 1, instanceCount: 1}
}

func (b *Base) Version() uint8 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

func (b *Base) SetVersion(v uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.version = v
}

func (b *Base) InstanceCount() uint8 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.instanceCount
}

func (b *Base) SetInstanceCount(n uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instanceCount = n
}

func (b *Base) Bind(ctx *Context) {
	b.Ctx = ctx
}

// send is a small helper most concrete classes use to issue a Set/Get.
func (b *Base) send(id uint8, payload []uint8, priority Priority) error {
	if b.Ctx == nil || b.Ctx.Sender == nil {
		return fmt.Errorf("command class 0x%02x not bound", id)
	}
	return b.Ctx.Sender.Send(b.Ctx.NodeID, id, payload, priority)
}

// Factory constructs a fresh, unbound CommandClass instance for an id.
type Factory func() CommandClass

// Registry is the tagged dispatch table populated at startup (spec §9).
type Registry struct {
	mu        sync.RWMutex
	factories map[uint8]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[uint8]Factory)}
}

// Register installs factory for id. Re-registering the same id overwrites
// the previous factory, which is how tests substitute fakes.
func (r *Registry) Register(id uint8, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
}

// New instantiates a fresh CommandClass for id, or returns
// (nil, false) if no factory is registered — the spec's
// UnsupportedCommandClass case (§7), handled by the caller as log-and-drop.
func (r *Registry) New(id uint8) (CommandClass, bool) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// IDs returns every id with a registered factory, sorted is not guaranteed.
func (r *Registry) IDs() []uint8 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint8, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	return out
}

// Default is the process-wide registry populated by this package's init
// (spec §9: "explicit process-wide context ... with init-once semantics
// enforced by the runtime" — Go's package init is that mechanism, not a
// mutable global Manager singleton).
var Default = NewRegistry()
