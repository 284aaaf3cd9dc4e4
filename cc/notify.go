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

import "github.com/zwavehost/zwdriver/value"

// Notifier lets a command class publish the Value lifecycle events defined
// in spec §3/§4.9, without depending on the driver's Notification type.
// The driver implements this and guarantees ordering invariant 8 (spec §8):
// ValueAdded before any ValueChanged/ValueRefreshed for that value.
type Notifier interface {
	ValueAdded(v *value.Value)
	ValueChanged(v *value.Value)
	ValueRefreshed(v *value.Value)
}

// refreshValue is the common helper every command class uses when decoding
// an incoming report: create-or-fetch the value, apply the payload, and
// notify according to whether it's new/changed/merely re-confirmed.
func (b *Base) refreshValue(id value.ID, label string, payload interface{}) *value.Value {
	v, created := b.Ctx.Values.GetOrCreate(id, label)
	if created {
		b.Ctx.Notify.ValueAdded(v)
	}
	changed, refreshedSame := v.Refresh(payload)
	if changed {
		b.Ctx.Notify.ValueChanged(v)
	} else if refreshedSame {
		b.Ctx.Notify.ValueRefreshed(v)
	}
	return v
}
