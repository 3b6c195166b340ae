// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package honeytrace

import "sync"

// wrapped tracks instrumented modules out-of-band, so the marker never shows up on the module itself.
var wrapped = struct {
	sync.Mutex
	modules map[any]struct{}
}{modules: map[any]struct{}{}}

// alreadyWrapped tells whether mod has been instrumented. If not, marks it as such.
func alreadyWrapped(mod any) bool {
	wrapped.Lock()
	defer wrapped.Unlock()
	if _, ok := wrapped.modules[mod]; ok {
		return true
	}
	wrapped.modules[mod] = struct{}{}
	return false
}

func isWrapped(mod any) bool {
	wrapped.Lock()
	defer wrapped.Unlock()
	_, ok := wrapped.modules[mod]
	return ok
}
