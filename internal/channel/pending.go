/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package channel

import (
	"sync"

	"github.com/google/uuid"
)

// Pending tracks requests awaiting an out-of-band acknowledgement, keyed by a
// token embedded in the request and echoed by the device service. Entries
// have no expiry; an acknowledgement that never arrives leaves its entry
// until Drop.
type Pending[T any] struct {
	mu sync.Mutex
	m  map[string]T
}

func NewPending[T any]() *Pending[T] { return &Pending[T]{m: make(map[string]T)} }

// Add stores v under a fresh token and returns the token.
func (p *Pending[T]) Add(v T) string {
	token := uuid.NewString()
	p.mu.Lock()
	p.m[token] = v
	p.mu.Unlock()
	return token
}

// Take removes and returns the entry for token.
func (p *Pending[T]) Take(token string) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[token]
	if ok {
		delete(p.m, token)
	}
	return v, ok
}

// Drop forgets token, for requests that were never delivered.
func (p *Pending[T]) Drop(token string) {
	p.mu.Lock()
	delete(p.m, token)
	p.mu.Unlock()
}

func (p *Pending[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
