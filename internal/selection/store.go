// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package selection holds the currently selected model of one session and keeps it
// valid against the latest policy result.
//
// Every mutation is serialized behind a mutex. Reads never touch persistence.
// Persistence writes are best effort: a failed write is logged and published as
// an event, and the in-memory selection stays authoritative.
package selection

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/modelgate/internal/hooks"
	"github.com/traylinx/modelgate/internal/policy"
	"github.com/traylinx/modelgate/internal/registry"
	"github.com/traylinx/modelgate/sdk/access"
)

// DefaultWriteTimeout bounds a single persistence write.
const DefaultWriteTimeout = 5 * time.Second

// Persister is the key-value slot holding the last selected model id.
// store.Slot implements it.
type Persister interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, value string) error
}

// View is the snapshot handed to presentation adapters.
type View struct {
	AllowedModels   []registry.Descriptor `json:"allowedModels"`
	SelectedModelID string                `json:"selectedModelId"`
	Locked          bool                  `json:"locked"`
	LockReason      string                `json:"lockReason,omitempty"`
}

// Options configures a Store. Every field is optional.
type Options struct {
	Persister    Persister
	Publisher    hooks.Publisher
	Principal    string
	WriteTimeout time.Duration
}

// Store owns the selection of one session.
type Store struct {
	mu      sync.RWMutex
	current string
	result  policy.Result

	// writeMu orders persistence writes; each write stores the latest value.
	writeMu sync.Mutex

	persister Persister
	publisher hooks.Publisher
	principal string
	timeout   time.Duration
}

// New creates an empty store. Call Initialize (or Hydrate) before use.
func New(opts Options) *Store {
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Store{
		persister: opts.Persister,
		publisher: opts.Publisher,
		principal: opts.Principal,
		timeout:   timeout,
	}
}

// change describes one mutation, collected under the lock and published after it.
type change struct {
	prev, next string
	persist    bool
	reconciled bool
	view       View
}

// Hydrate reads the persisted id and calls Initialize with it. A read failure is
// logged and treated as "no persisted preference".
func (s *Store) Hydrate(ctx context.Context, result policy.Result) string {
	var persisted string
	if s.persister != nil {
		v, err := s.persister.Load(ctx)
		if err != nil {
			s.logger().Warnf("failed to load persisted model selection: %v", err)
		} else {
			persisted = v
		}
	}
	return s.Initialize(persisted, result)
}

// Initialize adopts persisted when it is allowed by result, otherwise the forced id
// (locked) or the first allowed id. A repaired value is written back.
// It returns the adopted id.
func (s *Store) Initialize(persisted string, result policy.Result) string {
	s.mu.Lock()
	prev := s.current
	next := result.Target()
	if persisted != "" && result.Contains(persisted) && !(result.Locked && persisted != result.ForcedID) {
		next = persisted
	}
	s.current = next
	s.result = result
	c := change{prev: prev, next: next, persist: next != persisted, view: s.viewLocked()}
	s.mu.Unlock()

	if persisted != "" && next != persisted {
		s.logger().Infof("persisted model %q is not allowed, using %q", persisted, next)
	}
	s.apply(c)
	return next
}

// Select makes id the current selection. It fails with access.ErrInvalidSelection
// when the store is locked or id is not in the allowed set. Persistence failures
// are not returned.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	if s.result.Locked {
		forced := s.result.ForcedID
		s.mu.Unlock()
		return fmt.Errorf("%w: selection is locked to %q", access.ErrInvalidSelection, forced)
	}
	if !s.result.Contains(id) {
		s.mu.Unlock()
		return fmt.Errorf("%w: model %q is not allowed", access.ErrInvalidSelection, id)
	}
	prev := s.current
	s.current = id
	c := change{prev: prev, next: id, persist: true, view: s.viewLocked()}
	s.mu.Unlock()

	if prev != id {
		s.logger().Infof("model selection changed: %s -> %s", prev, id)
	}
	s.apply(c)
	return nil
}

// Reconcile applies a new policy result. When locked the selection is forced to
// ForcedID; otherwise it is reset to the first allowed id if it is no longer
// allowed. Calling it again with the same result changes nothing.
// It reports whether the selection changed.
func (s *Store) Reconcile(result policy.Result) bool {
	s.mu.Lock()
	prev := s.current
	next := prev
	switch {
	case result.Locked:
		next = result.ForcedID
	case !result.Contains(prev):
		next = result.Target()
	}
	reconciled := !s.result.Equal(result)
	s.current = next
	s.result = result
	c := change{prev: prev, next: next, persist: next != prev, reconciled: reconciled, view: s.viewLocked()}
	s.mu.Unlock()

	if next != prev {
		s.logger().Infof("policy change moved model selection: %s -> %s", prev, next)
	}
	s.apply(c)
	return next != prev
}

// Current returns the selected model id.
func (s *Store) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Locked reports whether user choice is disabled.
func (s *Store) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result.Locked
}

// Result returns the policy result the store was last reconciled against.
func (s *Store) Result() policy.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// View returns the presentation snapshot.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

func (s *Store) viewLocked() View {
	allowed := make([]registry.Descriptor, len(s.result.Allowed))
	copy(allowed, s.result.Allowed)
	v := View{
		AllowedModels:   allowed,
		SelectedModelID: s.current,
		Locked:          s.result.Locked,
	}
	if s.result.Locked {
		v.LockReason = s.result.LockReason
	}
	return v
}

func (s *Store) apply(c change) {
	if c.persist {
		s.persist()
	}
	if c.reconciled {
		s.publish(&hooks.EventContext{
			Event:   hooks.EventPolicyReconciled,
			Model:   c.next,
			Payload: c.view,
		})
	}
	if c.prev != c.next {
		s.publish(&hooks.EventContext{
			Event:     hooks.EventSelectionChanged,
			Model:     c.next,
			PrevModel: c.prev,
			Payload:   c.view,
		})
	}
}

// persist writes the latest selection. Concurrent callers queue on writeMu so
// the last write always carries the newest value.
func (s *Store) persist() {
	if s.persister == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	value := s.Current()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.persister.Save(ctx, value); err != nil {
		werr := fmt.Errorf("%w: %v", access.ErrPersistenceWrite, err)
		s.logger().Warnf("failed to persist model selection %q: %v", value, werr)
		s.publishAsync(&hooks.EventContext{
			Event:        hooks.EventPersistenceFailed,
			Model:        value,
			Error:        werr,
			ErrorMessage: werr.Error(),
		})
	}
}

func (s *Store) publish(evt *hooks.EventContext) {
	if s.publisher == nil {
		return
	}
	evt.Timestamp = time.Now()
	evt.Principal = s.principal
	s.publisher.Publish(evt)
}

// publishAsync is used while writeMu is held so a slow subscriber cannot stall
// queued writers. Publishers without a queue fall back to Publish.
func (s *Store) publishAsync(evt *hooks.EventContext) {
	ap, ok := s.publisher.(hooks.AsyncPublisher)
	if !ok {
		s.publish(evt)
		return
	}
	evt.Timestamp = time.Now()
	evt.Principal = s.principal
	ap.PublishAsync(evt)
}

func (s *Store) logger() *log.Entry {
	return log.WithField("principal", s.principal)
}
