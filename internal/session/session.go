// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package session wires the policy evaluator, the selection store and the model
// type normalizer for one principal. A Session is the object presentation
// adapters and request builders are handed; nothing reads selection state
// through globals.
package session

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/modelgate/internal/hooks"
	"github.com/traylinx/modelgate/internal/modeltype"
	"github.com/traylinx/modelgate/internal/policy"
	"github.com/traylinx/modelgate/internal/registry"
	"github.com/traylinx/modelgate/internal/selection"
	"github.com/traylinx/modelgate/sdk/access"
)

// Options configures a Session.
type Options struct {
	Principal string
	Catalog   *registry.Catalog
	Policy    policy.Config
	Persister selection.Persister
	// Bus receives selection and policy events. A private bus is created when nil.
	Bus *hooks.EventBus
	// Facts is the initial access snapshot.
	Facts access.Facts
}

// Session is the lifecycle-scoped owner of one principal's selection.
type Session struct {
	principal string
	bus       *hooks.EventBus
	ownsBus   bool
	selection *selection.Store

	// mu serializes fact and policy updates so reconciles apply in order.
	mu        sync.Mutex
	evaluator *policy.Evaluator
	facts     access.Facts

	normalizer atomic.Pointer[modeltype.Normalizer]
}

// New builds a session, evaluates the initial facts and hydrates the selection
// from the persister.
func New(ctx context.Context, opts Options) *Session {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = registry.Builtin()
	}
	bus, owns := opts.Bus, false
	if bus == nil {
		bus, owns = hooks.NewEventBus(), true
	}

	s := &Session{
		principal: opts.Principal,
		bus:       bus,
		ownsBus:   owns,
		evaluator: policy.NewEvaluator(catalog, opts.Policy),
		facts:     snapshot(opts.Facts),
	}
	s.selection = selection.New(selection.Options{
		Persister: opts.Persister,
		Publisher: bus,
		Principal: opts.Principal,
	})
	s.normalizer.Store(modeltype.New(catalog, s.selection))

	s.mu.Lock()
	result := s.evaluator.Evaluate(s.facts)
	selected := s.selection.Hydrate(ctx, result)
	s.mu.Unlock()

	log.WithField("principal", s.principal).Infof("session ready: model %s (allowed %v, locked %t)", selected, result.IDs(), result.Locked)
	return s
}

func snapshot(f access.Facts) access.Facts {
	roles := make([]string, len(f.Roles))
	copy(roles, f.Roles)
	return access.Facts{Roles: roles, Permissions: f.Permissions}
}

// Principal returns the principal this session belongs to.
func (s *Session) Principal() string { return s.principal }

// Bus returns the event bus selection events are published on.
func (s *Session) Bus() *hooks.EventBus { return s.bus }

// Facts returns the current access snapshot.
func (s *Session) Facts() access.Facts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.facts)
}

// Catalog returns the catalog the current policy evaluates against.
func (s *Session) Catalog() *registry.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluator.Catalog()
}

// UpdateFacts replaces the access snapshot, re-evaluates the policy and
// reconciles the selection. It returns the new policy result.
func (s *Session) UpdateFacts(facts access.Facts) policy.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.facts = snapshot(facts)
	result := s.evaluator.Evaluate(s.facts)
	s.selection.Reconcile(result)
	return result
}

// ReloadPolicy swaps the catalog and policy configuration and reconciles the
// selection against the current facts.
func (s *Session) ReloadPolicy(catalog *registry.Catalog, cfg policy.Config) policy.Result {
	return s.Reload(catalog, cfg, nil)
}

// Reload swaps the catalog, the policy configuration and, when facts is non-nil,
// the access snapshot, then reconciles the selection once against the combined
// state. No intermediate result is ever applied.
func (s *Session) Reload(catalog *registry.Catalog, cfg policy.Config, facts *access.Facts) policy.Result {
	if catalog == nil {
		catalog = registry.Builtin()
	}

	s.mu.Lock()
	s.evaluator = policy.NewEvaluator(catalog, cfg)
	if facts != nil {
		s.facts = snapshot(*facts)
	}
	s.normalizer.Store(modeltype.New(catalog, s.selection))
	result := s.evaluator.Evaluate(s.facts)
	s.selection.Reconcile(result)
	s.mu.Unlock()

	s.bus.Publish(&hooks.EventContext{
		Event:     hooks.EventConfigReloaded,
		Timestamp: time.Now(),
		Principal: s.principal,
		Model:     s.selection.Current(),
		Payload:   s.selection.View(),
	})
	return result
}

// Select makes id the current selection. See selection.Store.Select.
func (s *Session) Select(id string) error {
	return s.selection.Select(id)
}

// View returns the presentation snapshot.
func (s *Session) View() selection.View {
	return s.selection.View()
}

// ModelType returns the label of the selected model.
func (s *Session) ModelType() string {
	return s.normalizer.Load().Current()
}

// TypeOf returns the label for id.
func (s *Session) TypeOf(id string) string {
	return s.normalizer.Load().TypeOf(id)
}

// TagPayload returns a copy of payload stamped with the current model type.
func (s *Session) TagPayload(payload map[string]any) map[string]any {
	return s.normalizer.Load().TagPayload(payload)
}

// TagJSON stamps a raw JSON object body.
func (s *Session) TagJSON(body []byte) ([]byte, error) {
	return s.normalizer.Load().TagJSON(body)
}

// TagQuery appends the current model type to rawURL.
func (s *Session) TagQuery(rawURL string) string {
	return s.normalizer.Load().TagQuery(rawURL)
}

// TagForm sets the current model type on form.
func (s *Session) TagForm(form url.Values) url.Values {
	return s.normalizer.Load().TagForm(form)
}

// Close shuts down a bus the session created itself.
func (s *Session) Close() {
	if s.ownsBus {
		s.bus.Shutdown()
	}
}
