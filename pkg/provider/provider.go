// Package provider defines the uniform contract every delivery channel
// implements, and the error classes the delivery worker acts on.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrymomot/crewnotify/pkg/channel"
)

// Status is what a provider reports for an accepted call.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
)

// Message is a rendered notification ready for a provider.
type Message struct {
	RecordID    string // internal notification record id
	TemplateKey string
	Destination string
	Subject     string
	Body        string
}

// Result is returned for a successful or skipped send.
type Result struct {
	ProviderID string
	Status     Status
}

// Skipped is the result for a provider without credentials.
func Skipped() Result {
	return Result{Status: StatusSkipped}
}

// Provider delivers messages over a single channel.
// Implementations must be safe for concurrent use.
type Provider interface {
	Channel() channel.Channel
	Send(ctx context.Context, msg Message) (Result, error)
}

// Transient wraps err so that it classifies as ErrTransient.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrTransient, err)
}

// Permanent wraps err so that it classifies as ErrPermanent.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrPermanent, err)
}

// Registry maps channels to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[channel.Channel]Provider
}

// NewRegistry creates a registry holding the given providers.
// A later provider for the same channel replaces an earlier one.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[channel.Channel]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the provider for its channel. Nil is ignored.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Channel()] = p
}

// Get returns the provider for ch.
func (r *Registry) Get(ch channel.Channel) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[ch]
	if !ok {
		return nil, fmt.Errorf("%w: no provider for channel %s", ErrNotConfigured, ch)
	}
	return p, nil
}

// Channels lists channels that have a provider.
func (r *Registry) Channels() []channel.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]channel.Channel, 0, len(r.providers))
	for _, ch := range channel.All {
		if _, ok := r.providers[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}
