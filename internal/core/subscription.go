package core

import (
	"regexp"
	"sync"

	"github.com/joelguittet/go-axon/pkg/amp"
)

// SubscriptionFunc is invoked once per matching inbound topic, with the
// topic already stripped from msg.
type SubscriptionFunc func(topic string, msg *amp.Message, user interface{})

type subscriptionEntry struct {
	pattern  string
	matcher  *regexp.Regexp
	callback SubscriptionFunc
	user     interface{}
}

// Subscriptions is an ordered collection of (pattern, callback, user)
// entries, unique by pattern, matched against inbound topics using
// extended POSIX regular expressions.
//
// Patterns are compiled once at registration time rather than on every
// dispatch, which leaves the observable match set and invocation order
// unchanged while avoiding repeated compilation on the hot path.
type Subscriptions struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*subscriptionEntry
}

// NewSubscriptions builds an empty Subscription Matcher.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{entries: make(map[string]*subscriptionEntry)}
}

// Register compiles pattern as an extended POSIX regular expression and
// adds it to the collection. Re-registering an existing pattern replaces
// its callback in place, keeping its original registration order.
func (s *Subscriptions) Register(pattern string, cb SubscriptionFunc, user interface{}) error {
	re, err := regexp.CompilePOSIX(pattern)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[pattern]; !exists {
		s.order = append(s.order, pattern)
	}
	s.entries[pattern] = &subscriptionEntry{
		pattern:  pattern,
		matcher:  re,
		callback: cb,
		user:     user,
	}
	return nil
}

// Unregister removes pattern. Removing a pattern that was never
// registered is a no-op success.
func (s *Subscriptions) Unregister(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[pattern]; !ok {
		return
	}
	delete(s.entries, pattern)
	for i, p := range s.order {
		if p == pattern {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Dispatch invokes every entry whose pattern matches topic, in
// registration order. The matcher's mutex is held for the whole walk, so
// Register/Unregister cannot interleave with an in-flight Dispatch for
// the same endpoint.
func (s *Subscriptions) Dispatch(topic string, msg *amp.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pattern := range s.order {
		e := s.entries[pattern]
		if e.matcher.MatchString(topic) {
			e.callback(topic, msg, e.user)
		}
	}
}
