// Package validator admits or rejects inbound events before they reach the store.
package validator

import (
	"time"

	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

// Rule is a single admission check. Check returns the rejection reason, or ""
// when the event passes.
type Rule interface {
	Check(event models.InboundEvent, now time.Time) models.Reason
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(event models.InboundEvent, now time.Time) models.Reason

// Check calls f.
func (f RuleFunc) Check(event models.InboundEvent, now time.Time) models.Reason {
	return f(event, now)
}

// Chain applies rules in order; the first failure wins.
type Chain struct {
	rules []Rule
}

// NewChain constructs a rule chain.
func NewChain(rules ...Rule) *Chain {
	return &Chain{rules: rules}
}

// Validate returns nil when the event is admitted.
func (c *Chain) Validate(event models.InboundEvent, now time.Time) *models.Rejection {
	if c == nil {
		return nil
	}
	for _, r := range c.rules {
		if reason := r.Check(event, now); reason != "" {
			return &models.Rejection{EventID: event.EventID, Reason: reason}
		}
	}
	return nil
}
