package lifecycle

import (
	"github.com/pkg/errors"

	"github.com/eduverify/credtrust/storage/model"
)

// DefaultRetryBudget is the number of certificate ids tried before an
// issuance gives up with a DuplicateIdentityError
const DefaultRetryBudget = 5

// Policy controls issuance
type Policy struct {
	// RequireConfirmation makes new certificates start as pending; they
	// have to be activated before they verify as trustworthy
	RequireConfirmation bool `yaml:"require_confirmation" json:"require_confirmation"`
	// RetryBudget is the number of id generation attempts per issuance
	RetryBudget int `yaml:"retry_budget" json:"retry_budget"`
}

// InitialStatus returns the status a new certificate starts with
func (p Policy) InitialStatus() model.Status {
	if p.RequireConfirmation {
		return model.StatusPending
	}
	return model.StatusActive
}

func (p Policy) retryBudget() int {
	if p.RetryBudget <= 0 {
		return DefaultRetryBudget
	}
	return p.RetryBudget
}

// PolicySource yields the issuance Policy currently in effect
type PolicySource interface {
	IssuancePolicy() (Policy, error)
}

// StaticPolicy is a PolicySource that never changes
type StaticPolicy Policy

// IssuancePolicy implements the PolicySource interface
func (p StaticPolicy) IssuancePolicy() (Policy, error) {
	return Policy(p), nil
}

// KVPolicy reads the issuance policy from the key-value store, falling back
// to Defaults for unset keys. Changes made through the admin API take effect
// with the next issuance.
type KVPolicy struct {
	KV       model.KeyValueStore
	Defaults Policy
}

// IssuancePolicy implements the PolicySource interface
func (p KVPolicy) IssuancePolicy() (Policy, error) {
	policy := p.Defaults
	if p.KV == nil {
		return policy, nil
	}
	var requireConfirmation bool
	found, err := p.KV.GetAs(model.KeyValueScopeIssuance, model.KeyValueKeyRequireConfirmation, &requireConfirmation)
	if err != nil {
		return policy, errors.Wrap(err, "failed to read issuance policy")
	}
	if found {
		policy.RequireConfirmation = requireConfirmation
	}
	var budget int
	found, err = p.KV.GetAs(model.KeyValueScopeIssuance, model.KeyValueKeyRetryBudget, &budget)
	if err != nil {
		return policy, errors.Wrap(err, "failed to read issuance policy")
	}
	if found && budget > 0 {
		policy.RetryBudget = budget
	}
	return policy, nil
}

// StorePolicy writes the passed policy to the key-value store
func StorePolicy(kv model.KeyValueStore, policy Policy) error {
	if err := kv.SetAny(
		model.KeyValueScopeIssuance, model.KeyValueKeyRequireConfirmation, policy.RequireConfirmation,
	); err != nil {
		return err
	}
	return kv.SetAny(model.KeyValueScopeIssuance, model.KeyValueKeyRetryBudget, policy.RetryBudget)
}
