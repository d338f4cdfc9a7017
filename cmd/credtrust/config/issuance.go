package config

import (
	"github.com/pkg/errors"

	"github.com/eduverify/credtrust/identity"
	"github.com/eduverify/credtrust/lifecycle"
)

// issuanceConf holds the issuance policy defaults and the confidence range
// of the placeholder assessor. The policy can be overridden at runtime
// through the admin API.
type issuanceConf struct {
	lifecycle.Policy `yaml:",inline"`
	Confidence       confidenceConf `yaml:"confidence"`
}

type confidenceConf struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

var defaultIssuanceConf = issuanceConf{
	Policy: lifecycle.Policy{
		RetryBudget: lifecycle.DefaultRetryBudget,
	},
	Confidence: confidenceConf{
		Min: identity.DefaultAssessor().Min,
		Max: identity.DefaultAssessor().Max,
	},
}

func (c *issuanceConf) validate() error {
	if c.RetryBudget <= 0 {
		return errors.New("retry_budget must be positive")
	}
	if !identity.ValidConfidence(c.Confidence.Min) || !identity.ValidConfidence(c.Confidence.Max) {
		return errors.New("confidence bounds must be within [0, 100]")
	}
	if c.Confidence.Max < c.Confidence.Min {
		return errors.New("confidence.max must not be lower than confidence.min")
	}
	return nil
}

// Assessor returns the confidence assessor of the configuration
func (c *issuanceConf) Assessor() identity.Assessor {
	return identity.PlaceholderAssessor{
		Min: c.Confidence.Min,
		Max: c.Confidence.Max,
	}
}
