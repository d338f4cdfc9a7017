package config

import (
	"github.com/pkg/errors"

	"github.com/eduverify/credtrust"
	"github.com/eduverify/credtrust/proof"
)

// proofConf configures signed verification proofs
type proofConf struct {
	Enabled bool   `yaml:"enabled"`
	Issuer  string `yaml:"issuer"`
	// KeyFile is the PEM encoded EC P-256 private key
	KeyFile string `yaml:"key_file"`
	// GenerateKey creates KeyFile if it does not exist
	GenerateKey  bool                   `yaml:"generate_key"`
	KeysEndpoint credtrust.EndpointConf `yaml:"keys_endpoint"`
}

var defaultProofConf = proofConf{
	Enabled:     true,
	KeyFile:     "proof-signing.pem",
	GenerateKey: true,
	KeysEndpoint: credtrust.EndpointConf{
		Path: "/.well-known/proof-keys",
	},
}

func (c *proofConf) validate() error {
	if !c.Enabled {
		return nil
	}
	if c.KeyFile == "" {
		return errors.New("key_file must be specified")
	}
	return nil
}

// Signer loads the proof signer or returns nil if proofs are disabled
func (c *proofConf) Signer() (*proof.Signer, error) {
	if !c.Enabled {
		return nil, nil
	}
	return proof.LoadOrGenerate(c.Issuer, c.KeyFile, c.GenerateKey)
}
