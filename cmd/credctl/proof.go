package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/eduverify/credtrust/cmd/credtrust/config"
	"github.com/eduverify/credtrust/proof"
)

var proofCmd = &cobra.Command{
	Use:   "proof",
	Short: "Work with signed verification proofs",
}

var proofVerifyCmd = &cobra.Command{
	Use:   "verify FILE",
	Short: "Check the signature of a verification proof and print its content",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		c := config.Get()
		if !c.Proof.Enabled {
			return errors.New("verification proofs are disabled in the config")
		}
		signer, err := proof.LoadOrGenerate(c.Proof.Issuer, c.Proof.KeyFile, false)
		if err != nil {
			return err
		}
		p, err := signer.Verify(data)
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

var proofKeyCmd = &cobra.Command{
	Use:   "generate-key FILE",
	Short: "Generate a new proof signing key",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		signer, err := proof.LoadOrGenerate(config.Get().Proof.Issuer, args[0], true)
		if err != nil {
			return err
		}
		return printJSON(map[string]string{"kid": signer.KeyID()})
	},
}

func init() {
	proofCmd.AddCommand(proofVerifyCmd, proofKeyCmd)
}
