package main

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eduverify/credtrust/cmd/credtrust/config"
	"github.com/eduverify/credtrust/storage/model"
)

var rootCmd = &cobra.Command{
	Use:               "credctl",
	Short:             "credctl can help you manage your credtrust instance",
	Long:              "credctl can help you manage your credtrust instance",
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
}

var configFile string
var backends model.Backends

func loadConfig(_ *cobra.Command, _ []string) error {
	config.Load(configFile)
	c := config.Get()
	var err error
	backends, err = config.LoadStorageBackends(c.Storage, c.API.Admin.Argon2idParams)
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "the config file to use")
	rootCmd.AddCommand(userCmd, certificateCmd, proofCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
