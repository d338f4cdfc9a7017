package main

import (
	"github.com/spf13/cobra"

	"github.com/eduverify/credtrust/internal/utils"
	"github.com/eduverify/credtrust/lifecycle"
	"github.com/eduverify/credtrust/storage/model"
)

const cliActor = "credctl"

var certificateCmd = &cobra.Command{
	Use:     "certificate",
	Aliases: []string{"cert"},
	Short:   "Inspect and manage certificates",
}

func lifecycleService() *lifecycle.Service {
	return lifecycle.NewService(backends.Certificates, backends.Events)
}

var listStatus, listInstitution, listStudent string

var certificateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List certificates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		query := model.CertificateQuery{
			InstitutionName: listInstitution,
			StudentEmail:    listStudent,
		}
		for _, v := range utils.SplitList(listStatus) {
			st, err := model.ParseStatus(v)
			if err != nil {
				return err
			}
			query.Statuses = append(query.Statuses, st)
		}
		certs, err := lifecycleService().List(cmd.Context(), query)
		if err != nil {
			return err
		}
		return printJSON(certs)
	},
}

var certificateStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show certificate statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		stats, err := lifecycleService().Stats(
			cmd.Context(), model.CertificateQuery{InstitutionName: listInstitution},
		)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var certificateActivateCmd = &cobra.Command{
	Use:   "activate ID",
	Short: "Activate a pending certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cert, err := lifecycleService().Activate(cmd.Context(), cliActor, args[0])
		if err != nil {
			return err
		}
		return printJSON(cert)
	},
}

var revokeReason string

var certificateRevokeCmd = &cobra.Command{
	Use:   "revoke ID",
	Short: "Revoke a certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cert, err := lifecycleService().Revoke(cmd.Context(), cliActor, args[0], revokeReason)
		if err != nil {
			return err
		}
		return printJSON(cert)
	},
}

func init() {
	certificateListCmd.Flags().StringVar(&listStatus, "status", "", "comma separated statuses")
	certificateListCmd.Flags().StringVar(&listInstitution, "institution", "", "only this institution")
	certificateListCmd.Flags().StringVar(&listStudent, "student-email", "", "only this student")
	certificateStatsCmd.Flags().StringVar(&listInstitution, "institution", "", "only this institution")
	certificateRevokeCmd.Flags().StringVar(&revokeReason, "reason", "", "the reason recorded in the audit trail")
	certificateCmd.AddCommand(certificateListCmd, certificateStatsCmd, certificateActivateCmd, certificateRevokeCmd)
}
