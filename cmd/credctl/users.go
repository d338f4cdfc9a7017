package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/eduverify/credtrust/access"
	"github.com/eduverify/credtrust/storage/model"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var newUser model.User
var newUserPassword string

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a user",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if !access.Role(newUser.Role).Valid() {
			return errors.Errorf("unknown role '%s'", newUser.Role)
		}
		if access.Role(newUser.Role) == access.RoleInstitute && newUser.Institution == "" {
			return errors.New("users with role 'institute' need an institution")
		}
		u, err := backends.Users.Create(newUser, newUserPassword)
		if err != nil {
			return err
		}
		return printJSON(u)
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		users, err := backends.Users.List()
		if err != nil {
			return err
		}
		return printJSON(users)
	},
}

var userDisableCmd = &cobra.Command{
	Use:   "disable USERNAME",
	Short: "Disable a user without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		disabled := true
		u, err := backends.Users.Update(args[0], model.UserData{Disabled: &disabled})
		if err != nil {
			return err
		}
		return printJSON(u)
	},
}

func init() {
	f := userAddCmd.Flags()
	f.StringVarP(&newUser.Username, "username", "u", "", "the username")
	f.StringVarP(&newUserPassword, "password", "p", "", "the password")
	f.StringVar(&newUser.DisplayName, "display-name", "", "the display name")
	f.StringVarP(&newUser.Role, "role", "r", string(access.RoleAdmin), "one of institute, student, verifier, admin")
	f.StringVar(&newUser.Email, "email", "", "email address for one-time codes")
	f.StringVar(&newUser.Phone, "phone", "", "phone number for one-time codes")
	f.StringVar(&newUser.Institution, "institution", "", "the institution of an institute user")
	_ = userAddCmd.MarkFlagRequired("username")
	_ = userAddCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userAddCmd, userListCmd, userDisableCmd)
}
