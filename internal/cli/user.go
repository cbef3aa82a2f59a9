package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

var (
	userEmail    string
	userPassword string
	userAdmin    bool
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a user account",
	Long: `Create a user account. This is how the first admin is created.

The password may also be given in CRM_USER_PASSWORD.

Examples:
  crmctl create-user --email admin@example.com --password 's3cret-pass' --admin`,
	Args: cobra.NoArgs,
	RunE: runCreateUser,
}

func init() {
	f := createUserCmd.Flags()
	f.StringVar(&userEmail, "email", "", "login e-mail (required)")
	f.StringVar(&userPassword, "password", "", "password, at least 8 characters")
	f.BoolVar(&userAdmin, "admin", false, "grant the admin role")
	_ = createUserCmd.MarkFlagRequired("email")
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	password := userPassword
	if password == "" {
		password = os.Getenv("CRM_USER_PASSWORD")
	}
	role := models.RoleUser
	if userAdmin {
		role = models.RoleAdmin
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.Services.Auth.CreateUser(context.Background(),
		models.RegisterRequest{Email: userEmail, Password: password}, string(role))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}
