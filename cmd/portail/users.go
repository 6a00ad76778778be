package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/urbanisme-sn/portail/internal/db"
	"golang.org/x/term"
)

var (
	userEmail    string
	userRole     string
	userPassword string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage back-office accounts",
}

var usersAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a back-office account",
	Long: `Create an account with the given role. The password is prompted for
unless --password is set.

Examples:
  portail users add awa.ndiaye --email awa.ndiaye@urbanisme.gouv.sn --role editor`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersAdd,
}

func init() {
	usersAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address (required)")
	usersAddCmd.Flags().StringVar(&userRole, "role", "viewer", "Role name")
	usersAddCmd.Flags().StringVar(&userPassword, "password", "", "Password (prompted when empty)")
	_ = usersAddCmd.MarkFlagRequired("email")

	usersCmd.AddCommand(usersAddCmd)
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	password := userPassword
	if password == "" {
		fmt.Print("Password: ")
		passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = string(passBytes)
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	user, err := db.CreateUser(app.DB, app.Enforcer, args[0], userEmail, password, userRole)
	if err != nil {
		return err
	}
	fmt.Printf("Created user %s (%s) with role %s\n", user.Username, user.ID, userRole)
	return nil
}
