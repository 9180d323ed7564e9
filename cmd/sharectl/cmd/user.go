package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/templui/sharebox/internal/repository"
	"github.com/templui/sharebox/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

// UserCmd recovers accounts without going through the API, e.g. when the
// only administrator has been locked out.
func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Account recovery",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "unblock <username>",
		Short: "Unblock an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			users := repository.NewUserRepository(database)
			user, err := users.ByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			err = users.SetBlocked(cmd.Context(), user.ID, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unblocked %s\n", user.Username)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset-password <username>",
		Short: "Set a new password (read from SHAREBOX_NEW_PASSWORD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("SHAREBOX_NEW_PASSWORD")
			if password == "" {
				return errors.New("SHAREBOX_NEW_PASSWORD is not set")
			}
			err := validation.ValidatePassword(password)
			if err != nil {
				return err
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			database, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			users := repository.NewUserRepository(database)
			user, err := users.ByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			err = users.UpdatePassword(cmd.Context(), user.ID, string(hash))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", user.Username)
			return nil
		},
	})

	return cmd
}
