package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/database"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/security"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage operator accounts",
	}

	var (
		email    string
		name     string
		role     string
		password string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an operator account",
		Long: `Create an operator account that must change its password on first login.

When --password is omitted a random initial password is generated and printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			generated := false
			if password == "" {
				p, err := generatePassword()
				if err != nil {
					return err
				}
				password = p
				generated = true
			}
			if err := security.ValidatePassword(password); err != nil {
				return err
			}

			admin, err := models.NewAdminUser(email, name, password, role)
			if err != nil {
				return fmt.Errorf("invalid admin: %w", err)
			}

			db := database.SetupDatabase(cfg.DB)
			repo := repository.NewFactory(db).GetAdminUserRepository()
			if err := repo.Create(context.Background(), admin); err != nil {
				if errors.Is(err, repository.ErrAlreadyExists) {
					return fmt.Errorf("an admin with email %s already exists", admin.Email)
				}
				return err
			}

			fmt.Printf("Created %s %s (id %d)\n", admin.Role, admin.Email, admin.ID)
			if generated {
				fmt.Printf("Initial password: %s\n", password)
			}
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&role, "role", models.ROLE_ADMIN, "super_admin, admin or moderator")
	create.Flags().StringVar(&password, "password", "", "initial password (generated when empty)")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}

// generatePassword returns a random password that satisfies the policy.
func generatePassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf) + "aZ9!", nil
}
