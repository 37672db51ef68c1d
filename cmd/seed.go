package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planthub/authapi/config"
	"github.com/planthub/authapi/internal/auth"
	"github.com/planthub/authapi/internal/db"
	"github.com/planthub/authapi/internal/services"
	"github.com/planthub/authapi/internal/store"
)

// seedCmd creates the default administrator account.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default admin account if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn), auth.NewArgon2idHasher(), nil)
		admin, created, err := users.EnsureAdmin(cmd.Context(), cfg.Seed.AdminEmail, cfg.Seed.AdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if !created {
			logger.Info("admin account already exists", "email", admin.Email)
			return nil
		}
		logger.Info("admin account created", "email", admin.Email, "id", admin.ID)
		logger.Warn("change the default admin password after first login")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
