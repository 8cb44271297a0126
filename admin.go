package main

import (
	"errors"
	"fmt"

	"campusvote/config"
	"campusvote/db"
	"campusvote/models"
	"campusvote/routes"

	"github.com/spf13/cobra"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			logger := commonRun(cfg)
			conn, err := db.Open(cfg.Database)
			if err != nil {
				return err
			}
			if sqlDB, err := conn.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := db.Migrate(conn); err != nil {
				return err
			}
			logger.Info("database schema is up to date", "driver", cfg.Database.Driver)
			return nil
		},
	}
}

func createAdminCommand() *cobra.Command {
	var req models.AdminRequest
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, typically the first superadmin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			logger := commonRun(cfg)
			if req.Role != models.RoleAdmin && req.Role != models.RoleSuperAdmin {
				return fmt.Errorf("invalid role %q", req.Role)
			}
			admin, err := routes.NewAdmin(req)
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.Database)
			if err != nil {
				return err
			}
			if sqlDB, err := conn.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := db.Migrate(conn); err != nil {
				return err
			}
			if err := conn.WithContext(cmd.Context()).Create(admin).Error; err != nil {
				return fmt.Errorf("failed to create admin: %w", err)
			}
			logger.Info("admin created", "id", admin.ID, "username", admin.Username, "role", admin.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "login name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&req.Role, "role", models.RoleSuperAdmin, "admin or superadmin")
	for _, name := range []string{"username", "email", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
