/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/adminpanel/apiserver/config"
	"github.com/adminpanel/apiserver/internal/db"
	"github.com/adminpanel/apiserver/internal/services"
	"github.com/adminpanel/apiserver/internal/store"
	"github.com/spf13/cobra"
)

// userCmd represents the user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Operator account maintenance",
}

var promoteEmail string

var userPromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Grant the admin role to an existing account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.Database.Driver == "memory" {
			return errors.New("user promote needs the postgres driver")
		}
		logger := newLogger(cfg)

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		admin := services.NewAdminService(store.NewUserRepository(conn), services.WithAdminLogger(logger))
		if err := admin.Promote(cmd.Context(), promoteEmail); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", promoteEmail)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userPromoteCmd)

	userPromoteCmd.Flags().StringVar(&promoteEmail, "email", "", "email of the account to promote")
	_ = userPromoteCmd.MarkFlagRequired("email")
}
