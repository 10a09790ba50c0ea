package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pixelflow-proxy/internal/auth"
	"pixelflow-proxy/internal/config"
)

// uninstallCmd removes stored settings when the site opted in.
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove stored settings",
	Long: `Remove every stored PixelFlow record for the configured site and all
other sites in the store.

Nothing is removed unless the site's remove_on_uninstall option is on.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, _, closeStore, err := loadService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		removed, err := svc.Uninstall(cmd.Context())
		if err != nil {
			return fmt.Errorf("uninstall: %w", err)
		}
		if removed {
			fmt.Fprintln(cmd.OutOrStdout(), "settings removed")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "settings kept (remove_on_uninstall is off)")
		}
		return nil
	},
}

// nonceCmd issues an admin nonce for scripted admin-ajax calls.
var nonceCmd = &cobra.Command{
	Use:   "nonce",
	Short: "Issue an admin-ajax nonce",
	Long: `Issue a nonce carrying manage_options for the configured site.

The nonce is valid for ` + auth.NonceTTL.String() + ` and signed with NONCE_SECRET.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		subject, _ := cmd.Flags().GetString("subject")
		token, err := auth.NewNonces(cfg.Secrets.NonceSecret, cfg.SiteID).Issue(subject, auth.CapManageOptions)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

// hashKeyCmd prints the ADMIN_KEY_HASH value for a key.
var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <key>",
	Short: "Hash an admin key for ADMIN_KEY_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	nonceCmd.Flags().String("subject", "cli", "subject recorded in the nonce")
}
