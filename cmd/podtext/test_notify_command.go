package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podtext/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" {
				return errors.New("notifications: ntfy_topic is not configured")
			}
			service := notifications.NewService(
				cfg.Notifications.NtfyTopic,
				time.Duration(cfg.Notifications.RequestTimeout)*time.Second,
			)
			if err := service.TestNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
