package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/phrazzld/taskflow-api/internal/platform/chat"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the configured chat workspace",
	}

	var channel string
	send := &cobra.Command{
		Use:   "send [message...]",
		Short: "Post a plain message with the server's chat credentials",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			if !cfg.Chat.ChatDeliveryEnabled() {
				return errors.New("chat delivery is not configured (set TASKFLOW_CHAT_BOT_TOKEN or TASKFLOW_CHAT_WEBHOOK_URL)")
			}

			client, err := chat.NewClient(cfg.Chat, log)
			if err != nil {
				return err
			}
			msg := chat.Message{Channel: channel, Text: strings.Join(args, " ")}
			if err := client.Send(cmd.Context(), msg); err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "message sent")
			return nil
		},
	}
	send.Flags().StringVarP(&channel, "channel", "c", "", "target channel (defaults to the configured default channel)")

	chatCmd.AddCommand(send)
	return chatCmd
}
