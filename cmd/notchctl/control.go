package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showOpts struct {
	screen string
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the overlay window",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Show(showOpts.screen); err != nil {
			return err
		}
		fmt.Println("shown")
		return nil
	},
}

var hideCmd = &cobra.Command{
	Use:   "hide",
	Short: "Hide the overlay window",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Hide(); err != nil {
			return err
		}
		fmt.Println("hidden")
		return nil
	},
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable the widget (persists across restarts)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Enable(); err != nil {
			return err
		}
		fmt.Println("enabled")
		return nil
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable the widget (persists across restarts)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Disable(); err != nil {
			return err
		}
		fmt.Println("disabled")
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a window destroy and recreate cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Refresh(); err != nil {
			return err
		}
		fmt.Println("refreshed")
		return nil
	},
}

var hoverCmd = &cobra.Command{
	Use:       "hover {on|off}",
	Short:     "Inject a raw hover transition (debugging)",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return client.HoverChanged(args[0] == "on")
	},
}

func init() {
	showCmd.Flags().StringVar(&showOpts.screen, "screen", "",
		"Screen to show on (default: automatic resolution)")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(hideCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(hoverCmd)
}
