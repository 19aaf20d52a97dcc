package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vhisper/vhisper-core/internal/bus"
	"github.com/vhisper/vhisper-core/internal/config"
	"github.com/vhisper/vhisper-core/internal/daemon"
)

func main() {
	_ = rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "vhisper",
	Short: "Voice transcription daemon and control CLI",
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		toggleCmd(),
		streamCmd(),
		cancelCmd(),
		statusCmd(),
		versionCmd(),
		stopCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; credentials may come from config or env
			if err := godotenv.Load(); err == nil {
				log.Printf("vhisper: loaded credentials from .env")
			}

			cfg, err := config.Load()
			if errors.Is(err, config.ErrConfigNotFound) {
				log.Printf("vhisper: no config file, using defaults")
				cfg = config.DefaultConfig()
			} else if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			return daemon.New(config.NewManager(cfg)).Run()
		},
	}
}

func toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Toggle recording on/off",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdToggle)
			if err != nil {
				return fmt.Errorf("failed to toggle recording: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func streamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream",
		Short: "Toggle live streaming transcription on/off",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdToggleStream)
			if err != nil {
				return fmt.Errorf("failed to toggle streaming: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdCancel)
			if err != nil {
				return fmt.Errorf("failed to cancel: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get current daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdStatus)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Get protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdVersion)
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdQuit)
			if err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}
