package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/sonantlabs/sonant/internal/config"
	"github.com/sonantlabs/sonant/internal/gateway"
	"github.com/sonantlabs/sonant/internal/memory"
)

var rootCmd = &cobra.Command{
	Use:   "sonant",
	Short: "sonant - community companion bot with voice",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway (channels + responder + voice + retention)",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directories",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sonant status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(serveCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w (run 'sonant onboard' or set SONANT_API_KEY)", err)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(filepath.Join(cfgDir, "data"), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key and Discord token\n", cfgPath)
	fmt.Println("  2. Or set SONANT_API_KEY and SONANT_DISCORD_TOKEN")
	fmt.Println("  3. Run 'sonant serve' to start the bot")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Model: %s\n", cfg.Provider.Model)
	fmt.Printf("TTS voice: %s (%s)\n", cfg.TTS.Voice, cfg.TTS.Format)
	fmt.Printf("API Key: %s\n", maskKey(cfg.Provider.APIKey))
	fmt.Printf("Discord: enabled=%v\n", cfg.Discord.Enabled)
	fmt.Printf("Listening: %s (threshold %.2f)\n", cfg.Listening.DefaultMode, cfg.Listening.DefaultThreshold)

	store, err := memory.NewSQLiteStore(cfg.Store.DBPath)
	if err != nil {
		fmt.Printf("Store: error (%v)\n", err)
		return nil
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		fmt.Printf("Store: error (%v)\n", err)
		return nil
	}
	fmt.Printf("Store: %s\n", cfg.Store.DBPath)
	fmt.Printf("  Messages: %d (%d user / %d assistant)\n",
		stats.TotalMessages, stats.UserMessages, stats.AssistantMessages)
	fmt.Printf("  Known users: %d\n", stats.KnownUsers)
	for ch, n := range stats.MessagesByChannel {
		fmt.Printf("  Channel %s: %d\n", ch, n)
	}

	return nil
}

func maskKey(key string) string {
	switch {
	case key == "":
		return "not set"
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return "set"
	}
}
