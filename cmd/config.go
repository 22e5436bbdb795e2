package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arin/cuecard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage cuecard configuration",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <gemini|openai> <api-key>",
	Short: "Set the API key for a provider",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIKey(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to save API key: %w", err)
		}
		fmt.Printf("API key for %s saved.\n", args[0])
		return nil
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model <model-name>",
	Short: "Set the model (default: gemini-2.0-flash or gpt-4o-mini)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetModel(args[0]); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		fmt.Printf("Model set to %s.\n", args[0])
		return nil
	},
}

var setProviderCmd = &cobra.Command{
	Use:   "set-provider <gemini|openai>",
	Short: "Choose the AI provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetProvider(args[0]); err != nil {
			return fmt.Errorf("failed to save provider: %w", err)
		}
		fmt.Printf("Provider set to %s.\n", args[0])
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set any config key (e.g. save_chats_locally false)",
	Long: `Set a config key by its name in config.toml.

Keys: provider, model, save_chats_locally, show_transcription_viewer,
chats_dir, log_level, request_timeout, resource_timeout, system_prompt,
temperature (0-2, or "default" to clear)`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to save %s: %w", args[0], err)
		}
		fmt.Printf("%s set to %s.\n", args[0], args[1])
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		request, resource := cfg.Timeouts()
		fmt.Printf("Provider:    %s\n", cfg.Provider)
		fmt.Printf("Model:       %s\n", cfg.ActiveModel())
		fmt.Printf("Gemini Key:  %s\n", maskKey(cfg.GeminiAPIKey))
		fmt.Printf("OpenAI Key:  %s\n", maskKey(cfg.OpenAIAPIKey))
		fmt.Printf("Save Chats:  %t\n", cfg.SaveChatsLocally())
		fmt.Printf("Transcript:  %t\n", cfg.ShowTranscript)
		fmt.Printf("Chats Dir:   %s\n", cfg.SessionsDir())
		fmt.Printf("Timeouts:    %s request, %s resource\n", request, resource)
		if cfg.Temperature != nil {
			fmt.Printf("Temperature: %g\n", *cfg.Temperature)
		}
		if cfg.SystemPrompt != "" {
			fmt.Printf("Prompt:      custom (%d chars)\n", len(cfg.SystemPrompt))
		}
		fmt.Printf("Config File: %s\n", config.Path())
		return nil
	},
}

// maskKey shows only the ends of a credential.
func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return "****"
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}

func init() {
	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(setProviderCmd)
	configCmd.AddCommand(setCmd)
	configCmd.AddCommand(showCmd)
}
