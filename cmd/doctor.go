package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/cuecard/internal/config"
	"github.com/arin/cuecard/internal/session"
)

const lowDiskBytes = 100 << 20

var doctorOnline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, credentials and the chats directory",
	Long: `Run a health check on your cuecard setup.
Verifies the config file, the active provider's credential, the chats
directory (writable, free space) and, with --online, that the provider API
answers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan, color.Bold)

		cyan.Fprintf(os.Stderr, "\n  cuecard doctor\n\n")

		pass, fail, warn := 0, 0, 0

		check := func(name string, fn func() (string, error)) {
			detail, err := fn()
			if err != nil {
				if strings.HasPrefix(err.Error(), "warn:") {
					yellow.Fprintf(os.Stderr, "  ⚠ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", strings.TrimPrefix(err.Error(), "warn:"))
					warn++
				} else {
					red.Fprintf(os.Stderr, "  ✗ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", err.Error())
					fail++
				}
			} else {
				green.Fprintf(os.Stderr, "  ✓ %s", name)
				if detail != "" {
					dim.Fprintf(os.Stderr, " (%s)", detail)
				}
				fmt.Fprintln(os.Stderr)
				pass++
			}
		}

		// 1. Config file
		check("Config file", func() (string, error) {
			path := config.Path()
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("warn:%s not found; defaults are in use", path)
			}
			var probe map[string]any
			if _, err := toml.DecodeFile(path, &probe); err != nil {
				return "", fmt.Errorf("%s is not valid TOML: %v", path, err)
			}
			return path, nil
		})

		cfg, err := config.Load()
		if err != nil {
			red.Fprintf(os.Stderr, "  ✗ Configuration\n")
			dim.Fprintf(os.Stderr, "    %v\n\n", err)
			return nil
		}

		// 2. Credential
		check(fmt.Sprintf("API key for %s", cfg.Provider), func() (string, error) {
			if strings.TrimSpace(cfg.APIKey()) == "" {
				return "", errors.New(credentialHint(cfg))
			}
			return maskKey(cfg.APIKey()), nil
		})

		// 3. Model
		check("Model", func() (string, error) {
			return cfg.ActiveModel(), nil
		})

		// 4. Chats directory
		dir := cfg.SessionsDir()
		d := session.Diagnose(dir)
		check("Chats directory writable", func() (string, error) {
			if !cfg.SaveChatsLocally() {
				return "", fmt.Errorf("warn:save_chats_locally is off; chats are not kept")
			}
			if !d.ParentWritable {
				return "", fmt.Errorf("cannot write to %s", dir)
			}
			return dir, nil
		})

		// 5. Free space
		check("Free disk space", func() (string, error) {
			if d.FreeBytes < 0 {
				return "", fmt.Errorf("warn:could not determine free space for %s", dir)
			}
			if d.FreeBytes < lowDiskBytes {
				return "", fmt.Errorf("warn:only %s free", humanBytes(d.FreeBytes))
			}
			return humanBytes(d.FreeBytes), nil
		})

		// 6. Provider reachable
		if doctorOnline {
			check("Provider API reachable", func() (string, error) {
				host := "https://generativelanguage.googleapis.com"
				if cfg.Provider == config.ProviderOpenAI {
					host = "https://api.openai.com"
				}
				client := &http.Client{Timeout: 5 * time.Second}
				resp, err := client.Get(host)
				if err != nil {
					return "", fmt.Errorf("could not connect to %s", host)
				}
				resp.Body.Close()
				return host, nil
			})
		}

		// 7. OS and arch
		check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s, cuecard %s", runtime.GOOS, runtime.GOARCH, version), nil
		})

		// Summary
		fmt.Fprintln(os.Stderr)
		total := pass + fail + warn
		if fail == 0 && warn == 0 {
			green.Fprintf(os.Stderr, "  All %d checks passed. You're good to go.\n\n", total)
		} else if fail == 0 {
			yellow.Fprintf(os.Stderr, "  %d passed, %d warnings. Everything works, but some things could be better.\n\n", pass, warn)
		} else {
			red.Fprintf(os.Stderr, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", pass, fail, warn)
		}

		return nil
	},
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOnline, "online", false, "Also check that the provider API is reachable")
}
