package commands

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tgstate/internal/app"
	"tgstate/internal/config"
	"tgstate/internal/logging"
	"tgstate/internal/prompt"
)

var (
	configFile string
	appCtx     *app.App
	terminal   *prompt.Terminal
)

// flagKeys maps CLI flags to their configuration keys.
var flagKeys = map[string]string{
	"home":       "home",
	"phone":      "phone",
	"test":       "test_mode",
	"accept":     "accept_secret_chats",
	"auth-url":   "auth_url",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// Execute runs the CLI. Cancelling ctx stops a running login cleanly.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:          "tgstate",
		Short:        "Messaging client state: login, shard keys and secret chats",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var opts []config.Option
			if configFile != "" {
				opts = append(opts, config.WithConfigFile(configFile))
			}
			cfg, err := config.NewLoader(opts...).Load(changedFlags(cmd.Flags()))
			if err != nil {
				return err
			}

			log := logging.New(logging.Config{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: cmd.ErrOrStderr(),
			})
			terminal = prompt.New(os.Stdin, cmd.ErrOrStderr())

			appCtx, err = app.NewApp(cfg, app.Options{Logger: log, Prompter: terminal})
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default <home>/config.yaml)")
	pf.String("home", "", "state directory root (default ~/.tgstate)")
	pf.String("phone", "", "account phone number; selects <home>/<phone>")
	pf.Bool("test", false, "use the test environment shards")
	pf.String("accept", "", "secret chat requests: always, ask or never")
	pf.String("auth-url", "", "authorization server base URL")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "text or json")

	root.AddCommand(loginCmd(), statusCmd(), secretsCmd(), flushCmd(), backupCmd(), restoreCmd())
	return root.ExecuteContext(ctx)
}

// changedFlags returns only the flags the user set, keyed for the loader.
func changedFlags(fs *pflag.FlagSet) map[string]any {
	out := make(map[string]any)
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if f.Value.Type() == "bool" {
			out[key] = f.Value.String() == "true"
			return
		}
		out[key] = f.Value.String()
	})
	return nestKeys(out)
}

// nestKeys turns "log.level" style keys into nested maps.
func nestKeys(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		parent, child, ok := strings.Cut(k, ".")
		if !ok {
			out[k] = v
			continue
		}
		m, _ := out[parent].(map[string]any)
		if m == nil {
			m = make(map[string]any)
			out[parent] = m
		}
		m[child] = v
	}
	return out
}
