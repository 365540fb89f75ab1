package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/bz888/quill/internal/completion"
	"github.com/bz888/quill/internal/config"
	"github.com/bz888/quill/internal/logger"
	"github.com/bz888/quill/internal/persist"
	"github.com/bz888/quill/internal/session"
	"github.com/bz888/quill/internal/ui"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "quill",
		Short:         "Chat with a completion API from the terminal, saving every turn",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load(".env")
			config.SetDefaults(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (toml, yaml or json)")
	flags.String("api-url", "", "chat completions endpoint")
	flags.String("model", "", "model name sent with every request")
	flags.Int("max-tokens", 0, "maximum tokens per reply")
	flags.Float64("temperature", 0, "sampling temperature, negative to omit")
	flags.String("timeout", "", "request timeout, e.g. 30s")
	flags.String("transcript-dir", "", "directory for new conversation files")
	flags.Bool("dev", false, "development mode")
	flags.String("log-path", "", "directory to save the log file in")

	for key, name := range map[string]string{
		config.KeyConfig:        "config",
		config.KeyAPIURL:        "api-url",
		config.KeyModel:         "model",
		config.KeyMaxTokens:     "max-tokens",
		config.KeyTemperature:   "temperature",
		config.KeyTimeout:       "timeout",
		config.KeyTranscriptDir: "transcript-dir",
		config.KeyDev:           "dev",
		config.KeyLogPath:       "log-path",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "print-config",
		Short: "Print a sample .env",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), config.SampleEnv)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	return rootCmd
}

func run(cfg config.Config) error {
	client := completion.New(cfg.Completion())
	view := ui.New(client.Model(), cfg.Dev)

	if err := logger.InitLogger(cfg.Dev, cfg.LogPath, view.DebugConsole()); err != nil {
		return err
	}
	defer logger.Close()

	s := session.New(session.Options{
		Completer: client,
		View:      view,
		Post:      view.Post,
		Target:    persist.DefaultTarget(cfg.TranscriptDir, time.Now()),
	})
	view.Attach(s)

	if err := client.Ready(); err != nil {
		view.AppendNotice("No API key configured. Set QUILL_API_KEY or OPENAI_API_KEY to start chatting.")
	}

	logger.NewLogger("cmd").
		WithField("model", client.Model()).
		WithField("snapshot", s.Target().Snapshot).
		Info("starting")
	return view.Run()
}

func Execute() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
