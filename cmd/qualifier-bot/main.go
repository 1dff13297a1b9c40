package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/bot"
	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/config"
	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/prompt"
	"github.com/Hash-if-vs/Qualifier-voice-bot/internal/session"
	_ "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin/deepgram"
	_ "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin/elevenlabs"
	_ "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin/fake"
	_ "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin/openai"
	_ "github.com/Hash-if-vs/Qualifier-voice-bot/pkg/plugin/silero"
	"github.com/Hash-if-vs/Qualifier-voice-bot/pkg/version"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	v       = config.NewViper()
	envFile string
	cur     *app
)

// app is the state shared by every subcommand, built once flags are parsed.
type app struct {
	settings   *config.Settings
	logger     *slog.Logger
	store      *config.Store
	dispatcher *bot.Dispatcher
}

// runner wires the process environment into a job runner for the selected
// bot type.
func (a *app) runner() *session.Runner {
	return &session.Runner{
		Store:      a.store,
		Dispatcher: a.dispatcher,
		Assembler:  session.NewAssembler(os.Getenv, a.logger),
		BotType:    a.settings.BotType,
		LiveKit: session.LiveKit{
			URL:       os.Getenv("LIVEKIT_URL"),
			APIKey:    os.Getenv("LIVEKIT_API_KEY"),
			APISecret: os.Getenv("LIVEKIT_API_SECRET"),
			Codec:     a.settings.AudioCodec,
		},
		Logger: a.logger,
	}
}

var rootCmd = &cobra.Command{
	Use:   version.Name,
	Short: "Voice bot that qualifies leads with scripted yes/no questions",
	Long: `qualifier-bot joins LiveKit rooms and runs a short qualification call:
it greets the caller, asks the configured questions one at a time and closes
with a success or failure message.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}
	if cmd.Name() == "dev" {
		v.SetDefault(config.KeyLogLevel, "debug")
		v.SetDefault(config.KeyLogFormat, "console")
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	settings, err := config.LoadSettings(v)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, settings.LogLevel, settings.LogFormat)
	slog.SetDefault(logger)

	store := config.NewStore(settings.ConfigPath)
	cur = &app{
		settings:   settings,
		logger:     logger,
		store:      store,
		dispatcher: bot.NewDispatcher(store, prompt.NewRenderer(settings.PromptsDir), bot.WithLogger(logger)),
	}
	return nil
}

// loadEnvFile reads KEY=value pairs into the environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, ok := logLevels[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
	}

	if format == "console" {
		return slog.New(tint.NewHandler(w, &tint.Options{Level: lvl, TimeFormat: time.Kitchen}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// botTypeFromArgs finds --bot-type ahead of normal flag parsing so the value
// is exported before anything reads BOT_TYPE.
func botTypeFromArgs(args []string) (string, bool) {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if value, ok := strings.CutPrefix(arg, "--bot-type="); ok {
			return value, true
		}
		if arg == "--bot-type" && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded at startup")
	pf.String("bot-type", "", "bot configuration to run (env BOT_TYPE), defaults to defaults.bot_type in the bots file or "+config.DefaultBotType)
	pf.String("config", v.GetString(config.KeyConfig), "bots YAML file (env QUALIFIER_CONFIG)")
	pf.String("prompts-dir", "", "prompt template directory, defaults to <config dir>/prompts")
	pf.String("log-level", "info", "debug, info, warn or error (env LOG_LEVEL)")
	pf.String("log-format", "json", "json or console (env LOG_FORMAT)")

	rootCmd.AddCommand(versionCmd, startCmd, devCmd, consoleCmd, validateCmd, promptCmd,
		transcribeCmd, speakCmd, tokenCmd, pluginCmd)
}

func main() {
	if botType, ok := botTypeFromArgs(os.Args[1:]); ok {
		os.Setenv("BOT_TYPE", botType)
	}

	if err := rootCmd.Execute(); err != nil {
		if kind, ok := startupError(err); ok {
			slog.Error(kind, slog.String("error", err.Error()))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// startupError names the errors that mean the bot cannot be set up as
// configured.
func startupError(err error) (string, bool) {
	var tmplErr *prompt.TemplateNotFoundError
	switch {
	case config.IsConfigurationError(err):
		return "configuration error", true
	case errors.As(err, &tmplErr):
		return "prompt template not found", true
	}
	return "", false
}
