package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"handspeak/core"
	"handspeak/factories"
)

const envPrefix = "HANDSPEAK"

var rootCmd = &cobra.Command{
	Use:   "handspeak",
	Short: "Gesture to speech for wearable motion sensors",
	Long: `handspeak - turns a wearable's motion stream into spoken sentences.

Devices connect over WebSocket and stream accelerometer, gravity, gyroscope
and orientation readings. Windows of readings are classified into words,
words are assembled into sentences, and finished sentences are rewritten in
the selected tone and spoken aloud.

Configuration is read from settings.yaml (or the file given by --config).
Every setting can be overridden with a HANDSPEAK_ environment variable, and
credentials are read from the usual provider variables, e.g.
ELEVENLABS_API_KEY or GEMINI_API_KEY. A .env.local file is loaded first.

Examples:
  handspeak
  handspeak serve --config settings.yaml --device-addr :19305
  handspeak history watch-01 --format json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "settings file (yaml or json)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("data-dir", "", "override data_dir from the settings file")
	addServeFlags(rootCmd)

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		core.GetLogger().With(map[string]any{"error": err}).Warn("failed to load .env.local")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Provider credentials keep their conventional names.
	for key, env := range map[string]string{
		"elevenlabs_api_key": "ELEVENLABS_API_KEY",
		"gemini_api_key":     "GEMINI_API_KEY",
		"openai_api_key":     "OPENAI_API_KEY",
		"groq_api_key":       "GROQ_API_KEY",
		"together_api_key":   "TOGETHER_API_KEY",
		"deepseek_api_key":   "DEEPSEEK_API_KEY",
		"openrouter_api_key": "OPENROUTER_API_KEY",
		"mistral_api_key":    "MISTRAL_API_KEY",
	} {
		_ = viper.BindEnv(key, env)
	}

	core.SetLevel(viper.GetString("log_level"))
}

// loadSettings reads the settings file, then applies flag and environment
// overrides. A missing default file is not an error.
func loadSettings() (factories.SettingsConfig, error) {
	settings, err := readSettings()
	if err != nil {
		return settings, err
	}

	if dir := viper.GetString("data_dir"); dir != "" {
		settings.DataDir = dir
	}
	if addr := viper.GetString("events_addr"); addr != "" {
		settings.EventsAddr = addr
	}
	if addr := viper.GetString("device_addr"); addr != "" && settings.Transport.WebSocketConfig != nil {
		settings.Transport.WebSocketConfig.Addr = addr
	}
	if dir := viper.GetString("log_dir"); dir != "" {
		settings.LogDir = dir
	}
	if secs := viper.GetInt("session_timeout_seconds"); secs > 0 {
		settings.SessionTimeoutSeconds = secs
	}
	return settings, nil
}

func readSettings() (factories.SettingsConfig, error) {
	logger := core.GetLogger()

	if b64 := viper.GetString("settings_json_b64"); b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return factories.DefaultSettingsConfig(), fmt.Errorf("decode %s_SETTINGS_JSON_B64: %w", envPrefix, err)
		}
		logger.Info("loaded settings from environment")
		return factories.SettingsConfigFromJSON(data)
	}

	if path := viper.GetString("config"); path != "" {
		return factories.SettingsConfigFromFile(path)
	}

	for _, path := range []string{"settings.yaml", "settings.yml", "settings.json"} {
		if _, err := os.Stat(path); err == nil {
			logger.With(map[string]any{"path": path}).Info("loading settings")
			return factories.SettingsConfigFromFile(path)
		}
	}
	logger.Warn("no settings file found, using defaults")
	return factories.DefaultSettingsConfig(), nil
}

func loadAPIKeys() factories.APIKeys {
	return factories.APIKeys{
		ElevenLabs: viper.GetString("elevenlabs_api_key"),
		Gemini:     viper.GetString("gemini_api_key"),
		OpenAI:     viper.GetString("openai_api_key"),
		Groq:       viper.GetString("groq_api_key"),
		Together:   viper.GetString("together_api_key"),
		DeepSeek:   viper.GetString("deepseek_api_key"),
		OpenRouter: viper.GetString("openrouter_api_key"),
		Mistral:    viper.GetString("mistral_api_key"),
		BackendURL: viper.GetString("backend_url"),
	}
}
