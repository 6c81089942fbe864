package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/expansion-evaluator/internal/collector"
	"github.com/spigell/expansion-evaluator/internal/evaluator"
	"github.com/spigell/expansion-evaluator/internal/knowledge"
	"github.com/spigell/expansion-evaluator/internal/matching"
)

const (
	app       = "expansion-evaluator"
	envPrefix = "EVALUATOR"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Collector  collector.Config `mapstructure:"collector"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge"`
	AI         *AIConfig        `mapstructure:"ai"`
}

type ServerConfig struct {
	Listen         string `mapstructure:"listen"`
	AdminToken     string `mapstructure:"admin-token"`
	AdminTokenFile string `mapstructure:"admin-token-file"`
	PublicDetails  bool   `mapstructure:"public-details"`
}

type EvaluationConfig struct {
	Timeout  time.Duration   `mapstructure:"timeout"`
	Matching matching.Config `mapstructure:",squash"`
}

type KnowledgeConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}
	if c.Evaluation.Timeout <= 0 {
		return fmt.Errorf("evaluation.timeout must be positive, got %s", c.Evaluation.Timeout)
	}
	if err := c.Evaluation.Matching.Validate(); err != nil {
		return fmt.Errorf("evaluation: %w", err)
	}
	if err := c.Collector.Validate(); err != nil {
		return err
	}
	if c.Knowledge.Enabled && strings.TrimSpace(c.Knowledge.Path) == "" {
		return errors.New("knowledge.path is required when the knowledge base is enabled")
	}
	if c.AI != nil && c.AI.Enabled {
		provider := strings.ToLower(strings.TrimSpace(c.AI.Provider))
		if provider != "" && provider != "gemini" {
			return fmt.Errorf("unsupported ai provider: %s", c.AI.Provider)
		}
		if c.AI.Gemini == nil {
			return errors.New("ai.gemini is required when ai is enabled")
		}
	}
	return nil
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "expansion-evaluator decides whether an expansion storefront qualifies as an extension of a main store",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is expansion-evaluator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":5001")
	v.SetDefault("evaluation.timeout", evaluator.DefaultTimeout)
	v.SetDefault("evaluation.fuzzy-threshold", matching.DefaultFuzzyThreshold)
	v.SetDefault("evaluation.minimum-matches", matching.DefaultMinimumMatches)
	v.SetDefault("collector.timeout", collector.DefaultTimeout)
	v.SetDefault("collector.max-retries", collector.DefaultMaxRetries)
	v.SetDefault("collector.max-products", collector.DefaultMaxProducts)
	v.SetDefault("collector.user-agent", collector.DefaultUserAgent)
	v.SetDefault("knowledge.path", "knowledge.db")
	v.SetDefault("knowledge.ttl", knowledge.DefaultTTL)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.max-log-length", 500)

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	for _, key := range []string{
		"server.admin-token", "server.admin-token-file", "collector.chrome-path",
		"ai.gemini.api-key", "ai.gemini.api-key-file", "ai.gemini.model",
	} {
		v.SetDefault(key, "")
	}
	for _, key := range []string{"server.public-details", "collector.render-js", "knowledge.enabled", "ai.enabled"} {
		v.SetDefault(key, false)
	}
}

// bindEnv makes every key overridable as EVALUATOR_<SECTION>_<KEY>, e.g.
// EVALUATOR_EVALUATION_FUZZY_THRESHOLD.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	setDefaults(viper.GetViper())
	bindEnv(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// The file is optional unless it was asked for explicitly.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	return loadConfig(viper.GetViper())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
