package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/review-routing/internal/scoring"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 20 * 1024 * 1024 // 20MB per artifact

	// EnvPrefix prefixes every environment variable
	EnvPrefix = "REVIEW_ROUTING"
)

// Config holds all configuration for the review-routing server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// ArtifactDirectory is the root holding page artifact directories
	ArtifactDirectory string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum artifact size in bytes

	// Scoring configuration
	LowOCRConf           float64
	MinValueLength       int
	FieldReviewThreshold float64
	RowReviewThreshold   float64
	RecordType           string            // overrides the detected record type when set
	RulesFile            string            // optional YAML rule set
	ColumnMap            map[string]string // table column key -> field name
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:                 ModeStdio, // stdio is what MCP clients launch
		Host:                 DefaultHost,
		Port:                 DefaultPort,
		ArtifactDirectory:    currentDir,
		Version:              "1.0.0",
		ServerName:           "review-routing",
		LogLevel:             DefaultLogLevel,
		MaxFileSize:          DefaultMaxFileSize,
		LowOCRConf:           scoring.DefaultLowOCRConfThreshold,
		MinValueLength:       scoring.DefaultMinValueLength,
		FieldReviewThreshold: scoring.DefaultFieldReviewThreshold,
		RowReviewThreshold:   scoring.DefaultRowReviewThreshold,
		ColumnMap:            map[string]string{},
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	if err := populateConfigFromViper(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.ArtifactDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.ArtifactDirectory); err == nil {
			cfg.ArtifactDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.ArtifactDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("lowocrconf", cfg.LowOCRConf)
	viper.SetDefault("minvaluelength", cfg.MinValueLength)
	viper.SetDefault("fieldreview", cfg.FieldReviewThreshold)
	viper.SetDefault("rowreview", cfg.RowReviewThreshold)
	viper.SetDefault("recordtype", cfg.RecordType)
	viper.SetDefault("rules", cfg.RulesFile)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for long-running server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.ArtifactDirectory, "Artifact root containing page directories")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum artifact file size in bytes")

	pflag.Float64("lowocrconf", cfg.LowOCRConf, "OCR confidence below which LOW_OCR_CONF fires")
	pflag.Int("minvaluelength", cfg.MinValueLength, "Character count below which SHORT_VALUE fires")
	pflag.Float64("fieldreview", cfg.FieldReviewThreshold, "Field score below which a field needs review")
	pflag.Float64("rowreview", cfg.RowReviewThreshold, "Row score below which a row needs review")
	pflag.String("recordtype", cfg.RecordType, "Record type override (baptism, marriage, funeral, ...)")
	pflag.String("rules", cfg.RulesFile, "YAML file with required fields, date fields and column map")
	pflag.StringToString("columnmap", nil, "Table column to field mapping, e.g. name=child_name,born=date_of_birth")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "dir", "loglevel", "maxfilesize",
		"lowocrconf", "minvaluelength", "fieldreview", "rowreview",
		"recordtype", "rules", "columnmap",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nReview Routing - scores OCR'd register pages and recommends review routing\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                        "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/data/ocr                        "+
			"# stdio mode with custom artifact root\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --rules=rules.yaml --recordtype=baptism "+
			"# custom rules, forced record type\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --columnmap=name=child_name             "+
			"# map table columns to fields\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, key := range []string{
			"MODE", "HOST", "PORT", "DIR", "LOGLEVEL", "MAXFILESIZE",
			"LOWOCRCONF", "MINVALUELENGTH", "FIELDREVIEW", "ROWREVIEW",
			"RECORDTYPE", "RULES", "COLUMNMAP",
		} {
			fmt.Fprintf(os.Stderr, "  %s_%s\n", EnvPrefix, key)
		}
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) error {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.ArtifactDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")

	cfg.LowOCRConf = viper.GetFloat64("lowocrconf")
	cfg.MinValueLength = viper.GetInt("minvaluelength")
	cfg.FieldReviewThreshold = viper.GetFloat64("fieldreview")
	cfg.RowReviewThreshold = viper.GetFloat64("rowreview")
	cfg.RecordType = strings.TrimSpace(viper.GetString("recordtype"))
	cfg.RulesFile = viper.GetString("rules")

	columnMap, err := parseColumnMap(viper.Get("columnmap"))
	if err != nil {
		return err
	}
	cfg.ColumnMap = columnMap
	return nil
}

// parseColumnMap accepts the flag's map form or the "col=field,..." string
// form used in environment variables
func parseColumnMap(v any) (map[string]string, error) {
	out := map[string]string{}
	switch m := v.(type) {
	case nil:
	case map[string]string:
		for k, val := range m {
			out[k] = val
		}
	case map[string]any:
		for k, val := range m {
			out[k] = fmt.Sprint(val)
		}
	case string:
		m = strings.Trim(strings.TrimSpace(m), "[]")
		if m == "" {
			break
		}
		for _, pair := range strings.Split(m, ",") {
			col, field, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || col == "" || field == "" {
				return nil, fmt.Errorf("invalid column mapping %q (want column=field)", pair)
			}
			out[col] = field
		}
	default:
		return nil, fmt.Errorf("invalid column map of type %T", v)
	}
	return out, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port only matters in server mode
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.ArtifactDirectory == "" {
		return errors.New("artifact directory cannot be empty")
	}

	// The directory may not exist yet; pipelines create it on first output
	if _, err := os.Stat(c.ArtifactDirectory); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot access artifact directory %s: %w", c.ArtifactDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"lowocrconf", c.LowOCRConf},
		{"fieldreview", c.FieldReviewThreshold},
		{"rowreview", c.RowReviewThreshold},
	}
	for _, th := range thresholds {
		if th.value < 0 || th.value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", th.name, th.value)
		}
	}

	if c.MinValueLength < 0 {
		return errors.New("minvaluelength cannot be negative")
	}

	return nil
}

// ScoringOptions builds the scoring options, loading the rule file if one
// is configured
func (c *Config) ScoringOptions() (scoring.Options, error) {
	opts := scoring.DefaultOptions()
	// An explicit 0 in the configuration switches the check off; in
	// scoring.Options a zero would mean "use the default"
	opts.LowOCRConfThreshold = zeroDisables(c.LowOCRConf)
	opts.MinValueLength = int(zeroDisables(float64(c.MinValueLength)))
	opts.FieldReviewThreshold = zeroDisables(c.FieldReviewThreshold)
	opts.RowReviewThreshold = zeroDisables(c.RowReviewThreshold)
	opts.RecordType = c.RecordType

	rules := scoring.DefaultRuleSet()
	if c.RulesFile != "" {
		f, err := os.Open(c.RulesFile)
		if err != nil {
			return scoring.Options{}, fmt.Errorf("cannot open rules file: %w", err)
		}
		defer f.Close()

		rules, err = scoring.LoadRuleSet(f)
		if err != nil {
			return scoring.Options{}, fmt.Errorf("rules file %s: %w", c.RulesFile, err)
		}
	}
	if len(c.ColumnMap) > 0 {
		rules = rules.WithColumnMap(c.ColumnMap)
	}
	opts.Rules = rules

	return opts, nil
}

func zeroDisables(v float64) float64 {
	if v == 0 {
		return scoring.Disabled
	}
	return v
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, ArtifactDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"LowOCRConf: %v, MinValueLength: %d, FieldReview: %v, RowReview: %v, RecordType: %q, Rules: %q, ColumnMap: %s}",
		c.Mode, c.Host, c.Port, c.ArtifactDirectory, c.LogLevel, c.MaxFileSize,
		c.LowOCRConf, c.MinValueLength, c.FieldReviewThreshold, c.RowReviewThreshold,
		c.RecordType, c.RulesFile, formatColumnMap(c.ColumnMap))
}

func formatColumnMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+m[k])
	}
	return "[" + strings.Join(pairs, ",") + "]"
}

// IsServerMode returns true if the server is running in server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
