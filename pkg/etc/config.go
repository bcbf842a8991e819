package etc

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Config mirrors the inputs of the GitHub Action. GitHub exposes each input as an
// INPUT_<NAME> environment variable.
type Config struct {
	API        API
	Gate       Gate
	Input      Input
	Report     Report
	RedisStore RedisStore
	RedisPool  RedisPool
	Metrics    Metrics
}

type API struct {
	Token          string `env:"INPUT_API-TOKEN"`
	BaseURL        string `env:"INPUT_API-BASE-URL" envDefault:"https://geekwala.com"`
	RetryAttempts  int    `env:"INPUT_RETRY-ATTEMPTS" envDefault:"3"`
	TimeoutSeconds int    `env:"INPUT_TIMEOUT-SECONDS" envDefault:"300"`
}

func (c API) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type Gate struct {
	// FailOnCritical and FailOnHigh are superseded by SeverityThreshold when it is set.
	FailOnCritical    Flag   `env:"INPUT_FAIL-ON-CRITICAL" envDefault:"true"`
	FailOnHigh        Flag   `env:"INPUT_FAIL-ON-HIGH" envDefault:"false"`
	SeverityThreshold string `env:"INPUT_SEVERITY-THRESHOLD"`
	FailOnKEV         Flag   `env:"INPUT_FAIL-ON-KEV" envDefault:"false"`
	EPSSThreshold     string `env:"INPUT_EPSS-THRESHOLD"`
	OnlyFixed         Flag   `env:"INPUT_ONLY-FIXED" envDefault:"false"`
}

type Input struct {
	FilePath string `env:"INPUT_FILE-PATH"`
	// IgnoreFile set to an empty value disables ignore rules.
	IgnoreFile string `env:"INPUT_IGNORE-FILE" envDefault:".geekwala-ignore.yml"`
	Workspace  string `env:"GITHUB_WORKSPACE" envDefault:"."`
}

type Report struct {
	OutputFormat string `env:"INPUT_OUTPUT-FORMAT" envDefault:"summary"`
	SARIFFile    string `env:"INPUT_SARIF-FILE"`
	JSONFile     string `env:"INPUT_JSON-FILE"`
	GitHubOutput string `env:"GITHUB_OUTPUT"`
	StepSummary  string `env:"GITHUB_STEP_SUMMARY"`
}

type RedisStore struct {
	Namespace  string        `env:"GEEKWALA_STORE_REDIS_NAMESPACE" envDefault:"geekwala.scan:data-store"`
	ScanJobTTL time.Duration `env:"GEEKWALA_STORE_REDIS_SCAN_JOB_TTL" envDefault:"720h"`
}

type RedisPool struct {
	URL               string        `env:"GEEKWALA_REDIS_URL"`
	MaxActive         int           `env:"GEEKWALA_REDIS_POOL_MAX_ACTIVE" envDefault:"5"`
	MaxIdle           int           `env:"GEEKWALA_REDIS_POOL_MAX_IDLE" envDefault:"5"`
	IdleTimeout       time.Duration `env:"GEEKWALA_REDIS_POOL_IDLE_TIMEOUT" envDefault:"5m"`
	ConnectionTimeout time.Duration `env:"GEEKWALA_REDIS_POOL_CONNECTION_TIMEOUT" envDefault:"1s"`
	ReadTimeout       time.Duration `env:"GEEKWALA_REDIS_POOL_READ_TIMEOUT" envDefault:"1s"`
	WriteTimeout      time.Duration `env:"GEEKWALA_REDIS_POOL_WRITE_TIMEOUT" envDefault:"1s"`
}

// Enabled returns true when scan history should be recorded in Redis.
func (c RedisPool) Enabled() bool {
	return c.URL != ""
}

type Metrics struct {
	PushgatewayURL string `env:"GEEKWALA_METRICS_PUSHGATEWAY_URL"`
	Job            string `env:"GEEKWALA_METRICS_JOB" envDefault:"geekwala_scan"`
}

// Enabled returns true when metrics should be pushed at the end of a run.
func (c Metrics) Enabled() bool {
	return c.PushgatewayURL != ""
}

// Flag is a boolean input accepting true/1/yes and false/0/no.
type Flag bool

func (f *Flag) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "true", "1", "yes":
		*f = true
	case "false", "0", "no":
		*f = false
	default:
		return xerrors.Errorf("invalid boolean value: %q (expected true/false, yes/no or 1/0)", string(text))
	}
	return nil
}

func (f Flag) Bool() bool {
	return bool(f)
}

func GetLogLevel() logrus.Level {
	if value, ok := os.LookupEnv("GEEKWALA_LOG_LEVEL"); ok {
		level, err := logrus.ParseLevel(value)
		if err != nil {
			return logrus.InfoLevel
		}
		return level
	}
	if os.Getenv("RUNNER_DEBUG") == "1" {
		return logrus.DebugLevel
	}
	return logrus.InfoLevel
}

// LogFormat selects the logrus formatter.
type LogFormat string

const (
	LogFormatGitHub LogFormat = "github"
	LogFormatJSON   LogFormat = "json"
	LogFormatText   LogFormat = "text"
)

func GetLogFormat() LogFormat {
	switch format := LogFormat(strings.ToLower(os.Getenv("GEEKWALA_LOG_FORMAT"))); format {
	case LogFormatGitHub, LogFormatJSON, LogFormatText:
		return format
	}
	if os.Getenv("GITHUB_ACTIONS") == "true" {
		return LogFormatGitHub
	}
	return LogFormatText
}

func GetConfig() (cfg Config, err error) {
	err = env.Parse(&cfg)
	return
}
