package configuration

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/asptt-sync/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist in the working directory, or in the
// nearest parent holding a go.mod when none exist there.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := existing(envFiles, "")
	if len(existingFiles) == 0 {
		if root := moduleRoot(); root != "" {
			existingFiles = existing(envFiles, root)
		}
	}
	if len(existingFiles) == 0 {
		return 0, nil
	}
	return len(existingFiles), godotenv.Load(existingFiles...)
}

func existing(envFiles []string, dir string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func moduleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"asptt_sync"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

// URL is the postgres:// form used by lib/pq for migrations.
func (d *DatabaseOptions) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type ImportOptions struct {
	// 0 derives the season from the clock.
	DefaultSeasonEndYear int  `env:"ASPTT_DEFAULT_SEASON_END_YEAR" envDefault:"0"`
	AutoApproveThreshold int  `env:"ASPTT_AUTO_APPROVE_THRESHOLD" envDefault:"0"`
	RollbackEnabled      bool `env:"ASPTT_ROLLBACK_ENABLED" envDefault:"true"`
	AutoSaveAlias        bool `env:"ASPTT_AUTO_SAVE_ALIAS" envDefault:"false"`
	PreviewMinRows       int  `env:"ASPTT_PREVIEW_MIN_ROWS" envDefault:"10"`
	PreviewMaxRows       int  `env:"ASPTT_PREVIEW_MAX_ROWS" envDefault:"200"`
	PreviewDefaultRows   int  `env:"ASPTT_PREVIEW_DEFAULT_ROWS" envDefault:"50"`
}

func (o *ImportOptions) Validate() error {
	if o.DefaultSeasonEndYear != 0 && (o.DefaultSeasonEndYear < 1900 || o.DefaultSeasonEndYear > 2100) {
		return fmt.Errorf("ASPTT_DEFAULT_SEASON_END_YEAR must be 0 or within 1900..2100, got %d", o.DefaultSeasonEndYear)
	}
	if o.AutoApproveThreshold < 0 || o.AutoApproveThreshold > 100 {
		return fmt.Errorf("ASPTT_AUTO_APPROVE_THRESHOLD must be within 0..100, got %d", o.AutoApproveThreshold)
	}
	if o.PreviewMinRows < 1 || o.PreviewMinRows > o.PreviewMaxRows {
		return fmt.Errorf("preview bounds invalid: min=%d max=%d", o.PreviewMinRows, o.PreviewMaxRows)
	}
	if o.PreviewDefaultRows < o.PreviewMinRows || o.PreviewDefaultRows > o.PreviewMaxRows {
		return fmt.Errorf("ASPTT_PREVIEW_DEFAULT_ROWS=%d outside %d..%d", o.PreviewDefaultRows, o.PreviewMinRows, o.PreviewMaxRows)
	}
	return nil
}

// SeasonEndYear resolves the configured default against now. Seasons run
// September to August.
func (o *ImportOptions) SeasonEndYear(now time.Time) int {
	if o.DefaultSeasonEndYear != 0 {
		return o.DefaultSeasonEndYear
	}
	if now.Month() >= time.September {
		return now.Year() + 1
	}
	return now.Year()
}

type StagingOptions struct {
	Dir           string `env:"ASPTT_STAGING_DIR" envDefault:"./storage/asptt"`
	MaxUploadSize int64  `env:"ASPTT_MAX_UPLOAD_SIZE" envDefault:"5242880"`
}

type PreviewStateOptions struct {
	Backend  string        `env:"ASPTT_PREVIEW_STATE_BACKEND" envDefault:"file"` // file or redis
	RedisURL string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	TTL      time.Duration `env:"ASPTT_PREVIEW_STATE_TTL" envDefault:"24h"`
}

func (p *PreviewStateOptions) Validate() error {
	p.Backend = strings.ToLower(strings.TrimSpace(p.Backend))
	switch p.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("invalid ASPTT_PREVIEW_STATE_BACKEND=%q (expected file|redis)", p.Backend)
	}
	if p.Backend == "redis" && p.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when ASPTT_PREVIEW_STATE_BACKEND is 'redis'")
	}
	if p.TTL <= 0 {
		return fmt.Errorf("ASPTT_PREVIEW_STATE_TTL must be positive, got %s", p.TTL)
	}
	return nil
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/asptt/metrics"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"asptt-sync"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
}

type Configuration struct {
	Database      DatabaseOptions
	Import        ImportOptions
	Staging       StagingOptions
	PreviewState  PreviewStateOptions
	Prometheus    PrometheusOptions
	OpenTelemetry OpenTelemetryOptions

	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	Origin           string `env:"ORIGIN" envDefault:"http://localhost:3200"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	// Looked up on every request; a uuidv4 is generated when absent.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	// Carries the operator name set by the host's auth layer.
	OperatorHeader string `env:"OPERATOR_HEADER" envDefault:"X-Operator"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

// Parse reads the environment without touching env files or log files.
func Parse() (*Configuration, error) {
	c := &Configuration{}
	if err := c.parse(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Configuration) parse() error {
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}
	if err := c.PreviewState.Validate(); err != nil {
		return fmt.Errorf("preview state configuration error: %w", err)
	}
	if c.Staging.MaxUploadSize <= 0 {
		return fmt.Errorf("ASPTT_MAX_UPLOAD_SIZE must be positive, got %d", c.Staging.MaxUploadSize)
	}
	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := c.parse(); err != nil {
		return err
	}
	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger
	return nil
}

// Unload closes the log file.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
