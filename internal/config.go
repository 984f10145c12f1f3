package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/publish"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	Report    ReportConfig      `yaml:"report"`
	Manifest  ManifestConfig    `yaml:"manifest"`
	Git       GitConfig         `yaml:"git"`
	Publish   PublishConfig     `yaml:"publish"`
	History   HistoryConfig     `yaml:"history"`
	Watch     WatchConfig       `yaml:"watch"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.Workspace, &c.Report, &c.Manifest, &c.Publish, &c.History, &c.Watch, &c.Auth,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.Required, validation.In(LogFormatText, LogFormatJSON)),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration for the serve command.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// WorkspaceConfig points at the checked-out repository.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// ReportConfig locates the change report.
//
// When DiffRange is set the report is generated with
// `git diff --name-status <DiffRange>` and Path is ignored.
type ReportConfig struct {
	Path      string   `yaml:"path"`
	DiffRange string   `yaml:"diff_range"`
	Suffixes  []string `yaml:"suffixes"`
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.DiffRange == "", validation.Required)),
		validation.Field(&c.Suffixes, validation.Required, validation.Each(validation.Required, validation.By(dotSuffix))),
	)
}

func dotSuffix(v interface{}) error {
	s, _ := v.(string)
	if !strings.HasPrefix(s, ".") {
		return fmt.Errorf("suffix %q must start with a dot", s)
	}
	return nil
}

// ManifestConfig locates the patch manifest.
type ManifestConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the manifest configuration.
func (c *ManifestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// GitConfig configures the git runner.
type GitConfig struct {
	Bin     string        `yaml:"bin"`
	Timeout time.Duration `yaml:"timeout"`
}

// PublishConfig controls the commit and push of the updated manifest.
type PublishConfig struct {
	Enabled        bool   `yaml:"enabled"`
	UserName       string `yaml:"user_name"`
	UserEmail      string `yaml:"user_email"`
	GlobalIdentity bool   `yaml:"global_identity"`
	Message        string `yaml:"message"`
	Remote         string `yaml:"remote"`
	Branch         string `yaml:"branch"`
}

// Validate validates the publish configuration.
func (c *PublishConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.UserName, validation.Required),
		validation.Field(&c.UserEmail, validation.Required),
	); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if c.Branch != "" && c.Remote == "" {
		return fmt.Errorf("publish: branch %q set without a remote", c.Branch)
	}
	return nil
}

// Options converts the section into publisher options rooted at dir.
func (c *PublishConfig) Options(dir string) publish.Options {
	return publish.Options{
		Dir:            dir,
		UserName:       c.UserName,
		UserEmail:      c.UserEmail,
		GlobalIdentity: c.GlobalIdentity,
		Message:        c.Message,
		Remote:         c.Remote,
		Branch:         c.Branch,
	}
}

// HistoryConfig holds the run ledger database configuration.
// An empty Path disables the ledger.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error { return nil }

// Enabled reports whether runs are recorded.
func (c *HistoryConfig) Enabled() bool { return c.Path != "" }

// WatchConfig tunes the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a Config matching the CI workflow layout.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Workspace: WorkspaceConfig{
			Root: ".",
		},
		Report: ReportConfig{
			Path:     "changed_files.txt",
			Suffixes: []string{".rgz", ".gpf"},
		},
		Manifest: ManifestConfig{
			Path: "patch/patchlist/patch9.txt",
		},
		Git: GitConfig{
			Bin: "git",
		},
		Publish: PublishConfig{
			Enabled:        true,
			UserName:       publish.DefaultUserName,
			UserEmail:      publish.DefaultUserEmail,
			GlobalIdentity: true,
			Message:        publish.DefaultMessage,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
