package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/irowiki-org/iROWikiPatcherTool/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled || cfg.AuthEnabled() {
		t.Errorf("mode = %q", cfg.Mode)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestReportConfig_PathOptionalWithDiffRange(t *testing.T) {
	cfg := ReportConfig{DiffRange: "HEAD~1..HEAD", Suffixes: []string{".rgz"}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("diff range without path should pass: %v", err)
	}
	cfg.DiffRange = ""
	if err := cfg.Validate(); err == nil {
		t.Error("missing path and diff range should fail")
	}
}

func TestReportConfig_SuffixNeedsDot(t *testing.T) {
	cfg := ReportConfig{Path: "c.txt", Suffixes: []string{"rgz"}}
	if err := cfg.Validate(); err == nil {
		t.Error("suffix without dot should fail")
	}
}

func TestPublishConfig(t *testing.T) {
	disabled := PublishConfig{}
	if err := disabled.Validate(); err != nil {
		t.Errorf("disabled publish needs no identity: %v", err)
	}
	noName := PublishConfig{Enabled: true, UserEmail: "x@y"}
	if err := noName.Validate(); err == nil {
		t.Error("enabled publish without user name should fail")
	}
	branchOnly := PublishConfig{Enabled: true, UserName: "a", UserEmail: "b", Branch: "main"}
	if err := branchOnly.Validate(); err == nil {
		t.Error("branch without remote should fail")
	}
}

func TestFullConfig_LoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("PATCHSYNC_TEST_MANIFEST", "patch/patchlist/patch10.txt")
	yaml := `
app:
  log_level: debug
  log_format: json
  http:
    port: 9090
manifest:
  path: ${PATCHSYNC_TEST_MANIFEST}
publish:
  enabled: false
watch:
  debounce: 2s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Manifest.Path != "patch/patchlist/patch10.txt" {
		t.Errorf("manifest path = %q", cfg.Manifest.Path)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogFormat != LogFormatJSON || cfg.Publish.Enabled {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
	if cfg.Report.Path != "changed_files.txt" {
		t.Errorf("defaults lost: report path = %q", cfg.Report.Path)
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}
