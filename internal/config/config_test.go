package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/ShayCichocki/orlo-deployer/internal/install"
	"github.com/ShayCichocki/orlo-deployer/internal/orlo"
)

// isolate points config lookups at empty temp directories and clears
// every ORLO_* variable the loader reads.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, env := range envBindings {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	t.Setenv(RollbackEnv, "")
	os.Unsetenv(RollbackEnv)

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if !cfg.Standalone() {
		t.Error("default config should be standalone")
	}
	if cfg.Orchestrator.Timeout != orlo.DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", orlo.DefaultTimeout, cfg.Orchestrator.Timeout)
	}
	if cfg.Install.Delay != install.DefaultDelay {
		t.Errorf("expected install delay %v, got %v", install.DefaultDelay, cfg.Install.Delay)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level info, got %q", cfg.Log.Level)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Standalone() {
		t.Errorf("expected standalone, got url %q", cfg.Orchestrator.URL)
	}
	if cfg.Release.Rollback {
		t.Error("rollback should default to false")
	}
	if cfg.Orchestrator.Timeout != 30*time.Second || cfg.Install.Delay != time.Second {
		t.Errorf("unexpected durations: %+v %+v", cfg.Orchestrator, cfg.Install)
	}

	d := Default()
	if cfg.Orchestrator.Timeout != d.Orchestrator.Timeout || cfg.Install != d.Install || cfg.Log != d.Log {
		t.Errorf("loaded defaults differ from Default(): %+v %+v %+v", cfg.Orchestrator, cfg.Install, cfg.Log)
	}
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("ORLO_URL", "http://orlo.example.com:8080")
	t.Setenv("ORLO_RELEASE", "42")
	t.Setenv("ORLO_USER", "alice")
	t.Setenv("ORLO_TEAM", "infra")
	t.Setenv("ORLO_PLATFORMS", "gb, us,")
	t.Setenv("ORLO_REFERENCES", "TICKET-1")
	t.Setenv("ORLO_USERNAME", "deployer")
	t.Setenv("ORLO_PASSWORD", "s3cret")
	t.Setenv("ORLO_INSTALL_DELAY", "250ms")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Orchestrator.URL != "http://orlo.example.com:8080" {
		t.Errorf("URL = %q", cfg.Orchestrator.URL)
	}
	if cfg.Release.ID != "42" || cfg.Release.User != "alice" || cfg.Release.Team != "infra" {
		t.Errorf("Release = %+v", cfg.Release)
	}
	if !reflect.DeepEqual(cfg.Release.Platforms, []string{"gb", "us"}) {
		t.Errorf("Platforms = %q", cfg.Release.Platforms)
	}
	if !reflect.DeepEqual(cfg.Release.References, []string{"TICKET-1"}) {
		t.Errorf("References = %q", cfg.Release.References)
	}
	if cfg.Orchestrator.Username != "deployer" || cfg.Orchestrator.Password != "s3cret" {
		t.Errorf("credentials = %q/%q", cfg.Orchestrator.Username, cfg.Orchestrator.Password)
	}
	if cfg.Install.Delay != 250*time.Millisecond {
		t.Errorf("Delay = %v", cfg.Install.Delay)
	}
}

func TestLoad_RollbackIsPresenceBased(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  bool
	}{
		{"unset", "", false, false},
		{"empty", "", true, true},
		{"false still counts", "false", true, true},
		{"one", "1", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			if tt.set {
				t.Setenv(RollbackEnv, tt.value)
			}

			cfg, err := Load(Options{})
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Release.Rollback != tt.want {
				t.Errorf("Rollback = %v, want %v", cfg.Release.Rollback, tt.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "deployer.yaml")
	writeFile(t, path, `
orchestrator:
  url: https://orlo.internal
  token: ${ORLO_TEST_TOKEN}
  timeout: 5s
release:
  user: bob
  platforms: [eu, apac]
  references: "JIRA-1,JIRA-2"
  metadata:
    change: CHG-1
install:
  command: "apt-get install -y {{.Name}}={{.Version}}"
  report_results: true
journal:
  path: /tmp/journal.db
`)
	t.Setenv("ORLO_TEST_TOKEN", "tok-abc")

	cfg, err := Load(Options{File: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Orchestrator.URL != "https://orlo.internal" || cfg.Orchestrator.Timeout != 5*time.Second {
		t.Errorf("Orchestrator = %+v", cfg.Orchestrator)
	}
	if cfg.Orchestrator.Token != "tok-abc" {
		t.Errorf("Token = %q, want expanded env reference", cfg.Orchestrator.Token)
	}
	if !reflect.DeepEqual(cfg.Release.Platforms, []string{"eu", "apac"}) {
		t.Errorf("Platforms = %q", cfg.Release.Platforms)
	}
	if !reflect.DeepEqual(cfg.Release.References, []string{"JIRA-1", "JIRA-2"}) {
		t.Errorf("References = %q", cfg.Release.References)
	}
	if cfg.Release.Metadata["change"] != "CHG-1" {
		t.Errorf("Metadata = %v", cfg.Release.Metadata)
	}
	if cfg.Install.Command == "" || !cfg.Install.ReportResults {
		t.Errorf("Install = %+v", cfg.Install)
	}
	if cfg.Journal.Path != "/tmp/journal.db" {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "deployer.yaml")
	writeFile(t, path, "release:\n  user: bob\n")
	t.Setenv("ORLO_USER", "alice")

	cfg, err := Load(Options{File: path})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Release.User != "alice" {
		t.Errorf("User = %q, want env to win", cfg.Release.User)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("ORLO_TEAM", "infra")
	t.Setenv("ORLO_URL", "http://env.example.com")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("team", "", "")
	flags.String("url", "", "")
	flags.Bool("rollback", false, "")
	if err := flags.Parse([]string{"--team", "web", "--rollback"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(Options{Flags: flags})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Release.Team != "web" {
		t.Errorf("Team = %q, want flag value", cfg.Release.Team)
	}
	if cfg.Orchestrator.URL != "http://env.example.com" {
		t.Errorf("URL = %q, unchanged flag should not override env", cfg.Orchestrator.URL)
	}
	if !cfg.Release.Rollback {
		t.Error("expected --rollback to set rollback")
	}
}

func TestLoad_InstallDir(t *testing.T) {
	isolate(t)
	t.Setenv("ORLO_INSTALL_DIR", "/srv/env")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Install.Dir != "/srv/env" {
		t.Errorf("Dir = %q, want env value", cfg.Install.Dir)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("install-dir", "", "")
	if err := flags.Parse([]string{"--install-dir", "/srv/flag"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err = Load(Options{Flags: flags})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Install.Dir != "/srv/flag" {
		t.Errorf("Dir = %q, want flag value", cfg.Install.Dir)
	}
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	isolate(t)
	writeFile(t, GetUserConfigPath(), "release:\n  user: user-level\n  team: user-team\n")

	project := t.TempDir()
	writeFile(t, filepath.Join(project, ProjectConfigName), "release:\n  team: project-team\n")
	nested := filepath.Join(project, "sub", "dir")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Chdir(nested); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Release.User != "user-level" {
		t.Errorf("User = %q, want user config value", cfg.Release.User)
	}
	if cfg.Release.Team != "project-team" {
		t.Errorf("Team = %q, want project config value", cfg.Release.Team)
	}
}

func TestLoad_InvalidURL(t *testing.T) {
	isolate(t)
	t.Setenv("ORLO_URL", "orlo.example.com")

	if _, err := Load(Options{}); err == nil {
		t.Error("expected error for url without scheme")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	isolate(t)
	if _, err := Load(Options{File: filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"https url", func(c *Config) { c.Orchestrator.URL = "https://orlo" }, false},
		{"zero timeout", func(c *Config) { c.Orchestrator.Timeout = 0 }, true},
		{"negative delay", func(c *Config) { c.Install.Delay = -time.Second }, true},
		{"zero delay", func(c *Config) { c.Install.Delay = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Orchestrator.Password = "s3cret"
	cfg.Orchestrator.Token = "tok"

	r := cfg.Redacted()
	if r.Orchestrator.Password != "****" || r.Orchestrator.Token != "****" {
		t.Errorf("Redacted = %+v", r.Orchestrator)
	}
	if cfg.Orchestrator.Password != "s3cret" {
		t.Error("Redacted modified the original")
	}
}

func TestStringList(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []string
	}{
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"csv", "a, b ,c", []string{"a", "b", "c"}},
		{"any slice", []any{"a", " b "}, []string{"a", "b"}},
		{"string slice", []string{"x", ""}, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stringList(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("stringList(%v) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
