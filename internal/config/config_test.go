package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
afs:
  access_key_env: MY_ACCESS_KEY
  secret_key_env: MY_SECRET_KEY
  base_url: "https://afs.example.com"
  volumes:
    - volume_id: vol-001
      zone: cn-east
    - volume_id: vol-002
      zone: cn-north
server:
  host: 127.0.0.1
  port: 9100
  request_timeout: 60
  log_level: debug
collection:
  max_retries: 5
  retry_delay: 3
  timeout_seconds: 40
  cache_duration: 120
`
	cfg := loadFromString(t, yaml)

	if cfg.AFS.AccessKeyEnv != "MY_ACCESS_KEY" {
		t.Errorf("access_key_env: got %q", cfg.AFS.AccessKeyEnv)
	}
	if cfg.AFS.BaseURL != "https://afs.example.com" {
		t.Errorf("base_url: got %q", cfg.AFS.BaseURL)
	}
	if len(cfg.AFS.Volumes) != 2 {
		t.Fatalf("volumes: got %d, want 2", len(cfg.AFS.Volumes))
	}
	if cfg.AFS.Volumes[1].VolumeID != "vol-002" || cfg.AFS.Volumes[1].Zone != "cn-north" {
		t.Errorf("volume[1]: got %+v", cfg.AFS.Volumes[1])
	}
	if got := cfg.Server.Addr(); got != "127.0.0.1:9100" {
		t.Errorf("Addr(): got %q", got)
	}
	if got := cfg.Server.Timeout(); got != 60*time.Second {
		t.Errorf("server timeout: got %v", got)
	}
	if cfg.Collection.MaxRetries != 5 {
		t.Errorf("max_retries: got %d", cfg.Collection.MaxRetries)
	}
	if got := cfg.Collection.RetryBaseDelay(); got != 3*time.Second {
		t.Errorf("RetryBaseDelay(): got %v", got)
	}
	if got := cfg.Collection.Timeout(); got != 40*time.Second {
		t.Errorf("collection timeout: got %v", got)
	}
	if got := cfg.Collection.CacheTTL(); got != 2*time.Minute {
		t.Errorf("CacheTTL(): got %v", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	yaml := `
afs:
  volumes:
    - volume_id: vol-001
      zone: cn-east
`
	cfg := loadFromString(t, yaml)

	if cfg.AFS.AccessKeyEnv != DefaultAccessKeyEnv {
		t.Errorf("default access_key_env: got %q, want %q", cfg.AFS.AccessKeyEnv, DefaultAccessKeyEnv)
	}
	if cfg.AFS.BaseURL != DefaultBaseURL {
		t.Errorf("default base_url: got %q, want %q", cfg.AFS.BaseURL, DefaultBaseURL)
	}
	if cfg.Server.Host != DefaultHost || cfg.Server.Port != DefaultPort {
		t.Errorf("default listener: got %s", cfg.Server.Addr())
	}
	if cfg.Server.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("default request_timeout: got %d", cfg.Server.RequestTimeout)
	}
	if cfg.Server.LogLevel != DefaultLogLevel {
		t.Errorf("default log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Collection.MaxRetries != DefaultMaxRetries {
		t.Errorf("default max_retries: got %d", cfg.Collection.MaxRetries)
	}
	if cfg.Collection.RetryDelay != DefaultRetryDelay {
		t.Errorf("default retry_delay: got %d", cfg.Collection.RetryDelay)
	}
	if cfg.Collection.TimeoutSeconds != DefaultTimeout {
		t.Errorf("default timeout_seconds: got %d", cfg.Collection.TimeoutSeconds)
	}
	if cfg.Collection.CacheDuration != DefaultCacheDuration {
		t.Errorf("default cache_duration: got %d", cfg.Collection.CacheDuration)
	}
}

func TestLoad_MissingVolumes(t *testing.T) {
	yaml := `
afs:
  base_url: "https://afs.example.com"
`
	if _, err := loadStringErr(t, yaml); err == nil {
		t.Fatal("expected error for missing volumes, got nil")
	}
}

func TestLoad_VolumeWithoutZone(t *testing.T) {
	yaml := `
afs:
  volumes:
    - volume_id: vol-001
`
	if _, err := loadStringErr(t, yaml); err == nil {
		t.Fatal("expected error for volume without zone, got nil")
	}
}

func TestLoad_BadBaseURL(t *testing.T) {
	yaml := `
afs:
  base_url: "ftp://afs.example.com"
  volumes:
    - volume_id: vol-001
      zone: cn-east
`
	if _, err := loadStringErr(t, yaml); err == nil {
		t.Fatal("expected error for non-http base_url, got nil")
	}
}

func TestLoad_BadPort(t *testing.T) {
	yaml := `
afs:
  volumes:
    - volume_id: vol-001
      zone: cn-east
server:
  port: 70000
`
	if _, err := loadStringErr(t, yaml); err == nil {
		t.Fatal("expected error for out-of-range port, got nil")
	}
}

func TestLoad_BadLogLevel(t *testing.T) {
	yaml := `
afs:
  volumes:
    - volume_id: vol-001
      zone: cn-east
server:
  log_level: verbose
`
	if _, err := loadStringErr(t, yaml); err == nil {
		t.Fatal("expected error for unknown log level, got nil")
	}
}

func TestLoad_CollectionTimeoutTooLarge(t *testing.T) {
	yaml := `
afs:
  volumes:
    - volume_id: vol-001
      zone: cn-east
server:
  request_timeout: 30
collection:
  timeout_seconds: 30
`
	if _, err := loadStringErr(t, yaml); err == nil {
		t.Fatal("expected error when collection timeout reaches request timeout, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := loadStringErr(t, "afs: [not: closed"); err == nil {
		t.Fatal("expected error for invalid yaml, got nil")
	}
}

func TestAFSConfig_AccessKey(t *testing.T) {
	t.Setenv("TEST_AFS_AK", "AKIDEXAMPLE")
	a := AFSConfig{AccessKeyEnv: "TEST_AFS_AK"}
	if got := a.AccessKey(); got != "AKIDEXAMPLE" {
		t.Errorf("AccessKey(): got %q", got)
	}
}

func TestAFSConfig_AccessKey_Empty(t *testing.T) {
	a := AFSConfig{}
	if got := a.AccessKey(); got != "" {
		t.Errorf("AccessKey() with no env name: got %q, want empty", got)
	}
}

func TestAFSConfig_SecretKey(t *testing.T) {
	t.Setenv("TEST_AFS_SK", "sk-0123456789abcdef")
	a := AFSConfig{SecretKeyEnv: "TEST_AFS_SK"}
	if got := a.SecretKey(); got != "sk-0123456789abcdef" {
		t.Errorf("SecretKey(): got %q", got)
	}
}

func TestServerConfig_Level(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
	}
	for _, tc := range tests {
		s := ServerConfig{LogLevel: tc.in}
		if got := s.Level().String(); got != tc.want {
			t.Errorf("Level(%q): got %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name    string
		access  string
		secret  string
		wantErr bool
	}{
		{"valid", "AKID12345678", "sk-0123456789abcdef", false},
		{"missing access", "", "sk-0123456789abcdef", true},
		{"missing secret", "AKID12345678", "", true},
		{"short access", "AK1", "sk-0123456789abcdef", true},
		{"short secret", "AKID12345678", "tooshort", true},
		{"placeholder access", "your_access_key", "sk-0123456789abcdef", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_CRED_AK", tc.access)
			t.Setenv("TEST_CRED_SK", tc.secret)
			cfg := &Config{AFS: AFSConfig{
				AccessKeyEnv: "TEST_CRED_AK",
				SecretKeyEnv: "TEST_CRED_SK",
			}}
			err := cfg.ValidateCredentials()
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
