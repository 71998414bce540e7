package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
url: https://jobs.example.com/progress/
page:
  file: jobs.html
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval.Duration())
	}
	if cfg.AttrName != "data-job" {
		t.Errorf("AttrName = %q, want data-job", cfg.AttrName)
	}
	if cfg.Percentage != "percentage" || cfg.Status != "status" {
		t.Errorf("keys = %q/%q, want percentage/status", cfg.Percentage, cfg.Status)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
port: 9090
url: https://jobs.example.com/api/progress/
attr_name: data-task
percentage: data.progress
status: data.message
page:
  url: https://jobs.example.com/jobs
selectors:
  starting: .task
  progressbar: .task-bar
  indicator: .task-pct
  status_label: .task-msg
startup_delay: 1s
poll_interval: 5s
reload_delay: 2s
timeout: 3s
max_concurrency: 4
requests_per_second: 2.5
headers:
  Authorization: Bearer token123
  X-Custom: value
retry:
  max_failures: 10
  backoff: exponential
  max_backoff: 1m
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.AttrName != "data-task" {
		t.Errorf("AttrName = %q, want data-task", cfg.AttrName)
	}
	if cfg.Percentage != "data.progress" || cfg.Status != "data.message" {
		t.Errorf("keys = %q/%q", cfg.Percentage, cfg.Status)
	}
	if cfg.Page.URL != "https://jobs.example.com/jobs" || cfg.Page.File != "" {
		t.Errorf("Page = %+v", cfg.Page)
	}
	if cfg.Selectors.StatusLabel != ".task-msg" || cfg.Selectors.ProgressBar != ".task-bar" {
		t.Errorf("Selectors = %+v", cfg.Selectors)
	}
	if cfg.StartupDelay.Duration() != time.Second {
		t.Errorf("StartupDelay = %v, want 1s", cfg.StartupDelay.Duration())
	}
	if cfg.PollInterval.Duration() != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval.Duration())
	}
	if cfg.ReloadDelay.Duration() != 2*time.Second {
		t.Errorf("ReloadDelay = %v, want 2s", cfg.ReloadDelay.Duration())
	}
	if cfg.Timeout.Duration() != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.Timeout.Duration())
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.MaxConcurrency)
	}
	if cfg.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v, want 2.5", cfg.RequestsPerSecond)
	}
	if cfg.Headers["Authorization"] != "Bearer token123" {
		t.Errorf("Headers[Authorization] = %q", cfg.Headers["Authorization"])
	}
	if cfg.Retry.MaxFailures != 10 || cfg.Retry.Backoff != "exponential" || cfg.Retry.MaxBackoff.Duration() != time.Minute {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
}

func TestParse_Headless(t *testing.T) {
	yaml := `
headless: true
url: https://jobs.example.com/progress/
page:
  file: jobs.html
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !cfg.Headless {
		t.Error("Headless = false, want true")
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("JOBS_HOST", "jobs.internal")
	t.Setenv("JOBS_TOKEN", "secret")
	t.Setenv("PAGE_DIR", "/srv/pages")

	yaml := `
url: https://${JOBS_HOST}/progress/
page:
  file: ${PAGE_DIR}/jobs.html
headers:
  Authorization: Bearer ${JOBS_TOKEN}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.URL != "https://jobs.internal/progress/" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.Page.File != "/srv/pages/jobs.html" {
		t.Errorf("Page.File = %q", cfg.Page.File)
	}
	if cfg.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("Headers[Authorization] = %q", cfg.Headers["Authorization"])
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	yaml := `
url: ${STATUSBAR_TEST_UNSET_URL:-http://localhost:9000/progress/}
page:
  url: ${STATUSBAR_TEST_UNSET_PAGE:-http://localhost:9000/jobs}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.URL != "http://localhost:9000/progress/" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.Page.URL != "http://localhost:9000/jobs" {
		t.Errorf("Page.URL = %q", cfg.Page.URL)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
url: https://${STATUSBAR_TEST_MISSING}/progress/
page:
  file: jobs.html
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "STATUSBAR_TEST_MISSING") {
		t.Errorf("Parse() error = %v, want mention of the variable", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing url",
			yaml: `
page:
  file: jobs.html
`,
			wantErr: "url is required",
		},
		{
			name: "url without scheme",
			yaml: `
url: jobs.example.com/progress/
page:
  file: jobs.html
`,
			wantErr: "scheme",
		},
		{
			name: "url with ftp scheme",
			yaml: `
url: ftp://jobs.example.com/progress/
page:
  file: jobs.html
`,
			wantErr: "http or https",
		},
		{
			name: "missing page",
			yaml: `
url: https://jobs.example.com/progress/
`,
			wantErr: "one of file or url",
		},
		{
			name: "both page sources",
			yaml: `
url: https://jobs.example.com/progress/
page:
  file: jobs.html
  url: https://jobs.example.com/jobs
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "invalid page url",
			yaml: `
url: https://jobs.example.com/progress/
page:
  url: /jobs
`,
			wantErr: "page.url",
		},
		{
			name: "negative port",
			yaml: `
port: -1
url: https://jobs.example.com/progress/
page:
  file: jobs.html
`,
			wantErr: "port",
		},
		{
			name: "negative reload delay",
			yaml: `
url: https://jobs.example.com/progress/
page:
  file: jobs.html
reload_delay: -1s
`,
			wantErr: "reload_delay cannot be negative",
		},
		{
			name: "negative timeout",
			yaml: `
url: https://jobs.example.com/progress/
page:
  file: jobs.html
timeout: -5s
`,
			wantErr: "timeout cannot be negative",
		},
		{
			name: "negative max concurrency",
			yaml: `
url: https://jobs.example.com/progress/
page:
  file: jobs.html
max_concurrency: -2
`,
			wantErr: "max_concurrency",
		},
		{
			name: "negative rate",
			yaml: `
url: https://jobs.example.com/progress/
page:
  file: jobs.html
requests_per_second: -1
`,
			wantErr: "requests_per_second",
		},
		{
			name: "unknown backoff",
			yaml: `
url: https://jobs.example.com/progress/
page:
  file: jobs.html
retry:
  backoff: linear
`,
			wantErr: "retry.backoff",
		},
		{
			name: "header env var missing",
			yaml: `
url: https://jobs.example.com/progress/
page:
  file: jobs.html
headers:
  Authorization: ${STATUSBAR_TEST_MISSING_TOKEN}
`,
			wantErr: "headers[Authorization]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_PollIntervalMinimum(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		wantErr  bool
	}{
		{"below minimum", "500ms", true},
		{"at minimum", "1s", false},
		{"above minimum", "10s", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := `
url: https://jobs.example.com/progress/
page:
  file: jobs.html
poll_interval: ` + tt.interval + "\n"

			_, err := Parse([]byte(yaml))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "poll_interval") {
				t.Errorf("Parse() error = %v, want mention of poll_interval", err)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("url: [unterminated"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("Parse() error = %v", err)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	yaml := `
url: https://jobs.example.com/progress/
page:
  file: jobs.html
poll_interval: soon
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("Parse() error = %v, want invalid duration", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/statusbar.yaml")
	if err == nil {
		t.Fatal("Load() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false}, // set var takes precedence
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// UNSET and MISSING are expected to not exist in environment
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}
