package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `
rules:
  - command: test
    subcommand: closed
    program: /usr/local/bin/test-closed
    acl: ["alice@EXAMPLE.ORG"]
  - command: backup
    subcommand: ALL
    program: /usr/local/bin/backup
    acl: ["file:/etc/remctl/acl/backup"]
    run_as: nobody
    stdin_arg: -1
    summary: summary
    help: help
    mask_args: [2]
`

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cfg.Rules) != 2 {
		t.Fatalf("len(Rules) = %d, want 2", len(cfg.Rules))
	}

	r := cfg.Rules[0]
	if r.Command != "test" || r.Subcommand != "closed" {
		t.Errorf("rule 0 keys = %q %q, want test closed", r.Command, r.Subcommand)
	}
	if r.Program != "/usr/local/bin/test-closed" {
		t.Errorf("rule 0 program = %q", r.Program)
	}
	if r.StdinArg != 0 {
		t.Errorf("rule 0 StdinArg = %d, want 0", r.StdinArg)
	}

	r = cfg.Rules[1]
	if r.Subcommand != MatchAll {
		t.Errorf("rule 1 subcommand = %q, want %q", r.Subcommand, MatchAll)
	}
	if r.RunAs != "nobody" {
		t.Errorf("rule 1 RunAs = %q, want nobody", r.RunAs)
	}
	if r.StdinArg != StdinLastArg {
		t.Errorf("rule 1 StdinArg = %d, want %d", r.StdinArg, StdinLastArg)
	}
	if r.Summary != "summary" || r.Help != "help" {
		t.Errorf("rule 1 summary/help = %q %q", r.Summary, r.Help)
	}
	if !r.MasksArg(2) || r.MasksArg(1) {
		t.Errorf("rule 1 MasksArg: got mask for wrong positions")
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if len(cfg.Rules) != 0 {
		t.Errorf("len(Rules) = %d, want 0", len(cfg.Rules))
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("rules:\n  - command: a\n    subcomand: b\n"))
	if err == nil {
		t.Fatal("Parse() with misspelled field should error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Rules: []*Rule{{
			Command:    "test",
			Subcommand: "ALL",
			Program:    "/bin/echo",
			ACL:        []string{"anyuser"},
		}}}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing command", func(c *Config) { c.Rules[0].Command = "" }, "command is required"},
		{"missing subcommand", func(c *Config) { c.Rules[0].Subcommand = "" }, "subcommand is required"},
		{"missing program", func(c *Config) { c.Rules[0].Program = "" }, "program is required"},
		{"relative program", func(c *Config) { c.Rules[0].Program = "bin/echo" }, "absolute path"},
		{"missing acl", func(c *Config) { c.Rules[0].ACL = nil }, "acl is required"},
		{"bad stdin_arg", func(c *Config) { c.Rules[0].StdinArg = -2 }, "stdin_arg"},
		{"bad mask position", func(c *Config) { c.Rules[0].MaskArgs = []int{0} }, "mask_args"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	origLookup := lookupUser
	lookupUser = func(name string) (int, int, error) {
		if name != "nobody" {
			t.Errorf("lookupUser(%q), want nobody", name)
		}
		return 65534, 65534, nil
	}
	defer func() { lookupUser = origLookup }()

	path := filepath.Join(t.TempDir(), "remctld.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Rules[1].RunAsUID != 65534 || cfg.Rules[1].RunAsGID != 65534 {
		t.Errorf("run_as resolution: uid=%d gid=%d, want 65534/65534",
			cfg.Rules[1].RunAsUID, cfg.Rules[1].RunAsGID)
	}
	if cfg.Rules[0].RunAsUID != 0 {
		t.Errorf("rule without run_as resolved uid = %d, want 0", cfg.Rules[0].RunAsUID)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() of missing file should error")
	}
}
