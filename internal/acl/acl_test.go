package acl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sigmaris/remctl/internal/clog"
	"github.com/sigmaris/remctl/internal/config"
)

func TestMain(m *testing.M) {
	clog.Discard()
	os.Exit(m.Run())
}

func rule(entries ...string) *config.Rule {
	return &config.Rule{ACL: entries}
}

func TestPermit(t *testing.T) {
	tests := []struct {
		name string
		acl  []string
		user string
		want bool
	}{
		{"literal match", []string{"alice@EXAMPLE.ORG"}, "alice@EXAMPLE.ORG", true},
		{"literal mismatch", []string{"alice@EXAMPLE.ORG"}, "bob@EXAMPLE.ORG", false},
		{"anyuser", []string{"anyuser"}, "whoever@EXAMPLE.ORG", true},
		{"empty list denies", nil, "alice@EXAMPLE.ORG", false},
		{"first match wins", []string{"deny:alice@EXAMPLE.ORG", "anyuser"}, "alice@EXAMPLE.ORG", false},
		{"deny passes others", []string{"deny:alice@EXAMPLE.ORG", "anyuser"}, "bob@EXAMPLE.ORG", true},
		{"deny alone matches nothing else", []string{"deny:alice@EXAMPLE.ORG"}, "bob@EXAMPLE.ORG", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Permit(rule(tt.acl...), tt.user); got != tt.want {
				t.Errorf("Permit(%v, %q) = %v, want %v", tt.acl, tt.user, got, tt.want)
			}
		})
	}
}

func TestPermitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acl")
	content := "# admins\n\nalice@EXAMPLE.ORG\ncarol@EXAMPLE.ORG\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	r := rule("file:" + path)
	if !Permit(r, "carol@EXAMPLE.ORG") {
		t.Error("listed principal denied")
	}
	if Permit(r, "bob@EXAMPLE.ORG") {
		t.Error("unlisted principal permitted")
	}
}

func TestPermitFileMissing(t *testing.T) {
	r := rule("file:"+filepath.Join(t.TempDir(), "absent"), "alice@EXAMPLE.ORG")
	if !Permit(r, "alice@EXAMPLE.ORG") {
		t.Error("entries after a broken include should still be evaluated")
	}
	if Permit(r, "bob@EXAMPLE.ORG") {
		t.Error("broken include must not widen access")
	}
}

func TestPermitFileCycle(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	if err := os.WriteFile(a, []byte("file:"+b+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("file:"+a+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	// Must terminate and deny.
	if Permit(rule("file:"+a), "alice@EXAMPLE.ORG") {
		t.Error("cyclic include permitted access")
	}
}

func TestPermitFileDenyEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acl")
	if err := os.WriteFile(path, []byte("deny:mallory@EXAMPLE.ORG\nanyuser\n"), 0600); err != nil {
		t.Fatal(err)
	}

	r := rule("file:" + path)
	if Permit(r, "mallory@EXAMPLE.ORG") {
		t.Error("denied principal permitted")
	}
	if !Permit(r, "alice@EXAMPLE.ORG") {
		t.Error("anyuser entry in file ignored")
	}
}
