package version

import (
	"strings"
	"testing"
)

func TestInfoDefaults(t *testing.T) {
	v, c, d := Info()
	if v != Version || c != GitCommit || d != BuildDate {
		t.Errorf("Info() = %q, %q, %q", v, c, d)
	}
}

func TestString(t *testing.T) {
	old := Version
	Version = "v9.9.9"
	defer func() { Version = old }()

	s := String()
	if !strings.HasPrefix(s, "v9.9.9 ") || !strings.Contains(s, GitCommit) {
		t.Errorf("String() = %q", s)
	}
}
