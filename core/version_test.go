package core

import (
	"strings"
	"testing"

	"github.com/hashicorp/go-version"
)

func TestVersion(t *testing.T) {
	v := Version()
	if v == "" {
		t.Fatal("Version() should not return empty string")
	}
	if strings.ContainsAny(v, "\r\n") {
		t.Error("Version() should not contain newline characters")
	}
	if _, err := version.NewVersion(v); err != nil {
		t.Errorf("Version() = %q is not a semantic version: %v", v, err)
	}
}
