package github

import (
	"strings"
	"testing"
)

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "fine-grained pat", token: "ghp_" + strings.Repeat("a", 36)},
		{name: "oauth token", token: "gho_" + strings.Repeat("b", 36)},
		{name: "installation token", token: "ghs_" + strings.Repeat("c", 36)},
		{name: "classic hex token", token: strings.Repeat("0123456789abcdef", 2) + "01234567"},
		{name: "empty", token: "", wantErr: true},
		{name: "too short", token: "ghp_abc", wantErr: true},
		{name: "too long", token: "ghp_" + strings.Repeat("a", 120), wantErr: true},
		{name: "unknown prefix right length", token: "xyz_" + strings.Repeat("a", 36), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateToken(%q) = %v, wantErr %v", tt.token, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAppID(t *testing.T) {
	if err := validateAppID("123456"); err != nil {
		t.Errorf("valid app id rejected: %v", err)
	}
	for _, bad := range []string{"", "abc", "-1"} {
		if err := validateAppID(bad); err == nil {
			t.Errorf("validateAppID(%q) = nil, want error", bad)
		}
	}
}
