package logger

import (
	"log/slog"
	"testing"
)

func TestRedactSensitive(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"password", slog.String("db_password", "hunter2"), redactedValue},
		{"token", slog.String("Auth_Token", "abc"), redactedValue},
		{"authorization header", slog.String("authorization", "Bearer x"), redactedValue},
		{"empty value kept", slog.String("secret", ""), ""},
		{"normal key", slog.String("partition", "kpanic"), "kpanic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactSensitive(tt.attr)
			if got.Value.String() != tt.want {
				t.Errorf("redactSensitive(%v) = %q, want %q", tt.attr, got.Value.String(), tt.want)
			}
		})
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	a := slog.Group("request", slog.String("cookie", "session=1"), slog.String("path", "/apanic/console"))
	got := redactSensitive(a).Value.Group()

	if got[0].Value.String() != redactedValue {
		t.Errorf("cookie = %q", got[0].Value.String())
	}
	if got[1].Value.String() != "/apanic/console" {
		t.Errorf("path = %q", got[1].Value.String())
	}
}

func TestRedactSensitive_NonString(t *testing.T) {
	a := slog.Int("token_count", 3)
	if got := redactSensitive(a); got.Value.Int64() != 3 {
		t.Errorf("non-string values must pass through, got %v", got)
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for key, want := range map[string]bool{
		"password":      true,
		"CLIENT_SECRET": true,
		"capture_id":    false,
		"segment":       false,
	} {
		if got := IsSensitiveKey(key); got != want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}
