package config

import (
	"strings"
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

func TestUnmarshalExact_RejectsUnknownAuthKey(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")

	configYAML := `
server:
  auth:
    token_enabled: true
    token: shared-secret
    basic_auth_enabled: true
`

	if err := v.ReadConfig(strings.NewReader(configYAML)); err != nil {
		t.Fatalf("failed to read config yaml: %v", err)
	}

	var cfg Config
	err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				stringToStringSliceHookFunc(","),
			),
		),
	)
	if err == nil {
		t.Fatal("expected unmarshal error for unknown basic_auth_enabled key")
	}
	if !strings.Contains(err.Error(), "basic_auth_enabled") {
		t.Fatalf("expected error to mention basic_auth_enabled, got: %v", err)
	}
}
