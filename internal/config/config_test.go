package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portalkeeper.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
listen_addr: ":8090"
organizations:
  - slug: mobifi
    name: MobiFi
    host: https://radius.example.com
    secret_key: test-secret
    timeout: 5
    settings:
      mobile_phone_verification: true
      payment_requires_internet: true
    captive_portal:
      login_form:
        action: https://gateway.example.com/login
        additional_fields:
          - name: zone
            value: "1"
      logout_form:
        action: https://gateway.example.com/logout
        logout_by_session: true
  - slug: city-wifi
    host: https://radius.city.example.com
    secret_key: other-secret
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.ListenAddr)
	require.Len(t, cfg.Organizations, 2)

	org, ok := cfg.Organization("mobifi")
	require.True(t, ok)
	assert.Equal(t, "https://radius.example.com", org.Host)
	assert.Equal(t, 5*time.Second, org.RequestTimeout())
	assert.True(t, org.Settings.MobilePhoneVerification)
	assert.True(t, org.Settings.PaymentRequiresInternet)

	// defaults on the form layout
	assert.Equal(t, "post", org.CaptivePortal.LoginForm.Method)
	assert.Equal(t, "macaddr", org.CaptivePortal.LoginForm.MacaddrParamName)
	assert.Equal(t, "username", org.CaptivePortal.LoginForm.UsernameField)
	assert.Equal(t, "id", org.CaptivePortal.LogoutForm.SessionIDField)
	require.Len(t, org.CaptivePortal.LoginForm.AdditionalFields, 1)
	assert.Equal(t, "zone", org.CaptivePortal.LoginForm.AdditionalFields[0].Name)

	// organization without explicit timeout gets the default
	other, ok := cfg.Organization("city-wifi")
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, other.RequestTimeout())

	_, ok = cfg.Organization("unknown")
	assert.False(t, ok)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no organizations", "listen_addr: :8080\n"},
		{"missing host", `
organizations:
  - slug: mobifi
    secret_key: s
`},
		{"missing secret", `
organizations:
  - slug: mobifi
    host: https://radius.example.com
`},
		{"bad slug", `
organizations:
  - slug: MobiFi
    host: https://radius.example.com
    secret_key: s
`},
		{"duplicate slug", `
organizations:
  - slug: mobifi
    host: https://radius.example.com
    secret_key: s
  - slug: mobifi
    host: https://radius2.example.com
    secret_key: s2
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}
