package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduverify/credtrust/notify"
	"github.com/eduverify/credtrust/storage"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("storage:\n  data_dir: /tmp\n"))
	require.NoError(t, err)
	assert.Equal(t, 7672, c.Server.Port)
	assert.Equal(t, storage.DriverSQLite, c.Storage.Driver)
	assert.Equal(t, 10*time.Minute, c.OTP.TTL.Duration())
	assert.Equal(t, 5, c.OTP.MaxAttempts)
	assert.Equal(t, otpStoreDB, c.OTP.Store)
	assert.Equal(t, 95, c.Issuance.Confidence.Min)
	assert.Equal(t, 99, c.Issuance.Confidence.Max)
	assert.False(t, c.Issuance.RequireConfirmation)
	assert.Equal(t, notifierLog, c.Notify.Email.Type)
	assert.Equal(t, "/.well-known/proof-keys", c.Proof.KeysEndpoint.Path)
	assert.Equal(t, 5*time.Second, c.Caching.MaxLifetime.Duration())
	require.NotNil(t, c.AdminOptions())
	assert.Equal(t, 5, c.AdminOptions().OTPDefaults.MaxAttempts)
}

func TestParseOverlay(t *testing.T) {
	c, err := Parse(
		[]byte(`
server:
  port: 8080
  external_url: https://trust.example.org
storage:
  driver: memory
otp:
  ttl: 5m
  max_attempts: 0
issuance:
  require_confirmation: true
  confidence:
    min: 50
    max: 60
api:
  admin:
    enabled: false
`),
	)
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, driverMemory, c.Storage.Driver)
	assert.Equal(t, 5*time.Minute, c.OTP.TTL.Duration())
	assert.Equal(t, 0, c.OTP.MaxAttempts)
	assert.True(t, c.Issuance.RequireConfirmation)
	assert.Equal(t, 5, c.Issuance.RetryBudget)
	assert.Equal(t, "https://trust.example.org", c.Proof.Issuer)
	assert.Nil(t, c.AdminOptions())
}

func TestParseRejectsInvalidSections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"sqlite without data dir", "storage:\n  driver: sqlite\n"},
		{"unknown driver", "storage:\n  driver: oracle\n"},
		{"negative max attempts", "storage:\n  driver: memory\notp:\n  max_attempts: -1\n"},
		{"short ttl", "storage:\n  driver: memory\notp:\n  ttl: 10s\n"},
		{"unknown otp store", "storage:\n  driver: memory\notp:\n  store: file\n"},
		{"confidence range", "storage:\n  driver: memory\nissuance:\n  confidence:\n    min: 90\n    max: 80\n"},
		{"confidence bounds", "storage:\n  driver: memory\nissuance:\n  confidence:\n    max: 120\n"},
		{"missing log dir", "storage:\n  driver: memory\nlogging:\n  access:\n    dir: /does/not/exist\n"},
		{"unknown email notifier", "storage:\n  driver: memory\nnotify:\n  email:\n    type: smtp\n"},
		{"nats email without url", "storage:\n  driver: memory\nnotify:\n  email:\n    type: nats\n"},
		{"events without url", "storage:\n  driver: memory\nnats:\n  publish_events: true\n"},
		{"twilio without credentials", "storage:\n  driver: memory\nnotify:\n  sms:\n    type: twilio\n"},
		{"not yaml", "storage: ["},
	}
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				t.Setenv(EnvTwilioAccountSID, "")
				t.Setenv(EnvTwilioAuthToken, "")
				_, err := Parse([]byte(tt.yaml))
				assert.Error(t, err)
			},
		)
	}
}

func TestSecretsFromEnvironment(t *testing.T) {
	t.Setenv(EnvTwilioAccountSID, "AC123")
	t.Setenv(EnvTwilioAuthToken, "token")
	t.Setenv(EnvRedisPassword, "redis-secret")
	t.Setenv(EnvDBPassword, "db-secret")
	c, err := Parse(
		[]byte(`
storage:
  driver: postgres
  host: db.example.org
notify:
  sms:
    type: twilio
    from: "+15005550006"
cache:
  password: from-file
`),
	)
	require.NoError(t, err)
	assert.Equal(t, "AC123", c.Notify.SMS.AccountSID)
	assert.Equal(t, "token", c.Notify.SMS.AuthToken)
	assert.Equal(t, "from-file", c.Caching.Password)
	assert.Contains(t, c.Storage.DSN, "password=db-secret")
	assert.Contains(t, c.Storage.DSN, "host=db.example.org")

	n, err := c.Notify.Notifier(nil)
	require.NoError(t, err)
	d, ok := n.(notify.Dispatcher)
	require.True(t, ok)
	assert.IsType(t, &notify.TwilioNotifier{}, d.SMS)
	assert.IsType(t, notify.LogNotifier{}, d.Email)
}

func TestLoadMemoryBackends(t *testing.T) {
	c, err := Parse([]byte("storage:\n  driver: memory\n"))
	require.NoError(t, err)
	backs, err := LoadStorageBackends(c.Storage, c.API.Admin.Argon2idParams)
	require.NoError(t, err)
	assert.NotNil(t, backs.Certificates)
	assert.NotNil(t, backs.Users)

	store, err := OTPStore(c.OTP, backs, nil)
	require.NoError(t, err)
	assert.Equal(t, backs.OTP, store)

	c.OTP.Store = otpStoreRedis
	_, err = OTPStore(c.OTP, backs, nil)
	assert.Error(t, err)
}
