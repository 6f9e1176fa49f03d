package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"reprography-backend/internal/config"
)

func requiredSettings(v *viper.Viper) {
	v.Set("supabase.url", "https://project.supabase.co")
	v.Set("supabase.service_key", "service-key")
	v.Set("supabase.jwt_secret", "jwt-secret")
	v.Set("database.url", "postgres://localhost/reprography")
}

func TestLoad_AppliesDefaults(t *testing.T) {
	v := config.NewViper()
	requiredSettings(v)

	cfg, err := config.Load(v)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddress)
	assert.Equal(t, "print_files", cfg.StorageBucket)
	assert.Equal(t, "guest_session_id", cfg.GuestCookieName)
	assert.Equal(t, 30*24*60*60, cfg.GuestCookieMaxAge)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_MissingRequiredSettingFails(t *testing.T) {
	v := config.NewViper()
	requiredSettings(v)
	v.Set("database.url", "")

	_, err := config.Load(v)
	assert.Error(t, err)
}

func TestPushEnabled(t *testing.T) {
	cfg := config.Config{}
	assert.False(t, cfg.PushEnabled())

	cfg.VAPIDPublicKey = "pub"
	assert.False(t, cfg.PushEnabled())

	cfg.VAPIDPrivateKey = "priv"
	assert.True(t, cfg.PushEnabled())
}
