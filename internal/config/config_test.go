package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: StorageDriverMemory},
		JWT:      JWTConfig{Secret: "secret", AccessExpiration: "1h"},
		Attendance: AttendanceConfig{
			BusinessTimezone:  "Asia/Jakarta",
			DefaultShiftStart: "07:00",
			DefaultShiftEnd:   "19:00",
		},
		Approval: ApprovalConfig{
			PendingReminderAfter:    48 * time.Hour,
			PendingReminderInterval: time.Hour,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, StorageDriverMemory, cfg.Database.Driver)
	assert.Equal(t, "Asia/Jakarta", cfg.Attendance.BusinessTimezone)
	assert.Equal(t, "07:00", cfg.Attendance.DefaultShiftStart)
	assert.Equal(t, "19:00", cfg.Attendance.DefaultShiftEnd)
	assert.Equal(t, 48*time.Hour, cfg.Approval.PendingReminderAfter)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, int32(5), cfg.Database.MinConns)
	assert.Empty(t, cfg.Database.SeedFile)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.App.CORSAllowedOrigins)
}

func TestLoad_MemorySeedFile(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("MEMORY_SEED_FILE", "/etc/hris/seed.json")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/etc/hris/seed.json", cfg.Database.SeedFile)
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("DEFAULT_GRACE_LATE_IN_MINUTES", "ten")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_GRACE_LATE_IN_MINUTES")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "postgres needs password", mutate: func(c *Config) { c.Database.Driver = StorageDriverPostgres }, wantErr: "DB_PASSWORD"},
		{name: "pool bounds", mutate: func(c *Config) {
			c.Database = DatabaseConfig{Driver: StorageDriverPostgres, Password: "p", MaxConns: 2, MinConns: 5}
		}, wantErr: "DB_MIN_CONNS"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "sqlite" }, wantErr: "STORAGE_DRIVER"},
		{name: "missing secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: "JWT_SECRET_KEY"},
		{name: "bad timezone", mutate: func(c *Config) { c.Attendance.BusinessTimezone = "Mars/Olympus" }, wantErr: "BUSINESS_TIMEZONE"},
		{name: "negative grace", mutate: func(c *Config) { c.Attendance.DefaultGraceLateInMinutes = -1 }, wantErr: "grace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	c := &Config{Database: DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n", SSLMode: "disable"}}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", c.DatabaseURL())
}
