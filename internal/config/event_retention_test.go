package config

import (
	"os"
	"testing"
)

func TestEventRetentionFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, cfg EventRetentionConfig)
	}{
		{
			name:    "no environment variables uses defaults",
			envVars: map[string]string{},
			wantErr: false,
			check: func(t *testing.T, cfg EventRetentionConfig) {
				defaults := DefaultEventRetentionConfig()
				if cfg.RetentionDays != defaults.RetentionDays {
					t.Errorf("RetentionDays = %v, want %v", cfg.RetentionDays, defaults.RetentionDays)
				}
				if cfg.RetentionAlertDays != defaults.RetentionAlertDays {
					t.Errorf("RetentionAlertDays = %v, want %v", cfg.RetentionAlertDays, defaults.RetentionAlertDays)
				}
				if cfg.GlobalLimitEvents != defaults.GlobalLimitEvents {
					t.Errorf("GlobalLimitEvents = %v, want %v", cfg.GlobalLimitEvents, defaults.GlobalLimitEvents)
				}
				if cfg.Enabled != defaults.Enabled {
					t.Errorf("Enabled = %v, want %v", cfg.Enabled, defaults.Enabled)
				}
			},
		},
		{
			name: "valid overrides",
			envVars: map[string]string{
				"SHEPHERD_EVENT_RETENTION_DAYS":       "7",
				"SHEPHERD_EVENT_RETENTION_ALERT_DAYS": "14",
				"SHEPHERD_EVENT_GLOBAL_LIMIT":         "5000",
				"SHEPHERD_EVENT_CLEANUP_ENABLED":      "false",
			},
			wantErr: false,
			check: func(t *testing.T, cfg EventRetentionConfig) {
				if cfg.RetentionDays != 7 {
					t.Errorf("RetentionDays = %v, want 7", cfg.RetentionDays)
				}
				if cfg.RetentionAlertDays != 14 {
					t.Errorf("RetentionAlertDays = %v, want 14", cfg.RetentionAlertDays)
				}
				if cfg.GlobalLimitEvents != 5000 {
					t.Errorf("GlobalLimitEvents = %v, want 5000", cfg.GlobalLimitEvents)
				}
				if cfg.Enabled {
					t.Error("Enabled = true, want false")
				}
			},
		},
		{
			name: "non-numeric retention days",
			envVars: map[string]string{
				"SHEPHERD_EVENT_RETENTION_DAYS": "a month",
			},
			wantErr: true,
		},
		{
			name: "retention days out of range",
			envVars: map[string]string{
				"SHEPHERD_EVENT_RETENTION_DAYS": "1000",
			},
			wantErr: true,
		},
		{
			name: "alert retention shorter than regular retention",
			envVars: map[string]string{
				"SHEPHERD_EVENT_RETENTION_DAYS":       "30",
				"SHEPHERD_EVENT_RETENTION_ALERT_DAYS": "7",
			},
			wantErr: true,
		},
		{
			name: "invalid bool",
			envVars: map[string]string{
				"SHEPHERD_EVENT_CLEANUP_ENABLED": "sometimes",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				os.Setenv(key, value)
				defer os.Unsetenv(key)
			}

			cfg, err := EventRetentionFromEnv()
			if (err != nil) != tt.wantErr {
				t.Fatalf("EventRetentionFromEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestEventRetentionValidate(t *testing.T) {
	cfg := DefaultEventRetentionConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration invalid: %v", err)
	}

	cfg.GlobalLimitEvents = 10
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for tiny global limit")
	}
}
