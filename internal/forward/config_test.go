package forward

import (
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, DefaultPollInterval)
	}
	if cfg.FetchLimit != DefaultFetchLimit {
		t.Errorf("FetchLimit = %d, want %d", cfg.FetchLimit, DefaultFetchLimit)
	}
}

func TestConfig_ApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{PollInterval: 5 * time.Second, FetchLimit: 10}
	cfg.ApplyDefaults()

	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval)
	}
	if cfg.FetchLimit != 10 {
		t.Errorf("FetchLimit = %d, want 10", cfg.FetchLimit)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{PollInterval: DefaultPollInterval, FetchLimit: DefaultFetchLimit}, false},
		{"minimum interval", Config{PollInterval: time.Second, FetchLimit: 1}, false},
		{"interval below one second", Config{PollInterval: 500 * time.Millisecond, FetchLimit: 100}, true},
		{"zero interval", Config{PollInterval: 0, FetchLimit: 100}, true},
		{"zero fetch limit", Config{PollInterval: time.Minute, FetchLimit: 0}, true},
		{"negative fetch limit", Config{PollInterval: time.Minute, FetchLimit: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
