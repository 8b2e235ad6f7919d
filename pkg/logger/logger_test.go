package logger

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "debug console", cfg: Config{Level: "debug", Format: "console"}},
		{name: "warn json", cfg: Config{Level: "WARN", Format: "json"}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			l.Named("test").Debug("hello", String("k", "v"), Int("n", 1))
		})
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNop().Named("nop").With(Bool("ok", true))
	l.Info("discarded")
	l.Error("discarded", Error(nil))
}
