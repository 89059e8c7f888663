package health

import "testing"

func TestAggregateStatus(t *testing.T) {
	cases := []struct {
		name    string
		results []ServerResult
		want    string
	}{
		{"no servers", nil, "unknown"},
		{"all healthy", []ServerResult{{Status: "healthy"}, {Status: "healthy"}}, "healthy"},
		{"all unhealthy", []ServerResult{{Status: "error"}, {Status: "timeout"}}, "unhealthy"},
		{"mixed", []ServerResult{{Status: "healthy"}, {Status: "error"}}, "degraded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := aggregateStatus(tc.results)
			if string(got) != tc.want {
				t.Errorf("aggregateStatus() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.setDefaults()
	if cfg.WorkerCount != 8 {
		t.Errorf("WorkerCount = %d, want 8", cfg.WorkerCount)
	}
	if cfg.ProbeTimeout <= 0 || cfg.TotalTimeout <= 0 {
		t.Errorf("expected positive timeouts, got %v / %v", cfg.ProbeTimeout, cfg.TotalTimeout)
	}
	if cfg.FallbackDomain == "" {
		t.Errorf("expected non-empty fallback domain")
	}
}
