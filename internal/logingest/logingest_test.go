package logingest

import (
	"testing"
	"time"
)

func TestParseLine_Basic(t *testing.T) {
	line := "06-Jan-2026 10:15:23.123 client 192.168.1.5#52341: query: example.com IN A +E (10.0.0.1)\n"
	row, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if row.ClientIP != "192.168.1.5" {
		t.Errorf("ClientIP = %q", row.ClientIP)
	}
	if row.ClientPort != 52341 {
		t.Errorf("ClientPort = %d", row.ClientPort)
	}
	if row.QueryName != "example.com" {
		t.Errorf("QueryName = %q", row.QueryName)
	}
	if row.QueryType != "A" {
		t.Errorf("QueryType = %q", row.QueryType)
	}
	wantTime := time.Date(2026, time.January, 6, 10, 15, 23, 123000000, time.UTC)
	if !row.Timestamp.Equal(wantTime) {
		t.Errorf("Timestamp = %v, want %v", row.Timestamp, wantTime)
	}
}

func TestParseLine_CacheHitFlag(t *testing.T) {
	line := "06-Jan-2026 10:15:23.123 client 10.0.0.1#1234: query: cached.example.com IN AAAA C (10.0.0.1)\n"
	row, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if !row.CacheHit {
		t.Errorf("expected CacheHit=true")
	}
}

func TestParseLine_Malformed(t *testing.T) {
	if _, err := ParseLine("not a query log line\n"); err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.setDefaults()
	if cfg.FlushInterval != 5*time.Second {
		t.Errorf("FlushInterval = %v", cfg.FlushInterval)
	}
	if cfg.FlushBatch != 100 {
		t.Errorf("FlushBatch = %d", cfg.FlushBatch)
	}
	if cfg.SampleEvery != 1 {
		t.Errorf("SampleEvery = %d", cfg.SampleEvery)
	}
}
