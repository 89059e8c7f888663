package feed

import (
	"strings"
	"testing"

	"github.com/dnscp/dnscp/internal/model"
)

func TestParseFeed_Domains(t *testing.T) {
	in := "evil.example.com\n# comment\n\nbad.example.org\n"
	got, err := ParseFeed(strings.NewReader(in), model.FeedFormatDomains)
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	want := []string{"evil.example.com", "bad.example.org"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestParseFeed_Hosts(t *testing.T) {
	in := "0.0.0.0 evil.example.com\n127.0.0.1 localhost\n# skip\n"
	got, err := ParseFeed(strings.NewReader(in), model.FeedFormatHosts)
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	want := []string{"evil.example.com", "localhost"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFeed_JSON_Strings(t *testing.T) {
	in := `["evil.example.com", "bad.example.org"]`
	got, err := ParseFeed(strings.NewReader(in), model.FeedFormatJSON)
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
}

func TestParseFeed_JSON_Objects(t *testing.T) {
	in := `[{"domain":"evil.example.com"},{"domain":"bad.example.org"}]`
	got, err := ParseFeed(strings.NewReader(in), model.FeedFormatJSON)
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if len(got) != 2 || got[0] != "evil.example.com" {
		t.Fatalf("got %v", got)
	}
}

func TestParseFeed_CSV(t *testing.T) {
	in := "evil.example.com,malware\nbad.example.org,phishing\n"
	got, err := ParseFeed(strings.NewReader(in), model.FeedFormatCSV)
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if len(got) != 2 || got[1] != "bad.example.org" {
		t.Fatalf("got %v", got)
	}
}

func TestParseFeed_YAML_Flat(t *testing.T) {
	in := "- evil.example.com\n- bad.example.org\n"
	got, err := ParseFeed(strings.NewReader(in), model.FeedFormatYAML)
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if len(got) != 2 || got[0] != "evil.example.com" {
		t.Fatalf("got %v", got)
	}
}

func TestParseFeed_YAML_Manifest(t *testing.T) {
	in := "domains:\n  - evil.example.com\nentries:\n  - domain: bad.example.org\n"
	got, err := ParseFeed(strings.NewReader(in), model.FeedFormatYAML)
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if len(got) != 2 || got[0] != "evil.example.com" || got[1] != "bad.example.org" {
		t.Fatalf("got %v", got)
	}
}

func TestParseFeed_UnknownFormat(t *testing.T) {
	_, err := ParseFeed(strings.NewReader(""), model.FeedFormat("bogus"))
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
}
