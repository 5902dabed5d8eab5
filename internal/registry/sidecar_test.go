package registry

import "testing"

func TestSidecarName(t *testing.T) {
	tests := []struct {
		name                string
		dnsName             string
		prefix              string
		wildcardReplacement string
		want                string
	}{
		{"plain name", "app.example.com", "sherpa-dns-", "star", "sherpa-dns-app.example.com"},
		{"wildcard name", "*.example.com", "sherpa-dns-", "star", "sherpa-dns-star.example.com"},
		{"bare name with no dot", "app", "sherpa-dns-", "star", "sherpa-dns-app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sidecarName(tt.dnsName, tt.prefix, tt.wildcardReplacement); got != tt.want {
				t.Errorf("sidecarName(%q) = %q, want %q", tt.dnsName, got, tt.want)
			}
		})
	}
}

func TestParseSidecarContentRequiresHeritageToken(t *testing.T) {
	if got := parseSidecarContent("owner=default,type=A"); got != nil {
		t.Errorf("parseSidecarContent() = %v, want nil without heritage=sherpa-dns", got)
	}
}

func TestParseSidecarContentRoundTrip(t *testing.T) {
	content := sidecarContent("default", "A")
	values := parseSidecarContent(content)
	if values == nil {
		t.Fatal("parseSidecarContent() = nil, want parsed map")
	}
	if values["owner"] != "default" || values["type"] != "A" {
		t.Errorf("parseSidecarContent() = %v", values)
	}
}
