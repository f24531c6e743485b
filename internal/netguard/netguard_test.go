package netguard

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	guard := New()
	cases := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https allowed", "https://example.com/feed.xml", false},
		{"http allowed", "http://example.com/feed.xml", false},
		{"empty", "", true},
		{"ftp scheme", "ftp://example.com/feed.xml", true},
		{"file scheme", "file:///etc/passwd", true},
		{"missing host", "https:///feed.xml", true},
		{"localhost", "http://localhost/feed.xml", true},
		{"loopback ip", "http://127.0.0.1/feed.xml", true},
		{"private ip", "http://10.1.2.3/feed.xml", true},
		{"metadata ip", "http://169.254.169.254/latest", true},
		{"public ip", "http://93.184.216.34/feed.xml", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := guard.ValidateURL(tc.url)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %q", tc.url)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.url, err)
			}
		})
	}
}

func TestValidateURLAllowPrivateHosts(t *testing.T) {
	guard := &Guard{AllowPrivateHosts: true}
	if err := guard.ValidateURL("http://127.0.0.1:8080/feed.xml"); err != nil {
		t.Fatalf("expected loopback to pass with escape hatch: %v", err)
	}
	if err := guard.ValidateURL("ftp://example.com/feed"); err == nil {
		t.Fatal("scheme check must still apply")
	}
}

func TestNewClientUsesCustomTransport(t *testing.T) {
	client := New().NewClient(5 * time.Second)
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected a restricted transport")
	}
	if client.Timeout != 5*time.Second {
		t.Fatalf("timeout not applied: %v", client.Timeout)
	}
}

func TestNewClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := New().NewClient(2 * time.Second)
	resp, err := client.Get(ts.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected loopback request to be blocked")
	}
}

func TestNewClientAllowPrivateHosts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := (&Guard{AllowPrivateHosts: true}).NewClient(2 * time.Second)
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("expected loopback request to succeed: %v", err)
	}
	resp.Body.Close()
}
