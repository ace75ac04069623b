package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestIsZipcode(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"12345", true},
		{"12345-6789", true},
		{"02139", true},
		{"1234", false},
		{"123456", false},
		{"abcde", false},
		{"12a45", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isZipcode(tt.input); got != tt.expected {
				t.Errorf("isZipcode(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGeocode_CityQuery(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("q") != "Chatham, MA" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		w.Write([]byte(`[{"lat":"41.6821","lon":"-69.9597","display_name":"Chatham, Barnstable County"}]`))
	}))
	defer server.Close()

	g := NewGeocoder(server.URL)
	loc, err := g.Geocode(context.Background(), "  Chatham, MA ")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if loc.Latitude != 41.6821 || loc.Longitude != -69.9597 || !strings.HasPrefix(loc.Name, "Chatham") {
		t.Errorf("Geocode() = %+v", loc)
	}

	// second lookup is served from memory
	if _, err := g.Geocode(context.Background(), "chatham, ma"); err != nil {
		t.Fatalf("Geocode() second call error = %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestGeocode_ZipcodeUsesPostalcode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("postalcode") != "02633" || q.Get("q") != "" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`[{"lat":"41.68","lon":"-69.96","display_name":"02633"}]`))
	}))
	defer server.Close()

	if _, err := NewGeocoder(server.URL).Geocode(context.Background(), "02633"); err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
}

func TestGeocode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"no results", http.StatusOK, `[]`, "no results"},
		{"bad status", http.StatusForbidden, ``, "status 403"},
		{"bad json", http.StatusOK, `{`, "decoding response"},
		{"bad latitude", http.StatusOK, `[{"lat":"north","lon":"1"}]`, "parsing latitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewGeocoder(server.URL).Geocode(context.Background(), "Nowhere")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Geocode() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestGeocode_EmptyQuery(t *testing.T) {
	if _, err := NewGeocoder("").Geocode(context.Background(), "   "); err == nil {
		t.Error("Geocode(\"\") expected error")
	}
}
