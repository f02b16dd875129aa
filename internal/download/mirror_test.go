package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestMirrorRewrite(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		path     string
		external bool
		want     string
	}{
		{"reachable keeps url", http.StatusOK, "/m/resolve/main/model.bin", false, ""},
		{"unreachable rewrites", http.StatusServiceUnavailable, "/m/resolve/main/model.bin", false, "https://mirror.example/m/resolve/main/model.bin"},
		{"non-200 counts as unreachable", http.StatusForbidden, "/x", false, "https://mirror.example/x"},
		{"other hosts pass through", http.StatusServiceUnavailable, "", true, "https://github.com/a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var probes int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("probe method = %s, want HEAD", r.Method)
				}
				atomic.AddInt32(&probes, 1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			m := NewMirror(MirrorOptions{Primary: server.URL, Mirror: "https://mirror.example"})

			in := server.URL + tt.path
			if tt.external {
				in = "https://github.com/a/b"
			}
			want := tt.want
			if want == "" {
				want = in
			}

			if got := m.Rewrite(context.Background(), in); got != want {
				t.Errorf("Rewrite(%q) = %q, want %q", in, got, want)
			}
			if tt.external && atomic.LoadInt32(&probes) != 0 {
				t.Error("non-matching URL should not trigger a probe")
			}
		})
	}
}

func TestMirror_ProbeCached(t *testing.T) {
	var probes int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&probes, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	m := NewMirror(MirrorOptions{Primary: server.URL, Mirror: "https://mirror.example"})
	for i := 0; i < 3; i++ {
		m.Rewrite(context.Background(), server.URL+"/file")
	}

	if got := atomic.LoadInt32(&probes); got != 1 {
		t.Errorf("probes = %d, want 1", got)
	}
}

func TestMirror_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	primary := server.URL
	server.Close()

	m := NewMirror(MirrorOptions{Primary: primary, Mirror: "https://mirror.example"})
	if m.Reachable(context.Background()) {
		t.Error("closed server should be unreachable")
	}
}

func TestMirror_Nil(t *testing.T) {
	var m *Mirror
	in := "https://huggingface.co/model.bin"
	if got := m.Rewrite(context.Background(), in); got != in {
		t.Errorf("nil Mirror rewrote %q to %q", in, got)
	}
}

func TestNewMirror_Defaults(t *testing.T) {
	m := NewMirror(MirrorOptions{})
	if m.primary != HuggingFaceURL || m.mirror != HuggingFaceMirrorURL {
		t.Errorf("defaults = %s -> %s", m.primary, m.mirror)
	}
	if m.host != "huggingface.co" {
		t.Errorf("host = %q, want huggingface.co", m.host)
	}
	if m.timeout != DefaultProbeTimeout {
		t.Errorf("timeout = %v", m.timeout)
	}
}
