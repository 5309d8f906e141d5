package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainsToHTTPSAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		domains  []string
		expected string
	}{
		{
			name:     "single domain",
			domains:  []string{"example.com"},
			expected: "https://example.com",
		},
		{
			name:     "multiple domains",
			domains:  []string{"example.com", "www.example.com"},
			expected: "https://example.com, https://www.example.com",
		},
		{
			name:     "no domains",
			domains:  []string{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := domainsToHTTPSAddress(tt.domains)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestServer_ServeFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tls     ServerTLS
		wantErr bool
	}{
		{
			name: "plain http",
			tls:  ServerTLS{Enabled: false},
		},
		{
			name: "autocert without domains",
			tls: ServerTLS{
				Enabled:  true,
				Mode:     TLSModeAutoCert,
				AutoCert: &ServerTLSAutoCert{CacheDir: t.TempDir()},
			},
			wantErr: true,
		},
		{
			name: "autocert",
			tls: ServerTLS{
				Enabled:  true,
				Mode:     TLSModeAutoCert,
				AutoCert: &ServerTLSAutoCert{CacheDir: t.TempDir(), Domains: []string{"example.com"}},
			},
		},
		{
			name:    "manual without files",
			tls:     ServerTLS{Enabled: true, Mode: TLSModeManual},
			wantErr: true,
		},
		{
			name:    "unknown mode",
			tls:     ServerTLS{Enabled: true, Mode: "magic"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := &Server{Port: DefaultPort, TLS: tt.tls}

			serve, err := s.serveFunc(&http.Server{Addr: ":" + DefaultPort})
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, serve)
		})
	}
}

func TestServer_Run_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{Host: "127.0.0.1", Port: "0"}

	done := make(chan error, 1)

	go func() {
		done <- s.Run(ctx, http.NotFoundHandler())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
