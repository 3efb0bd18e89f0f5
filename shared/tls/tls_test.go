package tls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortAddressesByFamily(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "IPv4 only",
			input:    []string{"192.168.1.1", "10.0.0.1"},
			expected: []string{"192.168.1.1", "10.0.0.1"},
		},
		{
			name:     "IPv6 only",
			input:    []string{"2001:db8::1", "2001:db8::2"},
			expected: []string{"2001:db8::1", "2001:db8::2"},
		},
		{
			name:     "Mixed - IPv4 first in input",
			input:    []string{"192.168.1.1", "2001:db8::1", "10.0.0.1", "2001:db8::2"},
			expected: []string{"2001:db8::1", "2001:db8::2", "192.168.1.1", "10.0.0.1"},
		},
		{
			name:     "Mixed - IPv6 first in input",
			input:    []string{"2001:db8::1", "192.168.1.1", "2001:db8::2", "10.0.0.1"},
			expected: []string{"2001:db8::1", "2001:db8::2", "192.168.1.1", "10.0.0.1"},
		},
		{
			name:     "Empty input",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "Single IPv4",
			input:    []string{"192.168.1.1"},
			expected: []string{"192.168.1.1"},
		},
		{
			name:     "Single IPv6",
			input:    []string{"2001:db8::1"},
			expected: []string{"2001:db8::1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sortAddressesByFamily(tt.input)

			if len(result) != len(tt.expected) {
				t.Errorf("length mismatch: got %d, expected %d", len(result), len(tt.expected))
				return
			}

			for i, addr := range result {
				if addr != tt.expected[i] {
					t.Errorf("address mismatch at index %d: got %s, expected %s", i, addr, tt.expected[i])
				}
			}
		})
	}
}

func TestRemoteCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cert, err := GetRemoteCertificate(srv.URL, "smc-test")
	require.NoError(t, err)
	assert.Equal(t, srv.Certificate().Raw, cert.Raw)

	fingerprint, err := CertFingerprintStr(CertPEM(cert))
	require.NoError(t, err)
	assert.Equal(t, CertFingerprint(srv.Certificate()), fingerprint)
	assert.Len(t, fingerprint, 64)

	path := filepath.Join(t.TempDir(), "server.crt")
	require.NoError(t, os.WriteFile(path, []byte(CertPEM(cert)), 0o600))

	read, err := ReadCert(path)
	require.NoError(t, err)
	assert.True(t, read.Equal(cert))
}

func TestGetTLSConfigMem(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	get := func(t *testing.T, ca string, pinned string, insecure bool) error {
		config, err := GetTLSConfigMem(ca, pinned, insecure)
		require.NoError(t, err)

		client := &http.Client{Transport: &http.Transport{TLSClientConfig: config}}
		resp, err := client.Get(srv.URL)
		if err != nil {
			return err
		}

		_ = resp.Body.Close()
		return nil
	}

	serverPEM := CertPEM(srv.Certificate())

	assert.Error(t, get(t, "", "", false))
	assert.NoError(t, get(t, "", "", true))
	assert.NoError(t, get(t, serverPEM, "", false))

	// A pinned certificate disables insecure mode.
	config, err := GetTLSConfigMem("", serverPEM, true)
	require.NoError(t, err)
	assert.False(t, config.InsecureSkipVerify)

	_, err = GetTLSConfigMem("not a certificate", "", false)
	assert.Error(t, err)

	_, err = GetTLSConfigMem("", "not a certificate", false)
	assert.Error(t, err)
}

func TestInitTLSConfig(t *testing.T) {
	t.Setenv("SMC_STRICT_TLS", "")
	assert.Equal(t, uint16(0x0303), InitTLSConfig().MinVersion)

	t.Setenv("SMC_STRICT_TLS", "yes")
	assert.Equal(t, uint16(0x0304), InitTLSConfig().MinVersion)
}

func TestIsConnectionError(t *testing.T) {
	_, err := RFC3493Dialer(context.Background(), "tcp", "127.0.0.1:1")
	assert.True(t, IsConnectionError(err))
	assert.False(t, IsConnectionError(nil))
}
