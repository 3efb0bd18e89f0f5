package cliconfig

import (
	"crypto/x509"
	"errors"
	"io/fs"
	"os"

	localtls "github.com/smcgo/smc/shared/tls"
	"github.com/smcgo/smc/shared/util"
)

// HasServerCert returns true if a certificate is pinned for the remote.
func (c *Config) HasServerCert(name string) bool {
	return util.PathExists(c.ServerCertPath(name))
}

// SaveServerCert pins the certificate presented by a remote.
func (c *Config) SaveServerCert(name string, cert *x509.Certificate) error {
	err := c.ensureDir("servercerts")
	if err != nil {
		return err
	}

	return os.WriteFile(c.ServerCertPath(name), []byte(localtls.CertPEM(cert)), 0o644)
}

// ServerCertFingerprint returns the fingerprint of the certificate pinned for a remote.
func (c *Config) ServerCertFingerprint(name string) (string, error) {
	cert, err := localtls.ReadCert(c.ServerCertPath(name))
	if err != nil {
		return "", err
	}

	return localtls.CertFingerprint(cert), nil
}

// RemoveServerCert drops the certificate pinned for a remote, if any.
func (c *Config) RemoveServerCert(name string) error {
	err := os.Remove(c.ServerCertPath(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// RenameServerCert moves a pinned certificate along with its remote.
func (c *Config) RenameServerCert(oldName string, newName string) error {
	if !c.HasServerCert(oldName) {
		return nil
	}

	return os.Rename(c.ServerCertPath(oldName), c.ServerCertPath(newName))
}
