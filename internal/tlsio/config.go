// Package tlsio adapts a blocking byte-stream connection to TLS. Go's
// crypto/tls.Conn already implements the wrap/unwrap, buffer-growth, and
// synchronous-handshake discipline described for the framing adapter, so
// this package is a thin builder around *tls.Config plus a small error
// type, rather than a hand-rolled engine.
package tlsio

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/net/idna"
)

// TLSError wraps a handshake or certificate-selection failure.
type TLSError struct {
	Op  string
	Err error
}

func (e *TLSError) Error() string { return fmt.Sprintf("tlsio: %s: %v", e.Op, e.Err) }
func (e *TLSError) Unwrap() error { return e.Err }

var defaultCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// Config builds a *tls.Config with either a static SNI certificate map or
// ACME-backed automatic certificates, plus ALPN negotiation.
type Config struct {
	MinVersion   uint16
	MaxVersion   uint16
	CipherSuites []uint16
	NextProtos   []string
	ClientAuth   tls.ClientAuthType

	mu    sync.RWMutex
	certs map[string]*tls.Certificate // idna-normalized SNI -> cert

	autocert *autocert.Manager
}

// NewConfig returns a Config with conservative, modern defaults.
func NewConfig() *Config {
	return &Config{
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
		CipherSuites: defaultCipherSuites,
		NextProtos:   []string{"http/1.1"},
		certs:        make(map[string]*tls.Certificate),
	}
}

// WithALPN overrides the advertised ALPN protocol list.
func (c *Config) WithALPN(protos ...string) *Config {
	c.NextProtos = protos
	return c
}

// WithMinVersion overrides the minimum negotiated TLS version.
func (c *Config) WithMinVersion(v uint16) *Config {
	c.MinVersion = v
	return c
}

// AddCertificate registers a certificate chain (end-entity first) under
// one or more SNI hostnames, normalized via IDNA (punycode) so lookups at
// handshake time are consistent regardless of the client's encoding.
func (c *Config) AddCertificate(cert tls.Certificate, hostnames ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range hostnames {
		norm, err := idna.Lookup.ToASCII(h)
		if err != nil {
			return &TLSError{Op: "normalize-hostname", Err: err}
		}
		c.certs[norm] = &cert
	}
	return nil
}

// WithAutocert enables ACME-issued, automatically renewed certificates
// for the given hostnames via an autocert.Manager with an on-disk cache.
func (c *Config) WithAutocert(cacheDir string, hostnames ...string) *Config {
	c.autocert = &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(hostnames...),
		Cache:      autocert.DirCache(cacheDir),
	}
	return c
}

// TLSConfig assembles the final *tls.Config. Without an autocert manager,
// getCertificate resolves SNI hostnames against the static map and an
// unmatched hostname fails the handshake with TLSError. With an autocert
// manager configured, every certificate comes from it; the static map is
// not consulted.
func (c *Config) TLSConfig() *tls.Config {
	cfg := &tls.Config{
		MinVersion:   c.MinVersion,
		MaxVersion:   c.MaxVersion,
		CipherSuites: c.CipherSuites,
		NextProtos:   c.NextProtos,
		ClientAuth:   c.ClientAuth,
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			return c.getCertificate(hello)
		},
	}
	if c.autocert != nil {
		cfg.GetCertificate = c.autocert.GetCertificate
		cfg.NextProtos = append(cfg.NextProtos, autocert.ALPNProto)
	}
	return cfg
}

func (c *Config) getCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	name := hello.ServerName
	if name == "" {
		return nil, &TLSError{Op: "select-certificate", Err: errors.New("no SNI server name")}
	}
	norm, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return nil, &TLSError{Op: "normalize-hostname", Err: err}
	}

	c.mu.RLock()
	cert, ok := c.certs[norm]
	c.mu.RUnlock()
	if !ok {
		return nil, &TLSError{Op: "select-certificate", Err: fmt.Errorf("no certificate for %q", name)}
	}
	return cert, nil
}

// HTTPHandler returns the handler that must serve ACME HTTP-01 challenge
// responses on port 80, or nil if autocert is not configured.
func (c *Config) HTTPHandler(fallback http.Handler) http.Handler {
	if c.autocert == nil {
		return fallback
	}
	return c.autocert.HTTPHandler(fallback)
}

// RenewalCheckInterval mirrors the period the underlying autocert.Manager
// polls at, exposed for instrumentation/logging parity with the manual
// certificate path.
const RenewalCheckInterval = 12 * time.Hour
