// Package auth implements the secured variant's authentication: a JWT bearer
// scheme and a client-certificate scheme. The default policy requires both to
// produce an authenticated identity, matching the real gateway, but the mode
// is configurable so local setups can run with one scheme or none.
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/laa-dces/mock-drc/pkg/identity"
	"github.com/laa-dces/mock-drc/pkg/logging"
	"github.com/laa-dces/mock-drc/pkg/tlsutil"
)

// Mode selects how many schemes must authenticate a request.
type Mode string

// Authentication modes.
const (
	// ModeDisabled attaches whatever identities are present but never rejects.
	ModeDisabled Mode = "disabled"
	// ModeAny requires at least one scheme to succeed.
	ModeAny Mode = "any"
	// ModeAll requires every configured scheme to succeed (the secured
	// variant's default: bearer token AND client certificate).
	ModeAll Mode = "all"
)

// Config holds authentication configuration.
type Config struct {
	// Mode is the enforcement policy. Defaults to ModeDisabled when empty.
	Mode Mode `json:"mode" yaml:"mode"`

	// Audience is the required JWT audience claim.
	Audience string `json:"audience,omitempty" yaml:"audience,omitempty"`

	// Issuer is the required JWT issuer claim.
	Issuer string `json:"issuer,omitempty" yaml:"issuer,omitempty"`

	// HMACSecret validates HS256 tokens when set.
	HMACSecret string `json:"hmacSecret,omitempty" yaml:"hmacSecret,omitempty"`

	// RSAPublicKeyPEM validates RS256 tokens when set. Takes precedence over
	// HMACSecret.
	RSAPublicKeyPEM string `json:"rsaPublicKey,omitempty" yaml:"rsaPublicKey,omitempty"`

	// ClientCAPEM is the PEM-encoded CA used to verify client certificates.
	// When empty, any presented certificate is accepted (the local-dev
	// behavior of the original).
	ClientCAPEM string `json:"clientCa,omitempty" yaml:"clientCa,omitempty"`

	// CertHeader is the header carrying a forwarded base64-DER client
	// certificate when TLS terminates upstream (e.g. "X-ARR-ClientCert").
	CertHeader string `json:"certHeader,omitempty" yaml:"certHeader,omitempty"`
}

// Errors returned by the authenticator.
var (
	ErrNoToken      = errors.New("no bearer token presented")
	ErrInvalidToken = errors.New("invalid bearer token")
	ErrNoCert       = errors.New("no client certificate presented")
	ErrInvalidCert  = errors.New("client certificate not trusted")
)

// Authenticator resolves a request into a principal according to the
// configured schemes.
type Authenticator struct {
	mode       Mode
	parser     *jwt.Parser
	hmacSecret []byte
	rsaKey     *rsa.PublicKey
	caPool     *x509.CertPool
	certHeader string
	log        *slog.Logger
}

// New creates an Authenticator from config.
func New(cfg Config, log *slog.Logger) (*Authenticator, error) {
	if log == nil {
		log = logging.Nop()
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeDisabled
	}
	switch mode {
	case ModeDisabled, ModeAny, ModeAll:
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}

	a := &Authenticator{
		mode:       mode,
		certHeader: cfg.CertHeader,
		log:        log,
	}

	parserOpts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}

	if cfg.RSAPublicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.RSAPublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("invalid RSA public key: %w", err)
		}
		a.rsaKey = key
		parserOpts = append(parserOpts, jwt.WithValidMethods([]string{"RS256"}))
	} else if cfg.HMACSecret != "" {
		a.hmacSecret = []byte(cfg.HMACSecret)
		parserOpts = append(parserOpts, jwt.WithValidMethods([]string{"HS256"}))
	}
	a.parser = jwt.NewParser(parserOpts...)

	if cfg.ClientCAPEM != "" {
		cert, err := tlsutil.DecodeCertPEM([]byte(cfg.ClientCAPEM))
		if err != nil {
			return nil, fmt.Errorf("invalid client CA: %w", err)
		}
		a.caPool = x509.NewCertPool()
		a.caPool.AddCert(cert)
	}

	return a, nil
}

// Mode returns the enforcement policy.
func (a *Authenticator) Mode() Mode {
	return a.mode
}

// Authenticate runs every scheme against the request and returns the
// principal of all identities that succeeded, plus the errors from schemes
// that did not. The caller decides whether the combination satisfies the
// policy.
func (a *Authenticator) Authenticate(r *http.Request) (*identity.Principal, []error) {
	p := &identity.Principal{}
	var failures []error

	if id, err := a.bearerIdentity(r); err != nil {
		failures = append(failures, err)
	} else {
		p.Identities = append(p.Identities, id)
	}

	if id, err := a.certIdentity(r); err != nil {
		failures = append(failures, err)
	} else {
		p.Identities = append(p.Identities, id)
	}

	return p, failures
}

func (a *Authenticator) keyfunc(token *jwt.Token) (any, error) {
	if a.rsaKey != nil {
		return a.rsaKey, nil
	}
	if a.hmacSecret != nil {
		return a.hmacSecret, nil
	}
	return nil, errors.New("no signing key configured")
}

func (a *Authenticator) bearerIdentity(r *http.Request) (identity.Identity, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return identity.Identity{}, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, a.keyfunc); err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	sub, _ := claims.GetSubject()
	iss, _ := claims.GetIssuer()
	return identity.Identity{Name: sub, Method: identity.MethodBearer, Issuer: iss}, nil
}

func (a *Authenticator) certIdentity(r *http.Request) (identity.Identity, error) {
	cert, err := a.peerCertificate(r)
	if err != nil {
		return identity.Identity{}, err
	}

	if a.caPool != nil {
		_, err := cert.Verify(x509.VerifyOptions{
			Roots:     a.caPool,
			KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		})
		if err != nil {
			return identity.Identity{}, fmt.Errorf("%w: %w", ErrInvalidCert, err)
		}
	}

	return identity.FromCertificate(cert), nil
}

// peerCertificate returns the leaf client certificate, preferring the TLS
// handshake and falling back to the forwarded header when configured.
func (a *Authenticator) peerCertificate(r *http.Request) (*x509.Certificate, error) {
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		return r.TLS.PeerCertificates[0], nil
	}

	if a.certHeader != "" {
		if raw := r.Header.Get(a.certHeader); raw != "" {
			der, err := base64.StdEncoding.DecodeString(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: bad %s encoding: %w", ErrInvalidCert, a.certHeader, err)
			}
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return nil, fmt.Errorf("%w: bad %s certificate: %w", ErrInvalidCert, a.certHeader, err)
			}
			return cert, nil
		}
	}

	return nil, ErrNoCert
}
