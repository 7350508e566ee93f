// Package identity models the authenticated caller of a secured mock
// instance. A principal carries zero or more named identities, one per
// authentication scheme that succeeded (bearer token, client certificate),
// mirroring how the real gateway presents callers.
package identity

import "crypto/x509"

// Method identifies the authentication scheme that produced an identity.
type Method string

// Authentication methods.
const (
	MethodBearer      Method = "bearer"
	MethodCertificate Method = "certificate"
)

// Identity is one authenticated name, e.g. the token subject or the client
// certificate's common name.
type Identity struct {
	// Name is the principal name asserted by the scheme.
	Name string `json:"name"`
	// Method is the scheme that authenticated the name.
	Method Method `json:"method"`
	// Issuer is who vouched for the identity: the token issuer or the
	// certificate CA's common name.
	Issuer string `json:"issuer,omitempty"`
}

// Principal is the set of identities established for one request.
type Principal struct {
	Identities []Identity `json:"identities"`
}

// Names returns the identity names in order. Used for the who-am-i echo and
// request logging.
func (p *Principal) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.Identities))
	for i, id := range p.Identities {
		names[i] = id.Name
	}
	return names
}

// Has reports whether the principal carries an identity from the given method.
func (p *Principal) Has(method Method) bool {
	if p == nil {
		return false
	}
	for _, id := range p.Identities {
		if id.Method == method {
			return true
		}
	}
	return false
}

// FromCertificate builds an identity from a verified client certificate.
func FromCertificate(cert *x509.Certificate) Identity {
	return Identity{
		Name:   cert.Subject.CommonName,
		Method: MethodCertificate,
		Issuer: cert.Issuer.CommonName,
	}
}
