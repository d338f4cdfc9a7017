package proof

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/fileutils"
)

// MediaType is the typ header of signed proofs
const MediaType = "credtrust-proof+jws"

// Signer signs proofs with a single ES256 key
type Signer struct {
	issuer  string
	private jwk.Key
	public  jwk.Key
	kid     string
}

// NewSigner returns a Signer for the passed PEM encoded EC private key
func NewSigner(issuer string, privatePEM []byte) (*Signer, error) {
	key, err := jwk.ParseKey(privatePEM, jwk.WithPEM(true))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse proof signing key")
	}
	public, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive public proof key")
	}
	thumbprint, err := public.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute key thumbprint")
	}
	kid := base64.RawURLEncoding.EncodeToString(thumbprint)
	for _, k := range []jwk.Key{
		key,
		public,
	} {
		if err = k.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, errors.WithStack(err)
		}
		if err = k.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	if err = public.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Signer{
		issuer:  issuer,
		private: key,
		public:  public,
		kid:     kid,
	}, nil
}

// GenerateKeyPEM generates a new P-256 private key in PEM encoding
func GenerateKeyPEM() ([]byte, error) {
	sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate proof signing key")
	}
	der, err := x509.MarshalECPrivateKey(sk)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return pem.EncodeToMemory(
		&pem.Block{
			Type:  "EC PRIVATE KEY",
			Bytes: der,
		},
	), nil
}

// LoadOrGenerate returns a Signer for the key stored at path. If no such
// file exists and generate is set, a new key is generated and written
// there.
func LoadOrGenerate(issuer, path string, generate bool) (*Signer, error) {
	if fileutils.FileExists(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read proof signing key")
		}
		return NewSigner(issuer, data)
	}
	if !generate {
		return nil, errors.Errorf("proof signing key '%s' does not exist", path)
	}
	data, err := GenerateKeyPEM()
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err = os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.Wrap(err, "failed to create key directory")
		}
	}
	if err = os.WriteFile(path, data, 0600); err != nil {
		return nil, errors.Wrap(err, "failed to write proof signing key")
	}
	log.WithField("path", path).Info("generated new proof signing key")
	return NewSigner(issuer, data)
}

// KeyID returns the key id of the signing key
func (s *Signer) KeyID() string {
	return s.kid
}

// Issuer returns the iss claim of signed proofs
func (s *Signer) Issuer() string {
	return s.issuer
}

// JWKS returns the public key set for proof verification
func (s *Signer) JWKS() (jwk.Set, error) {
	set := jwk.NewSet()
	if err := set.AddKey(s.public); err != nil {
		return nil, errors.WithStack(err)
	}
	return set, nil
}

// Sign sets the issuer of the proof and returns it as compact JWS
func (s *Signer) Sign(p Proof) ([]byte, error) {
	p.Issuer = s.issuer
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal proof")
	}
	headers := jws.NewHeaders()
	if err = headers.Set(jws.KeyIDKey, s.kid); err != nil {
		return nil, errors.WithStack(err)
	}
	if err = headers.Set(jws.TypeKey, MediaType); err != nil {
		return nil, errors.WithStack(err)
	}
	signed, err := jws.Sign(payload, jws.WithKey(jwa.ES256(), s.private, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign proof")
	}
	return signed, nil
}

// Verify checks the signature of a compact JWS proof and returns its payload
func (s *Signer) Verify(signed []byte) (*Proof, error) {
	payload, err := jws.Verify(signed, jws.WithKey(jwa.ES256(), s.public))
	if err != nil {
		return nil, errors.Wrap(err, "invalid proof signature")
	}
	var p Proof
	if err = json.Unmarshal(payload, &p); err != nil {
		return nil, errors.Wrap(err, "failed to parse proof")
	}
	return &p, nil
}
