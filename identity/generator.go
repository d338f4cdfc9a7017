package identity

import (
	"crypto/rand"
	"io"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// ExternalRefs are opaque references to the (simulated) external ledger and
// content storage. They are stored and returned as-is, never interpreted.
type ExternalRefs struct {
	LedgerTxRef string `json:"ledger_tx_ref"`
	StorageRef  string `json:"storage_ref"`
}

const (
	ledgerRefPrefix  = "0x"
	ledgerRefLen     = 64
	storageRefPrefix = "Qm"
	storageRefLen    = 44
)

// Identity is the output of Generator.Issue
type Identity struct {
	// Fields are the normalized fields the hash was computed over
	Fields          Fields       `json:"fields"`
	CertificateID   string       `json:"certificate_id"`
	CertificateHash string       `json:"certificate_hash"`
	Refs            ExternalRefs `json:"external_refs"`
}

// Generator produces certificate ids, hashes and external references.
// A Generator holds no mutable state and can be used concurrently.
type Generator struct {
	// Random is the source of randomness; crypto/rand.Reader if nil
	Random io.Reader
}

// NewGenerator returns a Generator using crypto/rand
func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) random() io.Reader {
	if g == nil || g.Random == nil {
		return rand.Reader
	}
	return g.Random
}

// NewCertificateID returns a fresh certificate id of the form
// EDU-<unix millis>-<5 uppercase base36 chars>
func (g *Generator) NewCertificateID(issuedAt time.Time) (string, error) {
	suffix, err := randomString(g.random(), base36Alphabet, idSuffixLen)
	if err != nil {
		return "", err
	}
	return formatCertificateID(issuedAt, suffix), nil
}

// NewExternalRefs returns fresh simulated ledger and storage references
func (g *Generator) NewExternalRefs() (ExternalRefs, error) {
	ledger, err := randomHex(g.random(), ledgerRefLen)
	if err != nil {
		return ExternalRefs{}, err
	}
	store, err := randomHex(g.random(), storageRefLen)
	if err != nil {
		return ExternalRefs{}, err
	}
	return ExternalRefs{
		LedgerTxRef: ledgerRefPrefix + ledger,
		StorageRef:  storageRefPrefix + store,
	}, nil
}

// Issue generates the identity of a new certificate: its id, the content
// hash of the normalized fields and the external references. If the id
// collides with a stored one, only the id is redrawn with NewCertificateID;
// hash and references stay valid.
func (g *Generator) Issue(fields Fields, issuedAt time.Time) (*Identity, error) {
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	fields = fields.WithDefaults(issuedAt)
	id, err := g.NewCertificateID(issuedAt)
	if err != nil {
		return nil, err
	}
	refs, err := g.NewExternalRefs()
	if err != nil {
		return nil, err
	}
	return &Identity{
		Fields:          fields,
		CertificateID:   id,
		CertificateHash: Hash(fields),
		Refs:            refs,
	}, nil
}

// Assessor yields the confidence score recorded at issuance
type Assessor interface {
	Assess(fields Fields) (int, error)
}

// PlaceholderAssessor is the default Assessor. It does not analyze anything
// and returns a uniformly drawn integer score in [Min, Max].
type PlaceholderAssessor struct {
	Min, Max int
	Random   io.Reader
}

// DefaultAssessor returns the placeholder assessor with its default range
func DefaultAssessor() PlaceholderAssessor {
	return PlaceholderAssessor{
		Min: 95,
		Max: 99,
	}
}

// Assess implements the Assessor interface
func (a PlaceholderAssessor) Assess(_ Fields) (int, error) {
	if a.Max < a.Min {
		return 0, errors.Errorf("invalid assessor range [%d, %d]", a.Min, a.Max)
	}
	r := a.Random
	if r == nil {
		r = rand.Reader
	}
	n, err := rand.Int(r, big.NewInt(int64(a.Max-a.Min+1)))
	if err != nil {
		return 0, errors.Wrap(err, "could not read randomness")
	}
	return a.Min + int(n.Int64()), nil
}

// ValidConfidence reports whether the passed score is in [0, 100]
func ValidConfidence(score int) bool {
	return score >= 0 && score <= 100
}
