package storage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

// Argon2idParams configures how user passwords are hashed
type Argon2idParams struct {
	Time        uint32 `yaml:"time"`
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Parallelism uint8  `yaml:"parallelism"`
	KeyLen      uint32 `yaml:"key_len"`
	SaltLen     uint32 `yaml:"salt_len"`
}

func defaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
		SaltLen:     16,
	}
}

func (p Argon2idParams) orDefault() Argon2idParams {
	if p.Time == 0 {
		return defaultArgon2idParams()
	}
	return p
}

const phcPrefix = "$argon2id$v=19$"

// passwordHash is a decoded PHC string of the form
// $argon2id$v=19$m=<kib>,t=<time>,p=<threads>$<salt>$<key>
type passwordHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (h passwordHash) String() string {
	enc := base64.RawStdEncoding
	return fmt.Sprintf(
		"%sm=%d,t=%d,p=%d$%s$%s", phcPrefix, h.params.MemoryKiB, h.params.Time, h.params.Parallelism,
		enc.EncodeToString(h.salt), enc.EncodeToString(h.key),
	)
}

func newPasswordHash(password string, params Argon2idParams) (string, error) {
	params = params.orDefault()
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "failed to generate password salt")
	}
	return passwordHash{
		params: params,
		salt:   salt,
		key:    argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen),
	}.String(), nil
}

func decodePasswordHash(encoded string) (*passwordHash, error) {
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return nil, errors.New("unsupported password hash format")
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 3 {
		return nil, errors.New("invalid argon2id hash format")
	}
	var h passwordHash
	if _, err := fmt.Sscanf(
		fields[0], "m=%d,t=%d,p=%d", &h.params.MemoryKiB, &h.params.Time, &h.params.Parallelism,
	); err != nil {
		return nil, errors.Wrap(err, "invalid argon2id parameters")
	}
	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[1]); err != nil {
		return nil, errors.Wrap(err, "invalid argon2id salt")
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[2]); err != nil {
		return nil, errors.Wrap(err, "invalid argon2id key")
	}
	h.params.SaltLen = uint32(len(h.salt))
	h.params.KeyLen = uint32(len(h.key))
	return &h, nil
}

// matches compares password in constant time
func (h passwordHash) matches(password string) bool {
	p := h.params
	derived := argon2.IDKey([]byte(password), h.salt, p.Time, p.MemoryKiB, p.Parallelism, p.KeyLen)
	return subtle.ConstantTimeCompare(derived, h.key) == 1
}

// checkPassword verifies password against the stored hash. The returned
// rehash is set when the hash was created with other parameters than
// params and should be replaced.
func checkPassword(encoded, password string, params Argon2idParams) (valid, rehash bool) {
	h, err := decodePasswordHash(encoded)
	if err != nil || !h.matches(password) {
		return false, false
	}
	return true, h.params != params.orDefault()
}
