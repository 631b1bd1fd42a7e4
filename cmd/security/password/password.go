package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2.Version is 0x13.
const phcVersion = 19

var phcEncoding = base64.RawStdEncoding

// Hash validates password against the policy and returns a PHC string:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<key_b64>
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt,
		c.Params.Iterations, c.Params.MemoryKiB, c.Params.Parallelism, c.Params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcVersion,
		c.Params.MemoryKiB, c.Params.Iterations, c.Params.Parallelism,
		phcEncoding.EncodeToString(salt),
		phcEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded.
// A mismatch is (false, nil); a malformed or out-of-bounds hash is (false, ErrInvalidHash).
func (c Config) Verify(encoded, password string) (bool, error) {
	stored, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	// Stored parameters are untrusted input: refuse pathological costs.
	if !stored.params.within(c.Params) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(password), stored.salt,
		stored.params.Iterations, stored.params.MemoryKiB, stored.params.Parallelism,
		stored.params.KeyLength)

	return subtle.ConstantTimeCompare(key, stored.key) == 1, nil
}

type phcHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func parsePHC(encoded string) (phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return phcHash{}, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", phcVersion) {
		return phcHash{}, ErrInvalidHash
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return phcHash{}, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return phcHash{}, ErrInvalidHash
	}

	salt, err := phcEncoding.DecodeString(parts[4])
	if err != nil {
		return phcHash{}, ErrInvalidHash
	}
	key, err := phcEncoding.DecodeString(parts[5])
	if err != nil {
		return phcHash{}, ErrInvalidHash
	}

	return phcHash{
		params: Argon2idParams{
			MemoryKiB:   mem,
			Iterations:  iter,
			Parallelism: uint8(par),        // #nosec G115 -- checked <= 255 above.
			SaltLength:  uint32(len(salt)), // #nosec G115 -- base64 segment length.
			KeyLength:   uint32(len(key)),  // #nosec G115 -- base64 segment length.
		},
		salt: salt,
		key:  key,
	}, nil
}

// within allows hashes produced with older, cheaper settings but rejects
// anything far above the configured cost.
func (p Argon2idParams) within(limits Argon2idParams) bool {
	switch {
	case p.MemoryKiB > limits.MemoryKiB*2:
		return false
	case p.Iterations > limits.Iterations*2:
		return false
	case p.Parallelism > limits.Parallelism*2:
		return false
	case p.SaltLength < 8 || p.SaltLength > 64:
		return false
	case p.KeyLength < 16 || p.KeyLength > 128:
		return false
	}
	return true
}
