package platform

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

var signingContext = []byte("dash-gov-oracle")

// Signer holds the service identity every document write is signed
// under.
type Signer struct {
	privateKey *schnorrkel.SecretKey
	publicKey  *schnorrkel.PublicKey
	identityID string
}

// NewSignerFromHex constructs the signer from a base58 identity id and
// a 32-byte hex secret.
func NewSignerFromHex(identityID, hexKey string) (*Signer, error) {
	rawID, err := base58.Decode(identityID)
	if err != nil {
		return nil, fmt.Errorf("decode identity id: %w", err)
	}
	if len(rawID) != 32 {
		return nil, fmt.Errorf("identity id must decode to 32 bytes, got %d", len(rawID))
	}

	hexKey = strings.TrimPrefix(hexKey, "0x")
	keyBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode hex key: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("invalid key length: expected 32 bytes, got %d", len(keyBytes))
	}

	var miniSecret [32]byte
	copy(miniSecret[:], keyBytes)

	miniSecretKey, err := schnorrkel.NewMiniSecretKeyFromRaw(miniSecret)
	if err != nil {
		return nil, fmt.Errorf("create mini secret key: %w", err)
	}

	secretKey := miniSecretKey.ExpandEd25519()
	publicKey, err := secretKey.Public()
	if err != nil {
		return nil, fmt.Errorf("get public key: %w", err)
	}

	return &Signer{
		privateKey: secretKey,
		publicKey:  publicKey,
		identityID: identityID,
	}, nil
}

// Sign signs the blake2b digest of one document write.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	ctx := schnorrkel.NewSigningContext(signingContext, message)
	sig, err := s.privateKey.Sign(ctx)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	encoded := sig.Encode()
	return encoded[:], nil
}

// IdentityID returns the base58 identity the signer writes as.
func (s *Signer) IdentityID() string {
	return s.identityID
}

// writeDigest commits to everything that makes one write unique: the
// document coordinates, the target revision, the per-write entropy and
// the payload itself.
func writeDigest(docType, docID string, revision uint64, entropy string, data map[string]any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode digest payload: %w", err)
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	var rev [8]byte
	binary.BigEndian.PutUint64(rev[:], revision)
	for _, part := range [][]byte{[]byte(docType), []byte(docID), rev[:], []byte(entropy), payload} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return h.Sum(nil), nil
}
