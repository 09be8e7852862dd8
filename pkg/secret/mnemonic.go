package secret

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/cosmos/go-bip39"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/tyler-smith/go-bip32"
	"golang.org/x/text/unicode/norm"
)

// HDPath is the BIP-44 derivation path of the first Secret Network account
// (coin type 529).
const HDPath = "m/44'/529'/0'/0/0"

// Seed turns a BIP-39 mnemonic and optional passphrase into the 64-byte
// wallet seed. Both are NFKD-normalized first and runs of whitespace in the
// mnemonic collapse to one space. Words outside the English list and a bad
// checksum are rejected.
func Seed(mnemonic, passphrase string) ([]byte, error) {
	words := strings.Fields(norm.NFKD.String(mnemonic))
	switch len(words) {
	case 12, 15, 18, 21, 24:
	default:
		return nil, failure.InvalidInput(fmt.Sprintf("mnemonic must have 12, 15, 18, 21 or 24 words, got %d", len(words)))
	}
	seed, err := bip39.NewSeedWithErrorChecking(strings.Join(words, " "), norm.NFKD.String(passphrase))
	if err != nil {
		return nil, &failure.Error{Kind: failure.KindInvalidInput, Msg: "mnemonic: " + err.Error(), Err: err}
	}
	return seed, nil
}

// parsePath parses "m/44'/529'/0'/0/0". Both ' and h mark hardened indexes.
func parsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, failure.InvalidInput(fmt.Sprintf("derivation path %q must start with m", path))
	}
	out := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		var h uint32
		if strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h") || strings.HasSuffix(p, "H") {
			h = bip32.FirstHardenedChild
			p = p[:len(p)-1]
		}
		n, err := strconv.ParseUint(p, 10, 31)
		if err != nil {
			return nil, failure.InvalidInput(fmt.Sprintf("derivation path %q: bad index %q", path, p))
		}
		out = append(out, uint32(n)|h)
	}
	return out, nil
}

// DeriveKey derives the 32-byte secp256k1 private key at path from seed.
func DeriveKey(seed []byte, path string) ([]byte, error) {
	idx, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	k, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	for _, i := range idx {
		if k, err = k.NewChildKey(i); err != nil {
			return nil, fmt.Errorf("derive child %d: %w", i, err)
		}
	}
	if len(k.Key) > 32 {
		return nil, fmt.Errorf("derived key has %d bytes", len(k.Key))
	}
	key := make([]byte, 32)
	copy(key[32-len(k.Key):], k.Key)
	return key, nil
}

// PrivateKeyFromMnemonic returns the hex-encoded private key of the first
// Secret Network account of mnemonic (path HDPath, empty passphrase).
func PrivateKeyFromMnemonic(mnemonic string) (string, error) {
	seed, err := Seed(mnemonic, "")
	if err != nil {
		return "", err
	}
	key, err := DeriveKey(seed, HDPath)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}
