package flags

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
)

// LoadPrivateKey returns the key given as hex, or decrypted from the keystore file.
// Exactly one of hexKey and keystorePath must be set.
func LoadPrivateKey(hexKey, keystorePath, password string) (*ecdsa.PrivateKey, error) {
	switch {
	case hexKey != "" && keystorePath != "":
		return nil, errors.New("both a hex key and a keystore were given")
	case hexKey != "":
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		return key, nil
	case keystorePath != "":
		keyJSON, err := os.ReadFile(keystorePath)
		if err != nil {
			return nil, fmt.Errorf("could not read keystore: %w", err)
		}
		key, err := keystore.DecryptKey(keyJSON, password)
		if err != nil {
			return nil, fmt.Errorf("could not decrypt keystore %s: %w", keystorePath, err)
		}
		return key.PrivateKey, nil
	default:
		return nil, errors.New("no private key given")
	}
}

// KeyFromFlags loads the key selected by KeyFlag, KeystoreFlag and PasswordFlag.
func KeyFromFlags(cCtx *cli.Context) (*ecdsa.PrivateKey, error) {
	return LoadPrivateKey(
		cCtx.String(KeyFlag.Name),
		cCtx.String(KeystoreFlag.Name),
		cCtx.String(PasswordFlag.Name),
	)
}
