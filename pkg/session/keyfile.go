package session

import (
	"encoding/base64"
	"errors"
	"os"

	"github.com/cometbft/cometbft/crypto/ed25519"
)

func GenerateKey() ed25519.PrivKey {
	return ed25519.GenPrivKey()
}

// LoadKey reads a base64 encoded private key.
func LoadKey(keyFile string) (ed25519.PrivKey, error) {
	bytes, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, err
	}

	key := make([]byte, base64.StdEncoding.DecodedLen(len(bytes)))
	n, err := base64.StdEncoding.Decode(key, bytes)
	if err != nil {
		return nil, err
	}

	return key[:n], nil
}

func WriteKey(keyFile string, key ed25519.PrivKey) error {
	bytes := make([]byte, base64.StdEncoding.EncodedLen(len(key)))
	base64.StdEncoding.Encode(bytes, key)

	return os.WriteFile(keyFile, bytes, 0600)
}

// LoadOrGenerateKey loads the key in keyFile. If the file does not exist and generate is set, a new key is written
// to it instead, and created is true.
func LoadOrGenerateKey(keyFile string, generate bool) (key ed25519.PrivKey, created bool, err error) {
	key, err = LoadKey(keyFile)
	if err == nil {
		return key, false, nil
	}

	if !errors.Is(err, os.ErrNotExist) || !generate {
		return nil, false, err
	}

	key = GenerateKey()
	if err := WriteKey(keyFile, key); err != nil {
		return nil, false, err
	}

	return key, true, nil
}
