// Package keys provides high-level abstractions for loading and managing
// agent cryptographic keys. It wraps pkg/crypto's raw Ed25519/X25519
// primitives with a file-backed key set so that servers and clients load
// their identity and KEM keys the same way regardless of call site.
package keys

import (
	"encoding/json"
	"fmt"
	"os"

	sagecrypto "github.com/sage-x-project/sage/pkg/crypto"
)

// KeyPair is the loaded representation of one key file.
type KeyPair = sagecrypto.KeyPair

// fileKeyPair is the on-disk JSON encoding of a KeyPair: base64 private
// and public halves, tagged with the scheme they belong to.
type fileKeyPair struct {
	Scheme  string `json:"scheme"`
	Private string `json:"private"`
	Public  string `json:"public"`
}

// LoadFromKeyFile loads an Ed25519 or X25519 keypair from a JSON key file.
//
// Parameters:
//   - path: File path to the key JSON file
//
// Returns:
//   - KeyPair: The loaded key pair
//   - error: Error if file cannot be read or parsed
//
// Example:
//
//	signKey, err := keys.LoadFromKeyFile("/path/to/signing_key.json")
//	if err != nil {
//	    return fmt.Errorf("load signing key: %w", err)
//	}
func LoadFromKeyFile(path string) (KeyPair, error) {
	var zero KeyPair
	if path == "" {
		return zero, fmt.Errorf("key file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("read key file %s: %w", path, err)
	}

	return LoadFromKeyBytes(raw)
}

// LoadFromKeyBytes loads a keypair from key-file bytes already in memory
// (e.g., from environment variables).
//
// Parameters:
//   - data: key file data as bytes
//
// Returns:
//   - KeyPair: The loaded key pair
//   - error: Error if data cannot be parsed
func LoadFromKeyBytes(data []byte) (KeyPair, error) {
	var zero KeyPair
	if len(data) == 0 {
		return zero, fmt.Errorf("key data is empty")
	}

	var fkp fileKeyPair
	if err := json.Unmarshal(data, &fkp); err != nil {
		return zero, fmt.Errorf("parse key file: %w", err)
	}
	priv, err := sagecrypto.B64Decode(fkp.Private)
	if err != nil {
		return zero, fmt.Errorf("decode private key: %w", err)
	}
	pub, err := sagecrypto.B64Decode(fkp.Public)
	if err != nil {
		return zero, fmt.Errorf("decode public key: %w", err)
	}
	if len(pub) != sagecrypto.KeySize || len(priv) != sagecrypto.KeySize {
		return zero, fmt.Errorf("key has wrong length")
	}

	var kp KeyPair
	copy(kp.Public[:], pub)
	copy(kp.Private[:], priv)
	return kp, nil
}

// SaveKeyFile writes kp to path as JSON, tagged with scheme ("ed25519" or
// "x25519"). Used by tools/keygen to persist freshly generated keys.
func SaveKeyFile(path, scheme string, kp KeyPair) error {
	fkp := fileKeyPair{
		Scheme:  scheme,
		Private: sagecrypto.B64Encode(kp.Private[:]),
		Public:  sagecrypto.B64Encode(kp.Public[:]),
	}
	data, err := json.MarshalIndent(fkp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key file: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write key file %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads a key pair from a key file path specified in an
// environment variable. This is a convenience method that combines
// os.Getenv and LoadFromKeyFile.
//
// Parameters:
//   - envVar: Name of the environment variable containing the file path
//
// Returns:
//   - KeyPair: The loaded key pair
//   - error: Error if environment variable is not set or file cannot be loaded
//
// Example:
//
//	signKey, err := keys.LoadFromEnv("SAGE_SIGNING_KEY_FILE")
//	if err != nil {
//	    return fmt.Errorf("load signing key: %w", err)
//	}
func LoadFromEnv(envVar string) (KeyPair, error) {
	var zero KeyPair
	path := os.Getenv(envVar)
	if path == "" {
		return zero, fmt.Errorf("environment variable %s is not set", envVar)
	}

	return LoadFromKeyFile(path)
}

// KeyConfig represents configuration for loading multiple keys.
// This is used by the agent framework to load all required keys at once.
type KeyConfig struct {
	// SigningKeyFile is the path to the Ed25519 signing key file
	SigningKeyFile string

	// KEMKeyFile is the path to the X25519 KEM key file (for HPKE)
	KEMKeyFile string
}

// KeySet represents a complete set of keys for an agent.
type KeySet struct {
	// SigningKey is the Ed25519 key used for envelope signatures and
	// registry key-ownership proofs.
	SigningKey KeyPair

	// KEMKey is the X25519 key used for HPKE key encapsulation.
	KEMKey KeyPair
}

// LoadKeySet loads a complete set of keys from the provided configuration.
// This is the recommended method for initializing agent keys.
//
// Parameters:
//   - config: Key configuration specifying file paths
//
// Returns:
//   - *KeySet: The loaded key set
//   - error: Error if any key cannot be loaded
//
// Example:
//
//	keySet, err := keys.LoadKeySet(keys.KeyConfig{
//	    SigningKeyFile: "/path/to/signing_key.json",
//	    KEMKeyFile:     "/path/to/kem_key.json",
//	})
func LoadKeySet(config KeyConfig) (*KeySet, error) {
	if config.SigningKeyFile == "" {
		return nil, fmt.Errorf("signing key file path is required")
	}
	if config.KEMKeyFile == "" {
		return nil, fmt.Errorf("KEM key file path is required")
	}

	signKey, err := LoadFromKeyFile(config.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	kemKey, err := LoadFromKeyFile(config.KEMKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load KEM key: %w", err)
	}

	return &KeySet{
		SigningKey: signKey,
		KEMKey:     kemKey,
	}, nil
}

// LoadKeySetFromEnv loads a complete set of keys from environment variables.
// This is a convenience method for loading keys in production environments.
//
// Parameters:
//   - signingEnvVar: Name of the environment variable for signing key file path
//   - kemEnvVar: Name of the environment variable for KEM key file path
//
// Returns:
//   - *KeySet: The loaded key set
//   - error: Error if any key cannot be loaded
//
// Example:
//
//	keySet, err := keys.LoadKeySetFromEnv("SAGE_SIGNING_KEY_FILE", "SAGE_KEM_KEY_FILE")
func LoadKeySetFromEnv(signingEnvVar, kemEnvVar string) (*KeySet, error) {
	signPath := os.Getenv(signingEnvVar)
	if signPath == "" {
		return nil, fmt.Errorf("environment variable %s is not set", signingEnvVar)
	}

	kemPath := os.Getenv(kemEnvVar)
	if kemPath == "" {
		return nil, fmt.Errorf("environment variable %s is not set", kemEnvVar)
	}

	return LoadKeySet(KeyConfig{
		SigningKeyFile: signPath,
		KEMKeyFile:     kemPath,
	})
}

// GenerateKeySet creates a fresh Ed25519 identity key and X25519 KEM key,
// for use by tools/keygen and test fixtures.
func GenerateKeySet() (*KeySet, error) {
	signKey, err := sagecrypto.GenerateEd25519Keypair()
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	kemKey, err := sagecrypto.GenerateX25519Keypair()
	if err != nil {
		return nil, fmt.Errorf("generate KEM key: %w", err)
	}
	return &KeySet{SigningKey: *signKey, KEMKey: *kemKey}, nil
}

// Save persists both keys in ks to the given file paths.
func (ks *KeySet) Save(config KeyConfig) error {
	if err := SaveKeyFile(config.SigningKeyFile, "ed25519", ks.SigningKey); err != nil {
		return fmt.Errorf("save signing key: %w", err)
	}
	if err := SaveKeyFile(config.KEMKeyFile, "x25519", ks.KEMKey); err != nil {
		return fmt.Errorf("save KEM key: %w", err)
	}
	return nil
}
