// Command sage-keygen generates a fresh key set for a SAGE agent: an
// Ed25519 identity key and an X25519 KEM key, plus an optional secp256k1
// key for EVM-class networks. Grounded on tools/keygen/generate_sage_keys.go
// (agent-name loop, plain stdout progress messages, JSON summary file)
// extended to the full SPEC_FULL.md key-type set instead of secp256k1 only.
package main

import (
	"encoding/json"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	sagecrypto "github.com/sage-x-project/sage/pkg/crypto"
	"github.com/sage-x-project/sage/pkg/did"

	"github.com/sage-x-project/sage/internal/agent/keys"
)

// keySummary is the JSON record written for each generated agent, mirroring
// generate_sage_keys.go's AgentKeyData shape.
type keySummary struct {
	Name            string `json:"name"`
	DID             string `json:"did"`
	IdentityPublic  string `json:"identity_public_key"`
	KEMPublic       string `json:"kem_public_key"`
	Secp256k1Public string `json:"secp256k1_public_key,omitempty"`
}

func main() {
	outDir := flag.String("out-dir", "keys", "directory to write generated key files into")
	name := flag.String("name", "agent", "name used for the generated key file basenames")
	network := flag.String("network", "solana", "target network class: solana | evm")
	flag.Parse()

	log.SetFlags(0)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}

	fmt.Println("Generating SAGE agent keys")
	fmt.Println("==========================")

	ks, err := keys.GenerateKeySet()
	if err != nil {
		log.Fatalf("generate key set: %v", err)
	}

	signingPath := filepath.Join(*outDir, *name+"_signing.json")
	kemPath := filepath.Join(*outDir, *name+"_kem.json")
	if err := ks.Save(keys.KeyConfig{SigningKeyFile: signingPath, KEMKeyFile: kemPath}); err != nil {
		log.Fatalf("save key set: %v", err)
	}
	fmt.Printf("  identity (ed25519) key saved to: %s\n", signingPath)
	fmt.Printf("  kem (x25519) key saved to:       %s\n", kemPath)

	summary := keySummary{
		Name:           *name,
		IdentityPublic: sagecrypto.B64Encode(ks.SigningKey.Public[:]),
		KEMPublic:      sagecrypto.B64Encode(ks.KEMKey.Public[:]),
	}

	switch *network {
	case "solana":
		// Solana-class DIDs are addressed by the Ed25519 identity key
		// itself, per spec.md §4.4 item 3.
		summary.DID = did.Format("solana", hex.EncodeToString(ks.SigningKey.Public[:]))
	case "evm":
		secpKP, err := sagecrypto.GenerateSecp256k1Keypair()
		if err != nil {
			log.Fatalf("generate secp256k1 key: %v", err)
		}
		summary.Secp256k1Public = hex.EncodeToString(secpKP.Secp256k1PublicKeyBytes())
		summary.DID = did.Format("ethereum", secpKP.EthereumAddress())

		secpPath := filepath.Join(*outDir, *name+"_secp256k1.json")
		raw, err := json.MarshalIndent(struct {
			Scheme  string `json:"scheme"`
			Private string `json:"private"`
			Public  string `json:"public"`
		}{
			Scheme:  "secp256k1",
			Private: hex.EncodeToString(secpKP.Private.Serialize()),
			Public:  hex.EncodeToString(secpKP.Secp256k1PublicKeyBytes()),
		}, "", "  ")
		if err != nil {
			log.Fatalf("encode secp256k1 key: %v", err)
		}
		if err := os.WriteFile(secpPath, raw, 0600); err != nil {
			log.Fatalf("save secp256k1 key: %v", err)
		}
		fmt.Printf("  secp256k1 key saved to:          %s\n", secpPath)
	default:
		log.Fatalf("unknown network %q: expected solana or evm", *network)
	}

	fmt.Printf("  DID: %s\n", summary.DID)

	summaryPath := filepath.Join(*outDir, *name+"_summary.json")
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Fatalf("encode key summary: %v", err)
	}
	if err := os.WriteFile(summaryPath, data, 0644); err != nil {
		log.Fatalf("save key summary: %v", err)
	}

	fmt.Println("==========================")
	fmt.Printf("Done. Summary written to %s\n", summaryPath)
	fmt.Println("These keys are for development use; register them through the real on-chain registry in production.")
}
