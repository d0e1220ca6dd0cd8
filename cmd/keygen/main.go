// Command keygen generates a payer key pair and, optionally, signs a message
// payment so the output can be posted straight to /v1/messages/pay.
package main

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"govvault/internal/signer"
	"govvault/pkg/domain"
)

func main() {
	var (
		contentHash = flag.String("content-hash", "", "optional 0x-prefixed content hash to sign")
		nonce       = flag.Uint64("nonce", 0, "payment nonce")
	)
	flag.Parse()

	if err := run(*contentHash, *nonce); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(contentHash string, nonce uint64) error {
	kp, err := signer.GenerateKeyPair()
	if err != nil {
		return err
	}

	out := map[string]any{
		"address":     kp.Address().String(),
		"public_key":  hex.EncodeToString(kp.Public),
		"private_key": hex.EncodeToString(kp.Private),
	}

	if contentHash != "" {
		hash, err := domain.ParseDigest(contentHash)
		if err != nil {
			return fmt.Errorf("parse content hash: %w", err)
		}
		msg := signer.SignedMessage{ContentHash: hash, Payer: kp.Address(), Nonce: nonce}
		out["digest"] = msg.Digest().String()
		out["signature"] = base64.StdEncoding.EncodeToString(kp.Sign(msg.Digest()))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
