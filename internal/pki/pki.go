// Package pki generates the per-node staking TLS identity and derives
// the node id from it.
//
// The node id is a stable digest of the certificate: as long as the
// cert+key pair on disk survives restarts, the node keeps its identity.
// The exact public encoding of node ids (CB58 with checksum) belongs to
// the node software; here the id only needs to be deterministic and
// collision-free across the fleet.
package pki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"time"
)

// NodeIDPrefix prefixes every derived node id.
const NodeIDPrefix = "NodeID-"

// certValidity is effectively unbounded; staking certs are rotated by
// replacing the files, not by expiry.
const certValidity = 100 * 365 * 24 * time.Hour

// EnsureIdentity generates a self-signed staking certificate and key at
// the given paths if the key does not exist yet. It reports whether new
// material was created, so the caller knows to upload the sealed key.
func EnsureIdentity(keyPath, certPath string) (created bool, err error) {
	if _, err := os.Stat(keyPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat %s: %w", keyPath, err)
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return false, fmt.Errorf("failed to generate staking key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return false, fmt.Errorf("failed to generate serial: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"avalanche-ops"}},
		NotBefore:             now,
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return false, fmt.Errorf("failed to create staking cert: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return false, fmt.Errorf("failed to marshal staking key: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", keyPath, err)
	}
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", certPath, err)
	}
	return true, nil
}

// NodeIDFromCert derives the node id from the certificate at certPath.
func NodeIDFromCert(certPath string) (string, error) {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return "", fmt.Errorf("failed to read cert %s: %w", certPath, err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return "", fmt.Errorf("no certificate PEM block in %s", certPath)
	}
	if _, err := x509.ParseCertificate(block.Bytes); err != nil {
		return "", fmt.Errorf("invalid certificate in %s: %w", certPath, err)
	}

	digest := sha256.Sum256(block.Bytes)
	return NodeIDPrefix + hex.EncodeToString(digest[:20]), nil
}
