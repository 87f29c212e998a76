package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadKeyPair reads PEM key files. An empty privatePath yields a nil private
// key, which is enough for a verify-only Manager.
func LoadKeyPair(privatePath, publicPath string) (privateKey, publicKey []byte, err error) {
	if publicPath == "" {
		return nil, nil, fmt.Errorf("public key path required")
	}
	publicKey, err = os.ReadFile(publicPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading public key: %w", err)
	}
	if privatePath != "" {
		privateKey, err = os.ReadFile(privatePath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading private key: %w", err)
		}
	}
	return privateKey, publicKey, nil
}

// GenerateKeyPairPEM creates a fresh key pair for method and returns it as
// PKCS#8 private / PKIX public PEM blocks.
func GenerateKeyPairPEM(method SigningMethod) (privatePEM, publicPEM []byte, err error) {
	var (
		priv interface{}
		pub  interface{}
	)
	switch method {
	case MethodEd25519, "":
		edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		priv, pub = edPriv, edPub
	case MethodRS256:
		rsaPriv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, nil, err
		}
		priv, pub = rsaPriv, &rsaPriv.PublicKey
	default:
		return nil, nil, fmt.Errorf("unsupported signing method %q", method)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, err
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}
