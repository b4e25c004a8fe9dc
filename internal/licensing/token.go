package licensing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"
)

const (
	tokenAlg = "RS256"
	tokenTyp = "LICENSE"
)

// Header is the first segment of a license token.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// decodedToken holds the raw pieces of a token after structural decoding but
// before any trust has been established. signingInput is the exact encoded
// `header.payload` bytes the signature covers; verification never re-serializes
// the segments.
type decodedToken struct {
	header       Header
	rawClaims    []byte
	signature    []byte
	signingInput []byte
}

func decodeToken(token string) (*decodedToken, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment", ErrMalformedToken)
		}
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header is not valid base64url", ErrMalformedToken)
	}

	rawClaims, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid base64url", ErrMalformedToken)
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not valid base64url", ErrMalformedToken)
	}

	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("%w: header is not valid json", ErrMalformedToken)
	}

	if header.Alg != tokenAlg || header.Typ != tokenTyp {
		return nil, fmt.Errorf("%w: unsupported header alg=%q typ=%q", ErrMalformedToken, header.Alg, header.Typ)
	}

	return &decodedToken{
		header:       header,
		rawClaims:    rawClaims,
		signature:    signature,
		signingInput: []byte(parts[0] + "." + parts[1]),
	}, nil
}

// CreateToken signs claims with the given PEM-encoded RSA private key and
// returns the three-segment token string. This is the issuer side, used by the
// licensing CLI and by tests; the validator only ever consumes tokens.
func CreateToken(privateKeyPem []byte, claims Claims) (string, error) {
	privateKey, err := parseRsaPrivateKey(privateKeyPem)
	if err != nil {
		return "", fmt.Errorf("error parsing private key: %w", err)
	}

	headerBytes, err := json.Marshal(Header{Alg: tokenAlg, Typ: tokenTyp})
	if err != nil {
		return "", fmt.Errorf("error marshaling header: %w", err)
	}

	claimsBytes, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("error marshaling claims: %w", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerBytes) + "." + base64.RawURLEncoding.EncodeToString(claimsBytes)

	signature, err := signMessage(privateKey, []byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// GenerateKeys creates a new RSA key pair and returns the private and public
// keys as PEM.
func GenerateKeys() ([]byte, []byte, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("error generating private key: %w", err)
	}

	privateKeyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("error marshaling private key: %w", err)
	}

	privateKeyPem, err := encodeToPem("PRIVATE KEY", privateKeyBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding private key to PEM: %w", err)
	}

	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("error marshaling public key: %w", err)
	}

	publicKeyPem, err := encodeToPem("PUBLIC KEY", publicKeyBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding public key to PEM: %w", err)
	}

	return privateKeyPem, publicKeyPem, nil
}

func encodeToPem(blockType string, bytes []byte) ([]byte, error) {
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: bytes})
	if pemBytes == nil {
		return nil, fmt.Errorf("failed to encode PEM block")
	}

	return pemBytes, nil
}

func parseRsaPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	publicKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing public key: %w", err)
	}

	rsaPublicKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not of type RSA")
	}

	return rsaPublicKey, nil
}

func parseRsaPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	privateKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing private key: %w", err)
	}

	rsaPrivateKey, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not of type RSA")
	}

	return rsaPrivateKey, nil
}

func signMessage(privateKey *rsa.PrivateKey, message []byte) ([]byte, error) {
	hash := crypto.SHA256.New()
	hash.Write(message)

	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, hash.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("error signing message: %w", err)
	}

	return signature, nil
}

func verifySignature(publicKey *rsa.PublicKey, message []byte, signature []byte) error {
	hash := crypto.SHA256.New()
	hash.Write(message)

	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, hash.Sum(nil), signature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
