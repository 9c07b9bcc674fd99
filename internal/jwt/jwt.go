package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/evidenceledger/certchain/internal/verify"
)

// KeyID identifies the receipt signing key in the JWKS
const KeyID = "certchain-receipt-key"

// DefaultReceiptTTL is how long a verification receipt is valid
const DefaultReceiptTTL = 24 * time.Hour

// Service signs verification receipts: a JWT stating what a verification
// returned and when, so the answer can be passed on and checked offline.
type Service struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// ReceiptClaims are the claims of a verification receipt
type ReceiptClaims struct {
	Verified            bool   `json:"verified"`
	Assurance           string `json:"assurance,omitempty"`
	LedgerIssuer        string `json:"ledger_issuer,omitempty"`
	CertificateIssuedAt int64  `json:"certificate_issued_at,omitempty"`
	Reason              string `json:"reason,omitempty"`
	jwt.RegisteredClaims
}

// NewService creates a new receipt service with a fresh RSA key
func NewService(issuer string) (*Service, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	slog.Info("Receipt signing initialized", "issuer", issuer)
	return &Service{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
		ttl:        DefaultReceiptTTL,
		now:        time.Now,
	}, nil
}

// GenerateReceipt signs a receipt for res. The fingerprint is the subject.
func (s *Service) GenerateReceipt(res verify.Result) (string, error) {
	now := s.now()

	claims := ReceiptClaims{
		Verified:     res.Verified,
		Assurance:    string(res.Assurance),
		LedgerIssuer: res.Issuer,
		Reason:       res.Reason,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   res.Fingerprint,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if res.IssuedAt != nil {
		claims.CertificateIssuedAt = res.IssuedAt.Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = KeyID

	tokenString, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign receipt: %w", err)
	}

	slog.Debug("Verification receipt generated",
		"subject", res.Fingerprint,
		"verified", res.Verified,
		"expiration", claims.ExpiresAt.Unix(),
	)

	return tokenString, nil
}

// ParseReceipt checks the signature and expiry of a receipt issued by this service
func (s *Service) ParseReceipt(tokenString string) (*ReceiptClaims, error) {
	claims := &ReceiptClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return s.publicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt: %w", err)
	}
	return claims, nil
}

// GetJWKS returns the JSON Web Key Set
func (s *Service) GetJWKS() map[string]any {

	jk, err := jwk.Import(s.publicKey)
	if err != nil {
		slog.Error("Failed to build JWKS", "error", err)
		return nil
	}

	jk.Set("use", "sig")
	jk.Set(jwk.KeyIDKey, KeyID)
	jk.Set(jwk.AlgorithmKey, "RS256")

	jwks := map[string]any{
		"keys": []any{jk},
	}
	return jwks
}
