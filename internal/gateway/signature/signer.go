package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/filmbilling/internal/clock"
	"github.com/smallbiznis/filmbilling/internal/config"
	"github.com/smallbiznis/filmbilling/internal/gateway/domain"
)

// maxClockSkew bounds how far in the future a link's date may be.
const maxClockSkew = time.Minute

// Signer authenticates the links a user is redirected to after paying.
type Signer struct {
	secret  []byte
	ttl     time.Duration
	pattern string
	clock   clock.Clock
}

func New(cfg config.Config, clk clock.Clock) (*Signer, error) {
	if strings.TrimSpace(cfg.Gateway.SignatureSecret) == "" {
		return nil, fmt.Errorf("%w: signature secret is empty", domain.ErrInvalidConfig)
	}
	hours := cfg.Gateway.SignatureExpirationHours
	if hours <= 0 {
		hours = 1
	}
	return &Signer{
		secret:  []byte(cfg.Gateway.SignatureSecret),
		ttl:     time.Duration(hours) * time.Hour,
		pattern: cfg.Gateway.ReturnURLPattern,
		clock:   clk,
	}, nil
}

func (s *Signer) Sign(transactionID snowflake.ID, issuedAt int64) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(transactionID.String() + ":" + strconv.FormatInt(issuedAt, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(transactionID snowflake.ID, signature string, issuedAt int64) error {
	expected := s.Sign(transactionID, issuedAt)
	if !hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(signature))), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	age := s.clock.Now().Sub(time.Unix(issuedAt, 0))
	if age < -maxClockSkew {
		return domain.ErrInvalidSignature
	}
	if age > s.ttl {
		return domain.ErrSignatureExpired
	}
	return nil
}

// ReturnURL fills {transaction_id}, {signature} and {date} in the
// configured pattern.
func (s *Signer) ReturnURL(transactionID snowflake.ID) string {
	issuedAt := s.clock.Now().Unix()
	return strings.NewReplacer(
		"{transaction_id}", transactionID.String(),
		"{signature}", s.Sign(transactionID, issuedAt),
		"{date}", strconv.FormatInt(issuedAt, 10),
	).Replace(s.pattern)
}
