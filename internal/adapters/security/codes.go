package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/verilink/commerce-auth/internal/domain"
)

const (
	codeFloor      = 1000
	codeSpan       = 9000
	DefaultCodeTTL = 10 * time.Minute
)

// NumericCodeGenerator issues 4-digit codes in [1000, 9999].
type NumericCodeGenerator struct {
	ttl time.Duration
}

func NewNumericCodeGenerator(ttl time.Duration) *NumericCodeGenerator {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &NumericCodeGenerator{ttl: ttl}
}

func (g *NumericCodeGenerator) Generate(now time.Time) (domain.OneTimeCode, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return domain.OneTimeCode{}, fmt.Errorf("generate code: %w", err)
	}
	return domain.OneTimeCode{
		Code:      strconv.FormatInt(n.Int64()+codeFloor, 10),
		ExpiresAt: now.Add(g.ttl),
	}, nil
}
