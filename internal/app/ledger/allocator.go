package ledger

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"

	"ledger/internal/domain"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

const (
	DefaultAccountNumberDigits = 10
	DefaultAllocationAttempts  = 20

	minAccountNumberDigits = 4
	maxAccountNumberDigits = 18
)

// CandidateSource yields account number candidates. Implementations must be safe for
// concurrent use.
type CandidateSource interface {
	Next() (string, error)
}

// RandomSource draws fixed-width numbers uniformly from [10^(digits-1), 10^digits).
// One source is shared by the whole process.
type RandomSource struct {
	mu   sync.Mutex
	rng  *rand.Rand
	low  uint64
	span uint64
}

func NewRandomSource(digits int) (*RandomSource, error) {
	if digits < minAccountNumberDigits || digits > maxAccountNumberDigits {
		return nil, fmt.Errorf("account number digits must be between %d and %d, got %d",
			minAccountNumberDigits, maxAccountNumberDigits, digits)
	}

	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seed account number source: %w", err)
	}

	low := uint64(1)
	for i := 1; i < digits; i++ {
		low *= 10
	}
	return &RandomSource{
		rng: rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(seed[:8]),
			binary.LittleEndian.Uint64(seed[8:]),
		)),
		low:  low,
		span: low * 9,
	}, nil
}

func (s *RandomSource) Next() (string, error) {
	s.mu.Lock()
	n := s.low + s.rng.Uint64N(s.span)
	s.mu.Unlock()
	return strconv.FormatUint(n, 10), nil
}

// SnowflakeSource issues time-ordered IDs that never repeat on one node.
type SnowflakeSource struct {
	node *snowflake.Node
}

func NewSnowflakeSource(nodeID int64) (*SnowflakeSource, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node %d: %w", nodeID, err)
	}
	return &SnowflakeSource{node: node}, nil
}

func (s *SnowflakeSource) Next() (string, error) {
	return s.node.Generate().String(), nil
}

type numberChecker interface {
	AccountNumberExists(ctx context.Context, uow domain.UnitOfWork, number string) (bool, error)
}

// Allocator picks an account number that is free inside the caller's unit of work, so the
// check and the following insert cannot interleave with another creation.
type Allocator struct {
	source      CandidateSource
	checker     numberChecker
	maxAttempts int
	logger      *zap.Logger
}

func NewAllocator(source CandidateSource, checker numberChecker, maxAttempts int, logger *zap.Logger) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultAllocationAttempts
	}
	return &Allocator{
		source:      source,
		checker:     checker,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

func (a *Allocator) Allocate(ctx context.Context, uow domain.UnitOfWork) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		candidate, err := a.source.Next()
		if err != nil {
			return "", fmt.Errorf("draw account number candidate: %w", err)
		}

		exists, err := a.checker.AccountNumberExists(ctx, uow, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		a.logger.Debug("Account number candidate already taken",
			zap.String("candidate", candidate),
			zap.Int("attempt", attempt))
	}

	a.logger.Warn("No free account number found", zap.Int("attempts", a.maxAttempts))
	return "", fmt.Errorf("%w: no free number after %d attempts", domain.ErrAllocationExhausted, a.maxAttempts)
}
