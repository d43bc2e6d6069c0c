package pricefeed

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// AnswerScale is the fixed-point scale of feed answers: USD values carry
// eight decimal places.
var AnswerScale = big.NewInt(100_000_000)

// DefaultMaxAge bounds how old a round may be before it is rejected as
// stale.
const DefaultMaxAge = time.Hour

var (
	ErrNotConfigured    = errors.New("pricefeed: feed not configured")
	ErrNonPositivePrice = errors.New("pricefeed: answer must be positive")
	ErrRoundNotComplete = errors.New("pricefeed: round not complete")
	ErrStaleRound       = errors.New("pricefeed: answered in stale round")
	ErrStaleAnswer      = errors.New("pricefeed: answer too old")
)

// RoundData mirrors an aggregator round: the answer is the USD price of one
// whole native coin scaled by AnswerScale.
type RoundData struct {
	RoundID         uint64
	Answer          *big.Int
	UpdatedAt       int64
	AnsweredInRound uint64
}

// Feed supplies the latest exchange-rate round for the native payment coin.
type Feed interface {
	LatestRound() (RoundData, error)
}

// Validate applies the freshness and completeness checks every consumer must
// enforce before trusting a round. A violation is an error, never a
// degraded read.
func Validate(round RoundData, now time.Time, maxAge time.Duration) error {
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return ErrNonPositivePrice
	}
	if round.UpdatedAt <= 0 {
		return ErrRoundNotComplete
	}
	if round.AnsweredInRound < round.RoundID {
		return ErrStaleRound
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if now.Unix()-round.UpdatedAt >= int64(maxAge/time.Second) {
		return ErrStaleAnswer
	}
	return nil
}

// LatestValidated fetches the latest round from the feed and validates it in
// one step.
func LatestValidated(feed Feed, now time.Time, maxAge time.Duration) (RoundData, error) {
	if feed == nil {
		return RoundData{}, ErrNotConfigured
	}
	round, err := feed.LatestRound()
	if err != nil {
		return RoundData{}, fmt.Errorf("pricefeed: latest round: %w", err)
	}
	if err := Validate(round, now, maxAge); err != nil {
		return RoundData{}, err
	}
	clone := round
	clone.Answer = new(big.Int).Set(round.Answer)
	return clone, nil
}

// ManualFeed is an in-memory feed used by tests and for manual overrides
// during incident response.
type ManualFeed struct {
	mu    sync.RWMutex
	round RoundData
	err   error
}

// NewManualFeed constructs an empty manual feed.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{}
}

// Set records the supplied round as the latest observation.
func (m *ManualFeed) Set(round RoundData) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.round = round
	if round.Answer != nil {
		m.round.Answer = new(big.Int).Set(round.Answer)
	}
	m.err = nil
	m.mu.Unlock()
}

// SetAnswer is a convenience that advances the round id and stamps the
// answer with the provided time.
func (m *ManualFeed) SetAnswer(answer *big.Int, at time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	next := m.round.RoundID + 1
	m.round = RoundData{
		RoundID:         next,
		UpdatedAt:       at.Unix(),
		AnsweredInRound: next,
	}
	if answer != nil {
		m.round.Answer = new(big.Int).Set(answer)
	}
	m.err = nil
	m.mu.Unlock()
}

// Fail makes subsequent LatestRound calls return the supplied error.
func (m *ManualFeed) Fail(err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *ManualFeed) LatestRound() (RoundData, error) {
	if m == nil {
		return RoundData{}, ErrNotConfigured
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return RoundData{}, m.err
	}
	round := m.round
	if round.Answer != nil {
		round.Answer = new(big.Int).Set(round.Answer)
	}
	return round, nil
}
