package pricefeed

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func validRound(now time.Time) RoundData {
	return RoundData{
		RoundID:         7,
		Answer:          big.NewInt(250_000_000_000), // $2,500.00
		UpdatedAt:       now.Add(-time.Minute).Unix(),
		AnsweredInRound: 7,
	}
}

func TestValidateAcceptsFreshRound(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	if err := Validate(validRound(now), now, DefaultMaxAge); err != nil {
		t.Fatalf("expected fresh round to validate, got %v", err)
	}
}

func TestValidateRejectsBadRounds(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	round := validRound(now)
	round.Answer = big.NewInt(0)
	if err := Validate(round, now, DefaultMaxAge); !errors.Is(err, ErrNonPositivePrice) {
		t.Fatalf("zero answer: got %v", err)
	}

	round = validRound(now)
	round.UpdatedAt = 0
	if err := Validate(round, now, DefaultMaxAge); !errors.Is(err, ErrRoundNotComplete) {
		t.Fatalf("incomplete round: got %v", err)
	}

	round = validRound(now)
	round.AnsweredInRound = round.RoundID - 1
	if err := Validate(round, now, DefaultMaxAge); !errors.Is(err, ErrStaleRound) {
		t.Fatalf("carried-over answer: got %v", err)
	}

	round = validRound(now)
	round.UpdatedAt = now.Add(-2 * time.Hour).Unix()
	if err := Validate(round, now, DefaultMaxAge); !errors.Is(err, ErrStaleAnswer) {
		t.Fatalf("aged answer: got %v", err)
	}
}

func TestValidateStalenessBoundaryExclusive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	round := validRound(now)
	// Exactly maxAge old is already stale; one second inside the window is
	// still acceptable.
	round.UpdatedAt = now.Add(-DefaultMaxAge).Unix()
	if err := Validate(round, now, DefaultMaxAge); !errors.Is(err, ErrStaleAnswer) {
		t.Fatalf("boundary round should be stale, got %v", err)
	}
	round.UpdatedAt = now.Add(-DefaultMaxAge + time.Second).Unix()
	if err := Validate(round, now, DefaultMaxAge); err != nil {
		t.Fatalf("round inside window should validate, got %v", err)
	}
}

func TestManualFeedRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	feed := NewManualFeed()
	feed.SetAnswer(big.NewInt(300_000_000_000), now)

	round, err := LatestValidated(feed, now, DefaultMaxAge)
	if err != nil {
		t.Fatalf("latest validated: %v", err)
	}
	if round.Answer.Cmp(big.NewInt(300_000_000_000)) != 0 {
		t.Fatalf("unexpected answer %s", round.Answer)
	}

	// Mutating the returned answer must not affect the stored round.
	round.Answer.SetInt64(1)
	again, err := feed.LatestRound()
	if err != nil {
		t.Fatalf("latest round: %v", err)
	}
	if again.Answer.Cmp(big.NewInt(300_000_000_000)) != 0 {
		t.Fatalf("stored round mutated: %s", again.Answer)
	}
}

func TestLatestValidatedPropagatesFeedError(t *testing.T) {
	feed := NewManualFeed()
	feed.Fail(errors.New("transport down"))
	if _, err := LatestValidated(feed, time.Now(), DefaultMaxAge); err == nil {
		t.Fatal("expected feed error to propagate")
	}
}
