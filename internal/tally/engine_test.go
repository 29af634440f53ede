package tally

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"veil/internal/domain"
)

// plainRevealer treats the ciphertext as "playerID:choice"
type plainRevealer struct {
	err error
}

func (r plainRevealer) Reveal(v domain.SecretVote) (string, domain.Choice, error) {
	if r.err != nil {
		return "", "", r.err
	}
	id, choice, _ := strings.Cut(string(v.Ciphertext), ":")
	return id, domain.Choice(choice), nil
}

func ballot(playerID string, choice domain.Choice) domain.Ballot {
	return domain.Ballot{
		PlayerID: playerID,
		Vote: domain.SecretVote{
			Ciphertext:      []byte(playerID + ":" + string(choice)),
			ClientPublicKey: []byte("k"),
			Nonce:           []byte("n"),
		},
	}
}

func fixed(idx int) Picker {
	return PickerFunc(func(int) (int, error) { return idx, nil })
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngine_Run(t *testing.T) {
	engine := NewEngine(plainRevealer{}, fixed(1), 0, testLogger())

	result, err := engine.Run(context.Background(), []domain.Ballot{
		ballot("P1", a), ballot("P2", b), ballot("P3", a), ballot("P4", b),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.SaboteurID != "P2" || result.MajorityChoice != a || !result.CommunityCorrect {
		t.Errorf("result = %+v", result)
	}
}

func TestEngine_Run_Failures(t *testing.T) {
	tests := []struct {
		name     string
		revealer Revealer
		picker   Picker
		ballots  []domain.Ballot
	}{
		{
			name:     "too few ballots",
			revealer: plainRevealer{},
			picker:   fixed(0),
			ballots:  []domain.Ballot{ballot("P1", a)},
		},
		{
			name:     "reveal fails",
			revealer: plainRevealer{err: errors.New("bad cipher")},
			picker:   fixed(0),
			ballots:  []domain.Ballot{ballot("P1", a), ballot("P2", b)},
		},
		{
			name:     "vote sealed for someone else",
			revealer: plainRevealer{},
			picker:   fixed(0),
			ballots: []domain.Ballot{
				ballot("P1", a),
				{PlayerID: "P2", Vote: ballot("P1", b).Vote},
			},
		},
		{
			name:     "choice outside A and B",
			revealer: plainRevealer{},
			picker:   fixed(1),
			ballots:  []domain.Ballot{ballot("P1", "C"), ballot("P2", b), ballot("P3", b)},
		},
		{
			name:     "random source fails",
			revealer: plainRevealer{},
			picker:   PickerFunc(func(int) (int, error) { return 0, errors.New("no entropy") }),
			ballots:  []domain.Ballot{ballot("P1", a), ballot("P2", b)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(tt.revealer, tt.picker, 0, testLogger())
			if _, err := engine.Run(context.Background(), tt.ballots); !errors.Is(err, domain.ErrComputationFailed) {
				t.Errorf("Run() error = %v, want %v", err, domain.ErrComputationFailed)
			}
		})
	}
}

func TestEngine_Run_CancelledDuringDelay(t *testing.T) {
	engine := NewEngine(plainRevealer{}, fixed(0), time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := engine.Run(ctx, []domain.Ballot{ballot("P1", a), ballot("P2", b)})
	if !errors.Is(err, domain.ErrComputationFailed) || !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want computation failure caused by cancellation", err)
	}
}

func TestCryptoPicker_CoversAllIndices(t *testing.T) {
	const n, draws = 3, 3000
	counts := make([]int, n)

	for i := 0; i < draws; i++ {
		idx, err := CryptoPicker{}.Pick(n)
		if err != nil {
			t.Fatalf("Pick() error = %v", err)
		}
		if idx < 0 || idx >= n {
			t.Fatalf("Pick() = %d, out of range", idx)
		}
		counts[idx]++
	}

	for i, c := range counts {
		// Loose bound; expected 1000 each
		if c < 800 || c > 1200 {
			t.Errorf("index %d drawn %d times out of %d", i, c, draws)
		}
	}

	if _, err := (CryptoPicker{}).Pick(0); err == nil {
		t.Error("Pick(0) should fail")
	}
}
