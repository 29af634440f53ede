// Package tally is the trusted boundary of the game: it is the only place a
// sealed vote is opened, and plaintext never leaves it.
package tally

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"veil/internal/domain"
)

// Revealer opens a sealed vote
type Revealer interface {
	Reveal(vote domain.SecretVote) (playerID string, choice domain.Choice, err error)
}

// Engine runs the secure tally for one room at a time
type Engine struct {
	revealer Revealer
	picker   Picker
	delay    time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewEngine creates a tally engine. delay simulates the round trip to an
// external secure-computation cluster.
func NewEngine(revealer Revealer, picker Picker, delay time.Duration, logger *slog.Logger) *Engine {
	if picker == nil {
		picker = CryptoPicker{}
	}
	return &Engine{
		revealer: revealer,
		picker:   picker,
		delay:    delay,
		logger:   logger,
		tracer:   otel.Tracer("veil/internal/tally"),
	}
}

// Run reveals the ballots, picks a saboteur and computes the result.
// Any failure is reported wrapped in domain.ErrComputationFailed.
func (e *Engine) Run(ctx context.Context, ballots []domain.Ballot) (*domain.TallyResult, error) {
	ctx, span := e.tracer.Start(ctx, "tally.Run",
		trace.WithAttributes(attribute.Int("tally.ballots", len(ballots))))
	defer span.End()

	result, err := e.run(ctx, ballots)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tally failed")
		return nil, err
	}

	return result, nil
}

func (e *Engine) run(ctx context.Context, ballots []domain.Ballot) (*domain.TallyResult, error) {
	if len(ballots) < domain.MinPlayers {
		return nil, fmt.Errorf("%w: %w", domain.ErrComputationFailed, domain.ErrInsufficientVotes)
	}

	if err := e.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrComputationFailed, err)
	}

	revealed := make([]Revealed, 0, len(ballots))
	defer clear(revealed[:cap(revealed)])

	for _, b := range ballots {
		playerID, choice, err := e.revealer.Reveal(b.Vote)
		if err != nil {
			return nil, fmt.Errorf("%w: reveal vote: %w", domain.ErrComputationFailed, err)
		}
		if playerID != b.PlayerID {
			return nil, fmt.Errorf("%w: vote sealed for another player", domain.ErrComputationFailed)
		}
		if !choice.Valid() {
			return nil, fmt.Errorf("%w: invalid choice %q", domain.ErrComputationFailed, choice)
		}
		revealed = append(revealed, Revealed{PlayerID: playerID, Choice: choice})
	}

	saboteur, err := e.picker.Pick(len(revealed))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrComputationFailed, err)
	}

	result, err := Compute(revealed, saboteur)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrComputationFailed, err)
	}

	e.logger.Debug("tally computed", "ballots", len(ballots))

	return result, nil
}

func (e *Engine) wait(ctx context.Context) error {
	if e.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(e.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
