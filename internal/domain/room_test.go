package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func secret(tag string) SecretVote {
	return SecretVote{
		Ciphertext:      []byte("ct-" + tag),
		ClientPublicKey: []byte("pk-" + tag),
		Nonce:           []byte("nonce-" + tag),
	}
}

func newRoomWithPlayers(t *testing.T, n int) *Room {
	t.Helper()
	room := NewRoom("ABC234", "p1", 8)
	for i := 2; i <= n; i++ {
		if _, err := room.Join(fmt.Sprintf("p%d", i)); err != nil {
			t.Fatalf("Join(p%d) error = %v", i, err)
		}
	}
	return room
}

func assertInvariants(t *testing.T, room *Room) {
	t.Helper()
	if len(room.Votes) > len(room.Players) {
		t.Errorf("votes = %d, players = %d; votes must not exceed players", len(room.Votes), len(room.Players))
	}
	if len(room.Players) == 0 {
		return
	}
	hosts := 0
	for _, p := range room.Players {
		if p.IsHost {
			hosts++
		}
	}
	if hosts != 1 {
		t.Errorf("hosts = %d, want exactly 1", hosts)
	}
}

func TestNewRoom(t *testing.T) {
	room := NewRoom("ABC234", "host", 8)

	if room.Phase != PhaseLobby {
		t.Errorf("Phase = %s, want %s", room.Phase, PhaseLobby)
	}
	if len(room.Players) != 1 || !room.Players[0].IsHost {
		t.Fatalf("players = %+v, want single host", room.Players)
	}
	if room.HostID() != "host" {
		t.Errorf("HostID() = %q, want %q", room.HostID(), "host")
	}
	assertInvariants(t, room)
}

func TestRoom_Join(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Room)
		wantErr error
	}{
		{name: "lobby accepts players"},
		{
			name:    "full room",
			setup:   func(r *Room) { r.MaxPlayers = 1 },
			wantErr: ErrRoomFull,
		},
		{
			name:    "voting room",
			setup:   func(r *Room) { r.Phase = PhaseVoting },
			wantErr: ErrRoomNotJoinable,
		},
		{
			name:    "result room",
			setup:   func(r *Room) { r.Phase = PhaseResult },
			wantErr: ErrRoomNotJoinable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := NewRoom("ABC234", "host", 8)
			if tt.setup != nil {
				tt.setup(room)
			}

			player, err := room.Join("guest")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Join() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if player.IsHost {
				t.Error("joined player must not be host")
			}
			if len(room.Players) != 2 || room.Players[1].ID != "guest" {
				t.Errorf("players = %v, want guest appended", room.GetPlayerIDs())
			}
			assertInvariants(t, room)
		})
	}
}

func TestRoom_StartVoting(t *testing.T) {
	t.Run("not host", func(t *testing.T) {
		room := newRoomWithPlayers(t, 2)
		if err := room.StartVoting("p2"); !errors.Is(err, ErrNotHost) {
			t.Fatalf("error = %v, want %v", err, ErrNotHost)
		}
	})

	t.Run("too few players", func(t *testing.T) {
		room := newRoomWithPlayers(t, 1)
		if err := room.StartVoting("p1"); !errors.Is(err, ErrInsufficientPlayers) {
			t.Fatalf("error = %v, want %v", err, ErrInsufficientPlayers)
		}
	})

	t.Run("wrong phase", func(t *testing.T) {
		room := newRoomWithPlayers(t, 2)
		room.Phase = PhaseResult
		if err := room.StartVoting("p1"); !errors.Is(err, ErrInvalidPhase) {
			t.Fatalf("error = %v, want %v", err, ErrInvalidPhase)
		}
	})

	t.Run("clears votes and advances round", func(t *testing.T) {
		room := newRoomWithPlayers(t, 2)
		room.Votes["p1"] = secret("stale")

		if err := room.StartVoting("p1"); err != nil {
			t.Fatalf("StartVoting() error = %v", err)
		}
		if room.Phase != PhaseVoting {
			t.Errorf("Phase = %s, want %s", room.Phase, PhaseVoting)
		}
		if len(room.Votes) != 0 {
			t.Errorf("votes = %d, want 0", len(room.Votes))
		}
		if room.Round != 1 {
			t.Errorf("Round = %d, want 1", room.Round)
		}
	})
}

func TestRoom_CastVote(t *testing.T) {
	t.Run("rejects outside voting", func(t *testing.T) {
		room := newRoomWithPlayers(t, 2)
		if _, _, err := room.CastVote("p1", secret("a")); !errors.Is(err, ErrInvalidPhase) {
			t.Fatalf("error = %v, want %v", err, ErrInvalidPhase)
		}
	})

	t.Run("rejects non-members", func(t *testing.T) {
		room := newRoomWithPlayers(t, 2)
		_ = room.StartVoting("p1")
		if _, _, err := room.CastVote("stranger", secret("a")); !errors.Is(err, ErrNotInRoom) {
			t.Fatalf("error = %v, want %v", err, ErrNotInRoom)
		}
	})

	t.Run("overwrites instead of duplicating", func(t *testing.T) {
		room := newRoomWithPlayers(t, 3)
		_ = room.StartVoting("p1")

		if _, _, err := room.CastVote("p2", secret("first")); err != nil {
			t.Fatalf("CastVote() error = %v", err)
		}
		progress, ballots, err := room.CastVote("p2", secret("second"))
		if err != nil {
			t.Fatalf("CastVote() error = %v", err)
		}
		if progress.Received != 1 || progress.Total != 3 {
			t.Errorf("progress = %+v, want 1/3", progress)
		}
		if ballots != nil {
			t.Error("incomplete vote must not start processing")
		}
		if string(room.Votes["p2"].Ciphertext) != "ct-second" {
			t.Errorf("vote = %q, want latest write", room.Votes["p2"].Ciphertext)
		}
		assertInvariants(t, room)
	})

	t.Run("last vote starts processing exactly once", func(t *testing.T) {
		room := newRoomWithPlayers(t, 3)
		_ = room.StartVoting("p1")

		_, _, _ = room.CastVote("p3", secret("3"))
		_, _, _ = room.CastVote("p1", secret("1"))
		progress, ballots, err := room.CastVote("p2", secret("2"))
		if err != nil {
			t.Fatalf("CastVote() error = %v", err)
		}
		if progress.Received != 3 {
			t.Errorf("Received = %d, want 3", progress.Received)
		}
		if room.Phase != PhaseProcessing {
			t.Fatalf("Phase = %s, want %s", room.Phase, PhaseProcessing)
		}

		// Ballots follow join order, not arrival order
		want := []string{"p1", "p2", "p3"}
		if len(ballots) != len(want) {
			t.Fatalf("ballots = %d, want %d", len(ballots), len(want))
		}
		for i, b := range ballots {
			if b.PlayerID != want[i] {
				t.Errorf("ballots[%d] = %s, want %s", i, b.PlayerID, want[i])
			}
		}

		if _, again, err := room.CastVote("p2", secret("late")); !errors.Is(err, ErrInvalidPhase) || again != nil {
			t.Errorf("late vote: ballots = %v, error = %v; want nil, %v", again, err, ErrInvalidPhase)
		}
	})
}

func TestRoom_TallyCompletion(t *testing.T) {
	setup := func(t *testing.T) *Room {
		room := newRoomWithPlayers(t, 2)
		_ = room.StartVoting("p1")
		_, _, _ = room.CastVote("p1", secret("1"))
		_, _, _ = room.CastVote("p2", secret("2"))
		return room
	}

	t.Run("success moves to result", func(t *testing.T) {
		room := setup(t)
		result := &TallyResult{SaboteurID: "p1"}
		if err := room.CompleteTally(room.Round, result); err != nil {
			t.Fatalf("CompleteTally() error = %v", err)
		}
		if room.Phase != PhaseResult || room.Result != result {
			t.Errorf("phase = %s, result = %v", room.Phase, room.Result)
		}
	})

	t.Run("failure reverts to lobby", func(t *testing.T) {
		room := setup(t)
		if err := room.FailTally(room.Round); err != nil {
			t.Fatalf("FailTally() error = %v", err)
		}
		if room.Phase != PhaseLobby {
			t.Errorf("Phase = %s, want %s", room.Phase, PhaseLobby)
		}
		if len(room.Votes) != 0 {
			t.Errorf("votes = %d, want discarded", len(room.Votes))
		}
	})

	t.Run("stale round is rejected", func(t *testing.T) {
		room := setup(t)
		if err := room.CompleteTally(room.Round-1, &TallyResult{}); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("error = %v, want %v", err, ErrInvalidTransition)
		}
		if room.Phase != PhaseProcessing {
			t.Errorf("Phase = %s, want %s", room.Phase, PhaseProcessing)
		}
	})
}

func TestRoom_Reset(t *testing.T) {
	room := newRoomWithPlayers(t, 2)

	if err := room.Reset("p1"); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("Reset() in lobby error = %v, want %v", err, ErrInvalidPhase)
	}

	room.Phase = PhaseResult
	room.Result = &TallyResult{SaboteurID: "p2"}

	if err := room.Reset("p2"); !errors.Is(err, ErrNotHost) {
		t.Errorf("Reset() by guest error = %v, want %v", err, ErrNotHost)
	}
	if err := room.Reset("p1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if room.Phase != PhaseLobby || room.Result != nil {
		t.Errorf("phase = %s, result = %v; want lobby and no result", room.Phase, room.Result)
	}
}

func TestRoom_Leave(t *testing.T) {
	t.Run("host leaves, next oldest becomes host", func(t *testing.T) {
		room := newRoomWithPlayers(t, 3)

		out, err := room.Leave("p1")
		if err != nil {
			t.Fatalf("Leave() error = %v", err)
		}
		if out.Empty {
			t.Error("room must not be empty")
		}
		if out.NewHostID != "p2" || room.HostID() != "p2" {
			t.Errorf("new host = %q / %q, want p2", out.NewHostID, room.HostID())
		}
		assertInvariants(t, room)
	})

	t.Run("host leaves with one player remaining", func(t *testing.T) {
		room := newRoomWithPlayers(t, 2)
		out, _ := room.Leave("p1")
		if out.Empty || room.HostID() != "p2" {
			t.Errorf("empty = %v, host = %q; want remaining player as host", out.Empty, room.HostID())
		}
	})

	t.Run("last player empties room", func(t *testing.T) {
		room := newRoomWithPlayers(t, 1)
		out, _ := room.Leave("p1")
		if !out.Empty {
			t.Error("room should be empty")
		}
	})

	t.Run("unknown player", func(t *testing.T) {
		room := newRoomWithPlayers(t, 1)
		if _, err := room.Leave("ghost"); !errors.Is(err, ErrPlayerNotFound) {
			t.Errorf("error = %v, want %v", err, ErrPlayerNotFound)
		}
	})

	t.Run("leaving during voting drops vote", func(t *testing.T) {
		room := newRoomWithPlayers(t, 4)
		_ = room.StartVoting("p1")
		_, _, _ = room.CastVote("p3", secret("3"))

		out, _ := room.Leave("p3")
		if len(room.Votes) != 0 {
			t.Errorf("votes = %d, want 0", len(room.Votes))
		}
		if out.Ballots != nil {
			t.Error("processing must not start")
		}
		assertInvariants(t, room)
	})

	t.Run("leaving during voting can complete the vote", func(t *testing.T) {
		room := newRoomWithPlayers(t, 3)
		_ = room.StartVoting("p1")
		_, _, _ = room.CastVote("p1", secret("1"))
		_, _, _ = room.CastVote("p2", secret("2"))

		out, _ := room.Leave("p3")
		if room.Phase != PhaseProcessing {
			t.Fatalf("Phase = %s, want %s", room.Phase, PhaseProcessing)
		}
		if len(out.Ballots) != 2 {
			t.Errorf("ballots = %d, want 2", len(out.Ballots))
		}
	})

	t.Run("too few players during voting returns to lobby", func(t *testing.T) {
		room := newRoomWithPlayers(t, 2)
		_ = room.StartVoting("p1")
		_, _, _ = room.CastVote("p1", secret("1"))

		_, _ = room.Leave("p2")
		if room.Phase != PhaseLobby {
			t.Errorf("Phase = %s, want %s", room.Phase, PhaseLobby)
		}
		if len(room.Votes) != 0 {
			t.Errorf("votes = %d, want 0", len(room.Votes))
		}
	})
}

func TestRoom_SetConnected(t *testing.T) {
	room := newRoomWithPlayers(t, 2)

	if err := room.SetConnected("p2", false); err != nil {
		t.Fatalf("SetConnected() error = %v", err)
	}
	p, _ := room.GetPlayer("p2")
	if p.Connected {
		t.Error("player should be disconnected")
	}

	if err := room.SetConnected("ghost", true); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("error = %v, want %v", err, ErrPlayerNotFound)
	}
}

func TestRoom_IsIdle(t *testing.T) {
	room := NewRoom("ABC234", "p1", 8)
	now := room.LastActivityAt

	if room.IsIdle(now.Add(time.Minute), time.Hour) {
		t.Error("room should not be idle yet")
	}
	if !room.IsIdle(now.Add(2*time.Hour), time.Hour) {
		t.Error("room should be idle")
	}
}

func TestRoom_SnapshotHidesVotes(t *testing.T) {
	room := newRoomWithPlayers(t, 2)
	_ = room.StartVoting("p1")
	_, _, _ = room.CastVote("p1", secret("1"))

	snap := room.Snapshot()
	if snap.VotesReceived != 1 || snap.PlayerCount != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Phase != PhaseVoting {
		t.Errorf("Phase = %s, want %s", snap.Phase, PhaseVoting)
	}
}
