package board

import (
	"errors"
	"reflect"
	"testing"
)

// applyUCILine replays a space-free list of long-algebraic tokens.
func applyUCILine(t *testing.T, pos *Position, tokens ...string) {
	t.Helper()
	for _, token := range tokens {
		m, err := ParseMove(token, pos)
		if err != nil {
			t.Fatalf("ParseMove(%q): %v", token, err)
		}
		if _, err := pos.MakeMove(m); err != nil {
			t.Fatalf("MakeMove(%q): %v", token, err)
		}
	}
}

// TestMakeUnmakeRoundTrip walks every legal move in a set of tricky
// positions and checks that make followed by unmake restores the position
// bitwise, and that the incremental hash matches a from-scratch rebuild.
func TestMakeUnmakeRoundTrip(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"r3k2r/8/8/8/8/8/8/R3K2R b KQkq - 4 20",
		"8/P1k5/K7/8/8/8/8/8 w - - 0 1", // promotion race
		"rnbqkbnr/ppp1pppp/8/8/3pP3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 2",
	}

	for _, fen := range fens {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}

		before := *pos
		moves := pos.GenerateLegalMoves()
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)

			undo, err := pos.MakeMove(m)
			if err != nil {
				t.Fatalf("%s: MakeMove(%v): %v", fen, m, err)
			}

			if got, want := pos.Hash, pos.ComputeHash(); got != want {
				t.Errorf("%s: move %v: incremental hash %016x != rebuilt %016x", fen, m, got, want)
			}
			if err := pos.Validate(); err != nil {
				t.Errorf("%s: move %v: %v", fen, m, err)
			}

			pos.UnmakeMove(m, undo)
			if !reflect.DeepEqual(*pos, before) {
				t.Fatalf("%s: move %v did not round-trip:\nbefore: %v\nafter:  %v", fen, m, &before, pos)
			}
		}
	}
}

// TestNullMoveRoundTrip checks that a null move restores the position bitwise.
func TestNullMoveRoundTrip(t *testing.T) {
	pos, err := ParseFEN("rnbqkbnr/ppp1pppp/8/8/3pP3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 2")
	if err != nil {
		t.Fatal(err)
	}

	before := *pos
	undo := pos.MakeNullMove()

	if pos.SideToMove != White {
		t.Errorf("null move should flip side to move")
	}
	if pos.EnPassant != NoSquare {
		t.Errorf("null move should clear en passant")
	}
	if got, want := pos.Hash, pos.ComputeHash(); got != want {
		t.Errorf("hash after null move %016x != rebuilt %016x", got, want)
	}

	pos.UnmakeNullMove(undo)
	if !reflect.DeepEqual(*pos, before) {
		t.Errorf("null move did not round-trip")
	}
}

// TestIncrementalHashOverGame replays a game fragment and compares the
// incremental hash to a rebuild after every move.
func TestIncrementalHashOverGame(t *testing.T) {
	pos := NewPosition()
	line := []string{
		"e2e4", "e7e5", "g1f3", "b8c6", "f1b5", "a7a6", "b5c6", "d7c6",
		"e1g1", "f7f6", "d2d4", "e5d4", "f3d4", "c6c5", "d4e2", "d8d1",
		"f1d1", "c8e6",
	}
	for _, token := range line {
		m, err := ParseMove(token, pos)
		if err != nil {
			t.Fatalf("ParseMove(%q): %v", token, err)
		}
		if _, err := pos.MakeMove(m); err != nil {
			t.Fatalf("MakeMove(%q): %v", token, err)
		}
		if got, want := pos.Hash, pos.ComputeHash(); got != want {
			t.Fatalf("after %s: incremental hash %016x != rebuilt %016x", token, got, want)
		}
	}
}

func TestMakeMoveErrors(t *testing.T) {
	pos := NewPosition()

	// No piece on the origin square.
	if _, err := pos.MakeMove(NewMove(E4, E5)); !errors.Is(err, ErrIllegalMove) {
		t.Errorf("expected ErrIllegalMove for empty origin, got %v", err)
	}

	// Moving the opponent's piece.
	if _, err := pos.MakeMove(NewMove(E7, E5)); !errors.Is(err, ErrIllegalMove) {
		t.Errorf("expected ErrIllegalMove for wrong color, got %v", err)
	}

	// En passant with no en passant square set.
	if _, err := pos.MakeMove(NewEnPassant(E2, D3)); !errors.Is(err, ErrIllegalMove) {
		t.Errorf("expected ErrIllegalMove for phantom en passant, got %v", err)
	}

	// Errors must leave the position untouched.
	fresh := NewPosition()
	if !reflect.DeepEqual(*pos, *fresh) {
		t.Errorf("failed MakeMove mutated the position")
	}
}

func TestCastlingRightsUpdates(t *testing.T) {
	pos, err := ParseFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	// King-side castling clears both of White's rights and moves the rook.
	undo, err := pos.MakeMove(NewCastling(E1, G1))
	if err != nil {
		t.Fatal(err)
	}
	if pos.CastlingRights&(WhiteKingSideCastle|WhiteQueenSideCastle) != 0 {
		t.Errorf("white rights not cleared after castling: %v", pos.CastlingRights)
	}
	if pos.PieceAt(F1) != WhiteRook || pos.PieceAt(H1) != NoPiece {
		t.Errorf("rook not moved to f1")
	}
	pos.UnmakeMove(NewCastling(E1, G1), undo)

	// A rook capture on a8 strips Black's queen-side right.
	applyUCILine(t, pos, "a1a8")
	if pos.CastlingRights&BlackQueenSideCastle != 0 {
		t.Errorf("black queen-side right should be gone after Rxa8")
	}
}

func TestFENRoundTrip(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1",
		"7k/5Q2/6K1/8/8/8/8/8 b - - 12 44",
	}
	for _, fen := range fens {
		pos, err := ParseFEN(fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", fen, err)
		}
		if got := pos.ToFEN(); got != fen {
			t.Errorf("FEN round-trip: got %q, want %q", got, fen)
		}
	}
}

func TestParseFENErrors(t *testing.T) {
	bad := []string{
		"",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP w KQkq - 0 1",   // 7 ranks
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x - - 0 1", // bad side
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w XQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq e9 0 1",
	}
	for _, fen := range bad {
		if _, err := ParseFEN(fen); err == nil {
			t.Errorf("ParseFEN(%q) should fail", fen)
		}
	}
}

func TestStalemateAndCheckmate(t *testing.T) {
	mate, err := ParseFEN("R6k/6pp/8/8/8/8/8/K7 b - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if !mate.IsCheckmate() {
		t.Errorf("expected checkmate")
	}

	stale, err := ParseFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if stale.InCheck() {
		t.Errorf("stalemate position must not be check")
	}
	if !stale.IsStalemate() {
		t.Errorf("expected stalemate")
	}
}
