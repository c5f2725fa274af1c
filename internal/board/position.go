package board

import (
	"errors"
	"fmt"
)

// ErrIllegalMove reports an attempt to apply a structurally impossible move:
// no piece on the origin square, a piece of the wrong color, or an en passant
// capture with no pawn behind the target. Legal moves produced by the
// generator never trigger it; the search treats it as a fatal bug.
var ErrIllegalMove = errors.New("illegal move")

// CastlingRights represents the available castling options.
type CastlingRights uint8

const (
	WhiteKingSideCastle  CastlingRights = 1 << iota // K
	WhiteQueenSideCastle                            // Q
	BlackKingSideCastle                             // k
	BlackQueenSideCastle                            // q
	NoCastling           CastlingRights = 0
	AllCastling          CastlingRights = WhiteKingSideCastle | WhiteQueenSideCastle | BlackKingSideCastle | BlackQueenSideCastle
)

// String returns the FEN castling rights string.
func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	s := ""
	if cr&WhiteKingSideCastle != 0 {
		s += "K"
	}
	if cr&WhiteQueenSideCastle != 0 {
		s += "Q"
	}
	if cr&BlackKingSideCastle != 0 {
		s += "k"
	}
	if cr&BlackQueenSideCastle != 0 {
		s += "q"
	}
	return s
}

// Position represents a complete chess position.
type Position struct {
	// Piece bitboards: [Color][PieceType]
	Pieces [2][6]Bitboard

	// Occupancy bitboards (cached for efficiency)
	Occupied    [2]Bitboard // All pieces of each color
	AllOccupied Bitboard    // All pieces on the board

	// mailbox mirrors the piece bitboards square by square.
	mailbox [64]Piece

	// Game state
	SideToMove     Color
	CastlingRights CastlingRights
	EnPassant      Square // Target square for en passant, NoSquare if none
	HalfMoveClock  int    // Plies since the last pawn move or capture (50-move rule)
	FullMoveNumber int    // Full move counter, starts at 1

	// Zobrist hash, maintained incrementally by MakeMove/UnmakeMove.
	Hash uint64

	// King positions (cached for check detection)
	KingSquare [2]Square
}

// Undo stores the irreversible state needed to take a move back.
type Undo struct {
	CapturedPiece  Piece
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	FullMoveNumber int
	Hash           uint64
}

// NullUndo stores state for taking back a null move.
type NullUndo struct {
	EnPassant Square
	Hash      uint64
}

// NewPosition creates the starting position.
func NewPosition() *Position {
	pos, _ := ParseFEN(StartFEN)
	return pos
}

// Copy creates a deep copy of the position.
func (p *Position) Copy() *Position {
	newPos := *p
	return &newPos
}

// PieceAt returns the piece at the given square, or NoPiece if empty.
func (p *Position) PieceAt(sq Square) Piece {
	return p.mailbox[sq]
}

// IsEmpty returns true if the square is empty.
func (p *Position) IsEmpty(sq Square) bool {
	return p.mailbox[sq] == NoPiece
}

// InCheck returns true if the side to move is in check.
func (p *Position) InCheck() bool {
	return p.IsSquareAttacked(p.KingSquare[p.SideToMove], p.SideToMove.Other())
}

// setPiece places a piece on a square (does not update the hash).
func (p *Position) setPiece(piece Piece, sq Square) {
	c := piece.Color()
	pt := piece.Type()
	bb := SquareBB(sq)

	p.Pieces[c][pt] |= bb
	p.Occupied[c] |= bb
	p.AllOccupied |= bb
	p.mailbox[sq] = piece

	if pt == King {
		p.KingSquare[c] = sq
	}
}

// removePiece removes the piece on a square (does not update the hash).
func (p *Position) removePiece(sq Square) Piece {
	piece := p.mailbox[sq]
	if piece == NoPiece {
		return NoPiece
	}

	c := piece.Color()
	pt := piece.Type()
	bb := SquareBB(sq)

	p.Pieces[c][pt] &^= bb
	p.Occupied[c] &^= bb
	p.AllOccupied &^= bb
	p.mailbox[sq] = NoPiece

	return piece
}

// movePiece moves the piece on from to to (does not update the hash).
func (p *Position) movePiece(from, to Square) {
	piece := p.mailbox[from]
	c := piece.Color()
	pt := piece.Type()
	moveBB := SquareBB(from) | SquareBB(to)

	p.Pieces[c][pt] ^= moveBB
	p.Occupied[c] ^= moveBB
	p.AllOccupied ^= moveBB
	p.mailbox[from] = NoPiece
	p.mailbox[to] = piece

	if pt == King {
		p.KingSquare[c] = to
	}
}

// MakeMove applies a move to the position and returns the undo state.
// The position is left untouched when an error is returned.
func (p *Position) MakeMove(m Move) (Undo, error) {
	undo := Undo{
		CapturedPiece:  NoPiece,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		FullMoveNumber: p.FullMoveNumber,
		Hash:           p.Hash,
	}

	us := p.SideToMove
	them := us.Other()
	from := m.From()
	to := m.To()

	piece := p.mailbox[from]
	if piece == NoPiece {
		return undo, fmt.Errorf("%w: no piece at %s", ErrIllegalMove, from)
	}
	if piece.Color() != us {
		return undo, fmt.Errorf("%w: %s piece at %s with %s to move", ErrIllegalMove, piece.Color(), from, us)
	}
	pt := piece.Type()

	var epCaptureSq Square
	if m.IsEnPassant() {
		if to != p.EnPassant {
			return undo, fmt.Errorf("%w: en passant to %s without ep square", ErrIllegalMove, to)
		}
		if us == White {
			epCaptureSq = to - 8
		} else {
			epCaptureSq = to + 8
		}
		if p.mailbox[epCaptureSq] != NewPiece(Pawn, them) {
			return undo, fmt.Errorf("%w: en passant capture over empty %s", ErrIllegalMove, epCaptureSq)
		}
	} else if target := p.mailbox[to]; target != NoPiece && target.Color() == us {
		return undo, fmt.Errorf("%w: %s occupied by own piece", ErrIllegalMove, to)
	}

	// Hash out the prior en passant file and castling rights.
	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.Hash ^= zobristCastling[p.CastlingRights]
	p.EnPassant = NoSquare

	// Captures.
	if m.IsEnPassant() {
		undo.CapturedPiece = p.removePiece(epCaptureSq)
		p.Hash ^= zobristPiece[them][Pawn][epCaptureSq]
	} else if captured := p.mailbox[to]; captured != NoPiece {
		undo.CapturedPiece = captured
		p.removePiece(to)
		p.Hash ^= zobristPiece[them][captured.Type()][to]
	}

	// Move the piece.
	p.movePiece(from, to)
	p.Hash ^= zobristPiece[us][pt][from]
	p.Hash ^= zobristPiece[us][pt][to]

	// Promotion replaces the pawn on the destination square.
	if m.IsPromotion() {
		promo := m.Promotion()
		toBB := SquareBB(to)
		p.Pieces[us][Pawn] &^= toBB
		p.Pieces[us][promo] |= toBB
		p.mailbox[to] = NewPiece(promo, us)
		p.Hash ^= zobristPiece[us][Pawn][to]
		p.Hash ^= zobristPiece[us][promo][to]
	}

	// Castling moves the rook as well: H->F king-side, A->D queen-side.
	if m.IsCastling() {
		var rookFrom, rookTo Square
		if to > from {
			rookFrom = NewSquare(7, from.Rank())
			rookTo = NewSquare(5, from.Rank())
		} else {
			rookFrom = NewSquare(0, from.Rank())
			rookTo = NewSquare(3, from.Rank())
		}
		p.movePiece(rookFrom, rookTo)
		p.Hash ^= zobristPiece[us][Rook][rookFrom]
		p.Hash ^= zobristPiece[us][Rook][rookTo]
	}

	// Castling rights: a king move clears both rights of the mover; a rook
	// leaving its home square, or a capture landing on one, clears that right.
	if pt == King {
		if us == White {
			p.CastlingRights &^= WhiteKingSideCastle | WhiteQueenSideCastle
		} else {
			p.CastlingRights &^= BlackKingSideCastle | BlackQueenSideCastle
		}
	}
	if from == A1 || to == A1 {
		p.CastlingRights &^= WhiteQueenSideCastle
	}
	if from == H1 || to == H1 {
		p.CastlingRights &^= WhiteKingSideCastle
	}
	if from == A8 || to == A8 {
		p.CastlingRights &^= BlackQueenSideCastle
	}
	if from == H8 || to == H8 {
		p.CastlingRights &^= BlackKingSideCastle
	}
	p.Hash ^= zobristCastling[p.CastlingRights]

	// A double pawn push sets the en passant square behind the pawn.
	if pt == Pawn && abs(int(to)-int(from)) == 16 {
		epSquare := Square((int(from) + int(to)) / 2)
		p.EnPassant = epSquare
		p.Hash ^= zobristEnPassant[epSquare.File()]
	}

	if pt == Pawn || undo.CapturedPiece != NoPiece {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}

	// FEN convention: the full-move number advances after Black's move.
	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them
	p.Hash ^= zobristSideToMove

	return undo, nil
}

// UnmakeMove reverses a move using the stored undo state.
func (p *Position) UnmakeMove(m Move, undo Undo) {
	them := p.SideToMove
	us := them.Other()
	from := m.From()
	to := m.To()

	// A promoted piece turns back into a pawn before moving home.
	if m.IsPromotion() {
		promo := m.Promotion()
		toBB := SquareBB(to)
		p.Pieces[us][promo] &^= toBB
		p.Pieces[us][Pawn] |= toBB
		p.mailbox[to] = NewPiece(Pawn, us)
	}

	p.movePiece(to, from)

	if m.IsCastling() {
		var rookFrom, rookTo Square
		if to > from {
			rookFrom = NewSquare(7, from.Rank())
			rookTo = NewSquare(5, from.Rank())
		} else {
			rookFrom = NewSquare(0, from.Rank())
			rookTo = NewSquare(3, from.Rank())
		}
		p.movePiece(rookTo, rookFrom)
	}

	if undo.CapturedPiece != NoPiece {
		captureSq := to
		if m.IsEnPassant() {
			if us == White {
				captureSq = to - 8
			} else {
				captureSq = to + 8
			}
		}
		p.setPiece(undo.CapturedPiece, captureSq)
	}

	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.HalfMoveClock = undo.HalfMoveClock
	p.FullMoveNumber = undo.FullMoveNumber
	p.Hash = undo.Hash
	p.SideToMove = us
}

// MakeNullMove passes the turn without moving, for null-move pruning.
func (p *Position) MakeNullMove() NullUndo {
	undo := NullUndo{
		EnPassant: p.EnPassant,
		Hash:      p.Hash,
	}

	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare

	p.SideToMove = p.SideToMove.Other()
	p.Hash ^= zobristSideToMove

	return undo
}

// UnmakeNullMove undoes a null move.
func (p *Position) UnmakeNullMove(undo NullUndo) {
	p.EnPassant = undo.EnPassant
	p.Hash = undo.Hash
	p.SideToMove = p.SideToMove.Other()
}

// ComputeHash computes the Zobrist hash for the position from scratch.
// MakeMove maintains the same value incrementally.
func (p *Position) ComputeHash() uint64 {
	var hash uint64

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				hash ^= zobristPiece[c][pt][sq]
			}
		}
	}

	if p.SideToMove == Black {
		hash ^= zobristSideToMove
	}

	hash ^= zobristCastling[p.CastlingRights]

	if p.EnPassant != NoSquare {
		hash ^= zobristEnPassant[p.EnPassant.File()]
	}

	return hash
}

// updateOccupied recalculates occupancy bitboards from piece bitboards.
func (p *Position) updateOccupied() {
	p.Occupied[White] = EmptyBB
	p.Occupied[Black] = EmptyBB

	for pt := Pawn; pt <= King; pt++ {
		p.Occupied[White] |= p.Pieces[White][pt]
		p.Occupied[Black] |= p.Pieces[Black][pt]
	}

	p.AllOccupied = p.Occupied[White] | p.Occupied[Black]
}

// findKings locates and caches the king positions.
func (p *Position) findKings() {
	p.KingSquare[White] = p.Pieces[White][King].LSB()
	p.KingSquare[Black] = p.Pieces[Black][King].LSB()
}

// String returns a visual representation of the position.
func (p *Position) String() string {
	s := "\n"
	for rank := 7; rank >= 0; rank-- {
		s += fmt.Sprintf("%d  ", rank+1)
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			piece := p.mailbox[sq]
			if piece == NoPiece {
				s += ". "
			} else {
				s += piece.String() + " "
			}
		}
		s += "\n"
	}
	s += "\n   a b c d e f g h\n\n"
	s += fmt.Sprintf("Side to move: %s\n", p.SideToMove)
	s += fmt.Sprintf("Castling: %s\n", p.CastlingRights)
	s += fmt.Sprintf("En passant: %s\n", p.EnPassant)
	s += fmt.Sprintf("Half-move clock: %d\n", p.HalfMoveClock)
	s += fmt.Sprintf("Full move: %d\n", p.FullMoveNumber)
	s += fmt.Sprintf("Hash: %016x\n", p.Hash)
	return s
}

// Validate checks basic structural invariants of the position.
func (p *Position) Validate() error {
	if p.Pieces[White][King].PopCount() != 1 {
		return fmt.Errorf("white must have exactly one king")
	}
	if p.Pieces[Black][King].PopCount() != 1 {
		return fmt.Errorf("black must have exactly one king")
	}

	if (p.Pieces[White][Pawn]|p.Pieces[Black][Pawn])&(Rank1|Rank8) != 0 {
		return fmt.Errorf("pawns cannot be on rank 1 or 8")
	}

	for sq := A1; sq <= H8; sq++ {
		piece := p.mailbox[sq]
		if piece == NoPiece {
			if p.AllOccupied.IsSet(sq) {
				return fmt.Errorf("mailbox empty but bitboards occupied at %s", sq)
			}
			continue
		}
		if !p.Pieces[piece.Color()][piece.Type()].IsSet(sq) {
			return fmt.Errorf("mailbox/bitboard mismatch at %s", sq)
		}
	}

	return nil
}

// IsInsufficientMaterial returns true if neither side can deliver checkmate.
func (p *Position) IsInsufficientMaterial() bool {
	if p.Pieces[White][Pawn]|p.Pieces[Black][Pawn] != 0 ||
		p.Pieces[White][Rook]|p.Pieces[Black][Rook] != 0 ||
		p.Pieces[White][Queen]|p.Pieces[Black][Queen] != 0 {
		return false
	}

	wMinors := p.Pieces[White][Knight].PopCount() + p.Pieces[White][Bishop].PopCount()
	bMinors := p.Pieces[Black][Knight].PopCount() + p.Pieces[Black][Bishop].PopCount()

	return wMinors <= 1 && bMinors == 0 || bMinors <= 1 && wMinors == 0
}
