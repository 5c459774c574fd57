package crossword

// catPuzzle is a single three-letter across clue.
func catPuzzle() PuzzleInput {
	return PuzzleInput{
		Author: "Staff",
		Date:   "2024-03-01",
		Clues: ClueSet[ClueSpec]{
			Across: []ClueSpec{{Num: "1", Row: 0, Col: 0, Answer: "CAT", Clue: "Feline"}},
		},
	}
}

// miniPuzzle is
//
//	C A T
//	A # O
//	R O E
func miniPuzzle() PuzzleInput {
	return PuzzleInput{
		Author: "Staff",
		Date:   "2024-03-02",
		Clues: ClueSet[ClueSpec]{
			Across: []ClueSpec{
				{Num: "1", Row: 0, Col: 0, Answer: "CAT", Clue: "Feline"},
				{Num: "3", Row: 2, Col: 0, Answer: "ROE", Clue: "Fish eggs"},
			},
			Down: []ClueSpec{
				{Num: "1", Row: 0, Col: 0, Answer: "CAR", Clue: "Sedan"},
				{Num: "2", Row: 0, Col: 2, Answer: "TOE", Clue: "Foot digit"},
			},
		},
	}
}

func keys(s State, ks ...string) State {
	for _, k := range ks {
		s = Reduce(s, KeyDown{Key: k})
	}
	return s
}

func guesses(s State) [][]string {
	out := make([][]string, len(s.Grid))
	for r, row := range s.Grid {
		out[r] = make([]string, len(row))
		for c, cell := range row {
			out[r][c] = cell.Guess
		}
	}
	return out
}
