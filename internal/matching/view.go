package matching

// CardView is a card as a player may see it. Token is empty while the
// card is face down.
type CardView struct {
	ID      int    `json:"id"`
	Token   string `json:"token,omitempty"`
	Flipped bool   `json:"flipped"`
	Matched bool   `json:"matched"`
}

// View is a rendering snapshot of a round.
type View struct {
	Cards          []CardView `json:"cards"`
	FaceUp         []int      `json:"faceUp"`
	Moves          int        `json:"moves"`
	MatchedPairs   int        `json:"matchedPairs"`
	Pairs          int        `json:"pairs"`
	ElapsedSeconds int        `json:"elapsedSeconds"`
	Phase          Phase      `json:"phase"`
}

// View returns the round with face-down tokens hidden.
func (s RoundState) View() View {
	cards := make([]CardView, len(s.deck))
	for i, c := range s.deck {
		cv := CardView{ID: c.ID, Flipped: c.Flipped, Matched: c.Matched}
		if c.Flipped || c.Matched {
			cv.Token = c.Token
		}
		cards[i] = cv
	}
	faceUp := s.FaceUp()
	if faceUp == nil {
		faceUp = []int{}
	}
	return View{
		Cards:          cards,
		FaceUp:         faceUp,
		Moves:          s.moves,
		MatchedPairs:   s.matchedPairs,
		Pairs:          s.Pairs(),
		ElapsedSeconds: s.elapsed,
		Phase:          s.phase,
	}
}
