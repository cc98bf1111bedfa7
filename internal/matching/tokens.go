package matching

// Tokens is the alphabet card faces are drawn from, in dealing order. A
// round of n cards uses the first n/2 entries.
var Tokens = []string{
	"🎮", "🎨", "🎭", "🎪", "🎯", "🎲", "🎸", "🎺",
	"🎻", "🎹", "🎬", "🎤", "🎧", "🎳", "🏀", "⚽",
	"🚀", "🌵", "🍉", "🐙", "🦊", "🌙", "⭐", "🔔",
	"🍄", "🐢", "🎈", "💎", "🧩", "🪁", "🛸", "🍩",
}

// MaxCards is the largest deck NewRound can deal.
var MaxCards = 2 * len(Tokens)
