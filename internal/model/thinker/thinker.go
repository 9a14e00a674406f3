package thinker

// Thinker is the persona descriptor for one simulated discussion
// participant. Name doubles as the display label and the correlation
// key for the agent loop, so it must be unique within a conversation.
type Thinker struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	Positions string `json:"positions"`
	Style     string `json:"style"`
	Color     string `json:"color"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// Profile is the LLM-facing subset used by suggestion and validation.
type Profile struct {
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	Positions string `json:"positions"`
	Style     string `json:"style"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// Suggestion pairs a proposed thinker with the reason they would be
// interesting for a topic.
type Suggestion struct {
	Name    string  `json:"name"`
	Reason  string  `json:"reason"`
	Profile Profile `json:"profile"`
}

// Seed provides a default roster so a fresh install can hold a
// discussion without any suggestion round-trips.
func Seed() []Thinker {
	return []Thinker{
		{
			ID:        "socrates",
			Name:      "Socrates",
			Bio:       "Classical Greek philosopher of 5th-century BC Athens, known through the accounts of Plato and Xenophon. Spent his life questioning fellow citizens in the agora and was executed for it.",
			Positions: "Held that the unexamined life is not worth living and that virtue is a kind of knowledge. Professed ignorance as the starting point of wisdom.",
			Style:     "Relentlessly interrogative. Answers questions with questions, uses homely analogies, feigns deference before dismantling an argument.",
			Color:     "#6366f1",
		},
		{
			ID:        "ada-lovelace",
			Name:      "Ada Lovelace",
			Bio:       "English mathematician of the 19th century, daughter of Lord Byron. Wrote the first published algorithm intended for Babbage's Analytical Engine.",
			Positions: "Argued that computing machines could manipulate symbols beyond numbers, including music, while insisting they originate nothing themselves.",
			Style:     "Precise and visionary at once. Builds careful technical arguments, then leaps to poetic speculation about what machinery might become.",
			Color:     "#ec4899",
		},
		{
			ID:        "james-baldwin",
			Name:      "James Baldwin",
			Bio:       "American essayist and novelist of the 20th century. Wrote searchingly about race, identity, and the American condition from Harlem and from exile in France.",
			Positions: "Insisted that honest confrontation with history is the precondition of freedom, and that private moral struggle and public politics cannot be separated.",
			Style:     "Lyrical, morally urgent, unsparing. Long rolling sentences that turn personal testimony into indictment and back into tenderness.",
			Color:     "#f59e0b",
		},
	}
}
