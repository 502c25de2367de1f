package exam

// Option is one selectable answer and the score it contributes.
type Option struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Question is immutable once fetched from a source.
type Question struct {
	Prompt  string   `json:"question"`
	Trait   string   `json:"trait,omitempty"`
	Options []Option `json:"options"`
}

// Valid reports whether q can be shown: a prompt and at least two options.
func (q Question) Valid() bool {
	return q.Prompt != "" && len(q.Options) >= 2
}

// View is the client-facing snapshot of questionnaire progress.
type View struct {
	Index    int      `json:"index"`
	Total    int      `json:"total"`
	Question Question `json:"question"`
	Selected *int     `json:"selected"`
	Answered []bool   `json:"answered"`
	Progress float64  `json:"progress"`
	IsLast   bool     `json:"is_last"`
}
