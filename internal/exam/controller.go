package exam

import (
	"errors"
	"fmt"
)

var (
	ErrNoQuestions   = errors.New("exam: no questions")
	ErrNoSelection   = errors.New("exam: select an answer first")
	ErrOptionRange   = errors.New("exam: option out of range")
	ErrQuestionRange = errors.New("exam: question out of range")
)

// Controller drives navigation through a fixed question set and keeps one
// nullable answer per question.
type Controller struct {
	questions []Question
	answers   []int // option index per question, -1 when unanswered
	current   int
}

func NewController(questions []Question) (*Controller, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	answers := make([]int, len(questions))
	for i := range answers {
		answers[i] = -1
	}
	return &Controller{questions: questions, answers: answers}, nil
}

func (c *Controller) Len() int     { return len(c.questions) }
func (c *Controller) Current() int { return c.current }
func (c *Controller) IsLast() bool { return c.current == len(c.questions)-1 }

func (c *Controller) Question(i int) (Question, error) {
	if i < 0 || i >= len(c.questions) {
		return Question{}, ErrQuestionRange
	}
	return c.questions[i], nil
}

// Answers returns the recorded option per question, nil where unanswered.
func (c *Controller) Answers() []*Option {
	out := make([]*Option, len(c.answers))
	for i, a := range c.answers {
		if a >= 0 {
			opt := c.questions[i].Options[a]
			out[i] = &opt
		}
	}
	return out
}

// Selected is the option recorded at the current question.
func (c *Controller) Selected() *Option {
	a := c.answers[c.current]
	if a < 0 {
		return nil
	}
	opt := c.questions[c.current].Options[a]
	return &opt
}

// Select records an option at the current question. It does not advance.
func (c *Controller) Select(option int) error {
	q := c.questions[c.current]
	if option < 0 || option >= len(q.Options) {
		return fmt.Errorf("%w: %d of %d", ErrOptionRange, option, len(q.Options))
	}
	c.answers[c.current] = option
	return nil
}

// Next moves forward. On the last question it reports done instead of moving.
func (c *Controller) Next() (done bool, err error) {
	if c.answers[c.current] < 0 {
		return false, ErrNoSelection
	}
	if c.IsLast() {
		return true, nil
	}
	c.current++
	return false, nil
}

// Prev moves back one question; it is a no-op on the first question.
func (c *Controller) Prev() bool {
	if c.current == 0 {
		return false
	}
	c.current--
	return true
}

// Goto jumps to question i.
func (c *Controller) Goto(i int) error {
	if i < 0 || i >= len(c.questions) {
		return fmt.Errorf("%w: %d", ErrQuestionRange, i)
	}
	c.current = i
	return nil
}

// Answered counts recorded answers.
func (c *Controller) Answered() int {
	n := 0
	for _, a := range c.answers {
		if a >= 0 {
			n++
		}
	}
	return n
}

// Score sums the scores of all recorded answers.
func (c *Controller) Score() float64 {
	total := 0.0
	for i, a := range c.answers {
		if a >= 0 {
			total += c.questions[i].Options[a].Score
		}
	}
	return total
}

func (c *Controller) View() View {
	answered := make([]bool, len(c.answers))
	for i, a := range c.answers {
		answered[i] = a >= 0
	}
	v := View{
		Index:    c.current,
		Total:    len(c.questions),
		Question: c.questions[c.current],
		Answered: answered,
		Progress: float64(c.current+1) / float64(len(c.questions)) * 100,
		IsLast:   c.IsLast(),
	}
	if a := c.answers[c.current]; a >= 0 {
		sel := a
		v.Selected = &sel
	}
	return v
}
