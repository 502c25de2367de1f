package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mind-engage/hireflow/internal/exam"
	"go.uber.org/zap"
)

// GenerateTest asks the primary API for the question set of a candidate/offer pair.
func (c *Client) GenerateTest(ctx context.Context, candidatID, offreID int64) ([]exam.Question, error) {
	body, err := c.postJSON(ctx, "generate test", "/api/generate-test", map[string]int64{
		"candidat_id": candidatID,
		"offre_id":    offreID,
	})
	if err != nil {
		return nil, err
	}
	qs, err := DecodeQuestions(body)
	if err != nil {
		return nil, fmt.Errorf("generate test: %w", err)
	}
	c.log.Debug("questions from primary", zap.Int("count", len(qs)))
	return qs, nil
}

// Questions makes Client an exam.Source.
func (c *Client) Questions(ctx context.Context, candidatID, offreID int64) ([]exam.Question, error) {
	return c.GenerateTest(ctx, candidatID, offreID)
}

type wireOption struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type wireQuestion struct {
	Question string       `json:"question"`
	Prompt   string       `json:"prompt"`
	Trait    string       `json:"trait"`
	Options  []wireOption `json:"options"`
}

func (w wireQuestion) toExam() exam.Question {
	q := exam.Question{Prompt: strings.TrimSpace(w.Question), Trait: w.Trait}
	if q.Prompt == "" {
		q.Prompt = strings.TrimSpace(w.Prompt)
	}
	q.Options = make([]exam.Option, 0, len(w.Options))
	for _, o := range w.Options {
		q.Options = append(q.Options, exam.Option{Text: strings.TrimSpace(o.Text), Score: o.Score})
	}
	return q
}

// DecodeQuestions accepts every shape the generators are known to return:
// a JSON array, {"questions": [...]}, a single question object, a JSON
// string holding free text, or the free text itself.
func DecodeQuestions(body []byte) ([]exam.Question, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmptyQuestionSet
	}

	var out []exam.Question
	switch body[0] {
	case '[':
		var ws []wireQuestion
		if err := json.Unmarshal(body, &ws); err != nil {
			return nil, fmt.Errorf("decode question array: %w", err)
		}
		out = convert(ws)
	case '{':
		var env struct {
			Questions []wireQuestion `json:"questions"`
			wireQuestion
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode question object: %w", err)
		}
		if len(env.Questions) > 0 {
			out = convert(env.Questions)
		} else {
			out = convert([]wireQuestion{env.wireQuestion})
		}
	case '"':
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, fmt.Errorf("decode question text: %w", err)
		}
		out = ExtractQuestions(s)
	default:
		out = ExtractQuestions(string(body))
	}
	if len(out) == 0 {
		return nil, ErrEmptyQuestionSet
	}
	return out, nil
}

func convert(ws []wireQuestion) []exam.Question {
	out := make([]exam.Question, 0, len(ws))
	for _, w := range ws {
		if q := w.toExam(); q.Valid() {
			out = append(out, q)
		}
	}
	return out
}

var (
	tagRe           = regexp.MustCompile(`<[^>]*>`)
	entityRe        = regexp.MustCompile(`&[^;\s]*;`)
	questionStartRe = regexp.MustCompile(`(?m)^[ \t]*\d+[.)][ \t]+`)
	optionStartRe   = regexp.MustCompile(`(?m)^[ \t]*[a-dA-D][.)][ \t]+`)
)

// ExtractQuestions parses numbered free text:
//
//	1. Question text
//	a. first   b. second   c. third   d. fourth   (one per line)
//
// Only blocks with exactly four options are kept; options score 2..5 by position.
func ExtractQuestions(text string) []exam.Question {
	clean := entityRe.ReplaceAllString(tagRe.ReplaceAllString(text, ""), "")
	starts := questionStartRe.FindAllStringIndex(clean, -1)

	var out []exam.Question
	for i, s := range starts {
		end := len(clean)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		block := clean[s[1]:end]
		opts := optionStartRe.FindAllStringIndex(block, -1)
		if len(opts) != 4 {
			continue
		}
		prompt := strings.TrimSpace(block[:opts[0][0]])
		if prompt == "" {
			continue
		}
		q := exam.Question{Prompt: prompt, Options: make([]exam.Option, 0, 4)}
		for j, o := range opts {
			oend := len(block)
			if j+1 < len(opts) {
				oend = opts[j+1][0]
			}
			q.Options = append(q.Options, exam.Option{
				Text:  strings.TrimSpace(block[o[1]:oend]),
				Score: float64(j + 2),
			})
		}
		out = append(out, q)
	}
	return out
}
