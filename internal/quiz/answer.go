package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrBadOption is returned when a stored choice is not a whole number.
var ErrBadOption = errors.New("answer: option must be an integer")

type AnswerKind uint8

const (
	Unanswered AnswerKind = iota
	Choice
	Text
)

// Answer is one question's slot: unanswered, a 1-based option, or free text.
// It encodes as JSON null, a number or a string respectively.
type Answer struct {
	Kind   AnswerKind
	Option int
	Text   string
}

func ChoiceAnswer(option int) Answer { return Answer{Kind: Choice, Option: option} }

func TextAnswer(text string) Answer { return Answer{Kind: Text, Text: text} }

func (a Answer) Answered() bool { return a.Kind != Unanswered }

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case Choice:
		return json.Marshal(a.Option)
	case Text:
		return json.Marshal(a.Text)
	default:
		return []byte("null"), nil
	}
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = Answer{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("answer: %w", err)
		}
		v, err := n.Int64()
		if err != nil || v < math.MinInt32 || v > math.MaxInt32 {
			return fmt.Errorf("%w: %s", ErrBadOption, n)
		}
		*a = ChoiceAnswer(int(v))
		return nil
	}
}

// Blank returns n unanswered slots.
func Blank(n int) []Answer { return make([]Answer, n) }
