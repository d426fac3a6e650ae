package quiz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidQuestion = errors.New("invalid question")
	ErrInvalidSet      = errors.New("invalid question set")
)

var validate = validator.New()

// Validate checks the per-type shape of a question.
func (q Question) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidQuestion, describe(err))
	}
	switch q.Type {
	case TypeMCQ:
		if len(q.Options) != MCQOptions {
			return fmt.Errorf("%w: mcq needs exactly %d options, got %d", ErrInvalidQuestion, MCQOptions, len(q.Options))
		}
		for i, o := range q.Options {
			if strings.TrimSpace(o) == "" {
				return fmt.Errorf("%w: option %d is empty", ErrInvalidQuestion, i+1)
			}
		}
		if q.Correct < 1 || q.Correct > MCQOptions {
			return fmt.Errorf("%w: correct option %d out of range 1..%d", ErrInvalidQuestion, q.Correct, MCQOptions)
		}
	case TypeTheory:
		if len(q.Options) > 0 || q.Correct != 0 {
			return fmt.Errorf("%w: theory questions carry no options", ErrInvalidQuestion)
		}
	}
	return nil
}

func (s QuestionSet) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSet, describe(err))
	}
	for i, q := range s.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
