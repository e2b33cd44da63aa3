package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sigma-quiz-service/internal/domain"
)

// QuizInput creates a quiz. Title defaults to "<year> Sigma Quiz".
type QuizInput struct {
	Title       *string           `json:"title" validate:"omitempty,min=1"`
	Description *string           `json:"description" validate:"omitempty,min=1"`
	Date        time.Time         `json:"date" validate:"required"`
	Status      domain.QuizStatus `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
}

// SchoolInput creates a school.
type SchoolInput struct {
	Name    string  `json:"name" validate:"required"`
	State   string  `json:"state" validate:"required"`
	Address *string `json:"address" validate:"omitempty,min=1"`
}

// RoundInput creates a round. NoOfQuestions must be a multiple of NoOfSchools.
type RoundInput struct {
	QuizID                string `json:"quizId" validate:"required"`
	Name                  string `json:"name" validate:"required"`
	RoundNumber           int    `json:"roundNumber" validate:"gt=0"`
	NoOfQuestions         int    `json:"noOfQuestions" validate:"gt=0"`
	NoOfSchools           int    `json:"noOfSchools" validate:"gt=0"`
	MarksPerQuestion      int    `json:"marksPerQuestion" validate:"gt=0"`
	MarksPerBonusQuestion int    `json:"marksPerBonusQuestion" validate:"gt=0"`
}

// RoundPatch updates a round; nil fields keep their current value.
type RoundPatch struct {
	Name                  *string `json:"name"`
	RoundNumber           *int    `json:"roundNumber"`
	NoOfQuestions         *int    `json:"noOfQuestions"`
	NoOfSchools           *int    `json:"noOfSchools"`
	MarksPerQuestion      *int    `json:"marksPerQuestion"`
	MarksPerBonusQuestion *int    `json:"marksPerBonusQuestion"`
}

func (p RoundPatch) apply(r domain.Round) RoundInput {
	in := RoundInput{
		QuizID:                r.QuizID,
		Name:                  r.Name,
		RoundNumber:           r.RoundNumber,
		NoOfQuestions:         r.NoOfQuestions,
		NoOfSchools:           r.NoOfSchools,
		MarksPerQuestion:      r.MarksPerQuestion,
		MarksPerBonusQuestion: r.MarksPerBonusQuestion,
	}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.RoundNumber != nil {
		in.RoundNumber = *p.RoundNumber
	}
	if p.NoOfQuestions != nil {
		in.NoOfQuestions = *p.NoOfQuestions
	}
	if p.NoOfSchools != nil {
		in.NoOfSchools = *p.NoOfSchools
	}
	if p.MarksPerQuestion != nil {
		in.MarksPerQuestion = *p.MarksPerQuestion
	}
	if p.MarksPerBonusQuestion != nil {
		in.MarksPerBonusQuestion = *p.MarksPerBonusQuestion
	}
	return in
}

const multipleOfSchoolsTag = "multipleofschools"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		in := sl.Current().Interface().(RoundInput)
		if in.NoOfSchools > 0 && in.NoOfQuestions%in.NoOfSchools != 0 {
			sl.ReportError(in.NoOfQuestions, "noOfQuestions", "NoOfQuestions", multipleOfSchoolsTag, "")
		}
	}, RoundInput{})
	return v
}

// validateInput returns a domain.ErrInvalidInput error describing every failed rule.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return domain.Invalidf("%s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case multipleOfSchoolsTag:
		return "number of questions should be a multiple of number of schools"
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
