package library

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ClassPlaceholder is the hint text shown in empty class inputs. Submitting it
// unchanged counts as leaving the field empty.
const ClassPlaceholder = "Contoh: 11 IPA 1"

var placeholders = map[string]bool{
	ClassPlaceholder:               true,
	"(Pilih buku terlebih dahulu)": true,
}

// LoanRequest is what an operator fills in to record a loan. A zero LoanDate
// means today.
type LoanRequest struct {
	StudentName string `json:"student_name" validate:"filled,max=100"`
	ClassName   string `json:"class_name" validate:"filled,max=50"`
	BookCode    string `json:"book_code" validate:"filled,max=50"`
	LoanDate    Date   `json:"loan_date"`
}

type ClassRequest struct {
	ID   int64  `json:"id" form:"id" validate:"gte=0"`
	Name string `json:"name" form:"name" validate:"filled,max=50"`
}

type StudentRequest struct {
	Name    string `json:"name" form:"name" validate:"filled,max=100"`
	ClassID int64  `json:"class_id" form:"class_id" validate:"required,gt=0"`
}

type BookRequest struct {
	Code  string `json:"code" form:"code" validate:"filled,max=50"`
	Title string `json:"title" form:"title" validate:"filled,max=200"`
}

// Credentials hold a login. The password may not be blank but is otherwise
// kept as typed.
type Credentials struct {
	Username string `json:"username" form:"username" validate:"filled"`
	Password string `json:"password" form:"password" validate:"filled"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// filled: non-blank and not a known placeholder
	_ = v.RegisterValidation("filled", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		return s != "" && !placeholders[s]
	})
	return v
}

// validateStruct runs the validator and folds its field errors into one
// ErrValidation.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "filled", "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gt", "gte":
		return fe.Field() + " must be a positive number"
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}
