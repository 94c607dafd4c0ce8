package onecloud

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Sizing limits accepted by the API.
const (
	MinRAM = 512
	MaxRAM = 16384
	MinHDD = 10
	MaxHDD = 250
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("ramstep", func(fl validator.FieldLevel) bool {
			return validRAM(int(fl.Field().Int()))
		})
		_ = v.RegisterValidation("hddstep", func(fl validator.FieldLevel) bool {
			return validHDD(int(fl.Field().Int()))
		})
		validate = v
	})
	return validate
}

// validRAM accepts 512..1024 in steps of 256, then 1024..16384 in steps of 1024.
func validRAM(mb int) bool {
	if mb < MinRAM || mb > MaxRAM {
		return false
	}
	if mb <= 1024 {
		return mb%256 == 0
	}
	return mb%1024 == 0
}

func validHDD(gb int) bool {
	return gb >= MinHDD && gb <= MaxHDD && gb%10 == 0
}

// ValidateRequest checks a server sizing request and returns a KindValidation
// error describing every violated field.
func ValidateRequest(req any) error {
	err := requestValidator().Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeField(fe))
	}
	return &Error{Kind: KindValidation, Message: strings.Join(problems, "; "), Err: err}
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "ramstep":
		return fmt.Sprintf("RAM must be %d..%d MB in steps of 256 up to 1024 and 1024 above, got %v", MinRAM, MaxRAM, fe.Value())
	case "hddstep":
		return fmt.Sprintf("HDD must be %d..%d GB in steps of 10, got %v", MinHDD, MaxHDD, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s, got %v", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
