package pipeline

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"clinicd/pkg/types"
)

// Mode selects whether the classifier runs.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Request is one analysis request.
type Request struct {
	Text  string `json:"text" validate:"required"`
	Mode  Mode   `json:"mode" validate:"oneof=auto manual"`
	Label string `json:"pathology" validate:"required_if=Mode manual,pathology"`
	// RequestID correlates logs; generated when empty.
	RequestID string `json:"-"`
}

// FromAPI converts the wire request. auto_classify defaults to true, and a
// pathology is only accepted when auto_classify is false.
func FromAPI(in types.AnalyzeRequest, requestID string) (Request, error) {
	req := Request{Text: in.Text, Mode: ModeAuto, RequestID: requestID}
	if in.AutoClassify != nil && !*in.AutoClassify {
		req.Mode = ModeManual
	}
	if in.Pathology != nil {
		req.Label = strings.TrimSpace(*in.Pathology)
	}
	if req.Mode == ModeAuto && req.Label != "" {
		return req, &ValidationError{Field: "pathology", Reason: "pathology must be omitted when auto_classify is true"}
	}
	return req, nil
}

type validatorSvc struct {
	v     *validator.Validate
	trans ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *validatorSvc
)

func getValidator() *validatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			if tag == "" || tag == "-" {
				return fld.Name
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		_ = v.RegisterValidation("pathology", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || types.IsPathology(s)
		})
		_ = v.RegisterTranslation("pathology", trans,
			func(ut ut.Translator) error {
				return ut.Add("pathology", "{0} must be one of: {1}", true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				msg, _ := ut.T("pathology", fe.Field(), strings.Join(types.Pathologies, ", "))
				return msg
			},
		)
		vSvc = &validatorSvc{v: v, trans: trans}
	})
	return vSvc
}

// Validate applies the struct rules and the character minimum. It returns
// a *ValidationError for the first violation.
func (r Request) Validate(minChars int) error {
	svc := getValidator()
	if err := svc.v.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Field: fe.Field(), Reason: fe.Translate(svc.trans)}
		}
		return &ValidationError{Reason: err.Error()}
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(r.Text)); n < minChars {
		return &ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("text must be at least %d characters (got %d)", minChars, n),
		}
	}
	return nil
}
