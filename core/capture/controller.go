package capture

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
)

type Options struct {
	Recognizer attendance.Recognizer
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     core.Logger
	// OnChange observes every state transition. Never called after Close.
	OnChange func(State)
	// OnComplete is the refresh trigger, called when a stream capture completes successfully.
	OnComplete func()
}

func (opts *Options) setDefaults() {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger
	}
	if opts.Translator == nil {
		opts.Translator = core.NewTranslator()
	}
	if opts.Validate == nil {
		opts.Validate = core.NewValidator(opts.Translator)
	}
}

func (opts Options) changed(s State) {
	if opts.OnChange != nil {
		opts.OnChange(s)
	}
}

func (opts Options) validate(target attendance.CaptureTarget) error {
	if err := target.Validate(opts.Validate); err != nil {
		return core.FromValidatorErrors(err, opts.Translator)
	}
	return nil
}

// errorMessage is the user-readable message of a failed request.
func errorMessage(err error) string {
	cause := errors.Cause(err)
	if cause == nil {
		return "An unknown error occurred"
	}
	return cause.Error()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
