package config

import (
	"fmt"
	"log/slog"
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// BindError tells a decode failure (wrong types) from a validate failure
// (wrong values).
type BindError struct {
	Stage string // "decode" or "validate"
	Err   error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("config %s error: %v", e.Stage, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

var moduleName = regexp.MustCompile(`^[a-z][a-z0-9_.-]{0,63}$`)

// Binder decodes merged maps onto structs using `config` tags, then runs
// `validate` tags. Strings convert to durations, slog levels and, when
// comma-separated, to slices.
type Binder struct {
	validate *validator.Validate
}

func NewBinder() *Binder {
	v := validator.New(validator.WithRequiredStructEnabled())
	// registration only fails for an empty tag or nil func
	_ = v.RegisterValidation("modulename", func(fl validator.FieldLevel) bool {
		return moduleName.MatchString(fl.Field().String())
	})
	return &Binder{validate: v}
}

func (b *Binder) Bind(src map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "config",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			levelHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return &BindError{Stage: "decode", Err: err}
	}
	if err := dec.Decode(src); err != nil {
		return &BindError{Stage: "decode", Err: err}
	}
	if err := b.validate.Struct(target); err != nil {
		return &BindError{Stage: "validate", Err: err}
	}
	return nil
}

var levelType = reflect.TypeOf(slog.LevelInfo)

// levelHook accepts "debug", "INFO", "warn+2" and the like for slog.Level.
func levelHook(from, to reflect.Type, data any) (any, error) {
	if to != levelType || from.Kind() != reflect.String {
		return data, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(data.(string))); err != nil {
		return nil, err
	}
	return l, nil
}
