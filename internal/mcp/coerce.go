package mcp

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ArgumentGetter is an interface for getting arguments from a request
type ArgumentGetter interface {
	GetArguments() map[string]any
}

// coerceBindArguments binds MCP request arguments to a target struct with
// type coercion. Some clients send every parameter as a string, including
// numbers and booleans.
func coerceBindArguments[T any](request ArgumentGetter, target *T) error {
	rawArgs := request.GetArguments()

	jsonStringHook := func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return data, nil
		}

		switch {
		case t.Kind() == reflect.Bool:
			if raw == "true" || raw == "false" {
				return raw == "true", nil
			}
		case t.Kind() >= reflect.Int && t.Kind() <= reflect.Float64:
			var n json.Number
			if err := json.Unmarshal([]byte(raw), &n); err == nil {
				return n, nil
			}
		}

		return data, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(jsonStringHook),
		Result:           target,
		TagName:          "json",
	})
	if err != nil {
		return err
	}

	return decoder.Decode(rawArgs)
}
