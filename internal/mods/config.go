package mods

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMalformedInput is matched by every error returned for an unusable mod list.
var ErrMalformedInput = errors.New("malformed input")

// InputError describes why a mod list was rejected. Fields maps a JSON path
// such as "mods[2].modId" to the failed validation rule.
type InputError struct {
	Reason string
	Fields map[string]string
}

func (e *InputError) Error() string { return "malformed input: " + e.Reason }

func (e *InputError) Is(target error) bool { return target == ErrMalformedInput }

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

type serverConfig struct {
	Game *struct {
		Mods []ModRef `json:"mods"`
	} `json:"game"`
	Mods []ModRef `json:"mods"`
}

// ParseConfig reads a mod list from either a game server config
// ({"game":{"mods":[...]}}) or a bare {"mods":[...]} document.
func ParseConfig(data []byte) ([]ModRef, error) {
	var cfg serverConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &InputError{Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	list := cfg.Mods
	if cfg.Game != nil && cfg.Game.Mods != nil {
		list = cfg.Game.Mods
	}
	if list == nil {
		return nil, &InputError{Reason: "no mods array found"}
	}
	if err := Validate(list); err != nil {
		return nil, err
	}
	return list, nil
}

// Validate checks every entry of a mod list. The list is rejected as a whole.
func Validate(list []ModRef) error {
	if len(list) == 0 {
		return &InputError{Reason: "mod list is empty"}
	}
	fields := map[string]string{}
	for i, m := range list {
		err := validate.Struct(m)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &InputError{Reason: err.Error()}
		}
		for _, fe := range verrs {
			fields[fmt.Sprintf("mods[%d].%s", i, fe.Field())] = fe.Tag()
		}
	}
	if len(fields) > 0 {
		return &InputError{Reason: "validation failed", Fields: fields}
	}
	return nil
}

var (
	bareIDRE   = regexp.MustCompile(`^[0-9A-Fa-f]{8,}$`)
	workshopRE = regexp.MustCompile(`(?i)/workshop/([0-9A-F]{8,})\b`)
)

// ParseID accepts a bare catalog id or a workshop URL and returns the normalized id.
func ParseID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if bareIDRE.MatchString(raw) {
		return NormalizeID(raw), nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &InputError{Reason: fmt.Sprintf("invalid mod id %q", raw)}
	}
	if m := workshopRE.FindStringSubmatch(u.Path); m != nil {
		return NormalizeID(m[1]), nil
	}
	return "", &InputError{Reason: fmt.Sprintf("invalid mod id %q", raw)}
}
