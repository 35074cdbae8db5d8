package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	ncerr "streamsock/internal/errors"
	"streamsock/socket"
)

// validate is shared; building a validator is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their koanf key so messages match the flags.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// flagName turns a koanf key into its CLI flag spelling.
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// Validate checks field values, then cross-field consistency, and
// resolves the tunnel spec.  Every failure is a *errors.ConfigError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			return fieldError(ves[0])
		}
		return err
	}

	if len(c.Targets) == 0 {
		return &ncerr.ConfigError{
			Field:   "target",
			Message: "at least one target is required",
			Hint:    "streamsock [options] host:port  (use --help for usage)",
		}
	}

	targets, err := ExpandTargets(c.Targets)
	if err != nil {
		return &ncerr.ConfigError{Field: "target", Message: err.Error(),
			Hint: "ports are N or N-M within 1-65535"}
	}
	if !c.Probe && len(targets) > 1 {
		return &ncerr.ConfigError{
			Field:   "target",
			Value:   strings.Join(c.Targets, " "),
			Message: "connect mode takes exactly one target",
			Hint:    "use -z to probe several targets or a port range",
		}
	}

	var hasSecure bool
	for _, t := range targets {
		ep, err := socket.ParseTarget(t)
		if err != nil {
			return &ncerr.ConfigError{Field: "target", Value: t, Message: err.Error(),
				Hint: "targets look like host:port or scheme://host:port"}
		}
		hasSecure = hasSecure || ep.Secure
		if c.Tunnel != "" && ep.Network != "tcp" {
			return &ncerr.ConfigError{Field: "tunnel", Value: t,
				Message: ep.Network + " targets cannot be reached through an SSH tunnel"}
		}
		if c.LocalPort > 0 && ep.Network == "unix" {
			return &ncerr.ConfigError{Field: "local-port", Value: c.LocalPort,
				Message: "source port binding needs a tcp or udp target"}
		}
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return &ncerr.ConfigError{
			Field:   "cert-file",
			Message: "client certificate and key must be given together",
			Hint:    "pass both --cert-file and --key-file",
		}
	}

	if c.StartTLS && hasSecure {
		return &ncerr.ConfigError{
			Field:   "starttls",
			Message: "target is already secure",
			Hint:    "drop --starttls or use a plain tcp:// target",
		}
	}

	if c.Probe && (len(c.Send) > 0 || c.Banner) {
		return &ncerr.ConfigError{Field: "send", Message: "probe mode sends and reads nothing",
			Hint: "drop --send and --banner with -z"}
	}
	if c.Probe && c.LocalPort > 0 && len(targets) > 1 {
		return &ncerr.ConfigError{Field: "local-port", Value: c.LocalPort,
			Message: "one source port cannot serve concurrent probes"}
	}

	if c.Tunnel != "" {
		user, host, port, err := ParseTunnelSpec(c.Tunnel)
		if err != nil {
			return &ncerr.ConfigError{Field: "tunnel", Value: c.Tunnel, Message: err.Error()}
		}
		c.TunnelEnabled = true
		c.TunnelUser = user
		c.TunnelHost = host
		c.TunnelPort = port
	}

	return nil
}

// fieldError translates a tag failure into a ConfigError.
func fieldError(fe validator.FieldError) *ncerr.ConfigError {
	ce := &ncerr.ConfigError{Field: flagName(fe.Field()), Value: fe.Value()}

	switch fe.Tag() {
	case "gte", "lte":
		ce.Message = fmt.Sprintf("must be %s %s", map[string]string{"gte": ">=", "lte": "<="}[fe.Tag()], fe.Param())
	case "oneof":
		ce.Message = "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "file":
		ce.Message = "file does not exist"
		ce.Hint = "check the path and permissions"
	case "hostname_rfc1123|ip":
		ce.Message = "must be a host name or IP address"
	case "required":
		ce.Message = "must not be empty"
	default:
		ce.Message = fmt.Sprintf("failed %q validation", fe.Tag())
	}
	return ce
}
