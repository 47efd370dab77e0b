package utils

import "strings"

type AppEnvironment string

const (
	PRODUCTION  AppEnvironment = "production"
	DEVELOPMENT AppEnvironment = "development"
)

func (e AppEnvironment) Get() string {
	return string(e)
}

// FromEnvironmentStr parses an environment name; unknown values fall back to development.
func FromEnvironmentStr(s string) AppEnvironment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production":
		return PRODUCTION
	default:
		return DEVELOPMENT
	}
}
