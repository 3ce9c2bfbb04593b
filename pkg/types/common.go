package types

import (
	"github.com/oklog/ulid/v2"
)

// ID Generation Helpers

func GenerateID(prefix string) string {
	return prefix + "_" + ulid.Make().String()
}

func GenerateRuleID() string         { return GenerateID("rul") }
func GenerateEnvVarID() string       { return GenerateID("env") }
func GenerateNotificationID() string { return GenerateID("ntf") }
