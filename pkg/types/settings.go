package types

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Top-level fields of the Claude settings document owned by this module.
const (
	FieldPermissions         = "permissions"
	FieldEnv                 = "env"
	FieldIncludeCoAuthoredBy = "includeCoAuthoredBy"
	FieldVerbose             = "verbose"
	FieldCleanupPeriodDays   = "cleanupPeriodDays"
	FieldAPIKeyHelper        = "apiKeyHelper"
)

// PermissionRule is a single allow or deny rule as shown to the user.
// ID is session-local and never persisted.
type PermissionRule struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// EnvironmentVariable is a single env entry as shown to the user.
type EnvironmentVariable struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Settings is a typed read-only view of a settings document.
type Settings struct {
	Allow               []string                   `json:"allow"`
	Deny                []string                   `json:"deny"`
	Env                 map[string]string          `json:"env"`
	IncludeCoAuthoredBy bool                       `json:"includeCoAuthoredBy"`
	Verbose             bool                       `json:"verbose"`
	CleanupPeriodDays   *int                       `json:"cleanupPeriodDays,omitempty"`
	APIKeyHelper        *string                    `json:"apiKeyHelper,omitempty"`
	Extra               map[string]json.RawMessage `json:"extra,omitempty"`
}

// ParseSettings builds the typed view of doc. Absent fields take their
// defaults; fields this module does not own end up in Extra.
func ParseSettings(doc []byte) Settings {
	s := Settings{
		Allow:               []string{},
		Deny:                []string{},
		Env:                 map[string]string{},
		IncludeCoAuthoredBy: true,
	}

	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return s
	}

	for _, v := range root.Get("permissions.allow").Array() {
		s.Allow = append(s.Allow, v.String())
	}
	for _, v := range root.Get("permissions.deny").Array() {
		s.Deny = append(s.Deny, v.String())
	}
	root.Get(FieldEnv).ForEach(func(k, v gjson.Result) bool {
		s.Env[k.String()] = v.String()
		return true
	})

	if v := root.Get(FieldIncludeCoAuthoredBy); v.Exists() {
		s.IncludeCoAuthoredBy = v.Bool()
	}
	s.Verbose = root.Get(FieldVerbose).Bool()
	if v := root.Get(FieldCleanupPeriodDays); v.Exists() && v.Type == gjson.Number {
		days := int(v.Int())
		s.CleanupPeriodDays = &days
	}
	if v := root.Get(FieldAPIKeyHelper); v.Exists() && v.Type == gjson.String {
		helper := v.String()
		s.APIKeyHelper = &helper
	}

	root.ForEach(func(k, v gjson.Result) bool {
		switch k.String() {
		case FieldPermissions, FieldEnv, FieldIncludeCoAuthoredBy, FieldVerbose,
			FieldCleanupPeriodDays, FieldAPIKeyHelper:
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]json.RawMessage)
			}
			s.Extra[k.String()] = json.RawMessage(v.Raw)
		}
		return true
	})

	return s
}
