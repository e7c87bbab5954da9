package models

// Option record names in the options store.
const (
	OptionLoginOptions    = "login_options"
	OptionSecurityOptions = "security_options"
)

// SecurityOptions is the authoritative security hardening record.
// Bounds are enforced at write time by the settings service, so readers
// can trust a stored record without re-validating it.
type SecurityOptions struct {
	ForceLoginEnabled bool     `json:"force_login_enabled"`
	HideLoginPath     bool     `json:"hide_login_path"`
	CustomLoginSlug   string   `json:"custom_login_slug"`
	MaxLoginAttempts  int      `json:"max_login_attempts"` // 3-10
	LockoutSeconds    int      `json:"lockout_seconds"`    // 300-3600
	SessionSeconds    int      `json:"session_seconds"`    // 900-7200
	SecurityHeaders   bool     `json:"security_headers"`
	ExemptRoles       []string `json:"exempt_roles"` // always contains "administrator"
}

// LoginOptions holds the login customization and redirect record.
type LoginOptions struct {
	RedirectToCompanion  bool   `json:"redirect_to_companion"`
	ForceDashboardSwap   bool   `json:"force_dashboard_swap"`
	RoleRedirectsEnabled bool   `json:"role_redirects_enabled"`
	ExemptAdmins         bool   `json:"exempt_admins"`
	CompanionPath        string `json:"companion_path"`
}

// DefaultSecurityOptions returns the record written on first boot.
func DefaultSecurityOptions() SecurityOptions {
	return SecurityOptions{
		ForceLoginEnabled: false,
		HideLoginPath:     false,
		CustomLoginSlug:   "",
		MaxLoginAttempts:  5,
		LockoutSeconds:    900,
		SessionSeconds:    3600,
		SecurityHeaders:   true,
		ExemptRoles:       []string{"administrator"},
	}
}

// DefaultLoginOptions returns the record written on first boot.
func DefaultLoginOptions() LoginOptions {
	return LoginOptions{
		ExemptAdmins:  true,
		CompanionPath: "/companion",
	}
}

// HasExemptRole reports whether any of the given roles is exempt from
// forced redirects.
func (o SecurityOptions) HasExemptRole(roles []string) bool {
	for _, r := range roles {
		for _, e := range o.ExemptRoles {
			if r == e {
				return true
			}
		}
	}
	return false
}
