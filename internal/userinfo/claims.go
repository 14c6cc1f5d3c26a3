package userinfo

// Standard scope names gating optional claim sets.
const (
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopePhone   = "phone"
	ScopeAddress = "address"
)

// scopeClaims maps each scope to the fixed claim-name set it exposes. A
// claim is included only when its scope was granted to the presented token
// and the principal actually carries a value for it.
var scopeClaims = map[string][]string{
	ScopeProfile: {"given_name", "family_name", "birthdate"},
	ScopeEmail:   {"email"},
	ScopePhone:   {"phone_number"},
	ScopeAddress: {"address"},
}

// ClaimsForScope returns the claim names a scope exposes, or nil for an
// unknown scope.
func ClaimsForScope(scope string) []string {
	names := scopeClaims[scope]
	out := make([]string, len(names))
	copy(out, names)
	return out
}
