package domain

// Capability is an explicit permission checked at the workflow boundary.
// Tokens carry a capability list; there is no role duck-typing.
type Capability string

const (
	CapWalletRead       Capability = "wallet:read"
	CapWalletWithdraw   Capability = "wallet:withdraw"
	CapCreditsManage    Capability = "credits:manage"
	CapPayoutWrite      Capability = "payout:write"
	CapAdminWithdrawals Capability = "admin:withdrawals"
	CapAdminPayouts     Capability = "admin:payouts"
	CapAdminAdjust      Capability = "admin:adjust"
)

// SellerCapabilities is the default capability set for account-holder tokens.
func SellerCapabilities() []Capability {
	return []Capability{CapWalletRead, CapWalletWithdraw, CapCreditsManage, CapPayoutWrite}
}

// AdminCapabilities is the full administrative capability set.
func AdminCapabilities() []Capability {
	return []Capability{CapAdminWithdrawals, CapAdminPayouts, CapAdminAdjust}
}

// HasCapability reports whether the set contains the capability.
func HasCapability(set []Capability, c Capability) bool {
	for _, s := range set {
		if s == c {
			return true
		}
	}
	return false
}

// ParseCapabilities converts raw strings (e.g. JWT claims) to capabilities.
// Unknown strings are kept as-is; checks are exact-match, so unknowns are
// inert.
func ParseCapabilities(raw []string) []Capability {
	out := make([]Capability, 0, len(raw))
	for _, r := range raw {
		out = append(out, Capability(r))
	}
	return out
}
