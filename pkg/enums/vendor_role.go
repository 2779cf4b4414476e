package enums

import (
	"fmt"
	"strings"
)

// VendorRole is the seller category that determines the commission rate.
type VendorRole string

const (
	VendorRoleChef      VendorRole = "chef"
	VendorRoleVendor    VendorRole = "vendor"
	VendorRolePharmacy  VendorRole = "pharmacy"
	VendorRoleTopVendor VendorRole = "topvendor"
	VendorRoleRider     VendorRole = "rider"
)

var validVendorRoles = []VendorRole{
	VendorRoleChef,
	VendorRoleVendor,
	VendorRolePharmacy,
	VendorRoleTopVendor,
	VendorRoleRider,
}

// IsValid reports whether the value matches a known vendor role.
func (r VendorRole) IsValid() bool {
	for _, candidate := range validVendorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// WalletRole returns the wallet partition credited for this vendor role.
func (r VendorRole) WalletRole() WalletRole {
	return WalletRole(r)
}

// ParseVendorRole converts raw input into VendorRole. Matching is case-insensitive.
func ParseVendorRole(value string) (VendorRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validVendorRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vendor role %q", value)
}

// WalletRole partitions wallets held by the same account.
type WalletRole string

const (
	WalletRoleChef      = WalletRole(VendorRoleChef)
	WalletRoleVendor    = WalletRole(VendorRoleVendor)
	WalletRolePharmacy  = WalletRole(VendorRolePharmacy)
	WalletRoleTopVendor = WalletRole(VendorRoleTopVendor)
	WalletRoleRider     = WalletRole(VendorRoleRider)
	// WalletRolePlatform holds commission and fee income.
	WalletRolePlatform WalletRole = "platform"
)

// IsValid reports whether the value is a vendor role or the platform role.
func (r WalletRole) IsValid() bool {
	if r == WalletRolePlatform {
		return true
	}
	return VendorRole(r).IsValid()
}

// PayeeRoles lists the wallet roles that can receive payouts, in a stable order.
func PayeeRoles() []WalletRole {
	roles := make([]WalletRole, 0, len(validVendorRoles))
	for _, vr := range validVendorRoles {
		roles = append(roles, vr.WalletRole())
	}
	return roles
}

// ParseWalletRole converts raw input into WalletRole.
func ParseWalletRole(value string) (WalletRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	role := WalletRole(normalized)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid wallet role %q", value)
	}
	return role, nil
}
