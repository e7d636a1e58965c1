// SPDX-License-Identifier: MIT

package types

import (
	"encoding/json"
	"fmt"
)

// Tier represents the account tier of the current user. The tier decides
// whether quota limits apply: PRO accounts are never quota-gated.
type Tier string

const (
	// TierFree is the default tier, subject to the daily auto-edit and
	// upload quotas.
	TierFree Tier = "free"

	// TierPro is the paid tier with unlimited auto-edits and uploads.
	TierPro Tier = "pro"
)

// String implements fmt.Stringer.
func (t Tier) String() string {
	return string(t)
}

// IsValid checks whether the tier is one of the defined constants.
func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierPro:
		return true
	default:
		return false
	}
}

// Unlimited reports whether the tier bypasses quota checks entirely.
func (t Tier) Unlimited() bool {
	return t == TierPro
}

// MarshalJSON implements json.Marshaler for Tier.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

// UnmarshalJSON implements json.Unmarshaler for Tier.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	tier := Tier(str)
	if !tier.IsValid() {
		return fmt.Errorf("invalid tier: %q", str)
	}

	*t = tier
	return nil
}

// ParseTier parses a string into a Tier, returning an error if invalid.
func ParseTier(s string) (Tier, error) {
	tier := Tier(s)
	if !tier.IsValid() {
		return "", fmt.Errorf("invalid tier: %q (valid: free, pro)", s)
	}
	return tier, nil
}
