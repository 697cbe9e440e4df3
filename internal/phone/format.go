package phone

import "strings"

// VendorFormat converts a canonical E.164 number into the bare-digit format
// the messaging vendor consumes: the canonical form minus its leading +.
// It is the only place vendor-format strings are produced.
func VendorFormat(canonical string) string {
	return strings.TrimPrefix(canonical, "+")
}
