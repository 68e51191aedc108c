package email

import (
	"net/mail"
	"strings"

	dErrors "alumnus/pkg/domain-errors"
)

// Normalize trims and lowercases an address and rejects anything that is not a
// bare addr-spec. Directory matching and account uniqueness both compare the
// normalized form.
func Normalize(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is required")
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address || parsed.Name != "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	return address, nil
}

// Domain returns the part after the last @, or "" when there is none.
func Domain(address string) string {
	if at := strings.LastIndexByte(address, '@'); at >= 0 {
		return address[at+1:]
	}
	return ""
}
