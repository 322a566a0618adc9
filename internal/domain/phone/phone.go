package phone

import (
	"errors"
	"regexp"
	"strings"
)

// UserServer is the domain every personal chat address lives under.
const UserServer = "s.whatsapp.net"

var onlyDigit = regexp.MustCompile(`^\d+$`)

func Normalize(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	p = strings.ReplaceAll(p, "-", "")
	p = strings.ReplaceAll(p, "+", "")
	p = strings.ReplaceAll(p, " ", "")

	if p == "" {
		return "", errors.New("phone number is required")
	}

	if !onlyDigit.MatchString(p) {
		return "", errors.New("phone must contain only digit")
	}

	if len(p) < 9 || len(p) > 15 {
		return "", errors.New("phone length must between 9 and 15 char")
	}

	return p, nil
}

// ToAddress turns a recipient into the protocol's address form. Values that
// already carry a domain (user@server) are kept as they are; bare numbers are
// normalized and get the user domain appended.
func ToAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("recipient is required")
	}

	if strings.Contains(raw, "@") {
		return raw, nil
	}

	p, err := Normalize(raw)
	if err != nil {
		return "", err
	}

	return p + "@" + UserServer, nil
}
