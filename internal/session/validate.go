package session

import (
	"fmt"
	"regexp"
)

// Names become directory names and --session arguments, so a leading
// dash is refused.
var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateName checks that name conforms to session naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use 1-64 of a-z, 0-9, '_' or '-', starting with a letter or digit", name)
	}
	return nil
}
