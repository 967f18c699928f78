package prompt

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"
)

// ValidatePort accepts 1-65535.
func ValidatePort(input string) error {
	port, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return errors.New("must be a number")
	}
	if port < 1 || port > 65535 {
		return errors.New("must be between 1 and 65535")
	}
	return nil
}

// ValidateRequired rejects blank input.
func ValidateRequired(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("value is required")
	}
	return nil
}

// ValidateShareList accepts a comma-separated list with at least one name.
func ValidateShareList(input string) error {
	for _, s := range strings.Split(input, ",") {
		if strings.Trim(strings.TrimSpace(s), "/") != "" {
			return nil
		}
	}
	return errors.New("at least one share is required")
}

// ValidateOptionalPath accepts an empty value or an absolute path.
func ValidateOptionalPath(input string) error {
	input = strings.TrimSpace(input)
	if input == "" || filepath.IsAbs(input) {
		return nil
	}
	return errors.New("must be an absolute path")
}
