package contact

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// ValidationError reports invalid contact input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var customFieldKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NormalizeEmail validates an email address and returns it normalized
// to lowercase.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationErrorf("invalid email address %q", email)
	}
	return strings.ToLower(addr.Address), nil
}

// ValidateName checks a name field, returning the trimmed value.
func ValidateName(name, field string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationErrorf("%s cannot be empty", field)
	}
	if len(name) > 100 {
		return "", validationErrorf("%s is too long (max 100 characters)", field)
	}
	return name, nil
}

// ValidateCompany checks a company name, returning the trimmed value.
func ValidateCompany(company string) (string, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return "", validationErrorf("company name cannot be empty")
	}
	if len(company) > 200 {
		return "", validationErrorf("company name is too long (max 200 characters)")
	}
	return company, nil
}

var validTitles = map[string]bool{
	"Mr.": true, "Ms.": true, "Mrs.": true, "Dr.": true, "Prof.": true,
}

// ValidateTitle checks an honorific title. The empty string is valid
// and means "no title".
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", nil
	}
	if !validTitles[title] {
		return "", validationErrorf("invalid title %q (must be one of: Dr., Mr., Mrs., Ms., Prof.)", title)
	}
	return title, nil
}

// ValidateStatus checks and normalizes a contact status.
func ValidateStatus(status string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(status))); s {
	case StatusPending, StatusSent, StatusReplied, StatusBounced:
		return s, nil
	default:
		return "", validationErrorf("invalid status %q (must be one of: bounced, pending, replied, sent)", status)
	}
}

// ValidateGreetingStyle checks and normalizes a greeting style.
func ValidateGreetingStyle(style string) (GreetingStyle, error) {
	switch s := GreetingStyle(strings.ToLower(strings.TrimSpace(style))); s {
	case GreetingFormal, GreetingSemiFormal, GreetingCasual, GreetingProfessional:
		return s, nil
	default:
		return "", validationErrorf("invalid greeting style %q (must be one of: casual, formal, professional, semi_formal)", style)
	}
}

// ValidateCustomFieldKey checks a custom field key.
func ValidateCustomFieldKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", validationErrorf("custom field key cannot be empty")
	}
	if !customFieldKeyPattern.MatchString(key) {
		return "", validationErrorf("invalid custom field key %q (letters, digits and underscores only, must not start with a digit)", key)
	}
	if len(key) > 50 {
		return "", validationErrorf("custom field key is too long (max 50 characters)")
	}
	return key, nil
}

// ParseCustomFields parses the CLI "key=value,key2=value2" format.
func ParseCustomFields(s string) (map[string]string, error) {
	result := make(map[string]string)
	if s == "" {
		return result, nil
	}

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, validationErrorf("invalid custom field %q (expected key=value)", pair)
		}
		key, err := ValidateCustomFieldKey(key)
		if err != nil {
			return nil, err
		}
		result[key] = strings.TrimSpace(value)
	}

	return result, nil
}
