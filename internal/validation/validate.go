package validation

import (
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/replica/errors"
	"github.com/input-output-hk/catalyst-forge-libs/replica/replicatypes"
)

const (
	// maxObjectNameLen caps sanitized object names.
	maxObjectNameLen = 200

	// maxKeyLen is the longest key a backend accepts.
	maxKeyLen = 1024

	// maxOwnerLen caps owner identities used in key namespaces.
	maxOwnerLen = 64
)

// ValidateObjectName validates an object name before it becomes part of a
// storage key. Returns ErrInvalidObjectName when the name is unusable.
func ValidateObjectName(name string) error {
	if name == "" {
		return errors.NewError("validateObjectName", errors.ErrInvalidObjectName).
			WithMessage("object name cannot be empty")
	}

	if hasPathTraversal(name) {
		return errors.NewError("validateObjectName", errors.ErrInvalidObjectName).
			WithObject(name).
			WithMessage("object name cannot contain path traversal sequences")
	}

	if len(name) > maxKeyLen {
		return errors.NewError("validateObjectName", errors.ErrInvalidObjectName).
			WithObject(name).
			WithMessage("object name cannot exceed 1024 characters")
	}

	if hasControlCharacters(name) {
		return errors.NewError("validateObjectName", errors.ErrInvalidObjectName).
			WithObject(name).
			WithMessage("object name cannot contain control characters")
	}

	return nil
}

// SanitizeObjectName reduces an arbitrary filename to a safe object name:
// traversal sequences are stripped, only letters, digits, dots,
// underscores, hyphens and spaces survive, and overlong names are
// truncated with their extension preserved. The result can still be empty
// when nothing safe remains; callers must check.
func SanitizeObjectName(name string) string {
	name = strings.ReplaceAll(name, "../", "")
	name = strings.ReplaceAll(name, "./", "")

	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '.', r == '_', r == '-', r == ' ':
			return r
		default:
			return -1
		}
	}, name)

	if runes := []rune(name); len(runes) > maxObjectNameLen {
		ext := path.Ext(name)
		extLen := len([]rune(ext))
		if extLen >= maxObjectNameLen {
			ext = ""
			extLen = 0
		}
		name = string(runes[:maxObjectNameLen-extLen]) + ext
	}

	return strings.TrimSpace(name)
}

// ValidateOwner validates an owner identity used as a key namespace.
// Returns ErrInvalidInput when the identity is unusable.
func ValidateOwner(owner string) error {
	if owner == "" {
		return errors.NewError("validateOwner", errors.ErrInvalidInput).
			WithMessage("owner cannot be empty")
	}

	if len(owner) > maxOwnerLen {
		return errors.NewError("validateOwner", errors.ErrInvalidInput).
			WithMessage("owner cannot exceed 64 characters")
	}

	for _, r := range owner {
		if !isOwnerChar(r) {
			return errors.NewError("validateOwner", errors.ErrInvalidInput).
				WithMessage("owner can only contain letters, digits, dots, underscores, and hyphens")
		}
	}

	return nil
}

// ValidateTarget validates a replication target's configuration.
// Returns ErrInvalidTarget when the target cannot be used.
func ValidateTarget(target replicatypes.Target) error {
	if target.Name == "" {
		return errors.NewError("validateTarget", errors.ErrInvalidTarget).
			WithMessage("target name cannot be empty")
	}

	if err := validateBucketName(target.Name, target.Bucket); err != nil {
		return err
	}

	if target.Endpoint != "" {
		u, err := url.Parse(target.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.NewBackendError("validateTarget", target.Name, errors.ErrInvalidTarget).
				WithMessage("target endpoint must be a valid URL")
		}
	}

	if target.AccessKeyID == "" || target.SecretAccessKey == "" {
		return errors.NewBackendError("validateTarget", target.Name, errors.ErrInvalidTarget).
			WithMessage("target credentials cannot be empty")
	}

	if target.RequestsPerSecond < 0 {
		return errors.NewBackendError("validateTarget", target.Name, errors.ErrInvalidTarget).
			WithMessage("requests per second cannot be negative")
	}

	return nil
}

// ValidateContentType validates that a content type is a plausible MIME
// type. An empty content type is allowed; the engine sniffs one later.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}

	mimePattern := regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-+]*\/[a-zA-Z0-9][a-zA-Z0-9\-+.]*(\s*;.*)?$`)
	if !mimePattern.MatchString(contentType) {
		return errors.NewError("validateContentType", errors.ErrInvalidInput).
			WithMessage("content type must be a valid MIME type")
	}

	return nil
}

// validateBucketName validates that a bucket name is DNS-compliant
// according to S3 rules. The rules hold for every S3-compatible provider
// the engine targets.
func validateBucketName(targetName, bucket string) error {
	if bucket == "" {
		return errors.NewBackendError("validateTarget", targetName, errors.ErrInvalidTarget).
			WithMessage("bucket name cannot be empty")
	}

	if len(bucket) < 3 || len(bucket) > 63 {
		return errors.NewBackendError("validateTarget", targetName, errors.ErrInvalidTarget).
			WithMessage("bucket name must be between 3 and 63 characters long")
	}

	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return errors.NewBackendError("validateTarget", targetName, errors.ErrInvalidTarget).
				WithMessage("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}

	if bucket[0] == '-' || bucket[0] == '.' || bucket[len(bucket)-1] == '-' || bucket[len(bucket)-1] == '.' {
		return errors.NewBackendError("validateTarget", targetName, errors.ErrInvalidTarget).
			WithMessage("bucket name cannot start or end with a hyphen or dot")
	}

	if isIPAddress(bucket) {
		return errors.NewBackendError("validateTarget", targetName, errors.ErrInvalidTarget).
			WithMessage("bucket name cannot be formatted as an IP address")
	}

	if hasAdjacentSpecialChars(bucket) {
		return errors.NewBackendError("validateTarget", targetName, errors.ErrInvalidTarget).
			WithMessage("bucket name cannot contain two adjacent periods or hyphens")
	}

	return nil
}

// isOwnerChar checks if a character is valid in an owner identity.
func isOwnerChar(r rune) bool {
	return (r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		r == '.' || r == '_' || r == '-'
}

// isValidBucketChar checks if a character is valid in a bucket name.
func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

// hasAdjacentSpecialChars checks for adjacent special characters.
func hasAdjacentSpecialChars(bucket string) bool {
	for i := 0; i < len(bucket)-1; i++ {
		if (bucket[i] == '.' && bucket[i+1] == '.') || (bucket[i] == '-' && bucket[i+1] == '-') {
			return true
		}
	}
	return false
}

// isIPAddress checks if a string is formatted as an IPv4 address.
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if len(part) == 0 {
			return true
		}
		num := 0
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
			num = num*10 + int(char-'0')
		}
		if num > 255 {
			return false
		}
	}

	return true
}

// hasPathTraversal checks for path traversal attempts in object names.
func hasPathTraversal(name string) bool {
	if strings.Contains(name, "..") {
		return true
	}

	cleaned := filepath.Clean(name)
	if strings.HasPrefix(cleaned, "..") {
		return true
	}
	if strings.HasPrefix(cleaned, "/") {
		return true
	}
	// Windows-style absolute paths.
	if len(cleaned) >= 3 && cleaned[1] == ':' && (cleaned[2] == '\\' || cleaned[2] == '/') {
		return true
	}

	return false
}

// hasControlCharacters checks for control characters in the name.
func hasControlCharacters(name string) bool {
	for _, char := range name {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}
