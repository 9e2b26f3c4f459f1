package gemini

import (
	"errors"
	"fmt"
	urlpkg "net/url"
	"strings"
)

// ErrUnresolvable means that a link can't be resolved against its base even after sanitizing.
var ErrUnresolvable = errors.New("unable to resolve link")

var errIllegalChar = errors.New("illegal character in URI reference")

// Resolve resolves target against base the way links of a document at base are followed.
//
// If the base path ends neither with "/" nor with ".gmi", it is treated as a directory,
// so "gemini://example.com/foo" + "bar" gives "gemini://example.com/foo/bar".
// Malformed targets are sanitized by dropping every character except [A-Za-z0-9:/.-]
// and resolved once more. Absolute targets are returned unchanged.
//
// Resolve is best-effort: if the target still can't be resolved, it is returned as is.
// Use ResolveStrict to get an error instead.
func Resolve(base, target string) string {
	var resolved, err = ResolveStrict(base, target)
	if err != nil {
		return target
	}
	return resolved
}

// ResolveStrict is Resolve, which returns ErrUnresolvable instead of the unresolved target.
func ResolveStrict(base, target string) (string, error) {
	var baseURL, errBase = urlpkg.Parse(base)
	if errBase != nil {
		return "", fmt.Errorf("%w: base %q: %w", ErrUnresolvable, base, errBase)
	}
	baseURL = asDirectory(baseURL)

	var resolved, errResolve = resolveRef(baseURL, target)
	if errResolve == nil {
		return resolved, nil
	}

	resolved, errResolve = resolveRef(baseURL, sanitizeRef(target))
	if errResolve != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrUnresolvable, target, errResolve)
	}
	return resolved, nil
}

func asDirectory(u *urlpkg.URL) *urlpkg.URL {
	if strings.HasSuffix(u.Path, "/") || strings.HasSuffix(u.Path, ".gmi") {
		return u
	}
	var dir = *u
	dir.Path += "/"
	if dir.RawPath != "" {
		dir.RawPath += "/"
	}
	return &dir
}

func resolveRef(base *urlpkg.URL, ref string) (string, error) {
	if err := checkRef(ref); err != nil {
		return "", err
	}
	var refURL, errParse = urlpkg.Parse(ref)
	if errParse != nil {
		return "", errParse
	}
	if refURL.IsAbs() {
		return ref, nil
	}
	return base.ResolveReference(refURL).String(), nil
}

// checkRef rejects ASCII characters that RFC 3986 doesn't allow anywhere in a URI reference
// and malformed percent escapes. url.Parse is more lenient: it accepts spaces, for example.
// Non-ASCII characters are let through.
func checkRef(ref string) error {
	for i := 0; i < len(ref); i++ {
		var c = ref[i]
		switch {
		case c >= 0x80, isUnreserved(c), strings.IndexByte(reservedChars, c) >= 0:
			continue
		case c == '%' && i+2 < len(ref) && isHex(ref[i+1]) && isHex(ref[i+2]):
			i += 2
		default:
			return fmt.Errorf("%w: %q at index %d", errIllegalChar, c, i)
		}
	}
	return nil
}

const reservedChars = ":/?#[]@!$&'()*+,;="

func isUnreserved(c byte) bool {
	return isAlnum(c) || c == '-' || c == '.' || c == '_' || c == '~'
}

func isAlnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func sanitizeRef(ref string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x80 && (isAlnum(byte(r)) || r == ':' || r == '/' || r == '.' || r == '-') {
			return r
		}
		return -1
	}, ref)
}
