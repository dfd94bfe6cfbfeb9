package ruletree

import (
	"fmt"
	"regexp"
	"strings"
)

// valueKeywordRE matches one leading required/indexed/encrypted[...] keyword
// token, including its trailing separating whitespace, at the front of a
// child's raw `.value` string.
var valueKeywordRE = regexp.MustCompile(`^(required|indexed|encrypted(\[[^\]]*\])?)\s+`)

// keySuffixRE matches one trailing /encrypted, /encrypted[...] or /few
// annotation on a raw child key.
var keySuffixRE = regexp.MustCompile(`/(encrypted(\[[^\]]*\])?|few)$`)

// keywords is what stripValueKeywords found at the front of a value string.
type keywords struct {
	required    bool
	indexed     bool
	encrypted   bool
	encryptPat  string
}

// stripValueKeywords strips every leading required/indexed/encrypted[...]
// token from raw, returning the keywords found and the remaining body to
// treat as the expression. It is applied twice to the same string by
// design: once by a node inspecting its own `.value` (to get a parseable
// expression), and once by that node's parent inspecting the same raw
// string for required/indexed/encrypted bookkeeping.
func stripValueKeywords(raw string) (keywords, string, error) {
	var kw keywords
	body := raw
	for {
		m := valueKeywordRE.FindStringSubmatchIndex(body)
		if m == nil {
			break
		}
		token := body[m[2]:m[3]]
		switch {
		case token == "required":
			if kw.required {
				return kw, "", fmt.Errorf("duplicated keyword %q", "required")
			}
			kw.required = true
		case token == "indexed":
			if kw.indexed {
				return kw, "", fmt.Errorf("duplicated keyword %q", "indexed")
			}
			kw.indexed = true
		case strings.HasPrefix(token, "encrypted"):
			if kw.encrypted {
				return kw, "", fmt.Errorf("duplicated keyword %q", "encrypted")
			}
			kw.encrypted = true
			kw.encryptPat = "#"
			if m[4] >= 0 {
				bracket := body[m[4]:m[5]]
				pat := strings.TrimSuffix(strings.TrimPrefix(bracket, "["), "]")
				if pat != "" {
					kw.encryptPat = pat
				}
			}
		}
		body = body[m[1]:]
	}
	return kw, body, nil
}

// keySuffixes is what stripKeySuffixes found trailing a raw child key.
type keySuffixes struct {
	encrypted  bool
	encryptPat string
	few        bool
}

// stripKeySuffixes strips every trailing /encrypted, /encrypted[...] or
// /few annotation from a raw child key, returning the bare key underneath.
func stripKeySuffixes(rawKey string) (string, keySuffixes, error) {
	var sfx keySuffixes
	key := rawKey
	for {
		m := keySuffixRE.FindStringSubmatchIndex(key)
		if m == nil {
			break
		}
		token := key[m[2]:m[3]]
		if strings.HasPrefix(token, "encrypted") {
			if sfx.encrypted {
				return "", sfx, fmt.Errorf("key %q has a duplicated /encrypted suffix", rawKey)
			}
			sfx.encrypted = true
			sfx.encryptPat = "#"
			if m[4] >= 0 {
				bracket := key[m[4]:m[5]]
				pat := strings.TrimSuffix(strings.TrimPrefix(bracket, "["), "]")
				if pat != "" {
					sfx.encryptPat = pat
				}
			}
		} else {
			if sfx.few {
				return "", sfx, fmt.Errorf("key %q has a duplicated /few suffix", rawKey)
			}
			sfx.few = true
		}
		key = key[:m[0]]
	}
	return key, sfx, nil
}

// isWildcard reports whether a (suffix-stripped) key is a wildcard capture.
func isWildcard(key string) bool {
	return strings.HasPrefix(key, "$")
}

// isControlKey reports whether a (suffix-stripped) key is a reserved
// control key rather than a child name.
func isControlKey(key string) bool {
	return strings.HasPrefix(key, ".")
}
