package backend

import (
	"regexp"
	"strings"

	"github.com/ormkit/ormkit/ormerr"
)

// identifierPart matches one bare or double-quoted identifier segment:
// a leading letter/underscore followed by letters, digits, underscores,
// or (when quoted) anything but an unescaped quote.
var identifierPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
var quotedIdentifierPart = regexp.MustCompile(`^"[^";]*"$`)

// reservedWords is the small set of bare tokens spec §4.8 rejects even
// though they are otherwise syntactically valid identifiers, since an
// unquoted SQL keyword in identifier position is far more often an
// injection attempt than a legitimate column name.
var reservedWords = map[string]struct{}{
	"select": {}, "insert": {}, "update": {}, "delete": {}, "drop": {},
	"union": {}, "where": {}, "from": {}, "grant": {}, "revoke": {},
	"exec": {}, "execute": {}, "truncate": {}, "alter": {},
}

// ValidateIdentifier implements spec §4.8's column-name safety invariant:
// no identifier derived from caller input reaches SQL text without
// passing this check. Valid forms are a simple identifier, a dotted
// identifier (table.column), each segment either bare or double-quoted.
// Anything containing ';', comment markers ("--", "/*"), or a bare SQL
// keyword as a full segment is rejected.
func ValidateIdentifier(name string) error {
	if name == "" {
		return ormerr.New(ormerr.Validation, "identifier must not be empty")
	}
	if strings.Contains(name, ";") || strings.Contains(name, "--") || strings.Contains(name, "/*") {
		return ormerr.Newf(ormerr.Validation, "identifier %q contains a disallowed sequence", name)
	}
	for _, part := range strings.Split(name, ".") {
		switch {
		case quotedIdentifierPart.MatchString(part):
			continue
		case identifierPart.MatchString(part):
			if _, reserved := reservedWords[strings.ToLower(part)]; reserved {
				return ormerr.Newf(ormerr.Validation, "identifier %q uses a reserved word as a bare token", name)
			}
		default:
			return ormerr.Newf(ormerr.Validation, "identifier %q is not a valid column/table reference", name)
		}
	}
	return nil
}
