package migration

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hhandoko/cassandra-migration-go/errs"
	"github.com/hhandoko/cassandra-migration-go/version"
)

// NameGrammar describes the PREFIX VERSION SEPARATOR DESCRIPTION SUFFIX
// grammar a resolver parses filenames with (spec §4.3).
type NameGrammar struct {
	Prefix    string
	Separator string
	Suffix    string
}

// DefaultCQLGrammar matches "V1__create_table.cql".
var DefaultCQLGrammar = NameGrammar{Prefix: "V", Separator: "__", Suffix: ".cql"}

// DefaultJSGrammar matches "V1__create_table.js".
var DefaultJSGrammar = NameGrammar{Prefix: "V", Separator: "__", Suffix: ".js"}

var versionComponentPattern = regexp.MustCompile(`^[0-9.]+`)

// ParsedName is a filename successfully split by the grammar.
type ParsedName struct {
	Version     version.Version
	Description string
}

// Parse splits filename according to g. It returns (nil, nil) when the
// filename does not match the grammar at all (silently ignored by the
// resolver, per spec §4.3), and a non-nil error only when the grammar
// matches but the version component fails to parse.
func (g NameGrammar) Parse(filename string) (*ParsedName, error) {
	if !strings.HasPrefix(filename, g.Prefix) {
		return nil, nil
	}
	if !strings.HasSuffix(filename, g.Suffix) {
		return nil, nil
	}

	rest := filename[len(g.Prefix) : len(filename)-len(g.Suffix)]

	versionPart := versionComponentPattern.FindString(rest)
	if versionPart == "" {
		return nil, nil
	}

	remainder := rest[len(versionPart):]
	if !strings.HasPrefix(remainder, g.Separator) {
		return nil, nil
	}
	description := strings.ReplaceAll(remainder[len(g.Separator):], "_", " ")

	v, err := version.FromString(versionPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", errs.ErrInvalidMigrationName, filename, err)
	}

	return &ParsedName{Version: v, Description: description}, nil
}
