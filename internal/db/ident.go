package db

import (
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

var regionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,40}$`)

// ValidateRegion rejects region names that cannot be embedded in a table
// name. Only lower-case ASCII letters, digits and underscores are allowed,
// starting with a letter.
func ValidateRegion(region string) error {
	if !regionPattern.MatchString(region) {
		return eris.Errorf("db: invalid region name %q", region)
	}
	return nil
}

// Table returns the quoted, schema-qualified identifier schema.name.
func Table(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// RegionTable returns the quoted identifier schema.<prefix>_<region>[_suffix].
// The region is validated first.
func RegionTable(schema, prefix, region, suffix string) (string, error) {
	if err := ValidateRegion(region); err != nil {
		return "", err
	}
	name := prefix + "_" + region
	if suffix != "" {
		name += "_" + suffix
	}
	return Table(schema, name), nil
}
