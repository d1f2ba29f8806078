package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/hashcurator/hashcurator/internal/core/storage"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanResourceRow scans one resourceColumns row into a Resource.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
// A NULL imphash scans as the empty string.
func scanResourceRow(row scanner) (*storage.Resource, error) {
	var r storage.Resource
	var imphash sql.NullString

	err := row.Scan(
		&r.ResourceID,
		&imphash,
		&r.SHA1,
		&r.CreateDate,
		&r.DeterminationPositive,
		&r.DeterminationName,
		&r.IsSafe,
		&r.ProbablySafe,
		&r.Whitelisted,
		&r.WFPProtected,
		&r.InstallerType,
		&r.SignerVerification,
		&r.SignerName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan resource row: %w", err)
	}
	r.IMPHash = imphash.String

	return &r, nil
}

// scanResources drains rows into a slice of resources and closes them.
func scanResources(rows *sql.Rows) ([]storage.Resource, error) {
	defer rows.Close()

	var resources []storage.Resource
	for rows.Next() {
		r, err := scanResourceRow(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resources: %w", err)
	}

	return resources, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
