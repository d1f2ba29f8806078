package postgres

// SQL queries for the resource log.

// resourceColumns is the projection every resource query selects, in scan order.
const resourceColumns = `
			resource_id, imphash, sha1, create_date,
			determination_positive, determination_name,
			is_safe, probably_safe, whitelisted, file_wfp_protected,
			file_pe_installer_type, signer_verification, signer_name`

const (
	// queryMaxCursor returns the newest resource ID created at or before $1.
	// MAX over an empty set yields one NULL row.
	queryMaxCursor = `
		SELECT MAX(resource_id)
		FROM resources
		WHERE create_date <= $1
	`

	// queryRecordAt fetches the first resource at or after a cursor.
	// Resource IDs have gaps (rolled-back inserts), so an exact match is not required.
	queryRecordAt = `
		SELECT` + resourceColumns + `
		FROM resources
		WHERE resource_id >= $1
		ORDER BY resource_id ASC
		LIMIT 1
	`

	// queryGroupedCountsExcludingIgnored counts resources per IMPHash in [$1, $2),
	// anti-joined against the ignore list so ignored hashes are never re-aggregated.
	queryGroupedCountsExcludingIgnored = `
		SELECT r.imphash, COUNT(1) AS count
		FROM resources r
		LEFT JOIN signatures_ignores sig
		  ON sig.type = $3 AND sig.value = r.imphash
		WHERE r.resource_id >= $1
		  AND r.resource_id < $2
		  AND r.imphash IS NOT NULL
		  AND r.imphash <> ''
		  AND sig.value IS NULL
		GROUP BY r.imphash
	`

	// queryGroupedCounts counts resources per IMPHash in [$1, $2) without the ignore filter.
	queryGroupedCounts = `
		SELECT r.imphash, COUNT(1) AS count
		FROM resources r
		WHERE r.resource_id >= $1
		  AND r.resource_id < $2
		  AND r.imphash IS NOT NULL
		  AND r.imphash <> ''
		GROUP BY r.imphash
	`

	// queryRecentByKey fetches the newest resources sharing an IMPHash.
	queryRecentByKey = `
		SELECT` + resourceColumns + `
		FROM resources
		WHERE imphash = $1
		ORDER BY resource_id DESC
		LIMIT $2
	`
)
