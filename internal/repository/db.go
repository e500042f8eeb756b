package repository

// scanner is satisfied by both *sql.Row and *sql.Rows so the scan
// helpers can serve single- and multi-row queries.
type scanner interface {
	Scan(dest ...any) error
}
