package source

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"

	"github.com/timpalpant/marketgame"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Query names the table and columns that hold one row per volume record.
type Query struct {
	Table         string
	AreaColumn    string
	MonthColumn   string
	CompanyColumn string
	ValueColumn   string
}

type dialect struct {
	text  func(column string) string
	float func(expr string) string
}

var (
	clickhouseDialect = dialect{
		text:  func(c string) string { return fmt.Sprintf("toString(%s)", c) },
		float: func(e string) string { return fmt.Sprintf("toFloat64(%s)", e) },
	}

	postgresDialect = dialect{
		text:  func(c string) string { return fmt.Sprintf("%s::text", c) },
		float: func(e string) string { return fmt.Sprintf("(%s)::double precision", e) },
	}
)

func (q Query) validate() error {
	for _, id := range []string{q.Table, q.AreaColumn, q.MonthColumn, q.CompanyColumn, q.ValueColumn} {
		if !identifierRe.MatchString(id) {
			return errors.Errorf("invalid SQL identifier %q", id)
		}
	}

	return nil
}

// build returns the aggregation query. Identifiers cannot be bound as
// parameters, so they are validated instead.
func (q Query) build(d dialect) (string, error) {
	if err := q.validate(); err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"SELECT %s AS area, %s AS month, %s AS company, %s AS value FROM %s GROUP BY %s, %s, %s ORDER BY area, month, company",
		d.text(q.AreaColumn), d.text(q.MonthColumn), d.text(q.CompanyColumn),
		d.float(fmt.Sprintf("sum(%s)", q.ValueColumn)),
		q.Table,
		q.AreaColumn, q.MonthColumn, q.CompanyColumn), nil
}

// rowScanner is the subset of *sql.Rows and pgx.Rows used to read results.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanObservations(rows rowScanner) ([]marketgame.Observation, error) {
	var observations []marketgame.Observation
	for rows.Next() {
		var obs marketgame.Observation
		if err := rows.Scan(&obs.Area, &obs.Month, &obs.Company, &obs.Value); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}

		if obs.Value < 0 {
			obs.Value = 0
		}
		observations = append(observations, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}

	return observations, nil
}
