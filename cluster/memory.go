package cluster

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ErrCASNotApplied is returned by Query.Exec for a conditional ("IF NOT
// EXISTS") write whose condition did not hold — the CQL analogue of a
// lightweight-transaction "applied=false" response.
var ErrCASNotApplied = errors.New("cluster: conditional write not applied")

// MemorySession is an in-process Session double used by the engine's own
// tests. It understands only the small, fixed vocabulary of CQL shapes the
// DAO generates (CREATE TABLE, CREATE INDEX, INSERT ... [IF NOT EXISTS],
// UPDATE ... SET ... WHERE, SELECT, DELETE) — it is not a CQL engine.
type MemorySession struct {
	mu       sync.Mutex
	keyspace string
	tables   map[string][]map[string]any
	closed   bool
}

// NewMemorySession creates an empty in-memory session for keyspace.
func NewMemorySession(keyspace string) *MemorySession {
	return &MemorySession{
		keyspace: keyspace,
		tables:   make(map[string][]map[string]any),
	}
}

func (s *MemorySession) Keyspace() string { return s.keyspace }

func (s *MemorySession) KeyspaceExists(_ context.Context, name string) (bool, error) {
	return name == s.keyspace, nil
}

func (s *MemorySession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *MemorySession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *MemorySession) Query(stmt string, args ...any) Query {
	return &memoryQuery{session: s, stmt: strings.TrimSpace(stmt), args: args}
}

// Rows exposes a table's current rows for assertions in tests.
func (s *MemorySession) Rows(table string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.tables[table]))
	copy(out, s.tables[table])
	return out
}

type memoryQuery struct {
	session *MemorySession
	ctx     context.Context
	stmt    string
	args    []any
}

func (q *memoryQuery) WithContext(ctx context.Context) Query {
	q.ctx = ctx
	return q
}

func (q *memoryQuery) Exec() error {
	_, err := q.run()
	return err
}

func (q *memoryQuery) Iter() Iter {
	rows, err := q.run()
	return &memoryIter{rows: rows, cols: q.selectColumns(), err: err}
}

// selectColumns returns the explicit, ordered column list of a SELECT
// statement so Scan can assign positionally; the DAO never issues
// "SELECT *", precisely so result order is unambiguous here.
func (q *memoryQuery) selectColumns() []string {
	m := selectRe.FindStringSubmatch(q.stmt)
	if m == nil {
		return nil
	}
	if strings.TrimSpace(m[1]) == "*" {
		return nil
	}
	return splitAndTrim(m[1], ",")
}

var (
	createTableRe = regexp.MustCompile(`(?is)^CREATE TABLE IF NOT EXISTS\s+(\S+)`)
	createIndexRe = regexp.MustCompile(`(?is)^CREATE INDEX IF NOT EXISTS\s+\S*\s*ON\s+(\S+)`)
	insertRe      = regexp.MustCompile(`(?is)^INSERT INTO\s+(\S+)\s*\(([^)]*)\)\s*VALUES\s*\(([^)]*)\)(\s+IF NOT EXISTS)?`)
	updateRe      = regexp.MustCompile(`(?is)^UPDATE\s+(\S+)\s+SET\s+(.*?)\s+WHERE\s+(.*)$`)
	selectRe      = regexp.MustCompile(`(?is)^SELECT\s+(.*?)\s+FROM\s+(\S+)(\s+WHERE\s+(.*))?$`)
	deleteRe      = regexp.MustCompile(`(?is)^DELETE FROM\s+(\S+)\s+WHERE\s+(.*)$`)
)

func (q *memoryQuery) run() ([]map[string]any, error) {
	if q.ctx != nil && q.ctx.Err() != nil {
		return nil, q.ctx.Err()
	}

	s := q.session
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case createTableRe.MatchString(q.stmt):
		m := createTableRe.FindStringSubmatch(q.stmt)
		table := m[1]
		if _, ok := s.tables[table]; !ok {
			s.tables[table] = nil
		}
		return nil, nil

	case createIndexRe.MatchString(q.stmt):
		return nil, nil

	case insertRe.MatchString(q.stmt):
		return s.runInsert(q)

	case updateRe.MatchString(q.stmt):
		return nil, s.runUpdate(q)

	case selectRe.MatchString(q.stmt):
		return s.runSelect(q)

	case deleteRe.MatchString(q.stmt):
		return nil, s.runDelete(q)

	default:
		return nil, fmt.Errorf("cluster: memory session cannot interpret statement: %s", q.stmt)
	}
}

func (s *MemorySession) runInsert(q *memoryQuery) ([]map[string]any, error) {
	m := insertRe.FindStringSubmatch(q.stmt)
	table, colsRaw, conditional := m[1], m[2], m[4] != ""

	cols := splitAndTrim(colsRaw, ",")
	if len(cols) != len(q.args) {
		return nil, fmt.Errorf("cluster: column/arg count mismatch for %s: %d cols, %d args", table, len(cols), len(q.args))
	}

	row := make(map[string]any, len(cols))
	for i, c := range cols {
		row[c] = q.args[i]
	}

	key := rowKey(row)

	if conditional {
		for _, existing := range s.tables[table] {
			if rowKey(existing) == key {
				return []map[string]any{{"[applied]": false}}, nil
			}
		}
	} else {
		for i, existing := range s.tables[table] {
			if rowKey(existing) == key {
				s.tables[table][i] = row
				return []map[string]any{{"[applied]": true}}, nil
			}
		}
	}

	s.tables[table] = append(s.tables[table], row)
	return []map[string]any{{"[applied]": true}}, nil
}

// rowKey picks the DAO's known identity columns so upserts and CAS checks
// work without a real primary-key schema.
func rowKey(row map[string]any) any {
	if v, ok := row["installed_rank"]; ok {
		return fmt.Sprintf("installed_rank=%v", v)
	}
	if v, ok := row["name"]; ok {
		return fmt.Sprintf("name=%v", v)
	}
	return row
}

func (s *MemorySession) runUpdate(q *memoryQuery) error {
	m := updateRe.FindStringSubmatch(q.stmt)
	table, setClause, whereClause := m[1], m[2], m[3]

	setCols := splitAndTrim(setClause, ",")
	setPlaceholders := strings.Count(setClause, "?")
	args := q.args
	if len(args) < setPlaceholders {
		return fmt.Errorf("cluster: not enough args for SET clause in %s", q.stmt)
	}
	setArgs, whereArgs := args[:setPlaceholders], args[setPlaceholders:]

	whereCols := extractWhereColumns(whereClause)
	if len(whereArgs) < len(whereCols) {
		return fmt.Errorf("cluster: not enough args for WHERE clause in %s", q.stmt)
	}

	apply := func(row map[string]any) {
		argIdx := 0
		for _, col := range setCols {
			name, expr := splitAssignment(col)
			switch {
			case expr == "?":
				row[name] = setArgs[argIdx]
				argIdx++
			case strings.Contains(expr, "+"):
				row[name] = toInt64(row[name]) + parseIncrement(expr)
			default:
				row[name] = expr
			}
		}
	}

	rows := s.tables[table]
	matched := false
	for i, row := range rows {
		if !rowMatches(row, whereCols, whereArgs) {
			continue
		}
		matched = true
		apply(row)
		rows[i] = row
	}

	if !matched && len(whereCols) == 1 {
		// Counter/ledger rows auto-vivify on first write, like a real
		// Cassandra counter column or an upsert-by-default table.
		row := map[string]any{whereCols[0]: whereArgs[0]}
		apply(row)
		s.tables[table] = append(rows, row)
	}

	return nil
}

// parseIncrement extracts the literal addend from an expression of the
// shape "<col> + <literal>".
func parseIncrement(expr string) int64 {
	parts := strings.SplitN(expr, "+", 2)
	if len(parts) != 2 {
		return 0
	}
	var n int64
	fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &n)
	return n
}

func (s *MemorySession) runSelect(q *memoryQuery) ([]map[string]any, error) {
	m := selectRe.FindStringSubmatch(q.stmt)
	table, whereClause := m[2], m[4]

	whereCols := extractWhereColumns(whereClause)
	args := q.args

	var out []map[string]any
	for _, row := range s.tables[table] {
		if len(whereCols) > 0 && !rowMatches(row, whereCols, args) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *MemorySession) runDelete(q *memoryQuery) error {
	m := deleteRe.FindStringSubmatch(q.stmt)
	table, whereClause := m[1], m[2]

	whereCols := extractWhereColumns(whereClause)
	var kept []map[string]any
	for _, row := range s.tables[table] {
		if rowMatches(row, whereCols, q.args) {
			continue
		}
		kept = append(kept, row)
	}
	s.tables[table] = kept
	return nil
}

func splitAssignment(s string) (name, expr string) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func extractWhereColumns(whereClause string) []string {
	if strings.TrimSpace(whereClause) == "" {
		return nil
	}
	var cols []string
	for _, clause := range strings.Split(whereClause, "AND") {
		name, _ := splitAssignment(clause)
		if name != "" {
			cols = append(cols, name)
		}
	}
	return cols
}

func rowMatches(row map[string]any, whereCols []string, args []any) bool {
	if len(args) < len(whereCols) {
		return false
	}
	for i, c := range whereCols {
		if fmt.Sprintf("%v", row[c]) != fmt.Sprintf("%v", args[i]) {
			return false
		}
	}
	return true
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "?" {
			continue
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	default:
		return 0
	}
}

type memoryIter struct {
	rows []map[string]any
	cols []string
	err  error
	pos  int
}

func (it *memoryIter) Scan(dest ...any) bool {
	if it.err != nil || it.pos >= len(it.rows) {
		return false
	}
	row := it.rows[it.pos]
	it.pos++

	if applied, isApplied := row["[applied]"]; isApplied && len(dest) == 1 {
		if ptr, ok := dest[0].(*bool); ok {
			*ptr = applied.(bool)
			return true
		}
	}

	for i, col := range it.cols {
		if i >= len(dest) {
			break
		}
		assign(dest[i], row[col])
	}
	return true
}

func (it *memoryIter) Close() error { return it.err }

func assign(dest any, v any) {
	switch d := dest.(type) {
	case *string:
		if v == nil {
			*d = ""
		} else {
			*d = fmt.Sprintf("%v", v)
		}
	case *int64:
		*d = toInt64(v)
	case *int32:
		*d = int32(toInt64(v))
	case **int32:
		if v == nil {
			*d = nil
		} else {
			n := int32(toInt64(v))
			*d = &n
		}
	case *bool:
		if v == nil {
			*d = false
		} else if b, ok := v.(bool); ok {
			*d = b
		}
	case *any:
		*d = v
	case *time.Time:
		if t, ok := v.(time.Time); ok {
			*d = t
		}
	}
}
