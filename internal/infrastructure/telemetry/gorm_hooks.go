package telemetry

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

type startKey string

// statementHook is called after a gorm statement with its SQL verb and the
// time spent since the matching before hook.
type statementHook func(db *gorm.DB, verb string, elapsed time.Duration)

// hookStatements brackets every gorm statement processor with a timer. The
// prefix namespaces the callback names so several hooks can coexist.
func hookStatements(db *gorm.DB, prefix string, after statementHook) error {
	key := startKey(prefix)
	mark := func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tx.Statement.Context = context.WithValue(ctx, key, time.Now())
	}
	done := func(verb string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			var elapsed time.Duration
			if tx.Statement.Context != nil {
				if t, ok := tx.Statement.Context.Value(key).(time.Time); ok {
					elapsed = time.Since(t)
				}
			}
			v := verb
			if v == "" {
				v = sqlVerb(tx.Statement.SQL.String())
			}
			after(tx, v, elapsed)
		}
	}

	cb := db.Callback()
	stages := []struct {
		name, verb    string
		before, after      func(string, func(*gorm.DB)) error
	}{
		{"create", "INSERT", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", "SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", "UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", "DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", "", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", "", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, s := range stages {
		if err := s.before(prefix+":before_"+s.name, mark); err != nil {
			return err
		}
		if err := s.after(prefix+":after_"+s.name, done(s.verb)); err != nil {
			return err
		}
	}
	return nil
}

// sqlVerb classifies raw SQL by its leading keyword.
func sqlVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "OTHER"
	}
	switch verb := strings.ToUpper(fields[0]); verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return verb
	default:
		return "OTHER"
	}
}
