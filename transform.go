package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ColumnTransform rewrites a single cell. row holds the full source row
// keyed by column name, so transforms can read sibling fields.
type ColumnTransform interface {
	Apply(ctx context.Context, value any, row map[string]any) (any, error)
}

// builtinTransforms are the named pure value transforms selectable from
// config.
var builtinTransforms = map[string]func(any) any{
	"title_case":   titleCase,
	"extract_date": extractDate,
	"trim_space":   trimSpace,
}

func builtinTransformNames() []string {
	names := make([]string, 0, len(builtinTransforms))
	for name := range builtinTransforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// titleCase capitalizes the first letter of every word. Non-string values
// pass through.
func titleCase(value any) any {
	s, ok := stringValue(value)
	if !ok {
		return value
	}
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// extractDate reduces a "YYYY-MM-DD HH:MM:SS" timestamp to its date part.
// Values that do not parse pass through.
func extractDate(value any) any {
	s, ok := stringValue(value)
	if !ok {
		return value
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return value
	}
	return t.Format("2006-01-02")
}

func trimSpace(value any) any {
	s, ok := stringValue(value)
	if !ok {
		return value
	}
	return strings.TrimSpace(s)
}

// funcTransform adapts a pure value function to the ColumnTransform interface.
type funcTransform struct {
	fn func(any) any
}

func (t *funcTransform) Apply(_ context.Context, value any, _ map[string]any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return t.fn(value), nil
}

// lookupTransform replaces a cell with a value fetched from another source
// table, matched on one of the row's own fields. It holds a live source
// connection handle for the lifetime of the run.
type lookupTransform struct {
	db     *sql.DB
	engine DBEngine
	spec   LookupConfig
}

func (t *lookupTransform) Apply(ctx context.Context, value any, row map[string]any) (any, error) {
	key, ok := row[t.spec.LocalColumn]
	if !ok || key == nil {
		return value, nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		t.engine.QuoteIdentifier(t.spec.ValueColumn),
		t.engine.QuoteIdentifier(t.spec.Table),
		t.engine.QuoteIdentifier(t.spec.MatchColumn),
		t.engine.Placeholder(1),
	)

	var result any
	err := t.db.QueryRowContext(ctx, query, key).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s.%s: %w", t.spec.Table, t.spec.ValueColumn, err)
	}
	return result, nil
}

// buildColumnTransforms resolves the config's transform entries into
// ColumnTransform implementations keyed by column name. Lookup transforms
// are bound to the source connection.
func buildColumnTransforms(cfg *MigrationConfig, sourceDB *sql.DB, sourceEngine DBEngine) map[string]ColumnTransform {
	if len(cfg.Transforms) == 0 {
		return nil
	}
	transforms := make(map[string]ColumnTransform, len(cfg.Transforms))
	for _, tr := range cfg.Transforms {
		if tr.Lookup != nil {
			transforms[tr.Column] = &lookupTransform{db: sourceDB, engine: sourceEngine, spec: *tr.Lookup}
			continue
		}
		transforms[tr.Column] = &funcTransform{fn: builtinTransforms[tr.Func]}
	}
	return transforms
}
