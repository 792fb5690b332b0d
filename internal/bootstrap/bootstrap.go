// Package bootstrap implements the schema bootstrap component (C6):
// detect-then-create against information_schema, followed by
// statement-by-statement execution of a bundled SQL script. This is
// intentionally not a versioned migration framework — the source system
// never auto-drops existing tables and treats "all required tables
// present" as fully bootstrapped.
package bootstrap

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaScript string

// requiredTables are checked against information_schema before running the
// bundled script. The cache table and both domain tables must all exist
// for the tier to be considered bootstrapped.
var requiredTables = []string{"storage_cache", "customers", "thread_ticket_mappings"}

const (
	statementTimeout = 60 * time.Second
	totalTimeout     = 120 * time.Second
)

// Run bootstraps the durable schema if any required table is missing.
// It is not safe to run concurrently across replicas without an external
// lock (see DESIGN.md Open Question), matching the source's
// detection-then-create behavior.
func Run(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, totalTimeout)
	defer cancel()

	missing, err := missingTables(ctx, pool)
	if err != nil {
		return fmt.Errorf("bootstrap: checking information_schema: %w", err)
	}
	if len(missing) == 0 {
		logger.Info("bootstrap: schema already present")
		return nil
	}
	logger.Info("bootstrap: missing tables, applying schema script", "missing", missing)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: acquiring connection: %w", err)
	}
	defer conn.Release()

	statements := splitStatements(schemaScript)
	for i, stmt := range statements {
		stmtCtx, cancel := context.WithTimeout(ctx, statementTimeout)
		_, err := conn.Exec(stmtCtx, fmt.Sprintf("SET statement_timeout = %d", statementTimeout.Milliseconds()))
		if err == nil {
			_, err = conn.Exec(stmtCtx, stmt)
		}
		cancel()
		if err != nil {
			return fmt.Errorf("bootstrap: executing statement %d/%d: %w", i+1, len(statements), err)
		}
	}

	logger.Info("bootstrap: schema applied", "statements", len(statements))
	return nil
}

func missingTables(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_name = ANY($1)`,
		requiredTables,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	present := make(map[string]bool, len(requiredTables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, t := range requiredTables {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	return missing, nil
}

// dollarQuoteTag matches a dollar-quote delimiter, e.g. $$ or $tag$, used to
// wrap plpgsql function bodies that themselves contain semicolons.
var dollarQuoteTag = regexp.MustCompile(`^\$[A-Za-z0-9_]*\$`)

// splitStatements splits a SQL script on top-level semicolons, treating any
// text between matching dollar-quote tags as opaque so a function body's
// internal semicolons do not get split.
func splitStatements(script string) []string {
	var statements []string
	var current strings.Builder
	var quoteTag string

	i := 0
	for i < len(script) {
		if quoteTag == "" {
			if loc := dollarQuoteTag.FindString(script[i:]); loc != "" {
				quoteTag = loc
				current.WriteString(loc)
				i += len(loc)
				continue
			}
			if script[i] == ';' {
				if s := strings.TrimSpace(current.String()); s != "" {
					statements = append(statements, s)
				}
				current.Reset()
				i++
				continue
			}
			current.WriteByte(script[i])
			i++
			continue
		}

		if strings.HasPrefix(script[i:], quoteTag) {
			current.WriteString(quoteTag)
			i += len(quoteTag)
			quoteTag = ""
			continue
		}
		current.WriteByte(script[i])
		i++
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		statements = append(statements, s)
	}
	return statements
}
