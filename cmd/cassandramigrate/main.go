package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/hhandoko/cassandra-migration-go/cluster"
	"github.com/hhandoko/cassandra-migration-go/command"
	"github.com/hhandoko/cassandra-migration-go/config"
	"github.com/hhandoko/cassandra-migration-go/info"
	"github.com/hhandoko/cassandra-migration-go/logger"
	"github.com/hhandoko/cassandra-migration-go/migration"
	"github.com/hhandoko/cassandra-migration-go/scanner"
)

const usage = `cassandramigrate - Cassandra-style schema migration CLI

Usage:
  cassandramigrate <command> [flags]

Commands:
  init       Create the ledger and counter tables, insert the SCHEMA marker row
  baseline   Insert a BASELINE row at --baseline-version (earlier migrations are not marked applied)
  migrate    Apply every pending migration up to --target
  validate   Report the first discrepancy between resolved and applied migrations
  info       Print the merged resolved+applied view

Flags:
  --keyspace            Keyspace name (default: "migrate")
  --locations           Comma-separated migration script directories (default: db/migration)
  --target              Target version, or LATEST (default: LATEST)
  --baseline-version    Version baselined by "baseline" (default: 1)
  --baseline-description Description recorded on the baseline row
  --table-prefix         Prefix for the ledger and counter table names
  --allow-out-of-order    Permit applying a pending migration below the current max
  --timeout               Per-statement timeout, e.g. 60s (default: 60s)
  --log-level             debug|info|warn|error|none (default: info)

cassandramigrate ships with no production Cassandra driver wired in — the
engine's driver contract (cluster.Session) is satisfied here by an in-memory
double (cluster.MemorySession) so the CLI is runnable standalone. An embedder
with a live cluster constructs its own cluster.Session (e.g. a thin wrapper
around gocql) and calls the command package directly instead of this binary.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	subcommand := os.Args[1]
	if subcommand == "help" || subcommand == "--help" || subcommand == "-h" {
		fmt.Fprint(os.Stderr, usage)
		return
	}

	var (
		keyspace            string
		locations           string
		target              string
		baselineVersion     string
		baselineDescription string
		tablePrefix         string
		allowOutOfOrder     bool
		timeout             time.Duration
		logLevel            string
	)

	fs := flag.NewFlagSet(subcommand, flag.ExitOnError)
	fs.StringVar(&keyspace, "keyspace", "migrate", "Keyspace name")
	fs.StringVar(&locations, "locations", "db/migration", "Comma-separated migration script directories")
	fs.StringVar(&target, "target", "LATEST", "Target version, or LATEST")
	fs.StringVar(&baselineVersion, "baseline-version", "1", "Version baselined by \"baseline\"")
	fs.StringVar(&baselineDescription, "baseline-description", "<< Cassandra Baseline >>", "Description recorded on the baseline row")
	fs.StringVar(&tablePrefix, "table-prefix", "", "Prefix for the ledger and counter table names")
	fs.BoolVar(&allowOutOfOrder, "allow-out-of-order", false, "Permit applying a pending migration below the current max")
	fs.DurationVar(&timeout, "timeout", 60*time.Second, "Per-statement timeout")
	fs.StringVar(&logLevel, "log-level", "info", "debug|info|warn|error|none")
	fs.Parse(os.Args[2:])

	lg := logger.NewDefaultLogger("cassandramigrate")
	lg.SetLevel(logger.ParseLogLevel(logLevel))
	logger.SetGlobalLogger(lg)

	cfg := config.Default()
	cfg.Target = target
	cfg.BaselineVersion = baselineVersion
	cfg.BaselineDescription = baselineDescription
	cfg.TablePrefix = tablePrefix
	cfg.AllowOutOfOrder = allowOutOfOrder
	cfg.Timeout = timeout
	if locations != "" {
		cfg.Locations = strings.Split(locations, ",")
	}

	session := cluster.NewMemorySession(keyspace)
	c := command.Context{
		Acquire:  cluster.Acquire{Session: session, Owned: true},
		Resolver: buildResolver(cfg),
		Config:   cfg,
		Log:      lg,
	}
	defer c.Acquire.Release()

	ctx := context.Background()
	if err := run(ctx, subcommand, c); err != nil {
		log.Fatalf("%s: %v", subcommand, err)
	}
}

// buildResolver composes the CQL and JS resolvers over cfg.Locations, the
// same "discover both unit types under the same roots" shape the teacher's
// migration manager uses when it merges file-based and generated migrations.
func buildResolver(cfg config.Config) migration.Resolver {
	fsScanner := scanner.NewFilesystemScanner(cfg.Locations...)

	// Each location is a scanner root, so logical paths are relative to it;
	// the empty prefix takes every file under every root.
	allPaths := []string{""}

	cqlResolver := migration.NewCQLResolver(fsScanner, allPaths)
	cqlResolver.Encoding = cfg.Encoding

	return migration.NewComposite(
		cqlResolver,
		migration.NewJSResolver(fsScanner, allPaths),
	)
}

func run(ctx context.Context, subcommand string, c command.Context) error {
	switch subcommand {
	case "init":
		if err := command.Initialize(ctx, c); err != nil {
			return err
		}
		fmt.Println("Initialized the migration ledger.")
		return nil

	case "baseline":
		if err := command.Baseline(ctx, c); err != nil {
			return err
		}
		fmt.Printf("Baselined at version %s.\n", c.Config.BaselineVersion)
		return nil

	case "migrate":
		n, err := command.Migrate(ctx, c)
		if err != nil {
			return err
		}
		fmt.Printf("Applied %d migration(s).\n", n)
		return nil

	case "validate":
		if err := command.Validate(ctx, c, false); err != nil {
			return err
		}
		fmt.Println("No discrepancies found.")
		return nil

	case "info":
		entries, err := command.Info(ctx, c)
		if err != nil {
			return err
		}
		printInfo(entries)
		return nil

	default:
		return fmt.Errorf("unknown command %q; run \"cassandramigrate help\"", subcommand)
	}
}

func printInfo(entries []info.Entry) {
	fmt.Printf("%-12s %-10s %-30s %s\n", "VERSION", "STATE", "DESCRIPTION", "TYPE")
	for _, e := range entries {
		description, kind := "", ""
		switch {
		case e.Applied != nil:
			description, kind = e.Applied.Description, string(e.Applied.Type)
		case e.Resolved != nil:
			description, kind = e.Resolved.Description, string(e.Resolved.Type)
		}
		fmt.Printf("%-12s %-10s %-30s %s\n", e.Version.String(), e.State, description, kind)
	}
}
