package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/glossa-dev/glossa/pkg/audit"
	"github.com/glossa-dev/glossa/pkg/observability"
	"github.com/glossa-dev/glossa/pkg/rbac"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// Env is shared by every subcommand
type Env struct {
	Logger *logrus.Logger
	Out    io.Writer
}

// NewRootCommand creates the glossa-admin root command
func NewRootCommand(env *Env) *Command {
	if env.Out == nil {
		env.Out = os.Stdout
	}
	if env.Logger == nil {
		env.Logger = logrus.New()
	}

	root := &Command{
		Name:        "glossa-admin",
		Description: "Glossa - role and permission administration",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("glossa-admin", flag.ContinueOnError),
	}

	root.Subcommands["migrate"] = newMigrateCommand(env)
	root.Subcommands["seed"] = newSeedCommand(env)
	root.Subcommands["roles"] = newRolesCommand(env)
	root.Subcommands["grant"] = newGrantCommand(env)
	root.Subcommands["check"] = newCheckCommand(env)

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return c.usage(out)
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	fmt.Fprintf(out, "Usage: %s <command> [flags]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// dbFlags are registered on every subcommand that touches the database
type dbFlags struct {
	url    *string
	driver *string
}

func addDBFlags(fs *flag.FlagSet) dbFlags {
	return dbFlags{
		url:    fs.String("db", os.Getenv("GLOSSA_DATABASE_URL"), "Database connection URL (default $GLOSSA_DATABASE_URL)"),
		driver: fs.String("driver", "postgres", "Database driver (postgres or sqlite3)"),
	}
}

func (f dbFlags) dialect() (rbac.Dialect, error) {
	switch rbac.Dialect(*f.driver) {
	case rbac.DialectPostgres:
		return rbac.DialectPostgres, nil
	case rbac.DialectSQLite:
		return rbac.DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", *f.driver)
	}
}

// open connects to the database named by the flags
func (f dbFlags) open(ctx context.Context) (*sql.DB, rbac.Dialect, error) {
	if *f.url == "" {
		return nil, "", fmt.Errorf("database URL is required (-db or GLOSSA_DATABASE_URL)")
	}
	dialect, err := f.dialect()
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(string(dialect), *f.url)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == rbac.DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}
	return db, dialect, nil
}

// newService builds the RBAC service for one CLI invocation. Mutations are
// recorded in the audit trail; no cache is kept across a single run.
func newService(db *sql.DB) (*rbac.Service, error) {
	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		return nil, err
	}
	return rbac.NewService(db, rbac.ServiceConfig{
		Cache:       rbac.NoopCache{},
		AuditLogger: auditLogger,
	}), nil
}

// quietContext silences the service's structured logger so CLI output
// stays on logrus
func quietContext(ctx context.Context) context.Context {
	return observability.WithLogger(ctx, observability.NewLogger(observability.ErrorLevel, io.Discard))
}
