package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/glossa-dev/glossa/pkg/rbac"
)

// ErrCheckDenied is returned by the check command when the user lacks the
// requested permissions
var ErrCheckDenied = errors.New("permission denied")

func newMigrateCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply pending database migrations",
		Flags:       flag.NewFlagSet("migrate", flag.ContinueOnError),
	}
	db := addDBFlags(cmd.Flags)

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		conn, dialect, err := db.open(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		before, err := rbac.AppliedMigrations(ctx, conn)
		if err != nil {
			before = nil
		}
		if err := rbac.RunMigrations(quietContext(ctx), conn, dialect, nil); err != nil {
			return err
		}
		after, err := rbac.AppliedMigrations(ctx, conn)
		if err != nil {
			return err
		}

		env.Logger.WithField("applied", len(after)-len(before)).Info("Migrations complete")
		return nil
	}
	return cmd
}

func newSeedCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "seed",
		Description: "Install the permission catalog and system roles",
		Flags:       flag.NewFlagSet("seed", flag.ContinueOnError),
	}
	db := addDBFlags(cmd.Flags)
	file := cmd.Flags.String("file", "", "Seed YAML file (default: built-in catalog)")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		var seed *rbac.SeedData
		if *file != "" {
			data, err := os.ReadFile(*file)
			if err != nil {
				return fmt.Errorf("failed to read seed file: %w", err)
			}
			if seed, err = rbac.ParseSeed(data); err != nil {
				return err
			}
		}

		conn, _, err := db.open(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := rbac.Seed(quietContext(ctx), rbac.NewStore(conn), seed); err != nil {
			return err
		}
		env.Logger.Info("Seed complete")
		return nil
	}
	return cmd
}

func newRolesCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "roles",
		Description: "List roles and the permissions they grant",
		Flags:       flag.NewFlagSet("roles", flag.ContinueOnError),
	}
	db := addDBFlags(cmd.Flags)
	asJSON := cmd.Flags.Bool("json", false, "Print JSON instead of a table")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		conn, _, err := db.open(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		service, err := newService(conn)
		if err != nil {
			return err
		}
		roles, err := service.Roles.GetAllRolesWithPermissions(quietContext(ctx))
		if err != nil {
			return err
		}

		if *asJSON {
			enc := json.NewEncoder(env.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(roles)
		}

		tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCODE\tLEVEL\tSYSTEM\tPERMISSIONS")
		for _, role := range roles {
			codes := make([]string, 0, len(role.Permissions))
			for _, p := range role.Permissions {
				codes = append(codes, p.Code)
			}
			fmt.Fprintf(tw, "%d\t%s\t%d\t%t\t%s\n", role.ID, role.Code, role.Level, role.IsSystem, strings.Join(codes, ","))
		}
		return tw.Flush()
	}
	return cmd
}

func newGrantCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "grant",
		Description: "Replace a user's roles",
		Flags:       flag.NewFlagSet("grant", flag.ContinueOnError),
	}
	db := addDBFlags(cmd.Flags)
	user := cmd.Flags.Int64("user", 0, "User id")
	roleCodes := cmd.Flags.String("roles", "", "Comma-separated role codes; empty removes every role")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *user <= 0 {
			return fmt.Errorf("-user must be a positive user id")
		}

		conn, _, err := db.open(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		service, err := newService(conn)
		if err != nil {
			return err
		}
		qctx := quietContext(ctx)

		codes := splitList(*roleCodes)
		ids := make([]int64, 0, len(codes))
		for _, code := range codes {
			role, err := service.Roles.FindRoleByCode(qctx, code)
			if err != nil {
				return err
			}
			if role == nil {
				return fmt.Errorf("unknown role: %s", code)
			}
			ids = append(ids, role.ID)
		}

		if err := service.Assignments.AssignRolesToUser(qctx, *user, ids); err != nil {
			return err
		}

		env.Logger.WithField("user_id", *user).WithField("roles", codes).Info("Roles assigned")
		return nil
	}
	return cmd
}

func newCheckCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "check",
		Description: "Evaluate permissions for a user",
		Flags:       flag.NewFlagSet("check", flag.ContinueOnError),
	}
	db := addDBFlags(cmd.Flags)
	user := cmd.Flags.Int64("user", 0, "User id")
	perms := cmd.Flags.String("perm", "", "Comma-separated permission codes")
	mode := cmd.Flags.String("mode", "all", "Require any or all of the codes")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *user <= 0 {
			return fmt.Errorf("-user must be a positive user id")
		}
		codes := splitList(*perms)
		if len(codes) == 0 {
			return fmt.Errorf("-perm is required")
		}
		if *mode != "any" && *mode != "all" {
			return fmt.Errorf("-mode must be any or all")
		}

		conn, _, err := db.open(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		service, err := newService(conn)
		if err != nil {
			return err
		}
		qctx := quietContext(ctx)
		id := rbac.Identity{UserID: *user}

		if *mode == "any" {
			_, err = service.Gate.RequireAnyPermission(qctx, id, codes...)
		} else {
			_, err = service.Gate.RequireAllPermissions(qctx, id, codes...)
		}

		switch {
		case err == nil:
			fmt.Fprintf(env.Out, "allowed: user %s holds %s of %s\n", strconv.FormatInt(*user, 10), *mode, strings.Join(codes, ","))
			return nil
		case errors.Is(err, rbac.ErrForbidden):
			fmt.Fprintf(env.Out, "denied: user %s lacks %s of %s\n", strconv.FormatInt(*user, 10), *mode, strings.Join(codes, ","))
			return ErrCheckDenied
		default:
			return err
		}
	}
	return cmd
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
