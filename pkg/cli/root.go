package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/idctl/pkg/admin"
	"github.com/platinummonkey/idctl/pkg/identity"
	"github.com/platinummonkey/idctl/pkg/reconciler"
	"github.com/platinummonkey/idctl/pkg/session"
)

// Command represents a CLI command. A command either runs or dispatches to
// its subcommands.
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet

	out io.Writer
}

// Session is the session the commands act on
type Session interface {
	admin.Authorizer
	admin.SelfSession
	SetToken(ctx context.Context, token string) error
	Logout(ctx context.Context) error
	WaitHydration(ctx context.Context) error
}

// Backend is the identity service the commands talk to
type Backend interface {
	admin.API
	Login(ctx context.Context, username, password string) (*oauth2.Token, error)
	CurrentProfile(ctx context.Context) (*identity.UserProfile, error)
}

// App holds what every command runs against
type App struct {
	Session Session
	Backend Backend
	Editor  reconciler.Options

	In  io.Reader
	Out io.Writer

	stdin *bufio.Reader
}

var _ Backend = (*identity.Client)(nil)
var _ Session = (*session.Manager)(nil)

// NewRootCommand creates the root command
func NewRootCommand(app *App) *Command {
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.In == nil {
		app.In = os.Stdin
	}

	root := app.group("idctl", "idctl - identity and access management client")

	root.add(app.newLoginCommand())
	root.add(app.newLogoutCommand())
	root.add(app.newWhoamiCommand())
	root.add(app.newProfileCommand())
	root.add(app.newPasswdCommand())

	root.add(app.newServicesCommand())
	root.add(app.newRolesCommand())
	root.add(app.newPermissionsCommand())
	root.add(app.newUsersCommand())

	root.add(app.newRolePermissionsCommand())
	root.add(app.newUserRolesCommand())
	root.add(app.newUserServicesCommand())

	return root
}

// Execute runs the command with args, excluding the program name. Each run
// is one span, parent of the API request spans it causes.
func (c *Command) Execute(ctx context.Context, args []string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, c.commandPath(args))
	defer span.End()

	err := c.execute(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if errors.Is(err, session.ErrNotLoggedIn) || errors.Is(err, session.ErrSessionExpired) {
		return fmt.Errorf("%w: run `idctl login` first", err)
	}
	return err
}

const tracerName = "github.com/platinummonkey/idctl/pkg/cli"

// commandPath names the command args select, e.g. "idctl users list"
func (c *Command) commandPath(args []string) string {
	parts := []string{c.Name}
	cmd := c
	for _, arg := range args {
		sub, ok := cmd.Subcommands[arg]
		if !ok {
			break
		}
		parts = append(parts, sub.Name)
		cmd = sub
	}
	return strings.Join(parts, " ")
}

func (c *Command) execute(ctx context.Context, args []string) error {
	if c.Run != nil {
		if c.Flags != nil {
			positional, err := parseInterspersed(c.Flags, args)
			if err != nil {
				if errors.Is(err, flag.ErrHelp) {
					return nil
				}
				return err
			}
			args = positional
		}
		return c.Run(ctx, args)
	}

	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if isHelp(args[0]) {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.execute(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", strings.TrimSpace(c.path()+" "+args[0]))
}

// usage prints the command usage
func (c *Command) usage() error {
	out := c.out
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-18s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

func (c *Command) path() string {
	if c.Name == "idctl" {
		return ""
	}
	return c.Name
}

func (c *Command) add(sub *Command) {
	c.Subcommands[sub.Name] = sub
}

// parseInterspersed parses flags that may follow positional arguments,
// e.g. "update s-1 --name billing". A bare "--" ends flag parsing.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		if len(args) > len(rest) && args[len(args)-len(rest)-1] == "--" {
			return append(positional, rest...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func isHelp(arg string) bool {
	switch strings.ToLower(arg) {
	case "-h", "--help", "help":
		return true
	}
	return false
}

func (a *App) group(name, description string) *Command {
	return &Command{
		Name:        name,
		Description: description,
		Subcommands: make(map[string]*Command),
		out:         a.Out,
	}
}

// leaf builds a runnable command whose flags report errors instead of exiting
func (a *App) leaf(name, description string, run func(ctx context.Context, fs *flag.FlagSet, args []string) error, flags func(fs *flag.FlagSet)) *Command {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Out)
	if flags != nil {
		flags(fs)
	}
	return &Command{
		Name:        name,
		Description: description,
		Flags:       fs,
		out:         a.Out,
		Run: func(ctx context.Context, args []string) error {
			return run(ctx, fs, args)
		},
	}
}

// adminOnly wraps an admin command with the admin gate
func (a *App) adminOnly(run func(ctx context.Context, fs *flag.FlagSet, args []string) error) func(ctx context.Context, fs *flag.FlagSet, args []string) error {
	return func(ctx context.Context, fs *flag.FlagSet, args []string) error {
		if err := admin.NewGate(a.Session).RequireAdmin(); err != nil {
			return err
		}
		return run(ctx, fs, args)
	}
}

// prompt reads one line from the input, for secrets not given as flags
func (a *App) prompt(label string) (string, error) {
	if a.stdin == nil {
		a.stdin = bufio.NewReader(a.In)
	}
	fmt.Fprintf(a.Out, "%s: ", label)
	line, err := a.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// visited reports the flags set on the command line
func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func requireArgs(args []string, n int, what string) error {
	if len(args) < n {
		return fmt.Errorf("missing %s", what)
	}
	return nil
}

func requireFlag(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}
