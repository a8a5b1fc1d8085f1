package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shenikar/cityvoice/internal/localcache"
)

const defaultAPIURL = "http://localhost:3001/api"

const usage = `cityvoice - report and track civic issues

Usage:
  cityvoice [global flags] <command> [flags]

Commands:
  register   Create an account (--name --email --password [--role])
  login      Log in and store the token (--email --password)
  logout     Forget the stored session
  list       List issues [--status --category --sort]
  report     Report an issue (--title --description --category --lat --lng [--address --image --offline])
  status     Change issue status: status <id> <status> [--version N]
  vote       Toggle your upvote: vote <id>
  hotspots   Show issue hotspots [--precision N]
  local      Offline reports: local list | local remove <id>
  location   Saved location: location set <lat> <lng> | location show
  help       Show this help
  version    Show version

Global Flags:
  --api URL      API base URL (default: $CITYVOICE_API_URL or http://localhost:3001/api)
  --state PATH   Local state database (default: $CITYVOICE_STATE or ~/.cityvoice/state.db)
  --pretty       Use pretty-printed output instead of JSON`

// globalFlags - флаги, общие для всех команд
type globalFlags struct {
	api    string
	state  string
	pretty bool
}

// parseGlobalFlags забирает глобальные флаги до имени команды
func parseGlobalFlags(args []string) (globalFlags, []string) {
	gf := globalFlags{
		api:   os.Getenv("CITYVOICE_API_URL"),
		state: os.Getenv("CITYVOICE_STATE"),
	}
	if gf.api == "" {
		gf.api = defaultAPIURL
	}

	remaining := args
	for len(remaining) > 0 {
		switch {
		case remaining[0] == "--pretty":
			gf.pretty = true
			remaining = remaining[1:]
		case remaining[0] == "--api" && len(remaining) > 1:
			gf.api = remaining[1]
			remaining = remaining[2:]
		case strings.HasPrefix(remaining[0], "--api="):
			gf.api = strings.TrimPrefix(remaining[0], "--api=")
			remaining = remaining[1:]
		case remaining[0] == "--state" && len(remaining) > 1:
			gf.state = remaining[1]
			remaining = remaining[2:]
		case strings.HasPrefix(remaining[0], "--state="):
			gf.state = strings.TrimPrefix(remaining[0], "--state=")
			remaining = remaining[1:]
		default:
			return gf, remaining
		}
	}
	return gf, remaining
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cityvoice-state.db"
	}
	return filepath.Join(home, ".cityvoice", "state.db")
}

// app - окружение одной команды
type app struct {
	ctx    context.Context
	gf     globalFlags
	out    io.Writer
	errOut io.Writer
	cache  *localcache.Cache
}

// client создает клиента с токеном из сохраненной сессии
func (a *app) client() (*Client, error) {
	session, err := a.cache.Session(a.ctx)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	return NewClient(a.gf.api, session.Token), nil
}

// Run разбирает аргументы и выполняет команду
func Run(args []string, version string) error {
	return run(context.Background(), args, version, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, version string, out, errOut io.Writer) error {
	gf, remaining := parseGlobalFlags(args)

	if len(remaining) == 0 {
		fmt.Fprintln(out, usage)
		return nil
	}
	cmd, subArgs := remaining[0], remaining[1:]

	switch cmd {
	case "help", "--help", "-h":
		fmt.Fprintln(out, usage)
		return nil
	case "version", "--version", "-v":
		fmt.Fprintf(out, "cityvoice version %s\n", version)
		return nil
	}

	if gf.state == "" {
		gf.state = defaultStatePath()
	}
	if gf.state != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(gf.state), 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	store, err := localcache.OpenSQLite(gf.state)
	if err != nil {
		return fmt.Errorf("open local state: %w", err)
	}
	defer store.Close()

	a := &app{ctx: ctx, gf: gf, out: out, errOut: errOut, cache: localcache.New(store)}
	return a.dispatch(cmd, subArgs)
}

func (a *app) dispatch(cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.runRegister(args)
	case "login":
		return a.runLogin(args)
	case "logout":
		return a.runLogout(args)
	case "list":
		return a.runList(args)
	case "report":
		return a.runReport(args)
	case "status":
		return a.runStatus(args)
	case "vote":
		return a.runVote(args)
	case "hotspots":
		return a.runHotspots(args)
	case "local":
		return a.runLocal(args)
	case "location":
		return a.runLocation(args)
	default:
		return fmt.Errorf("unknown command: %s\nRun 'cityvoice help' for usage", strings.TrimSpace(cmd))
	}
}
