package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"crew/internal/app"
	"crew/pkg/config"
	"crew/pkg/db"
	"crew/pkg/logger"
	"crew/pkg/utils"
)

const usage = `crewctl -mode <mode> [flags]

modes:
  breadcrumbs -group <id>       print the root-first ancestor path
  hierarchy   -group <id>       print the subtree as adjacency list + dict
  available   -user <id>        print the remaining percentage budget
  diff                          read two JSON objects from stdin, print the changed fields
  user        -name -email      create an active user (recorded as -actor)
  token       -user <id>        mint a JWT for an existing user
`

var errUnknownMode = errors.New("unknown mode")

type options struct {
	mode    string
	groupID string
	userID  string
	name    string
	email   string
	actor   string
}

func main() {
	var opts options
	flag.StringVar(&opts.mode, "mode", "", "Mode: breadcrumbs, hierarchy, available, diff, user, token")
	flag.StringVar(&opts.groupID, "group", "", "Group id")
	flag.StringVar(&opts.userID, "user", "", "User id")
	flag.StringVar(&opts.name, "name", "", "User name (mode user)")
	flag.StringVar(&opts.email, "email", "", "User email (mode user)")
	flag.StringVar(&opts.actor, "actor", "crewctl", "Acting user id written to history")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if opts.mode == "diff" {
		// diff 不需要数据库
		if err := runDiff(os.Stdin, os.Stdout); err != nil {
			fail(err)
		}
		return
	}

	if err := config.Init(); err != nil {
		fail(err)
	}
	cfg := config.GlobalConfig
	if err := logger.InitLogger("warn", false); err != nil {
		fail(err)
	}
	defer logger.Sync()

	gdb, err := db.Open(cfg.Database)
	if err != nil {
		fail(err)
	}
	defer db.Close(gdb)

	svc := app.NewServices(gdb, cfg.Hierarchy, nil)
	out, err := run(context.Background(), svc, utils.NewTokenManager(cfg.JWT), opts)
	if errors.Is(err, errUnknownMode) {
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
	if err := printJSON(os.Stdout, out); err != nil {
		fail(err)
	}
}

// run 执行需要数据库的模式，返回要打印的结果
func run(ctx context.Context, svc *app.Services, tokens *utils.TokenManager, opts options) (any, error) {
	switch opts.mode {
	case "breadcrumbs":
		if err := requireFlag("group", opts.groupID); err != nil {
			return nil, err
		}
		return svc.Groups.GetBreadcrumbs(ctx, opts.groupID)
	case "hierarchy":
		if err := requireFlag("group", opts.groupID); err != nil {
			return nil, err
		}
		return svc.Groups.GetHierarchy(ctx, opts.groupID)
	case "available":
		if err := requireFlag("user", opts.userID); err != nil {
			return nil, err
		}
		available, err := svc.Memberships.GetAvailablePercentage(ctx, opts.userID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"userId": opts.userID, "available": available}, nil
	case "user":
		if err := requireFlag("name", opts.name); err != nil {
			return nil, err
		}
		if err := requireFlag("email", opts.email); err != nil {
			return nil, err
		}
		return svc.Users.Create(ctx, opts.actor, opts.name, opts.email)
	case "token":
		if err := requireFlag("user", opts.userID); err != nil {
			return nil, err
		}
		if _, err := svc.Users.Get(ctx, opts.userID); err != nil {
			return nil, err
		}
		token, err := tokens.GenerateToken(opts.userID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"token": token}, nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownMode, opts.mode)
	}
}

// runDiff 从输入中读取 before 和 after 两个 JSON 对象
func runDiff(r io.Reader, w io.Writer) error {
	dec := json.NewDecoder(r)
	var before, after map[string]any
	if err := dec.Decode(&before); err != nil {
		return fmt.Errorf("failed to decode before object: %w", err)
	}
	if err := dec.Decode(&after); err != nil {
		return fmt.Errorf("failed to decode after object: %w", err)
	}
	b, a := utils.Diff(before, after)
	return printJSON(w, map[string]any{"before": b, "after": a})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireFlag(flagName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("-%s is required", flagName)
	}
	return nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
