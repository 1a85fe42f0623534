package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tuankiet2640/mai-client/internal/api"
	"github.com/tuankiet2640/mai-client/internal/credential"
	"github.com/tuankiet2640/mai-client/internal/facade"
	"github.com/tuankiet2640/mai-client/internal/infrastructure/logger"
	"github.com/tuankiet2640/mai-client/internal/observability/tracing"
	"github.com/tuankiet2640/mai-client/internal/session"
	"github.com/tuankiet2640/mai-client/internal/transport"
	"github.com/tuankiet2640/mai-client/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, shutdown, err := buildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer shutdown()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		app.handleAuth(ctx, args)
	case "users":
		app.handleUsers(ctx, args)
	case "kb":
		app.handleKB(ctx, args)
	case "chat":
		app.handleChat(ctx, args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

type app struct {
	session *session.Manager
	facades *facade.Facades
}

// buildApp wires the object graph: config, logger, tracing, credential
// store, authorized transport, API client, session manager, façades.
func buildApp(ctx context.Context) (*app, func(), error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)

	// 3. Initialize tracing (no-op without an endpoint)
	shutdownTracing, err := tracing.Init(ctx, log, "maictl", cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("init tracing: %w", err)
	}

	// 4. Connect the shared credential store
	store, err := credential.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect credential store: %w", err)
	}

	// 5. Authorized transport and API client. The transport's token source
	// is the session manager, which does not exist yet; its exported fields
	// are wired right after construction, before any request happens.
	authorized := transport.NewAuthorized(otelhttp.NewTransport(nil), nil, nil, log)
	httpClient := &http.Client{Transport: authorized, Timeout: cfg.HTTPTimeout}
	apiClient := api.New(cfg.ServerURL, httpClient, log)

	// 6. Session manager and façades
	mgr := session.New(store, apiClient, log, session.WithPollInterval(cfg.PollInterval))
	authorized.Source = mgr
	authorized.Refresher = mgr
	facades := facade.New(apiClient, mgr, cfg.CacheTTL, log)

	// 7. Startup pass, then background reconciliation for the process
	// lifetime so long-running commands (chat stream) converge with other
	// processes on the same store.
	mgr.Initialize(ctx)
	go mgr.Run(ctx)

	shutdown := func() {
		facades.Close()
		store.Close()
		shutdownTracing(context.Background())
	}
	return &app{session: mgr, facades: facades}, shutdown, nil
}

func (a *app) handleAuth(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: maictl auth <login|logout|whoami>")
		return
	}
	switch args[0] {
	case "login":
		if len(args) < 3 {
			fmt.Println("Usage: maictl auth login <username> <password>")
			return
		}
		user, err := a.session.Login(ctx, args[1], args[2])
		if err != nil {
			fail("login failed: %v", err)
		}
		fmt.Printf("logged in as %s (%s)\n", user.Username, user.ID)
	case "logout":
		a.session.Logout(ctx)
		fmt.Println("logged out")
	case "whoami":
		if !a.session.IsAuthenticated() {
			fmt.Println("not logged in")
			return
		}
		u := a.session.CurrentUser()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "ID\t%s\n", u.ID)
		fmt.Fprintf(w, "USERNAME\t%s\n", u.Username)
		fmt.Fprintf(w, "EMAIL\t%s\n", u.Email)
		fmt.Fprintf(w, "ROLES\t%v\n", u.Roles)
		w.Flush()
	default:
		fmt.Printf("unknown auth command: %s\n", args[0])
	}
}

func (a *app) handleUsers(ctx context.Context, args []string) {
	if len(args) < 1 || args[0] != "list" {
		fmt.Println("Usage: maictl users list")
		return
	}
	users, stale, err := a.facades.Users.List(ctx)
	if err != nil && !stale {
		fail("list users failed: %v", err)
	}
	if stale {
		fmt.Fprintf(os.Stderr, "warning: showing cached data, refresh failed: %v\n", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLES")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", u.ID, u.Username, u.Email, u.Roles)
	}
	w.Flush()
}

func (a *app) handleKB(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: maictl kb <list|create|delete>")
		return
	}
	switch args[0] {
	case "list":
		kbs, stale, err := a.facades.KnowledgeBases.List(ctx)
		if err != nil && !stale {
			fail("list knowledge bases failed: %v", err)
		}
		if stale {
			fmt.Fprintf(os.Stderr, "warning: showing cached data, refresh failed: %v\n", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDOCS\tUPDATED")
		for _, kb := range kbs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", kb.ID, kb.Name, kb.DocumentCount, kb.UpdatedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()
	case "create":
		if len(args) < 2 {
			fmt.Println("Usage: maictl kb create <name> [description]")
			return
		}
		desc := ""
		if len(args) > 2 {
			desc = args[2]
		}
		kb, err := a.facades.KnowledgeBases.Create(ctx, facade.KnowledgeBaseParams{Name: args[1], Description: desc})
		if err != nil {
			fail("create knowledge base failed: %v", err)
		}
		fmt.Printf("created knowledge base %s (%s)\n", kb.Name, kb.ID)
	case "delete":
		if len(args) < 2 {
			fmt.Println("Usage: maictl kb delete <id>")
			return
		}
		if err := a.facades.KnowledgeBases.Delete(ctx, args[1]); err != nil {
			fail("delete knowledge base failed: %v", err)
		}
		fmt.Println("deleted")
	default:
		fmt.Printf("unknown kb command: %s\n", args[0])
	}
}

func (a *app) handleChat(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: maictl chat <list|ask|stream>")
		return
	}
	switch args[0] {
	case "list":
		convs, stale, err := a.facades.Rag.Conversations(ctx)
		if err != nil && !stale {
			fail("list conversations failed: %v", err)
		}
		if stale {
			fmt.Fprintf(os.Stderr, "warning: showing cached data, refresh failed: %v\n", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
		for _, c := range convs {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Title, c.UpdatedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()
	case "ask":
		if len(args) < 3 {
			fmt.Println("Usage: maictl chat ask <kb-id> <question>")
			return
		}
		conv, err := a.facades.Rag.Ask(ctx, facade.AskParams{KnowledgeBaseID: args[1], Question: args[2]})
		if err != nil {
			fail("ask failed: %v", err)
		}
		for _, msg := range conv.Messages {
			fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
		}
	case "stream":
		if len(args) < 2 {
			fmt.Println("Usage: maictl chat stream <conversation-id>")
			return
		}
		chunks, err := a.facades.Rag.StreamAnswer(ctx, args[1])
		if err != nil {
			fail("stream failed: %v", err)
		}
		for chunk := range chunks {
			if chunk.Error != "" {
				fail("stream broken: %s", chunk.Error)
			}
			fmt.Print(chunk.Content)
		}
		fmt.Println()
	default:
		fmt.Printf("unknown chat command: %s\n", args[0])
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`maictl - mai service client

Usage:
  maictl auth <login|logout|whoami>
  maictl users list
  maictl kb <list|create|delete>
  maictl chat <list|ask|stream>
  maictl help

Environment:
  MAI_SERVER_URL          service root (default http://localhost:8080)
  REDIS_URL               shared credential store (default redis://localhost:6379)
  SESSION_POLL_INTERVAL   reconciliation interval (default 5s)
  CACHE_TTL               response cache retention (default 5m)
  LOG_LEVEL               debug|info|warn|error (default info)`)
}
