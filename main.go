package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/doc-agent/agent"
	"github.com/fabfab/doc-agent/chunker"
	"github.com/fabfab/doc-agent/config"
	"github.com/fabfab/doc-agent/conversation"
	"github.com/fabfab/doc-agent/database"
	"github.com/fabfab/doc-agent/embeddings"
	"github.com/fabfab/doc-agent/ingest"
	"github.com/fabfab/doc-agent/knowledge"
	"github.com/fabfab/doc-agent/llm"
	"github.com/fabfab/doc-agent/loader"
	"github.com/fabfab/doc-agent/vectorstore"
)

const usage = `Usage: doc-agent <command> [arguments]

Commands:
  ingest <path>...   ingest documents or directories into the index
  ask <question>     answer a single question against the index
  chat               interactive multi-turn session
  watch [dir]        ingest documents dropped into a directory
  remove <name>      remove one document from the index by file name
  clear              remove all indexed content
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stderr, "doc-agent: ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	defer app.close(ctx)

	switch os.Args[1] {
	case "ingest":
		err = app.runIngest(ctx, os.Args[2:])
	case "ask":
		err = app.runAsk(ctx, os.Args[2:])
	case "chat":
		err = app.runChat(ctx)
	case "watch":
		err = app.runWatch(ctx, os.Args[2:])
	case "remove":
		err = app.runRemove(ctx, os.Args[2:])
	case "clear":
		err = app.runClear(ctx)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil && ctx.Err() == nil {
		logger.Fatalf("%s: %v", os.Args[1], err)
	}
}

type app struct {
	cfg    config.Config
	logger *log.Logger

	store   *vectorstore.Manager
	graph   neo4j.DriverWithContext
	agent   *agent.Agent
	service *ingest.Service
	closers []func(context.Context)
}

func newApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) { pool.Close() })

	index := vectorstore.NewPostgresIndex(pool)
	if err := index.EnsureSchema(ctx, cfg.Embeddings.Dimension); err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	a.store = vectorstore.NewManager(embedder, index, logger)

	var insights knowledge.InsightStore
	if cfg.Neo4jURI != "" {
		driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			logger.Printf("knowledge graph disabled: %v", err)
		} else {
			a.graph = driver
			a.closers = append(a.closers, func(ctx context.Context) { driver.Close(ctx) })
			insights = knowledge.NewNeo4jInsightStore(driver)
		}
	}

	checker, err := agent.NewChecker(cfg.Pipeline.RelevanceMode, cfg.Pipeline.RelevanceThreshold, client)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	a.agent = agent.New(client, a.store, checker, insights, logger, agent.Options{
		Variants:           cfg.Pipeline.QueryVariants,
		QueryK:             cfg.Pipeline.QueryK,
		TopN:               cfg.Pipeline.TopN,
		ContextTokenBudget: cfg.Pipeline.ContextTokenBudget,
	})

	interpreter := loader.NewInterpreter(client, logger)
	splitter := chunker.NewSplitter(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)
	a.service = ingest.NewService(interpreter, splitter, a.store, a.graph, logger)

	return a, nil
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}

func (a *app) runIngest(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("ingest needs at least one file or directory")
	}

	var results []ingest.Result
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return err
		}
		if info.IsDir() {
			dirResults, err := a.service.IngestDirectory(ctx, arg)
			if err != nil {
				return err
			}
			results = append(results, dirResults...)
			continue
		}
		results = append(results, a.service.IngestFiles(ctx, []string{arg})...)
	}

	var failed int
	for _, result := range results {
		if result.Err != nil {
			failed++
			fmt.Printf("FAIL  %s: %v\n", result.Name, result.Err)
			continue
		}
		fmt.Printf("OK    %s: %d chunks\n", result.Name, result.Chunks)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func (a *app) runAsk(ctx context.Context, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("ask needs a question")
	}

	session := conversation.NewSession(uuid.NewString())
	answer, err := a.agent.Ask(ctx, session, question)
	if err != nil {
		return err
	}
	printAnswer(answer)
	return nil
}

func (a *app) runChat(ctx context.Context) error {
	sessions := conversation.NewRegistry()
	session := sessions.Get(uuid.NewString())

	fmt.Println("Interactive session. Empty line or Ctrl-D exits.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		answer, err := a.agent.Ask(ctx, session, question)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Printf("ask: %v", err)
			continue
		}

		session.Append(conversation.RoleUser, question)
		session.Append(conversation.RoleAssistant, answer.Text)
		printAnswer(answer)
	}
	return scanner.Err()
}

func (a *app) runWatch(ctx context.Context, args []string) error {
	dir := a.cfg.DataDir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("watch needs a directory (argument or DATA_DIR)")
	}

	watcher := ingest.NewWatcher(a.service, a.logger)
	if err := watcher.Watch(ctx, dir); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (a *app) runRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("remove needs exactly one document name")
	}
	name := args[0]

	if err := a.store.Delete(ctx, name); err != nil {
		return err
	}
	if a.graph != nil {
		if err := knowledge.DeleteDocument(ctx, a.graph, name); err != nil {
			a.logger.Printf("remove %s from knowledge graph: %v", name, err)
		}
	}
	fmt.Printf("removed %s\n", name)
	return nil
}

func (a *app) runClear(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	if a.graph != nil {
		if err := knowledge.Clear(ctx, a.graph); err != nil {
			a.logger.Printf("clear knowledge graph: %v", err)
		}
	}
	fmt.Println("index cleared")
	return nil
}

func printAnswer(answer agent.Answer) {
	fmt.Println(answer.Text)
	if answer.OutOfScope || len(answer.Citations) == 0 {
		return
	}

	fmt.Println("\nSources:")
	for _, citation := range answer.Citations {
		line := fmt.Sprintf("  - %s, page %d", citation.Source, citation.Page)
		if len(citation.Insight.Entities) > 0 {
			line += fmt.Sprintf(" (mentions: %s)", strings.Join(citation.Insight.Entities, ", "))
		}
		fmt.Println(line)
	}
}
