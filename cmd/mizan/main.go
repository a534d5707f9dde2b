package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/mizan-legal/mizan/internal/config"
	dbRedis "github.com/mizan-legal/mizan/internal/db/redis"
	"github.com/mizan-legal/mizan/internal/domain"
	"github.com/mizan-legal/mizan/internal/embed"
	logpkg "github.com/mizan-legal/mizan/internal/logger"
	"github.com/mizan-legal/mizan/internal/metrics"
	"github.com/mizan-legal/mizan/internal/repository/corpus"
	"github.com/mizan-legal/mizan/internal/repository/embcache"
	openaiEmb "github.com/mizan-legal/mizan/internal/transport/openai"
	ingestuc "github.com/mizan-legal/mizan/internal/usecase/ingest"
	retrievaluc "github.com/mizan-legal/mizan/internal/usecase/retrieval"
	"github.com/mizan-legal/mizan/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "mizan",
		Usage:   "Hybrid semantic retrieval over Arabic legal passages",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "mem",
				Usage: "Use an in-memory corpus instead of the configured store",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Embed and store pre-chunked passages from a JSON lines file",
				ArgsUsage: "<file.jsonl>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of passages embedded per provider call",
						Value: ingestuc.DefaultBatchSize,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the corpus for passages relevant to a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results to return (0 = configured default)",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum acceptable blended score in [0, 1]",
					},
					&cli.Int64Flag{
						Name:  "source",
						Usage: "Restrict results to one source id",
					},
					&cli.StringFlag{
						Name:  "jurisdiction",
						Usage: "Restrict results to one jurisdiction code",
					},
					&cli.BoolFlag{
						Name:  "diverse",
						Usage: "Select results with MMR instead of plain ranking",
					},
				},
			},
			{
				Name:   "rebuild",
				Usage:  "Rebuild the fast-path index and persist its snapshot to the store",
				Action: rebuildCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runtime is the composition root shared by all commands.
type runtime struct {
	cfg       config.Config
	logger    *zap.Logger
	corpus    corpusStore
	retrieval *retrievaluc.Service
	batch     domain.BatchEmbedder
	cleanup   []func()
}

type corpusStore interface {
	retrievaluc.CorpusAccessor
	retrievaluc.IndexStore
	ingestuc.CorpusWriter
}

// cmdContext attaches a command-scoped logger that services pick up for
// request-scoped logging.
func (rt *runtime) cmdContext(c *cli.Context) context.Context {
	log := rt.logger.With(zap.String("command", c.Command.Name))
	return logpkg.ContextWithLogger(c.Context, log)
}

func setup(c *cli.Context) (*runtime, error) {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	logger.Info("Starting mizan",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("embedding_backend", cfg.Embedding.Backend),
	)

	rt := &runtime{cfg: cfg, logger: logger}
	rt.cleanup = append(rt.cleanup, func() { _ = logger.Sync() })

	if err := rt.setupCorpus(c); err != nil {
		rt.close()
		return nil, err
	}
	if err := rt.setupRetrieval(c); err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) setupCorpus(c *cli.Context) error {
	if c.Bool("mem") || len(rt.cfg.Database.Addrs) == 0 {
		rt.logger.Info("Using in-memory corpus")
		rt.corpus = corpus.NewMem()
		return nil
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    rt.cfg.Database.Addrs,
		Username: rt.cfg.Database.Username,
		Password: rt.cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	rt.cleanup = append(rt.cleanup, store.Close)

	timeout := time.Duration(rt.cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(c.Context, timeout); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}

	rt.corpus = corpus.New(store, rt.cfg.Database.KeyPrefix, rt.logger)
	return nil
}

func (rt *runtime) setupRetrieval(c *cli.Context) error {
	var backend domain.Embedder
	switch rt.cfg.Embedding.Backend {
	case "meanpool":
		mp, err := embed.NewMeanPool(rt.cfg.Embedding.Dimensions, rt.cfg.Embedding.PoolSize)
		if err != nil {
			return fmt.Errorf("create local embedder: %w", err)
		}
		rt.cleanup = append(rt.cleanup, mp.Release)
		backend, rt.batch = mp, mp
	case "sentence":
		se := openaiEmb.NewSentenceEmbedder(&openaiEmb.Config{
			APIKey:     rt.cfg.Embedding.APIKey,
			BaseURL:    rt.cfg.Embedding.BaseURL,
			Model:      rt.cfg.Embedding.Model,
			Dimensions: rt.cfg.Embedding.Dimensions,
			Logger:     rt.logger,
		})
		backend, rt.batch = se, se
	default:
		return fmt.Errorf("unknown embedding backend %q", rt.cfg.Embedding.Backend)
	}

	if hc, ok := backend.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(c.Context); err != nil {
			return fmt.Errorf("embedding backend health check: %w", err)
		}
	}

	cached := embcache.New(backend, rt.cfg.Embedding.CacheSize, metrics.EmbeddingCacheTotal, rt.logger)

	rt.retrieval = retrievaluc.New(rt.corpus, cached, retrievaluc.Params{
		Alpha:            rt.cfg.Retrieval.Alpha,
		MMRLambda:        rt.cfg.Retrieval.MMRLambda,
		VerifiedBoost:    rt.cfg.Retrieval.VerifiedBoost,
		RecencyBoost:     rt.cfg.Retrieval.RecencyBoost,
		RecencyWindow:    time.Duration(rt.cfg.Retrieval.RecencyWindowDays) * 24 * time.Hour,
		FallbackPoolSize: rt.cfg.Retrieval.FallbackPoolSize,
		DefaultTopK:      rt.cfg.Retrieval.DefaultTopK,
		QueryCacheSize:   rt.cfg.Retrieval.QueryCacheSize,
	}, rt.logger).WithIndexStore(rt.corpus)
	rt.cleanup = append(rt.cleanup, rt.retrieval.Close)

	if err := rt.retrieval.LoadIndex(c.Context); err != nil {
		rt.logger.Warn("Index snapshot unavailable, queries will scan", zap.Error(err))
	}
	return nil
}

func (rt *runtime) close() {
	for i := len(rt.cleanup) - 1; i >= 0; i-- {
		rt.cleanup[i]()
	}
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: mizan ingest <file.jsonl>", 2)
	}
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.close()

	entries, err := readEntries(c.Args().First())
	if err != nil {
		return err
	}

	ctx := rt.cmdContext(c)
	svc := ingestuc.New(rt.corpus, rt.batch, rt.retrieval, rt.logger).
		WithBatchSize(c.Int("batch-size"))
	report, err := svc.Ingest(ctx, entries)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	if report.Stored > 0 {
		if err := rt.retrieval.RebuildIndex(ctx); err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
	}

	fmt.Printf("stored %d passages (%d skipped, %d tokens)\n",
		report.Stored, report.Skipped, report.Tokens)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return cli.Exit("usage: mizan search <query>", 2)
	}
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.close()

	results, err := rt.retrieval.Search(rt.cmdContext(c), query, retrievaluc.SearchOptions{
		TopK:      c.Int("top-k"),
		Threshold: c.Float64("threshold"),
		Filter: domain.Filter{
			SourceID:     c.Int64("source"),
			Jurisdiction: c.String("jurisdiction"),
		},
		Diverse: c.Bool("diverse"),
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func rebuildCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.retrieval.RebuildIndex(rt.cmdContext(c)); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	return nil
}

// readEntries parses one JSON passage per line, skipping blank lines.
func readEntries(path string) ([]ingestuc.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var entries []ingestuc.Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var e ingestuc.Entry
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return nil, fmt.Errorf("parse line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return entries, nil
}
