// Command loadtest drives concurrent content and product edits through the
// configured event store backend and reports throughput. Prometheus metrics
// are served on DEVFLOW_METRICS_ADDR while it runs.
//
// Run against NATS:
//
//	docker run --net=host nats:latest -js
//	DEVFLOW_BACKEND=nats DEVFLOW_LOOKUP=nats go run ./cmd/loadtest
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/getdevflow/core-sub003/adapters/prometheus"
	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/domain/content"
	"github.com/getdevflow/core-sub003/domain/contenttype"
	"github.com/getdevflow/core-sub003/domain/product"
	"github.com/getdevflow/core-sub003/domain/site"
	"github.com/getdevflow/core-sub003/domain/user"
	"github.com/getdevflow/core-sub003/internal/config"
	"github.com/getdevflow/core-sub003/ports/kv"
)

// === Config ===

type settings struct {
	config.Config

	Aggregates int           `env:"LOADTEST_AGGREGATES" envDefault:"100"`
	Ops        int           `env:"LOADTEST_OPS" envDefault:"20000"`
	Workers    int           `env:"LOADTEST_WORKERS" envDefault:"8"`
	Batch      int           `env:"LOADTEST_BATCH" envDefault:"1000"`
	Timeout    time.Duration `env:"LOADTEST_TIMEOUT" envDefault:"2m"`
	// Linger keeps the metrics endpoint up after the run until interrupted.
	Linger bool `env:"LOADTEST_LINGER" envDefault:"false"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := config.ParseEnv(&s); err != nil {
		return settings{}, err
	}
	if err := s.Validate(); err != nil {
		return settings{}, err
	}
	if s.Aggregates < 1 || s.Workers < 1 || s.Batch < 1 {
		return settings{}, fmt.Errorf("config: aggregates, workers and batch must be positive")
	}
	return s, nil
}

func main() {
	s, err := loadSettings()
	checkErr(err)

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: s.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, s, log); err != nil {
		log.Error("loadtest failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// === Env ===

type env struct {
	now         func() time.Time
	sites       *es.Repository[*site.Site]
	users       *es.Repository[*user.User]
	types       *es.Repository[*contenttype.ContentType]
	contents    *es.Repository[*content.Content]
	products    *es.Repository[*product.Product]
	contentProj *content.Projection
	productProj *product.Projection
}

func newEnv(b *backend, tenant es.Tenant, metrics *prometheus.AllMetrics, log *slog.Logger) *env {
	registry := es.NewRegistry().Register(
		site.Events{}, user.Events{}, contenttype.Events{}, content.Events{}, product.Events{},
	)
	store := es.NewStore(b.events, registry,
		es.WithTenant(tenant),
		es.WithLog(log),
		es.WithMetrics(metrics.ES),
	)
	idx := kv.IndexOpts{Log: log, Metrics: metrics.Index}

	repoOpts := func(p es.Projection) []es.RepositoryOption {
		return []es.RepositoryOption{es.WithLog(log), es.WithMetrics(metrics.ES), es.WithProjections(p)}
	}
	e := &env{
		now:         time.Now,
		contentProj: content.NewProjection(b.db, tenant, b.lookup, idx),
		productProj: product.NewProjection(b.db, tenant, b.lookup, idx),
	}
	e.sites = site.NewRepository(store, repoOpts(site.NewProjection(b.db, tenant, b.lookup, idx))...)
	e.users = user.NewRepository(store, repoOpts(user.NewProjection(b.db, tenant, b.lookup, idx))...)
	e.types = contenttype.NewRepository(store, repoOpts(contenttype.NewProjection(b.db, tenant, b.lookup, idx))...)
	e.contents = content.NewRepository(store, repoOpts(e.contentProj)...)
	e.products = product.NewRepository(store, repoOpts(e.productProj)...)
	return e
}

// === Run ===

func run(ctx context.Context, s settings, log *slog.Logger) error {
	tenant, err := s.Tenant()
	if err != nil {
		return err
	}

	reg := promclient.NewRegistry()
	metrics := prometheus.NewAllMetrics(reg)
	srv := &http.Server{Addr: s.MetricsAddr, Handler: prometheus.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", slog.Any("error", err))
		}
	}()
	defer func() { _ = srv.Close() }()

	b, err := openBackend(ctx, s.Config, tenant, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("close backend", slog.Any("error", err))
		}
	}()
	e := newEnv(b, tenant, metrics, log)

	runCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	fmt.Printf("Backend: %s\n", s.Backend)
	fmt.Printf("Lookup:  %s\n", s.Lookup)
	fmt.Printf("Workers: %d\n", s.Workers)

	contents, products, err := seed(runCtx, e, s.Aggregates)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	log.Info("==================================")
	log.Info("Starting ...")

	var (
		done      atomic.Int64
		conflicts atomic.Int64
		startAt   = time.Now()
		mu        sync.Mutex
		lastTime  = startAt
	)
	progress := func(n int64) {
		mu.Lock()
		defer mu.Unlock()
		if n%100 == 0 {
			print(".")
		}
		if n%int64(s.Batch) == 0 {
			mem := getMemUsage()
			now := time.Now()
			took := now.Sub(lastTime)
			fmt.Printf(" | %5d ops | %6d ms | %6d ops/s | (%d / %d) MiB mem (sys) |\n",
				s.Batch, took.Milliseconds(), int(float64(s.Batch)/took.Seconds()), mem.Alloc/1024/1024, mem.Sys/1024/1024)
			lastTime = now
		}
	}

	ops := make(chan int)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer close(ops)
		for i := range s.Ops {
			select {
			case ops <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range s.Workers {
		g.Go(func() error {
			for i := range ops {
				err := edit(gctx, e, contents, products, i)
				switch {
				case errors.Is(err, es.ErrConcurrencyConflict):
					conflicts.Add(1)
				case err != nil:
					return fmt.Errorf("op %d: %w", i, err)
				}
				progress(done.Add(1))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// === stats ===
	println("")
	println("==========================================")

	took := time.Since(startAt)
	runtime.GC()

	fmt.Printf("total runtime: %.3f seconds\n", took.Seconds())
	fmt.Printf("   operations: %d\n", done.Load())
	fmt.Printf("    conflicts: %d\n", conflicts.Load())
	fmt.Printf("  avg. ops/s:  %d\n", int(float64(done.Load())/took.Seconds()))

	if err := verify(runCtx, e, products); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	if s.Linger {
		log.Info("serving metrics until interrupted", slog.String("addr", s.MetricsAddr))
		<-ctx.Done()
	}
	return nil
}

// seed creates the owner, the site, a content type and n contents and
// products.
func seed(ctx context.Context, e *env, n int) (contents, products []es.ID, err error) {
	now := e.now()
	hash, err := user.HashPassword("loadtest-password")
	if err != nil {
		return nil, nil, err
	}
	owner, err := user.Create(es.NewID(), user.Details{
		Login:     "loadtest",
		Email:     "loadtest@example.com",
		FirstName: "Load",
		LastName:  "Test",
		Pass:      hash,
	}, now)
	if err != nil {
		return nil, nil, err
	}
	s, err := site.Create(es.NewID(), site.Details{
		Name:   "Load test",
		Slug:   "loadtest",
		Domain: "loadtest.example.com",
		Path:   "/",
		Owner:  owner.AggregateID(),
	}, now)
	if err != nil {
		return nil, nil, err
	}
	post, err := contenttype.Create(es.NewID(), "Post", "post", "", now)
	if err != nil {
		return nil, nil, err
	}

	uow := es.NewUnitOfWork()
	if _, err := e.users.Save(ctx, uow, owner); err != nil {
		return nil, nil, err
	}
	if _, err := e.sites.Save(ctx, uow, s); err != nil {
		return nil, nil, err
	}
	if _, err := e.types.Save(ctx, uow, post); err != nil {
		return nil, nil, err
	}

	for i := range n {
		c, err := content.Create(es.NewID(), content.Details{
			Title:    fmt.Sprintf("Post %d", i),
			Slug:     fmt.Sprintf("post-%d", i),
			Author:   owner.AggregateID(),
			TypeSlug: post.Slug,
		}, now)
		if err != nil {
			return nil, nil, err
		}
		if _, err := e.contents.Save(ctx, es.NewUnitOfWork(), c); err != nil {
			return nil, nil, err
		}
		contents = append(contents, c.AggregateID())

		p, err := product.Create(es.NewID(), product.Details{
			Title:    fmt.Sprintf("Product %d", i),
			Slug:     fmt.Sprintf("product-%d", i),
			Author:   owner.AggregateID(),
			Sku:      fmt.Sprintf("SKU-%06d", i),
			Currency: "USD",
		}, now)
		if err != nil {
			return nil, nil, err
		}
		if _, err := e.products.Save(ctx, es.NewUnitOfWork(), p); err != nil {
			return nil, nil, err
		}
		products = append(products, p.AggregateID())
	}
	return contents, products, nil
}

// edit changes the title of a content on even ops and the price of a
// product on odd ones.
func edit(ctx context.Context, e *env, contents, products []es.ID, i int) error {
	now := e.now()
	if i%2 == 0 {
		id := contents[(i/2)%len(contents)]
		_, err := e.contents.Transact(ctx, id, func(c *content.Content) error {
			if err := c.ChangeTitle(fmt.Sprintf("Post rev %d", i)); err != nil {
				return err
			}
			return c.StampModified(now)
		})
		return err
	}
	id := products[(i/2)%len(products)]
	_, err := e.products.Transact(ctx, id, func(p *product.Product) error {
		if err := p.ChangePrice(int64(i)); err != nil {
			return err
		}
		return p.StampModified(now)
	})
	return err
}

// verify reads every product back through the sku index and checks that
// the read model matches the aggregate.
func verify(ctx context.Context, e *env, products []es.ID) error {
	for _, id := range products {
		agg, err := e.products.Load(ctx, es.NewUnitOfWork(), id)
		if err != nil {
			return err
		}
		row, err := e.productProj.FindBySku(ctx, agg.Sku)
		if err != nil {
			return err
		}
		if row.Price != agg.Price {
			return fmt.Errorf("product %s: read model price %d, aggregate price %d", id, row.Price, agg.Price)
		}
	}
	return nil
}

// === stats helpers ===

type MemUsage struct {
	Alloc      uint64 // bytes allocated and not yet freed (heap)
	TotalAlloc uint64 // cumulative bytes allocated
	Sys        uint64 // total bytes obtained from OS
	NumGC      uint32 // gc cycles
}

func getMemUsage() MemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemUsage{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// === Helpers ===

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}
