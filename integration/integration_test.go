package integration

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/getdevflow/core-sub003/adapters/prometheus"
	"github.com/getdevflow/core-sub003/adapters/sqlite"
	"github.com/getdevflow/core-sub003/core/cache"
	"github.com/getdevflow/core-sub003/core/es"
	"github.com/getdevflow/core-sub003/domain/content"
	"github.com/getdevflow/core-sub003/domain/contenttype"
	"github.com/getdevflow/core-sub003/domain/product"
	"github.com/getdevflow/core-sub003/domain/readmodel"
	"github.com/getdevflow/core-sub003/domain/site"
	"github.com/getdevflow/core-sub003/domain/user"
	"github.com/getdevflow/core-sub003/ports/kv"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// app is every family wired onto one store for one site.
type app struct {
	store       *es.Store
	sites       *es.Repository[*site.Site]
	users       *es.Repository[*user.User]
	types       *es.Repository[*contenttype.ContentType]
	contents    *es.Repository[*content.Content]
	products    *es.Repository[*product.Product]
	siteProj    *site.Projection
	userProj    *user.Projection
	typeProj    *contenttype.Projection
	contentProj *content.Projection
	productProj *product.Projection
}

func newApp(t *testing.T, db *sqlite.DB, lookup kv.Store, tenant es.Tenant, m *prometheus.AllMetrics) *app {
	t.Helper()
	require.NoError(t, db.Migrate(t.Context(), tenant))

	log := slog.Default()
	registry := es.NewRegistry().Register(
		site.Events{}, user.Events{}, contenttype.Events{}, content.Events{}, product.Events{},
	)
	idx := kv.IndexOpts{Log: log, Metrics: m.Index}
	a := &app{
		store:       es.NewStore(sqlite.NewEventStore(db, log), registry, es.WithTenant(tenant), es.WithMetrics(m.ES)),
		siteProj:    site.NewProjection(db, tenant, lookup, idx),
		userProj:    user.NewProjection(db, tenant, lookup, idx),
		typeProj:    contenttype.NewProjection(db, tenant, lookup, idx),
		contentProj: content.NewProjection(db, tenant, lookup, idx),
		productProj: product.NewProjection(db, tenant, lookup, idx),
	}
	a.sites = site.NewRepository(a.store, es.WithMetrics(m.ES), es.WithProjections(a.siteProj))
	a.users = user.NewRepository(a.store, es.WithMetrics(m.ES), es.WithProjections(a.userProj))
	a.types = contenttype.NewRepository(a.store, es.WithMetrics(m.ES), es.WithProjections(a.typeProj))
	a.contents = content.NewRepository(a.store, es.WithMetrics(m.ES), es.WithProjections(a.contentProj))
	a.products = product.NewRepository(a.store, es.WithMetrics(m.ES), es.WithProjections(a.productProj))
	return a
}

func counter(t *testing.T, reg *promclient.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var sum float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func TestIntegration(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "devflow.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	lru := cache.NewLRU(cache.LRUOpts{Size: 1024})
	t.Cleanup(lru.Close)
	lookup := kv.NewCached(kv.NewMemStore(), lru)

	reg := promclient.NewRegistry()
	metrics := prometheus.NewAllMetrics(reg)

	blogTenant, err := es.NewTenant("blog")
	require.NoError(t, err)
	blog := newApp(t, db, lookup, blogTenant, metrics)
	shop := newApp(t, db, lookup, es.DefaultTenant(), metrics)
	ctx := t.Context()

	var ownerID, postTypeID es.ID

	t.Run("bootstrap site", func(t *testing.T) {
		hash, err := user.HashPassword("correct horse battery")
		require.NoError(t, err)
		owner, err := user.Create(es.NewID(), user.Details{
			Login:     "Admin",
			Email:     "admin@example.com",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Pass:      hash,
		}, now)
		require.NoError(t, err)
		s, err := site.Create(es.NewID(), site.Details{
			Name:   "Blog",
			Slug:   "blog",
			Domain: "Blog.Example.com",
			Path:   "/",
			Owner:  owner.AggregateID(),
		}, now)
		require.NoError(t, err)
		post, err := contenttype.Create(es.NewID(), "Post", "post", "blog posts", now)
		require.NoError(t, err)

		uow := es.NewUnitOfWork()
		_, err = blog.users.Save(ctx, uow, owner)
		require.NoError(t, err)
		_, err = blog.sites.Save(ctx, uow, s)
		require.NoError(t, err)
		_, err = blog.types.Save(ctx, uow, post)
		require.NoError(t, err)
		ownerID, postTypeID = owner.AggregateID(), post.AggregateID()

		byLogin, err := blog.userProj.FindByLogin(ctx, "admin")
		require.NoError(t, err)
		require.Equal(t, ownerID, byLogin.ID)

		row, err := blog.siteProj.FindByAddress(ctx, "blog.example.com", "/")
		require.NoError(t, err)
		require.Equal(t, ownerID, row.Owner)

		loaded, err := blog.users.Load(ctx, es.NewUnitOfWork(), ownerID)
		require.NoError(t, err)
		require.True(t, loaded.CheckPassword("correct horse battery"))
	})

	t.Run("end to end", func(t *testing.T) {
		id := es.ID("A1")
		a1, err := content.Create(id, content.Details{
			Title:    "draft",
			Slug:     "a1",
			Author:   ownerID,
			TypeSlug: "post",
		}, now)
		require.NoError(t, err)
		require.NoError(t, a1.ChangeTitle("Hello"))
		require.NoError(t, a1.ChangeTitle("Hello"))
		_, err = blog.contents.Save(ctx, es.NewUnitOfWork(), a1)
		require.NoError(t, err)

		loaded, err := blog.contents.Load(ctx, es.NewUnitOfWork(), id)
		require.NoError(t, err)
		require.Equal(t, "Hello", loaded.Title)
		require.Equal(t, es.Playhead(2), loaded.Playhead())

		row, err := blog.contentProj.FindBySlug(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, "Hello", row.Title)
	})

	t.Run("identity map", func(t *testing.T) {
		uow := es.NewUnitOfWork()
		first, err := blog.contents.Load(ctx, uow, "A1")
		require.NoError(t, err)
		second, err := blog.contents.Load(ctx, uow, "A1")
		require.NoError(t, err)
		require.Same(t, first, second)
		require.Positive(t, counter(t, reg, "devflow_es_identity_map_lookups_total"))
	})

	t.Run("concurrent conflict", func(t *testing.T) {
		first, err := blog.contents.Load(ctx, es.NewUnitOfWork(), "A1")
		require.NoError(t, err)
		second, err := blog.contents.Load(ctx, es.NewUnitOfWork(), "A1")
		require.NoError(t, err)
		require.NotSame(t, first, second)

		require.NoError(t, first.ChangeBody("from first"))
		require.NoError(t, second.ChangeBody("from second"))

		_, err = blog.contents.Save(ctx, es.NewUnitOfWork(), first)
		require.NoError(t, err)
		_, err = blog.contents.Save(ctx, es.NewUnitOfWork(), second)
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)
		var conflict *es.ConflictError
		require.ErrorAs(t, err, &conflict)
		require.Equal(t, es.Playhead(2), conflict.Expected)
		require.Equal(t, es.Playhead(3), conflict.Actual)
		require.Equal(t, float64(1), counter(t, reg, "devflow_es_concurrency_conflicts_total"))

		_, err = blog.contents.Transact(ctx, "A1", func(c *content.Content) error {
			return c.ChangeBody("from second")
		})
		require.NoError(t, err)
		row, err := blog.contentProj.Find(ctx, "A1")
		require.NoError(t, err)
		require.Equal(t, "from second", row.Body)
	})

	t.Run("multi aggregate commit is atomic", func(t *testing.T) {
		stale, err := blog.contents.Load(ctx, es.NewUnitOfWork(), "A1")
		require.NoError(t, err)
		_, err = blog.contents.Transact(ctx, "A1", func(c *content.Content) error { return c.ChangeBody("moved on") })
		require.NoError(t, err)

		fresh, err := content.Create(es.NewID(), content.Details{
			Title: "Second", Slug: "second", Author: ownerID, TypeSlug: "post",
		}, now)
		require.NoError(t, err)
		require.NoError(t, stale.ChangeBody("stale"))

		events := slices.Concat(fresh.Uncommitted(), stale.Uncommitted())
		_, err = blog.store.Commit(ctx, events...)
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)

		stream, err := blog.store.AggregateHistoryFor(ctx, fresh.AggregateID())
		require.NoError(t, err)
		require.Zero(t, stream.Len(), "no event of a failed commit is persisted")
	})

	t.Run("taken slug is rejected before commit", func(t *testing.T) {
		dup, err := content.Create(es.NewID(), content.Details{
			Title: "Dup", Slug: "a1", Author: ownerID, TypeSlug: "post",
		}, now)
		require.NoError(t, err)
		_, err = blog.contents.Save(ctx, es.NewUnitOfWork(), dup)
		require.ErrorIs(t, err, es.ErrInvariantViolation)

		stream, err := blog.store.AggregateHistoryFor(ctx, dup.AggregateID())
		require.NoError(t, err)
		require.True(t, stream.Empty())

		_, err = blog.contents.Transact(ctx, "A1", func(c *content.Content) error { return c.ChangeTitle("Hello again") })
		require.NoError(t, err)
	})

	t.Run("tenants are isolated", func(t *testing.T) {
		mug, err := product.Create(es.NewID(), product.Details{
			Title:    "Mug",
			Slug:     "a1",
			Author:   ownerID,
			Sku:      "MUG-1",
			Price:    1500,
			Currency: "EUR",
		}, now)
		require.NoError(t, err)
		_, err = shop.products.Save(ctx, es.NewUnitOfWork(), mug)
		require.NoError(t, err)

		_, err = shop.contents.Load(ctx, es.NewUnitOfWork(), "A1")
		require.ErrorIs(t, err, es.ErrAggregateNotFound)
		_, err = shop.contentProj.FindBySlug(ctx, "a1")
		require.ErrorIs(t, err, readmodel.ErrNotFound)
		_, err = blog.productProj.FindBySku(ctx, "MUG-1")
		require.ErrorIs(t, err, readmodel.ErrNotFound)

		row, err := shop.productProj.FindBySku(ctx, "MUG-1")
		require.NoError(t, err)
		require.Equal(t, int64(1500), row.Price)
	})

	t.Run("delete", func(t *testing.T) {
		_, err := blog.types.Transact(ctx, postTypeID, func(c *contenttype.ContentType) error {
			return c.Delete(postTypeID)
		})
		require.NoError(t, err)
		_, err = blog.typeProj.FindBySlug(ctx, "post")
		require.ErrorIs(t, err, readmodel.ErrNotFound)

		loaded, err := blog.types.Load(ctx, es.NewUnitOfWork(), postTypeID)
		require.NoError(t, err)
		require.Equal(t, es.StateDeleted, loaded.State())

		_, err = blog.types.Transact(ctx, postTypeID, func(c *contenttype.ContentType) error {
			return c.ChangeTitle("Article")
		})
		require.ErrorIs(t, err, es.ErrInvariantViolation)
		stream, err := blog.store.AggregateHistoryFor(ctx, postTypeID)
		require.NoError(t, err)
		require.True(t, stream.Deleted())
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		srv := httptest.NewServer(prometheus.Handler(reg))
		defer srv.Close()

		res, err := srv.Client().Get(srv.URL)
		require.NoError(t, err)
		defer func() { _ = res.Body.Close() }()
		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		for _, name := range []string{
			"devflow_es_events_appended_total",
			"devflow_es_store_append_duration_seconds",
			"devflow_es_repo_load_duration_seconds",
			"devflow_index_lookups_total",
		} {
			require.Contains(t, string(body), name)
		}
	})
}
