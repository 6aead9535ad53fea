// Package es persists aggregates as ordered, immutable event streams and
// rebuilds their state by replaying those streams.
//
// # Aggregates
//
// An aggregate embeds [BaseAggregate] and implements AggregateType and Apply.
// Apply is a type switch over the family's events; it only folds, it never
// records:
//
//	type Page struct {
//	    es.BaseAggregate
//	    Title string
//	}
//
//	func (p *Page) AggregateType() string { return "page" }
//
//	func (p *Page) Apply(ev es.Event) error {
//	    switch e := ev.(type) {
//	    case PageWasCreated:
//	        p.Title = e.Title
//	    case PageTitleWasChanged:
//	        p.Title = e.Title
//	    default:
//	        return es.UnknownEvent(p, ev)
//	    }
//	    return nil
//	}
//
// Commands use [Create], [Change] and [Delete]. Change checks its conditions
// first, does nothing when the value is unchanged, and otherwise records the
// event:
//
//	func (p *Page) ChangeTitle(title string) error {
//	    return es.Change(p, p.Title, title,
//	        func(v string) es.Event { return PageTitleWasChanged{Title: v} },
//	        assert.NotBlank(title, "title"),
//	    )
//	}
//
// # Store
//
// [Store] is the transactional event store. [Store.Commit] writes all events
// of a call as one storage transaction of its [EventStore] backend, which
// rejects a batch whose first playhead does not continue the stored stream
// with [ErrConcurrencyConflict]. Rows name their Go event type; reads resolve
// it through the [EventRegistry] and fail with [ErrCorruptEventStream] rather
// than skip a row.
//
// Backends: [InMemoryStore] here, SQLite, PostgreSQL and NATS JetStream in
// the adapters tree.
//
// # Repository
//
// [Repository] loads through a [UnitOfWork], the identity map of one command:
//
//	uow := es.NewUnitOfWork()
//	page, err := pages.Load(ctx, uow, id)
//	if err != nil {
//	    return err
//	}
//	if err := page.ChangeTitle("Hello"); err != nil {
//	    return err
//	}
//	_, err = pages.Save(ctx, uow, page)
//
// Save commits, clears the buffer, runs the repository's [Projection] over
// the committed events and evicts the aggregate from the unit of work.
package es
