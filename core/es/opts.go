package es

import (
	"log/slog"
)

type (
	valueOption[T any]  struct{ v T }
	LogOption           valueOption[*slog.Logger]
	ESMetricsOption     valueOption[ESMetrics]
	TenantOption        valueOption[Tenant]
	TxIDGeneratorOption valueOption[TransactionIDGenerator]
	ProjectionsOption   struct{ ps []Projection }
)

type (
	storeOpts struct {
		log           *slog.Logger
		metrics       ESMetrics
		tenant        Tenant
		txIDGenerator TransactionIDGenerator
	}

	repoOpts struct {
		log         *slog.Logger
		metrics     ESMetrics
		projections []Projection
	}

	instrumentOpts struct {
		log     *slog.Logger
		metrics ESMetrics
	}
)

type (
	StoreOption      interface{ applyToStore(*storeOpts) }
	RepositoryOption interface{ applyToRepository(*repoOpts) }
	InstrumentOption interface{ applyToInstrument(*instrumentOpts) }
)

func WithLog(l *slog.Logger) LogOption                   { return LogOption{v: l} }
func WithMetrics(m ESMetrics) ESMetricsOption            { return ESMetricsOption{v: m} }
func WithTenant(t Tenant) TenantOption                   { return TenantOption{v: t} }
func WithProjections(ps ...Projection) ProjectionsOption { return ProjectionsOption{ps: ps} }

// WithTransactionIDGenerator replaces the UUIDv7 transaction ids.
func WithTransactionIDGenerator(gen TransactionIDGenerator) TxIDGeneratorOption {
	return TxIDGeneratorOption{v: gen}
}

func (o LogOption) applyToStore(s *storeOpts)                 { s.log = o.v }
func (o ESMetricsOption) applyToStore(s *storeOpts)           { s.metrics = o.v }
func (o TenantOption) applyToStore(s *storeOpts)              { s.tenant = o.v }
func (o TxIDGeneratorOption) applyToStore(s *storeOpts)       { s.txIDGenerator = o.v }
func (o LogOption) applyToRepository(r *repoOpts)             { r.log = o.v }
func (o ESMetricsOption) applyToRepository(r *repoOpts)       { r.metrics = o.v }
func (o ProjectionsOption) applyToRepository(r *repoOpts)     { r.projections = append(r.projections, o.ps...) }
func (o LogOption) applyToInstrument(i *instrumentOpts)       { i.log = o.v }
func (o ESMetricsOption) applyToInstrument(i *instrumentOpts) { i.metrics = o.v }

func newStoreOpts(opts ...StoreOption) storeOpts {
	options := storeOpts{
		log:           slog.Default(),
		metrics:       NopESMetrics(),
		tenant:        DefaultTenant(),
		txIDGenerator: DefaultTransactionIDGenerator(),
	}
	for _, opt := range opts {
		opt.applyToStore(&options)
	}
	return options
}

func newRepoOpts(opts ...RepositoryOption) repoOpts {
	options := repoOpts{
		log:     slog.Default(),
		metrics: NopESMetrics(),
	}
	for _, opt := range opts {
		opt.applyToRepository(&options)
	}
	return options
}

func newInstrumentOpts(opts ...InstrumentOption) instrumentOpts {
	options := instrumentOpts{
		log:     slog.Default(),
		metrics: NopESMetrics(),
	}
	for _, opt := range opts {
		opt.applyToInstrument(&options)
	}
	return options
}
