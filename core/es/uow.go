package es

// UnitOfWork is the identity map of one command execution. Within it, an
// aggregate id maps to at most one in-memory instance.
//
// A UnitOfWork is not safe for concurrent use and must not outlive the
// command it was created for. A nil *UnitOfWork is valid and holds nothing.
type UnitOfWork struct {
	identities map[ID]Aggregate
}

func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{identities: map[ID]Aggregate{}}
}

func (u *UnitOfWork) get(id ID) (Aggregate, bool) {
	if u == nil {
		return nil, false
	}
	agg, ok := u.identities[id]
	return agg, ok
}

// Register tracks agg under its id, replacing any previous instance.
func (u *UnitOfWork) Register(agg Aggregate) {
	if u == nil || agg.AggregateID().IsZero() {
		return
	}
	u.identities[agg.AggregateID()] = agg
}

// Contains reports whether id is tracked.
func (u *UnitOfWork) Contains(id ID) bool {
	_, ok := u.get(id)
	return ok
}

func (u *UnitOfWork) Evict(id ID) {
	if u == nil {
		return
	}
	delete(u.identities, id)
}

func (u *UnitOfWork) Len() int {
	if u == nil {
		return 0
	}
	return len(u.identities)
}

// Clear drops every tracked aggregate.
func (u *UnitOfWork) Clear() {
	if u == nil {
		return
	}
	clear(u.identities)
}
