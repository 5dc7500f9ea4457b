package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"rentcrunch/internal/adapters/observability"
	"rentcrunch/internal/domain"
)

// ErrSuperseded is returned by Wait when a newer search replaced the awaited one.
var ErrSuperseded = errors.New("search superseded by a newer generation")

const (
	DefaultPageSize     = 42
	DefaultDrainTimeout = 5 * time.Second
	journalTimeout      = 5 * time.Second
	flushTimeout        = 2 * time.Second
)

type SessionConfig struct {
	PageSize int
	// PageConcurrency caps in-flight page fetches; 0 means one goroutine per page.
	PageConcurrency int
	DrainTimeout    time.Duration
	Settings        domain.CashflowSettings
	Sort            *domain.SortConfig
}

// Session orchestrates one logical search at a time. A single goroutine owns
// the result set; fetches, pushes and user commands reach it as ops and are
// applied in arrival order. Readers see immutable snapshots.
type Session struct {
	provider  domain.ListingProvider
	overrides *OverrideStore
	journal   domain.SearchJournal
	cfg       SessionConfig

	ops     chan op
	writes  chan func(context.Context)
	flushed chan struct{}
	done    chan struct{}
	nextGen atomic.Uint64
	snap    atomic.Pointer[domain.Snapshot]

	subMu   sync.Mutex
	subs    map[int]chan domain.Snapshot
	nextSub int

	baseCtx     context.Context
	stop        context.CancelFunc
	unsubscribe func()
	closeOnce   sync.Once

	st sessionState // owned by loop
}

type op func(st *sessionState)

type sessionState struct {
	gen       domain.Generation
	runID     string
	state     domain.SessionState
	degraded  bool
	query     domain.SearchQuery
	total     int
	pages     int
	settled   int
	failed    int
	props     []domain.Property
	index     map[string]int
	sort      *domain.SortConfig
	settings  domain.CashflowSettings
	startedAt time.Time

	ctx        context.Context
	cancel     context.CancelFunc
	drainTimer *time.Timer
	drainEpoch int
}

// NewSession builds an idle session. overrides and journal may be nil.
func NewSession(p domain.ListingProvider, overrides *OverrideStore, journal domain.SearchJournal, cfg SessionConfig) *Session {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	s := &Session{
		provider:  p,
		overrides: overrides,
		journal:   journal,
		cfg:       cfg,
		ops:       make(chan op, 256),
		writes:    make(chan func(context.Context), 64),
		flushed:   make(chan struct{}),
		done:      make(chan struct{}),
		subs:      map[int]chan domain.Snapshot{},
	}
	s.st = sessionState{
		state:    domain.StateIdle,
		index:    map[string]int{},
		sort:     cfg.Sort,
		settings: cfg.Settings,
	}
	s.publish()
	return s
}

// Start runs the session loop and subscribes to provider push updates.
// It returns immediately; Close (or cancelling ctx) stops the loop.
func (s *Session) Start(ctx context.Context) {
	s.baseCtx, s.stop = context.WithCancel(ctx)
	s.unsubscribe = s.provider.Subscribe(func(u domain.PropertyUpdate) {
		s.enqueue(func(st *sessionState) { s.onPush(st, u) })
	})
	go s.loop()
	go s.journalLoop()
}

// Close stops the loop, closes subscriber channels and flushes queued journal writes.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		if s.stop != nil {
			s.stop()
		}
		close(s.done)
		if s.baseCtx != nil {
			<-s.flushed
		}
	})
}

func (s *Session) loop() {
	for {
		select {
		case <-s.done:
			s.teardown()
			return
		case <-s.baseCtx.Done():
			s.Close()
		case o := <-s.ops:
			o(&s.st)
			s.publish()
		}
	}
}

func (s *Session) teardown() {
	if s.st.drainTimer != nil {
		s.st.drainTimer.Stop()
	}
	if s.st.cancel != nil {
		s.st.cancel()
	}
	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
}

func (s *Session) enqueue(o op) {
	select {
	case s.ops <- o:
	case <-s.done:
	}
}

// ---- Commands ----

// StartSearch validates the query synchronously and starts a new generation.
// Input errors leave the session untouched.
func (s *Session) StartSearch(location string, f domain.Filters) (domain.Generation, error) {
	q, err := NormalizeQuery(domain.SearchQuery{Location: location, Filters: f})
	if err != nil {
		return 0, err
	}
	gen := domain.Generation(s.nextGen.Add(1))
	s.enqueue(func(st *sessionState) { s.begin(st, gen, q) })
	return gen, nil
}

// Abort stops the active search, if any. Results gathered so far stay visible.
func (s *Session) Abort() {
	gen := domain.Generation(s.nextGen.Add(1))
	s.enqueue(func(st *sessionState) {
		if gen <= st.gen || st.state == domain.StateIdle || st.state.Terminal() {
			return
		}
		s.supersede(st)
		st.gen = gen
		st.state = domain.StateAborted
	})
}

// SetSortConfig validates cfg and re-sorts the result set by it.
func (s *Session) SetSortConfig(cfg domain.SortConfig) error {
	key, err := ParseSortKey(string(cfg.Key))
	if err != nil {
		return err
	}
	dir, err := ParseSortDirection(string(cfg.Direction))
	if err != nil {
		return err
	}
	sc := domain.SortConfig{Key: key, Direction: dir}
	s.enqueue(func(st *sessionState) {
		st.sort = &sc
		s.resort(st)
	})
	return nil
}

// ClearSort drops the active sort; the current order is kept and new
// properties are appended.
func (s *Session) ClearSort() {
	s.enqueue(func(st *sessionState) { st.sort = nil })
}

// SetSettings replaces the cash-flow assumptions. Computed sort keys are
// re-evaluated immediately.
func (s *Session) SetSettings(settings domain.CashflowSettings) error {
	if err := ValidateSettings(settings); err != nil {
		return err
	}
	s.enqueue(func(st *sessionState) {
		st.settings = settings
		if st.sort != nil && st.sort.Key.Computed() {
			s.resort(st)
		}
	})
	return nil
}

// Resort re-applies the active sort, e.g. after an override changed.
func (s *Session) Resort() {
	s.enqueue(func(st *sessionState) { s.resort(st) })
}

// ---- Observation ----

// Snapshot returns the latest published state without blocking the loop.
func (s *Session) Snapshot() domain.Snapshot { return *s.snap.Load() }

// Overrides returns the store the session sorts with (may be nil).
func (s *Session) Overrides() *OverrideStore { return s.overrides }

// Subscribe returns a channel that always holds the latest snapshot. Slow
// readers skip intermediate snapshots. The channel is closed on Close.
func (s *Session) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 1)

	s.subMu.Lock()
	ch <- s.Snapshot()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Wait blocks until generation gen reaches a terminal state.
func (s *Session) Wait(ctx context.Context, gen domain.Generation) (domain.Snapshot, error) {
	ch, cancel := s.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return s.Snapshot(), fmt.Errorf("session closed")
			}
			switch {
			case snap.Generation == gen && snap.State == domain.StateAborted:
				return snap, ErrSuperseded
			case snap.Generation == gen && snap.State.Terminal():
				return snap, nil
			case snap.Generation > gen:
				return snap, ErrSuperseded
			}
		}
	}
}

func (s *Session) publish() {
	st := &s.st
	snap := &domain.Snapshot{
		RunID:        st.runID,
		Generation:   st.gen,
		State:        st.state,
		Degraded:     st.degraded,
		Query:        st.query,
		Total:        st.total,
		Pages:        st.pages,
		PagesSettled: st.settled,
		PagesFailed:  st.failed,
		Settings:     st.settings,
		Properties:   append([]domain.Property(nil), st.props...),
		UpdatedAt:    time.Now(),
	}
	if st.sort != nil {
		sc := *st.sort
		snap.Sort = &sc
	}
	s.snap.Store(snap)
	observability.SetResultSize(len(snap.Properties))

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- *snap
	}
}

// ---- Transitions ----

func (s *Session) begin(st *sessionState, gen domain.Generation, q domain.SearchQuery) {
	if gen <= st.gen {
		return // a newer command already arrived
	}
	if st.state != domain.StateIdle && !st.state.Terminal() {
		s.supersede(st)
		st.state = domain.StateAborted
		s.publish()
	} else if st.cancel != nil {
		st.cancel()
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	*st = sessionState{
		gen:       gen,
		runID:     uuid.NewString(),
		state:     domain.StateCounting,
		query:     q,
		index:     map[string]int{},
		sort:      st.sort,
		settings:  st.settings,
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	log.Info().Uint64("gen", uint64(gen)).Str("run", st.runID).Str("location", q.Location).Msg("search started")
	s.record(st)

	if IsAddressLike(q.Location) {
		go s.lookupAddress(ctx, gen, q.Location)
		return
	}
	go s.count(ctx, gen, q)
}

// supersede aborts the live generation: its context is cancelled and any
// later arrival tagged with it is dropped by the generation check.
func (s *Session) supersede(st *sessionState) {
	if st.drainTimer != nil {
		st.drainTimer.Stop()
	}
	if st.cancel != nil {
		st.cancel()
	}
	log.Info().Uint64("gen", uint64(st.gen)).Str("run", st.runID).Str("from", string(st.state)).Msg("search aborted")
	observability.ObserveSession("aborted")
	run := s.runOf(st)
	run.State = domain.StateAborted
	s.recordRun(run)
}

func (s *Session) count(ctx context.Context, gen domain.Generation, q domain.SearchQuery) {
	total, err := s.provider.CountMatches(ctx, q)
	s.enqueue(func(st *sessionState) { s.onCount(st, gen, total, err) })
}

func (s *Session) onCount(st *sessionState, gen domain.Generation, total int, err error) {
	if gen != st.gen || st.state != domain.StateCounting {
		return
	}
	if err != nil {
		log.Warn().Err(err).Uint64("gen", uint64(gen)).Msg("count failed")
		s.logMiss(st.runID, 0, "count: "+err.Error())
		st.degraded = true
		s.complete(st)
		return
	}
	if total <= 0 {
		s.complete(st)
		return
	}
	st.total = total
	st.pages = PageCount(total, s.cfg.PageSize)
	st.state = domain.StateFetching
	log.Info().Uint64("gen", uint64(gen)).Int("total", total).Int("pages", st.pages).Msg("fetching pages")
	go s.fetchPages(st.ctx, gen, st.query, st.pages)
}

func (s *Session) fetchPages(ctx context.Context, gen domain.Generation, q domain.SearchQuery, pages int) {
	var g errgroup.Group
	if s.cfg.PageConcurrency > 0 {
		g.SetLimit(s.cfg.PageConcurrency)
	}
	for page := 1; page <= pages; page++ {
		page := page
		g.Go(func() error {
			props, err := s.provider.FetchPage(ctx, domain.PageRequest{
				Generation: gen,
				Query:      q,
				Page:       page,
				PageSize:   s.cfg.PageSize,
			})
			s.enqueue(func(st *sessionState) { s.onPage(st, gen, page, props, err) })
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Session) onPage(st *sessionState, gen domain.Generation, page int, props []domain.Property, err error) {
	if gen != st.gen || st.state != domain.StateFetching {
		observability.ObservePage("stale")
		return
	}
	st.settled++
	if err != nil {
		st.failed++
		observability.ObservePage("error")
		log.Warn().Err(err).Uint64("gen", uint64(gen)).Int("page", page).Msg("page fetch failed")
		s.logMiss(st.runID, page, err.Error())
	} else {
		observability.ObservePage("ok")
		s.merge(st, props, false)
	}
	if st.settled >= st.pages {
		s.drain(st)
	}
}

func (s *Session) lookupAddress(ctx context.Context, gen domain.Generation, address string) {
	p, err := s.provider.FetchByAddress(ctx, gen, address)
	s.enqueue(func(st *sessionState) { s.onAddress(st, gen, p, err) })
}

func (s *Session) onAddress(st *sessionState, gen domain.Generation, p domain.Property, err error) {
	if gen != st.gen || st.state != domain.StateCounting {
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.complete(st)
	case err != nil:
		log.Warn().Err(err).Uint64("gen", uint64(gen)).Msg("address lookup failed")
		s.logMiss(st.runID, 0, "address: "+err.Error())
		st.degraded = true
		s.complete(st)
	default:
		st.total, st.pages, st.settled = 1, 1, 1
		s.merge(st, []domain.Property{p}, false)
		s.drain(st)
	}
}

func (s *Session) onPush(st *sessionState, u domain.PropertyUpdate) {
	gen := u.Generation
	if gen == 0 {
		gen = st.gen
	}
	if gen != st.gen || st.state == domain.StateIdle || st.state == domain.StateAborted {
		observability.ObserveMerge("stale")
		return
	}
	s.merge(st, []domain.Property{u.Property}, true)
	if st.state == domain.StateDraining {
		s.checkDrained(st)
	}
}

// drain is entered once every page has settled.
func (s *Session) drain(st *sessionState) {
	st.state = domain.StateDraining
	s.checkDrained(st)
}

func (s *Session) checkDrained(st *sessionState) {
	if len(st.props) >= st.total {
		s.complete(st)
		return
	}
	s.armDrainTimer(st)
}

// armDrainTimer (re)starts the idle wait for trailing push updates.
func (s *Session) armDrainTimer(st *sessionState) {
	if st.drainTimer != nil {
		st.drainTimer.Stop()
	}
	st.drainEpoch++
	gen, epoch := st.gen, st.drainEpoch
	st.drainTimer = time.AfterFunc(s.cfg.DrainTimeout, func() {
		s.enqueue(func(st *sessionState) {
			if gen == st.gen && epoch == st.drainEpoch && st.state == domain.StateDraining {
				log.Info().Uint64("gen", uint64(gen)).Int("received", len(st.props)).Int("total", st.total).Msg("drain timed out")
				s.complete(st)
			}
		})
	})
}

func (s *Session) complete(st *sessionState) {
	if st.drainTimer != nil {
		st.drainTimer.Stop()
		st.drainTimer = nil
	}
	st.state = domain.StateComplete
	if len(st.props) < st.total {
		st.degraded = true
	}
	outcome := "complete"
	if st.degraded {
		outcome = "degraded"
	}
	observability.ObserveSession(outcome)
	log.Info().
		Uint64("gen", uint64(st.gen)).
		Str("run", st.runID).
		Int("received", len(st.props)).
		Int("total", st.total).
		Int("failed_pages", st.failed).
		Bool("degraded", st.degraded).
		Msg("search complete")
	s.record(st)
}

// merge applies the merge rule for candidates already known to belong to the
// current generation: new ids are appended (then the active sort re-applied),
// known ids get their mutable fields replaced in place. A page can race the
// enrichment push for its own listing, so a page never downgrades a refined
// rent estimate.
func (s *Session) merge(st *sessionState, props []domain.Property, pushed bool) {
	inserted := false
	for _, p := range props {
		if p.ID == "" {
			log.Debug().Str("address", p.Address).Msg("dropping property without id")
			continue
		}
		if i, ok := st.index[p.ID]; ok {
			if !pushed && st.props[i].Refined() && !p.Refined() {
				continue
			}
			st.props[i] = st.props[i].WithRentFrom(p)
			observability.ObserveMerge("update")
			continue
		}
		st.index[p.ID] = len(st.props)
		st.props = append(st.props, p)
		inserted = true
		observability.ObserveMerge("insert")
	}
	if inserted && st.sort != nil {
		s.resort(st)
	}
}

func (s *Session) resort(st *sessionState) {
	if st.sort == nil || len(st.props) == 0 {
		return
	}
	st.props = SortProperties(st.props, *st.sort, s.overrides, st.settings)
	for i, p := range st.props {
		st.index[p.ID] = i
	}
}

// ---- Journal ----

func (s *Session) runOf(st *sessionState) domain.SearchRun {
	run := domain.SearchRun{
		ID:         st.runID,
		Generation: st.gen,
		Query:      st.query,
		State:      st.state,
		Total:      st.total,
		Received:   len(st.props),
		Degraded:   st.degraded,
		StartedAt:  st.startedAt,
	}
	if st.state.Terminal() {
		now := time.Now()
		run.FinishedAt = &now
	}
	return run
}

func (s *Session) record(st *sessionState) { s.recordRun(s.runOf(st)) }

func (s *Session) recordRun(run domain.SearchRun) {
	if s.journal == nil || run.ID == "" {
		return
	}
	s.write(func(ctx context.Context) {
		if err := s.journal.RecordRun(ctx, run); err != nil {
			log.Warn().Err(err).Str("run", run.ID).Msg("journal run failed")
		}
	})
}

func (s *Session) logMiss(runID string, page int, reason string) {
	if s.journal == nil {
		return
	}
	s.write(func(ctx context.Context) {
		if err := s.journal.LogMiss(ctx, runID, page, reason); err != nil {
			log.Warn().Err(err).Str("run", runID).Int("page", page).Msg("journal miss failed")
		}
	})
}

// write queues a journal write without blocking the loop. Writes are applied
// in order so a run's final state is never overwritten by an earlier one.
func (s *Session) write(w func(context.Context)) {
	select {
	case s.writes <- w:
	default:
		log.Warn().Msg("journal queue full, dropping write")
	}
}

// journalLoop applies queued writes. On Close it flushes what is already
// queued, giving up after flushTimeout.
func (s *Session) journalLoop() {
	defer close(s.flushed)
	for {
		select {
		case w := <-s.writes:
			s.apply(w, context.Background())
		case <-s.done:
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			for {
				select {
				case w := <-s.writes:
					s.apply(w, ctx)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) apply(w func(context.Context), parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, journalTimeout)
	defer cancel()
	w(ctx)
}
