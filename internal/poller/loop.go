package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"tokenwatch/internal/feed"
	"tokenwatch/internal/match"
	"tokenwatch/internal/metrics"
	"tokenwatch/internal/notify"
	"tokenwatch/internal/seen"
	logx "tokenwatch/pkg/logx"
	"tokenwatch/pkg/solana"
)

// State of the loop.
type State int32

const (
	Idle State = iota
	Ticking
)

func (s State) String() string {
	if s == Ticking {
		return "ticking"
	}
	return "idle"
}

// Feed is the upstream source of candidate records.
type Feed interface {
	FetchRecent(ctx context.Context, limit, offset int) ([]feed.Record, error)
}

// Store is the durable seen set.
type Store interface {
	Has(identity string) bool
	RecordAndPersist(ctx context.Context, e seen.Entry) error
	Len() int
}

// Notifier fans an alert out to every channel and swallows failures.
type Notifier interface {
	Notify(ctx context.Context, a notify.Alert) int
}

type Config struct {
	Target   string
	Limit    int
	Offset   int
	Schedule Schedule
	// Location is used for human-readable times in alerts. nil means UTC.
	Location *time.Location
	// PersistTimeout bounds a single seen-store write. 0 means 30s.
	PersistTimeout time.Duration
}

// Status is a point-in-time view for health reporting.
type Status struct {
	State        State
	Target       string
	Ticks        uint64
	LastTickAt   time.Time
	LastTickTook time.Duration
	LastFetchErr string
	LastMatches  int
}

type Loop struct {
	log      logx.Logger
	feed     Feed
	store    Store
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time

	limit          int
	offset         int
	schedule       Schedule
	loc            *time.Location
	persistTimeout time.Duration

	target atomic.Pointer[string]
	state  atomic.Int32
	tickMu sync.Mutex

	smu    sync.Mutex
	status Status
}

type Option func(*Loop)

func WithLogger(log logx.Logger) Option { return func(l *Loop) { l.log = log } }

func WithMetrics(m *metrics.Metrics) Option { return func(l *Loop) { l.metrics = m } }

// WithClock overrides the discovery-time clock.
func WithClock(now func() time.Time) Option { return func(l *Loop) { l.now = now } }

func New(cfg Config, f Feed, st Store, n Notifier, opts ...Option) (*Loop, error) {
	if f == nil || st == nil || n == nil {
		return nil, errors.New("poller: feed, store and notifier are required")
	}
	if cfg.Schedule.Spec == nil {
		cfg.Schedule = EverySchedule(DefaultInterval)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 30 * time.Second
	}
	l := &Loop{
		log:            logx.Nop(),
		feed:           f,
		store:          st,
		notifier:       n,
		now:            time.Now,
		limit:          feed.ClampLimit(cfg.Limit),
		offset:         max(0, cfg.Offset),
		schedule:       cfg.Schedule,
		loc:            cfg.Location,
		persistTimeout: cfg.PersistTimeout,
	}
	for _, o := range opts {
		o(l)
	}
	if l.log.IsZero() {
		l.log = logx.Nop()
	}
	l.log = l.log.With(logx.String("comp", "poller"))
	l.SetTarget(cfg.Target)
	return l, nil
}

// SetTarget replaces the match target. It takes effect from the next tick.
// Whitespace is significant: " " matches names that contain a space.
func (l *Loop) SetTarget(target string) {
	l.target.Store(&target)
}

func (l *Loop) Target() string {
	if p := l.target.Load(); p != nil {
		return *p
	}
	return ""
}

func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) Schedule() Schedule { return l.schedule }

func (l *Loop) Status() Status {
	l.smu.Lock()
	st := l.status
	l.smu.Unlock()
	st.State = l.State()
	st.Target = l.Target()
	return st
}

// Tick runs one poll cycle.
//
// Feed failures are logged and treated as an empty page. The only error
// returned is a *seen.PersistenceWriteError, which aborts the tick before any
// notification for that record is sent.
func (l *Loop) Tick(ctx context.Context) error {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	l.state.Store(int32(Ticking))
	defer l.state.Store(int32(Idle))

	start := time.Now()
	target := l.Target()
	log := l.log.With(logx.String("tick", uuid.NewString()), logx.String("target", target))

	res, err := l.tick(ctx, log, target)

	took := time.Since(start)
	l.smu.Lock()
	l.status.Ticks++
	l.status.LastTickAt = start
	l.status.LastTickTook = took
	l.status.LastFetchErr = res.fetchErr
	l.status.LastMatches = res.matches
	l.smu.Unlock()

	l.metrics.ObserveTick(res.result, took)
	l.metrics.SetSeen(l.store.Len())
	log.Debug("tick done",
		logx.Int("candidates", res.candidates),
		logx.Int("matches", res.matches),
		logx.Duration("took", took),
	)
	return err
}

type tickResult struct {
	result     string
	candidates int
	matches    int
	fetchErr   string
}

func (l *Loop) tick(ctx context.Context, log logx.Logger, target string) (tickResult, error) {
	recs, err := l.feed.FetchRecent(ctx, l.limit, l.offset)
	if err != nil {
		log.Warn("feed fetch failed", logx.Err(err))
		return tickResult{result: metrics.TickFetchError, fetchErr: err.Error()}, nil
	}
	l.metrics.AddCandidates(len(recs))

	candidates := lo.Filter(recs, func(r feed.Record, _ int) bool { return r.Identity != "" })
	if skipped := len(recs) - len(candidates); skipped > 0 {
		log.Debug("records without identity skipped", logx.Int("count", skipped))
	}

	res := tickResult{result: metrics.TickOK, candidates: len(candidates)}
	for _, rec := range candidates {
		if !match.Matches(rec, target) || l.store.Has(rec.Identity) {
			continue
		}

		if !solana.IsAddress(rec.Identity) {
			log.Warn("identity is not a solana address",
				logx.String("identity", rec.Identity),
				logx.String("symbol", rec.Symbol),
			)
		}

		foundAt := l.now()
		if err := l.persist(ctx, rec, foundAt); err != nil {
			if errors.Is(err, seen.ErrAlreadyRecorded) {
				continue
			}
			log.Error("seen store write failed, aborting tick",
				logx.String("identity", rec.Identity),
				logx.Err(err),
			)
			res.result = metrics.TickPersistError
			return res, fmt.Errorf("record %s: %w", rec.Identity, err)
		}
		res.matches++
		l.metrics.IncMatches()
		log.Info("new match",
			logx.String("identity", rec.Identity),
			logx.String("symbol", rec.Symbol),
			logx.String("name", rec.Name),
			logx.Bool("freeze_authority", rec.HasFreezeAuthority),
		)

		l.notifier.Notify(ctx, notify.NewAlert(rec, target, foundAt, l.loc))
	}
	return res, nil
}

func (l *Loop) persist(ctx context.Context, rec feed.Record, at time.Time) error {
	pctx, cancel := context.WithTimeout(ctx, l.persistTimeout)
	defer cancel()
	return l.store.RecordAndPersist(pctx, seen.Entry{
		Identity:    rec.Identity,
		Symbol:      rec.Symbol,
		Name:        rec.Name,
		FirstSeenAt: at,
	})
}

// Run ticks once immediately and then on the schedule until ctx is done.
//
// Ticks run on a context detached from ctx, so cancellation stops the
// schedule but lets an in-flight tick finish. Run returns nil on
// cancellation and the tick error if a tick fails.
func (l *Loop) Run(ctx context.Context) error {
	tickCtx := context.WithoutCancel(ctx)
	errCh := make(chan error, 1)
	runTick := func() {
		if err := l.Tick(tickCtx); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}

	l.log.Info("poll loop started", logx.String("schedule", l.schedule.String()), logx.Int("limit", l.limit))
	runTick()
	select {
	case err := <-errCh:
		return err
	default:
	}
	if ctx.Err() != nil {
		return nil
	}

	clog := cronLogger{log: l.log}
	c := cron.New(
		cron.WithLocation(l.loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	c.Schedule(l.schedule.Spec, cron.FuncJob(runTick))
	c.Start()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	<-c.Stop().Done()
	if err == nil {
		select {
		case err = <-errCh:
		default:
		}
	}
	l.log.Info("poll loop stopped", logx.Bool("failed", err != nil))
	return err
}

// cronLogger adapts logx to cron.Logger. cron's info chatter goes to debug.
type cronLogger struct{ log logx.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
