// Package extractor drives queries across portal adapters: cache lookup,
// single-flight coalescing, captcha solving, retry with backoff,
// normalization and cache write-back.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/cache"
	"github.com/JustJay7/ecourts-extractor/internal/captcha"
	"github.com/JustJay7/ecourts-extractor/internal/identity"
	"github.com/JustJay7/ecourts-extractor/internal/models"
	"github.com/JustJay7/ecourts-extractor/internal/portal"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Solver answers captcha challenges.
type Solver interface {
	Solve(ctx context.Context, ch *captcha.Challenge, tr scraper.Transport, id identity.Identity) (string, error)
}

// Identities hands out request identities.
type Identities interface {
	Next() identity.Identity
}

// Options tune the orchestrator.
type Options struct {
	CaseTTL              time.Duration
	PastCauseListTTL     time.Duration
	Location             *time.Location
	QueryTimeout         time.Duration
	MaxAttempts          int
	Backoff              Backoff
	MaxConcurrent        int
	AggregateCaseSources bool
}

// Result is what every operation returns to callers such as the API layer.
type Result struct {
	Success         bool               `json:"success"`
	Case            *models.CaseRecord `json:"case,omitempty"`
	CauseList       *models.CauseList  `json:"cause_list,omitempty"`
	Listing         *Listing           `json:"listing,omitempty"`
	Message         string             `json:"message,omitempty"`
	Cached          bool               `json:"cached"`
	ExecutionTimeMs int64              `json:"execution_time_ms"`
	Reason          string             `json:"reason,omitempty"`
}

// Listing answers whether a case appears in a date's cause list.
type Listing struct {
	CaseType    string                  `json:"case_type"`
	CaseNumber  string                  `json:"case_number"`
	Year        int                     `json:"year"`
	HearingDate time.Time               `json:"hearing_date"`
	Found       bool                    `json:"found"`
	Entries     []models.CauseListEntry `json:"entries"`
}

// Orchestrator runs extraction queries. It is safe for concurrent use.
type Orchestrator struct {
	adapters  []portal.Adapter
	transport scraper.Transport
	pool      Identities
	solver    Solver
	cache     *cache.ResultCache
	sem       *semaphore.Weighted
	sessions  sessionLocks
	opts      Options
	logger    *logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator. Adapters are tried in the order given.
func New(adapters []portal.Adapter, tr scraper.Transport, pool Identities, solver Solver, c *cache.ResultCache, opts Options, log *logger.Logger) *Orchestrator {
	if opts.CaseTTL <= 0 {
		opts.CaseTTL = 30 * time.Minute
	}
	if opts.PastCauseListTTL <= 0 {
		opts.PastCauseListTTL = 24 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 90 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}

	return &Orchestrator{
		adapters:  adapters,
		transport: tr,
		pool:      pool,
		solver:    solver,
		cache:     c,
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		opts:      opts,
		logger:    log,
		sleep:     sleepContext,
	}
}

// Adapters returns the configured adapter names in priority order.
func (o *Orchestrator) Adapters() []string {
	names := make([]string, len(o.adapters))
	for i, a := range o.adapters {
		names[i] = a.Name()
	}
	return names
}

// SearchCase returns the case record, from cache when fresh.
func (o *Orchestrator) SearchCase(ctx context.Context, caseType, caseNumber string, year int) (*Result, error) {
	start := time.Now()
	q, err := caseQuery(caseType, caseNumber, year)
	if err != nil {
		return finish(start, &Result{}, err)
	}
	return o.searchCase(ctx, start, q, true)
}

// RefreshCase re-extracts a case by fingerprint, bypassing the cache read.
// The fresh record replaces the cached one.
func (o *Orchestrator) RefreshCase(ctx context.Context, fp cache.Fingerprint) (*Result, error) {
	start := time.Now()
	caseType, caseNumber, year, err := cache.ParseCaseFingerprint(fp)
	if err != nil {
		return finish(start, &Result{}, invalidInput("%v", err))
	}
	q, err := caseQuery(caseType, caseNumber, year)
	if err != nil {
		return finish(start, &Result{}, err)
	}
	return o.searchCase(ctx, start, q, false)
}

func (o *Orchestrator) searchCase(ctx context.Context, start time.Time, q portal.CaseQuery, useCache bool) (*Result, error) {
	fp := cache.CaseKey(q.CaseType, q.CaseNumber, q.Year)

	if useCache {
		if e, ok := o.cache.Get(fp); ok {
			if rec, ok := e.Value.(*models.CaseRecord); ok {
				o.logger.Debug("Case served from cache", "fingerprint", fp)
				return finish(start, &Result{Case: rec.Clone(), Cached: true}, nil)
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.QueryTimeout)
	defer cancel()

	entry, err := o.coalesce(ctx, fp, func(ctx context.Context) (any, time.Duration, error) {
		rec, err := o.extractCase(ctx, q)
		if err != nil {
			return nil, 0, err
		}
		return rec, o.opts.CaseTTL, nil
	})
	if err != nil {
		return finish(start, &Result{}, err)
	}

	rec, ok := entry.Value.(*models.CaseRecord)
	if !ok {
		return finish(start, &Result{}, &Error{Kind: KindSystem, Reason: ReasonSystem, Message: fmt.Sprintf("unexpected cache value %T", entry.Value)})
	}
	return finish(start, &Result{Case: rec.Clone(), Cached: entry.Freshness == cache.FreshnessCached}, nil)
}

// FetchCauseList returns the merged cause list for date, optionally filtered
// to courts whose name contains court.
func (o *Orchestrator) FetchCauseList(ctx context.Context, date time.Time, court string) (*Result, error) {
	start := time.Now()
	if date.IsZero() {
		return finish(start, &Result{}, invalidInput("hearing date is required"))
	}

	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, o.opts.Location)
	court = strings.TrimSpace(court)
	fp := cache.CauseListKey(day, court)

	if e, ok := o.cache.Get(fp); ok {
		if list, ok := e.Value.(*models.CauseList); ok {
			o.logger.Debug("Cause list served from cache", "fingerprint", fp)
			return finish(start, &Result{CauseList: list.Clone(), Cached: true}, nil)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.QueryTimeout)
	defer cancel()

	entry, err := o.coalesce(ctx, fp, func(ctx context.Context) (any, time.Duration, error) {
		list, err := o.extractCauseList(ctx, portal.CauseListQuery{Date: day, Court: court})
		if err != nil {
			return nil, 0, err
		}
		ttl := cache.CauseListTTL(o.cache.Now(), day, o.opts.Location, o.opts.PastCauseListTTL)
		if list.Partial {
			ttl = o.opts.CaseTTL
		}
		return list, ttl, nil
	})
	if err != nil {
		return finish(start, &Result{}, err)
	}

	list, ok := entry.Value.(*models.CauseList)
	if !ok {
		return finish(start, &Result{}, &Error{Kind: KindSystem, Reason: ReasonSystem, Message: fmt.Sprintf("unexpected cache value %T", entry.Value)})
	}
	res := &Result{CauseList: list.Clone(), Cached: entry.Freshness == cache.FreshnessCached}
	if list.Partial {
		res.Message = fmt.Sprintf("%d of %d sources failed", len(list.Failures), len(o.adapters))
	}
	return finish(start, res, nil)
}

// CheckCaseInCauseList reports whether a case is listed for hearing on date.
func (o *Orchestrator) CheckCaseInCauseList(ctx context.Context, caseType, caseNumber string, year int, date time.Time) (*Result, error) {
	start := time.Now()
	q, err := caseQuery(caseType, caseNumber, year)
	if err != nil {
		return finish(start, &Result{}, err)
	}

	res, err := o.FetchCauseList(ctx, date, "")
	if err != nil {
		return finish(start, &Result{}, err)
	}

	matches := MatchCase(res.CauseList.Entries, q.CaseType, q.CaseNumber, q.Year)
	listing := &Listing{
		CaseType:    q.CaseType,
		CaseNumber:  q.CaseNumber,
		Year:        q.Year,
		HearingDate: res.CauseList.HearingDate,
		Found:       len(matches) > 0,
		Entries:     matches,
	}
	if listing.Entries == nil {
		listing.Entries = []models.CauseListEntry{}
	}

	out := &Result{Listing: listing, Cached: res.Cached}
	if !listing.Found {
		out.Message = "case not listed on this date"
	}
	return finish(start, out, nil)
}

// coalesce runs extract as the single leader for fp, or waits for the leader
// already running. The leader's extraction is detached from the caller that
// started it and ends only at the query deadline, so waiters still get the
// result when that caller goes away. A successful value is cached for the
// returned ttl.
func (o *Orchestrator) coalesce(ctx context.Context, fp cache.Fingerprint, extract func(ctx context.Context) (any, time.Duration, error)) (*cache.Entry, error) {
	token, waiter := o.cache.BeginInflight(fp)
	if waiter == nil {
		go o.lead(context.WithoutCancel(ctx), token, extract)
		waiter = token.Waiter()
	} else {
		o.logger.Debug("Joining in-flight extraction", "fingerprint", fp)
	}

	entry, err := waiter.Wait(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil, timeoutError(err)
	}
	return entry, err
}

// lead performs one extraction and completes token with its outcome.
func (o *Orchestrator) lead(ctx context.Context, token *cache.Token, extract func(ctx context.Context) (any, time.Duration, error)) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.QueryTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Extraction panicked", "fingerprint", token.Key(), "panic", r)
			o.cache.CompleteInflight(token, nil, &Error{Kind: KindSystem, Reason: ReasonSystem, Message: "extraction aborted"})
		}
	}()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.cache.CompleteInflight(token, nil, timeoutError(err))
		return
	}
	value, ttl, err := func() (any, time.Duration, error) {
		defer o.sem.Release(1)
		return extract(ctx)
	}()

	if err != nil {
		o.cache.CompleteInflight(token, nil, err)
		return
	}

	entry := o.cache.Put(token.Key(), cloneValue(value), ttl)
	o.cache.CompleteInflight(token, entry, nil)
}

func (o *Orchestrator) extractCase(ctx context.Context, q portal.CaseQuery) (*models.CaseRecord, error) {
	if len(o.adapters) == 0 {
		return nil, &Error{Kind: KindSystem, Reason: ReasonNoAdapters, Message: "no portal adapters configured"}
	}

	var failures []models.SourceFailure
	var found []*portal.RawCaseData

	for _, a := range o.adapters {
		raw, err := runAdapter(ctx, o, a, func(ctx context.Context, sess *portal.Session) (*portal.RawCaseData, error) {
			return a.SearchCase(ctx, q, sess)
		})
		if err == nil {
			o.logger.Info("Case extracted", "portal", a.Name(), "query", q.String())
			found = append(found, raw)
			if !o.opts.AggregateCaseSources {
				break
			}
			continue
		}
		if ctx.Err() != nil {
			if len(found) > 0 {
				break
			}
			return nil, timeoutError(ctx.Err())
		}
		failures = append(failures, sourceFailure(a, err))
	}

	if len(found) == 0 {
		err := exhausted(failures)
		o.logger.Warn("Case extraction exhausted all sources", "query", q.String(), "reason", err.Reason)
		return nil, err
	}

	now := o.cache.Now()
	rec := NormalizeCase(found[0], q, now)
	for _, raw := range found[1:] {
		mergeCase(rec, NormalizeCase(raw, q, now))
	}
	return rec, nil
}

func (o *Orchestrator) extractCauseList(ctx context.Context, q portal.CauseListQuery) (*models.CauseList, error) {
	if len(o.adapters) == 0 {
		return nil, &Error{Kind: KindSystem, Reason: ReasonNoAdapters, Message: "no portal adapters configured"}
	}

	results := make([]*portal.RawCauseListData, len(o.adapters))
	errs := make([]error, len(o.adapters))

	var g errgroup.Group
	for i, a := range o.adapters {
		g.Go(func() error {
			results[i], errs[i] = runAdapter(ctx, o, a, func(ctx context.Context, sess *portal.Session) (*portal.RawCauseListData, error) {
				return a.FetchCauseList(ctx, q, sess)
			})
			return nil
		})
	}
	_ = g.Wait()

	list := &models.CauseList{
		HearingDate: q.Date,
		CourtFilter: q.Court,
		Entries:     []models.CauseListEntry{},
		FetchedAt:   o.cache.Now(),
	}

	succeeded := 0
	for i, a := range o.adapters {
		if errs[i] != nil {
			list.Failures = append(list.Failures, sourceFailure(a, errs[i]))
			continue
		}
		succeeded++
		list.Entries = append(list.Entries, NormalizeCauseList(results[i])...)
	}

	if succeeded == 0 {
		if ctx.Err() != nil {
			return nil, timeoutError(ctx.Err())
		}
		err := exhausted(list.Failures)
		o.logger.Warn("Cause list unavailable from all sources", "date", q.Date.Format("2006-01-02"), "reason", err.Reason)
		return nil, err
	}

	list.Entries = FilterCourt(list.Entries, q.Court)
	list.TotalCases = len(list.Entries)
	list.CourtWiseCount = models.CountByCourt(list.Entries)
	list.Partial = len(list.Failures) > 0

	o.logger.Info("Cause list extracted",
		"date", q.Date.Format("2006-01-02"),
		"court", q.Court,
		"entries", list.TotalCases,
		"failed_sources", len(list.Failures),
	)
	return list, nil
}

// outcome is the typed result of one adapter attempt.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeCaptcha
	outcomeTransient
	outcomeFinal
	outcomeAborted
)

func outcomeOf(ctx context.Context, err error) outcome {
	if err == nil {
		return outcomeSuccess
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return outcomeAborted
	}
	switch portal.KindOf(err) {
	case portal.KindCaptchaRequired:
		return outcomeCaptcha
	case portal.KindTransient:
		return outcomeTransient
	case portal.KindNotFound, portal.KindParseFailed, portal.KindFatal:
		return outcomeFinal
	}
	if errors.Is(err, scraper.ErrTransport) {
		return outcomeTransient
	}
	return outcomeFinal
}

// runAdapter makes up to MaxAttempts sequential attempts against one adapter.
// Captcha challenges are solved once per attempt; transient failures back off
// and rotate identity. Not-found, parse and fatal failures end the adapter.
func runAdapter[T any](ctx context.Context, o *Orchestrator, a portal.Adapter, call func(context.Context, *portal.Session) (T, error)) (T, error) {
	var zero T
	var last error

	for attempt := 0; attempt < o.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := o.opts.Backoff.Delay(attempt - 1)
			o.logger.Debug("Backing off before retry", "portal", a.Name(), "attempt", attempt+1, "delay_ms", delay.Milliseconds())
			if err := o.sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		sess := &portal.Session{Transport: o.transport, Identity: o.pool.Next()}
		unlock, err := o.sessions.lock(ctx, sess.Identity.Name+"|"+a.Name())
		if err != nil {
			return zero, err
		}
		v, err := func() (T, error) {
			defer unlock()
			v, err := call(ctx, sess)
			if outcomeOf(ctx, err) == outcomeCaptcha {
				return answerCaptcha(ctx, o, a, sess, err, call)
			}
			return v, err
		}()

		switch outcomeOf(ctx, err) {
		case outcomeSuccess:
			return v, nil
		case outcomeAborted:
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, err
		case outcomeTransient:
			o.logger.Warn("Transient portal failure",
				"portal", a.Name(),
				"attempt", attempt+1,
				"identity", sess.Identity.Name,
				"error", err,
			)
			last = err
		default:
			o.logger.Info("Portal gave up", "portal", a.Name(), "kind", string(portal.KindOf(err)), "error", err)
			return zero, err
		}
	}
	return zero, last
}

// sessionLocks serialises attempts that share one identity's cookie jar on
// one portal. Portals keep a single pending captcha per server session, so
// two overlapping attempts would invalidate each other's answer.
type sessionLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func (l *sessionLocks) lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]chan struct{})
	}
	ch, ok := l.held[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.held[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// answerCaptcha solves the challenge in err and resubmits once. A failed solve
// or a second challenge counts as a transient failure.
func answerCaptcha[T any](ctx context.Context, o *Orchestrator, a portal.Adapter, sess *portal.Session, err error, call func(context.Context, *portal.Session) (T, error)) (T, error) {
	var zero T
	var pe *portal.Error
	if !errors.As(err, &pe) || pe.Challenge == nil {
		return zero, &portal.Error{Kind: portal.KindTransient, Portal: a.Name(), Message: "captcha required without a challenge", Err: err}
	}
	if o.solver == nil {
		return zero, &portal.Error{Kind: portal.KindFatal, Portal: a.Name(), Message: "captcha solver not configured"}
	}

	answer, serr := o.solver.Solve(ctx, pe.Challenge, sess.Transport, sess.Identity)
	if serr != nil {
		return zero, &portal.Error{Kind: portal.KindTransient, Portal: a.Name(), Message: "captcha solve failed", Err: serr}
	}

	sess.Answer = &portal.Answer{Challenge: pe.Challenge, Text: answer}
	v, err := call(ctx, sess)
	if portal.KindOf(err) == portal.KindCaptchaRequired {
		return zero, &portal.Error{Kind: portal.KindTransient, Portal: a.Name(), Message: "captcha answer rejected", Err: err}
	}
	return v, err
}

func sourceFailure(a portal.Adapter, err error) models.SourceFailure {
	reason := string(portal.KindOf(err))
	switch {
	case reason == "" && errors.Is(err, scraper.ErrTransport):
		reason = string(KindTransient)
	case reason == "":
		reason = reasonFatal
	}
	return models.SourceFailure{Portal: a.Name(), Reason: reason, Message: err.Error()}
}

// mergeCase fills gaps in dst from a lower priority source and appends its
// judgments.
func mergeCase(dst, src *models.CaseRecord) {
	fill := func(d *string, s string) {
		if *d == "" {
			*d = s
		}
	}
	fill(&dst.CourtName, src.CourtName)
	fill(&dst.PartiesPetitioner, src.PartiesPetitioner)
	fill(&dst.PartiesRespondent, src.PartiesRespondent)
	fill(&dst.CaseStatus, src.CaseStatus)
	fill(&dst.JudgeName, src.JudgeName)
	fill(&dst.CourtHall, src.CourtHall)
	fill(&dst.CaseCategory, src.CaseCategory)

	if dst.FilingDate == nil {
		dst.FilingDate = src.FilingDate
	}
	if dst.RegistrationDate == nil {
		dst.RegistrationDate = src.RegistrationDate
	}
	if dst.NextHearingDate == nil {
		dst.NextHearingDate = src.NextHearingDate
	}

	seen := make(map[string]bool, len(dst.Judgments))
	for _, j := range dst.Judgments {
		seen[j.ID] = true
	}
	for _, j := range src.Judgments {
		if !seen[j.ID] {
			dst.Judgments = append(dst.Judgments, j)
		}
	}
}

func caseQuery(caseType, caseNumber string, year int) (portal.CaseQuery, error) {
	q := portal.CaseQuery{
		CaseType:   cache.NormalizeCaseType(caseType),
		CaseNumber: strings.TrimSpace(caseNumber),
		Year:       year,
	}
	switch {
	case q.CaseType == "":
		return q, invalidInput("case type is required")
	case q.CaseNumber == "":
		return q, invalidInput("case number is required")
	case year < 1950 || year > 2100:
		return q, invalidInput("year %d out of range", year)
	}
	return q, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *models.CaseRecord:
		return t.Clone()
	case *models.CauseList:
		return t.Clone()
	}
	return v
}

func finish(start time.Time, res *Result, err error) (*Result, error) {
	res.ExecutionTimeMs = time.Since(start).Milliseconds()
	if err == nil {
		res.Success = true
		return res, nil
	}

	res.Success = false
	res.Reason = ReasonOf(err)
	var e *Error
	if errors.As(err, &e) {
		res.Message = e.Message
	} else {
		res.Message = err.Error()
	}
	return res, err
}
