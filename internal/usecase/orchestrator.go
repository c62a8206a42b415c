package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"NordicIngest/internal/collector"
	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

// Options tune one orchestrator cycle. Zero values fall back to the
// defaults the production deployment runs with.
type Options struct {
	BatchSize       int
	BatchPause      time.Duration
	DownloadLimit   int
	BrokenThreshold int
	Lookback        time.Duration
	CycleBudget     time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 3
	}
	if o.BatchPause <= 0 {
		o.BatchPause = 2 * time.Second
	}
	if o.DownloadLimit <= 0 {
		o.DownloadLimit = 20
	}
	if o.BrokenThreshold <= 0 {
		o.BrokenThreshold = 5
	}
	if o.Lookback <= 0 {
		o.Lookback = 90 * 24 * time.Hour
	}
	if o.CycleBudget <= 0 {
		o.CycleBudget = 30 * time.Minute
	}
	return o
}

// OrchestratorDeps wires all driven adapters into the acquisition cycle.
type OrchestratorDeps struct {
	Collectors *collector.Registry
	Sources    ports.SourceStore
	Catalog    ports.CatalogStore
	Calendar   ports.CalendarStore
	Resolver   ports.EntityResolver
	Classifier ports.Classifier
	Extractor  ports.EventExtractor
	Downloader ports.Downloader
	Escalator  ports.Escalator
	Notifier   ports.Notifier
	Clock      ports.Clock
	Logger     *slog.Logger
	Options    Options
}

// Orchestrator runs discovery, admission, download and escalation as one
// cycle over the configured sources. All collaborators are injected; the
// orchestrator holds no global state.
type Orchestrator struct {
	collectors *collector.Registry
	sources    ports.SourceStore
	catalog    ports.CatalogStore
	calendar   ports.CalendarStore
	resolver   ports.EntityResolver
	classifier ports.Classifier
	extractor  ports.EventExtractor
	downloader ports.Downloader
	escalator  ports.Escalator
	notifier   ports.Notifier
	clock      ports.Clock
	logger     *slog.Logger
	opts       Options

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewOrchestrator constructs the cycle runner.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		collectors: deps.Collectors,
		sources:    deps.Sources,
		catalog:    deps.Catalog,
		calendar:   deps.Calendar,
		resolver:   deps.Resolver,
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		downloader: deps.Downloader,
		escalator:  deps.Escalator,
		notifier:   deps.Notifier,
		clock:      deps.Clock,
		logger:     logger.With("component", "orchestrator"),
		opts:       deps.Options.withDefaults(),
		limiters:   map[string]*rate.Limiter{},
	}
}

// RunCycle executes one full acquisition pass: batched discovery across the
// active sources, admission with event extraction, a bounded download sweep,
// escalation of failures, and report emission. One misbehaving source never
// stops the others.
func (o *Orchestrator) RunCycle(ctx context.Context, kinds ...domain.SourceKind) domain.RunReport {
	ctx, cancel := context.WithTimeout(ctx, o.opts.CycleBudget)
	defer cancel()

	report := domain.RunReport{StartedAt: o.clock.Now()}

	candidates, events := o.discover(ctx, &report, kinds)
	admitted := o.admit(ctx, &report, candidates)
	o.storeEvents(ctx, &report, events)
	o.downloadSweep(ctx, &report, admitted)

	report.FinishedAt = o.clock.Now()
	o.publish(ctx, report)
	return report
}

// RunSweep drains pending downloads without rediscovering anything. The
// scheduler runs it on its own cadence between full cycles.
func (o *Orchestrator) RunSweep(ctx context.Context) domain.RunReport {
	ctx, cancel := context.WithTimeout(ctx, o.opts.CycleBudget)
	defer cancel()

	report := domain.RunReport{StartedAt: o.clock.Now()}
	o.downloadSweep(ctx, &report, nil)
	report.FinishedAt = o.clock.Now()
	o.publish(ctx, report)
	return report
}

type admittedEntry struct {
	entry domain.CatalogEntry
	cand  domain.CandidateDocument
}

// discover walks the active sources in small batches, pausing between
// batches and rate limiting each source individually.
func (o *Orchestrator) discover(ctx context.Context, report *domain.RunReport, kinds []domain.SourceKind) ([]domain.CandidateDocument, []domain.CandidateEvent) {
	sources, err := o.sources.ListActive(ctx, kinds...)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list sources: %v", err))
		return nil, nil
	}

	since := o.clock.Now().Add(-o.opts.Lookback)
	var candidates []domain.CandidateDocument
	var events []domain.CandidateEvent

	for i := 0; i < len(sources); i += o.opts.BatchSize {
		if i > 0 {
			select {
			case <-ctx.Done():
				report.Errors = append(report.Errors, "discovery aborted: "+ctx.Err().Error())
				return candidates, events
			case <-time.After(o.opts.BatchPause):
			}
		}

		end := min(i+o.opts.BatchSize, len(sources))
		outcomes := make([]sourceOutcome, end-i)
		var wg sync.WaitGroup
		for j, src := range sources[i:end] {
			wg.Add(1)
			go func(j int, src domain.CollectionSource) {
				defer wg.Done()
				outcomes[j] = o.collectOne(ctx, src, since)
			}(j, src)
		}
		wg.Wait()

		for _, out := range outcomes {
			report.Sources = append(report.Sources, out.report)
			report.Found += out.report.Found
			candidates = append(candidates, out.candidates...)
			events = append(events, out.events...)
		}
	}

	return candidates, events
}

type sourceOutcome struct {
	report     domain.SourceReport
	candidates []domain.CandidateDocument
	events     []domain.CandidateEvent
}

// collectOne runs a single source with panic isolation and updates its
// health record.
func (o *Orchestrator) collectOne(ctx context.Context, src domain.CollectionSource, since time.Time) (out sourceOutcome) {
	out.report = domain.SourceReport{SourceID: src.ID, Kind: src.Kind}

	defer func() {
		if r := recover(); r != nil {
			out.report.Err = fmt.Sprintf("panic: %v", r)
			o.logger.Error("collector panicked", "source", src.ID, "panic", r)
			o.recordFailure(ctx, src.ID)
		}
	}()

	c, err := o.collectors.Resolve(src.Kind)
	if err != nil {
		out.report.Err = err.Error()
		o.recordFailure(ctx, src.ID)
		return out
	}

	if err := o.limiter(src).Wait(ctx); err != nil {
		out.report.Err = "rate wait: " + err.Error()
		return out
	}

	result, err := c.Collect(ctx, src, since)
	if err != nil {
		out.report.Err = err.Error()
		o.logger.Warn("source collection failed", "source", src.ID, "kind", src.Kind, "error", err)
		o.recordFailure(ctx, src.ID)
		return out
	}

	out.candidates = result.Candidates
	out.events = result.Events
	out.report.Found = len(result.Candidates)
	out.report.Events = len(result.Events)

	if err := o.sources.RecordSuccess(ctx, src.ID, o.clock.Now()); err != nil {
		o.logger.Error("record source success", "source", src.ID, "error", err)
	}
	return out
}

func (o *Orchestrator) recordFailure(ctx context.Context, sourceID string) {
	if err := o.sources.RecordFailure(ctx, sourceID, o.opts.BrokenThreshold); err != nil {
		o.logger.Error("record source failure", "source", sourceID, "error", err)
	}
}

func (o *Orchestrator) limiter(src domain.CollectionSource) *rate.Limiter {
	o.limiterMu.Lock()
	defer o.limiterMu.Unlock()
	if l, ok := o.limiters[src.ID]; ok {
		return l
	}
	rps := src.RatePerSecond
	if rps <= 0 {
		rps = 1
	}
	l := rate.NewLimiter(rate.Limit(rps), 1)
	o.limiters[src.ID] = l
	return l
}

// admit resolves each candidate's entity, classifies untyped candidates and
// admits them into the catalog. Duplicates and unresolved hints are counted
// but never abort the cycle; extracted text is also mined for events.
func (o *Orchestrator) admit(ctx context.Context, report *domain.RunReport, candidates []domain.CandidateDocument) []admittedEntry {
	now := o.clock.Now()
	var admitted []admittedEntry

	for _, cand := range candidates {
		entity, err := o.resolver.Resolve(cand.EntityHint)
		if err != nil {
			if errors.Is(err, domain.ErrEntityNotFound) {
				report.Unresolved++
				o.logger.Debug("unresolved entity hint", "hint", cand.EntityHint, "url", cand.ArtifactURL)
				continue
			}
			report.Errors = append(report.Errors, fmt.Sprintf("resolve %q: %v", cand.EntityHint, err))
			continue
		}

		if cand.DocumentType == "" || cand.DocumentType == domain.TypeUnknown {
			cand.DocumentType = o.classifier.Classify(cand.Title, cand.CalendarHint)
		}

		entry, created, err := o.catalog.Admit(ctx, entity.ID, cand)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("admit %s: %v", cand.ArtifactURL, err))
			continue
		}
		if !created {
			report.Duplicates++
			continue
		}
		admitted = append(admitted, admittedEntry{entry: entry, cand: cand})

		if o.extractor != nil && cand.CalendarHint != "" {
			events, skips := o.extractor.ExtractEvents(entity.ID, cand.CalendarHint, cand.PageURL, now)
			report.EventsSkipped += len(skips)
			for _, ev := range events {
				o.upsertEvent(ctx, report, ev)
			}
		}
	}

	return admitted
}

// storeEvents persists events collectors produced directly, resolving the
// entity hint when the collector did not carry an entity id.
func (o *Orchestrator) storeEvents(ctx context.Context, report *domain.RunReport, events []domain.CandidateEvent) {
	for _, ev := range events {
		if ev.EntityID == "" {
			entity, err := o.resolver.Resolve(ev.EntityHint)
			if err != nil {
				report.Unresolved++
				continue
			}
			ev.EntityID = entity.ID
		}
		o.upsertEvent(ctx, report, ev)
	}
}

func (o *Orchestrator) upsertEvent(ctx context.Context, report *domain.RunReport, ev domain.CandidateEvent) {
	created, err := o.calendar.Upsert(ctx, domain.CalendarEvent{
		EntityID:    ev.EntityID,
		EventType:   ev.EventType,
		EventDate:   ev.EventDate,
		EventTime:   ev.EventTime,
		Title:       ev.Title,
		Amount:      ev.Amount,
		Currency:    ev.Currency,
		RecordDate:  ev.RecordDate,
		PaymentDate: ev.PaymentDate,
		WebcastURL:  ev.WebcastURL,
		SourceURL:   ev.SourceURL,
		Confirmed:   ev.Confirmed,
		CreatedAt:   o.clock.Now(),
	})
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("store event %s/%s: %v", ev.EntityID, ev.EventType, err))
		return
	}
	if created {
		report.EventsStored++
	}
}

// downloadSweep queues the newly admitted entries and drains a bounded
// slice of everything pending, escalating what ends up failed.
func (o *Orchestrator) downloadSweep(ctx context.Context, report *domain.RunReport, admitted []admittedEntry) {
	if len(admitted) > 0 {
		ids := make([]string, len(admitted))
		for i, a := range admitted {
			ids[i] = a.entry.ID
		}
		if _, err := o.catalog.MarkForDownload(ctx, ids); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("mark for download: %v", err))
			return
		}
	}

	pending, err := o.catalog.ListByStatus(ctx, domain.StatusPending, o.opts.DownloadLimit, 0)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list pending: %v", err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, "download sweep aborted: "+ctx.Err().Error())
			return
		}
		report.DownloadsAttempted++
		result := o.downloader.Download(ctx, entry)
		switch result.Status {
		case domain.StatusDownloaded:
			report.DownloadsSucceeded++
		case domain.StatusFailed:
			report.DownloadsFailed++
			o.escalate(ctx, report, entry, result)
		default:
			if result.Err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("download %s: %v", entry.ID, result.Err))
			}
		}
	}
}

func (o *Orchestrator) escalate(ctx context.Context, report *domain.RunReport, entry domain.CatalogEntry, result domain.DownloadResult) {
	if o.escalator == nil {
		return
	}
	reason := "download failed"
	if result.Err != nil {
		reason = result.Err.Error()
	}
	if _, err := o.escalator.Escalate(ctx, entry, []string{"direct_download"}, reason); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("escalate %s: %v", entry.ID, err))
		return
	}
	report.ManualTasksCreated++
}

func (o *Orchestrator) publish(ctx context.Context, report domain.RunReport) {
	o.logger.Info("cycle finished",
		"duration", report.Duration().Round(time.Millisecond),
		"sources", len(report.Sources),
		"found", report.Found,
		"duplicates", report.Duplicates,
		"unresolved", report.Unresolved,
		"downloads_ok", report.DownloadsSucceeded,
		"downloads_failed", report.DownloadsFailed,
		"tasks_created", report.ManualTasksCreated,
		"events_stored", report.EventsStored,
		"errors", len(report.Errors))

	if o.notifier == nil {
		return
	}
	if err := o.notifier.PublishReport(ctx, report); err != nil {
		o.logger.Error("publish run report", "error", err)
	}
}
