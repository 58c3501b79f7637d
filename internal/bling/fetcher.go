package bling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/velodata/blingsync/internal/clock"
	"github.com/velodata/blingsync/internal/config"
	obsmetrics "github.com/velodata/blingsync/internal/observability/metrics"
	"go.uber.org/zap"
)

// ErrExtractionAborted marks a page that could not be retrieved after all
// retries. A missing page invalidates the whole extraction: the dedup-based
// termination below assumes the page sequence is complete.
var ErrExtractionAborted = errors.New("bling: extraction aborted")

// Record is one list-level entity with its upstream identifier.
type Record struct {
	ID       int64
	Document json.RawMessage
}

// Fetcher walks every page of a collection resource with bounded retries,
// rate-limit delays, and duplicate-safe accumulation.
type Fetcher struct {
	client *Client
	clock  clock.Clock
	log    *zap.Logger
}

func NewFetcher(client *Client, clk clock.Clock, log *zap.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		clock:  clk,
		log:    log.Named("fetcher"),
	}
}

// FetchAll retrieves all pages of resource, deduplicated by external id in
// first-seen order. Exhausting retries on any page returns an error wrapping
// ErrExtractionAborted; nothing fetched so far is persisted by this component.
func (f *Fetcher) FetchAll(ctx context.Context, resource string, cfg config.SyncConfig) ([]Record, error) {
	var (
		records    []Record
		seen       = make(map[int64]struct{})
		totalPages = 0
	)
	log := f.log.With(zap.String("resource", resource))
	pipeMetrics := obsmetrics.Pipeline()

	for page := 1; page <= cfg.MaxPages; page++ {
		parsed, err := f.fetchPage(ctx, resource, page, cfg)
		if err != nil {
			pipeMetrics.IncFetchAbort(resource)
			return nil, err
		}
		pipeMetrics.IncPageFetched(resource)

		if page == 1 {
			totalPages = parsed.TotalPages
			if totalPages < 1 {
				totalPages = 1
			}
			log.Info("extraction started",
				zap.Int("total_pages", parsed.TotalPages),
				zap.Int("total_records", parsed.Total),
			)
		}

		if len(parsed.Data) == 0 {
			log.Info("empty page, finishing", zap.Int("page", page))
			break
		}

		pageRecords, err := decodeRecords(parsed.Data)
		if err != nil {
			pipeMetrics.IncFetchAbort(resource)
			return nil, fmt.Errorf("%w: %s page %d: %v", ErrExtractionAborted, resource, page, err)
		}

		unseen := 0
		for _, rec := range pageRecords {
			if _, ok := seen[rec.ID]; ok {
				continue
			}
			seen[rec.ID] = struct{}{}
			records = append(records, rec)
			unseen++
		}

		log.Debug("page processed",
			zap.Int("page", page),
			zap.Int("records", len(pageRecords)),
			zap.Int("new", unseen),
		)

		if unseen == 0 {
			log.Info("no new records, finishing", zap.Int("page", page))
			break
		}
		// The API sometimes under-reports total_pages: only stop at the
		// official last page when it is also short.
		if page >= totalPages && len(pageRecords) < cfg.PageSize {
			log.Info("last reported page processed, finishing", zap.Int("page", page))
			break
		}

		if err := f.clock.Sleep(ctx, cfg.RequestDelay); err != nil {
			return nil, err
		}
	}

	log.Info("extraction finished", zap.Int("records", len(records)))
	return records, nil
}

// fetchPage attempts a single page up to cfg.MaxAttempts times. HTTP-level
// failures back off by a fixed 2x delay, transport failures exponentially.
func (f *Fetcher) fetchPage(ctx context.Context, resource string, page int, cfg config.SyncConfig) (*Page, error) {
	pipeMetrics := obsmetrics.Pipeline()
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		parsed, err := f.client.ListPage(ctx, resource, page, cfg.PageSize)
		if err == nil {
			return parsed, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		var statusErr *StatusError
		var delay time.Duration
		var reason string
		if errors.As(err, &statusErr) {
			delay = cfg.RequestDelay * 2
			reason = obsmetrics.RetryReasonHTTPStatus
		} else {
			delay = cfg.RequestDelay * (1 << attempt)
			reason = obsmetrics.RetryReasonTransport
		}

		f.log.Warn("page fetch failed",
			zap.String("resource", resource),
			zap.Int("page", page),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Error(err),
		)

		if attempt < cfg.MaxAttempts-1 {
			pipeMetrics.IncFetchRetry(resource, reason)
			if err := f.clock.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w: %s page %d after %d attempts: %v",
		ErrExtractionAborted, resource, page, cfg.MaxAttempts, lastErr)
}

// FetchDetail retrieves the full document for a single id. Unlike page
// fetches, exhausting retries degrades to not-found: one missing detail does
// not abort the batch, the caller falls back to the list-level document.
func (f *Fetcher) FetchDetail(ctx context.Context, resource string, id int64, cfg config.SyncConfig) (DetailResult, error) {
	pipeMetrics := obsmetrics.Pipeline()

	for attempt := 1; attempt <= cfg.DetailAttempts; attempt++ {
		res, err := f.client.Detail(ctx, resource, id)
		if err == nil {
			if res.Found {
				pipeMetrics.IncDetailLookup(resource, obsmetrics.DetailResultFound)
			} else {
				pipeMetrics.IncDetailLookup(resource, obsmetrics.DetailResultNotFound)
			}
			return res, nil
		}
		if ctx.Err() != nil {
			return DetailResult{}, ctx.Err()
		}

		f.log.Warn("detail fetch failed",
			zap.String("resource", resource),
			zap.Int64("id", id),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < cfg.DetailAttempts {
			if err := f.clock.Sleep(ctx, cfg.DetailDelay*time.Duration(attempt)); err != nil {
				return DetailResult{}, err
			}
		}
	}

	pipeMetrics.IncDetailLookup(resource, obsmetrics.DetailResultError)
	return DetailResult{Found: false}, nil
}

func decodeRecords(raw []json.RawMessage) ([]Record, error) {
	records := make([]Record, 0, len(raw))
	for i, doc := range raw {
		var idHolder struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(doc, &idHolder); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if idHolder.ID == 0 {
			return nil, fmt.Errorf("record %d: missing id", i)
		}
		records = append(records, Record{ID: idHolder.ID, Document: doc})
	}
	return records, nil
}
