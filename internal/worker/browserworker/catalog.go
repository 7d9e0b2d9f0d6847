package browserworker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/avitoscout/orchestrator/internal/browserdriver"
	"github.com/avitoscout/orchestrator/internal/domain"
)

// processCatalogTask implements the catalog status-action table,
// including proxy rotation with checkpoint preservation.
func (w *Worker) processCatalogTask(ctx context.Context, task *domain.CatalogTask) {
	proxy, err := w.acquireProxy(ctx)
	if err != nil {
		w.log.Warn("no proxy available for catalog task, returning to queue", "task_id", task.ID, "error", err)
		_ = w.catalogTasks.ReturnToQueue(ctx, task)
		return
	}

	stopHeartbeat := w.startCatalogHeartbeat(ctx, task.ID)
	defer stopHeartbeat()

	page := task.CheckpointPage
	rotations := 0

	for {
		result, err := w.driver.ParseCatalog(ctx, browserdriver.ParseCatalogRequest{
			ProxyID:   proxy.ID.String(),
			URL:       catalogURLFor(task),
			MaxPages:  w.cfg.CatalogMaxPages,
			StartPage: page,
			Sort:      "date",
			Condition: "new-only",
		})
		if err != nil {
			w.log.Error("parse_catalog transport error", "task_id", task.ID, "error", err)
			_ = w.proxies.Release(ctx, proxy.ID)
			_ = w.catalogTasks.ReturnToQueue(ctx, task)
			return
		}

		switch result.Status {
		case browserdriver.CatalogSuccess, browserdriver.CatalogEmpty:
			for _, l := range result.Listings {
				row := toDomainListing(task, l)
				if w.images != nil {
					row.ImageKeys = toJSONSlice(w.persistListingImages(ctx, l.AvitoItemID, l.ImageURLs))
				}
				_ = w.listings.UpsertListing(ctx, row)
			}
			_ = w.proxies.ResetErrors(ctx, proxy.ID)
			_ = w.proxies.Release(ctx, proxy.ID)
			if err := w.catalogTasks.Complete(ctx, task); err != nil {
				w.log.Error("failed to complete catalog task", "task_id", task.ID, "error", err)
			}
			return

		case browserdriver.CatalogProxyBlocked, browserdriver.CatalogProxyAuthRequired:
			_ = w.proxies.Block(ctx, proxy.ID, string(result.Status))
			if result.ResumePageNumber > 0 {
				page = result.ResumePageNumber
			}
			_ = w.catalogTasks.SetCheckpoint(ctx, task.ID, page)
			rotations++
			if rotations >= w.cfg.RotationBudget {
				_ = w.catalogTasks.ReturnToQueue(ctx, task)
				return
			}
			next, err := w.acquireProxy(ctx)
			if err != nil {
				_ = w.catalogTasks.ReturnToQueue(ctx, task)
				return
			}
			proxy = next
			continue

		case browserdriver.CatalogCaptchaFailed:
			_ = w.proxies.Release(ctx, proxy.ID)
			_ = w.catalogTasks.SetCheckpoint(ctx, task.ID, page)
			_ = w.catalogTasks.ReturnToQueue(ctx, task)
			return

		case browserdriver.CatalogLoadTimeout:
			_, _ = w.proxies.IncrementError(ctx, proxy.ID)
			_ = w.catalogTasks.ReturnToQueue(ctx, task)
			return

		case browserdriver.CatalogServerUnavailable:
			_ = w.catalogTasks.ReturnToQueue(ctx, task)
			return

		case browserdriver.CatalogPageNotDetected, browserdriver.CatalogWrongPage:
			_ = w.proxies.Release(ctx, proxy.ID)
			count, _ := w.catalogTasks.IncrementWrongPageCount(ctx, task.ID)
			if count >= w.cfg.WrongPageLimit {
				_ = w.catalogTasks.Fail(ctx, task, string(result.Status))
				return
			}
			_ = w.catalogTasks.ReturnToQueue(ctx, task)
			return

		default:
			_ = w.proxies.Release(ctx, proxy.ID)
			_ = w.catalogTasks.ReturnToQueue(ctx, task)
			return
		}
	}
}

func (w *Worker) startCatalogHeartbeat(ctx context.Context, taskID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(w.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = w.catalogTasks.Heartbeat(ctx, taskID)
			}
		}
	}()
	return func() { close(done) }
}

func catalogURLFor(task *domain.CatalogTask) string {
	return "https://www.avito.ru/all?q=" + task.ArticulumID.String()
}

func toDomainListing(task *domain.CatalogTask, l browserdriver.Listing) *domain.CatalogListing {
	return &domain.CatalogListing{
		ArticulumID:   task.ArticulumID,
		AvitoItemID:   l.AvitoItemID,
		Title:         l.Title,
		Price:         l.Price,
		Snippet:       l.Snippet,
		SellerName:    l.SellerName,
		SellerReviews: l.SellerReviews,
		ImageKeys:     toJSONSlice(l.ImageURLs),
	}
}

// persistListingImages downloads every thumbnail URL and re-uploads it to
// the blob store under a key derived from the listing ID, returning the
// blob keys that succeeded. Failures are logged and skipped per-image so
// one bad URL never drops the whole listing.
func (w *Worker) persistListingImages(ctx context.Context, avitoItemID string, urls []string) []string {
	keys := make([]string, 0, len(urls))
	client := &http.Client{Timeout: 15 * time.Second}
	for i, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		key := fmt.Sprintf("listings/%s/%d.jpg", avitoItemID, i)
		if err := w.downloadAndUpload(ctx, client, u, key); err != nil {
			w.log.Warn("failed to persist listing image", "avito_item_id", avitoItemID, "url", u, "error", err)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func (w *Worker) downloadAndUpload(ctx context.Context, client *http.Client, url, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return w.images.UploadListingImage(ctx, key, resp.Body)
}

func toJSONSlice(urls []string) datatypes.JSONSlice[string] {
	var out []string
	for _, u := range urls {
		if strings.TrimSpace(u) != "" {
			out = append(out, u)
		}
	}
	return datatypes.JSONSlice[string](out)
}
