package browserworker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avitoscout/orchestrator/internal/browserdriver"
	"github.com/avitoscout/orchestrator/internal/domain"
	"gorm.io/datatypes"
)

// usedConditionMarkers are the "condition" values treated as second-hand:
// detail pages in this state are invalidated, never persisted.
var usedConditionMarkers = []string{"used", "б/у", "бу", "second-hand", "secondhand"}

// processObjectTask navigates to the listing, parses the card, invalidates
// used/removed listings, and otherwise persists object_data and completes.
func (w *Worker) processObjectTask(ctx context.Context, task *domain.ObjectTask) {
	proxy, err := w.acquireProxy(ctx)
	if err != nil {
		w.log.Warn("no proxy available for object task, returning to queue", "task_id", task.ID, "error", err)
		_ = w.objectTasks.ReturnToQueue(ctx, task)
		return
	}

	stopHeartbeat := w.startObjectHeartbeat(ctx, task.ID)
	defer stopHeartbeat()

	rotations := 0
	for {
		result, err := w.driver.ParseCard(ctx, browserdriver.ParseCardRequest{
			ProxyID: proxy.ID.String(),
			URL:     objectURLFor(task),
		})
		if err != nil {
			w.log.Error("parse_card transport error", "task_id", task.ID, "error", err)
			_ = w.proxies.Release(ctx, proxy.ID)
			_ = w.objectTasks.Fail(ctx, task, err.Error())
			return
		}

		switch result.Status {
		case browserdriver.CardSuccess:
			if isUsedCondition(result.Data.Characteristics) {
				_ = w.proxies.ResetErrors(ctx, proxy.ID)
				_ = w.proxies.Release(ctx, proxy.ID)
				_ = w.objectTasks.Invalidate(ctx, task, "listing condition is used")
				return
			}
			row := &domain.ObjectData{
				ArticulumID:     task.ArticulumID,
				AvitoItemID:     task.AvitoItemID,
				Title:           result.Data.Title,
				Price:           result.Data.Price,
				Description:     result.Data.Description,
				ViewCount:       result.Data.ViewCount,
				Characteristics: toJSONMap(result.Data.Characteristics),
			}
			if err := w.objectData.InsertWithDelta(ctx, row); err != nil {
				w.log.Error("failed to persist object data", "task_id", task.ID, "error", err)
			}
			_ = w.proxies.ResetErrors(ctx, proxy.ID)
			_ = w.proxies.Release(ctx, proxy.ID)
			if err := w.objectTasks.Complete(ctx, task); err != nil {
				w.log.Error("failed to complete object task", "task_id", task.ID, "error", err)
			}
			return

		case browserdriver.CardProxyBlocked:
			_ = w.proxies.Block(ctx, proxy.ID, string(result.Status))
			rotations++
			if rotations >= w.cfg.RotationBudget {
				_ = w.objectTasks.Fail(ctx, task, "rotation budget exhausted")
				return
			}
			next, err := w.acquireProxy(ctx)
			if err != nil {
				_ = w.objectTasks.Fail(ctx, task, "no proxy available after block")
				return
			}
			proxy = next
			continue

		case browserdriver.CardCaptchaFailed:
			_ = w.proxies.Release(ctx, proxy.ID)
			if err := w.objectTasks.ReturnToQueue(ctx, task); err != nil {
				w.log.Error("failed to return object task to queue after captcha", "task_id", task.ID, "error", err)
			}
			return

		case browserdriver.CardNotFound:
			_ = w.proxies.ResetErrors(ctx, proxy.ID)
			_ = w.proxies.Release(ctx, proxy.ID)
			_ = w.objectTasks.Invalidate(ctx, task, "listing not found")
			return

		case browserdriver.CardServerUnavailable:
			_ = w.proxies.Release(ctx, proxy.ID)
			if err := w.objectTasks.ReturnToQueue(ctx, task); err != nil {
				w.log.Error("failed to return object task to queue after server error", "task_id", task.ID, "error", err)
			}
			return

		case browserdriver.CardPageNotDetected, browserdriver.CardWrongPage:
			_ = w.proxies.Release(ctx, proxy.ID)
			_ = w.objectTasks.Fail(ctx, task, string(result.Status))
			return

		default:
			_ = w.proxies.Release(ctx, proxy.ID)
			_ = w.objectTasks.Fail(ctx, task, string(result.Status))
			return
		}
	}
}

func (w *Worker) startObjectHeartbeat(ctx context.Context, taskID uuid.UUID) func() {
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
				_ = w.objectTasks.Heartbeat(ctx, taskID)
			}
		}
	}()
	return func() { close(done) }
}

func objectURLFor(task *domain.ObjectTask) string {
	return "https://www.avito.ru/items/" + task.AvitoItemID
}

func isUsedCondition(characteristics map[string]string) bool {
	for key, value := range characteristics {
		if !strings.Contains(strings.ToLower(key), "condition") && !strings.Contains(strings.ToLower(key), "состояние") {
			continue
		}
		lowered := strings.ToLower(value)
		for _, marker := range usedConditionMarkers {
			if strings.Contains(lowered, marker) {
				return true
			}
		}
	}
	return false
}

func toJSONMap(characteristics map[string]string) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(characteristics))
	for k, v := range characteristics {
		out[k] = v
	}
	return out
}
