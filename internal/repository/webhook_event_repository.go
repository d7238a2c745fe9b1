package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type WebhookEventRepository interface {
	//処理済みかどうか
	Exists(ctx context.Context, eventID string) (bool, error)

	//未登録なら挿入してtrue。既に同じevent_idがあればfalse（重複配送）。
	InsertIfAbsent(ctx context.Context, ev model.WebhookEvent) (bool, error)

	//保持期間を過ぎた行を削除して件数を返す
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
