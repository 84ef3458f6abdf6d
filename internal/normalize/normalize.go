// Package normalize はダウンローダが残したサイドカーJSONを
// ソース横断の統一エンティティに正規化する。
//
// 各ソースのフィールド名・時刻形式・ID体系の差異はすべてこのパッケージで
// 吸収し、以降の層はソース種別を意識しない。必須フィールドの欠落は
// 既定では警告ログを残してゼロ値で続行し、strictモードではエラーにする。
package normalize

import (
	"fmt"
	"log/slog"

	"github.com/kanzoderg/MyTimeline/internal/fetchmeta"
	"github.com/kanzoderg/MyTimeline/internal/store"
)

// Normalizer はサイドカーJSONからのエンティティ正規化を行う。
type Normalizer struct {
	store  *store.Store
	reddit *fetchmeta.RedditClient
	strict bool
	logger *slog.Logger
}

// New はNormalizerを生成する。
// strictを立てると必須フィールドの欠落をエラーとして扱う。
func New(s *store.Store, reddit *fetchmeta.RedditClient, strict bool, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		store:  s,
		reddit: reddit,
		strict: strict,
		logger: logger,
	}
}

// missingField は必須フィールドの欠落を処理する。
// strictモードではエラーを返し、それ以外では警告を残してnilを返す。
func (n *Normalizer) missingField(entity, id, field string) error {
	if n.strict {
		return fmt.Errorf("%sのサイドカーに必須フィールドがありません (id=%s, field=%s)", entity, id, field)
	}
	n.logger.Warn("サイドカーにフィールドがありません。最新のダウンローダで再取得すると解消します",
		slog.String("entity", entity),
		slog.String("id", id),
		slog.String("field", field))
	return nil
}
