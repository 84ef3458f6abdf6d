package normalize

import (
	"context"

	"github.com/kanzoderg/MyTimeline/internal/model"
	"github.com/kanzoderg/MyTimeline/internal/richtext"
)

// ResolveEmbed は投稿の引用参照をアーカイブ内のデータで解決する。
// 参照先のユーザーか投稿がアーカイブに存在しない場合は、URLのみを持つ
// External状態のEmbedを返す。参照を解釈できない場合はnilを返す。
func (n *Normalizer) ResolveEmbed(ctx context.Context, st model.SourceType, ref string) (*model.Embed, error) {
	udid, postID, ok := model.ParseEmbedRef(st, ref)
	if !ok {
		return nil, nil
	}

	embed := model.NewEmbed(postID, udid, st)

	user, err := n.store.UserByUDID(ctx, udid, st, false)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return embed, nil
	}
	embed.UserName = user.UserName
	embed.Nick = user.DisplayNick()

	post, err := n.store.PostByID(ctx, postID, false)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return embed, nil
	}
	embed.TextContent = richtext.Linkify(st, post.TextContent)
	embed.Time = post.Time
	embed.External = false

	medias, err := n.store.MediaByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	embed.Medias = medias

	return embed, nil
}
