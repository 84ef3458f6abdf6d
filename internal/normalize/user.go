package normalize

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kanzoderg/MyTimeline/internal/model"
	"github.com/kanzoderg/MyTimeline/internal/richtext"
)

// xUserSidecar はgallery-dlがxのユーザー用に残すサイドカーの形。
type xUserSidecar struct {
	Author struct {
		Nick          string `json:"nick"`
		ProfileImage  string `json:"profile_image"`
		ProfileBanner string `json:"profile_banner"`
		Description   string `json:"description"`
	} `json:"author"`
}

// bskyUserSidecar はBlueskyのユーザー用サイドカーの形。
type bskyUserSidecar struct {
	Author struct {
		DisplayName string `json:"displayName"`
		DID         string `json:"did"`
		Avatar      string `json:"avatar"`
	} `json:"author"`
	User struct {
		Banner      string `json:"banner"`
		Description string `json:"description"`
	} `json:"user"`
}

// faUserSidecar はfadlがFAのユーザー用に残すサイドカーの形。
type faUserSidecar struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	BannerURL   string `json:"banner_url"`
	Description string `json:"description"`
}

// PopulateUser はサイドカーJSONからユーザーを正規化して保存する。
// redditはサイドカーを持たないため、rawはnilでよい。
// updateTimeにはディレクトリの更新時刻か現在時刻を渡す。
func (n *Normalizer) PopulateUser(ctx context.Context, u *model.User, raw []byte, updateTime int64) error {
	var err error
	switch u.Type {
	case model.SourceX:
		err = n.populateXUser(u, raw)
	case model.SourceBsky:
		err = n.populateBskyUser(u, raw)
	case model.SourceReddit:
		n.populateRedditUser(ctx, u)
	case model.SourceFA:
		err = n.populateFAUser(u, raw)
	default:
		return fmt.Errorf("未知のソース種別です: %s", u.Type)
	}
	if err != nil {
		return err
	}

	u.UpdateTime = updateTime
	if err := n.store.UpsertUser(ctx, u); err != nil {
		return err
	}
	return nil
}

func (n *Normalizer) populateXUser(u *model.User, raw []byte) error {
	var sc xUserSidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return fmt.Errorf("xユーザーのサイドカーが読めません (user=%s): %w", u.UserName, err)
	}

	u.Nick = sc.Author.Nick
	u.UDID = u.UserName
	u.Avatar = sc.Author.ProfileImage
	u.Banner = sc.Author.ProfileBanner
	u.Description = sc.Author.Description
	if u.Banner == "" {
		if err := n.missingField("user", u.UserName, "author.profile_banner"); err != nil {
			return err
		}
	}
	if u.Description == "" {
		if err := n.missingField("user", u.UserName, "author.description"); err != nil {
			return err
		}
	}
	return nil
}

func (n *Normalizer) populateBskyUser(u *model.User, raw []byte) error {
	var sc bskyUserSidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return fmt.Errorf("bskyユーザーのサイドカーが読めません (user=%s): %w", u.UserName, err)
	}

	u.Nick = sc.Author.DisplayName
	u.UDID = sc.Author.DID
	u.Avatar = sc.Author.Avatar
	u.Banner = sc.User.Banner
	u.Description = sc.User.Description
	if u.UDID == "" {
		u.UDID = u.UserName
		if err := n.missingField("user", u.UserName, "author.did"); err != nil {
			return err
		}
	}
	if u.Avatar == "" {
		if err := n.missingField("user", u.UserName, "author.avatar"); err != nil {
			return err
		}
	}
	return nil
}

// populateRedditUser はサブレディットのプロフィールをabout.jsonから補完する。
// 取得に失敗しても固定の説明文で続行する。
func (n *Normalizer) populateRedditUser(ctx context.Context, u *model.User) {
	u.Nick = u.UserName
	u.UDID = u.UserName
	u.Description = fmt.Sprintf("Reddit subreddit %s.\n", u.UserName)

	if n.reddit == nil {
		return
	}
	about := n.reddit.FetchAbout(ctx, u.UserName)
	u.Description += about.PublicDescription
	u.Banner = about.Banner()
	u.Avatar = about.Avatar()
}

func (n *Normalizer) populateFAUser(u *model.User, raw []byte) error {
	var sc faUserSidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return fmt.Errorf("FAユーザーのサイドカーが読めません (user=%s): %w", u.UserName, err)
	}

	u.Nick = sc.DisplayName
	u.UDID = u.UserName
	u.Avatar = sc.AvatarURL
	u.Banner = sc.BannerURL
	u.Description = richtext.Sanitize(sc.Description)
	return nil
}
