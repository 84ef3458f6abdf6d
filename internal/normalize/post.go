package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kanzoderg/MyTimeline/internal/model"
	"github.com/kanzoderg/MyTimeline/internal/richtext"
)

// xPostSidecar はgallery-dlがxの投稿用に残すサイドカーの形。
type xPostSidecar struct {
	TweetID json.Number `json:"tweet_id"`
	Content string      `json:"content"`
	Author  struct {
		Name string `json:"name"`
		Nick string `json:"nick"`
	} `json:"author"`
	Date          string      `json:"date"`
	FavoriteCount int         `json:"favorite_count"`
	RetweetCount  int         `json:"retweet_count"`
	ReplyCount    int         `json:"reply_count"`
	ReplyTo       *string     `json:"reply_to"`
	ReplyID       json.Number `json:"reply_id"`
}

// bskyPostSidecar はBlueskyの投稿用サイドカーの形。
// post_idはAT-protoのTID（英数字文字列）であり、数値ではない。
type bskyPostSidecar struct {
	PostID string      `json:"post_id"`
	Text   string      `json:"text"`
	Facets []bskyFacet `json:"facets"`
	Author struct {
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Date        string `json:"date"`
	LikeCount   int    `json:"likeCount"`
	RepostCount int    `json:"repostCount"`
	ReplyCount  int    `json:"replyCount"`
	Embed       *struct {
		Record *struct {
			URI    string `json:"uri"`
			Record *struct {
				URI string `json:"uri"`
			} `json:"record"`
		} `json:"record"`
	} `json:"embed"`
	Reply *struct {
		Parent struct {
			URI string `json:"uri"`
		} `json:"parent"`
	} `json:"reply"`
}

// redditPostSidecar はredditの投稿用サイドカーの形。
type redditPostSidecar struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Author      string  `json:"author"`
}

// faPostSidecar はfadlがFAの投稿用に残すサイドカーの形。
type faPostSidecar struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	User        string      `json:"user"`
	Artist      string      `json:"artist"`
	Date        string      `json:"date"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory"`
	Favorites   int         `json:"favorites"`
	Comments    int         `json:"comments"`
}

// PopulatePost はサイドカーJSONから投稿を正規化して保存する。
func (n *Normalizer) PopulatePost(ctx context.Context, p *model.Post, raw []byte) error {
	var err error
	switch p.Type {
	case model.SourceX:
		err = n.populateXPost(p, raw)
	case model.SourceBsky:
		err = n.populateBskyPost(p, raw)
	case model.SourceReddit:
		err = n.populateRedditPost(p, raw)
	case model.SourceFA:
		err = n.populateFAPost(p, raw)
	default:
		return fmt.Errorf("未知のソース種別です: %s", p.Type)
	}
	if err != nil {
		return err
	}

	p.UID = model.UID(p.UserName(), p.Type)
	if err := n.store.UpsertPost(ctx, p); err != nil {
		return err
	}
	return nil
}

func (n *Normalizer) populateXPost(p *model.Post, raw []byte) error {
	var sc xPostSidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return fmt.Errorf("x投稿のサイドカーが読めません (post_id=%s): %w", p.PostID, err)
	}

	p.PostID = sc.TweetID.String()
	p.TextContent = sc.Content
	userName := p.UserName()
	if userName == "" {
		userName = strings.ToLower(sc.Author.Name)
	}
	p.UID = model.UID(userName, model.SourceX)
	p.Nick = sc.Author.Nick
	p.Time = sc.Date
	p.URL = model.PostURL(model.SourceX, userName, p.PostID)
	p.Likes = sc.FavoriteCount
	p.Reposts = sc.RetweetCount
	p.Comments = sc.ReplyCount

	p.IsReply = sc.ReplyTo != nil
	if sc.ReplyID.String() != "" && sc.ReplyTo != nil && *sc.ReplyTo != "" {
		p.ReplyTo = model.ReplyRef(sc.ReplyID.String(), strings.ToLower(*sc.ReplyTo))
	}
	return nil
}

func (n *Normalizer) populateBskyPost(p *model.Post, raw []byte) error {
	var sc bskyPostSidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return fmt.Errorf("bsky投稿のサイドカーが読めません (post_id=%s): %w", p.PostID, err)
	}

	p.PostID = sc.PostID
	p.TextContent = fixBskyLinks(sc.Text, sc.Facets)
	userName := p.UserName()
	if userName == "" {
		userName = strings.ToLower(sc.Author.Handle)
	}
	p.UID = model.UID(userName, model.SourceBsky)
	p.Nick = sc.Author.DisplayName
	p.Time = sc.Date
	p.URL = model.PostURL(model.SourceBsky, userName, p.PostID)
	p.Likes = sc.LikeCount
	p.Reposts = sc.RepostCount
	p.Comments = sc.ReplyCount

	if sc.Embed != nil && sc.Embed.Record != nil {
		if sc.Embed.Record.URI != "" {
			p.Embed = sc.Embed.Record.URI
		} else if sc.Embed.Record.Record != nil {
			p.Embed = sc.Embed.Record.Record.URI
		}
	}

	p.IsReply = sc.Reply != nil
	if sc.Reply != nil {
		if udid, postID, ok := model.ParseEmbedRef(model.SourceBsky, sc.Reply.Parent.URI); ok {
			p.ReplyTo = model.ReplyRef(postID, udid)
		}
	}
	return nil
}

func (n *Normalizer) populateRedditPost(p *model.Post, raw []byte) error {
	var sc redditPostSidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return fmt.Errorf("reddit投稿のサイドカーが読めません (post_id=%s): %w", p.PostID, err)
	}

	userName := strings.ToLower(sc.Subreddit)
	p.PostID = sc.ID
	p.TextContent = "<span class='rdt_title'>" + sc.Title + "</span>" + richtext.Sanitize(sc.Selftext)
	p.UID = model.UID(userName, model.SourceReddit)
	p.Nick = userName
	p.Time = time.Unix(int64(sc.CreatedUTC), 0).Format("2006-01-02 15:04")
	p.URL = model.PostURL(model.SourceReddit, userName, p.PostID)
	p.Likes = sc.Score
	p.Reposts = 0
	p.Comments = sc.NumComments
	p.IsReply = false
	p.RealUser = sc.Author
	if p.RealUser == "" {
		p.RealUser = "[deleted]"
	}
	return nil
}

func (n *Normalizer) populateFAPost(p *model.Post, raw []byte) error {
	var sc faPostSidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return fmt.Errorf("FA投稿のサイドカーが読めません (post_id=%s): %w", p.PostID, err)
	}

	userName := strings.ToLower(sc.User)
	p.PostID = sc.ID.String()
	p.TextContent = "<span class='rdt_title'>" + sc.Title + "</span>" + richtext.Sanitize(sc.Description)
	p.UID = model.UID(userName, model.SourceFA)
	p.Nick = sc.Artist
	if p.Nick == "" {
		p.Nick = userName
	}
	p.Time = sc.Date
	if sc.Category == "journals" || sc.Subcategory == "journals" {
		p.URL = model.JournalURL(p.PostID)
	} else {
		p.URL = model.PostURL(model.SourceFA, userName, p.PostID)
	}
	p.Likes = sc.Favorites
	p.Reposts = 0
	p.Comments = sc.Comments
	p.IsReply = false
	p.RealUser = userName
	return nil
}

// bskyFacet はBlueskyのリッチテキスト注釈。リンクの復元にのみ使う。
type bskyFacet struct {
	Index struct {
		ByteStart int `json:"byteStart"`
		ByteEnd   int `json:"byteEnd"`
	} `json:"index"`
	Features []struct {
		Type string `json:"$type"`
		URI  string `json:"uri"`
	} `json:"features"`
}

// fixBskyLinks はBlueskyが本文中で省略表示したURLを完全なURLに復元する。
// facetの区間長よりURIが長い場合、本文には "example.com/pa..." のような
// 省略形が入っているため、完全形に置き換える。
func fixBskyLinks(text string, facets []bskyFacet) string {
	for _, facet := range facets {
		for _, feature := range facet.Features {
			if feature.Type != "app.bsky.richtext.facet#link" {
				continue
			}
			uri := strings.TrimPrefix(feature.URI, "https://")
			uri = strings.TrimPrefix(uri, "http://")
			length := facet.Index.ByteEnd - facet.Index.ByteStart
			if length < 0 {
				length = -length
			}
			if length < len(uri) && length > 3 {
				shortened := uri[:length-3] + "..."
				text = strings.ReplaceAll(text, shortened, uri)
			}
		}
	}
	return text
}
