// Package rss serves the recent-notes feed.
package rss

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"

	"github.com/notectx/notectx/internal/profile"
	"github.com/notectx/notectx/store"
)

const maxRSSItemCount = 30

type RSSService struct {
	Profile *profile.Profile
	Store   *store.Store

	markdown goldmark.Markdown
}

func NewRSSService(p *profile.Profile, st *store.Store) *RSSService {
	return &RSSService{
		Profile:  p,
		Store:    st,
		markdown: goldmark.New(),
	}
}

// RegisterRoutes mounts the feed endpoints.
func (s *RSSService) RegisterRoutes(e *echo.Echo) {
	e.GET("/rss.xml", s.GetRecentNotesRSS)
	e.GET("/contexts/:name/rss.xml", s.GetContextRSS)
}

// GetRecentNotesRSS returns the newest notes as an RSS feed.
// GET /rss.xml?user=1
func (s *RSSService) GetRecentNotesRSS(c echo.Context) error {
	ctx := c.Request().Context()
	uid := resolveUser(c)
	limit := maxRSSItemCount
	notes, err := s.Store.ListNotes(ctx, &store.FindNote{
		CreatorID: &uid,
		Limit:     &limit,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list notes").SetInternal(err)
	}

	rss, err := s.generateFeed(ctx, "Recent notes", notes)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate feed").SetInternal(err)
	}
	return c.Blob(http.StatusOK, "application/rss+xml", []byte(rss))
}

// GetContextRSS returns the newest notes of one context as an RSS feed.
// GET /contexts/:name/rss.xml?user=1
func (s *RSSService) GetContextRSS(c echo.Context) error {
	ctx := c.Request().Context()
	uid := resolveUser(c)
	name := c.Param("name")
	limit := maxRSSItemCount
	notes, err := s.Store.ListNotes(ctx, &store.FindNote{
		CreatorID: &uid,
		Contexts:  []string{name},
		Limit:     &limit,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list notes").SetInternal(err)
	}

	rss, err := s.generateFeed(ctx, fmt.Sprintf("Notes in %s", name), notes)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate feed").SetInternal(err)
	}
	return c.Blob(http.StatusOK, "application/rss+xml", []byte(rss))
}

func (s *RSSService) generateFeed(ctx context.Context, title string, notes []*store.Note) (string, error) {
	baseURL := s.Profile.InstanceURL
	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: baseURL},
		Description: "notectx",
		Created:     time.Now(),
	}

	feed.Items = make([]*feeds.Item, len(notes))
	for i, n := range notes {
		content, err := s.renderHTML(n.Content)
		if err != nil {
			return "", err
		}
		feed.Items[i] = &feeds.Item{
			Title:       itemTitle(n),
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/n/%s", baseURL, n.UID)},
			Description: content,
			Created:     time.Unix(n.CreatedTs, 0),
			Id:          n.UID,
		}
	}
	return feed.ToRss()
}

func (s *RSSService) renderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// itemTitle uses the first line of the note, capped for readability.
func itemTitle(n *store.Note) string {
	title := n.Content
	for i, r := range title {
		if r == '\n' {
			title = title[:i]
			break
		}
	}
	runes := []rune(title)
	if len(runes) > 80 {
		title = string(runes[:80]) + "..."
	}
	return title
}

func resolveUser(c echo.Context) int32 {
	if raw := c.QueryParam("user"); raw != "" {
		var id int32
		if _, err := fmt.Sscanf(raw, "%d", &id); err == nil && id > 0 {
			return id
		}
	}
	return 1
}
