package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/xeptore/spotstat/iterutil"
	"github.com/xeptore/spotstat/jsonv"
	"github.com/xeptore/spotstat/mathutil"
	"github.com/xeptore/spotstat/ratelimit"
)

const (
	playlistsPageSize     = 50
	playlistItemsPageSize = 100
	playlistItemsFields   = "total,items(added_by.uri,track.uri)"
)

type Playlist struct {
	ID     string
	Name   string
	Owner  string
	Tracks int64
}

func playlistFrom(v jsonv.Value) (*Playlist, error) {
	id, ok := v.Field("id").AsString()
	if !ok {
		return nil, fmt.Errorf("%w: playlist id", ErrFieldNotFound)
	}

	name, _ := v.Field("name").AsString()
	owner, _ := v.Field("owner").Field("display_name").AsString()
	tracks, _ := v.Field("tracks").Field("total").AsInt64()

	return &Playlist{ID: id, Name: name, Owner: owner, Tracks: tracks}, nil
}

// Playlists lists every playlist of the user, following the paging links.
func (c *Client) Playlists(ctx context.Context, logger zerolog.Logger) ([]Playlist, error) {
	q := make(url.Values, 1)
	q.Set("limit", strconv.Itoa(playlistsPageSize))

	var (
		out  []Playlist
		next = "me/playlists"
	)
	for next != "" {
		page, err := c.do(ctx, logger, request{method: http.MethodGet, path: next, query: q, body: nil})
		if nil != err {
			return nil, fmt.Errorf("get playlists page: %w", err)
		}

		items, _ := page.Field("items").AsArray()
		for _, item := range items {
			p, err := playlistFrom(item)
			if nil != err {
				return nil, err
			}
			out = append(out, *p)
		}

		next, _ = page.Field("next").AsString()
		q = nil
	}

	return out, nil
}

func (c *Client) Playlist(ctx context.Context, logger zerolog.Logger, id string) (*Playlist, error) {
	q := c.marketQuery()
	q.Set("fields", "id,name,owner(display_name),tracks(total)")

	v, err := c.do(ctx, logger, request{method: http.MethodGet, path: "playlists/" + url.PathEscape(id), query: q, body: nil})
	if nil != err {
		return nil, fmt.Errorf("get playlist: %w", err)
	}

	return playlistFrom(v)
}

// PlaylistTrackURIs returns the URIs of every track in the playlist, in
// playlist order. Pages after the first are fetched concurrently.
func (c *Client) PlaylistTrackURIs(ctx context.Context, logger zerolog.Logger, id string) ([]string, error) {
	logger = logger.With().Str("playlist_id", id).Logger()

	first, err := c.playlistItemsPage(ctx, logger, id, 0)
	if nil != err {
		return nil, err
	}

	total, ok := first.Field("total").AsInt64()
	if !ok {
		return nil, fmt.Errorf("%w: total", ErrFieldNotFound)
	}

	var (
		pageCount = mathutil.PageCount(int(total), playlistItemsPageSize)
		pages     = make([][]string, pageCount)
		wg, wgCtx = errgroup.WithContext(ctx)
	)
	pages[0] = trackURIs(first)

	wg.SetLimit(ratelimit.PlaylistPageConcurrency)
	for page := 1; page < pageCount; page++ {
		wg.Go(func() error {
			v, err := c.playlistItemsPage(wgCtx, logger, id, page)
			if nil != err {
				return err
			}
			pages[page] = trackURIs(v)

			return nil
		})
	}

	if err := wg.Wait(); nil != err {
		return nil, err
	}
	logger.Debug().Int64("total", total).Int("pages", pageCount).Msg("Fetched playlist items")

	return slices.Concat(pages...), nil
}

func (c *Client) playlistItemsPage(ctx context.Context, logger zerolog.Logger, id string, page int) (jsonv.Value, error) {
	q := c.marketQuery()
	q.Set("fields", playlistItemsFields)
	q.Set("limit", strconv.Itoa(playlistItemsPageSize))
	q.Set("offset", strconv.Itoa(page*playlistItemsPageSize))

	v, err := c.do(ctx, logger, request{method: http.MethodGet, path: "playlists/" + url.PathEscape(id) + "/tracks", query: q, body: nil})
	if nil != err {
		return jsonv.Value{}, fmt.Errorf("get playlist items page %d: %w", page, err)
	}

	return v, nil
}

// trackURIs collects every uri found anywhere in v that names a track. Other
// entities on the page (users, episodes) carry uris too.
func trackURIs(v jsonv.Value) []string {
	isTrack := func(uri string) bool { return strings.Contains(uri, "track") }

	return slices.Collect(iterutil.Filter(jsonv.SearchStrings(v, "uri"), isTrack))
}

// AddTrack appends the track to the playlist and returns the new snapshot id.
func (c *Client) AddTrack(ctx context.Context, logger zerolog.Logger, playlistID, uri string) (string, error) {
	body := map[string]any{"uris": []string{uri}}

	v, err := c.do(ctx, logger, request{method: http.MethodPost, path: "playlists/" + url.PathEscape(playlistID) + "/tracks", query: nil, body: body})
	if nil != err {
		return "", fmt.Errorf("add track to playlist: %w", err)
	}

	return snapshotID(v)
}

// RemoveTrack removes every occurrence of the track from the playlist and
// returns the new snapshot id.
func (c *Client) RemoveTrack(ctx context.Context, logger zerolog.Logger, playlistID, uri string) (string, error) {
	body := map[string]any{
		"tracks": lo.Map([]string{uri}, func(u string, _ int) map[string]string { return map[string]string{"uri": u} }),
	}

	v, err := c.do(ctx, logger, request{method: http.MethodDelete, path: "playlists/" + url.PathEscape(playlistID) + "/tracks", query: nil, body: body})
	if nil != err {
		return "", fmt.Errorf("remove track from playlist: %w", err)
	}

	return snapshotID(v)
}

func snapshotID(v jsonv.Value) (string, error) {
	id, ok := v.Field("snapshot_id").AsString()
	if !ok {
		return "", fmt.Errorf("%w: snapshot_id", ErrFieldNotFound)
	}

	return id, nil
}
