package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/xeptore/spotstat/jsonv"
)

// CurrentTrack returns the currently-playing object of the user's player. It
// returns ErrNothingPlaying when there is no active device.
func (c *Client) CurrentTrack(ctx context.Context, logger zerolog.Logger) (jsonv.Value, error) {
	q := c.marketQuery()
	q.Set("additional_types", "track")

	v, err := c.do(ctx, logger, request{method: http.MethodGet, path: "me/player/currently-playing", query: q, body: nil})
	if nil != err {
		if errors.Is(err, errNoContent) {
			return jsonv.Value{}, ErrNothingPlaying
		}

		return jsonv.Value{}, fmt.Errorf("get currently playing track: %w", err)
	}

	return v, nil
}

// PlaybackState returns the full state of the user's player, including the
// progress into the current item.
func (c *Client) PlaybackState(ctx context.Context, logger zerolog.Logger) (jsonv.Value, error) {
	v, err := c.do(ctx, logger, request{method: http.MethodGet, path: "me/player", query: c.marketQuery(), body: nil})
	if nil != err {
		if errors.Is(err, errNoContent) {
			return jsonv.Value{}, ErrNothingPlaying
		}

		return jsonv.Value{}, fmt.Errorf("get playback state: %w", err)
	}

	return v, nil
}

func IsPlaying(current jsonv.Value) bool {
	playing, ok := current.Field("is_playing").AsBool()

	return ok && playing
}

// TimeRemaining is the first duration_ms found in playback minus the first
// progress_ms found in it.
func TimeRemaining(playback jsonv.Value) (time.Duration, error) {
	duration, err := firstInt(playback, "duration_ms")
	if nil != err {
		return 0, err
	}

	progress, err := firstInt(playback, "progress_ms")
	if nil != err {
		return 0, err
	}

	return time.Duration(max(duration-progress, 0)) * time.Millisecond, nil
}

func firstInt(v jsonv.Value, key string) (int64, error) {
	found, ok := jsonv.First(v, key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrFieldNotFound, key)
	}

	n, ok := found.AsInt64()
	if !ok {
		return 0, fmt.Errorf("%s is not an integer: %s", key, found.Kind())
	}

	return n, nil
}

type NamedURI struct {
	Name string
	URI  string
}

type TrackInfo struct {
	Track  NamedURI
	Album  NamedURI
	Artist NamedURI
}

// TrackInfoFrom extracts the track, its album and its first artist from a
// currently-playing object.
func TrackInfoFrom(current jsonv.Value) (*TrackInfo, error) {
	item := current.Field("item")
	if item.Kind() != jsonv.KindObject {
		return nil, fmt.Errorf("%w: item", ErrFieldNotFound)
	}

	track, err := namedURI(item, "item")
	if nil != err {
		return nil, err
	}

	album, err := namedURI(item.Field("album"), "item.album")
	if nil != err {
		return nil, err
	}

	artist, err := namedURI(item.Field("artists").At(0), "item.artists[0]")
	if nil != err {
		return nil, err
	}

	return &TrackInfo{Track: *track, Album: *album, Artist: *artist}, nil
}

func namedURI(v jsonv.Value, path string) (*NamedURI, error) {
	name, ok := v.Field("name").AsString()
	if !ok {
		return nil, fmt.Errorf("%w: %s.name", ErrFieldNotFound, path)
	}

	uri, ok := v.Field("uri").AsString()
	if !ok {
		return nil, fmt.Errorf("%w: %s.uri", ErrFieldNotFound, path)
	}

	return &NamedURI{Name: name, URI: uri}, nil
}

// TrackURI is the URI of the item of a currently-playing object.
func TrackURI(current jsonv.Value) (string, error) {
	uri, ok := current.Field("item").Field("uri").AsString()
	if !ok {
		return "", fmt.Errorf("%w: item.uri", ErrFieldNotFound)
	}

	return uri, nil
}
