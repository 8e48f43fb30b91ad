package like

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/xeptore/spotstat/spotify/fs"
	"github.com/xeptore/spotstat/store"
)

var (
	ErrNoCurrentTrack = errors.New("no current track uri saved")
	ErrNoPlaylist     = errors.New("no playlist given and no default playlist configured")
)

type Playlists interface {
	PlaylistTrackURIs(ctx context.Context, logger zerolog.Logger, id string) ([]string, error)
	AddTrack(ctx context.Context, logger zerolog.Logger, playlistID, uri string) (string, error)
	RemoveTrack(ctx context.Context, logger zerolog.Logger, playlistID, uri string) (string, error)
}

// Liker adds the most recently seen track to a playlist, keeping a local
// copy of the playlist's track URIs to avoid adding duplicates.
type Liker struct {
	playlists Playlists
	liked     *store.Liked
	trackURI  fs.TrackURIFile
}

func NewLiker(playlists Playlists, liked *store.Liked, trackURI fs.TrackURIFile) *Liker {
	return &Liker{
		playlists: playlists,
		liked:     liked,
		trackURI:  trackURI,
	}
}

type Result struct {
	URI        string
	PlaylistID string
	SnapshotID string
	// AlreadyPresent is set when Like found the track in the playlist, or
	// Unlike did not find it in the cached copy.
	AlreadyPresent bool
}

func (l *Liker) Like(ctx context.Context, logger zerolog.Logger, playlistID string) (*Result, error) {
	uri, err := l.currentTrack(playlistID)
	if nil != err {
		return nil, err
	}
	logger = logger.With().Str("playlist_id", playlistID).Str("track_uri", uri).Logger()

	res := &Result{URI: uri, PlaylistID: playlistID, SnapshotID: "", AlreadyPresent: false}

	present, err := l.contains(ctx, logger, playlistID, uri)
	if nil != err {
		return nil, err
	}
	if present {
		res.AlreadyPresent = true
		return res, nil
	}

	snapshot, err := l.playlists.AddTrack(ctx, logger, playlistID, uri)
	if nil != err {
		return nil, err
	}
	res.SnapshotID = snapshot

	if err := l.liked.Add(playlistID, uri); nil != err {
		logger.Error().Err(err).Msg("Failed to cache liked track")
	}

	return res, nil
}

func (l *Liker) Unlike(ctx context.Context, logger zerolog.Logger, playlistID string) (*Result, error) {
	uri, err := l.currentTrack(playlistID)
	if nil != err {
		return nil, err
	}
	logger = logger.With().Str("playlist_id", playlistID).Str("track_uri", uri).Logger()

	snapshot, err := l.playlists.RemoveTrack(ctx, logger, playlistID, uri)
	if nil != err {
		return nil, err
	}

	if err := l.liked.Remove(playlistID, uri); nil != err {
		logger.Error().Err(err).Msg("Failed to drop unliked track from cache")
	}

	return &Result{URI: uri, PlaylistID: playlistID, SnapshotID: snapshot, AlreadyPresent: false}, nil
}

func (l *Liker) currentTrack(playlistID string) (string, error) {
	if playlistID == "" {
		return "", ErrNoPlaylist
	}

	uri, err := l.trackURI.Read()
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoCurrentTrack
		}

		return "", err
	}

	if uri == "" {
		return "", ErrNoCurrentTrack
	}

	return uri, nil
}

// contains checks the cached copy of the playlist, seeding it from the API
// the first time the playlist is seen.
func (l *Liker) contains(ctx context.Context, logger zerolog.Logger, playlistID, uri string) (bool, error) {
	seeded, err := l.liked.Seeded(playlistID)
	if nil != err {
		return false, err
	}

	if !seeded {
		uris, err := l.playlists.PlaylistTrackURIs(ctx, logger, playlistID)
		if nil != err {
			return false, fmt.Errorf("get playlist tracks: %w", err)
		}

		if err := l.liked.Seed(playlistID, uris); nil != err {
			return false, err
		}
		logger.Debug().Int("tracks", len(uris)).Msg("Seeded playlist cache")
	}

	return l.liked.Has(playlistID, uri)
}
