package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/xeptore/spotstat/cache"
	"github.com/xeptore/spotstat/config"
	"github.com/xeptore/spotstat/jsonv"
	"github.com/xeptore/spotstat/spotify"
	"github.com/xeptore/spotstat/spotify/fs"
)

var ErrPaused = errors.New("playback is paused")

type Player interface {
	CurrentTrack(ctx context.Context, logger zerolog.Logger) (jsonv.Value, error)
	PlaybackState(ctx context.Context, logger zerolog.Logger) (jsonv.Value, error)
}

type Session interface {
	EnsureFresh(ctx context.Context, logger zerolog.Logger) error
	Forget() error
}

type Daemon struct {
	player   Player
	session  Session
	bar      Bar
	trackURI fs.TrackURIFile
	lines    *cache.StatusLinesCache
	conf     config.Status
}

func NewDaemon(
	player Player,
	session Session,
	trackURI fs.TrackURIFile,
	lines *cache.StatusLinesCache,
	conf config.Status,
) *Daemon {
	return &Daemon{
		player:   player,
		session:  session,
		bar:      Bar(conf.File),
		trackURI: trackURI,
		lines:    lines,
		conf:     conf,
	}
}

// Tick writes the status line of what is currently playing and returns how
// long until the track ends, plus padding. It returns
// spotify.ErrNothingPlaying or ErrPaused when there is nothing to show.
func (d *Daemon) Tick(ctx context.Context, logger zerolog.Logger) (time.Duration, error) {
	current, err := d.player.CurrentTrack(ctx, logger)
	if nil != err {
		return 0, err
	}

	if !spotify.IsPlaying(current) {
		return 0, ErrPaused
	}

	render := func() (string, error) {
		return Shorten(LineOf(current), d.conf.Width, d.conf.Placeholder), nil
	}

	var line string
	if uri, err := spotify.TrackURI(current); nil != err {
		logger.Debug().Err(err).Msg("Current item has no uri")
		line, _ = render()
	} else {
		if err := d.trackURI.Write(uri); nil != err {
			logger.Error().Err(err).Msg("Failed to save current track uri")
		}

		item, err := d.lines.Fetch(uri, cache.DefaultStatusLineTTL, render)
		if nil != err {
			return 0, err
		}
		line = item.Value()
	}

	if err := d.bar.Write(line); nil != err {
		return 0, err
	}
	logger.Debug().Str("line", line).Msg("Status updated")

	playback, err := d.player.PlaybackState(ctx, logger)
	if nil != err {
		return 0, fmt.Errorf("get playback state: %w", err)
	}

	remaining, err := spotify.TimeRemaining(playback)
	if nil != err {
		return 0, err
	}

	return remaining + d.conf.Padding.Duration, nil
}

// Run keeps the status bar up to date until ctx is done. Idle polls and
// failures back off exponentially from the idle interval up to max idle. On
// the way out the bar is reset and the cached session is forgotten.
func (d *Daemon) Run(ctx context.Context, logger zerolog.Logger) (err error) {
	defer func() {
		if cleanupErr := d.cleanup(logger); nil != cleanupErr {
			err = errors.Join(err, cleanupErr)
		}
	}()

	if err := d.bar.Write(d.conf.ResetText); nil != err {
		return err
	}

	if err := d.session.EnsureFresh(ctx, logger); nil != err {
		return fmt.Errorf("refresh access token: %w", err)
	}

	idle := backoff.WithContext(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(d.conf.IdleInterval.Duration),
			backoff.WithMaxInterval(d.conf.MaxIdle.Duration),
			backoff.WithMaxElapsedTime(0),
		),
		ctx,
	)

	for {
		wait, err := d.Tick(ctx, logger)
		if nil != err {
			if nil != ctx.Err() {
				return nil
			}

			switch {
			case errors.Is(err, spotify.ErrLoginRequired):
				return err
			case errors.Is(err, spotify.ErrNothingPlaying), errors.Is(err, ErrPaused):
				logger.Debug().Err(err).Msg("Spotify transport state is currently inactive")
			default:
				logger.Error().Err(err).Msg("Failed to update status")
			}

			wait = idle.NextBackOff()
			if wait == backoff.Stop {
				return nil
			}
		} else {
			idle.Reset()
		}

		if err := sleep(ctx, wait); nil != err {
			return nil
		}
	}
}

// Once writes the status line a single time.
func (d *Daemon) Once(ctx context.Context, logger zerolog.Logger) error {
	if _, err := d.Tick(ctx, logger); nil != err {
		return err
	}

	return nil
}

func (d *Daemon) cleanup(logger zerolog.Logger) error {
	var errs []error
	if err := d.bar.Write(d.conf.ResetText); nil != err {
		errs = append(errs, err)
	}

	if err := d.session.Forget(); nil != err {
		errs = append(errs, err)
	}
	logger.Debug().Msg("Status bar reset")

	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
