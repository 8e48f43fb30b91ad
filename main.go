package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/xeptore/spotstat/cache"
	"github.com/xeptore/spotstat/config"
	"github.com/xeptore/spotstat/constant"
	"github.com/xeptore/spotstat/iterutil"
	"github.com/xeptore/spotstat/like"
	"github.com/xeptore/spotstat/log"
	"github.com/xeptore/spotstat/spotify"
	"github.com/xeptore/spotstat/spotify/auth"
	"github.com/xeptore/spotstat/spotify/fs"
	"github.com/xeptore/spotstat/status"
	"github.com/xeptore/spotstat/store"
)

func main() {
	logger := log.NewDefault()

	playlistFlag := &cli.StringFlag{ //nolint:exhaustruct
		Name:     "playlist",
		Aliases:  []string{"p"},
		Usage:    "Playlist ID (defaults to spotify.default_playlist)",
		Required: false,
	}

	//nolint:exhaustruct
	app := &cli.Command{
		Name:    "spotstat",
		Version: constant.Version,
		Metadata: map[string]any{
			"compiled_at": constant.CompileTime,
		},
		Suggest:                    true,
		Usage:                      "Spotify now-playing status and playlist utilities",
		EnableShellCompletion:      true,
		ShellCompletionCommandName: "shell-completion",
		AllowExtFlags:              false,
		Flags: []cli.Flag{
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Config file path",
				Required: false,
			},
		},
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:   "login",
				Usage:  "Authorize spotstat to access your Spotify account",
				Action: login,
			},
			{
				Name:   "info",
				Usage:  "Display currently playing track info and URIs",
				Action: info,
			},
			{
				Name:   "playlists",
				Usage:  "Show all playlists and their IDs",
				Action: playlists,
			},
			{
				Name:   "like",
				Usage:  "Add the current track to a playlist",
				Flags:  []cli.Flag{playlistFlag},
				Action: likeTrack,
			},
			{
				Name:   "unlike",
				Usage:  "Remove the current track from a playlist",
				Flags:  []cli.Flag{playlistFlag},
				Action: unlikeTrack,
			},
			{
				Name:  "status",
				Usage: "Terminal multiplexer status bar commands",
				Commands: []*cli.Command{
					//nolint:exhaustruct
					{
						Name:   "run",
						Usage:  "Keep the status bar file up to date with what is playing",
						Action: statusRun,
					},
					{
						Name:   "once",
						Usage:  "Write the status bar file once and exit",
						Action: statusOnce,
					},
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			os.Exit(1)
		}

		var exitCode exitCodeError
		if errors.As(err, &exitCode) {
			os.Exit(int(exitCode))
		}

		logger.Error().Err(err).Msg("Application exited with error")
		os.Exit(10)
	}
}

type exitCodeError int

func (e exitCodeError) Error() string {
	return "error with exit code: " + strconv.Itoa(int(e))
}

func setup(cmd *cli.Command) (zerolog.Logger, *config.Config, error) {
	logger := log.NewDefault()

	if err := godotenv.Load(); nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			return logger, nil, fmt.Errorf("load .env file: %v", err)
		}
		logger.Debug().Msg(".env file was not found")
	} else {
		logger.Debug().Msg(".env file was loaded")
	}

	conf, err := config.Load(cmd.String("config"))
	if nil != err {
		return logger, nil, fmt.Errorf("load config: %v", err)
	}

	logger = log.FromConfig(conf.Log)

	logger.Debug().Dict("config", conf.ToDict()).Msg("Config loaded")

	return logger, conf, nil
}

func newClient(logger zerolog.Logger, conf *config.Config) (*spotify.Client, *auth.Auth, error) {
	state := fs.StateDirFrom(conf.State.Dir)

	a, err := auth.New(logger, conf.Spotify, state.AuthFile(), conf.HTTP.Timeout.Duration)
	if nil != err {
		return nil, nil, fmt.Errorf("create auth: %v", err)
	}

	return spotify.NewClient(conf.Spotify, conf.HTTP, a), a, nil
}

// handleErr maps the errors a user can act on to exit codes.
func handleErr(logger zerolog.Logger, err error) error {
	switch {
	case errors.Is(err, spotify.ErrLoginRequired):
		logger.Error().Msg("Not logged in. Please run `spotstat login` first.")
		return exitCodeError(2)
	case errors.Is(err, spotify.ErrNothingPlaying), errors.Is(err, status.ErrPaused):
		logger.Info().Msg("Spotify transport state is currently inactive")
		return exitCodeError(3)
	case errors.Is(err, like.ErrNoCurrentTrack):
		logger.Error().Msg("No current track saved. Run `spotstat info` or `spotstat status run` first.")
		return exitCodeError(4)
	case errors.Is(err, like.ErrNoPlaylist):
		logger.Error().Msg("No playlist given. Pass --playlist or set spotify.default_playlist.")
		return exitCodeError(4)
	default:
		return err
	}
}

func elapsed(logger zerolog.Logger, start time.Time) {
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("Finished")
}

func login(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	_, a, err := newClient(logger, conf)
	if nil != err {
		return err
	}

	if err := a.Login(ctx, logger); nil != err {
		if errors.Is(err, syscall.ENOTTY) {
			logger.Error().Msg("No TTY detected. Please run login from an interactive terminal.")
			return exitCodeError(1)
		}

		return fmt.Errorf("login to spotify: %w", err)
	}

	return nil
}

func info(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}
	defer elapsed(logger, time.Now())

	client, _, err := newClient(logger, conf)
	if nil != err {
		return err
	}

	current, err := client.CurrentTrack(ctx, logger)
	if nil != err {
		return handleErr(logger, err)
	}

	track, err := spotify.TrackInfoFrom(current)
	if nil != err {
		return fmt.Errorf("read current track: %w", err)
	}

	if err := fs.StateDirFrom(conf.State.Dir).TrackURIFile().Write(track.Track.URI); nil != err {
		return err
	}

	out := os.Stdout
	fmt.Fprintf(out, "%-60s %-25s\n", "Track:  "+track.Track.Name, track.Track.URI)
	fmt.Fprintf(out, "%-60s %-25s\n", "Album:  "+track.Album.Name, track.Album.URI)
	fmt.Fprintf(out, "%-60s %-25s\n", "Artist: "+track.Artist.Name, track.Artist.URI)

	return nil
}

func playlists(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}
	defer elapsed(logger, time.Now())

	client, _, err := newClient(logger, conf)
	if nil != err {
		return err
	}

	list, err := client.Playlists(ctx, logger)
	if nil != err {
		return handleErr(logger, err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Name", "Tracks", "Owner", "Playlist ID"})
	t.AppendRows(iterutil.Map(list, func(i int, p spotify.Playlist) table.Row {
		return table.Row{i + 1, p.Name, p.Tracks, p.Owner, p.ID}
	}))
	t.SetStyle(table.StyleRounded)
	t.Render()

	return nil
}

func newLiker(logger zerolog.Logger, conf *config.Config) (*like.Liker, func(), error) {
	client, _, err := newClient(logger, conf)
	if nil != err {
		return nil, nil, err
	}

	state := fs.StateDirFrom(conf.State.Dir)

	liked, err := store.Open(state.LikedStorePath())
	if nil != err {
		return nil, nil, fmt.Errorf("open liked store: %v", err)
	}
	closeStore := func() {
		if err := liked.Close(); nil != err {
			logger.Error().Err(err).Msg("Failed to close liked store")
		}
	}

	return like.NewLiker(client, liked, state.TrackURIFile()), closeStore, nil
}

func playlistID(cmd *cli.Command, conf *config.Config) string {
	if id := cmd.String("playlist"); id != "" {
		return id
	}

	return conf.Spotify.DefaultPlaylist
}

func likeTrack(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}
	defer elapsed(logger, time.Now())

	liker, closeStore, err := newLiker(logger, conf)
	if nil != err {
		return err
	}
	defer closeStore()

	res, err := liker.Like(ctx, logger, playlistID(cmd, conf))
	if nil != err {
		return handleErr(logger, err)
	}

	if res.AlreadyPresent {
		fmt.Fprintf(os.Stdout, "track %s is already in playlist %s\n", res.URI, res.PlaylistID)
		return nil
	}

	fmt.Fprintln(os.Stdout, "snapshot id:", res.SnapshotID)
	fmt.Fprintf(os.Stdout, "added %s to playlist: %s\n", res.URI, res.PlaylistID)

	return nil
}

func unlikeTrack(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}
	defer elapsed(logger, time.Now())

	liker, closeStore, err := newLiker(logger, conf)
	if nil != err {
		return err
	}
	defer closeStore()

	res, err := liker.Unlike(ctx, logger, playlistID(cmd, conf))
	if nil != err {
		return handleErr(logger, err)
	}

	fmt.Fprintln(os.Stdout, "snapshot id:", res.SnapshotID)
	fmt.Fprintf(os.Stdout, "removed %s from playlist: %s\n", res.URI, res.PlaylistID)

	return nil
}

func newDaemon(logger zerolog.Logger, conf *config.Config) (*status.Daemon, func(), error) {
	client, a, err := newClient(logger, conf)
	if nil != err {
		return nil, nil, err
	}

	c := cache.New()
	d := status.NewDaemon(client, a, fs.StateDirFrom(conf.State.Dir).TrackURIFile(), &c.StatusLines, conf.Status)

	return d, c.StatusLines.Close, nil
}

func statusRun(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	d, closeCache, err := newDaemon(logger, conf)
	if nil != err {
		return err
	}
	defer closeCache()

	logger.Info().Str("file", conf.Status.File).Msg("Starting status bar updates")
	if err := d.Run(ctx, logger); nil != err {
		return handleErr(logger, err)
	}
	logger.Info().Msg("Status bar updates stopped")

	return nil
}

func statusOnce(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}
	defer elapsed(logger, time.Now())

	d, closeCache, err := newDaemon(logger, conf)
	if nil != err {
		return err
	}
	defer closeCache()

	if err := d.Once(ctx, logger); nil != err {
		return handleErr(logger, err)
	}

	return nil
}
