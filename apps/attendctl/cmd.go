package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
	"github.com/trezcool/attendly/core/device"
	"github.com/trezcool/attendly/core/roster"
	snapshotsvc "github.com/trezcool/attendly/services/snapshot"
	"github.com/trezcool/attendly/storage/remote"
)

var (
	readTokenFunc = term.ReadPassword // mockable

	errHelp          = errors.New("help provided")
	errTokenRejected = errors.New("the backend rejected the access token")
)

type commandLine struct {
	conf       *core.Config
	in         io.Reader
	out        io.Writer
	repo       attendance.Repository
	recognizer attendance.Recognizer
	source     device.Source
	prefs      device.Preferences
	notifier   core.Notifier
	logger     core.Logger
	snapshots  snapshotsvc.Writer

	token string
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  cameras                                   - list the video input devices")
	fmt.Fprintln(cli.out, "  camera -index N                           - select the camera to capture with")
	fmt.Fprintln(cli.out, "  roster -session ID [-search QUERY]        - list the present and absent users of a session")
	fmt.Fprintln(cli.out, "  mark -session ID -user ID                 - mark a user present")
	fmt.Fprintln(cli.out, "  window -session ID [-camera N]            - run recognition in the backend window until Enter is pressed")
	fmt.Fprintln(cli.out, "  stream -session ID [-camera N] [-frames N] [-snapshot PATH]")
	fmt.Fprintln(cli.out, "                                            - follow the embedded recognition stream")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	err := cli.dispatch(ctx, args)
	if remote.IsUnauthorized(err) {
		// prompt again on the next command
		cli.token = ""
		return errors.Wrap(errTokenRejected, err.Error())
	}
	return err
}

func (cli *commandLine) dispatch(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	camerasCmd := cli.newFlagSet("cameras")

	cameraCmd := cli.newFlagSet("camera")
	cameraIndex := cameraCmd.Int("index", -1, "The index of the camera, as listed by `cameras`.")

	rosterCmd := cli.newFlagSet("roster")
	rosterSession := rosterCmd.Int("session", 0, "The attendance session ID.")
	rosterSearch := rosterCmd.String("search", "", "Only list absent users whose name or email contains this.")

	markCmd := cli.newFlagSet("mark")
	markSession := markCmd.Int("session", 0, "The attendance session ID.")
	markUser := markCmd.Int("user", 0, "The ID of the user to mark present.")

	windowCmd := cli.newFlagSet("window")
	windowSession := windowCmd.Int("session", 0, "The attendance session ID.")
	windowCamera := windowCmd.Int("camera", -1, "The camera index. Defaults to the selected camera.")

	streamCmd := cli.newFlagSet("stream")
	streamSession := streamCmd.Int("session", 0, "The attendance session ID.")
	streamCamera := streamCmd.Int("camera", -1, "The camera index. Defaults to the selected camera.")
	streamFrames := streamCmd.Int("frames", 0, "Stop after this many frames. 0 follows the stream until it ends.")
	streamSnapshot := streamCmd.String("snapshot", "", "Save the last frame to this file (.jpg, .png or .webp).")

	switch args[1] {
	case "cameras":
		if err := camerasCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.listCameras(ctx)
	case "camera":
		if err := cameraCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *cameraIndex < 0 {
			cameraCmd.Usage()
			return errHelp
		}
		return cli.selectCamera(ctx, *cameraIndex)
	case "roster":
		if err := rosterCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rosterSession == 0 {
			rosterCmd.Usage()
			return errHelp
		}
		return cli.showRoster(ctx, *rosterSession, *rosterSearch)
	case "mark":
		if err := markCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *markSession == 0 || *markUser == 0 {
			markCmd.Usage()
			return errHelp
		}
		return cli.markPresent(ctx, *markSession, *markUser)
	case "window":
		if err := windowCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *windowSession == 0 {
			windowCmd.Usage()
			return errHelp
		}
		return cli.runWindow(ctx, *windowSession, *windowCamera)
	case "stream":
		if err := streamCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *streamSession == 0 {
			streamCmd.Usage()
			return errHelp
		}
		return cli.runStream(ctx, streamOptions{
			sessionID: *streamSession,
			camera:    *streamCamera,
			maxFrames: *streamFrames,
			snapshot:  *streamSnapshot,
		})
	default:
		cli.printUsage()
		return errHelp
	}
}

// authenticate attaches the backend token to ctx, prompting for it when none is configured.
func (cli *commandLine) authenticate(ctx context.Context) (context.Context, error) {
	if cli.token == "" {
		cli.token = cli.conf.Backend.Token
	}
	if cli.token == "" {
		fmt.Fprint(cli.out, "Enter access token:")
		tok, err := readTokenFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return ctx, err
		}
		cli.token = strings.TrimSpace(string(tok))
		if cli.token == "" {
			return ctx, errors.New("an access token is required")
		}
	}
	return remote.WithToken(ctx, cli.token), nil
}

// background returns a context that survives an interrupt, for the requests cleaning up after one.
func (cli *commandLine) background() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), cli.conf.Backend.Timeout)
	return remote.WithToken(ctx, cli.token), cancel
}

func (cli *commandLine) reconciler(sessionID int) *roster.Reconciler {
	return roster.NewReconciler(roster.Options{
		Repo:      cli.repo,
		SessionID: sessionID,
		Notifier:  cli.notifier,
		Logger:    cli.logger,
	})
}

func (cli *commandLine) selector() *device.Selector {
	return device.NewSelector(device.Options{
		Source:   cli.source,
		Prefs:    cli.prefs,
		Notifier: cli.notifier,
		Logger:   cli.logger,
	})
}

// lines signals every line read from the input, and closes at EOF.
func (cli *commandLine) lines() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(cli.in)
		for scanner.Scan() {
			ch <- struct{}{}
		}
	}()
	return ch
}

func printDuration(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
