// Package main provides the bmusic command-line client.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/txn2/bmusic-client/pkg/app"
	"github.com/txn2/bmusic-client/pkg/auth"
	"github.com/txn2/bmusic-client/pkg/library"
	"github.com/txn2/bmusic-client/pkg/logout"
	"github.com/txn2/bmusic-client/pkg/router"
)

const (
	shutdownTimeout = 5 * time.Second
	loadTimeout     = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type cliOptions struct {
	configPath  string
	showVersion bool
	command     string
	args        []string
}

func parseFlags(args []string) (cliOptions, error) {
	opts := cliOptions{}
	fs := flag.NewFlagSet("bmusic", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	rest := fs.Args()
	opts.command = "status"
	if len(rest) > 0 {
		opts.command, opts.args = rest[0], rest[1:]
	}
	return opts, nil
}

func loadConfig(path string) (*app.Config, error) {
	if path == "" {
		return app.DefaultConfig(), nil
	}
	return app.LoadConfig(path)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, extra ...app.Option) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "bmusic version %s\n", app.Version)
		return nil
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	in := bufio.NewReader(stdin)
	appOpts := append([]app.Option{
		app.WithConfig(cfg),
		app.WithConfirmer(promptConfirmer{in: in, out: stdout}),
	}, extra...)

	client, err := app.New(ctx, appOpts...)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = client.Close(stopCtx)
	}()

	if _, err := client.Start(ctx); err != nil {
		return err
	}

	c := &cli{app: client, out: stdout, in: in}
	return c.dispatch(ctx, opts.command, opts.args)
}

type cli struct {
	app *app.App
	out io.Writer
	in  *bufio.Reader
}

func (c *cli) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "status":
		return c.status(ctx)
	case "login":
		return c.login(ctx, args)
	case "register":
		return c.register(ctx, args)
	case "profile":
		return c.profile(ctx)
	case "playlist":
		return c.playlist(ctx, args)
	case "image":
		return c.image(ctx, args)
	case "logout":
		return c.logout(ctx, args)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (c *cli) status(ctx context.Context) error {
	st := c.app.Router.Bootstrap(ctx)
	fmt.Fprintf(c.out, "status: %s\n", st.Status)
	if st.Status == router.Authenticated {
		if token, ok := c.app.Sessions.Token(ctx); ok {
			if info, err := auth.InspectToken(token); err == nil && !info.ExpiresAt.IsZero() {
				fmt.Fprintf(c.out, "token expires: %s\n", info.ExpiresAt.Format(time.RFC3339))
			}
		}
	}
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	wait, stop := c.app.Router.Expect(router.Authenticated, router.Unauthenticated, router.LoadError)
	defer stop()

	if _, err := c.app.Auth.Login(ctx, *email, *password); err != nil {
		return errors.New(auth.UserMessage(err, auth.MsgLoginFailed))
	}

	waitCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	st, err := wait(waitCtx)
	if err != nil || st.Status != router.Authenticated {
		return c.explain(st, err)
	}
	c.printProfile(st.Data)
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var req auth.RegisterRequest
	fs.StringVar(&req.Name, "name", "", "Full name")
	fs.StringVar(&req.Email, "email", "", "Account email")
	fs.StringVar(&req.Password, "password", "", "Account password")
	fs.StringVar(&req.City, "city", "", "City")
	fs.StringVar(&req.ImageRef, "image", "", "Profile image reference")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := c.app.Auth.Register(ctx, req)
	if err != nil {
		return errors.New(auth.UserMessage(err, auth.MsgRegisterFailed))
	}
	fmt.Fprintln(c.out, "Account created. Log in to continue.")
	if req.ImageRef != "" && !res.ImageSaved {
		fmt.Fprintln(c.out, "The profile image could not be saved.")
	}
	return nil
}

// load resumes the session and loads data, returning an error suitable for
// the user when that fails.
func (c *cli) load(ctx context.Context) (router.State, error) {
	st, err := c.app.Router.Resume(ctx)
	if st.Status != router.Authenticated || err != nil {
		return st, c.explain(st, err)
	}
	return st, nil
}

func (c *cli) explain(st router.State, err error) error {
	switch {
	case st.Notice != "":
		return errors.New(st.Notice)
	case st.Status == router.Unauthenticated:
		return errors.New("not logged in")
	case err != nil:
		return err
	default:
		return fmt.Errorf("unexpected state: %s", st.Status)
	}
}

func (c *cli) profile(ctx context.Context) error {
	st, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.printProfile(st.Data)
	return nil
}

func (c *cli) printProfile(snap *library.Snapshot) {
	p := snap.Profile
	fmt.Fprintf(c.out, "%s <%s>\n", p.DisplayName(), p.Email)
	fmt.Fprintf(c.out, "city:  %s\n", p.DisplayCity())
	fmt.Fprintf(c.out, "image: %s\n", p.ImageRef)
	fmt.Fprintf(c.out, "playlists: %d\n", len(snap.Playlists))
	for i, pl := range snap.Playlists {
		fmt.Fprintf(c.out, "  %d. %s (%d songs)\n", i+1, pl.DisplayName(), pl.SongCount())
	}
}

func (c *cli) playlist(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: playlist <number>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fmt.Errorf("invalid playlist number: %s", args[0])
	}

	st, err := c.load(ctx)
	if err != nil {
		return err
	}
	if n > len(st.Data.Playlists) {
		return fmt.Errorf("no playlist %d; there are %d", n, len(st.Data.Playlists))
	}

	pl := st.Data.Playlists[n-1]
	if _, err := c.app.Router.Navigate(router.ScreenPlaylistDetail, pl); err != nil {
		if errors.Is(err, library.ErrNoSongs) {
			fmt.Fprintf(c.out, "%s has no songs\n", pl.DisplayName())
			return nil
		}
		return err
	}

	fmt.Fprintf(c.out, "%s (%d songs)\n", pl.DisplayName(), pl.SongCount())
	for i, s := range pl.Songs {
		fmt.Fprintf(c.out, "  %d. %s - %s [%s]\n", i+1, s.DisplayTitle(), s.DisplayArtist(), s.DisplayAlbum())
	}
	return nil
}

func (c *cli) image(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: image <reference>")
	}
	if st := c.app.Router.Bootstrap(ctx); st.Status != router.Authenticated {
		return errors.New("not logged in")
	}
	if err := c.app.Library.ChangeImage(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "profile image: %s\n", c.app.Library.ResolveImage(ctx))
	return nil
}

func (c *cli) logout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if st := c.app.Router.Bootstrap(ctx); st.Status != router.Authenticated {
		fmt.Fprintln(c.out, "not logged in")
		return nil
	}

	seq := c.app.Logout
	if *yes {
		seq = logout.New(logout.Always, c.app.Sessions, c.app.Events)
	}
	out, err := seq.Logout(ctx)
	if err != nil {
		return err
	}
	if out == logout.Cancelled {
		fmt.Fprintln(c.out, "logout cancelled")
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if _, err := c.app.Router.WaitFor(waitCtx, router.Unauthenticated); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "logged out")
	return nil
}

// promptConfirmer asks on the terminal.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p promptConfirmer) ConfirmLogout(context.Context) (bool, error) {
	fmt.Fprint(p.out, "Log out? [y/N] ")
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
