package main

import (
	"context"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/client"
	"github.com/aukilabs/splatgrid/models"
	"github.com/aukilabs/splatgrid/viewport"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/segmentio/encoding/json"
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Endpoint     string        `cli:"" env:"GRIDVIEW_ENDPOINT"      help:"The splatgrid server endpoint."`
	Token        string        `cli:"" env:"GRIDVIEW_TOKEN"         help:"The user access token."`
	PollInterval time.Duration `cli:"" env:"GRIDVIEW_POLL_INTERVAL" help:"The duration between each claim list refresh."`
	ClaimName    string        `cli:"" env:"GRIDVIEW_CLAIM_NAME"    help:"The name given to submitted claims."`
	CaptureRef   string        `cli:"" env:"GRIDVIEW_CAPTURE_REF"   help:"The capture reference attached to submitted claims."`
	LogLevel     string        `cli:"" env:"GRIDVIEW_LOG_LEVEL"     help:"Log level (debug|info|warning|error)."`
	Help         bool          `cli:"" env:"-"                      help:"Show help."`
}

func main() {
	conf := config{
		Endpoint:     "http://localhost:4000",
		PollInterval: time.Second * 2,
		ClaimName:    "My plot",
		CaptureRef:   "capture",
		LogLevel:     logs.InfoLevel.String(),
	}

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Opens a window showing the splatgrid lattice. Click cells to select them, press enter to claim them, drag to pan and scroll to zoom.").
		Options(&conf)
	cli.Load()

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	errors.Encoder = json.Marshal

	c := client.New(conf.Endpoint, conf.Token)

	var viewerID string
	if conf.Token != "" {
		u, err := c.Me(ctx)
		if err != nil {
			logs.Fatal(errors.New("verifying token failed").Wrap(err))
		}
		viewerID = u.ID
	}

	refresher := &viewport.Refresher{
		Interval: conf.PollInterval,
		Fetch:    c.Claims,
	}
	go refresher.Run(ctx)

	if conf.Token != "" {
		go subscribe(ctx, c, refresher)
	}

	ebiten.SetWindowSize(1024, 768)
	ebiten.SetWindowTitle("splatgrid")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	g := newGame(ctx, c, refresher, viewerID, conf.ClaimName, conf.CaptureRef)
	if err := ebiten.RunGame(g); err != nil {
		logs.Fatal(errors.New("running viewer failed").Wrap(err))
	}
}

// subscribe refreshes the claims early when the server notifies a change.
// Polling keeps the view up to date when the feed is unavailable.
func subscribe(ctx context.Context, c *client.Client, r *viewport.Refresher) {
	for ctx.Err() == nil {
		err := c.Subscribe(ctx, func(n models.FeedNotice) {
			if n.Type == models.FeedClaimsChanged || n.Type == models.FeedHello {
				r.Request()
			}
		})
		if ctx.Err() != nil {
			return
		}
		logs.WithTag("endpoint", c.Endpoint).
			Debug(errors.New("feed disconnected").Wrap(err))

		select {
		case <-ctx.Done():
		case <-time.After(time.Second * 5):
		}
	}
}
