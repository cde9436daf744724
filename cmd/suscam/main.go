// cmd/suscam/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AlverezYari/suscam/internal/config"
	"github.com/AlverezYari/suscam/internal/logging"
	"github.com/AlverezYari/suscam/internal/server"
	"github.com/AlverezYari/suscam/internal/tui"
	"github.com/AlverezYari/suscam/pkg/camera"
	"github.com/AlverezYari/suscam/pkg/camera/opencv"
	"github.com/AlverezYari/suscam/pkg/client"
)

func main() {
	app := &cli.App{
		Name:  "suscam",
		Usage: "control a pan/tilt camera, or a local webcam when it is out of reach",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ip", Usage: "camera address (overrides SUS_IP)"},
			&cli.BoolFlag{Name: "fallback", Usage: "skip the remote camera and use the local webcam"},
			&cli.BoolFlag{Name: "debug", Usage: "log at debug level"},
		},
		Commands: []*cli.Command{
			{
				Name:   "view",
				Usage:  "open the terminal control panel",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "log-file", Value: "suscam.log", Usage: "where logs go while the panel owns the terminal"}},
				Action: viewAction,
			},
			{
				Name:   "info",
				Usage:  "print position, limits and client count",
				Action: infoAction,
			},
			{
				Name:      "move",
				Usage:     "send movement verbs in order",
				ArgsUsage: "[up|down|left|right|center ...]",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "pause", Value: time.Second, Usage: "pause between moves"},
					&cli.StringFlag{Name: "to", Usage: "absolute target as x,y"},
				},
				Action: moveAction,
			},
			{
				Name:   "fakecam",
				Usage:  "run a camera simulator",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "port", Usage: "listen port (overrides config)"}},
				Action: fakecamAction,
			},
			{
				Name:   "devices",
				Usage:  "list local capture devices",
				Flags:  []cli.Flag{&cli.IntFlag{Name: "max", Value: 5, Usage: "device indices to probe"}},
				Action: devicesAction,
			},
			{
				Name:   "config",
				Usage:  "write the effective configuration to the config file",
				Action: configAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	cfg    *config.AppConfig
	logger *zap.SugaredLogger
}

func setup(c *cli.Context, logFile string) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if ip := c.String("ip"); ip != "" {
		cfg.Camera.IP = ip
	}
	if c.Bool("fallback") {
		cfg.Camera.Fallback = true
	}
	if logFile == "" {
		logFile = cfg.Log.File
	}
	logger, err := logging.New(logging.Options{File: logFile, Level: cfg.Log.Level, Debug: c.Bool("debug")})
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func (e *env) session() *client.Session {
	opts := []client.Option{
		client.WithLogger(e.logger),
		client.WithConnectTimeout(e.cfg.Camera.ConnectTimeout),
		client.WithQueryTimeout(e.cfg.Camera.QueryTimeout),
		client.WithFrameInterval(e.cfg.FrameInterval()),
		client.WithLocalDevice(func() (camera.Device, error) {
			return opencv.Open(e.cfg.Local.DeviceID)
		}),
	}
	if e.cfg.Camera.Fallback {
		opts = append(opts, client.WithForcedFallback())
	}
	return client.New(e.cfg.Camera.IP, opts...)
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func viewAction(c *cli.Context) error {
	e, err := setup(c, c.String("log-file"))
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	sess := e.session()
	defer sess.Close()

	ctx, cancel := signalContext(c)
	defer cancel()
	if err := sess.Connect(ctx); err != nil {
		return err
	}

	p := tea.NewProgram(
		tui.New(sess),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	onImage, onMessage := tui.Handlers(p.Send)
	sess.SetImageHandler(onImage)
	sess.SetMessageHandler(onMessage)

	go func() {
		<-sess.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "control panel failed")
	}
	return nil
}

func infoAction(c *cli.Context) error {
	e, err := setup(c, "")
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	sess := e.session()
	defer sess.Close()

	ctx, cancel := signalContext(c)
	defer cancel()
	if err := sess.Connect(ctx); err != nil {
		return err
	}

	var (
		pos     camera.Position
		limits  camera.Bounds
		clients int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		pos, err = sess.GetPos(gctx)
		return err
	})
	g.Go(func() (err error) {
		limits, err = sess.GetLimits(gctx)
		return err
	})
	g.Go(func() (err error) {
		clients, err = sess.ClientCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("Camera:   %s (%s)\n", sess.Address(), sess.Mode())
	fmt.Printf("Position: x=%d y=%d\n", pos.X, pos.Y)
	fmt.Printf("Limits:   x %d..%d, y %d..%d\n", limits.XMin, limits.XMax, limits.YMin, limits.YMax)
	fmt.Printf("Clients:  %d\n", clients)
	return nil
}

func moveAction(c *cli.Context) error {
	e, err := setup(c, "")
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	sess := e.session()
	defer sess.Close()

	ctx, cancel := signalContext(c)
	defer cancel()
	if err := sess.Connect(ctx); err != nil {
		return err
	}

	verbs := map[string]func(context.Context) error{
		"up":     sess.Up,
		"down":   sess.Down,
		"left":   sess.Left,
		"right":  sess.Right,
		"center": sess.Center,
	}
	steps := c.Args().Slice()
	if len(steps) == 0 && c.String("to") == "" {
		steps = []string{"right", "left", "up", "down", "center"}
	}

	for i, step := range steps {
		fn, ok := verbs[step]
		if !ok {
			return errors.Errorf("unknown direction %q", step)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Duration("pause")):
			}
		}
		if err := fn(ctx); err != nil {
			return errors.Wrapf(err, "move %s", step)
		}
		e.logger.Infow("moved", "direction", step)
	}

	if to := c.String("to"); to != "" {
		var x, y int
		if _, err := fmt.Sscanf(to, "%d,%d", &x, &y); err != nil {
			return errors.Wrapf(err, "invalid target %q, want x,y", to)
		}
		if err := sess.SetPosition(ctx, x, y); err != nil {
			return err
		}
	}

	pos, err := sess.GetPos(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Position: x=%d y=%d\n", pos.X, pos.Y)
	return nil
}

func fakecamAction(c *cli.Context) error {
	e, err := setup(c, "")
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	port := e.cfg.Simulator.Port
	if p := c.String("port"); p != "" {
		port = p
	}
	srv := server.New(server.Config{Port: port}, e.logger)
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	fmt.Printf("Simulator listening on ws://localhost:%s/ws (Ctrl+C to stop)\n", srv.Port())
	srv.StreamFrames(ctx, e.cfg.Simulator.FPS)
	return srv.Stop()
}

func devicesAction(c *cli.Context) error {
	devices := opencv.Scan(c.Int("max"))
	if len(devices) == 0 {
		fmt.Println("No capture devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%d\t%s\n", d.ID, d.Name)
	}
	return nil
}

func configAction(c *cli.Context) error {
	e, err := setup(c, "")
	if err != nil {
		return err
	}
	path, err := config.Save(e.cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", path)
	return nil
}
