package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"dotmatrix"
	"dotmatrix/debug"
	"dotmatrix/render"
)

const defaultCycleBudget = 100_000_000

func main() {
	app := cli.NewApp()
	app.Name = "dotmatrix"
	app.Description = "A DMG core emulator"
	app.Usage = "dotmatrix [options] <ROM file>"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "boot",
			Usage: "Path to a 256-byte boot firmware image",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without a display",
		},
		cli.Uint64Flag{
			Name:  "cycles",
			Usage: "Machine-cycle budget for headless mode",
			Value: defaultCycleBudget,
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowAppHelp(c)
		return errors.New("no ROM path provided")
	}
	romPath := c.Args().Get(0)

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return err
	}
	slog.Debug("Loaded ROM data", "path", romPath, "size", len(rom))

	var boot []byte
	if bootPath := c.String("boot"); bootPath != "" {
		boot, err = os.ReadFile(bootPath)
		if err != nil {
			return err
		}
		slog.Debug("Loaded boot image", "path", bootPath, "size", len(boot))
	}

	emu, err := dotmatrix.New(rom, boot)
	if err != nil {
		return err
	}

	if c.Bool("headless") {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		slog.SetDefault(slog.New(handler))

		cycles := c.Uint64("cycles")
		slog.Info("Running headless", "cycles", cycles)
		if err := render.RunHeadless(emu, cycles); err != nil {
			debug.DumpState(os.Stderr, emu)
			return err
		}
		slog.Info("Headless execution completed", "mcycles", emu.Clock())
		return nil
	}

	renderer, err := render.NewTerminalRenderer(emu)
	if err != nil {
		return err
	}
	if err := renderer.Run(); err != nil {
		debug.DumpState(os.Stderr, emu)
		return err
	}
	return nil
}
