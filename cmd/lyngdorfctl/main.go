// Command lyngdorfctl talks to a Lyngdorf processor directly over its serial
// port or TCP control port, without the bridge daemon.
//
//	lyngdorfctl -url /dev/ttyUSB0 -model mp50 volume -25.5
//	lyngdorfctl -url socket://10.0.0.5 state
//	lyngdorfctl -url socket://10.0.0.5 watch
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/controller"
	"github.com/brianhealey/lyngdorf-go/internal/hardware"
	"github.com/brianhealey/lyngdorf-go/internal/models"
)

const usage = `usage: lyngdorfctl [flags] <command> [args]

commands:
  state                      refresh and print every field as JSON
  query <field>              ask for one field, e.g. volume or trim.bass
  power on|off               main zone power
  volume <dB>|up|down        main volume
  mute on|off|toggle         main mute
  source <n>|next|prev       main source
  zone2 power|volume|mute|source <arg>
  raw <command> [reply]      send a raw command line
  watch                      print updates until interrupted

flags:
`

func main() {
	var (
		url     = flag.String("url", "", "device port url, e.g. /dev/ttyUSB0 or socket://10.0.0.5 (required)")
		model   = flag.String("model", string(hardware.ModelMP60), "device model: mp50 or mp60")
		timeout = flag.Duration("timeout", hardware.DefaultTimeout, "per-command reply timeout")
		echo    = flag.Bool("suppress-echo", false, "drop the link's echo of each command")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *url == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	desc, err := hardware.ParseURL(*url)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := controller.Connect(ctx, desc, hardware.ModelID(*model), controller.Options{
		Timeout:      *timeout,
		SuppressEcho: *echo,
	})
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	if err := run(ctx, s, flag.Args()); err != nil {
		s.Close()
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "lyngdorfctl:", err)
	os.Exit(1)
}

func run(ctx context.Context, s *controller.Session, args []string) error {
	cmd, args := args[0], args[1:]
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch cmd {
	case "state":
		if err := s.RequestFullRefresh(ctx); err != nil && s.Err() != nil {
			return err
		}
		return printJSON(s.Snapshot())
	case "query":
		v, err := s.Query(ctx, models.Field(arg(0)))
		if err != nil {
			return err
		}
		return printJSON(v)
	case "power":
		on, err := parseOnOff(arg(0))
		if err != nil {
			return err
		}
		return s.SetPower(ctx, on)
	case "volume":
		switch arg(0) {
		case "up":
			return s.VolumeUp(ctx, 0)
		case "down":
			return s.VolumeDown(ctx, 0)
		}
		db, err := strconv.ParseFloat(arg(0), 64)
		if err != nil {
			return fmt.Errorf("volume: %q is not a number", arg(0))
		}
		return s.SetVolume(ctx, db)
	case "mute":
		if arg(0) == "toggle" {
			return s.ToggleMute(ctx)
		}
		on, err := parseOnOff(arg(0))
		if err != nil {
			return err
		}
		return s.SetMute(ctx, on)
	case "source":
		switch arg(0) {
		case "next":
			return s.NextSource(ctx)
		case "prev":
			return s.PrevSource(ctx)
		}
		n, err := strconv.Atoi(arg(0))
		if err != nil {
			return fmt.Errorf("source: %q is not an index", arg(0))
		}
		return s.SetSource(ctx, n)
	case "zone2":
		return zone2(ctx, s, arg(0), arg(1))
	case "raw":
		msg, err := s.SendRaw(ctx, arg(0), arg(1))
		if err != nil {
			return err
		}
		fmt.Println(msg.Raw)
		return nil
	case "watch":
		return watch(ctx, s)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func zone2(ctx context.Context, s *controller.Session, what, v string) error {
	switch what {
	case "power":
		on, err := parseOnOff(v)
		if err != nil {
			return err
		}
		return s.SetZone2Power(ctx, on)
	case "volume":
		db, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("zone2 volume: %q is not a number", v)
		}
		return s.SetZone2Volume(ctx, db)
	case "mute":
		if v == "toggle" {
			return s.ToggleZone2Mute(ctx)
		}
		on, err := parseOnOff(v)
		if err != nil {
			return err
		}
		return s.SetZone2Mute(ctx, on)
	case "source":
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("zone2 source: %q is not an index", v)
		}
		return s.SetZone2Source(ctx, n)
	default:
		return fmt.Errorf("zone2: unknown setting %q", what)
	}
}

func watch(ctx context.Context, s *controller.Session) error {
	_, err := s.OnUpdate(nil, func(u models.Update) {
		if u.Err != nil {
			fmt.Printf("%s connection lost: %v\n", time.Now().Format(time.TimeOnly), u.Err)
			return
		}
		fmt.Printf("%s %s = %v\n", time.Now().Format(time.TimeOnly), u.Field, u.Value)
	})
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return nil
	case <-s.Done():
		return s.Err()
	}
}

func parseOnOff(v string) (bool, error) {
	switch v {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", v)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
