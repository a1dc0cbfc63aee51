package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inhies/go-bytesize"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"epaperd/pkg/config"
	"epaperd/pkg/device/virtual"
	"epaperd/pkg/interp"
	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
	"epaperd/pkg/sender"
	"epaperd/pkg/store"
)

var configPath = flag.String("config", "", "daemon config file; its data dir, ring size, display and link settings become the defaults")
var dataDir = flag.String("data", config.DefaultDataDir, "slot directory")
var maxSlots = flag.Uint16("max-slots", store.DefaultMaxSlots, "slot ring size")
var serialName = flag.String("serial", "rfcomm0", "serial name")
var baudRate = flag.Int("baud", config.DefaultBaudRate, "baud rate")
var display = flag.Uint8("display", config.DefaultDisplay, "display selector for send")
var chunk = flag.Int("chunk", sender.DefaultChunkSize, "load chunk size for send")
var timeout = flag.Duration("timeout", 2*time.Second, "reply timeout")
var debug = flag.Bool("debug", false, "set debug")

func usage() {
	fmt.Fprintf(os.Stderr, `usage: imgctl [flags] <command>

commands:
  ls                     list stored slots
  show <index>           replay a slot to a virtual panel
  dump <index>           print the packets of a slot
  push <file>            send a recorded slot over the serial link
  send <black> [red]     frame raw channel data and send it

flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	logger := zap.NewNop()
	if *debug {
		logger, _ = zap.NewDevelopment()
	}

	if *configPath != "" {
		if err := applyConfig(afero.NewOsFs(), *configPath, flag.CommandLine.Changed); err != nil {
			fmt.Fprintln(os.Stderr, "imgctl:", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := dispatch(ctx, flag.Args(), logger); err != nil {
		fmt.Fprintln(os.Stderr, "imgctl:", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, args []string, logger *zap.Logger) error {
	if len(args) == 0 {
		usage()
		return errors.New("missing command")
	}

	switch args[0] {
	case "ls":
		return list(os.Stdout, logger)
	case "show":
		idx, err := index(args)
		if err != nil {
			return err
		}
		return show(ctx, os.Stdout, idx, logger)
	case "dump":
		idx, err := index(args)
		if err != nil {
			return err
		}
		return dump(os.Stdout, idx, logger)
	case "push":
		if len(args) != 2 {
			return errors.New("push needs a file")
		}
		return push(ctx, args[1], logger)
	case "send":
		if len(args) < 2 || len(args) > 3 {
			return errors.New("send needs one or two channel files")
		}
		return send(ctx, args[1:], logger)
	}
	return errors.Errorf("unknown command %q", args[0])
}

func index(args []string) (uint16, error) {
	if len(args) != 2 {
		return 0, errors.Errorf("%s needs a slot index", args[0])
	}
	var idx uint16
	if _, err := fmt.Sscanf(args[1], "%d", &idx); err != nil {
		return 0, errors.Wrapf(err, "slot index %q", args[1])
	}
	return idx, nil
}

// applyConfig takes the daemon's settings for every flag not given on the
// command line, so the ring is read with the size it was written with.
func applyConfig(fs afero.Fs, path string, changed func(name string) bool) error {
	cfg, err := config.Load(fs, path)
	if err != nil {
		return err
	}

	if !changed("data") {
		*dataDir = cfg.DataDir
	}
	if !changed("max-slots") {
		*maxSlots = cfg.MaxSlots
	}
	if !changed("display") {
		*display = cfg.DisplayType
	}
	if !changed("serial") && cfg.Serial != "" {
		*serialName = cfg.Serial
	}
	if !changed("baud") {
		*baudRate = cfg.BaudRate
	}
	return nil
}

// openStore never writes: the daemon owns the cursor.
func openStore(logger *zap.Logger) (*store.Store, error) {
	fs, err := store.DirFs(*dataDir, false)
	if err != nil {
		return nil, err
	}
	return store.Inspect(fs, store.WithMaxSlots(*maxSlots), store.WithLogger(logger))
}

func list(w io.Writer, logger *zap.Logger) error {
	st, err := openStore(logger)
	if err != nil {
		return err
	}
	return printSlots(w, st)
}

func printSlots(w io.Writer, st *store.Store) error {
	slots, err := st.Slots()
	if err != nil {
		return err
	}

	cur := st.Cursor()
	for _, sl := range slots {
		mark := lo.Ternary(sl.Ordinal == cur.CurrentIndex, "*", " ")
		fmt.Fprintf(w, "%s %s %10s  %s\n", mark, sl.Name, bytesize.New(float64(sl.Size)), sl.ModTime.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "%d/%d slots, current %d, next %d\n", len(slots), st.Max(), cur.CurrentIndex, cur.SlotCount)
	return nil
}

func show(ctx context.Context, w io.Writer, idx uint16, logger *zap.Logger) error {
	st, err := openStore(logger)
	if err != nil {
		return err
	}

	dev := virtual.New(logger)
	if err := interp.New(st, dev, interp.WithLogger(logger)).Replay(ctx, idx); err != nil {
		return err
	}

	f := dev.Frame()
	fmt.Fprintf(w, "display %d (%s), %d refresh\n", f.Model.Selector, f.Model.Title, f.Frames)
	fmt.Fprintf(w, "primary %s, secondary %s\n", bytesize.New(float64(len(f.Primary))), bytesize.New(float64(len(f.Second))))
	for _, code := range f.Commands {
		fmt.Fprintf(w, "command %#02x\n", code)
	}
	return nil
}

func dump(w io.Writer, idx uint16, logger *zap.Logger) error {
	st, err := openStore(logger)
	if err != nil {
		return err
	}

	f, err := st.Read(idx)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	return dumpStream(w, f)
}

func dumpStream(w io.Writer, r io.Reader) error {
	src := proto.NewReplay(r, proto.MaxPacketSize)
	for n := 0; ; n++ {
		burst, err := src.PollBurst(context.Background())
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		pkt, err := proto.DecodeBytes(burst)
		switch {
		case err != nil:
			fmt.Fprintf(w, "%4d %-6s %v\n", n, pkt.Op, err)
		case pkt.Op == proto.OpInit:
			title := "unknown"
			if m, ok := panel.Default.Lookup(pkt.Selector); ok {
				title = m.Title
			}
			fmt.Fprintf(w, "%4d %-6s selector=%d (%s)\n", n, pkt.Op, pkt.Selector, title)
		case pkt.Op == proto.OpLoad:
			fmt.Fprintf(w, "%4d %-6s size=%d total=%d\n", n, pkt.Op, pkt.Size, pkt.Total)
		default:
			fmt.Fprintf(w, "%4d %-6s\n", n, pkt.Op)
		}
	}
}

func openLink() (*proto.Serial, error) {
	link := proto.NewSerial(*serialName)
	if err := link.Open(&proto.Options{BaudRate: *baudRate, ReadTimeout: 50 * time.Millisecond}); err != nil {
		return nil, err
	}
	return link, nil
}

func push(ctx context.Context, path string, logger *zap.Logger) error {
	fs := afero.NewOsFs()
	info, err := fs.Stat(path)
	if err != nil {
		return err
	}
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	link, err := openLink()
	if err != nil {
		return err
	}
	defer func() {
		_ = link.Close()
	}()

	bar := progressbar.DefaultBytes(info.Size(), fmt.Sprintf("Pushing %s", path))
	rep, err := sender.New(link,
		sender.WithLogger(logger),
		sender.WithProgress(bar),
		sender.WithTimeout(*timeout),
	).Push(ctx, f)
	report(rep)
	return err
}

func send(ctx context.Context, files []string, logger *zap.Logger) error {
	fs := afero.NewOsFs()
	var channels [2][]byte
	for i, name := range files {
		data, err := afero.ReadFile(fs, name)
		if err != nil {
			return err
		}
		channels[i] = data
	}

	link, err := openLink()
	if err != nil {
		return err
	}
	defer func() {
		_ = link.Close()
	}()

	total := 0
	for _, pkt := range sender.Capture(*display, channels[0], channels[1], *chunk) {
		total += len(pkt)
	}
	bar := progressbar.DefaultBytes(int64(total), fmt.Sprintf("Sending display %d", *display))
	rep, err := sender.New(link,
		sender.WithLogger(logger),
		sender.WithProgress(bar),
		sender.WithTimeout(*timeout),
		sender.WithChunkSize(*chunk),
	).Send(ctx, *display, channels[0], channels[1])
	report(rep)
	return err
}

func report(rep sender.Report) {
	fmt.Fprintf(os.Stderr, "\n%d packets, %s, %d retried, %d rejected, %d skipped\n",
		rep.Packets, bytesize.New(float64(rep.Bytes)), rep.Retried, rep.Rejected, rep.Skipped)
}
