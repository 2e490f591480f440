package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"
	"github.com/frobnitzem/go-vfs"
	"github.com/frobnitzem/go-vfs/config"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/net/context"
)

var (
	cfgPath  string
	logLevel string
	timeout  time.Duration
	perf     bool
)

func init() {
	pflag.StringVarP(&cfgPath, "config", "c", "", "JSONC config file")
	pflag.StringVar(&logLevel, "log-level", "", "override the configured log level")
	pflag.DurationVar(&timeout, "timeout", 5*time.Second, "per-command timeout")
	pflag.BoolVar(&perf, "perf", false, "Run a performance profile server?")
}

func main() {
	pflag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if perf {
		fmt.Println("Starting a pprof server on http://localhost:6060/debug/pprof")
		go func() {
			log.Warn("pprof server exited", zap.Error(http.ListenAndServe("localhost:6060", nil)))
		}()
	}

	ns, err := config.Build(cfg, log)
	if err != nil {
		log.Fatal("building namespace", zap.Error(err))
	}
	defer ns.Stop(nil)

	commander := &nsCommander{
		ctx:    context.Background(),
		ns:     ns,
		stdout: os.Stdout,
	}

	completer := readline.NewPrefixCompleter(
		readline.PcItem("mounts"),
		readline.PcItem("ls"),
		readline.PcItem("open"),
		readline.PcItem("cat"),
		readline.PcItem("read"),
		readline.PcItem("write"),
		readline.PcItem("stat"),
		readline.PcItem("path"),
		readline.PcItem("size"),
		readline.PcItem("ioctl"),
		readline.PcItem("close"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "vsh > ",
		HistoryFile:  ".vsh_history",
		AutoComplete: completer,
	})
	if err != nil {
		log.Fatal("readline", zap.Error(err))
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil { // io.EOF
			return
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		name := args[0]
		var cmd func(ctx context.Context, args ...string) error

		switch name {
		case "mounts":
			cmd = commander.cmdmounts
		case "ls":
			cmd = commander.cmdls
		case "open":
			cmd = commander.cmdopen
		case "cat":
			cmd = commander.cmdcat
		case "read":
			cmd = commander.cmdread
		case "write":
			cmd = commander.cmdwrite
		case "stat":
			cmd = commander.cmdstat
		case "path":
			cmd = commander.cmdpath
		case "size":
			cmd = commander.cmdsize
		case "ioctl":
			cmd = commander.cmdioctl
		case "close":
			cmd = commander.cmdclose
		case "exit", "quit":
			return
		default:
			cmd = func(ctx context.Context, args ...string) error {
				return fmt.Errorf("command not implemented")
			}
		}

		ctx, cancel := context.WithTimeout(commander.ctx, timeout)
		if err := cmd(ctx, args[1:]...); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		}
		cancel()
	}
}

type nsCommander struct {
	ctx    context.Context
	ns     *vfs.Namespace
	stdout io.Writer
}

func parseMode(s string) (vfs.Mode, error) {
	var mode vfs.Mode
	switch strings.TrimSuffix(s, "c") {
	case "r", "":
		mode = vfs.OREAD
	case "w":
		mode = vfs.OWRITE
	case "rw":
		mode = vfs.ORDWR
	default:
		return 0, fmt.Errorf("bad mode %q (want r, w, rw, optionally suffixed by c)", s)
	}
	if strings.HasSuffix(s, "c") {
		mode |= vfs.OCREATE
	}
	return mode, nil
}

func parseFd(args []string, n int) (vfs.Fd, error) {
	if len(args) < n {
		return vfs.NOFD, fmt.Errorf("need %d argument(s)", n)
	}
	fd, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return vfs.NOFD, fmt.Errorf("bad fd %q", args[0])
	}
	return vfs.Fd(fd), nil
}

func (c *nsCommander) cmdmounts(ctx context.Context, args ...string) error {
	for _, name := range c.ns.Mounts() {
		fmt.Fprintln(c.stdout, name)
	}
	return nil
}

func (c *nsCommander) cmdls(ctx context.Context, args ...string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: ls <mount>")
	}
	fd, err := c.ns.Open(ctx, strings.TrimSuffix(args[0], ":")+":", vfs.OREAD)
	if err != nil {
		return err
	}
	defer c.ns.Close(ctx, fd)

	ents, err := c.ns.ReadDir(ctx, fd)
	if err != nil {
		return err
	}
	wr := tabwriter.NewWriter(c.stdout, 0, 8, 2, ' ', 0)
	for _, e := range ents {
		fmt.Fprintf(wr, "%v\t%v\t%v\t%s\n", e.Flags, e.Size, e.ModTime.Format(time.RFC3339), e.Name)
	}
	// all output is dumped only after success.
	return wr.Flush()
}

func (c *nsCommander) cmdopen(ctx context.Context, args ...string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: open <mount:name> [r|w|rw][c]")
	}
	mode := vfs.ORDWR
	if len(args) == 2 {
		var err error
		if mode, err = parseMode(args[1]); err != nil {
			return err
		}
	}
	// The timeout bounds the dial only; the descriptor outlives it.
	fd, err := c.ns.Open(ctx, args[0], mode)
	if err != nil {
		return err
	}
	flags, _ := c.ns.Flags(fd)
	fmt.Fprintf(c.stdout, "%d\t%v\n", fd, flags)
	return nil
}

func (c *nsCommander) cmdcat(ctx context.Context, args ...string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cat <mount:name>")
	}
	fd, err := c.ns.Open(ctx, args[0], vfs.OREAD)
	if err != nil {
		return err
	}
	defer c.ns.Close(ctx, fd)

	b := make([]byte, 4096)
	for {
		n, err := c.ns.Read(ctx, fd, b)
		if _, werr := c.stdout.Write(b[:n]); werr != nil {
			return werr
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func (c *nsCommander) cmdread(ctx context.Context, args ...string) error {
	fd, err := parseFd(args, 1)
	if err != nil {
		return err
	}
	size := 512
	if len(args) > 1 {
		if size, err = strconv.Atoi(args[1]); err != nil || size < 0 {
			return fmt.Errorf("bad count %q", args[1])
		}
	}
	b := make([]byte, size)
	n, err := c.ns.Read(ctx, fd, b)
	c.stdout.Write(b[:n])
	if n > 0 {
		fmt.Fprintln(c.stdout)
	}
	return err
}

func (c *nsCommander) cmdwrite(ctx context.Context, args ...string) error {
	fd, err := parseFd(args, 1)
	if err != nil {
		return err
	}
	b := []byte(strings.Join(args[1:], " ") + "\n")
	for len(b) > 0 {
		n, err := c.ns.Write(ctx, fd, b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func (c *nsCommander) cmdstat(ctx context.Context, args ...string) error {
	fd, err := parseFd(args, 1)
	if err != nil {
		return err
	}
	info, err := c.ns.Stat(ctx, fd)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s\t%d\t%v\t%s\n", info.Name, info.Size, info.Flags, info.ModTime.Format(time.RFC3339))
	return nil
}

func (c *nsCommander) cmdpath(ctx context.Context, args ...string) error {
	fd, err := parseFd(args, 1)
	if err != nil {
		return err
	}
	b := make([]byte, 256)
	n, err := c.ns.Path(fd, b)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, string(b[:n]))
	return nil
}

func (c *nsCommander) cmdsize(ctx context.Context, args ...string) error {
	fd, err := parseFd(args, 1)
	if err != nil {
		return err
	}
	size, err := c.ns.Size(fd)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, size)
	return nil
}

// ioctl <fd> <request> [hex argument]
func (c *nsCommander) cmdioctl(ctx context.Context, args ...string) error {
	fd, err := parseFd(args, 2)
	if err != nil {
		return err
	}
	req, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return fmt.Errorf("bad request %q", args[1])
	}
	arg := make([]byte, 256)
	if len(args) > 2 {
		if arg, err = hex.DecodeString(args[2]); err != nil {
			return err
		}
	}
	n, err := c.ns.Ioctl(ctx, fd, uint32(req), arg)
	if err != nil {
		return err
	}
	if n > 0 && n <= len(arg) {
		fmt.Fprintf(c.stdout, "%d\t%q\n", n, arg[:n])
	} else {
		fmt.Fprintln(c.stdout, n)
	}
	return nil
}

func (c *nsCommander) cmdclose(ctx context.Context, args ...string) error {
	fd, err := parseFd(args, 1)
	if err != nil {
		return err
	}
	return c.ns.Close(ctx, fd)
}
