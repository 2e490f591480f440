// Command echod is a TCP echo endpoint for trying out the tcp mount.
package main

import (
	"errors"
	"io"
	"net"
	"os"
	"os/signal"

	"github.com/frobnitzem/go-vfs/config"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/net/context"
)

var (
	addr     string
	logLevel string
)

func init() {
	pflag.StringVar(&addr, "addr", "127.0.0.1:7007", "bind addr for the echo server")
	pflag.StringVar(&logLevel, "log-level", "info", "log level")
}

func main() {
	pflag.Parse()

	log, err := config.NewLogger(config.LogConfig{Level: logLevel})
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	listener, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Fatal("error listening", zap.Error(err))
	}
	log.Info("serving", zap.Stringer("addr", listener.Addr()))

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		c, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Info("shutting down")
				return
			}
			log.Warn("error accepting", zap.Error(err))
			continue
		}

		go func(conn net.Conn) {
			defer conn.Close()
			peer := log.With(zap.Stringer("peer", conn.RemoteAddr()))
			peer.Debug("connected")
			n, err := io.Copy(conn, conn)
			peer.Debug("disconnected", zap.Int64("bytes", n), zap.Error(err))
		}(c)
	}
}
