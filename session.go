package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/vipnode/qwebchannel/journal"
	badgerStore "github.com/vipnode/qwebchannel/journal/badger"
	"github.com/vipnode/qwebchannel/natstransport"
	"github.com/vipnode/qwebchannel/webchannel"
	"github.com/vipnode/qwebchannel/ws"
	"github.com/vipnode/qwebchannel/ws/coder"
	"github.com/vipnode/qwebchannel/ws/gobwas"
	"github.com/vipnode/qwebchannel/ws/gorilla"
	"golang.org/x/sync/errgroup"
)

// transports are the websocket implementations selectable with --transport.
var transports = map[string]ws.DialFunc{
	"gorilla": gorilla.Dial,
	"gobwas":  gobwas.Dial,
	"coder":   coder.Dial,
}

// findDataDir returns a valid data dir, will create it if it doesn't
// exist.
func findDataDir(path string) (string, error) {
	if path == "" {
		path = dirs.DataHome()
	}
	err := os.MkdirAll(path, 0700)
	return path, err
}

// openJournal opens the persistent journal store.
func openJournal(cfg Config) (journal.Store, error) {
	dir, err := findDataDir(cfg.JournalDir)
	if err != nil {
		return nil, err
	}
	store, err := badgerStore.OpenDir(dir)
	if err != nil {
		return nil, ErrExplain{err, fmt.Sprintf("Failed to open the journal at %q. Is another qwebchannel process using it?", dir)}
	}
	return store, nil
}

// dial opens the transport selected by cfg. The returned cleanup releases
// everything dial opened besides the transport itself.
func dial(ctx context.Context, cfg Config) (webchannel.Transport, func(), error) {
	cleanup := func() {}

	var t webchannel.Transport
	if cfg.Transport == "nats" {
		logger.Infof("Connecting to NATS: %s (send %s, receive %s)", cfg.NATSURL, cfg.NATSSend, cfg.NATSRecv)
		conn, err := nats.Connect(cfg.NATSURL, nats.Name("qwebchannel"), nats.Timeout(cfg.Timeout))
		if err != nil {
			return nil, nil, ErrExplain{err, fmt.Sprintf("Failed to connect to the NATS server at %s.", cfg.NATSURL)}
		}
		nt, err := natstransport.New(conn, cfg.NATSSend, cfg.NATSRecv)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		t, cleanup = nt, conn.Close
	} else {
		dialer, ok := transports[cfg.Transport]
		if !ok {
			return nil, nil, fmt.Errorf("unknown transport: %q", cfg.Transport)
		}
		logger.Infof("Connecting to host: %s (%s)", cfg.URL, cfg.Transport)
		wt, err := dialer(ctx, cfg.URL)
		if err != nil {
			return nil, nil, ErrExplain{err, fmt.Sprintf("Failed to connect to the host at %s. Make sure it is running and serves a QWebChannel over a websocket.", cfg.URL)}
		}
		t = wt
	}

	if cfg.Journal {
		store, err := openJournal(cfg)
		if err != nil {
			t.Close()
			cleanup()
			return nil, nil, err
		}
		rec := journal.Transport(t, store, "")
		logger.Infof("Recording to journal session: %s", rec.Session())
		t = rec
		closeConn := cleanup
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warningf("Failed to close journal: %s", err)
			}
			closeConn()
		}
	}

	return webchannel.DebugTransport("host", t), cleanup, nil
}

// withChannel connects to the host, waits for the handshake and runs fn
// while the channel is served. The channel is closed once fn returns.
func withChannel(ctx context.Context, cfg Config, fn func(ctx context.Context, c *webchannel.Channel) error) error {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	t, cleanup, err := dial(dialCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer cleanup()

	c, err := webchannel.New(t, nil)
	if err != nil {
		t.Close()
		return err
	}

	// A protocol violation fails the command, anything else the host sends
	// that cannot be handled is only reported.
	violations := make(chan error, 1)
	c.OnError = func(err error) {
		var protoErr *webchannel.ProtocolError
		if !errors.As(err, &protoErr) {
			logger.Warningf("Ignoring message from host: %s", err)
			return
		}
		select {
		case violations <- err:
		default:
		}
	}

	var closing atomic.Bool
	done := make(chan struct{})
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := c.Serve()
		if closing.Load() {
			return nil
		}
		return err
	})
	g.Go(func() error {
		select {
		case err := <-violations:
			return err
		case <-done:
			return nil
		}
	})
	g.Go(func() error {
		defer func() {
			close(done)
			closing.Store(true)
			c.Close()
		}()

		readyCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		err := c.WaitReady(readyCtx)
		cancel()
		if err == context.DeadlineExceeded {
			return ErrExplain{err, "The host did not answer the init handshake. Is it serving a QWebChannel?"}
		}
		if err != nil {
			return err
		}
		logger.Debugf("Handshake done, objects: %v", c.Objects())
		return fn(ctx, c)
	})
	return g.Wait()
}
