package coder

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vipnode/qwebchannel/internal/fakehost"
	"github.com/vipnode/qwebchannel/webchannel"
	"github.com/vipnode/qwebchannel/ws"
)

type Calc struct{}

func (Calc) Add(a, b int) int { return a + b }

func TestTransport(t *testing.T) {
	srv := httptest.NewServer(ws.Handler(ws.UpgraderFunc(Accept), func(tr webchannel.Transport) error {
		host := fakehost.New(tr)
		if err := host.Register("calc", fakehost.Object{Receiver: Calc{}}); err != nil {
			return err
		}
		return host.Serve()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := webchannel.New(tr, nil)
	if err != nil {
		t.Fatal(err)
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- c.Serve() }()

	if err := c.WaitReady(ctx); err != nil {
		t.Fatal(err)
	}
	calc, ok := c.Object("calc")
	if !ok {
		t.Fatal("calc not published")
	}
	var sum int
	if err := calc.Call(ctx, &sum, "add", 40, 2); err != nil {
		t.Fatal(err)
	}
	if sum != 42 {
		t.Errorf("got: %d; want: 42", sum)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := <-serveErr; err != io.EOF {
		t.Errorf("got: %v; want: %v", err, io.EOF)
	}
}
