package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
	flags "github.com/jessevdk/go-flags"
	"github.com/vipnode/qwebchannel/journal"
	"github.com/vipnode/qwebchannel/webchannel"
	"github.com/vipnode/qwebchannel/ws"
)

// Version of the binary, assigned during build.
var Version string = "dev"

// Options contains the flag options
type Options struct {
	Verbose []bool `short:"v" long:"verbose" description:"Show verbose logging."`
	Version bool   `long:"version" description:"Print version and exit."`
	Config  string `long:"config" description:"Path to a TOML config file. (default: $XDG_CONFIG_HOME/qwebchannel/config.toml)"`

	URL        string        `short:"u" long:"url" description:"WebSocket URL of the host. (default: ws://127.0.0.1:12345)"`
	Transport  string        `long:"transport" description:"Transport to the host. (gorilla|gobwas|coder|nats)"`
	Timeout    time.Duration `long:"timeout" description:"Timeout for connecting and for each request. (default: 5s)"`
	NATSURL    string        `long:"nats-url" description:"NATS server URL for --transport=nats."`
	NATSSend   string        `long:"nats-send" description:"NATS subject the host receives on."`
	NATSRecv   string        `long:"nats-recv" description:"NATS subject the host publishes on."`
	Record     bool          `long:"journal" description:"Record all traffic to the journal."`
	JournalDir string        `long:"journal-dir" description:"Journal directory. (default: $XDG_DATA_HOME/qwebchannel)"`

	Inspect struct{} `command:"inspect" description:"List the objects published by the host."`

	Call struct {
		Args struct {
			Object string   `positional-arg-name:"object" required:"yes"`
			Method string   `positional-arg-name:"method" required:"yes"`
			Params []string `positional-arg-name:"params" description:"JSON values, anything else is sent as a string."`
		} `positional-args:"yes"`
	} `command:"call" description:"Invoke a method and print its return value."`

	Get struct {
		Args struct {
			Object   string `positional-arg-name:"object" required:"yes"`
			Property string `positional-arg-name:"property" required:"yes"`
		} `positional-args:"yes"`
	} `command:"get" description:"Print the current value of a property."`

	Set struct {
		Args struct {
			Object   string `positional-arg-name:"object" required:"yes"`
			Property string `positional-arg-name:"property" required:"yes"`
			Value    string `positional-arg-name:"value" required:"yes"`
		} `positional-args:"yes"`
	} `command:"set" description:"Ask the host to change a property."`

	Watch struct {
		Match []string `long:"match" description:"Regular expression over object.signal names to watch. Can be repeated."`
		Args  struct {
			Signals []string `positional-arg-name:"object.signal"`
		} `positional-args:"yes"`
	} `command:"watch" description:"Print signal emissions and property changes until interrupted."`

	Journal struct {
		Args struct {
			Session string `positional-arg-name:"session"`
		} `positional-args:"yes"`
	} `command:"journal" description:"List recorded sessions, or print the messages of one."`
}

const watchUsage = `Examples:
* Watch every signal of every object:
  $ qwebchannel watch

* Watch one signal, plus anything ending in Changed:
  $ qwebchannel watch bridge.status_update --match 'Changed$'
`

var logLevels = []log.Level{
	log.Warning,
	log.Info,
	log.Debug,
}

func subcommand(ctx context.Context, cmd string, options Options, cfg Config, out io.Writer) error {
	switch cmd {
	case "inspect":
		return withChannel(ctx, cfg, func(ctx context.Context, c *webchannel.Channel) error {
			return runInspect(ctx, c, out)
		})

	case "call":
		args := options.Call.Args
		return withChannel(ctx, cfg, func(ctx context.Context, c *webchannel.Channel) error {
			return runCall(ctx, c, out, cfg.Timeout, args.Object, args.Method, args.Params)
		})

	case "get":
		args := options.Get.Args
		return withChannel(ctx, cfg, func(ctx context.Context, c *webchannel.Channel) error {
			return runGet(ctx, c, out, args.Object, args.Property)
		})

	case "set":
		args := options.Set.Args
		return withChannel(ctx, cfg, func(ctx context.Context, c *webchannel.Channel) error {
			return runSet(ctx, c, args.Object, args.Property, args.Value)
		})

	case "watch":
		matcher, err := newSignalMatcher(options.Watch.Args.Signals, options.Watch.Match)
		if err != nil {
			return err
		}
		return withChannel(ctx, cfg, func(ctx context.Context, c *webchannel.Channel) error {
			return runWatch(ctx, c, out, matcher)
		})

	case "journal":
		store, err := openJournal(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		return runJournal(store, out, options.Journal.Args.Session)
	}

	return fmt.Errorf("unknown command: %s", cmd)
}

func main() {
	options := Options{}
	parser := flags.NewParser(&options, flags.Default)
	parser.SubcommandsOptional = true
	p, err := parser.Parse()
	if err != nil {
		if p == nil {
			fmt.Println(err)
		}
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp && parser.Active != nil {
			// Print additional usage help when run with --help
			switch parser.Active.Name {
			case "watch":
				exit(0, watchUsage)
			}
		}
		return
	}

	if options.Version {
		fmt.Println(Version)
		os.Exit(0)
	}

	// Figure out the log level
	numVerbose := len(options.Verbose)
	if numVerbose >= len(logLevels) {
		numVerbose = len(logLevels) - 1
	}

	logLevel := logLevels[numVerbose]
	logWriter := os.Stderr

	SetLogger(golog.New(logWriter, logLevel))
	if logLevel == log.Debug {
		// Enable logging from subpackages
		webchannel.SetLogger(logWriter)
		journal.SetLogger(logWriter)
		ws.SetLogger(logWriter)
	}

	cmd := "inspect"
	if parser.Active != nil {
		cmd = parser.Active.Name
	}

	cfg, err := loadConfig(options.Config)
	if err != nil {
		exit(2, "%s failed: %s\n", cmd, ErrExplain{err, "Fix the config file or point --config at another one."})
	}
	cfg.applyFlags(options)
	if err := cfg.validate(); err != nil {
		exit(2, "%s failed: %s\n", cmd, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = subcommand(ctx, cmd, options, cfg, os.Stdout)
	if err == nil {
		return
	}

	if err == io.EOF {
		exit(3, "Connection closed.\n")
	}

	exit(2, "%s failed: %s\n", cmd, explainError(err))
}

// explainError annotates err with what the user can do about it, unless it
// already carries an explanation.
func explainError(err error) error {
	var protoErr *webchannel.ProtocolError
	var initErr webchannel.ErrInitFailed
	var netErr net.Error
	var explained ErrExplain
	switch {
	case errors.As(err, &explained):
		// All good.
	case errors.As(err, &protoErr):
		return ErrExplain{err, `The host answered a request that was never sent. Is another client sharing this connection?`}
	case errors.As(err, &initErr):
		return ErrExplain{err, `The host's object descriptions could not be read. Check that the URL points at a QWebChannel server.`}
	case errors.As(err, &netErr):
		return ErrExplain{err, `Disconnected from the host unexpectedly. Could be a connectivity issue or the host is down. Try again?`}
	default:
		return ErrExplain{err, fmt.Sprintf(`Error type %T is missing an explanation. Please report it along with the command you ran.`, err)}
	}

	return err
}

func exit(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

// ErrExplain annotates an error with an explanation.
type ErrExplain struct {
	Cause       error
	Explanation string
}

func (err ErrExplain) Error() string {
	return fmt.Sprintf("%s\n -> %s", err.Cause, err.Explanation)
}

func (err ErrExplain) Unwrap() error {
	return err.Cause
}
