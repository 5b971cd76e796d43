package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"meshdash/internal/api"
	"meshdash/internal/config"
	"meshdash/internal/dashboard"
	"meshdash/internal/export"
	"meshdash/internal/labels"
	"meshdash/internal/logging"
	"meshdash/internal/store"
	"meshdash/internal/tui"
)

const usage = `meshdash - terminal dashboard for a mesh radio capture service

Usage:
  meshdash run [--config <path>] [--api <url>] [--poll 10s] [--theme <name>]
  meshdash snapshot [--config <path>] [--api <url>] [--json]
  meshdash watch add|remove <node_id> [--config <path>]
  meshdash watch list [--config <path>]
  meshdash theme <name> [--config <path>]
  meshdash export csv --out <file> [--nodes <file>] [--append] [--config <path>]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "-h", "--help", "help":
		fmt.Print(usage)
	case "run":
		handleRun(os.Args[2:])
	case "snapshot":
		handleSnapshot(os.Args[2:])
	case "watch":
		handleWatch(os.Args[2:])
	case "theme":
		handleTheme(os.Args[2:])
	case "export":
		handleExport(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// commonFlags are accepted by every subcommand that talks to the service.
type commonFlags struct {
	configPath *string
	apiURL     *string
	backend    *string
	statePath  *string
	redisURL   *string
	logLevel   *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", "", "path to YAML config"),
		apiURL:     fs.String("api", "", "capture service base URL"),
		backend:    fs.String("state-backend", "", "client state backend (file|redis)"),
		statePath:  fs.String("state-path", "", "client state file"),
		redisURL:   fs.String("redis-url", "", "redis URL for the redis state backend"),
		logLevel:   fs.String("log-level", "", "debug|info|warn|error"),
	}
}

func (f commonFlags) load() config.Config {
	cfg, err := loadConfig(*f.configPath)
	if err != nil {
		fatal(err)
	}
	overrideConfig(&cfg, *f.apiURL, *f.backend, *f.statePath, *f.redisURL, *f.logLevel)
	config.ApplyDefaults(&cfg)
	if err := config.Validate(cfg); err != nil {
		fatal(err)
	}
	return cfg
}

func handleRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	common := addCommonFlags(fs)
	poll := fs.Duration("poll", 0, "poll interval override")
	theme := fs.String("theme", "", "map theme override")
	_ = fs.Parse(args)

	cfg := common.load()
	if *poll > 0 {
		cfg.PollInterval = *poll
	}
	if *theme != "" {
		if !labels.ValidTheme(*theme) {
			fatal(fmt.Errorf("%w: %q (valid: %s)", dashboard.ErrUnknownTheme, *theme, strings.Join(labels.Themes, ", ")))
		}
		cfg.Theme = *theme
	}

	log, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	backend := openBackend(ctx, cfg, log)
	defer closeBackend(backend)

	events := tui.NewEvents(0)
	state := newState(cfg, backend, log, events.Notify)
	defer state.Close()
	if err := state.Init(ctx); err != nil {
		fatal(err)
	}

	log.Info("dashboard starting",
		zap.String("api", cfg.APIURL),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("state_backend", cfg.StateBackend),
	)

	poller := dashboard.NewPoller(state, cfg.PollInterval, log)
	go func() { _ = poller.Run(ctx) }()

	err = tui.Run(ctx, state, events)
	cancel()
	fatal(err)
}

func handleSnapshot(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	common := addCommonFlags(fs)
	asJSON := fs.Bool("json", false, "print the caches as JSON")
	_ = fs.Parse(args)

	cfg := common.load()
	log := consoleLogger(cfg)
	ctx, cancel := signalContext()
	defer cancel()

	backend := openBackend(ctx, cfg, log)
	defer closeBackend(backend)

	state := newState(cfg, backend, log, nil)
	defer state.Close()
	if err := state.Init(ctx); err != nil {
		fatal(err)
	}
	if err := state.RefreshAll(ctx); err != nil {
		fatal(err)
	}

	sn := state.Snapshot()
	if sn.Health.FailedCycles > 0 {
		fatal(fmt.Errorf("capture service at %s is unreachable", cfg.APIURL))
	}
	if *asJSON {
		fatal(writeJSON(os.Stdout, sn))
		return
	}
	writeSummary(os.Stdout, sn)
}

// snapshotJSON is the --json output of the snapshot command.
type snapshotJSON struct {
	Stats     any      `json:"stats"`
	Metrics   any      `json:"metrics"`
	Nodes     any      `json:"nodes"`
	Traffic   any      `json:"traffic"`
	Positions any      `json:"positions"`
	WatchList []string `json:"watch_list"`
	Watch     any      `json:"watch"`
	Theme     string   `json:"theme"`
	UpdatedAt string   `json:"updated_at"`
}

func writeJSON(w io.Writer, sn dashboard.Snapshot) error {
	out := snapshotJSON{
		Stats:     sn.Stats,
		Metrics:   sn.Metrics,
		Nodes:     sn.Nodes,
		Traffic:   sn.Traffic,
		Positions: sn.Positions,
		WatchList: sn.WatchList,
		Watch:     sn.WatchDetail,
		Theme:     sn.Theme,
		UpdatedAt: sn.LastUpdate.UTC().Format(time.RFC3339),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeSummary(w io.Writer, sn dashboard.Snapshot) {
	if sn.Stats != nil {
		fmt.Fprintf(w, "nodes=%d packets=%d packets_24h=%d\n", sn.Stats.TotalNodes, sn.Stats.TotalPackets, sn.Stats.Packets24h)
	}
	fmt.Fprintf(w, "directory=%d traffic=%d positions=%d watched=%d theme=%s\n",
		len(sn.Nodes), len(sn.Traffic), len(sn.Positions), len(sn.WatchList), sn.Theme)

	for _, r := range sn.NodeRows() {
		star := " "
		if r.Starred {
			star = "*"
		}
		fmt.Fprintf(w, "%s %-10s %-24s %-18s %s\n", star, r.NodeID, r.Name.String(), r.Hardware, r.LastSeen)
	}

	panel := sn.WatchPanel()
	if panel.Empty != "" {
		fmt.Fprintf(w, "watch: %s\n", panel.Empty)
		return
	}
	for _, c := range panel.Cards {
		line := fmt.Sprintf("watch %s %s last_seen=%s", c.NodeID, c.Name.String(), c.LastSeen)
		if c.Position != nil {
			line += " at " + c.Position.Coords
		}
		fmt.Fprintln(w, line)
	}
}

func handleWatch(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "watch subcommand required\n")
		os.Exit(2)
	}
	sub := args[0]

	fs := flag.NewFlagSet("watch "+sub, flag.ExitOnError)
	common := addCommonFlags(fs)

	// the node id may come before or after the flags
	var nodeID string
	rest := args[1:]
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		nodeID, rest = rest[0], rest[1:]
	}
	_ = fs.Parse(rest)
	if nodeID == "" && fs.NArg() > 0 {
		nodeID = fs.Arg(0)
	}

	switch sub {
	case "add", "remove":
		if nodeID == "" {
			fmt.Fprintf(os.Stderr, "watch %s requires a node id\n", sub)
			os.Exit(2)
		}
	case "list":
	default:
		fmt.Fprintf(os.Stderr, "unknown watch subcommand %q\n", sub)
		os.Exit(2)
	}

	cfg := common.load()
	log := consoleLogger(cfg)
	ctx, cancel := signalContext()
	defer cancel()

	backend := openBackend(ctx, cfg, log)
	defer closeBackend(backend)

	st, err := backend.Load(ctx)
	if err != nil {
		fatal(err)
	}
	switch sub {
	case "add":
		st.WatchList = append(st.WatchList, nodeID)
	case "remove":
		st.WatchList = removeID(st.WatchList, nodeID)
	}
	if sub != "list" {
		st = store.Normalize(st)
		if err := backend.Save(ctx, st); err != nil {
			fatal(err)
		}
	}
	for _, id := range st.WatchList {
		fmt.Fprintln(os.Stdout, id)
	}
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func handleTheme(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "theme name required (valid: %s)\n", strings.Join(labels.Themes, ", "))
		os.Exit(2)
	}
	name := args[0]

	fs := flag.NewFlagSet("theme", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args[1:])

	cfg := common.load()
	log := consoleLogger(cfg)
	ctx, cancel := signalContext()
	defer cancel()

	backend := openBackend(ctx, cfg, log)
	defer closeBackend(backend)

	state := dashboard.New(dashboard.Options{Backend: backend, Logger: log})
	defer state.Close()
	if err := state.Init(ctx); err != nil {
		fatal(err)
	}
	if err := state.SetTheme(ctx, name); err != nil {
		fatal(fmt.Errorf("%w: %q (valid: %s)", err, name, strings.Join(labels.Themes, ", ")))
	}
	fmt.Fprintf(os.Stdout, "theme=%s max_zoom=%d\n", name, labels.ThemeMaxZoom(name))
}

func handleExport(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "export subcommand required\n")
		os.Exit(2)
	}
	if args[0] != "csv" {
		fmt.Fprintf(os.Stderr, "unknown export format %q\n", args[0])
		os.Exit(2)
	}

	fs := flag.NewFlagSet("export csv", flag.ExitOnError)
	common := addCommonFlags(fs)
	out := fs.String("out", "", "traffic CSV output file")
	nodesOut := fs.String("nodes", "", "node directory CSV output file")
	appendMode := fs.Bool("append", false, "append traffic to an existing file")
	msgType := fs.String("type", "", "message type filter")
	node := fs.String("node", "", "node filter")
	_ = fs.Parse(args[1:])

	if *out == "" {
		fatal(errors.New("--out is required"))
	}

	cfg := common.load()
	log := consoleLogger(cfg)
	ctx, cancel := signalContext()
	defer cancel()

	client := api.NewClient(cfg.APIURL, cfg.RequestTimeout)
	rows, err := client.Traffic(ctx, api.TrafficQuery{MsgType: *msgType, Node: *node, Limit: cfg.TrafficLimit})
	if err != nil {
		fatal(err)
	}
	if *appendMode {
		err = export.AppendTraffic(*out, rows)
	} else {
		err = writeFile(*out, func(w io.Writer) error { return export.WriteTraffic(w, rows) })
	}
	if err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "exported %s (%d records)\n", *out, len(rows))

	if *nodesOut == "" {
		return
	}
	state := newState(cfg, nil, log, nil)
	defer state.Close()
	if err := state.RefreshNodes(ctx); err != nil {
		fatal(err)
	}
	if err := state.RefreshPositions(ctx); err != nil {
		fatal(err)
	}
	sn := state.Snapshot()
	if err := writeFile(*nodesOut, func(w io.Writer) error { return export.WriteNodes(w, sn.Nodes, sn.Positions) }); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "exported %s (%d nodes)\n", *nodesOut, len(sn.Nodes))
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newState(cfg config.Config, backend store.Backend, log *zap.Logger, notify func(dashboard.Event)) *dashboard.State {
	return dashboard.New(dashboard.Options{
		Source:             api.NewClient(cfg.APIURL, cfg.RequestTimeout),
		Backend:            backend,
		Logger:             log,
		Notify:             notify,
		TrafficLimit:       cfg.TrafficLimit,
		NodeFilterDelay:    cfg.NodeFilterDebounce,
		TrafficFilterDelay: cfg.TrafficDebounce,
		Theme:              cfg.Theme,
	})
}

func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) store.Backend {
	backend, err := store.Open(ctx, store.Options{
		Backend:  cfg.StateBackend,
		Path:     cfg.StatePath,
		RedisURL: cfg.RedisURL,
		Logger:   log,
	})
	if err != nil {
		fatal(err)
	}
	return backend
}

func closeBackend(b store.Backend) {
	if c, ok := b.(io.Closer); ok {
		_ = c.Close()
	}
}

func consoleLogger(cfg config.Config) *zap.Logger {
	level := cfg.LogLevel
	if level == config.DefaultLogLevel {
		level = "warn"
	}
	log, err := logging.Console(level)
	if err != nil {
		fatal(err)
	}
	return log
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, nil
	}
	return config.Load(path)
}

func overrideConfig(cfg *config.Config, apiURL, backend, statePath, redisURL, logLevel string) {
	if apiURL != "" {
		cfg.APIURL = normalizeBaseURL(apiURL)
	}
	if backend != "" {
		cfg.StateBackend = backend
	}
	if statePath != "" {
		cfg.StatePath = statePath
	}
	if redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

func normalizeBaseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()
	return ctx, cancel
}

func fatal(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
