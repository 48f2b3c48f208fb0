package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/portwatch/portwatch/internal/api"
	"github.com/portwatch/portwatch/internal/config"
	"github.com/portwatch/portwatch/internal/docker"
	"github.com/portwatch/portwatch/internal/engine"
	"github.com/portwatch/portwatch/internal/logging"
	"github.com/portwatch/portwatch/internal/output"
	"github.com/portwatch/portwatch/internal/proc"
	"github.com/portwatch/portwatch/internal/source"
	"github.com/portwatch/portwatch/internal/tui"
	"github.com/portwatch/portwatch/pkg/model"
	"github.com/rs/zerolog/log"
)

var version = "dev"
var commit = ""
var buildDate = ""

// To embed version, commit, and build date, use:
// go build -ldflags "-X main.version=v0.1.0 -X main.commit=$(git rev-parse --short HEAD) -X 'main.buildDate=$(date +%Y-%m-%d)'" ./cmd/portwatch

func printHelp() {
	fmt.Println("Usage: portwatch [-i] [--ports A-B | --from N --to N] [--proto tcp|udp|all] [--only-used] [--only-docker] [--json] [--serve ADDR]")
	fmt.Println("       portwatch --kill PID | --stop ID | --restart ID")
	fmt.Println("  -i, --interactive Interactive TUI mode (default on a terminal)")
	fmt.Println("  --ports <a-b>     Port range, e.g. 8000-9000")
	fmt.Println("  --from <n>        First port of the range (default 1)")
	fmt.Println("  --to <n>          Last port of the range (default 1024)")
	fmt.Println("  --proto <p>       tcp, udp or all")
	fmt.Println("  --only-used       Hide ports nothing is bound to")
	fmt.Println("  --only-docker     Only ports published by containers")
	fmt.Println("  --json            Print one scan as JSON")
	fmt.Println("  --serve <addr>    Serve the HTTP/WebSocket API, e.g. 127.0.0.1:7070")
	fmt.Println("  --kill <pid>      Terminate a process (SIGTERM, then kill after 3s)")
	fmt.Println("  --stop <id>       Stop a container")
	fmt.Println("  --restart <id>    Restart a container")
	fmt.Println("  --config <file>   Configuration file (default " + config.DefaultPath() + ")")
	fmt.Println("  --no-color        Disable colorized output")
	fmt.Println("  --help            Show this help message")
	fmt.Println("  --version         Show version and exit")
}

func main() {
	os.Exit(run())
}

func run() int {
	versionFlag := flag.Bool("version", false, "show version and exit")
	helpFlag := flag.Bool("help", false, "show help")
	interactiveFlag := flag.Bool("i", false, "interactive mode")
	interactiveLongFlag := flag.Bool("interactive", false, "interactive mode")
	portsFlag := flag.String("ports", "", "port range a-b")
	fromFlag := flag.Int("from", 0, "first port")
	toFlag := flag.Int("to", 0, "last port")
	protoFlag := flag.String("proto", "", "tcp, udp or all")
	onlyUsedFlag := flag.Bool("only-used", false, "hide free ports")
	onlyDockerFlag := flag.Bool("only-docker", false, "only container ports")
	jsonFlag := flag.Bool("json", false, "output as JSON")
	serveFlag := flag.String("serve", "", "serve the API on addr")
	killFlag := flag.Int("kill", 0, "terminate pid")
	stopFlag := flag.String("stop", "", "stop container")
	restartFlag := flag.String("restart", "", "restart container")
	configFlag := flag.String("config", "", "configuration file")
	noColorFlag := flag.Bool("no-color", false, "disable colorized output")
	flag.Usage = printHelp
	flag.Parse()

	if *helpFlag {
		printHelp()
		return 0
	}
	if *versionFlag {
		fmt.Printf("portwatch %s (commit %s, built %s)\n", version, commit, buildDate)
		return 0
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["ports"] {
		from, to, err := config.ParseRange(*portsFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		cfg.Scan.From, cfg.Scan.To = from, to
	}
	if set["from"] {
		cfg.Scan.From = *fromFlag
	}
	if set["to"] {
		cfg.Scan.To = *toFlag
	}
	if set["proto"] {
		protocols, err := parseProtoFlag(*protoFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		cfg.Scan.Protocols = protocols
	}
	if set["only-used"] {
		cfg.UI.OnlyUsed = *onlyUsedFlag
	}
	if set["only-docker"] {
		cfg.UI.OnlyDocker = *onlyDockerFlag
	}
	if *serveFlag != "" {
		cfg.API.Addr = *serveFlag
	}

	action := *killFlag != 0 || *stopFlag != "" || *restartFlag != ""
	stdoutTTY := isatty.IsTerminal(os.Stdout.Fd())
	interactive := *interactiveFlag || *interactiveLongFlag ||
		(!action && !*jsonFlag && *serveFlag == "" && stdoutTTY)
	colorEnabled := !*noColorFlag && stdoutTTY

	closer, err := logging.Setup(cfg.Logger, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !proc.Privileged() {
		log.Warn().Msg("not running as root/administrator: sockets of other users may show no process")
	}

	resolver := proc.NewResolver(proc.DefaultNameTTL)
	provider := docker.New(ctx, docker.Options{
		Host:         cfg.Docker.Host,
		Binary:       cfg.Docker.Binary,
		ProbeTimeout: cfg.Docker.Timeout,
	})
	eng := engine.New(proc.NewEnumerator(), provider, resolver, engine.Options{
		SocketInterval: cfg.Scan.Interval,
		DockerInterval: cfg.Docker.Interval,
		SocketTimeout:  cfg.Scan.Timeout,
		DockerTimeout:  cfg.Docker.Timeout,
		View:           cfg.View(),
	})

	switch {
	case *killFlag != 0:
		return kill(ctx, eng, resolver, *killFlag, colorEnabled)
	case *stopFlag != "":
		return report(eng.StopContainer(ctx, *stopFlag))
	case *restartFlag != "":
		return report(eng.RestartContainer(ctx, *restartFlag))
	}

	if !interactive && cfg.API.Addr == "" {
		eng.RefreshDocker(ctx)
		eng.RefreshSockets(ctx)
		u, _ := eng.Latest()
		if *jsonFlag {
			if err := output.WriteJSON(os.Stdout, output.Report{
				GeneratedAt: u.At,
				View:        u.View,
				Status:      u.Status(),
				Docker:      u.Provider,
				Rows:        u.Rows,
			}); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1
			}
			return 0
		}
		output.RenderTable(os.Stdout, u.Rows, u.Status(), colorEnabled)
		return 0
	}

	if err := eng.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer eng.Stop()

	apiErr := make(chan error, 1)
	if cfg.API.Addr != "" {
		go func() {
			err := api.New(eng).Run(ctx, cfg.API.Addr)
			if err != nil {
				log.Error().Err(err).Msg("api stopped")
			}
			apiErr <- err
		}()
	}

	if interactive {
		if err := tui.Run(eng, resolver, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if err := <-apiErr; err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseProtoFlag(s string) ([]string, error) {
	switch strings.ToLower(s) {
	case "tcp":
		return []string{"tcp"}, nil
	case "udp":
		return []string{"udp"}, nil
	case "all", "":
		return []string{"tcp", "udp"}, nil
	}
	return nil, fmt.Errorf("unknown protocol %q (want tcp, udp or all)", s)
}

func kill(ctx context.Context, eng *engine.Engine, resolver *proc.Resolver, pid int, colorEnabled bool) int {
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	chain := resolver.Ancestry(lookupCtx, pid)
	cancel()

	if len(chain) > 0 {
		fmt.Print("Terminating ")
		output.RenderChain(os.Stdout, chain, colorEnabled)
		row := model.DisplayRow{PortRecord: model.PortRecord{PID: pid}, Process: chain[len(chain)-1].Name}
		if w := source.KillWarning(row, chain[:len(chain)-1]); w != "" {
			fmt.Fprintln(os.Stderr, "Warning: "+output.SanitizeLine(w))
		}
	}
	return report(eng.TerminateProcess(ctx, pid))
}

func report(res model.ActionResult) int {
	var w io.Writer = os.Stdout
	code := 0
	if !res.OK {
		w, code = os.Stderr, 1
	}
	fmt.Fprintln(w, output.SanitizeLine(res.Message))
	return code
}
