package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	konghcl "github.com/alecthomas/kong-hcl/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spirit-labs/streamjoin/common"
	"github.com/spirit-labs/streamjoin/conf"
	"github.com/spirit-labs/streamjoin/errors"
	log "github.com/spirit-labs/streamjoin/logger"
	"github.com/spirit-labs/streamjoin/metrics"
	"github.com/spirit-labs/streamjoin/scenario"
	"github.com/spirit-labs/streamjoin/store"
)

type runCommand struct {
	Scenario string `help:"Path to the json5 scenario file" type:"existingfile" required:""`
	Check    bool   `help:"Fail if the output of an epoch differs from what the scenario expects"`
}

type arguments struct {
	Config kong.ConfigFlag `help:"Path to config file" type:"existingfile"`
	Join   joinFlags       `help:"Join configuration" embed:"" prefix:""`
	Log    log.Config      `help:"Configuration for the logger" embed:"" prefix:"log-"`
	Run    runCommand      `cmd:"" help:"Run a scenario against a hash join executor and print its output changelog"`
}

var (
	epochStyle  = lipgloss.NewStyle().Bold(true)
	insertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	deleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func main() {
	defer common.PanicHandler()
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	cfg := &arguments{}
	parser, err := kong.New(cfg, kong.Name("streamjoin"), kong.Configuration(konghcl.Loader))
	if err != nil {
		return errors.WithStack(err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := cfg.Log.Configure(); err != nil {
		return errors.WithStack(err)
	}
	joinConf := cfg.Join.toConfig()
	if err := joinConf.Validate(); err != nil {
		return err
	}
	switch kctx.Command() {
	case "run":
		return runScenario(cfg, joinConf, out)
	default:
		return errors.Errorf("unknown command %s", kctx.Command())
	}
}

func runScenario(cfg *arguments, joinConf conf.Config, out io.Writer) error {
	sc, err := scenario.Load(cfg.Run.Scenario)
	if err != nil {
		return err
	}
	st, err := store.NewStoreFromConfig(joinConf)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warnf("failed to close state store: %v", err)
		}
	}()
	metricsServer := metrics.NewServer(joinConf)
	if err := metricsServer.Start(); err != nil {
		return err
	}
	defer func() {
		if err := metricsServer.Stop(); err != nil {
			log.Warnf("failed to stop metrics server: %v", err)
		}
	}()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	res, err := scenario.Run(ctx, sc, joinConf, st)
	if err != nil {
		return err
	}
	printResult(out, res)
	if cfg.Run.Check {
		return res.Check()
	}
	return nil
}

func printResult(out io.Writer, res *scenario.Result) {
	fmt.Fprintln(out, epochStyle.Render("output: "+strings.Join(res.Schema.ColumnNames(), " ")))
	for _, e := range res.Epochs {
		fmt.Fprintln(out, epochStyle.Render(fmt.Sprintf("epoch %d", e.Epoch)))
		for _, row := range e.Rows {
			style := insertStyle
			if strings.HasPrefix(row, "-") || strings.HasPrefix(row, "U-") {
				style = deleteStyle
			}
			fmt.Fprintln(out, "  "+style.Render(row))
		}
	}
	for _, report := range res.Errors {
		fmt.Fprintln(out, errorStyle.Render(report.String()))
	}
}
