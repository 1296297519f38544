package runner

import (
	"os"

	"github.com/logrusorgru/aurora/v4"
	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	envutil "github.com/projectdiscovery/utils/env"

	"github.com/projectdiscovery/edgeprobe/pkg/discovery"
	"github.com/projectdiscovery/edgeprobe/pkg/probe"
)

var au *aurora.Aurora

var (
	ResolverEnv = envutil.GetEnvOrDefault("EDGEPROBE_RESOLVER", discovery.DefaultResolver)
)

// Options contains the configuration options for tuning the scan process.
type Options struct {
	ConfigFile    string
	ProvidersFile string
	RangesFile    string
	Resolver      string

	Port        int
	TimeoutSec  int
	Attempts    int
	DelayMS     int
	BatchSize   int
	MaxWorkers  int
	CooldownSec int

	OutputDir string

	SpeedTest      bool
	TopN           int
	XrayBinary     string
	TunnelTemplate string
	SortBy         string

	Verbose bool
	Silent  bool
	NoColor bool
	Version bool
}

// ParseOptions parses the command line flags provided by a user
func ParseOptions() *Options {
	options := &Options{}
	flagSet := goflags.NewFlagSet()

	flagSet.SetDescription(`edgeprobe discovers candidate edge IPs, ranks them by TCP reachability and latency stability, and optionally speed-tests the best of them over a tunneled connection`)

	flagSet.CreateGroup("input", "Input",
		flagSet.StringVar(&options.ConfigFile, "config", "config.yaml", "scanner configuration file"),
		flagSet.StringVarP(&options.ProvidersFile, "providers", "p", "providers.json", "provider hostname list (json)"),
		flagSet.StringVarP(&options.RangesFile, "ranges", "r", "", "edge CIDR ranges file to sample (optional)"),
		flagSet.StringVar(&options.Resolver, "resolver", ResolverEnv, "dns resolver for provider lookups"),
	)

	flagSet.CreateGroup("probe", "Probe",
		flagSet.IntVar(&options.Port, "port", probe.DefaultPort, "tcp port to probe"),
		flagSet.IntVarP(&options.TimeoutSec, "timeout", "t", 2, "per-attempt handshake timeout in seconds"),
		flagSet.IntVarP(&options.Attempts, "attempts", "a", probe.DefaultAttempts, "handshake attempts per candidate"),
		flagSet.IntVarP(&options.DelayMS, "attempt-delay", "ad", 200, "delay between attempts on one candidate in milliseconds"),
		flagSet.IntVarP(&options.BatchSize, "batch-size", "bs", probe.DefaultBatchSize, "candidates probed per batch"),
		flagSet.IntVarP(&options.MaxWorkers, "max-workers", "mw", probe.DefaultMaxWorkers, "concurrent probes within a batch"),
		flagSet.IntVarP(&options.CooldownSec, "cooldown", "cd", 3, "pause between batches in seconds"),
	)

	flagSet.CreateGroup("tunnel", "Tunnel",
		flagSet.BoolVarP(&options.SpeedTest, "speed-test", "st", false, "speed-test the fastest ranked entries over the tunnel"),
		flagSet.IntVarP(&options.TopN, "top", "n", 10, "number of fastest entries to speed-test"),
		flagSet.StringVarP(&options.XrayBinary, "xray-binary", "xb", defaultXrayPath(), "path to the xray-core binary"),
		flagSet.StringVarP(&options.TunnelTemplate, "tunnel-template", "tt", "config/template_config_vless.json", "client config template"),
		flagSet.StringVarP(&options.SortBy, "sort-by", "sb", "download", "speed-test result ordering (download, latency)"),
	)

	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&options.OutputDir, "output-dir", "o", "results", "directory for records and exports"),
	)

	flagSet.CreateGroup("debug", "Debug",
		flagSet.BoolVar(&options.Version, "version", false, "show version of the project"),
		flagSet.BoolVarP(&options.Verbose, "verbose", "v", false, "show verbose output"),
		flagSet.BoolVar(&options.Silent, "silent", false, "show only results"),
		flagSet.BoolVarP(&options.NoColor, "no-color", "nc", false, "disable output content coloring (ANSI escape codes)"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}

	// configure aurora for output
	au = aurora.New(aurora.WithColors(true))

	options.configureOutput()

	showBanner()

	if options.Version {
		gologger.Info().Msgf("Current Version: %s\n", version)
		os.Exit(0)
	}

	return options
}

// configureOutput configures the output on the screen
func (options *Options) configureOutput() {
	if options.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelVerbose)
	}
	if options.NoColor {
		gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
		au = aurora.New(aurora.WithColors(false))
	}
	if options.Silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	}
}

func defaultXrayPath() string {
	binary := "converters/xray-core/xray"
	if os.PathSeparator == '\\' {
		binary += ".exe"
	}
	return binary
}
