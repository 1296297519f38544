package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/projectdiscovery/gologger"
	errorutil "github.com/projectdiscovery/utils/errors"
	fileutil "github.com/projectdiscovery/utils/file"

	"github.com/projectdiscovery/edgeprobe/pkg/discovery"
	"github.com/projectdiscovery/edgeprobe/pkg/probe"
	"github.com/projectdiscovery/edgeprobe/pkg/tunnel"
	"github.com/projectdiscovery/edgeprobe/pkg/types"
)

// Runner contains the internal logic of the program
type Runner struct {
	options *Options
}

// NewRunner instance
func NewRunner(options *Options) (*Runner, error) {
	if options.Attempts < 1 {
		return nil, errors.New("attempts must be at least 1")
	}
	if options.BatchSize < 1 || options.MaxWorkers < 1 {
		return nil, errors.New("batch-size and max-workers must be at least 1")
	}
	return &Runner{options: options}, nil
}

// Run the scan: discover candidates, probe them in batches, write the
// records, and optionally speed-test the fastest entries over the tunnel.
func (r *Runner) Run(ctx context.Context) error {
	candidates, err := r.discover(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return errors.New("no candidates discovered, nothing to probe")
	}

	if err := os.MkdirAll(r.options.OutputDir, 0755); err != nil {
		return errorutil.NewWithErr(err).Msgf("could not create output directory %s", r.options.OutputDir)
	}

	jsonPath := filepath.Join(r.options.OutputDir, "list.json")
	textPath := filepath.Join(r.options.OutputDir, "list.txt")
	if err := discovery.ExportList(candidates, jsonPath, textPath); err != nil {
		// probing continues, the candidate list only exists in memory
		gologger.Warning().Msgf("could not export candidate list: %s", err)
	}

	ranked, interrupted, err := r.probeAll(ctx, candidates)
	if err != nil {
		return err
	}

	if r.options.SpeedTest && !interrupted && len(ranked) > 0 {
		if err := r.speedTest(ctx, ranked); err != nil {
			return err
		}
	}

	return nil
}

// Close the runner instance
func (r *Runner) Close() {}

func (r *Runner) discover(ctx context.Context) ([]types.Candidate, error) {
	var candidates []types.Candidate

	if fileutil.FileExists(r.options.ProvidersFile) {
		providers, err := discovery.LoadProviders(r.options.ProvidersFile)
		if err != nil {
			return nil, errorutil.NewWithErr(err).Msgf("could not load providers from %s", r.options.ProvidersFile)
		}
		source := discovery.NewDNSSource(providers, r.options.Resolver, 0)
		resolved, err := source.Collect(ctx)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, resolved...)
	} else {
		gologger.Warning().Msgf("providers file %s not found, skipping dns discovery", r.options.ProvidersFile)
	}

	if r.options.RangesFile != "" {
		ranges, err := discovery.LoadRanges(r.options.RangesFile)
		if err != nil {
			return nil, errorutil.NewWithErr(err).Msgf("could not load ranges from %s", r.options.RangesFile)
		}
		candidates = append(candidates, discovery.SampleRanges(ranges)...)
	}

	return candidates, nil
}

// probeAll runs the batched scan and writes the live and final records.
// An interruption is reported, never returned as a failure: partial
// results are flushed and explicitly marked instead of discarded.
func (r *Runner) probeAll(ctx context.Context, candidates []types.Candidate) ([]types.RankedEntry, bool, error) {
	classifier := probe.NewClassifier()
	recorder, err := probe.NewRecorder(filepath.Join(r.options.OutputDir, "live_log.txt"), classifier)
	if err != nil {
		return nil, false, errorutil.NewWithErr(err).Msgf("could not create recorder")
	}

	prober := probe.NewProber(r.options.Port, time.Duration(r.options.TimeoutSec)*time.Second)
	sampler := probe.NewSampler(prober, r.options.Attempts, time.Duration(r.options.DelayMS)*time.Millisecond)
	batcher := probe.NewBatcher(sampler, r.options.BatchSize, r.options.MaxWorkers, time.Duration(r.options.CooldownSec)*time.Second)

	gologger.Info().Msgf("probing %d candidates on port %d (%d per batch, %d workers)",
		len(candidates), r.options.Port, r.options.BatchSize, r.options.MaxWorkers)

	completed, runErr := batcher.Run(ctx, candidates, recorder)
	interrupted := runErr != nil
	if interrupted {
		gologger.Warning().Msgf("scan interrupted after %d completed batch(es), flushing partial results", completed)
		recorder.Interrupt(completed)
	}

	ranked, shared := classifier.Ranked(), classifier.Shared()
	finalPath := filepath.Join(r.options.OutputDir, "sorted_list.txt")
	if err := recorder.WriteFinal(finalPath, ranked, shared); err != nil {
		gologger.Error().Msgf("could not write final record: %s", err)
	}
	if err := recorder.Close(); err != nil {
		gologger.Error().Msgf("could not close live log: %s", err)
	}

	r.printSummary(classifier.Summary(), finalPath)
	return ranked, interrupted, nil
}

func (r *Runner) printSummary(summary types.ScanSummary, finalPath string) {
	gologger.Info().Msgf("found %s accessible addresses out of %s probed (%s invalid, %s shared)",
		au.Green(fmt.Sprintf("%d", summary.Valid)),
		au.Cyan(fmt.Sprintf("%d", summary.Total)),
		au.Yellow(fmt.Sprintf("%d", summary.Invalid)),
		au.Cyan(fmt.Sprintf("%d", summary.Shared)))
	if summary.Errors > 0 {
		gologger.Warning().Msgf("%d candidates failed with probe errors, see live log", summary.Errors)
	}
	gologger.Info().Msgf("results saved to %s", finalPath)
}

// speedTest runs the downstream tunnel test over the fastest entries. The
// final record is ordered slowest first, so consumption goes through
// FastestN (tail slice + reverse).
func (r *Runner) speedTest(ctx context.Context, ranked []types.RankedEntry) error {
	settings, err := r.loadTunnelSettings()
	if err != nil {
		return err
	}

	template, err := os.ReadFile(r.options.TunnelTemplate)
	if err != nil {
		return errorutil.NewWithErr(err).Msgf("could not read tunnel template %s", r.options.TunnelTemplate)
	}

	if err := tunnel.FreePort(settings.LocalSocksPort); err != nil {
		return errorutil.NewWithErr(err).Msgf("could not free local socks port %d", settings.LocalSocksPort)
	}

	fastest := probe.FastestN(probe.Descending(ranked), r.options.TopN)
	gologger.Info().Msgf("speed-testing top %d entries via tunnel, this takes a while", len(fastest))

	var results []types.SpeedResult
	for idx, entry := range fastest {
		if err := ctx.Err(); err != nil {
			gologger.Warning().Msgf("speed test interrupted after %d of %d entries", idx, len(fastest))
			break
		}

		gologger.Info().Msgf("[%d/%d] testing connection -> %s (median %s)",
			idx+1, len(fastest), entry.Address, entry.MedianLatency.Round(100*time.Microsecond))

		result, err := r.testOne(ctx, template, settings, entry.Address)
		if err != nil {
			gologger.Print().Msgf("%s %s failed: %s", au.Red("✗"), entry.Address, err)
			continue
		}
		gologger.Print().Msgf("%s %s - %s - %s", au.Green("✓"), entry.Address, result.DownloadRate, result.LatencyRate)
		results = append(results, result)

		time.Sleep(time.Second)
	}

	if len(results) == 0 {
		return errors.New("no responsive entries in the speed test")
	}
	return r.writeSpeedResults(results)
}

func (r *Runner) testOne(ctx context.Context, template []byte, settings tunnel.Settings, address string) (types.SpeedResult, error) {
	config, err := tunnel.RenderConfig(template, settings, address)
	if err != nil {
		return types.SpeedResult{}, err
	}

	xray, err := tunnel.StartXray(ctx, r.options.XrayBinary, config, settings.LocalSocksPort)
	if err != nil {
		return types.SpeedResult{}, err
	}
	defer xray.Stop()

	tester := tunnel.NewSpeedTester(settings.LocalSocksPort)
	return tester.Run(ctx, address, settings.Port)
}

func (r *Runner) loadTunnelSettings() (tunnel.Settings, error) {
	var settings tunnel.Settings
	if !fileutil.FileExists(r.options.ConfigFile) {
		return settings, fmt.Errorf("config file %s not found", r.options.ConfigFile)
	}
	if err := fileutil.Unmarshal(fileutil.YAML, []byte(r.options.ConfigFile), &settings); err != nil {
		return settings, errorutil.NewWithErr(err).Msgf("could not parse config file %s", r.options.ConfigFile)
	}
	if err := settings.Validate(); err != nil {
		return settings, errorutil.NewWithErr(err).Msgf("invalid tunnel settings in %s", r.options.ConfigFile)
	}
	return settings, nil
}

func (r *Runner) writeSpeedResults(results []types.SpeedResult) error {
	sorted := make([]types.SpeedResult, len(results))
	copy(sorted, results)

	switch r.options.SortBy {
	case "latency":
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].LatencyMS < sorted[j].LatencyMS })
	default:
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].DownloadMBps > sorted[j].DownloadMBps })
	}

	path := filepath.Join(r.options.OutputDir, "vless_tested_list.json")
	if err := writeJSON(path, sorted); err != nil {
		return errorutil.NewWithErr(err).Msgf("could not write speed results")
	}

	gologger.Print().Msgf("\n%s", au.Bold("Rank  IP Address        Download      Latency"))
	for idx, result := range sorted {
		gologger.Print().Msgf("%-5d %-17s %-13s %s", idx+1, result.Address, result.DownloadRate, result.LatencyRate)
	}
	best := sorted[0]
	gologger.Print().Msgf("\n%s %s (%s)\n", au.Green("best:").Bold(), best.Address, best.DownloadRate)
	gologger.Info().Msgf("speed results saved to %s", path)
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
