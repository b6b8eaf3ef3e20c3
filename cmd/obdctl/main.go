package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"example.com/obdgate/internal/bus"
	"example.com/obdgate/internal/common"
	"example.com/obdgate/internal/harness"
	"example.com/obdgate/internal/j1939"
	"example.com/obdgate/internal/manifest"
	"example.com/obdgate/internal/notify"
	"example.com/obdgate/internal/part1"
	"example.com/obdgate/internal/registry"
	"example.com/obdgate/internal/report"
	"example.com/obdgate/internal/rules"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "verify-signature":
		verifySignatureCmd(os.Args[2:])
	case "modules":
		modulesCmd(os.Args[2:])
	case "scenario":
		scenarioCmd(os.Args[2:])
	case "steps":
		stepsCmd()
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`obdctl %s (built %s) <command> [options]

Commands:
  run       --config <obdctl.yaml> [--sim <scenario.yaml> | --clean-sim] [--plan <plan.yaml>] [--out-dir <dir>] [--lang en|de]
  report    --acceptance <acceptance.json> --out <report.pdf> [--manifest <manifest.json>] [--lang en|de]
  manifest  --inputs <comma-separated> --out <manifest.json> [--vin <vin>] [--sign --key <key.pem>]
  verify-signature --manifest <manifest.json> --key <key.pem>
  modules   --store <registry.db>
  scenario  --out <scenario.yaml> [--modules 0,3]
  steps
`, version, buildDate)
}

func fail(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}

func runCmd(args []string) {
	if err := runHarness(args); err != nil {
		fail("%v", err)
	}
}

// runHarness is the run command. It returns instead of exiting so the
// deferred closes still run on failure.
func runHarness(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "obdctl.yaml", "configuration file")
	simPath := fs.String("sim", "", "simulated vehicle scenario (overrides config)")
	cleanSim := fs.Bool("clean-sim", false, "simulate a compliant vehicle with the configured modules")
	planPath := fs.String("plan", "", "step plan (overrides config)")
	outDir := fs.String("out-dir", "", "output directory (overrides config)")
	lang := fs.String("lang", "", "report language (overrides config)")
	writePDF := fs.Bool("pdf", true, "render the acceptance PDF")
	includeTimestamps := fs.Bool("outcomes-include-timestamps", true, "include timestamps in outcomes.jsonl")
	quiet := fs.Bool("quiet", false, "print only failures while running")
	noMQTT := fs.Bool("no-mqtt", false, "do not publish outcomes over MQTT")
	metricsFlag := fs.Bool("metrics", false, "print request metrics")
	progressFlag := fs.Bool("progress", false, "display progress updates")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *simPath != "" {
		cfg.Scenario = *simPath
	}
	if *planPath != "" {
		cfg.Plan = *planPath
	}
	if *outDir != "" {
		cfg.OutDir = *outDir
	}
	if *lang != "" {
		cfg.Lang = *lang
	}
	language, err := report.ParseLanguage(cfg.Lang)
	if err != nil {
		return fmt.Errorf("lang: %w", err)
	}
	logCloser, err := common.SetupLogging(cfg.Logs)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("out dir: %w", err)
	}

	var store *registry.Store
	if cfg.Store != "" {
		store, err = registry.Open(cfg.Store)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
	}
	repo, err := cfg.repository(store)
	if err != nil {
		return fmt.Errorf("modules: %w", err)
	}

	sim := bus.NewSimulator(cfg.ToolAddress)
	switch {
	case *cleanSim:
		if err := bus.CleanVehicle(repo.ObdAddresses()...).Apply(sim); err != nil {
			return fmt.Errorf("clean scenario: %w", err)
		}
	case cfg.Scenario != "":
		sc, err := bus.LoadScenario(cfg.Scenario)
		if err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
		if err := sc.Apply(sim); err != nil {
			return fmt.Errorf("scenario %s: %w", cfg.Scenario, err)
		}
		common.Logf("simulating %q from %s", sc.Name, cfg.Scenario)
	default:
		return errors.New("no bus adapter configured: use --sim <scenario.yaml> or --clean-sim")
	}

	plan := harness.DefaultPlan()
	if cfg.Plan != "" {
		plan, err = harness.LoadPlan(cfg.Plan)
		if err != nil {
			return fmt.Errorf("plan: %w", err)
		}
	}

	metrics := common.NewMetrics()
	requestLog := common.NewRequestLog(filepath.Join(cfg.OutDir, "requests.jsonl"))
	gw := bus.NewRecorder(sim, requestLog, metrics)

	listeners := rules.Listeners{notify.NewConsole(os.Stdout, *quiet)}
	if cfg.MQTT.Enabled && !*noMQTT {
		mq, err := notify.Dial(cfg.MQTT.MQTTConfig)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer mq.Close()
		listeners = append(listeners, mq)
	}

	sess := part1.NewSession(repo, gw, cfg.lookup(), listeners)
	sess.Params = part1.Params{
		DSTimeout: cfg.Timing.DSTimeout,
		DM11Delay: cfg.Timing.DM11Delay,
		DM1Window: cfg.Timing.DM1Window,
	}

	engine := harness.NewEngine(plan, metrics)
	engine.SetConfigValue("outcomes.include_timestamps", *includeTimestamps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	metrics.Start()
	stopProgress := func() {}
	if *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}
	outcomes, evalErr := engine.Eval(ctx, sess)
	stopProgress()
	metrics.Stop()
	if evalErr != nil {
		common.Logf("run halted: %v", evalErr)
	}

	outcomesPath := filepath.Join(cfg.OutDir, "outcomes.jsonl")
	if err := engine.WriteOutcomesNDJSON(outcomesPath); err != nil {
		return fmt.Errorf("write outcomes: %w", err)
	}
	rep := engine.MakeAcceptance()
	vehicle := repo.VehicleInformation()
	rep.Vehicle = &vehicle
	accPath := filepath.Join(cfg.OutDir, "acceptance.json")
	if err := report.SaveAcceptanceJSON(rep, accPath); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if store != nil {
		if err := store.Save(repo); err != nil {
			return fmt.Errorf("save store: %w", err)
		}
	}

	artifacts := []string{outcomesPath, accPath, *configPath}
	if _, err := os.Stat(requestLog.Path()); err == nil {
		artifacts = append(artifacts, requestLog.Path())
	}
	m, err := manifest.Build(vehicle.VIN, artifacts)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	manifestPath := filepath.Join(cfg.OutDir, "manifest.json")
	if cfg.SigningKey != "" {
		key, err := os.ReadFile(cfg.SigningKey)
		if err != nil {
			return fmt.Errorf("signing key: %w", err)
		}
		if m, err = manifest.Sign(m, key, manifestPath); err != nil {
			return fmt.Errorf("sign manifest: %w", err)
		}
	} else if err := manifest.Save(m, manifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	digest, err := m.Digest()
	if err != nil {
		return fmt.Errorf("manifest digest: %w", err)
	}
	if *writePDF {
		pdfPath := filepath.Join(cfg.OutDir, "acceptance.pdf")
		if err := report.SaveAcceptancePDF(rep, pdfPath, report.PDFOptions{Lang: language, ManifestHash: digest}); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
	}

	fmt.Printf("PASS=%v, fails=%d, warnings=%d, outcomes=%d, manifest=%s\n",
		rep.Summary.Pass, rep.Summary.Fails, rep.Summary.Warnings, len(outcomes), digest)
	if *metricsFlag {
		snap := metrics.Snapshot()
		fmt.Printf("Metrics: duration=%s requests=%d responses=%d nacks=%d timeouts=%d (%.1f req/s)\n",
			snap.Duration.Round(10*time.Millisecond), snap.Requests, snap.Responses, snap.Nacks, snap.Timeouts, snap.RequestsPerSecond())
	}
	if evalErr != nil {
		return fmt.Errorf("run halted: %w", evalErr)
	}
	return nil
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	accPath := fs.String("acceptance", "acceptance.json", "acceptance report")
	out := fs.String("out", "acceptance.pdf", "PDF output")
	manifestPath := fs.String("manifest", "", "manifest whose digest is printed on the report")
	lang := fs.String("lang", "en", "report language")
	fs.Parse(args)

	language, err := report.ParseLanguage(*lang)
	if err != nil {
		fail("lang: %v", err)
	}
	rep, err := report.LoadAcceptanceJSON(*accPath)
	if err != nil {
		fail("read acceptance: %v", err)
	}
	opts := report.PDFOptions{Lang: language}
	if *manifestPath != "" {
		m, err := manifest.Load(*manifestPath)
		if err != nil {
			fail("read manifest: %v", err)
		}
		if opts.ManifestHash, err = m.Digest(); err != nil {
			fail("manifest digest: %v", err)
		}
	}
	if err := report.SaveAcceptancePDF(rep, *out, opts); err != nil {
		fail("write pdf: %v", err)
	}
	fmt.Println("wrote", *out)
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	inputs := fs.String("inputs", "", "comma-separated artifact paths")
	out := fs.String("out", "manifest.json", "manifest output")
	vin := fs.String("vin", "", "vehicle identification number")
	sign := fs.Bool("sign", false, "write a detached JWS signature")
	keyPath := fs.String("key", "", "RSA private key (PEM)")
	fs.Parse(args)

	var paths []string
	for _, p := range strings.Split(*inputs, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		fail("required: --inputs")
	}
	m, err := manifest.Build(*vin, paths)
	if err != nil {
		fail("manifest: %v", err)
	}
	if *sign {
		if *keyPath == "" {
			fail("--sign requires --key")
		}
		key, err := os.ReadFile(*keyPath)
		if err != nil {
			fail("read key: %v", err)
		}
		if m, err = manifest.Sign(m, key, *out); err != nil {
			fail("sign: %v", err)
		}
	} else if err := manifest.Save(m, *out); err != nil {
		fail("write manifest: %v", err)
	}
	digest, _ := m.Digest()
	fmt.Printf("wrote %s (%d items, %s)\n", *out, len(m.Items), digest)
}

func verifySignatureCmd(args []string) {
	fs := flag.NewFlagSet("verify-signature", flag.ExitOnError)
	manifestPath := fs.String("manifest", "manifest.json", "signed manifest")
	keyPath := fs.String("key", "", "RSA private key (PEM) the manifest was signed with")
	fs.Parse(args)

	key, err := os.ReadFile(*keyPath)
	if err != nil {
		fail("read key: %v", err)
	}
	if err := manifest.Verify(*manifestPath, key); err != nil {
		fail("verify: %v", err)
	}
	fmt.Println("signature OK")
}

func modulesCmd(args []string) {
	fs := flag.NewFlagSet("modules", flag.ExitOnError)
	storePath := fs.String("store", "registry.db", "registry store")
	fs.Parse(args)

	store, err := registry.Open(*storePath)
	if err != nil {
		fail("open store: %v", err)
	}
	defer store.Close()
	repo, err := store.Load()
	if err != nil {
		fail("load store: %v", err)
	}
	v := repo.VehicleInformation()
	fmt.Printf("VIN %s, MY %d/%d, %s\n", emptyDash(v.VIN), v.VehicleModelYear, v.EngineModelYear, emptyDash(string(v.FuelType)))
	lookup := j1939.NewLookup(nil)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tNAME\tFUNCTION\tPACKETS")
	for _, mod := range repo.ObdModules() {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", mod.SourceAddress, lookup.AddressName(mod.SourceAddress), mod.Function, storedKinds(mod))
	}
	tw.Flush()
}

func storedKinds(mod *registry.OBDModuleInformation) string {
	var parts []string
	for k := j1939.KindAcknowledgment; k <= j1939.KindDM31; k++ {
		ords := mod.Ordinals(k)
		if len(ords) == 0 {
			continue
		}
		steps := make([]string, len(ords))
		for i, o := range ords {
			steps[i] = strconv.Itoa(o)
		}
		parts = append(parts, fmt.Sprintf("%s@%s", k, strings.Join(steps, ",")))
	}
	sort.Strings(parts)
	return emptyDash(strings.Join(parts, " "))
}

func scenarioCmd(args []string) {
	fs := flag.NewFlagSet("scenario", flag.ExitOnError)
	out := fs.String("out", "scenario.yaml", "scenario output")
	modules := fs.String("modules", "0", "comma-separated module addresses")
	fs.Parse(args)

	var addrs []int
	for _, s := range strings.Split(*modules, ",") {
		a, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			fail("module address %q: %v", s, err)
		}
		addrs = append(addrs, a)
	}
	if err := bus.SaveScenario(bus.CleanVehicle(addrs...), *out); err != nil {
		fail("write scenario: %v", err)
	}
	fmt.Println("wrote", *out)
}

func stepsCmd() {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, c := range part1.Steps() {
		fmt.Fprintf(tw, "%d\t%s\n", c.StepNumber(), c.DisplayName())
	}
	tw.Flush()
}

func emptyDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
