// Command probenio runs a single-host reconnaissance scan: resolution and
// web identity, port scan, hidden path discovery, platform account probing,
// single-hop content analysis and geo/WHOIS enrichment, all driven by one
// bounded-concurrency probing engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/shii9/ProbeNio/internal/content"
	"github.com/shii9/ProbeNio/internal/format"
	"github.com/shii9/ProbeNio/internal/geo"
	"github.com/shii9/ProbeNio/internal/identity"
	"github.com/shii9/ProbeNio/internal/pathscan"
	"github.com/shii9/ProbeNio/internal/platform"
	"github.com/shii9/ProbeNio/internal/portscan"
	"github.com/shii9/ProbeNio/internal/probe"
	"github.com/shii9/ProbeNio/internal/report"
	"github.com/shii9/ProbeNio/internal/resolve"
	"github.com/shii9/ProbeNio/internal/wordlist"
)

// ScanFlags bundles every knob the CLI accepts. Profiles mutate the bundle
// before the scan starts.
type ScanFlags struct {
	Target   string
	Username string

	Ports      string
	Wordlist   string
	Extensions string
	FoundCodes string
	HeadFirst  bool
	Platforms  string
	MaxPages   int

	Concurrency int
	Timeout     int
	Retries     int
	BackoffBase int
	BackoffCap  int
	RateLimit   int

	SkipPorts     bool
	SkipPaths     bool
	SkipPlatforms bool
	SkipContent   bool
	SkipGeo       bool
	SkipWhois     bool

	DNSServer string
	Profile   string

	Format  string
	Output  string
	NoColor bool
	Quiet   bool
}

var quiet bool

func info(msg string, args ...any) {
	if !quiet {
		format.Info(msg, args...)
	}
}

func good(msg string, args ...any) {
	if !quiet {
		format.Good(msg, args...)
	}
}

func warn(msg string, args ...any) {
	if !quiet {
		format.Warn(msg, args...)
	}
}

// applyProfile rewrites the flag bundle for the named profile. "standard"
// and unknown names leave the defaults alone.
func applyProfile(p string, f *ScanFlags) {
	switch strings.ToLower(p) {
	case "quick":
		f.SkipPaths = true
		f.SkipPlatforms = true
		f.SkipContent = true
		f.SkipGeo = true
		f.SkipWhois = true
		f.Concurrency = 50
		f.Retries = 0
	case "full":
		f.SkipPorts = false
		f.SkipPaths = false
		f.SkipPlatforms = false
		f.SkipContent = false
		f.SkipGeo = false
		f.SkipWhois = false
		f.Concurrency = 40
		f.Retries = 3
		f.MaxPages = 10
	case "stealth":
		f.Concurrency = 2
		f.RateLimit = 2
		f.Retries = 2
		f.BackoffBase = 1000
		f.BackoffCap = 8000
		f.HeadFirst = true
	default:
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: probenio [flags] target\n\n")
	fmt.Fprintf(os.Stderr, "ProbeNio — single-host recon driven by a concurrent probing engine\n\n")

	fmt.Fprintf(os.Stderr, "Target selection:\n")
	fmt.Fprintf(os.Stderr, "  -target string\n\tTarget host, URL or IP. If omitted, the first positional argument is used.\n")
	fmt.Fprintf(os.Stderr, "  -username string\n\tIdentity to probe on platforms (default: first DNS label of the target)\n")
	fmt.Fprintf(os.Stderr, "  -dns-server string\n\tResolve via this DNS server (host or host:port) instead of the system resolver\n\n")

	fmt.Fprintf(os.Stderr, "Probing engine:\n")
	fmt.Fprintf(os.Stderr, "  -concurrency int\n\tWorker pool size per phase (default %d)\n", probe.DefaultConcurrency)
	fmt.Fprintf(os.Stderr, "  -timeout int\n\tPer-probe timeout in seconds (default 5)\n")
	fmt.Fprintf(os.Stderr, "  -retries int\n\tExtra attempts after a transient failure (default 1)\n")
	fmt.Fprintf(os.Stderr, "  -backoff-base int\n\tFirst retry delay in milliseconds, doubled per retry (default 200)\n")
	fmt.Fprintf(os.Stderr, "  -backoff-cap int\n\tMaximum retry delay in milliseconds (default 3000)\n")
	fmt.Fprintf(os.Stderr, "  -rate-limit int\n\tGlobal probe attempts per second across all workers. 0 = unlimited\n\n")

	fmt.Fprintf(os.Stderr, "Scan phases:\n")
	fmt.Fprintf(os.Stderr, "  -ports string\n\tPorts to scan: '22,80,443' or '1-1024' or '22,8000-8100' (default: common ports)\n")
	fmt.Fprintf(os.Stderr, "  -wordlist string\n\tPath wordlist file, one entry per line (default: built-in list)\n")
	fmt.Fprintf(os.Stderr, "  -extensions string\n\tComma list of extensions to expand the wordlist with, e.g. php,bak\n")
	fmt.Fprintf(os.Stderr, "  -found-codes string\n\tComma list of HTTP statuses treated as found (default 200-204 and redirects)\n")
	fmt.Fprintf(os.Stderr, "  -head-first\n\tProbe paths with HEAD first, falling back to GET when needed\n")
	fmt.Fprintf(os.Stderr, "  -platforms string\n\tPlatform catalogue YAML file (default: built-in catalogue)\n")
	fmt.Fprintf(os.Stderr, "  -max-pages int\n\tPage cap for content analysis (default %d)\n", content.DefaultMaxPages)
	fmt.Fprintf(os.Stderr, "  -skip-ports\n\tSkip the port scan phase\n")
	fmt.Fprintf(os.Stderr, "  -skip-paths\n\tSkip the path discovery phase\n")
	fmt.Fprintf(os.Stderr, "  -skip-platforms\n\tSkip the platform probing phase\n")
	fmt.Fprintf(os.Stderr, "  -skip-content\n\tSkip content analysis and robots.txt\n")
	fmt.Fprintf(os.Stderr, "  -skip-geo\n\tSkip IP geolocation\n")
	fmt.Fprintf(os.Stderr, "  -skip-whois\n\tSkip WHOIS lookups\n\n")

	fmt.Fprintf(os.Stderr, "Profiles:\n")
	fmt.Fprintf(os.Stderr, "  -profile string\n\tScan profile: quick|standard|full|stealth\n\n")

	fmt.Fprintf(os.Stderr, "Output:\n")
	fmt.Fprintf(os.Stderr, "  -format string\n\tOutput format: json or normal (default \"normal\")\n")
	fmt.Fprintf(os.Stderr, "  -output string\n\tWrite the report to this file instead of stdout\n")
	fmt.Fprintf(os.Stderr, "  -no-color\n\tDisable ANSI colors\n")
	fmt.Fprintf(os.Stderr, "  -quiet\n\tSuppress status lines and progress bars\n")
}

func main() {
	flag.Usage = usage

	var f ScanFlags
	flag.StringVar(&f.Target, "target", "", "Target host, URL or IP. If omitted, positional args are used.")
	flag.StringVar(&f.Username, "username", "", "Identity to probe on platforms (default: first DNS label of the target)")
	flag.StringVar(&f.Ports, "ports", "", "Ports to scan: '22,80,443' or '1-1024' or mixed")
	flag.StringVar(&f.Wordlist, "wordlist", "", "Path wordlist file, one entry per line")
	flag.StringVar(&f.Extensions, "extensions", "", "Comma list of extensions to expand the wordlist with, e.g. php,bak")
	flag.StringVar(&f.FoundCodes, "found-codes", "", "Comma list of HTTP statuses treated as found")
	flag.BoolVar(&f.HeadFirst, "head-first", false, "Probe paths with HEAD first, falling back to GET when needed")
	flag.StringVar(&f.Platforms, "platforms", "", "Platform catalogue YAML file")
	flag.IntVar(&f.MaxPages, "max-pages", content.DefaultMaxPages, "Page cap for content analysis")
	flag.IntVar(&f.Concurrency, "concurrency", probe.DefaultConcurrency, "Worker pool size per phase")
	flag.IntVar(&f.Timeout, "timeout", 5, "Per-probe timeout in seconds")
	flag.IntVar(&f.Retries, "retries", 1, "Extra attempts after a transient failure")
	flag.IntVar(&f.BackoffBase, "backoff-base", 200, "First retry delay in milliseconds")
	flag.IntVar(&f.BackoffCap, "backoff-cap", 3000, "Maximum retry delay in milliseconds")
	flag.IntVar(&f.RateLimit, "rate-limit", 0, "Global probe attempts per second. 0 = unlimited")
	flag.BoolVar(&f.SkipPorts, "skip-ports", false, "Skip the port scan phase")
	flag.BoolVar(&f.SkipPaths, "skip-paths", false, "Skip the path discovery phase")
	flag.BoolVar(&f.SkipPlatforms, "skip-platforms", false, "Skip the platform probing phase")
	flag.BoolVar(&f.SkipContent, "skip-content", false, "Skip content analysis and robots.txt")
	flag.BoolVar(&f.SkipGeo, "skip-geo", false, "Skip IP geolocation")
	flag.BoolVar(&f.SkipWhois, "skip-whois", false, "Skip WHOIS lookups")
	flag.StringVar(&f.DNSServer, "dns-server", "", "Resolve via this DNS server instead of the system resolver")
	flag.StringVar(&f.Profile, "profile", "", "Scan profile: quick|standard|full|stealth")
	flag.StringVar(&f.Format, "format", "normal", "Output format: json or normal")
	flag.StringVar(&f.Output, "output", "", "Write the report to this file instead of stdout")
	flag.BoolVar(&f.NoColor, "no-color", false, "Disable ANSI colors")
	flag.BoolVar(&f.Quiet, "quiet", false, "Suppress status lines and progress bars")
	flag.Parse()

	if f.Target == "" && flag.NArg() > 0 {
		f.Target = flag.Arg(0)
	}
	if f.Target == "" {
		format.Bad("no target given")
		flag.Usage()
		os.Exit(1)
	}
	if f.Profile != "" {
		applyProfile(f.Profile, &f)
	}
	if f.NoColor {
		format.SetColor(false)
	}
	quiet = f.Quiet

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	rep, err := scanTarget(ctx, f)
	if err != nil {
		format.Bad("%v", err)
		os.Exit(1)
	}
	if ctx.Err() != nil {
		warn("scan interrupted; report is partial")
	}
	good("scan finished in %s", time.Since(started).Round(time.Millisecond))

	jsonToStdout := strings.EqualFold(f.Format, "json") && f.Output == ""
	switch {
	case f.Output != "":
		if werr := format.Write(rep, f.Format, f.Output); werr != nil {
			log.Printf("[-] Failed to write %s: %v", f.Output, werr)
			os.Exit(1)
		}
		good("wrote %s", f.Output)
	case jsonToStdout:
		if jerr := format.JSON(os.Stdout, rep); jerr != nil {
			log.Printf("[-] Failed to encode report: %v", jerr)
			os.Exit(1)
		}
	default:
		format.Console(os.Stdout, rep)
	}

	if !f.Quiet && !jsonToStdout {
		fmt.Println("✅ ProbeNio scan completed.")
	}
}

// scanTarget runs every enabled phase against one target and assembles the
// report. Configuration problems abort with an error; per-probe and
// enrichment failures become outcomes and notes instead.
func scanTarget(ctx context.Context, f ScanFlags) (*report.Report, error) {
	target, err := resolve.Parse(f.Target)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(f.Timeout) * time.Second
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	info("Resolving %s", target.Host)
	resolver := resolve.NewResolver(f.DNSServer)
	resolved := true
	if rerr := resolver.Resolve(ctx, &target); rerr != nil {
		var resErr *probe.ResolutionError
		if !errors.As(rerr, &resErr) {
			return nil, rerr
		}
		resolved = false
		warn("%v", rerr)
	} else {
		good("Resolved %s -> %s", target.Host, target.IP)
	}

	info("Checking web service at %s", target.BaseURL)
	web, webErr := resolve.CheckWeb(ctx, httpClient, &target)
	if webErr != nil {
		warn("no web service answered at %s", target.BaseURL)
	} else {
		good("%s answered %d", web.URL, web.Status)
	}
	webOK := webErr == nil

	rep := report.New(target)
	rep.Web = web
	if !resolved {
		rep.Note("target %s did not resolve to an IP; port scan and IP enrichment skipped", target.Host)
	}

	cfg := probe.Config{
		Concurrency: f.Concurrency,
		Timeout:     timeout,
		MaxRetries:  f.Retries,
		BackoffBase: time.Duration(f.BackoffBase) * time.Millisecond,
		BackoffCap:  time.Duration(f.BackoffCap) * time.Millisecond,
	}
	if f.RateLimit > 0 {
		cfg.Limiter = rate.NewLimiter(rate.Limit(f.RateLimit), f.RateLimit)
	}
	sched := probe.NewScheduler(cfg)

	// Port scan
	if f.SkipPorts {
		rep.AddPhase(report.SkippedPhase(probe.KindPort, "disabled by flag"))
	} else {
		ports := portscan.DefaultPorts
		if f.Ports != "" {
			parsed, perr := portscan.ParsePortSpec(f.Ports)
			if perr != nil {
				return nil, perr
			}
			ports = parsed
		}
		jobs, jerr := portscan.Jobs(target.IP, ports)
		switch {
		case errors.Is(jerr, probe.ErrUnresolvable):
			rep.AddPhase(report.SkippedPhase(probe.KindPort, "target did not resolve"))
		case jerr != nil:
			return nil, jerr
		default:
			info("Port scanning %s (%d ports)", target.IP, len(jobs))
			rep.AddPhase(runPhase(ctx, sched, probe.KindPort, jobs, portscan.NewProber(target.IP)))
			if n := len(rep.OpenPorts); n > 0 {
				good("%d open ports", n)
				open := make([]int, 0, n)
				for _, p := range rep.OpenPorts {
					open = append(open, p.Port)
				}
				rep.AttachBanners(portscan.GrabBanners(ctx, target.IP, open, timeout))
			} else {
				info("No open ports found")
			}
		}
	}

	// Path discovery
	switch {
	case f.SkipPaths:
		rep.AddPhase(report.SkippedPhase(probe.KindPath, "disabled by flag"))
	case !webOK:
		rep.AddPhase(report.SkippedPhase(probe.KindPath, "web service unreachable"))
		rep.Note("path discovery skipped: no web service at %s", target.BaseURL)
	default:
		words := wordlist.Default()
		if f.Wordlist != "" {
			loaded, lerr := wordlist.Load(f.Wordlist)
			if lerr != nil {
				return nil, lerr
			}
			words = loaded
		}
		if f.Extensions != "" {
			words = wordlist.ExpandExtensions(words, strings.Split(f.Extensions, ","))
		}
		codes := pathscan.DefaultFoundCodes
		if f.FoundCodes != "" {
			parsed, cerr := pathscan.ParseFoundCodes(f.FoundCodes)
			if cerr != nil {
				return nil, cerr
			}
			codes = parsed
		}
		prober, perr := pathscan.NewProber(pathscan.Config{
			BaseURL:    target.BaseURL,
			FoundCodes: codes,
			HeadFirst:  f.HeadFirst,
		})
		if perr != nil {
			return nil, perr
		}
		jobs, jerr := pathscan.Jobs(target.BaseURL, words)
		if jerr != nil {
			return nil, jerr
		}
		info("Calibrating soft-404 baseline for %s", target.BaseURL)
		if cerr := prober.Calibrate(ctx); cerr != nil {
			warn("calibration failed, soft-404 suppression disabled")
			rep.Note("soft-404 calibration failed: %v", cerr)
		}
		info("Probing %d paths", len(jobs))
		rep.AddPhase(runPhase(ctx, sched, probe.KindPath, jobs, prober))
		good("%d paths discovered", len(rep.FoundPaths))
	}

	// Platform accounts
	if f.SkipPlatforms {
		rep.AddPhase(report.SkippedPhase(probe.KindPlatform, "disabled by flag"))
	} else {
		username := f.Username
		if username == "" {
			username = resolve.DefaultUsername(target.Host)
		}
		if username == "" {
			rep.AddPhase(report.SkippedPhase(probe.KindPlatform, "no username derived from target"))
		} else {
			cat := platform.Default()
			if f.Platforms != "" {
				loaded, lerr := platform.Load(f.Platforms)
				if lerr != nil {
					return nil, lerr
				}
				cat = loaded
			}
			jobs, jerr := platform.Jobs(cat, username)
			if jerr != nil {
				return nil, jerr
			}
			prober, perr := platform.NewProber(cat, nil)
			if perr != nil {
				return nil, perr
			}
			info("Checking %d platforms for username %q", len(jobs), username)
			rep.AddPhase(runPhase(ctx, sched, probe.KindPlatform, jobs, prober))
			good("%d accounts confirmed", len(rep.Accounts))
		}
	}

	// Content analysis + robots.txt
	if !f.SkipContent && webOK {
		analyzer := content.NewAnalyzer(httpClient)
		if f.MaxPages > 0 {
			analyzer.MaxPages = f.MaxPages
		}
		urls := []string{target.BaseURL}
		for _, p := range rep.FoundPaths {
			if p.Class == probe.ClassFound {
				urls = append(urls, target.BaseURL+"/"+p.Path)
			}
		}
		info("Analyzing up to %d pages", analyzer.MaxPages)
		rep.Pages = analyzer.Analyze(ctx, urls)
		if robots, rerr := analyzer.Robots(ctx, target.BaseURL); rerr == nil {
			rep.Robots = robots
		}
	}

	// Geolocation
	if !f.SkipGeo && target.IP != "" {
		info("Geolocating %s", target.IP)
		if loc, gerr := geo.NewClient().Lookup(ctx, target.IP); gerr != nil {
			warn("geolocation lookup failed")
			rep.Note("geolocation lookup failed: %v", gerr)
		} else {
			rep.Geo = loc
		}
	}

	// WHOIS
	if !f.SkipWhois {
		idc := identity.NewClient()
		if net.ParseIP(target.Host) == nil {
			info("WHOIS lookup for %s", target.Host)
			if reg, werr := idc.Domain(target.Host); werr != nil {
				rep.Note("domain whois failed: %v", werr)
			} else {
				rep.Whois = reg
			}
		}
		if target.IP != "" {
			if alloc, werr := idc.IP(target.IP); werr != nil {
				rep.Note("ip whois failed: %v", werr)
			} else {
				rep.IPWhois = alloc
			}
		}
	}

	return rep, nil
}

// runPhase drains one scheduler invocation into a phase record, feeding the
// progress bar as outcomes settle.
func runPhase(ctx context.Context, sched *probe.Scheduler, kind probe.Kind, jobs []probe.Job, p probe.Prober) report.Phase {
	var bar *progressbar.ProgressBar
	if !quiet {
		bar = newBar(len(jobs), string(kind)+" probes")
	}
	agg := report.NewAggregator(kind, len(jobs))
	for o := range sched.Stream(ctx, jobs, p) {
		agg.Add(o)
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	return agg.Finish(ctx.Err() != nil)
}

func newBar(n int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
