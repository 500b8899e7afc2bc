// Package format renders the run report: a sectioned human-readable console
// view with colored status markers, and indented JSON for files and piping.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/shii9/ProbeNio/internal/probe"
	"github.com/shii9/ProbeNio/internal/report"
)

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

const sectionEnd = "└────────────────────────────"

// SetColor toggles ANSI colors for every renderer and status helper.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

// Status-line helpers in the [*] / [+] / [-] / [!] idiom.

func Info(format string, args ...any) {
	fmt.Printf("%s %s\n", cyan("[*]"), fmt.Sprintf(format, args...))
}

func Good(format string, args ...any) {
	fmt.Printf("%s %s\n", green("[+]"), fmt.Sprintf(format, args...))
}

func Bad(format string, args ...any) {
	fmt.Printf("%s %s\n", red("[-]"), fmt.Sprintf(format, args...))
}

func Warn(format string, args ...any) {
	fmt.Printf("%s %s\n", yellow("[!]"), fmt.Sprintf(format, args...))
}

// JSON writes the indented report document.
func JSON(w io.Writer, r *report.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Write saves the report to path, rendered per format ("json" or "normal").
// File output is always plain text regardless of the color setting.
func Write(r *report.Report, format, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.EqualFold(format, "json") {
		return JSON(f, r)
	}
	old := color.NoColor
	color.NoColor = true
	Console(f, r)
	color.NoColor = old
	return nil
}

// Console writes the sectioned human view.
func Console(w io.Writer, r *report.Report) {
	fmt.Fprintf(w, "\n%s - Report for %s\n", bold("ProbeNio"), bold(r.Target.Host))
	fmt.Fprintf(w, "Run ID: %s\nGenerated: %s\n\n", r.RunID, r.GeneratedAt)

	printTarget(w, r)
	printWeb(w, r)
	printPorts(w, r)
	printPaths(w, r)
	printAccounts(w, r)
	printGeo(w, r)
	printWhois(w, r)
	printContent(w, r)
	printNotes(w, r)
}

func printTarget(w io.Writer, r *report.Report) {
	fmt.Fprintln(w, "┌─ Target")
	fmt.Fprintf(w, "│  Input: %s\n", r.Target.Input)
	fmt.Fprintf(w, "│  Host: %s\n", r.Target.Host)
	if r.Target.IP != "" {
		fmt.Fprintf(w, "│  IP: %s", green(r.Target.IP))
		if len(r.Target.IPs) > 1 {
			fmt.Fprintf(w, " (%d addresses)", len(r.Target.IPs))
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "│  IP: %s\n", red("unresolved"))
	}
	for _, name := range r.Target.ReverseDNS {
		fmt.Fprintf(w, "│  Reverse DNS: %s\n", name)
	}
	fmt.Fprintf(w, "│  Base URL: %s\n", r.Target.BaseURL)
	endSection(w)
}

func printWeb(w io.Writer, r *report.Report) {
	if r.Web == nil {
		return
	}
	fmt.Fprintln(w, "┌─ Web Identity")
	fmt.Fprintf(w, "│  URL: %s\n", r.Web.URL)
	fmt.Fprintf(w, "│  Status: %d\n", r.Web.Status)
	if r.Web.Server != "" {
		fmt.Fprintf(w, "│  Server: %s\n", green(r.Web.Server))
	}
	if r.Web.PoweredBy != "" {
		fmt.Fprintf(w, "│  X-Powered-By: %s\n", green(r.Web.PoweredBy))
	}
	for k, v := range r.Web.Headers {
		if k == "Server" || k == "X-Powered-By" {
			continue
		}
		fmt.Fprintf(w, "│  %s: %s\n", k, v)
	}
	endSection(w)
}

func printPorts(w io.Writer, r *report.Report) {
	phase, ran := r.Phase(probe.KindPort)
	if !ran {
		return
	}
	fmt.Fprintf(w, "┌─ Open Ports (%d)\n", len(r.OpenPorts))
	if phase.Skipped {
		fmt.Fprintf(w, "│  Skipped: %s\n", yellow(phase.SkipReason))
		endSection(w)
		return
	}
	if len(r.OpenPorts) == 0 {
		fmt.Fprintln(w, "│  None found")
	}
	for _, p := range r.OpenPorts {
		line := fmt.Sprintf("%d/tcp", p.Port)
		if p.Service != "" {
			line += " " + p.Service
		}
		line += fmt.Sprintf(" (%dms)", p.LatencyMS)
		fmt.Fprintf(w, "│  - %s\n", green(line))
		if p.Banner != "" {
			fmt.Fprintf(w, "│      %s\n", p.Banner)
		}
	}
	printPhaseFooter(w, phase)
	endSection(w)
}

func printPaths(w io.Writer, r *report.Report) {
	phase, ran := r.Phase(probe.KindPath)
	if !ran {
		return
	}
	fmt.Fprintf(w, "┌─ Discovered Paths (%d)\n", len(r.FoundPaths))
	if phase.Skipped {
		fmt.Fprintf(w, "│  Skipped: %s\n", yellow(phase.SkipReason))
		endSection(w)
		return
	}
	if len(r.FoundPaths) == 0 {
		fmt.Fprintln(w, "│  None found")
	}
	for _, p := range r.FoundPaths {
		mark := green
		if p.Class == probe.ClassForbidden {
			mark = yellow
		}
		fmt.Fprintf(w, "│  - /%s %s\n", p.Path, mark(fmt.Sprintf("[%d %s]", p.HTTPStatus, p.Class)))
	}
	printPhaseFooter(w, phase)
	endSection(w)
}

func printAccounts(w io.Writer, r *report.Report) {
	phase, ran := r.Phase(probe.KindPlatform)
	if !ran {
		return
	}
	fmt.Fprintf(w, "┌─ Platform Accounts (%d)\n", len(r.Accounts))
	if phase.Skipped {
		fmt.Fprintf(w, "│  Skipped: %s\n", yellow(phase.SkipReason))
		endSection(w)
		return
	}
	if len(r.Accounts) == 0 {
		fmt.Fprintln(w, "│  None confirmed")
	}
	for _, a := range r.Accounts {
		fmt.Fprintf(w, "│  - %s: %s\n", green(a.Platform), a.URL)
	}
	printPhaseFooter(w, phase)
	endSection(w)
}

func printGeo(w io.Writer, r *report.Report) {
	if r.Geo == nil {
		return
	}
	fmt.Fprintln(w, "┌─ Geolocation & ISP")
	g := r.Geo
	place := joinNonEmpty(", ", g.City, g.Region, g.Country)
	if place != "" {
		fmt.Fprintf(w, "│  Location: %s\n", place)
	}
	if g.ISP != "" {
		fmt.Fprintf(w, "│  ISP: %s\n", g.ISP)
	}
	if g.Org != "" {
		fmt.Fprintf(w, "│  Org: %s\n", g.Org)
	}
	if g.AS != "" {
		fmt.Fprintf(w, "│  AS: %s\n", g.AS)
	}
	endSection(w)
}

func printWhois(w io.Writer, r *report.Report) {
	if r.Whois == nil && r.IPWhois == nil {
		return
	}
	fmt.Fprintln(w, "┌─ WHOIS")
	if d := r.Whois; d != nil {
		fmt.Fprintf(w, "│  Registrar: %s\n", orNA(d.Registrar))
		fmt.Fprintf(w, "│  Created: %s\n", orNA(d.Created))
		fmt.Fprintf(w, "│  Expires: %s\n", orNA(d.Expires))
		if d.Org != "" || d.Country != "" {
			fmt.Fprintf(w, "│  Registrant: %s\n", joinNonEmpty(", ", d.Org, d.Country))
		}
		for _, ns := range d.NameServers {
			fmt.Fprintf(w, "│  Name Server: %s\n", ns)
		}
	}
	if a := r.IPWhois; a != nil {
		fmt.Fprintf(w, "│  Network: %s\n", orNA(joinNonEmpty(" / ", a.Range, a.CIDR)))
		fmt.Fprintf(w, "│  Net Org: %s\n", orNA(joinNonEmpty(", ", a.Org, a.Country)))
		if a.ASN != "" {
			fmt.Fprintf(w, "│  ASN: %s\n", a.ASN)
		}
		if a.RIR != "" {
			fmt.Fprintf(w, "│  RIR: %s\n", a.RIR)
		}
	}
	endSection(w)
}

func printContent(w io.Writer, r *report.Report) {
	if len(r.Pages) == 0 && r.Robots == nil {
		return
	}
	fmt.Fprintln(w, "┌─ Content")
	for _, p := range r.Pages {
		fmt.Fprintf(w, "│  %s\n", bold(p.URL))
		if p.Title != "" {
			fmt.Fprintf(w, "│    Title: %s\n", p.Title)
		}
		if p.MetaDescription != "" {
			fmt.Fprintf(w, "│    Description: %s\n", p.MetaDescription)
		}
		fmt.Fprintf(w, "│    Links: %d internal, %d external\n", len(p.InternalLinks), len(p.ExternalLinks))
		if len(p.Scripts) > 0 {
			fmt.Fprintf(w, "│    Scripts: %d\n", len(p.Scripts))
		}
		for _, in := range p.HiddenInputs {
			fmt.Fprintf(w, "│    Hidden input: %s\n", yellow(in.Name))
		}
		for _, c := range p.Comments {
			fmt.Fprintf(w, "│    Comment: %s\n", c)
		}
	}
	if r.Robots != nil {
		for _, d := range r.Robots.Disallow {
			fmt.Fprintf(w, "│  robots.txt Disallow: %s\n", yellow(d))
		}
		for _, a := range r.Robots.Allow {
			fmt.Fprintf(w, "│  robots.txt Allow: %s\n", a)
		}
	}
	endSection(w)
}

func printNotes(w io.Writer, r *report.Report) {
	var notes []string
	notes = append(notes, r.Notes...)
	for _, p := range r.Phases {
		if len(p.Duplicates) > 0 {
			notes = append(notes, fmt.Sprintf("%s phase delivered duplicate outcomes for job IDs %v", p.Kind, p.Duplicates))
		}
	}
	if len(notes) == 0 {
		return
	}
	fmt.Fprintln(w, "┌─ Notes")
	for _, n := range notes {
		fmt.Fprintf(w, "│  %s %s\n", yellow("[!]"), n)
	}
	endSection(w)
}

func printPhaseFooter(w io.Writer, p report.Phase) {
	fmt.Fprintf(w, "│  (%d jobs in %dms)\n", p.Jobs, p.DurationMS)
	if p.Partial {
		fmt.Fprintf(w, "│  %s\n", yellow("[!] partial: run ended before every job settled"))
	}
}

func endSection(w io.Writer) {
	fmt.Fprintf(w, "%s\n\n", sectionEnd)
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "<not available>"
	}
	return s
}
