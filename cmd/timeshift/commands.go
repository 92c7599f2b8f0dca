package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
	"github.com/BYTE-6D65/timeshift/pkg/correction"
	"github.com/BYTE-6D65/timeshift/pkg/emitter"
	"github.com/BYTE-6D65/timeshift/pkg/engine"
)

var convertCmd = &cobra.Command{
	Use:   "convert <epoch>...",
	Short: "Convert instants into another time scale",
	Long: `Convert each instant into the --to scale using the loaded corrections.

An instant is written "2020-01-01T00:00:00[.fffffffff] SCALE"; quoting is
optional. Known scales: TAI, TT, UTC, GPST (GPS), GST (GAL), BDT (BDS), QZSST (QZSS).

Examples:
  timeshift convert 2020-01-01T00:00:00 GST --to GPST -f gal.jsonl
  timeshift convert "2020-01-01T00:00:00 GST" "2020-01-02T00:00:00 GST" --to UTC --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

var (
	convertTo   string
	convertJSON bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded corrections or stores",
	RunE:  runList,
}

var listStores bool

var outdateCmd = &cobra.Command{
	Use:   "outdate",
	Short: "Drop corrections older than a cutoff",
	Long: `Drop corrections from the store and write what is left.

--before drops corrections referenced at or before the given instant.
--weekly drops corrections referenced a week or more before --at (default: now).

Examples:
  timeshift outdate --before "2020-01-01T00:00:00 GPST" -f all.jsonl --out recent.jsonl
  timeshift outdate --weekly -f all.jsonl`,
	RunE: runOutdate,
}

var (
	outdateBefore string
	outdateWeekly bool
	outdateAt     string
	outdateOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the loaded corrections as JSON lines",
	RunE:  runExport,
}

var exportOut string

var fitCmd = &cobra.Command{
	Use:   "fit [observations-file]",
	Short: "Fit a correction to measured offsets",
	Long: `Fit a linear correction to measured offsets and add it to the store.

Each input line is "<instant> <offset-seconds>", the offset being the
destination reading minus the source reading. The fitted correction is
referenced at the first instant. Input is read from stdin when no file is given.

Examples:
  timeshift fit ggto.txt --to GPST --validity 24h --out gal.jsonl
  echo "2020-01-01T00:00:00 GST 1.2e-9" | timeshift fit --to GPST`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFit,
}

var (
	fitTo       string
	fitValidity time.Duration
	fitOut      string
)

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Show the current instant in every scale",
	RunE:  runNow,
}

var (
	nowNTP    bool
	nowServer string
	nowTo     string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and platform information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "timeshift v%s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertTo, "to", "t", "", "target scale (required)")
	convertCmd.Flags().BoolVar(&convertJSON, "json", false, "write one JSON object per conversion")
	_ = convertCmd.MarkFlagRequired("to")

	listCmd.Flags().BoolVar(&listStores, "stores", false, "list stores instead of corrections")

	outdateCmd.Flags().StringVar(&outdateBefore, "before", "", "drop corrections referenced at or before this instant")
	outdateCmd.Flags().BoolVar(&outdateWeekly, "weekly", false, "drop corrections older than one week")
	outdateCmd.Flags().StringVar(&outdateAt, "at", "", "reference instant for --weekly (default: now)")
	outdateCmd.Flags().StringVarP(&outdateOut, "out", "o", "", "write the remaining corrections here")
	outdateCmd.MarkFlagsMutuallyExclusive("before", "weekly")
	outdateCmd.MarkFlagsOneRequired("before", "weekly")

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")

	fitCmd.Flags().StringVarP(&fitTo, "to", "t", "", "destination scale (required)")
	fitCmd.Flags().DurationVar(&fitValidity, "validity", correction.NoWindow, "validity half-width (default: no window)")
	fitCmd.Flags().StringVarP(&fitOut, "out", "o", "", "write the store, fitted correction included, here")
	_ = fitCmd.MarkFlagRequired("to")

	nowCmd.Flags().BoolVar(&nowNTP, "ntp", false, "discipline the clock with NTP")
	nowCmd.Flags().StringVar(&nowServer, "server", "", "NTP server (default: the configured server)")
	nowCmd.Flags().StringVarP(&nowTo, "to", "t", "", "also apply the store's correction into this scale")
}

// parseEpochs reads instants from args. An instant may span several args
// when unquoted; it ends at the arg whose last field names a scale.
func parseEpochs(args []string) ([]clock.Epoch, error) {
	var out []clock.Epoch
	var pending []string
	for _, a := range args {
		pending = append(pending, a)
		fields := strings.Fields(a)
		if len(fields) == 0 {
			continue
		}
		if _, err := clock.ParseScale(fields[len(fields)-1]); err != nil {
			continue
		}
		e, err := clock.Parse(strings.Join(pending, " "))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		pending = nil
	}
	if len(pending) > 0 {
		return nil, errors.WithHint(
			errors.Newf("instant %q has no time scale", strings.Join(pending, " ")),
			`write instants as "2020-01-01T00:00:00 GPST"`)
	}
	return out, nil
}

// stdout wraps os.Stdout so emitters do not close it.
func stdout(cmd *cobra.Command) io.Writer {
	return struct{ io.Writer }{cmd.OutOrStdout()}
}

func runConvert(cmd *cobra.Command, args []string) error {
	target, err := clock.ParseScale(convertTo)
	if err != nil {
		return err
	}
	epochs, err := parseEpochs(args)
	if err != nil {
		return err
	}
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	var em emitter.Emitter
	if convertJSON {
		em = emitter.NewJSONLines("stdout", stdout(cmd))
		defer em.Close()
	}

	failed := 0
	for _, in := range epochs {
		out, sol, err := eng.Correct("", in, target)
		if err != nil {
			failed++
		}
		if em != nil {
			if err := em.EmitConversion(cmd.Context(), emitter.NewConversion(in, target, out, sol, err)); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", in, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t(%s)\n", out, sol.Tier)
	}
	if failed > 0 {
		return errors.Newf("%d of %d conversions failed", failed, len(epochs))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	if listStores {
		fmt.Fprintln(w, "STORE\tMODE\tSTRICT\tCORRECTIONS")
		for _, info := range eng.Stores() {
			fmt.Fprintf(w, "%s\t%s\t%t\t%d\n", info.Name, info.Mode, info.Strict, info.Len)
		}
		return nil
	}

	cs, err := eng.Snapshot("")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "#\tCORRECTION\tVALIDITY")
	for i, c := range cs {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, c, validityText(c))
	}
	return nil
}

// validityText renders a validity window for listings.
func validityText(c correction.Correction) string {
	if !c.HasWindow() {
		return "none"
	}
	return "±" + c.Validity.String()
}

func runOutdate(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	var removed int
	if outdateWeekly {
		at := eng.Clock().Now()
		if outdateAt != "" {
			if at, err = clock.Parse(outdateAt); err != nil {
				return err
			}
		}
		removed, err = eng.OutdateWeekly("", at)
	} else {
		var cutoff clock.Epoch
		if cutoff, err = clock.Parse(outdateBefore); err != nil {
			return err
		}
		removed, err = eng.OutdatePast("", cutoff)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "removed %d corrections\n", removed)

	if outdateOut == "" {
		return nil
	}
	return export(cmd, eng, outdateOut)
}

func runExport(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	return export(cmd, eng, exportOut)
}

func export(cmd *cobra.Command, eng *engine.Engine, path string) error {
	var em emitter.Emitter
	if path == "" {
		em = emitter.NewJSONLines("stdout", stdout(cmd))
	} else {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "create %s", path)
		}
		em = emitter.NewJSONLines(path, f)
	}
	if err := eng.Export(cmd.Context(), "", em); err != nil {
		_ = em.Close()
		return err
	}
	return em.Close()
}

// readObservations parses "<instant> <offset-seconds>" lines. Blank lines
// and lines starting with # are skipped.
func readObservations(r io.Reader) ([]engine.Observation, error) {
	var obs []engine.Observation
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cut := strings.LastIndexAny(line, " \t")
		if cut < 0 {
			return nil, errors.Newf("line %d: want \"<instant> <offset-seconds>\"", n)
		}
		at, err := clock.Parse(line[:cut])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", n)
		}
		offset, err := strconv.ParseFloat(line[cut+1:], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: offset", n)
		}
		obs = append(obs, engine.Observation{At: at, Offset: offset})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read observations")
	}
	return obs, nil
}

func runFit(cmd *cobra.Command, args []string) error {
	target, err := clock.ParseScale(fitTo)
	if err != nil {
		return err
	}
	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrapf(err, "open %s", args[0])
		}
		defer f.Close()
		in = f
	}
	obs, err := readObservations(in)
	if err != nil {
		return err
	}
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	c, err := eng.Fit("", target, obs, fitValidity)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\tvalidity %s\t(%d observations)\n", c, validityText(c), len(obs))

	if fitOut == "" {
		return nil
	}
	return export(cmd, eng, fitOut)
}

func runNow(cmd *cobra.Command, args []string) error {
	if nowNTP {
		cfg.UseNTP = true
	}
	if nowServer != "" {
		cfg.NTPServer = nowServer
	}
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	if offset, lastSync, lastErr, ok := eng.ClockHealth(); ok {
		if lastErr != nil && lastSync.IsZero() {
			fmt.Fprintf(cmd.ErrOrStderr(), "ntp %s unreachable, using local clock: %v\n", cfg.NTPServer, lastErr)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "ntp %s offset %s\n", cfg.NTPServer, offset.Round(time.Microsecond))
		}
	}

	now := eng.Clock().Now()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, s := range clock.Scales() {
		fmt.Fprintf(w, "%s\t%s\n", s, now.ToScale(s))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if nowTo == "" {
		return nil
	}
	target, err := clock.ParseScale(nowTo)
	if err != nil {
		return err
	}
	out, sol, err := eng.Correct("", now, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\ncorrected\t%s\t(%s)\n", out, sol.Tier)
	return nil
}
