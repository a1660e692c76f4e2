package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/regtimer/pkg/stopwatch"
)

// Formats accepted by Write
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Write renders results in the given format. Text and table print one
// block per result; JSON and YAML print a list.
func Write(w io.Writer, format string, results []*Result, labelWidth int) error {
	switch format {
	case FormatText, "":
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := WriteText(w, r, labelWidth); err != nil {
				return err
			}
		}
		return nil
	case FormatTable:
		for _, r := range results {
			if err := WriteTable(w, r); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		return WriteJSON(w, results)
	case FormatYAML:
		return WriteYAML(w, results)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteText prints the stopwatch report of a result followed by a newline
func WriteText(w io.Writer, r *Result, labelWidth int) error {
	_, err := fmt.Fprintln(w, stopwatch.Format(r.Measurements, labelWidth))
	return err
}

// WriteTable prints a result as a label/seconds table
func WriteTable(w io.Writer, r *Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("Label", "Seconds")

	for _, m := range r.Measurements {
		table.Append(m.Label, stopwatch.FormatSeconds(m.Seconds))
	}
	for _, m := range r.Reported {
		table.Append(m.Label+" (reported)", stopwatch.FormatSeconds(m.Seconds))
	}
	table.Append("TOT", stopwatch.FormatSeconds(r.Total))

	if err := table.Render(); err != nil {
		return err
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "FAILED %s (exit %d): %s\n", f.Label, f.ExitCode, f.Reason)
	}
	if r.Host != nil {
		fmt.Fprintf(w, "Host: %s, %d threads, %s RAM (%s/%s)\n",
			r.Host.CPUModel, r.Host.CPUThreads, FormatRAM(r.Host.RAMBytes), r.Host.OS, r.Host.Architecture)
	}
	return nil
}

// WriteJSON prints results as an indented JSON array
func WriteJSON(w io.Writer, results []*Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

// WriteYAML prints results as a YAML sequence
func WriteYAML(w io.Writer, results []*Result) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(results); err != nil {
		return err
	}
	return encoder.Close()
}

// TimingReport is the report a timed binary writes about itself.
type TimingReport struct {
	Completed bool          `json:"completed"`
	Timing    []TimingEntry `json:"timing"`
}

// TimingEntry is one tagged duration in seconds
type TimingEntry struct {
	Tag  string   `json:"tag"`
	Time flexTime `json:"time"`
}

// flexTime accepts seconds as a JSON number or a numeric string
type flexTime float64

func (f *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid time %s: %w", data, err)
	}
	*f = flexTime(v)
	return nil
}

// ParseTimingReport decodes a timing report
func ParseTimingReport(r io.Reader) (*TimingReport, error) {
	var rep TimingReport
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to parse timing report: %w", err)
	}
	return &rep, nil
}

// Measurements converts the report entries
func (t *TimingReport) Measurements() []stopwatch.Measurement {
	out := make([]stopwatch.Measurement, 0, len(t.Timing))
	for _, e := range t.Timing {
		out = append(out, stopwatch.Measurement{Label: e.Tag, Seconds: float64(e.Time)})
	}
	return out
}
