package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kestrel-ci/kestrel/internal/runtime"
	"github.com/kestrel-ci/kestrel/internal/testengine"
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true)
	stylePass   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleFail   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleDim    = lipgloss.NewStyle().Faint(true)
)

// printer renders sequence progress and reports in the configured
// format.
type printer struct {
	format string
	out    io.Writer
}

func newPrinter(opts *RootOptions, out io.Writer) *printer {
	return &printer{format: opts.Format, out: out}
}

func (p *printer) text() bool { return p.format != "json" }

// TestComplete streams one finished test target.
func (p *printer) TestComplete(run runtime.TestRun, completed, total int) {
	if !p.text() {
		return
	}
	fmt.Fprintf(p.out, "%s %s %s %s\n",
		styleDim.Render(fmt.Sprintf("[%d/%d]", completed, total)),
		resultStyle(run.Result).Render(resultLabel(run.Result)),
		run.TargetName,
		styleDim.Render(run.Duration.Round(time.Millisecond).String()),
	)
}

// SelectionSummary announces what a sequence is about to run.
func (p *printer) SelectionSummary(suite string, selected runtime.TestRunSelection, discarded, drafted int) {
	if !p.text() {
		return
	}
	fmt.Fprintf(p.out, "%s suite=%s selected=%d excluded=%d discarded=%d drafted=%d\n",
		styleHeader.Render("sequence start"),
		suite, len(selected.Included), len(selected.Excluded), discarded, drafted)
}

// Report renders the final report: styled phase lines for text, the
// raw report for json.
func (p *printer) Report(report any, phases map[string]runtime.TestRunReport, order []string) error {
	if !p.text() {
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	var b strings.Builder
	for _, name := range order {
		run, ok := phases[name]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			styleHeader.Render(name+":"),
			sequenceResultStyle(run.Result).Render(string(run.Result)),
			styleDim.Render(fmt.Sprintf("%d run, %d passed, %d failed, %d timed out in %s",
				len(run.Runs), run.NumPassing, run.NumFailing, run.NumTimedOut,
				run.Duration.Round(time.Millisecond)))))
	}
	_, err := io.WriteString(p.out, b.String())
	return err
}

func resultLabel(r testengine.TestResult) string {
	switch r {
	case testengine.TestResultPassed:
		return "PASS"
	case testengine.TestResultFailed:
		return "FAIL"
	case testengine.TestResultTimeout:
		return "TIME"
	case testengine.TestResultNotRun:
		return "SKIP"
	default:
		return "ERR "
	}
}

func resultStyle(r testengine.TestResult) lipgloss.Style {
	switch r {
	case testengine.TestResultPassed:
		return stylePass
	case testengine.TestResultFailed, testengine.TestResultError:
		return styleFail
	default:
		return styleWarn
	}
}

func sequenceResultStyle(r testengine.SequenceResult) lipgloss.Style {
	switch r {
	case testengine.SequenceResultSuccess:
		return stylePass
	case testengine.SequenceResultTestFailures, testengine.SequenceResultFailure:
		return styleFail
	default:
		return styleWarn
	}
}
