package driver

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
)

func millis(d time.Duration) string {
	return fmt.Sprintf("%.2f ms", float64(d)/float64(time.Millisecond))
}

// Render writes the run summary and per-queue state as tables.
func (r *Result) Render(w io.Writer) error {
	mode := "shutdown"
	if r.Hard {
		mode = "shutdownNow"
	}
	bold.Fprintf(w, "Run %s (%s)\n", r.RunID, mode)

	summary := tablewriter.NewWriter(w)
	summary.Header("Metric", "Value")
	rows := [][]string{
		{"Tasks", strconv.Itoa(r.Tasks)},
		{"Accepted", strconv.FormatInt(r.Accepted, 10)},
		{"Rejected", strconv.FormatInt(r.Rejected, 10)},
		{"Executed", strconv.FormatInt(r.Executed, 10)},
		{"Failed", strconv.FormatInt(r.Pool.Failed, 10)},
		{"Discarded", strconv.FormatInt(r.Pool.Discarded, 10)},
		{"Submit time", millis(r.SubmitTime)},
		{"Total time", millis(r.TotalTime)},
		{"Average time", millis(r.AverageTime)},
	}
	reasons := make([]string, 0, len(r.RejectedBy))
	for reason := range r.RejectedBy {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		rows = append(rows, []string{"Rejected: " + reason, strconv.FormatInt(r.RejectedBy[reason], 10)})
	}
	for _, row := range rows {
		if err := summary.Append(row[0], row[1]); err != nil {
			return err
		}
	}
	if err := summary.Render(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	bold.Fprintf(w, "Workers %d/%d live, state %s\n", r.Pool.LiveWorkers, r.Pool.Workers, r.Pool.State)

	queues := tablewriter.NewWriter(w)
	queues.Header("Queue", "Pending")
	for i, depth := range r.Pool.QueueDepths {
		if err := queues.Append(strconv.Itoa(i), strconv.Itoa(depth)); err != nil {
			return err
		}
	}
	if err := queues.Render(); err != nil {
		return err
	}

	if r.Rejected == 0 {
		green.Fprintln(w, "No submissions were rejected")
	} else {
		yellow.Fprintf(w, "%d of %d submissions were rejected\n", r.Rejected, r.Tasks)
	}
	return nil
}
