package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"rentcrunch/internal/app"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printAnalysisTable prints ranked properties as a formatted table.
func printAnalysisTable(out io.Writer, items []app.Analysis) error {
	if len(items) == 0 {
		fmt.Fprintln(out, "No properties found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ADDRESS\tPRICE\tRENT\tCASH FLOW\tCOC\tSCORE"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "-------\t-----\t----\t---------\t---\t-----"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, a := range items {
		p := a.Property
		rent := "-"
		if p.RentEstimate > 0 {
			rent = "$" + formatMoney(p.RentEstimate)
		}
		mark := ""
		if a.Override != nil {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s%s\t$%s\t%s\t%s\t%.1f%%\t%d\n",
			truncate(p.Address, 40), mark,
			formatMoney(p.Price),
			rent,
			formatSigned(a.Cashflow.MonthlyCashflow),
			a.Cashflow.CashOnCashReturn,
			a.Score,
		); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	return nil
}

func printFooter(w io.Writer, out searchOutput) {
	note := ""
	if out.Degraded {
		note = " (incomplete: some listings could not be fetched)"
	}
	fmt.Fprintf(w, "\nShowing %d of %d properties%s\n", len(out.Items), out.Total, note)
}

// formatMoney rounds to whole dollars and adds thousands separators.
func formatMoney(v float64) string {
	n := int64(math.Round(math.Abs(v)))
	s := fmt.Sprintf("%d", n)
	if len(s) > 3 {
		var parts []string
		for len(s) > 3 {
			parts = append([]string{s[len(s)-3:]}, parts...)
			s = s[:len(s)-3]
		}
		s = strings.Join(append([]string{s}, parts...), ",")
	}
	if v < 0 && n != 0 {
		return "-" + s
	}
	return s
}

func formatSigned(v float64) string {
	if math.Round(v) < 0 {
		return "-$" + formatMoney(-v)
	}
	return "$" + formatMoney(v)
}

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
