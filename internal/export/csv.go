// Package export writes call history as CSV. Every field is quoted, which
// encoding/csv cannot be told to do.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dennisdiepolder/qmconsole/internal/types"
)

// TimeLayout is the format of the Time column
const TimeLayout = "2006-01-02 15:04:05"

// Header is the fixed column order
var Header = []string{"Time", "Queue", "Name", "Company", "Outcome"}

// FileName returns the download name for a call page
func FileName(page int) string {
	return fmt.Sprintf("calls-page-%d.csv", max(page, 1))
}

// WriteCalls writes a header row and one row per record
func WriteCalls(w io.Writer, records []types.CallRecord) error {
	bw := bufio.NewWriter(w)
	if err := writeRow(bw, Header); err != nil {
		return err
	}
	for _, r := range records {
		ts := ""
		if !r.Time.IsZero() {
			ts = r.Time.Format(TimeLayout)
		}
		if err := writeRow(bw, []string{ts, r.Queue, r.Name, r.Company, string(r.Outcome)}); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(f, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}
