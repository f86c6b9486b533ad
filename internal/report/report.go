// Package report renders the per-role results of a run for humans and CI logs.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/turtacn/Tandem/pkg/protocol"
)

// Render returns the report text for res. Roles appear in wait order,
// client first. The output depends only on res.
func Render(res protocol.AggregateResult) []byte {
	var buf bytes.Buffer
	for _, o := range []protocol.Outcome{res.Client, res.Server} {
		writeOutcome(&buf, o)
	}
	return buf.Bytes()
}

// Write renders res to w.
func Write(w io.Writer, res protocol.AggregateResult) error {
	_, err := w.Write(Render(res))
	return err
}

func writeOutcome(buf *bytes.Buffer, o protocol.Outcome) {
	label := o.Label
	if label == "" {
		label = string(o.Role)
	}
	fmt.Fprintf(buf, "%s Return Code: %d\n", label, o.ExitCode)
	fmt.Fprintf(buf, "stdout:\n%s\n", Decode(o.Stdout))
	fmt.Fprintf(buf, "stderr:\n%s\n", Decode(o.Stderr))
}

// Decode interprets b as UTF-8, replacing undecodable bytes with U+FFFD.
func Decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}

// Personal.AI order the ending
