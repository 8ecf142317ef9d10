package native

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// PrintStream represents a java.io.PrintStream.
type PrintStream struct {
	Writer io.Writer
}

// Println prints a value followed by a newline.
func (ps *PrintStream) Println(args ...any) {
	if len(args) == 0 {
		fmt.Fprintln(ps.Writer)
		return
	}
	fmt.Fprintln(ps.Writer, Format(args[0]))
}

// Print prints a value without a newline.
func (ps *PrintStream) Print(v any) {
	fmt.Fprint(ps.Writer, Format(v))
}

// Format renders a value the way String.valueOf would.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case *NativeCharacter:
		return string(rune(x.Value))
	case Boxed:
		return Format(x.Unbox())
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// formatFloat renders v like Float.toString and Double.toString: plain
// notation with at least one fractional digit inside [1e-3, 1e7), computerized
// scientific notation outside it.
func formatFloat(v float64, bits int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	if abs := math.Abs(v); abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(v, 'f', -1, bits)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	mant, exp, _ := strings.Cut(strconv.FormatFloat(v, 'E', -1, bits), "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	n, _ := strconv.Atoi(exp)
	return mant + "E" + strconv.Itoa(n)
}
