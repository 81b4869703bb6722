//go:build rp2040 || rp2350

package fmtx

import (
	"io"

	"sensornode-go/x/strconvx"
)

func Sprintf(format string, a ...any) string {
	var p printer
	p.format(format, a)
	return string(p.buf)
}

func Fprintf(w io.Writer, format string, a ...any) (int, error) {
	var p printer
	p.format(format, a)
	return w.Write(p.buf)
}

func Errorf(format string, a ...any) error {
	return &fmtError{Sprintf(format, a...)}
}

type fmtError struct{ s string }

func (e *fmtError) Error() string { return e.s }

type printer struct {
	buf []byte

	// current directive
	width int
	zero  bool
	left  bool
}

func (p *printer) format(format string, args []any) {
	ai := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			p.buf = append(p.buf, c)
			continue
		}
		i++
		p.width, p.zero, p.left = 0, false, false
	flags:
		for ; i < len(format); i++ {
			switch format[i] {
			case '0':
				p.zero = true
			case '-':
				p.left = true
			default:
				break flags
			}
		}
		for ; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			p.width = p.width*10 + int(format[i]-'0')
		}
		if i >= len(format) {
			p.buf = append(p.buf, "%!(NOVERB)"...)
			return
		}
		verb := format[i]
		if verb == '%' {
			p.buf = append(p.buf, '%')
			continue
		}
		if ai >= len(args) {
			p.buf = append(p.buf, "%!"+string(verb)+"(MISSING)"...)
			continue
		}
		p.pad(p.value(args[ai], verb))
		ai++
	}
}

func (p *printer) pad(s string) {
	n := p.width - len(s)
	if n <= 0 {
		p.buf = append(p.buf, s...)
		return
	}
	if p.left {
		p.buf = append(p.buf, s...)
	}
	fill := byte(' ')
	if p.zero && !p.left {
		fill = '0'
		if len(s) > 0 && s[0] == '-' {
			p.buf = append(p.buf, '-')
			s = s[1:]
		}
	}
	for ; n > 0; n-- {
		p.buf = append(p.buf, fill)
	}
	if !p.left {
		p.buf = append(p.buf, s...)
	}
}

type stringer interface{ String() string }

func (p *printer) value(v any, verb byte) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case error:
		return text(x.Error(), verb)
	case stringer:
		return text(x.String(), verb)
	case string:
		return text(x, verb)
	case []byte:
		if verb == 'x' || verb == 'X' {
			return hexBytes(x, verb == 'X')
		}
		return text(string(x), verb)
	case bool:
		if x {
			return "true"
		}
		return "false"
	}
	if u, ok := unsigned(v); ok {
		return number(u, verb)
	}
	if i, ok := signed(v); ok {
		if i < 0 {
			return "-" + number(uint64(-i), verb)
		}
		return number(uint64(i), verb)
	}
	return "%!" + string(verb) + "(?)"
}

func text(s string, verb byte) string {
	if verb == 'q' {
		return quote(s)
	}
	return s
}

func number(u uint64, verb byte) string {
	switch verb {
	case 'x':
		return strconvx.FormatUint(u, 16)
	case 'X':
		return upper(strconvx.FormatUint(u, 16))
	case 'c':
		return string(rune(u))
	}
	return strconvx.FormatUint(u, 10)
}

func unsigned(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	case uintptr:
		return uint64(x), true
	}
	return 0, false
}

func signed(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

const hexDigits = "0123456789abcdef"

func hexBytes(b []byte, up bool) string {
	out := make([]byte, 0, 2*len(b))
	for _, c := range b {
		out = append(out, hexDigits[c>>4], hexDigits[c&0x0F])
	}
	if up {
		return upper(string(out))
	}
	return string(out)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

func quote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			out = append(out, '\\', c)
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		case '\t':
			out = append(out, '\\', 't')
		default:
			out = append(out, c)
		}
	}
	return string(append(out, '"'))
}
