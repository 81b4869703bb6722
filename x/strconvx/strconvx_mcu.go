//go:build rp2040 || rp2350

package strconvx

// Decimal and hex conversions for the command and logging paths, without
// pulling strconv's float tables into the image. Bases 2..36.

const digits = "0123456789abcdefghijklmnopqrstuvwxyz"

type syntaxError struct{ s string }

func (e *syntaxError) Error() string { return "strconvx: invalid number " + quote(e.s) }

type rangeError struct{ s string }

func (e *rangeError) Error() string { return "strconvx: out of range " + quote(e.s) }

func quote(s string) string { return "\"" + s + "\"" }

func Itoa(i int) string {
	if i < 0 {
		return "-" + FormatUint(uint64(-i), 10)
	}
	return FormatUint(uint64(i), 10)
}

func FormatUint(u uint64, base int) string {
	if base < 2 || base > len(digits) {
		base = 10
	}
	var buf [64]byte
	i := len(buf)
	b := uint64(base)
	for {
		i--
		buf[i] = digits[u%b]
		u /= b
		if u == 0 {
			break
		}
	}
	return string(buf[i:])
}

// ParseUint accepts an optional 0x/0b/0o prefix when base is 0. Values
// wider than bitSize are a range error, as in strconv.
func ParseUint(s string, base, bitSize int) (uint64, error) {
	in := s
	if base == 0 {
		base = 10
		if len(s) > 2 && s[0] == '0' {
			switch s[1] {
			case 'x', 'X':
				base, s = 16, s[2:]
			case 'b', 'B':
				base, s = 2, s[2:]
			case 'o', 'O':
				base, s = 8, s[2:]
			}
		}
	}
	if bitSize <= 0 || bitSize > 64 {
		bitSize = 64
	}
	if base < 2 || base > len(digits) || s == "" {
		return 0, &syntaxError{in}
	}
	max := uint64(1)<<uint(bitSize) - 1 // wraps to all ones for 64
	var v uint64
	for i := 0; i < len(s); i++ {
		c := s[i] | 0x20 // fold letters to lower case
		var d uint64
		switch {
		case s[i] >= '0' && s[i] <= '9':
			d = uint64(s[i] - '0')
		case c >= 'a' && c <= 'z':
			d = uint64(c-'a') + 10
		default:
			return 0, &syntaxError{in}
		}
		if d >= uint64(base) {
			return 0, &syntaxError{in}
		}
		if v > (max-d)/uint64(base) {
			return max, &rangeError{in}
		}
		v = v*uint64(base) + d
	}
	return v, nil
}
