package expansion

import (
	"fmt"
	"math/big"
	"strings"

	"fortio.org/safecast"

	"mica/internal/diag"
	"mica/internal/shared"
	"mica/internal/source"
)

var (
	maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	maxU256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// numberSuffixes in detection order; longer suffixes first so "u128" is not
// read as digits plus "u8".
var numberSuffixes = []struct {
	text string
	kind ValueKind
}{
	{"u128", ValueU128},
	{"u256", ValueU256},
	{"u16", ValueU16},
	{"u32", ValueU32},
	{"u64", ValueU64},
	{"u8", ValueU8},
}

// parseNumber turns a verbatim numeric literal, optional width suffix and
// underscore separators included, into a width-checked value. An unsuffixed
// literal stays inference-typed but must fit the widest supported type.
func parseNumber(env *shared.CompilationEnv, loc source.Span, text string) (Value, bool) {
	kind := ValueInferredNum
	digits := text
	for _, s := range numberSuffixes {
		if strings.HasSuffix(digits, s.text) {
			kind = s.kind
			digits = strings.TrimSuffix(digits, s.text)
			break
		}
	}
	digits = strings.ReplaceAll(digits, "_", "")
	base := 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		base = 16
		digits = digits[2:]
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok || n.Sign() < 0 {
		env.AddDiag(diag.New(diag.SyntaxInvalidNumber, loc,
			fmt.Sprintf("invalid number literal '%s'", text)))
		return Value{}, false
	}
	overflow := func(typeName string, max string) (Value, bool) {
		env.AddDiag(diag.New(diag.SyntaxInvalidNumber, loc,
			fmt.Sprintf("invalid number literal. The value is too large to fit into %s, whose maximum value is %s", typeName, max)))
		return Value{}, false
	}
	v := Value{Loc: loc, Kind: kind}
	switch kind {
	case ValueU8, ValueU16, ValueU32, ValueU64:
		if !n.IsUint64() {
			// 64 bits already exceeded; report against the declared width.
			return overflowFor(env, loc, kind)
		}
		u := n.Uint64()
		switch kind {
		case ValueU8:
			b, err := safecast.Conv[uint8](u)
			if err != nil {
				return overflowFor(env, loc, kind)
			}
			v.U8 = b
		case ValueU16:
			b, err := safecast.Conv[uint16](u)
			if err != nil {
				return overflowFor(env, loc, kind)
			}
			v.U16 = b
		case ValueU32:
			b, err := safecast.Conv[uint32](u)
			if err != nil {
				return overflowFor(env, loc, kind)
			}
			v.U32 = b
		case ValueU64:
			v.U64 = u
		}
	case ValueU128:
		if n.Cmp(maxU128) > 0 {
			return overflow("'u128'", maxU128.String())
		}
		v.Big = n
	case ValueU256:
		if n.Cmp(maxU256) > 0 {
			return overflow("'u256'", maxU256.String())
		}
		v.Big = n
	case ValueInferredNum:
		if n.Cmp(maxU256) > 0 {
			return overflow("the largest number type 'u256'", maxU256.String())
		}
		v.Big = n
	}
	return v, true
}

func overflowFor(env *shared.CompilationEnv, loc source.Span, kind ValueKind) (Value, bool) {
	var name, max string
	switch kind {
	case ValueU8:
		name, max = "'u8'", "255"
	case ValueU16:
		name, max = "'u16'", "65535"
	case ValueU32:
		name, max = "'u32'", "4294967295"
	default:
		name, max = "'u64'", "18446744073709551615"
	}
	env.AddDiag(diag.New(diag.SyntaxInvalidNumber, loc,
		fmt.Sprintf("invalid number literal. The value is too large to fit into %s, whose maximum value is %s", name, max)))
	return Value{}, false
}

// decodeHexString decodes the body of x"..." into bytes.
func decodeHexString(env *shared.CompilationEnv, loc source.Span, body string) ([]byte, bool) {
	if len(body)%2 != 0 {
		env.AddDiag(diag.New(diag.SyntaxInvalidByteString, loc,
			"odd number of characters in hex string. Expected 2 characters per byte"))
		return nil, false
	}
	out := make([]byte, 0, len(body)/2)
	for i := 0; i < len(body); i += 2 {
		hi, ok1 := hexDigit(body[i])
		lo, ok2 := hexDigit(body[i+1])
		if !ok1 || !ok2 {
			env.AddDiag(diag.New(diag.SyntaxInvalidByteString, loc,
				fmt.Sprintf("invalid hexadecimal character: '%c'", pickBad(body[i], body[i+1], ok1))))
			return nil, false
		}
		out = append(out, hi<<4|lo)
	}
	return out, true
}

func pickBad(a, b byte, aOK bool) byte {
	if !aOK {
		return a
	}
	return b
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// decodeByteString processes escape sequences in the body of b"...".
func decodeByteString(env *shared.CompilationEnv, loc source.Span, body string) ([]byte, bool) {
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(body) {
			env.AddDiag(diag.New(diag.SyntaxInvalidByteString, loc,
				"invalid escape: string ends with a lone '\\'"))
			return nil, false
		}
		switch body[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case '\\':
			out = append(out, '\\')
		case '0':
			out = append(out, 0)
		case '"':
			out = append(out, '"')
		case 'x':
			if i+2 >= len(body) {
				env.AddDiag(diag.New(diag.SyntaxInvalidByteString, loc,
					"invalid escape: '\\x' must be followed by 2 hex digits"))
				return nil, false
			}
			hi, ok1 := hexDigit(body[i+1])
			lo, ok2 := hexDigit(body[i+2])
			if !ok1 || !ok2 {
				env.AddDiag(diag.New(diag.SyntaxInvalidByteString, loc,
					"invalid escape: '\\x' must be followed by 2 hex digits"))
				return nil, false
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			env.AddDiag(diag.New(diag.SyntaxInvalidByteString, loc,
				fmt.Sprintf("invalid escape sequence '\\%c'", body[i])))
			return nil, false
		}
	}
	return out, true
}
