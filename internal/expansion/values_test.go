package expansion

import (
	"bytes"
	"math/big"
	"testing"

	"mica/internal/diag"
	"mica/internal/shared"
	"mica/internal/source"
)

func valueEnv() (*shared.CompilationEnv, source.Span) {
	return shared.NewCompilationEnv(shared.Flags{}, nil, nil), source.Span{File: 1, Start: 0, End: 4}
}

func TestParseNumberWidths(t *testing.T) {
	env, loc := valueEnv()
	cases := []struct {
		text string
		kind ValueKind
	}{
		{"0u8", ValueU8},
		{"255u8", ValueU8},
		{"65535u16", ValueU16},
		{"4294967295u32", ValueU32},
		{"18446744073709551615u64", ValueU64},
		{"340282366920938463463374607431768211455u128", ValueU128},
		{"1u256", ValueU256},
		{"42", ValueInferredNum},
	}
	for _, c := range cases {
		v, ok := parseNumber(env, loc, c.text)
		if !ok {
			t.Errorf("parseNumber(%q) failed: %+v", c.text, env.Diags().Items())
			continue
		}
		if v.Kind != c.kind {
			t.Errorf("parseNumber(%q) kind = %v, want %v", c.text, v.Kind, c.kind)
		}
	}
	if !env.Diags().IsEmpty() {
		t.Errorf("unexpected diagnostics: %+v", env.Diags().Items())
	}
}

func TestParseNumberOverflow(t *testing.T) {
	for _, text := range []string{
		"256u8",
		"65536u16",
		"4294967296u32",
		"18446744073709551616u64",
		"340282366920938463463374607431768211456u128",
	} {
		env, loc := valueEnv()
		if _, ok := parseNumber(env, loc, text); ok {
			t.Errorf("parseNumber(%q) accepted out-of-range value", text)
			continue
		}
		if countCode(env.Diags(), diag.SyntaxInvalidNumber) != 1 {
			t.Errorf("parseNumber(%q): expected one overflow diagnostic, got %+v", text, env.Diags().Items())
		}
	}
}

func TestParseNumberOverflowMessageNamesWidth(t *testing.T) {
	env, loc := valueEnv()
	parseNumber(env, loc, "256u8")
	msg := findMessage(env.Diags(), diag.SyntaxInvalidNumber)
	want := "invalid number literal. The value is too large to fit into 'u8', whose maximum value is 255"
	if msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
}

func TestParseNumberHexAndSeparators(t *testing.T) {
	env, loc := valueEnv()
	v, ok := parseNumber(env, loc, "0xFF_u8")
	if !ok || v.Kind != ValueU8 || v.U8 != 255 {
		t.Errorf("0xFF_u8: ok=%v kind=%v val=%d", ok, v.Kind, v.U8)
	}
	v, ok = parseNumber(env, loc, "1_000_000")
	if !ok || v.Kind != ValueInferredNum || v.Big.Cmp(big.NewInt(1000000)) != 0 {
		t.Errorf("1_000_000: ok=%v kind=%v val=%v", ok, v.Kind, v.Big)
	}
	v, ok = parseNumber(env, loc, "0x10")
	if !ok || v.Big.Cmp(big.NewInt(16)) != 0 {
		t.Errorf("0x10: ok=%v val=%v", ok, v.Big)
	}
	if !env.Diags().IsEmpty() {
		t.Errorf("unexpected diagnostics: %+v", env.Diags().Items())
	}
}

func TestParseNumberInferredCap(t *testing.T) {
	over := new(big.Int).Lsh(big.NewInt(1), 256) // u256 max + 1
	env, loc := valueEnv()
	if _, ok := parseNumber(env, loc, over.String()); ok {
		t.Fatalf("value beyond u256 accepted as inferred literal")
	}
	if countCode(env.Diags(), diag.SyntaxInvalidNumber) != 1 {
		t.Fatalf("expected one diagnostic, got %+v", env.Diags().Items())
	}
}

func TestParseNumberGarbage(t *testing.T) {
	env, loc := valueEnv()
	if _, ok := parseNumber(env, loc, "12ab"); ok {
		t.Fatalf("malformed literal accepted")
	}
	if countCode(env.Diags(), diag.SyntaxInvalidNumber) != 1 {
		t.Fatalf("expected one diagnostic, got %+v", env.Diags().Items())
	}
}

func TestDecodeHexString(t *testing.T) {
	env, loc := valueEnv()
	b, ok := decodeHexString(env, loc, "deadBEEF")
	if !ok || !bytes.Equal(b, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("decodeHexString: ok=%v b=%x", ok, b)
	}

	env, loc = valueEnv()
	if _, ok := decodeHexString(env, loc, "abc"); ok {
		t.Fatalf("odd-length hex string accepted")
	}
	if countCode(env.Diags(), diag.SyntaxInvalidByteString) != 1 {
		t.Fatalf("expected odd-length diagnostic, got %+v", env.Diags().Items())
	}

	env, loc = valueEnv()
	if _, ok := decodeHexString(env, loc, "zz"); ok {
		t.Fatalf("non-hex character accepted")
	}
}

func TestDecodeByteStringEscapes(t *testing.T) {
	env, loc := valueEnv()
	b, ok := decodeByteString(env, loc, `a\n\t\r\0\\\"\x41z`)
	if !ok {
		t.Fatalf("decode failed: %+v", env.Diags().Items())
	}
	want := []byte{'a', '\n', '\t', '\r', 0, '\\', '"', 'A', 'z'}
	if !bytes.Equal(b, want) {
		t.Fatalf("decoded %q, want %q", b, want)
	}
}

func TestDecodeByteStringBadEscapes(t *testing.T) {
	for _, body := range []string{`\q`, `\x4`, `\xgg`, `trailing\`} {
		env, loc := valueEnv()
		if _, ok := decodeByteString(env, loc, body); ok {
			t.Errorf("decodeByteString(%q) accepted invalid escape", body)
			continue
		}
		if countCode(env.Diags(), diag.SyntaxInvalidByteString) != 1 {
			t.Errorf("decodeByteString(%q): expected one diagnostic, got %+v", body, env.Diags().Items())
		}
	}
}
