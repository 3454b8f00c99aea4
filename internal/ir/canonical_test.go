package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalScalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", IRString("p_0"), `"p_0"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(10), "10"},
		{"negative", IRInt(-3), "-3"},
		{"min int64", IRInt(-9223372036854775808), "-9223372036854775808"},
		{"true", IRBool(true), "true"},
		{"false", IRBool(false), "false"},
		{"IRNull", IRNull{}, "null"},
		{"nil", nil, "null"},
		{"go string", "uni_a", `"uni_a"`},
		{"go int", 7, "7"},
		{"go bool", false, "false"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonicalKeyOrderIgnoresInsertion(t *testing.T) {
	a := IRObject{}
	a["owner"] = IRNull{}
	a["ID"] = IRString("r_1")
	a["isReward"] = IRBool(true)

	b := IRObject{}
	b["isReward"] = IRBool(true)
	b["ID"] = IRString("r_1")
	b["owner"] = IRNull{}

	gotA, err := MarshalCanonical(a)
	require.NoError(t, err)
	gotB, err := MarshalCanonical(b)
	require.NoError(t, err)

	assert.Equal(t, `{"ID":"r_1","isReward":true,"owner":null}`, string(gotA))
	assert.Equal(t, gotA, gotB)
}

func TestMarshalCanonicalNested(t *testing.T) {
	obj := IRObject{
		"z": IRObject{"b": IRInt(1), "a": IRNull{}},
		"a": IRArray{IRString("x"), IRNull{}, IRBool(true)},
	}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",null,true],"z":{"a":null,"b":1}}`, string(got))
}

func TestMarshalCanonicalUTF16KeyOrder(t *testing.T) {
	// U+FB01 sorts before U+1F600 in UTF-8 but after it in UTF-16 (0xFB01 > 0xD83D).
	obj := IRObject{
		"\uFB01":     IRInt(1),
		"\U0001F600": IRInt(2),
	}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uFB01\":1}", string(got))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical(IRString("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(got))
}

func TestMarshalCanonicalRejectsFloats(t *testing.T) {
	for _, in := range []any{float64(1.5), float32(2.5), map[string]any{"x": 0.25}} {
		_, err := MarshalCanonical(in)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "float")
	}
}

func TestMarshalCanonicalRejectsUnsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestMarshalCanonicalNFC(t *testing.T) {
	composed, err := MarshalCanonical(IRObject{"caf\u00E9": IRString("caf\u00E9")})
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(IRObject{"cafe\u0301": IRString("cafe\u0301")})
	require.NoError(t, err)

	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalEscapes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\nb", `"a\nb"`},
		{"a\tb", `"a\tb"`},
		{`a"b`, `"a\"b"`},
		{`a\b`, `"a\\b"`},
		{"line\u2028sep", "\"line\u2028sep\""},
		{"para\u2029sep", "\"para\u2029sep\""},
		{`literal \u2028`, `"literal \\u2028"`},
		{"literal \\u2029 and real \u2029", "\"literal \\\\u2029 and real \u2029\""},
	}

	for _, tt := range tests {
		got, err := MarshalCanonical(IRString(tt.in))
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(got), "input %q", tt.in)
	}
}

func TestMarshalCanonicalGoCollections(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"b": []any{1, "two", nil}, "a": []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x"],"b":[1,"two",null]}`, string(got))
}

func TestMarshalCanonicalIdempotent(t *testing.T) {
	values := []IRValue{
		IRString("hello"),
		IRNull{},
		IRArray{IRInt(1), IRNull{}, IRBool(false)},
		NewReward("r_3", "uni_a").ToIR(),
		NewPurchase("p_0", "stud_a", "out_b", "2024-01-01").ToIR(),
	}

	for _, v := range values {
		first, err := MarshalCanonical(v)
		require.NoError(t, err)

		decoded, err := UnmarshalIRValue(first)
		require.NoError(t, err)

		second, err := MarshalCanonical(decoded)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func FuzzMarshalCanonicalIdempotent(f *testing.F) {
	f.Add(`{"ID":"p_0","date":null}`)
	f.Add(`[1,2,3]`)
	f.Add(`"hello"`)
	f.Add(`null`)
	f.Add(`{"nested":{"deep":[true,false]}}`)

	f.Fuzz(func(t *testing.T, doc string) {
		val, err := UnmarshalIRValue([]byte(doc))
		if err != nil {
			t.Skip()
		}
		first, err := MarshalCanonical(val)
		if err != nil {
			t.Skip()
		}

		val2, err := UnmarshalIRValue(first)
		require.NoError(t, err)
		second, err := MarshalCanonical(val2)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}
