package auditdiff

import "testing"

func TestFilter(t *testing.T) {
	log := `{"code":"a","severity":"Error","metadata":{"category":"ffi.bridge","bridge":{"platform":"windows-msvc"},"pass_rate":1.0}}
{"code":"b","severity":"Warning","metadata":{"category":"ffi.bridge","bridge.platform":"linux","pass_rate":0.5}}
{"code":"c","severity":"Error","metadata":{"category":"iterator","tags":["x","y"]}}`
	all := entries(t, log)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"a", "b", "c"}},
		{`metadata.bridge.platform == "windows-msvc" and severity == "Error"`, []string{"a"}},
		{`metadata.bridge.platform == "linux"`, []string{"b"}},
		{`category == "ffi.bridge" and pass_rate >= 1.0`, []string{"a"}},
		{`pass_rate < 1`, []string{"b"}},
		{`severity != "Error"`, []string{"b"}},
		{`code ~= b or category == "iterator"`, []string{"b", "c"}},
		{`code in ["a", 'c']`, []string{"a", "c"}},
		{`metadata.tags == ["x", "y"]`, []string{"c"}},
		{`severity > 1`, nil},
	}
	for _, tt := range tests {
		got, err := Filter(all, tt.query)
		if err != nil {
			t.Fatalf("Filter(%q): %v", tt.query, err)
		}
		var codes []string
		for _, e := range got {
			codes = append(codes, e.CodeString())
		}
		if len(codes) != len(tt.want) {
			t.Fatalf("Filter(%q) = %v, want %v", tt.query, codes, tt.want)
		}
		for i := range codes {
			if codes[i] != tt.want[i] {
				t.Fatalf("Filter(%q) = %v, want %v", tt.query, codes, tt.want)
			}
		}
	}
}

func TestParseQueryErrors(t *testing.T) {
	if _, err := ParseQuery("code"); err == nil {
		t.Fatalf("ParseQuery accepted a bare field")
	}
	q, err := ParseQuery("   ")
	if err != nil || !q.Empty() {
		t.Fatalf("blank query = %+v, %v", q, err)
	}
}

func TestParseValue(t *testing.T) {
	if v, ok := parseValue("3").(float64); !ok || v != 3 {
		t.Fatalf("parseValue(3) = %v", v)
	}
	if v, ok := parseValue("TRUE").(bool); !ok || !v {
		t.Fatalf("parseValue(TRUE) = %v", v)
	}
	if v, ok := parseValue("bare").(string); !ok || v != "bare" {
		t.Fatalf("parseValue(bare) = %v", v)
	}
	if v, ok := parseValue("[]").([]string); !ok || len(v) != 0 {
		t.Fatalf("parseValue([]) = %v", v)
	}
}
