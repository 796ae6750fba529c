package hipaa

import (
	"reflect"
	"testing"
)

func TestCSVRecord(t *testing.T) {
	in := []string{"=HYPERLINK(\"http://x\")", "+1", "-2+3", "@SUM(A1)", "\tcmd", "Alice", "", "a=b"}
	want := []string{"'=HYPERLINK(\"http://x\")", "'+1", "'-2+3", "'@SUM(A1)", "'\tcmd", "Alice", "", "a=b"}
	if got := CSVRecord(in); !reflect.DeepEqual(got, want) {
		t.Errorf("CSVRecord() = %q, want %q", got, want)
	}
	if in[0] != "=HYPERLINK(\"http://x\")" {
		t.Error("input record must not be modified")
	}
}
