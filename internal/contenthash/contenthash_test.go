package contenthash

import "testing"

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("hello world"))
	b := Sum([]byte("hello world"))
	if a != b {
		t.Errorf("Sum not deterministic: %d != %d", a, b)
	}
	if a == 0 {
		t.Error("Sum of non-empty payload should not be zero")
	}
}

func TestSumStringMatchesSum(t *testing.T) {
	if Sum([]byte("wiki body")) != SumString("wiki body") {
		t.Error("SumString should equal Sum of the same bytes")
	}
}

func TestSumDetectsChange(t *testing.T) {
	if Sum([]byte("revision one")) == Sum([]byte("revision two")) {
		t.Error("different payloads produced the same checksum")
	}
}

func TestSumEmpty(t *testing.T) {
	if Sum(nil) != Sum([]byte{}) {
		t.Error("nil and empty payloads should hash identically")
	}
}
