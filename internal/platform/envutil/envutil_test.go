package envutil

import (
	"testing"
	"time"
)

func TestStringFallsBackOnEmpty(t *testing.T) {
	t.Setenv("TEST_STR", "  ")
	if got := String("TEST_STR", "fallback"); got != "fallback" {
		t.Fatalf("String: want=%q got=%q", "fallback", got)
	}
	t.Setenv("TEST_STR", " value ")
	if got := String("TEST_STR", "fallback"); got != "value" {
		t.Fatalf("String: want=%q got=%q", "value", got)
	}
}

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	if got := Int("TEST_INT", 7); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	t.Setenv("TEST_INT", "12")
	if got := Int("TEST_INT", 7); got != 12 {
		t.Fatalf("Int: want=12 got=%d", got)
	}
}

func TestBoolVariants(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "On"} {
		t.Setenv("TEST_BOOL", v)
		if !Bool("TEST_BOOL", false) {
			t.Fatalf("Bool(%q): want=true", v)
		}
	}
	for _, v := range []string{"0", "false", "no", "OFF"} {
		t.Setenv("TEST_BOOL", v)
		if Bool("TEST_BOOL", true) {
			t.Fatalf("Bool(%q): want=false", v)
		}
	}
	t.Setenv("TEST_BOOL", "maybe")
	if !Bool("TEST_BOOL", true) {
		t.Fatalf("Bool(garbage): want default true")
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "90s")
	if got := Duration("TEST_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("Duration: want=90s got=%v", got)
	}
	t.Setenv("TEST_DUR", "soon")
	if got := Duration("TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("Duration: want default got=%v", got)
	}
}
