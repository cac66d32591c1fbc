package config

import "testing"

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("ZB_TEST_UNSET_KEY", "")
	if got := getEnv("ZB_TEST_UNSET_KEY", "fallback"); got != "fallback" {
		t.Errorf("getEnv with empty value = %q, want fallback", got)
	}
}

func TestGetEnvOverride(t *testing.T) {
	t.Setenv("ZB_TEST_KEY", "value")
	if got := getEnv("ZB_TEST_KEY", "fallback"); got != "value" {
		t.Errorf("getEnv = %q, want value", got)
	}
}

func TestGetEnvListSplitsAndTrims(t *testing.T) {
	t.Setenv("ZB_TEST_LIST", " a, b ,c")
	got := getEnvList("ZB_TEST_LIST", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("getEnvList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("getEnvList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGetEnvBoolInvalidFallsBackToDefault(t *testing.T) {
	t.Setenv("ZB_TEST_BOOL", "not-a-bool")
	if got := getEnvBool("ZB_TEST_BOOL", true); got != true {
		t.Errorf("getEnvBool with invalid value = %v, want default true", got)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Topic == "" {
		t.Errorf("expected a default topic")
	}
	if cfg.Keepalive <= 0 {
		t.Errorf("expected a positive default keepalive")
	}
}
