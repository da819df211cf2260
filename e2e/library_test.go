package e2e

import (
	"net/http"
	"testing"
)

func TestLibraryList(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/library", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	starters, _ := parseJSON(t, resp)["starters"].([]interface{})
	if len(starters) == 0 {
		t.Fatal("expected shipped starters")
	}
	names := map[string]bool{}
	for _, s := range starters {
		entry, _ := s.(map[string]interface{})
		name, _ := entry["name"].(string)
		names[name] = true
	}
	if !names["pythagoras"] || !names["fractions"] {
		t.Errorf("expected pythagoras and fractions, got %v", names)
	}
}

func TestLibraryGet(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/library/fractions", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	starter := parseJSON(t, resp)
	m, _ := starter["manifest"].(map[string]interface{})
	if m["video_id"] != "fractions-common-denominator" {
		t.Errorf("unexpected manifest %v", m["video_id"])
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/library/missing", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}
