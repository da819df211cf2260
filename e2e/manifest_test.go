package e2e

import (
	"net/http"
	"testing"
)

func TestValidate_Valid(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/manifests/validate", lessonManifest)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["valid"] != true {
		t.Errorf("expected valid manifest, got %v", body)
	}
	if _, ok := body["warnings"].([]interface{}); !ok {
		t.Error("expected 'warnings' list in response")
	}
}

func TestValidate_InvalidReturnsResult(t *testing.T) {
	ta := setupApp(t)

	body := `{
		"video_id": "v1",
		"templates": [{"id": "a", "type": "Text", "content": "x"}, {"id": "a", "type": "CircleSet", "content": "y"}],
		"shots": [{"voiceover": "", "actions": []}]
	}`
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/manifests/validate", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["valid"] != false {
		t.Fatalf("expected invalid manifest, got %v", result)
	}
	errs, _ := result["errors"].([]interface{})
	if len(errs) < 3 {
		t.Errorf("expected duplicate id, content and silent shot errors, got %v", errs)
	}
}

func TestValidate_Partial(t *testing.T) {
	ta := setupApp(t)

	draft := `{"shots": [{"voiceover": "First draft line"}]}`

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/manifests/validate", draft)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if parseJSON(t, resp)["valid"] != false {
		t.Error("expected draft to fail full validation")
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/manifests/validate?partial=true", draft)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if parseJSON(t, resp)["valid"] != true {
		t.Error("expected draft to pass partial validation")
	}
}

func TestValidate_EmptyBody(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/manifests/validate", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAnalyze_WithNarration(t *testing.T) {
	ta := setupApp(t)

	body := `{
		"manifest": ` + lessonManifest + `,
		"narration": {"shots": [
			{"shot_index": 0, "audio_duration": 3},
			{"shot_index": 2, "audio_duration": 4}
		]}
	}`
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/manifests/analyze", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	record := parseJSON(t, resp)
	if record["total_duration"] != 8.0 {
		t.Errorf("expected total_duration 8, got %v", record["total_duration"])
	}
	shots, _ := record["shots"].([]interface{})
	if len(shots) != 3 {
		t.Errorf("expected 3 shot timings, got %d", len(shots))
	}
	splices, _ := record["splice_points"].([]interface{})
	if len(splices) != 2 {
		t.Errorf("expected 2 splice points, got %d", len(splices))
	}
}

func TestAnalyze_EstimatesWithoutNarration(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/manifests/analyze", `{"manifest": `+lessonManifest+`}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	record := parseJSON(t, resp)
	if d, _ := record["total_duration"].(float64); d <= 0 {
		t.Errorf("expected positive total_duration, got %v", record["total_duration"])
	}
}

func TestAnalyze_InvalidManifest(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/manifests/analyze", `{"manifest": {"video_id": "", "shots": []}}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnprocessableEntity)
	if code := errorCode(t, resp); code != "MANIFEST_INVALID" {
		t.Errorf("expected MANIFEST_INVALID, got %s", code)
	}
}

func TestAnalyze_InvalidNarration(t *testing.T) {
	ta := setupApp(t)

	body := `{"manifest": ` + lessonManifest + `, "narration": {"shots": [{"shot_index": 0, "audio_duration": 3}]}}`
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/manifests/analyze", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, resp); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
}

func TestAnalyze_MissingManifest(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/manifests/analyze", `{}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}
