package rpkidetect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bgpensemble/anomaly-pipeline/internal/healthsrv"
)

func validRouteServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"validated_route": map[string]any{
				"validity": map[string]any{"state": "valid", "reason": ""},
				"vrps":     map[string]any{"matched": []any{}, "unmatched": []any{}},
			},
		})
	}))
}

func TestValidator_Validate_ParsesValidResponse(t *testing.T) {
	srv := validRouteServer(t)
	defer srv.Close()

	v := NewValidator(srv.URL, zap.NewNop())
	res, err := v.Validate(context.Background(), 13335, "1.1.1.0/24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != "valid" {
		t.Errorf("expected state=valid, got %q", res.State)
	}
}

func TestProbeStartup_SucceedsImmediatelyWhenValidatorIsUp(t *testing.T) {
	srv := validRouteServer(t)
	defer srv.Close()

	v := NewValidator(srv.URL, zap.NewNop())
	flag := healthsrv.NewProbeFlag("rpki_validator")

	if err := ProbeStartup(context.Background(), v, flag, 5*time.Second, zap.NewNop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := flag.Check(context.Background()); err != nil {
		t.Errorf("expected probe flag to report ready, got %v", err)
	}
}

func TestProbeStartup_FailsAfterBudgetWhenValidatorNeverAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	v := NewValidator(srv.URL, zap.NewNop())
	v.http.RetryMax = 0
	flag := healthsrv.NewProbeFlag("rpki_validator")

	err := ProbeStartup(context.Background(), v, flag, 1*time.Second, zap.NewNop())
	if err == nil {
		t.Fatal("expected an error once the startup budget elapses")
	}
	if checkErr := flag.Check(context.Background()); checkErr == nil {
		t.Error("expected probe flag to remain not-ready")
	}
}
