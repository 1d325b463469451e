package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/ncore/config"
	"github.com/ncobase/ncore/logging/logger"

	"github.com/sohan284/social-media-go/internal/data"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	cleanup, err := logger.New(&config.Logger{Level: 4, Format: "text", Output: "stdout"})
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	t.Cleanup(cleanup)
	return logger.StdLogger()
}

func TestHealthReportsProbes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := testLogger(t)

	d, err := data.New("sqlite3", ":memory:", log)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	s := &Server{data: d, logger: log}
	r := gin.New()
	r.GET("/health", s.handleHealth)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Data["database"] != "up" {
		t.Errorf("database probe = %q, want up", body.Data["database"])
	}
	// No broker is configured, so its probe must fail.
	if body.Data["broker"] != "down" {
		t.Errorf("broker probe = %q, want down", body.Data["broker"])
	}
}
