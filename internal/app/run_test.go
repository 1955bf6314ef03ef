package app

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// DBに接続できない環境で各コマンドがエラーで終了することを検証する。
// 接続先はポート1固定のため、ローカルにDBがあっても到達しない。
func TestRun_DatabaseCommands_FailWithoutDatabase(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "serve", args: []string{"serve"}},
		{name: "worker", args: []string{"worker"}},
		{name: "default", args: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MENTWORK_DATABASE_URL", unreachableDatabaseURL)

			var buf bytes.Buffer
			err := Run(&buf, tt.args)
			if err == nil {
				t.Fatal("expected error when the database is unreachable")
			}
			if !strings.Contains(err.Error(), "database") {
				t.Errorf("error = %v, want a database error", err)
			}
		})
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("MENTWORK_DATABASE_URL", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRun_Healthcheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "healthy", status: http.StatusOK},
		{name: "unhealthy", status: http.StatusServiceUnavailable, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					t.Errorf("path = %q, want /health", r.URL.Path)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
			if err != nil {
				t.Fatalf("failed to parse listener address: %v", err)
			}
			t.Setenv("MENTWORK_SERVER_PORT", port)

			err = Run(&bytes.Buffer{}, []string{"healthcheck"})
			if (err != nil) != tt.wantErr {
				t.Errorf("Run(healthcheck) err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
