package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/woa-api/internal/adapter/store"
	"go.ngs.io/woa-api/internal/adapter/store/csv"
	"go.ngs.io/woa-api/internal/domain"
	"go.ngs.io/woa-api/internal/usecase"
)

type staticSource []string

func (s staticSource) Files(_ context.Context, _ domain.ArchiveSelector) ([]string, error) {
	return s, nil
}

func newTestRouter(t *testing.T, src store.FileSource) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	uc := usecase.NewClimatologyUseCase(src, csv.NewGridLoader(log), nil, log)
	return SetupRouter(uc, nil, log)
}

func fixtureSource(t *testing.T) staticSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "woa23_decav_t00an01.csv")
	content := strings.Join([]string{
		"#WOA23",
		"#COMMA SEPARATED LATITUDE, LONGITUDE, AND VALUES AT DEPTHS (M):0,100",
		"-0.5,0.5,10,10",
		"-0.5,1.5,20,20",
		"0.5,0.5,30,30",
		"0.5,1.5,,",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return staticSource{path}
}

func get(t *testing.T, router *gin.Engine, url string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	router.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

const gridQuery = "v=t&t=decav&r=1deg&field=an"

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, fixtureSource(t))
	w, body := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestGetCatalog(t *testing.T) {
	router := newTestRouter(t, fixtureSource(t))
	w, body := get(t, router, "/v1/catalog")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["variables"], 8)
	assert.Len(t, body["fields"], 10)
}

func TestGetSummary(t *testing.T) {
	router := newTestRouter(t, fixtureSource(t))
	w, body := get(t, router, "/v1/grids/summary?"+gridQuery)
	require.Equal(t, http.StatusOK, w.Code, body)

	assert.Equal(t, []any{2.0, 2.0, 2.0, 1.0}, body["shape"])
	assert.InDelta(t, 0.75, body["coverage"], 1e-12)
	means := body["volume_means"].([]any)
	assert.InDelta(t, 20.0, means[0], 1e-9)
}

func TestGetProfile_MissingAsNull(t *testing.T) {
	router := newTestRouter(t, fixtureSource(t))

	w, body := get(t, router, "/v1/grids/profile?"+gridQuery+"&lat=0.5&lon=1.5")
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, []any{[]any{nil, nil}}, body["values"])

	w, body = get(t, router, "/v1/grids/profile?"+gridQuery+"&lat=-0.5&lon=0.5")
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, []any{[]any{10.0, 10.0}}, body["values"])
}

func TestGetValue(t *testing.T) {
	router := newTestRouter(t, fixtureSource(t))

	w, body := get(t, router, "/v1/grids/value?"+gridQuery+"&lat=-0.5&lon=1.0&depth_index=1")
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.InDelta(t, 15.0, body["value"], 1e-9)
	assert.Equal(t, 100.0, body["depth_m"])

	w, _ = get(t, router, "/v1/grids/value?"+gridQuery+"&lat=0&lon=1.0")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = get(t, router, "/v1/grids/value?"+gridQuery+"&lat=0&lon=1.0&depth_index=9")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = get(t, router, "/v1/grids/value?"+gridQuery+"&lat=0&lon=1.0&depth_index=x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGridEndpoints_BadRequests(t *testing.T) {
	router := newTestRouter(t, fixtureSource(t))

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"missing variable", "/v1/grids/summary?t=decav&field=an", http.StatusBadRequest},
		{"unknown variable", "/v1/grids/summary?v=x&t=decav&field=an", http.StatusBadRequest},
		{"unknown field", "/v1/grids/summary?v=t&t=decav&field=zz", http.StatusBadRequest},
		{"unknown time code", "/v1/grids/summary?" + gridQuery + "&time=02", http.StatusBadRequest},
		{"field not in archive", "/v1/grids/summary?v=t&t=decav&field=mn", http.StatusNotFound},
		{"missing lat", "/v1/grids/profile?" + gridQuery + "&lon=1", http.StatusBadRequest},
		{"bad lat", "/v1/grids/profile?" + gridQuery + "&lat=abc&lon=1", http.StatusBadRequest},
		{"lat out of range", "/v1/grids/profile?" + gridQuery + "&lat=95&lon=1", http.StatusBadRequest},
		{"missing citation variable", "/v1/citation", http.StatusBadRequest},
		{"unknown citation variable", "/v1/citation?v=q", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := get(t, router, tt.url)
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGridEndpoints_ArchiveErrors(t *testing.T) {
	writeCSV := func(t *testing.T, dir, name, depths string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		content := "#WOA23\n#COMMA SEPARATED LATITUDE, LONGITUDE, AND VALUES AT DEPTHS (M):" + depths + "\n0.5,0.5,1\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("malformed header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "woa23_decav_t00an01.csv")
		require.NoError(t, os.WriteFile(path, []byte("#WOA23\n#NO DEPTH LABEL\n"), 0o644))

		w, body := get(t, newTestRouter(t, staticSource{path}), "/v1/grids/summary?"+gridQuery)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("depth mismatch", func(t *testing.T) {
		dir := t.TempDir()
		src := staticSource{
			writeCSV(t, dir, "woa23_decav_t13an01.csv", "0,10"),
			writeCSV(t, dir, "woa23_decav_t14an01.csv", "0,10"),
			writeCSV(t, dir, "woa23_decav_t15an01.csv", "0,20"),
			writeCSV(t, dir, "woa23_decav_t16an01.csv", "0,10"),
		}
		w, _ := get(t, newTestRouter(t, src), "/v1/grids/summary?"+gridQuery+"&time=13")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("incomplete slot set", func(t *testing.T) {
		dir := t.TempDir()
		src := staticSource{
			writeCSV(t, dir, "woa23_decav_t13an01.csv", "0"),
			writeCSV(t, dir, "woa23_decav_t14an01.csv", "0"),
		}
		w, _ := get(t, newTestRouter(t, src), "/v1/grids/summary?"+gridQuery+"&time=13")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGridEndpoints_InternalError(t *testing.T) {
	// A directory opens fine but cannot be read as a file.
	path := filepath.Join(t.TempDir(), "woa23_decav_t00an01.csv")
	require.NoError(t, os.Mkdir(path, 0o755))

	router := newTestRouter(t, staticSource{path})
	w, body := get(t, router, "/v1/grids/summary?"+gridQuery)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, body["error"])
}

func TestGetCitation(t *testing.T) {
	router := newTestRouter(t, fixtureSource(t))
	w, body := get(t, router, "/v1/citation?v=p")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["citation"], "Volume 4")
}
