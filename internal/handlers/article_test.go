package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// 参数校验在进服务层之前就完成，所以这些用例不需要数据库
func newArticleTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewArticleHandler(nil)
	r.GET("/api/articles", h.List)
	return r
}

func TestListInvalidSortBy(t *testing.T) {
	r := newArticleTestRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/articles?sort_by=score", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "INVALID_PARAMETER") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestListInvalidSentiment(t *testing.T) {
	r := newArticleTestRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/articles?sentiment=angry", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListInvalidSortOrder(t *testing.T) {
	r := newArticleTestRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/articles?sort_order=sideways", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCronRequiresSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewCronHandler(nil, "s3cret")
	r.POST("/internal/cron/fetch", h.Fetch)

	// 密钥错误
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/internal/cron/fetch", nil)
	req.Header.Set("X-Cron-Secret", "wrong")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	// 缺少密钥
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/internal/cron/fetch", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCronSecretUnsetAlwaysRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// 没配密钥时接口直接关死，不能裸奔
	h := NewCronHandler(nil, "")
	r.POST("/internal/cron/fetch", h.Fetch)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/internal/cron/fetch", nil)
	req.Header.Set("X-Cron-Secret", "")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
