package httpx

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	docs "VisionTag/internal/docs"
)

// @title           VisionTag API
// @version         1.0
// @description     Read-only access to the analytical queries over vision-tagged images.
// @BasePath        /
func NewRouter(d Deps) http.Handler {
	// health and metrics stay outside the rate limit so probes and scrapes never get 429s
	ops := http.NewServeMux()
	mux := http.NewServeMux()
	ops.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status     string    `json:"status"`
			Time       time.Time `json:"time"`
			DB         string    `json:"db"`
			Collection string    `json:"collection"`
		}
		db := ""
		if d.MC != nil {
			db = d.MC.DB.Name()
		}
		writeJSON(w, http.StatusOK, resp{
			Status:     "ok",
			Time:       time.Now().UTC(),
			DB:         db,
			Collection: d.Cfg.Collection,
		})
	})
	mux.HandleFunc("GET /queries", queriesListHandler(d))
	mux.HandleFunc("GET /queries/{id}", queryRunHandler(d))
	ops.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("/swagger/", httpSwagger.WrapHandler)
	mux.HandleFunc("GET /swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		doc := docs.SwaggerInfo.ReadDoc()
		_, _ = w.Write([]byte(doc))
	})

	ops.Handle("/", LimitMiddleware(NewRateLimiter(d.Cfg.RatePerMinute), mux))
	return withRequestLog(d.Log, ops)
}
