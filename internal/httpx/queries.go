package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"VisionTag/internal/logger"
	"VisionTag/internal/report"
)

type QueryDTO struct {
	ID          int             `json:"id"`
	Description string          `json:"description"`
	Pipeline    json.RawMessage `json:"pipeline" swaggertype:"array,object"`
}

type QueriesResponse struct {
	Items []QueryDTO `json:"items"`
}

type QueryResultResponse struct {
	Query int               `json:"query"`
	Items []json.RawMessage `json:"items" swaggertype:"array,object"`
	Meta  PageMeta          `json:"meta"`
}

type HTTPError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, HTTPError{Message: msg})
}

// QueriesList godoc
// @Summary      List analytical queries
// @Description  Every fixed query with its description and aggregation pipeline
// @Tags         queries
// @Produce      json
// @Success      200  {object}  QueriesResponse
// @Failure      500  {object}  HTTPError
// @Router       /queries [get]
func queriesListHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := make([]QueryDTO, 0, len(d.Queries))
		for _, q := range d.Queries {
			// top-level arrays can't be marshaled on their own
			b, err := bson.MarshalExtJSON(bson.D{{Key: "pipeline", Value: q.Pipeline}}, false, false)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			var wrap struct {
				Pipeline json.RawMessage `json:"pipeline"`
			}
			if err := json.Unmarshal(b, &wrap); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			items = append(items, QueryDTO{ID: q.ID, Description: q.Description, Pipeline: wrap.Pipeline})
		}
		writeJSON(w, http.StatusOK, QueriesResponse{Items: items})
	}
}

// QueryRun godoc
// @Summary      Run one query
// @Description  Runs the aggregation and returns its result documents, paginated
// @Tags         queries
// @Produce      json
// @Param        id     path    int  true   "query id (0-8)"
// @Param        page   query   int  false  "page (>=1)"      default(1)
// @Param        limit  query   int  false  "items per page"  default(50)  minimum(1)  maximum(500)
// @Success      200    {object}  QueryResultResponse
// @Failure      400    {object}  HTTPError
// @Failure      404    {object}  HTTPError
// @Failure      500    {object}  HTTPError
// @Router       /queries/{id} [get]
func queryRunHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "query id must be an integer")
			return
		}
		q, ok := report.Find(d.Queries, id)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown query")
			return
		}

		page := getPage(r)
		limit := getLimit(r, 50, 500)
		skip := int64(page-1) * limit
		if len(q.Pipeline) > 0 {
			q.Pipeline = append(slices.Clone(q.Pipeline),
				bson.D{{Key: "$skip", Value: skip}},
				bson.D{{Key: "$limit", Value: limit}},
			)
		}

		rows, err := d.Runner.Exec(ctx, q)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Error().Int("query", id).Err(err).Msg("query failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		items := make([]json.RawMessage, 0, len(rows))
		for _, row := range rows {
			b, err := bson.MarshalExtJSON(sanitizeValue(row), false, false)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			items = append(items, b)
		}
		writeJSON(w, http.StatusOK, QueryResultResponse{
			Query: id,
			Items: items,
			Meta:  PageMeta{Page: page, Limit: limit, Count: len(items)},
		})
	}
}
