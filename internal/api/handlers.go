package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	hydrodb "github.com/curwsl/hydrodb"
)

func requestContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), timeout)
}

// parseMode reads the mode query parameter, defaulting to the raw table.
func parseMode(c *gin.Context) (hydrodb.DataTable, error) {
	mode := c.Query("mode")
	if mode == "" {
		return hydrodb.RawData, nil
	}
	return hydrodb.ParseDataTable(mode)
}

// pointDTO renders a point with the common timestamp format.
type pointDTO struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

func toPointDTOs(points []hydrodb.Point) []pointDTO {
	out := make([]pointDTO, len(points))
	for i, p := range points {
		out[i] = pointDTO{Time: p.Time.Format(hydrodb.CommonTimeLayout), Value: p.Value}
	}
	return out
}

// respondError maps the adapter error taxonomy onto HTTP statuses:
// validation 400, constraint 409, anything else 500.
func respondError(c *gin.Context, err error) {
	var ve *hydrodb.ValidationError
	var ce *hydrodb.ConstraintError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, gin.H{"error": ce.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleCreateEvent(c *gin.Context) {
	var meta hydrodb.Metadata
	if err := c.ShouldBindJSON(&meta); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid metadata payload"})
		return
	}

	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	id, found, err := s.store.LookupEventID(ctx, meta)
	if err != nil {
		respondError(c, err)
		return
	}
	if found {
		c.JSON(http.StatusOK, gin.H{"event_id": id})
		return
	}

	id, err = s.store.EnsureEvent(ctx, meta)
	if err != nil {
		respondError(c, err)
		return
	}
	s.metrics.EventsCreated.Inc()
	c.JSON(http.StatusCreated, gin.H{"event_id": id})
}

func (s *Server) handleListEvents(c *gin.Context) {
	query := hydrodb.EventQuery{
		Station:  c.QueryArray("station"),
		Variable: c.QueryArray("variable"),
		Unit:     c.QueryArray("unit"),
		Type:     c.QueryArray("type"),
		Source:   c.QueryArray("source"),
		Name:     c.QueryArray("name"),
	}

	opts := hydrodb.QueryOptions{Limit: s.cfg.DefaultLimit}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		opts.Limit = limit
	}
	if skipStr := c.Query("skip"); skipStr != "" {
		skip, err := strconv.Atoi(skipStr)
		if err != nil || skip < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skip"})
			return
		}
		opts.Skip = skip
	}

	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	events, err := s.store.GetEventIDs(ctx, query, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}

func (s *Server) handleDeleteEvent(c *gin.Context) {
	eventID := c.Param("event_id")

	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	deleted, err := s.store.DeleteTimeseries(ctx, eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	s.metrics.EventsDeleted.Inc()
	c.JSON(http.StatusOK, gin.H{"deleted_count": deleted})
}

type ingestRequest struct {
	Timeseries [][]json.RawMessage `json:"timeseries"`
}

// records converts the loosely shaped JSON rows into string records for
// hydrodb.PointsFromRecords, which enforces the skip-malformed contract.
func (r ingestRequest) records() [][]string {
	records := make([][]string, len(r.Timeseries))
	for i, row := range r.Timeseries {
		rec := make([]string, len(row))
		for j, cell := range row {
			var str string
			if err := json.Unmarshal(cell, &str); err == nil {
				rec[j] = str
				continue
			}
			var num float64
			if err := json.Unmarshal(cell, &num); err == nil {
				rec[j] = strconv.FormatFloat(num, 'f', -1, 64)
			}
		}
		records[i] = rec
	}
	return records
}

func (s *Server) handleInsertTimeseries(c *gin.Context) {
	eventID := c.Param("event_id")

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timeseries payload"})
		return
	}

	upsert := false
	if upsertStr := c.Query("upsert"); upsertStr != "" {
		val, err := strconv.ParseBool(upsertStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upsert parameter"})
			return
		}
		upsert = val
	}

	table, err := parseMode(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := requestContext(c, 30*time.Second)
	defer cancel()

	inserted, err := s.store.InsertTimeseries(ctx, eventID, hydrodb.PointsFromRecords(req.records()), upsert, table)
	if err != nil {
		respondError(c, err)
		return
	}
	s.metrics.PointsInserted.Add(float64(inserted))
	c.JSON(http.StatusOK, gin.H{"inserted_count": inserted})
}

func (s *Server) handleGetTimeseries(c *gin.Context) {
	eventID := c.Param("event_id")

	table, err := parseMode(c)
	if err != nil {
		respondError(c, err)
		return
	}

	opts := hydrodb.RetrieveOptions{Table: table}
	if fromStr := c.Query("from"); fromStr != "" {
		t, err := time.Parse(hydrodb.CommonTimeLayout, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
		opts.From = &t
	}
	if toStr := c.Query("to"); toStr != "" {
		t, err := time.Parse(hydrodb.CommonTimeLayout, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
		opts.To = &t
	}

	ctx, cancel := requestContext(c, 15*time.Second)
	defer cancel()

	series, err := s.store.RetrieveTimeseries(ctx, []string{eventID}, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	if len(series) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         eventID,
		"count":      len(series[0].Points),
		"timeseries": toPointDTOs(series[0].Points),
	})
}

func (s *Server) handleAggregate(c *gin.Context) {
	eventID := c.Param("event_id")

	op, err := hydrodb.ParseGroupOperation(c.Query("op"))
	if err != nil {
		respondError(c, err)
		return
	}

	start := c.Query("start")
	end := c.Query("end")

	ctx, cancel := requestContext(c, 15*time.Second)
	defer cancel()

	points, err := s.store.ExtractGroupedTimeseries(ctx, eventID, start, end, op)
	if err != nil {
		respondError(c, err)
		return
	}
	s.metrics.AggregationQueries.WithLabelValues(op.String()).Inc()
	c.JSON(http.StatusOK, gin.H{
		"id":         eventID,
		"op":         op.String(),
		"count":      len(points),
		"timeseries": toPointDTOs(points),
	})
}

type stationRequest struct {
	ID          int     `json:"id"`
	Category    string  `json:"category"`
	StationID   string  `json:"stationId"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Resolution  float64 `json:"resolution"`
	Description string  `json:"description"`
}

func (s *Server) handleCreateStation(c *gin.Context) {
	var req stationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station payload"})
		return
	}

	station := hydrodb.Station{
		ID:          req.ID,
		StationID:   req.StationID,
		Name:        req.Name,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Resolution:  req.Resolution,
		Description: req.Description,
	}
	if req.ID == 0 {
		category, err := hydrodb.ParseStationCategory(req.Category)
		if err != nil {
			respondError(c, err)
			return
		}
		station.Category = category
	}

	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	id, err := s.store.CreateStation(ctx, station)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleGetStation(c *gin.Context) {
	query := hydrodb.StationQuery{
		StationID: c.Query("stationId"),
		Name:      c.Query("name"),
	}
	if idStr := c.Query("id"); idStr != "" {
		id, err := strconv.Atoi(idStr)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		query.ID = id
	}

	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	station, err := s.store.GetStation(ctx, query)
	if err != nil {
		respondError(c, err)
		return
	}
	if station == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "station not found"})
		return
	}
	c.JSON(http.StatusOK, station)
}

func (s *Server) handleDeleteStation(c *gin.Context) {
	var id int
	if idStr := c.Query("id"); idStr != "" {
		parsed, err := strconv.Atoi(idStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		id = parsed
	}

	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	deleted, err := s.store.DeleteStation(ctx, id, c.Query("stationId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "station not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_count": deleted})
}

func (s *Server) handleCreateSource(c *gin.Context) {
	var src hydrodb.Source
	if err := c.ShouldBindJSON(&src); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source payload"})
		return
	}

	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	created, err := s.store.CreateSource(ctx, src)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetSource(c *gin.Context) {
	var id int
	if idStr := c.Query("id"); idStr != "" {
		parsed, err := strconv.Atoi(idStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		id = parsed
	}

	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	source, err := s.store.GetSource(ctx, id, c.Query("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	if source == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}
	c.JSON(http.StatusOK, source)
}

func (s *Server) handleDeleteSource(c *gin.Context) {
	id, err := strconv.Atoi(c.Query("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	deleted, err := s.store.DeleteSource(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if deleted == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_count": deleted})
}
