package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lucasuchoa98/geedar/services/api/db"
)

const dateLayout = "2006-01-02"

func (s *Server) handleListStations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	stations, err := s.store.ListStations(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stations": stations})
}

func (s *Server) handleGetStation(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("station_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid station_id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	station, err := s.store.GetStation(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "station not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, station)
}

func (s *Server) handleListDemands(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	demands, err := s.store.ListDemands(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"demands": demands})
}

func (s *Server) handleDemandSeries(c *gin.Context) {
	demandID, err := strconv.Atoi(c.Param("demand_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid demand_id"})
		return
	}

	q := db.SeriesQuery{
		DemandID: demandID,
		Variable: c.Query("variable"),
		Limit:    s.cfg.DefaultLimit,
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		q.Limit = parsed
	}

	if startStr := c.Query("start"); startStr != "" {
		t, err := time.Parse(dateLayout, startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date"})
			return
		}
		q.Since = &t
	}

	if endStr := c.Query("end"); endStr != "" {
		t, err := time.Parse(dateLayout, endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date"})
			return
		}
		q.Until = &t
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	points, err := s.store.FetchSeries(ctx, q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"demand_id": demandID,
		"count":     len(points),
		"data":      points,
	})
}

func (s *Server) handleDemandVariables(c *gin.Context) {
	demandID, err := strconv.Atoi(c.Param("demand_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid demand_id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	names, err := s.store.ListVariables(ctx, demandID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"demand_id": demandID,
		"variables": names,
	})
}
