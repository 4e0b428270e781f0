package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/twpayne/go-elevation-api"
)

const (
	messageNoPoints      = "Please provide some coordinates! ie. /api/elevation?points=(39.90974,-106.17188),(62.52417,10.02487)"
	messageParseError    = "Unable to parse one or more of the coordinates provided!"
	messageCapacityError = "Requested more than %d locations, please reduce the request size."
	messageUnavailable   = "Unable to load elevation data, please try again later."
)

type elevationsResponse struct {
	Elevations []elevation.Elevation `json:"elevations"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":     "Free Elevation API",
		"MaxPoints": s.maxPoints,
	})
}

func (s *Server) healthz(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) elevations(c *gin.Context) {
	pointsStr, ok := c.GetQuery("points")
	if !ok || strings.TrimSpace(pointsStr) == "" {
		c.JSON(http.StatusBadRequest, messageResponse{Message: messageNoPoints})
		return
	}

	points, err := elevation.ParsePoints(pointsStr)
	if err != nil {
		s.logger.Warn("invalid points", zap.Error(err))
		c.JSON(http.StatusBadRequest, messageResponse{Message: messageParseError})
		return
	}

	if err := elevation.CheckCapacity(len(points), s.maxPoints); err != nil {
		s.logger.Warn("too many points", zap.Int("points", len(points)), zap.Int("max", s.maxPoints))
		c.JSON(http.StatusBadRequest, messageResponse{Message: fmt.Sprintf(messageCapacityError, s.maxPoints)})
		return
	}

	elevations, err := s.resolver.Resolve(c.Request.Context(), points)
	if err != nil {
		_ = c.Error(err)
		if allFailed(elevations) {
			s.logger.Error("failed to resolve points", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, messageResponse{Message: messageUnavailable})
			return
		}
		s.logger.Warn("failed to resolve some points", zap.Error(err))
	}

	s.logger.Debug("resolved points", zap.Int("points", len(points)))
	c.JSON(http.StatusOK, elevationsResponse{Elevations: elevations})
}

// allFailed returns if every elevation failed to load.
func allFailed(elevations []elevation.Elevation) bool {
	for _, e := range elevations {
		var tileLoadErr *elevation.TileLoadError
		if !errors.As(e.Err, &tileLoadErr) {
			return false
		}
	}
	return len(elevations) > 0
}
