package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openremoteio/remoteio/internal/api/websocket"
	"github.com/openremoteio/remoteio/internal/gateway"
	"github.com/openremoteio/remoteio/internal/types"
	"go.uber.org/zap"
)

// GET /api/v1/devices
func (s *Server) listDevices(c *gin.Context) {
	statuses := s.lm.Gateway().Statuses()
	c.JSON(http.StatusOK, gin.H{
		"devices": statuses,
		"count":   len(statuses),
	})
}

// GET /api/v1/devices/:name
func (s *Server) getDevice(c *gin.Context) {
	inst, err := s.lm.Gateway().Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     inst.Status(),
		"config":     inst.Config(),
		"channels":   inst.Channels(),
		"aggregates": inst.Aggregates(),
	})
}

// POST /api/v1/devices
func (s *Server) createDevice(c *gin.Context) {
	var cfg types.InstanceConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, err := s.lm.Gateway().Add(cfg)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrInstanceExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case errors.Is(err, gateway.ErrAddressInUse):
			// The instance is still managed, in Faulted.
			c.JSON(http.StatusConflict, gin.H{
				"error":  err.Error(),
				"status": inst.Status(),
			})
			return
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	// Persist after a successful add so restarts pick the device up.
	if store := s.lm.Storage(); store != nil {
		if _, err := store.SaveDevice(c.Request.Context(), cfg); err != nil {
			s.logger.Warn("Failed to persist device",
				zap.String("device", cfg.Name),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  inst.Status(),
		"message": "Device created",
	})
}

// DELETE /api/v1/devices/:name
func (s *Server) deleteDevice(c *gin.Context) {
	name := c.Param("name")

	if err := s.lm.Gateway().Remove(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	if store := s.lm.Storage(); store != nil {
		if err := store.DeleteDevice(c.Request.Context(), name); err != nil {
			s.logger.Warn("Failed to delete persisted device",
				zap.String("device", name),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Device deleted",
	})
}

// POST /api/v1/devices/:name/reconnect
func (s *Server) reconnectDevice(c *gin.Context) {
	inst, err := s.lm.Gateway().Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	if err := inst.Reconnect(); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("reconnect failed: %v", err),
			"status":  inst.Status(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Device reconnected",
		"status":  inst.Status(),
	})
}

// GET /api/v1/devices/:name/channels
func (s *Server) listChannels(c *gin.Context) {
	inst, err := s.lm.Gateway().Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	channels := inst.Channels()
	c.JSON(http.StatusOK, gin.H{
		"channels":   channels,
		"aggregates": inst.Aggregates(),
		"count":      len(channels),
	})
}

// GET /api/v1/devices/:name/channels/:channel
//
// The channel segment is either a single channel name ("ai03") or an
// all-of-kind aggregate ("all_ai").
func (s *Server) readChannel(c *gin.Context) {
	inst, err := s.lm.Gateway().Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	channel := c.Param("channel")
	if kind, ok := aggregateKind(channel); ok {
		reading := inst.ReadAggregate(kind)
		c.JSON(http.StatusOK, gin.H{
			"channel":   channel,
			"quality":   reading.Quality,
			"analog":    types.JSONAnalog(reading.Analog),
			"digital":   reading.Digital,
			"timestamp": reading.At.Unix(),
		})
		return
	}

	kind, index, err := types.ParseChannelName(channel)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reading, err := inst.ReadChannel(kind, index)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel":   channel,
		"quality":   reading.Quality,
		"value":     types.JSONValue(reading.Value),
		"timestamp": reading.At.Unix(),
	})
}

// PUT /api/v1/devices/:name/channels/:channel
func (s *Server) writeChannel(c *gin.Context) {
	inst, err := s.lm.Gateway().Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	kind, index, err := types.ParseChannelName(c.Param("channel"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Value any `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := inst.WriteChannel(kind, index, req.Value)
	switch {
	case errors.Is(err, gateway.ErrNotRegistered):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, gateway.ErrNotWritable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Push the accepted value to the live feed so subscribers see the
	// change before the next aggregate publish.
	if result.Quality == types.QualityValid {
		s.wsHub.Broadcast(websocket.NewChannelReadingMessage(
			c.Param("name"), c.Param("channel"),
			types.Reading{Quality: result.Quality, Value: req.Value, At: time.Now()}))
	}

	c.JSON(http.StatusOK, gin.H{
		"channel": c.Param("channel"),
		"quality": result.Quality,
	})
}

// POST /api/v1/devices/:name/registers/read
func (s *Server) readRegisters(c *gin.Context) {
	inst, err := s.lm.Gateway().Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	var req struct {
		Start uint16 `json:"start"`
		Count uint16 `json:"count" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	values := inst.ReadRegisters(req.Start, req.Count)
	c.JSON(http.StatusOK, gin.H{
		"start":     req.Start,
		"values":    types.JSONAnalog(values),
		"timestamp": time.Now().Unix(),
	})
}

// POST /api/v1/devices/:name/registers/write
func (s *Server) writeRegisters(c *gin.Context) {
	inst, err := s.lm.Gateway().Get(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	var req struct {
		Start  uint16   `json:"start"`
		Values []uint16 `json:"values" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok := inst.WriteRegisters(req.Start, req.Values)
	c.JSON(http.StatusOK, gin.H{
		"start":   req.Start,
		"written": len(req.Values),
		"success": ok,
	})
}

func aggregateKind(name string) (types.ChannelKind, bool) {
	if !strings.HasPrefix(name, "all_") {
		return "", false
	}
	kind := types.ChannelKind(strings.TrimPrefix(name, "all_"))
	switch kind {
	case types.KindAnalogInput, types.KindAnalogOutput, types.KindDigitalInput, types.KindDigitalOutput:
		return kind, true
	}
	return "", false
}
