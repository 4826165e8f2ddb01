package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voxrelay/internal/device"
	"voxrelay/pkg/config"
	"voxrelay/pkg/verrors"
)

// core is the slice of the app the control API drives. The UI talks to
// these five verbs and nothing else.
type core interface {
	Devices(direction device.Direction) []device.Device
	SetActiveDevice(direction device.Direction, name string) error
	Start() error
	Stop()
	Running() bool
}

func newRouter(c core, cfg *config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/devices", func(ctx *gin.Context) {
		direction, err := device.DirectionFromString(ctx.DefaultQuery("direction", "input"))
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{
			"direction": direction.String(),
			"devices":   c.Devices(direction),
		})
	})

	router.PUT("/devices/active", func(ctx *gin.Context) {
		var req struct {
			Direction string `json:"direction" binding:"required"`
			Name      string `json:"name" binding:"required"`
		}
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		direction, err := device.DirectionFromString(req.Direction)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := c.SetActiveDevice(direction, req.Name); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, verrors.ErrNoDevice) {
				status = http.StatusNotFound
			}
			ctx.JSON(status, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"direction": direction.String(), "name": req.Name})
	})

	router.POST("/start", func(ctx *gin.Context) {
		if err := c.Start(); err != nil {
			ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"running": true})
	})

	router.POST("/stop", func(ctx *gin.Context) {
		c.Stop()
		ctx.JSON(http.StatusOK, gin.H{"running": false})
	})

	router.GET("/status", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"running": c.Running()})
	})

	return router
}

func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		log.Debug("http request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
