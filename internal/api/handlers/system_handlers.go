package handlers

import (
	"net/http"

	"facegate/internal/utils"

	"github.com/gin-gonic/gin"
)

// SystemStatus liefert aktuelle System- und Anwendungsstatistiken
func (h *Handler) SystemStatus(c *gin.Context) {
	stats := utils.GetSystemStats(h.pool)

	c.JSON(http.StatusOK, gin.H{
		"stats":            stats,
		"cpu_usage_text":   utils.FormatPercent(stats.CPUUsage),
		"memory_alloc_txt": utils.FormatBytes(stats.MemoryAlloc),
		"memory_sys_text":  utils.FormatBytes(stats.MemorySys),
	})
}
