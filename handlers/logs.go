package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"blueprint-backend/models"
)

// recentLogs - 최근 로그 조회 (?device_id= 로 필터)
func (a *API) recentLogs(c *fiber.Ctx) error {
	logs, err := a.Events.Recent(c.Query("device_id"), queryLimit(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"count": len(logs), "logs": logs})
}

// logsByTimeRange - 시간 범위로 로그 조회 (RFC3339, 기본 최근 24시간)
func (a *API) logsByTimeRange(c *fiber.Ctx) error {
	start := time.Now().Add(-24 * time.Hour)
	if s := c.Query("start"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return models.NewError(models.ErrCodeInvalidInput, "invalid start time format (use RFC3339)")
		}
		start = parsed
	}

	end := time.Now()
	if s := c.Query("end"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return models.NewError(models.ErrCodeInvalidInput, "invalid end time format (use RFC3339)")
		}
		end = parsed
	}

	logs, err := a.Events.ByTimeRange(c.Query("device_id"), start, end, queryLimit(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{
		"count": len(logs),
		"time_range": fiber.Map{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		},
		"logs": logs,
	})
}

// logsByEventType - 이벤트 타입별 로그 조회
func (a *API) logsByEventType(c *fiber.Ctx) error {
	eventType := c.Query("event_type")
	if eventType == "" {
		return models.NewError(models.ErrCodeInvalidInput, "event_type parameter is required")
	}

	logs, err := a.Events.ByEventType(eventType, queryLimit(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"count": len(logs), "event_type": eventType, "logs": logs})
}

// logStats - 로그 통계 조회
func (a *API) logStats(c *fiber.Ctx) error {
	hours, err := strconv.Atoi(c.Query("hours", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}

	// 아직 버퍼에 남은 로그도 통계에 포함
	a.Events.Flush()

	stats, err := a.Events.Stats(hours)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"stats": stats})
}
