package handlers

import (
	"github.com/gofiber/fiber/v2"

	"blueprint-backend/models"
)

type endLocationRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// startAnimationRequest - 좌표가 모두 없으면 저장된 목적지를 사용
type startAnimationRequest struct {
	DeviceID string   `json:"device_id"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
}

func (a *API) setEndLocation(c *fiber.Ctx) error {
	var req endLocationRequest
	if err := a.parse(c, &req); err != nil {
		return err
	}
	p, valid := models.Destination{X: req.X, Y: req.Y}.Point()
	if !valid {
		return models.NewError(models.ErrCodeInvalidDestination, "end location needs finite x and y")
	}
	a.Store.SetEndLocation(p)
	return ok(c, fiber.Map{"end_location": p})
}

func (a *API) startAnimation(c *fiber.Ctx) error {
	var req startAnimationRequest
	if len(c.Body()) > 0 {
		if err := a.parse(c, &req); err != nil {
			return err
		}
	}

	var err error
	if req.X == nil && req.Y == nil {
		_, err = a.Animator.StartFromEndLocation(req.DeviceID)
	} else {
		_, err = a.Animator.Start(req.DeviceID, models.Destination{X: req.X, Y: req.Y})
	}
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"animation": a.Animator.Status()})
}

func (a *API) cancelAnimation(c *fiber.Ctx) error {
	cancelled := a.Animator.Cancel()
	return ok(c, fiber.Map{"cancelled": cancelled, "animation": a.Animator.Status()})
}

func (a *API) animationStatus(c *fiber.Ctx) error {
	return ok(c, fiber.Map{"animation": a.Animator.Status()})
}
