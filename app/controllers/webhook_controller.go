package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dweber/subsync/internal/pkg/billing"
	"github.com/gofiber/fiber/v2"
)

// Preflight and response headers for the webhook endpoint. The processor
// itself never preflights; the permissive CORS surface exists for dashboard
// tooling that replays events from a browser.
const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "Content-Type, Stripe-Signature"
	corsAllowMethods = "POST, OPTIONS"
)

// WebhookController is the HTTP boundary for billing webhook deliveries:
// method gating, header extraction, and response shaping. All processing
// decisions live in the billing service.
type WebhookController struct {
	service *billing.Service
}

func NewWebhookController(service *billing.Service) *WebhookController {
	return &WebhookController{service: service}
}

// HandleStripeWebhook accepts a signed POST from the payment processor and
// responds 200 {received:true} for every acknowledged delivery, including
// duplicates and intentionally ignored event types.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	setCORSHeaders(c)

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	ctx, cancel := context.WithTimeout(c.UserContext(), 15*time.Second)
	defer cancel()

	if _, err := wc.service.ProcessWebhook(ctx, rawBody, signature); err != nil {
		if billing.IsVerificationError(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verificationMessage(err)})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook processing failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

// HandleStripeWebhookPreflight answers CORS preflight requests with 200.
func (wc *WebhookController) HandleStripeWebhookPreflight(c *fiber.Ctx) error {
	setCORSHeaders(c)
	return c.SendStatus(fiber.StatusOK)
}

func setCORSHeaders(c *fiber.Ctx) {
	c.Set("Access-Control-Allow-Origin", corsAllowOrigin)
	c.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	c.Set("Access-Control-Allow-Methods", corsAllowMethods)
}

// verificationMessage keeps rejection responses to a short message without
// internal detail.
func verificationMessage(err error) string {
	switch {
	case errors.Is(err, billing.ErrMissingSignature):
		return billing.ErrMissingSignature.Error()
	case errors.Is(err, billing.ErrInvalidSignature):
		return billing.ErrInvalidSignature.Error()
	default:
		return billing.ErrMalformedPayload.Error()
	}
}
