package controllers

import (
	"errors"

	"github.com/dweber/subsync/app/models"
	"github.com/dweber/subsync/internal/pkg/billing"
	"github.com/dweber/subsync/internal/pkg/database"
	"github.com/dweber/subsync/internal/pkg/env"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	session "github.com/stripe/stripe-go/v82/checkout/session"
	"gorm.io/gorm"
)

type CreateCheckoutRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Period string `json:"period" validate:"required,oneof=monthly annual"`
}

// HandleCreateCheckoutSession starts a Stripe Checkout for a known user and
// returns the session id and URL for the frontend. The user's id is embedded
// in the session metadata so the completed-checkout webhook can be correlated
// back to the account.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	stripe.Key = env.GetEnv("STRIPE_SECRET_KEY", "")

	var req CreateCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and period (monthly|annual) are required"})
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}

	var user models.User
	if err := database.GetDB().First(&user, "id = ?", req.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}

	// Monthly plans are recurring subscriptions; annual plans are sold as a
	// one-time payment, which is how the webhook side derives the period.
	priceID := env.GetEnv("STRIPE_PRICE_MONTHLY", "")
	mode := stripe.CheckoutSessionModeSubscription
	if req.Period == models.PeriodAnnual {
		priceID = env.GetEnv("STRIPE_PRICE_ANNUAL", "")
		mode = stripe.CheckoutSessionModePayment
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(env.GetEnv("CHECKOUT_SUCCESS_URL", "")),
		CancelURL:  stripe.String(env.GetEnv("CHECKOUT_CANCEL_URL", "")),
	}
	if user.StripeCustomerID != "" {
		params.Customer = stripe.String(user.StripeCustomerID)
	}
	params.AddMetadata(billing.CorrelationMetadataKey, user.ID)

	s, err := session.New(params)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not create checkout session"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"sessionId": s.ID, "url": s.URL})
}

// HandleGetUserSubscription returns the stored subscription state for an
// account.
func HandleGetUserSubscription(c *fiber.Ctx) error {
	userID := c.Params("id")
	if _, err := uuid.Parse(userID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}

	var user models.User
	if err := database.GetDB().First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user_id":                 user.ID,
		"subscription_status":     user.SubscriptionStatus,
		"subscription_period":     user.SubscriptionPeriod,
		"stripe_subscription_id":  user.StripeSubscriptionID,
		"subscription_start_date": user.SubscriptionStartDate,
		"subscription_end_date":   user.SubscriptionEndDate,
	})
}
