package rest

import (
	domainAccount "github.com/AzielCF/wa-gateway/domains/account"
	pkgError "github.com/AzielCF/wa-gateway/pkg/error"
	"github.com/AzielCF/wa-gateway/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Account struct {
	Service domainAccount.IAccountUsecase
}

func InitRestAccount(app fiber.Router, service domainAccount.IAccountUsecase) Account {
	rest := Account{Service: service}
	app.Get("/accounts", rest.List)
	app.Get("/accounts/:id", rest.Get)
	app.Get("/accounts/:id/qr", rest.GetQR)
	app.Post("/accounts/:id/login", rest.Login)
	app.Post("/accounts/:id/logout", rest.Logout)
	app.Delete("/accounts/:id/ratelimit/:to", rest.ResetRateLimit)

	return rest
}

func (handler *Account) List(c *fiber.Ctx) error {
	return c.JSON(handler.Service.List(c.UserContext()))
}

func (handler *Account) Get(c *fiber.Ctx) error {
	view, err := handler.Service.Get(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(view)
}

func (handler *Account) GetQR(c *fiber.Ctx) error {
	qr, err := handler.Service.GetQR(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(qr)
}

func (handler *Account) Login(c *fiber.Ctx) error {
	var request domainAccount.LoginRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&request); err != nil {
			utils.PanicIfNeeded(pkgError.ValidationError("invalid login body: " + err.Error()))
		}
	}
	request.AccountID = c.Params("id")

	response, err := handler.Service.Login(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(response)
}

func (handler *Account) Logout(c *fiber.Ctx) error {
	response, err := handler.Service.Logout(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(response)
}

func (handler *Account) ResetRateLimit(c *fiber.Ctx) error {
	err := handler.Service.ResetRateLimit(c.UserContext(), domainAccount.ResetRateLimitRequest{
		AccountID: c.Params("id"),
		To:        c.Params("to"),
	})
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Rate limit counters reset",
	})
}
