package rest

import (
	domainSend "github.com/AzielCF/wa-gateway/domains/send"
	pkgError "github.com/AzielCF/wa-gateway/pkg/error"
	"github.com/AzielCF/wa-gateway/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Send struct {
	Service domainSend.ISendUsecase
}

func InitRestSend(app fiber.Router, service domainSend.ISendUsecase) Send {
	rest := Send{Service: service}
	app.Post("/send", rest.SendText)
	return rest
}

func (controller *Send) SendText(c *fiber.Ctx) error {
	var request domainSend.MessageRequest
	if err := c.BodyParser(&request); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid JSON body: " + err.Error()))
	}

	response, err := controller.Service.SendText(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(response)
}
