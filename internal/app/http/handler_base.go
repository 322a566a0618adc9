package http

import (
	"github.com/fardannozami/wa-multisession/internal/app/usecase"
	"github.com/gin-gonic/gin"
	walog "go.mau.fi/whatsmeow/util/log"
)

type Handler struct {
	initUC    *usecase.InitSessionUsecase
	codeUC    *usecase.GetCodeUsecase
	sendUC    *usecase.SendTextUsecase
	bulkUC    *usecase.SendBulkUsecase
	mediaUC   *usecase.SendMediaUsecase
	statusUC  *usecase.StatusUsecase
	discUC    *usecase.DisconnectUsecase
	contactUC *usecase.ContactUsecase
	sessUC    *usecase.ListSessionsUsecase

	renderQR func(code string) (string, error)
	log      walog.Logger
}

type Usecases struct {
	Init        *usecase.InitSessionUsecase
	GetCode     *usecase.GetCodeUsecase
	SendText    *usecase.SendTextUsecase
	SendBulk    *usecase.SendBulkUsecase
	SendMedia   *usecase.SendMediaUsecase
	Status      *usecase.StatusUsecase
	Disconnect  *usecase.DisconnectUsecase
	Contact     *usecase.ContactUsecase
	ListSession *usecase.ListSessionsUsecase
}

func NewHandler(uc Usecases, renderQR func(code string) (string, error), log walog.Logger) *Handler {
	if log == nil {
		log = walog.Noop
	}
	return &Handler{
		initUC:    uc.Init,
		codeUC:    uc.GetCode,
		sendUC:    uc.SendText,
		bulkUC:    uc.SendBulk,
		mediaUC:   uc.SendMedia,
		statusUC:  uc.Status,
		discUC:    uc.Disconnect,
		contactUC: uc.Contact,
		sessUC:    uc.ListSession,
		renderQR:  renderQR,
		log:       log,
	}
}

func sessionParam(c *gin.Context) (string, bool) {
	session := c.Param("session")
	if session == "" {
		c.JSON(400, gin.H{
			"error": "session param is required",
		})
		return "", false
	}
	return session, true
}
