package safety

import (
	"context"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pet-food-safety/internal/api/middleware"
	core "pet-food-safety/internal/core/safety"
	"pet-food-safety/internal/pkg/common"
)

// CheckFoodRequest 食物安全查詢請求
type CheckFoodRequest struct {
	Food     string `json:"food"`
	PetType  string `json:"petType"`
	Language string `json:"language,omitempty"`
}

// Checker 食物安全查詢
type Checker interface {
	Check(ctx context.Context, q core.Query) (core.Verdict, bool, error)
}

// Handler 食物安全處理器
type Handler struct {
	checker Checker
}

// NewHandler 創建食物安全處理器
func NewHandler(checker Checker) *Handler {
	return &Handler{checker: checker}
}

// HandleCheckFood 查詢食物對寵物是否安全
func (h *Handler) HandleCheckFood(c *gin.Context) {
	requestID := requestid.Get(c)
	if requestID == "" {
		requestID = common.GenerateUUID()
		c.Header("X-Request-ID", requestID)
	}

	var req CheckFoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if middleware.AbortIfBodyTooLarge(c, err) {
			return
		}
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: common.ErrValidation.Message})
		return
	}

	verdict, cached, err := h.checker.Check(c.Request.Context(), core.Query{
		Food:     req.Food,
		PetType:  core.PetType(req.PetType),
		Language: req.Language,
	})
	if err != nil {
		ce := common.AsCustomError(err)
		if !common.IsValidationError(ce) {
			common.LogError("食物安全查詢失敗",
				zap.String("code", ce.Code),
				zap.Error(err),
				zap.String("request_id", requestID),
			)
		}
		c.JSON(ce.Status, common.ErrorResponse{Error: common.UserMessage(ce)})
		return
	}

	cacheStatus := "MISS"
	if cached {
		cacheStatus = "HIT"
	}
	c.Header("X-Cache", cacheStatus)

	common.LogInfo("食物安全查詢成功",
		zap.String("food", verdict.Food),
		zap.String("pet_type", string(verdict.PetType)),
		zap.String("safety_level", string(verdict.SafetyLevel)),
		zap.Bool("cached", cached),
		zap.String("request_id", requestID),
	)

	c.JSON(http.StatusOK, verdict)
}
