package controller

import (
	"encoding/json"
	"errors"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/service"
	"superr_bounty_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CardController struct {
	CardService    *service.CardService
	StorageService *service.StorageService
}

func NewCardController(cardService *service.CardService, storageService *service.StorageService) *CardController {
	return &CardController{
		CardService:    cardService,
		StorageService: storageService,
	}
}

type CardRequest struct {
	Kind        string          `json:"kind" binding:"required"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Content     json.RawMessage `json:"content" binding:"required"`
}

// Create godoc
// @Summary 创建卡片
// @Description 内容按 kind 校验，11 种卡片各有固定字段
// @Tags 卡片
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body CardRequest true "卡片信息"
// @Success 201 {object} util.Response{data=model.Card}
// @Failure 400 {object} util.Response "内容与 kind 不匹配"
// @Router /api/cards [post]
func (c *CardController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req CardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	card := &model.Card{
		Kind:        model.CardKind(req.Kind),
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
	}
	if err := c.CardService.Create(claims.UserID, card); err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx, "没有权限")
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Created(ctx, card)
}

// Get godoc
// @Summary 卡片详情
// @Tags 卡片
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "卡片 ID"
// @Success 200 {object} util.Response{data=model.Card}
// @Failure 404 {object} util.Response
// @Router /api/cards/{id} [get]
func (c *CardController) Get(ctx *gin.Context) {
	card, err := c.CardService.Get(ctx.Param("id"))
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, card)
}

// List godoc
// @Summary 当前用户的卡片列表
// @Tags 卡片
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Card}
// @Router /api/cards [get]
func (c *CardController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	cards, err := c.CardService.ListForOwner(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, cards)
}

// Update godoc
// @Summary 更新卡片
// @Tags 卡片
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "卡片 ID"
// @Param   body body CardRequest true "卡片信息"
// @Success 200 {object} util.Response{data=model.Card}
// @Router /api/cards/{id} [put]
func (c *CardController) Update(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req CardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	card, err := c.CardService.Get(ctx.Param("id"))
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	card.Kind = model.CardKind(req.Kind)
	card.Title = req.Title
	card.Description = req.Description
	card.Content = req.Content

	if err := c.CardService.Update(claims.UserID, card); err != nil {
		if errors.Is(err, util.ErrPermissionDenied) {
			util.Forbidden(ctx, "没有权限")
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, card)
}

// Delete godoc
// @Summary 删除卡片
// @Tags 卡片
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "卡片 ID"
// @Success 200 {object} util.Response
// @Router /api/cards/{id} [delete]
func (c *CardController) Delete(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.CardService.Delete(claims.UserID, ctx.Param("id")); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadMedia godoc
// @Summary 上传卡片媒体
// @Description 图片或 LinkToFile 卡片的文件，视频自动生成缩略图
// @Tags 卡片
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "卡片 ID"
// @Param   file formData file true "媒体文件"
// @Success 200 {object} util.Response{data=service.CardMedia}
// @Failure 400 {object} util.Response
// @Router /api/cards/{id}/media [post]
func (c *CardController) UploadMedia(ctx *gin.Context) {
	cardID := ctx.Param("id")
	if _, err := c.CardService.Get(cardID); err != nil {
		c.renderError(ctx, err)
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "缺少文件")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	media, err := c.StorageService.UploadCardMedia(
		ctx.Request.Context(),
		cardID,
		fileHeader.Filename,
		file,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, media)
}

func (c *CardController) renderError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCardNotFound):
		util.NotFound(ctx, "卡片不存在")
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx, "没有权限")
	default:
		util.LogInternalError(ctx, err)
	}
}
