package controller

import (
	"errors"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/service"
	"superr_bounty_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DeckController struct {
	DeckService *service.DeckService
}

func NewDeckController(deckService *service.DeckService) *DeckController {
	return &DeckController{DeckService: deckService}
}

type DeckRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	CoverImage  string   `json:"coverImage"`
	CardIDs     []string `json:"cardIds"`
}

// Create godoc
// @Summary 创建 deck
// @Tags 卡组
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body DeckRequest true "deck 信息"
// @Success 201 {object} util.Response{data=model.Deck}
// @Router /api/decks [post]
func (c *DeckController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req DeckRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	deck := &model.Deck{
		Title:       req.Title,
		Description: req.Description,
		CoverImage:  req.CoverImage,
	}
	if err := deck.SetCardIDList(req.CardIDs); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.DeckService.Create(claims.UserID, deck); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, deck)
}

// Get godoc
// @Summary deck 详情（含按顺序展开的卡片）
// @Tags 卡组
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "deck ID"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response
// @Router /api/decks/{id} [get]
func (c *DeckController) Get(ctx *gin.Context) {
	deck, cards, err := c.DeckService.GetWithCards(ctx.Param("id"))
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"deck":  deck,
		"cards": cards,
	})
}

// List godoc
// @Summary 当前用户的 deck 列表
// @Tags 卡组
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Deck}
// @Router /api/decks [get]
func (c *DeckController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	decks, err := c.DeckService.ListForOwner(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, decks)
}

// Update godoc
// @Summary 更新 deck
// @Tags 卡组
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "deck ID"
// @Param   body body DeckRequest true "deck 信息"
// @Success 200 {object} util.Response{data=model.Deck}
// @Router /api/decks/{id} [put]
func (c *DeckController) Update(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req DeckRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	deck, err := c.DeckService.Get(ctx.Param("id"))
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	deck.Title = req.Title
	deck.Description = req.Description
	deck.CoverImage = req.CoverImage
	if req.CardIDs != nil {
		if err := deck.SetCardIDList(req.CardIDs); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	if err := c.DeckService.Update(claims.UserID, deck); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, deck)
}

// Delete godoc
// @Summary 删除 deck
// @Tags 卡组
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "deck ID"
// @Success 200 {object} util.Response
// @Router /api/decks/{id} [delete]
func (c *DeckController) Delete(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.DeckService.Delete(claims.UserID, ctx.Param("id")); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type CardRefRequest struct {
	CardID string `json:"cardId" binding:"required"`
}

// AddCard godoc
// @Summary deck 追加卡片
// @Tags 卡组
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "deck ID"
// @Param   body body CardRefRequest true "卡片引用"
// @Success 200 {object} util.Response
// @Router /api/decks/{id}/cards [post]
func (c *DeckController) AddCard(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req CardRefRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.DeckService.AddCard(claims.UserID, ctx.Param("id"), req.CardID); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// RemoveCard godoc
// @Summary deck 移除卡片
// @Tags 卡组
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "deck ID"
// @Param   cardId path string true "卡片 ID"
// @Success 200 {object} util.Response
// @Router /api/decks/{id}/cards/{cardId} [delete]
func (c *DeckController) RemoveCard(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.DeckService.RemoveCard(claims.UserID, ctx.Param("id"), ctx.Param("cardId")); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

func (c *DeckController) renderError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrDeckNotFound):
		util.NotFound(ctx, "deck 不存在")
	case errors.Is(err, util.ErrCardNotFound):
		util.NotFound(ctx, "卡片不存在")
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx, "没有权限")
	default:
		util.LogInternalError(ctx, err)
	}
}
