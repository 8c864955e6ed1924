package handlers

import (
	"net/http"

	"quizchat/services"

	"github.com/gin-gonic/gin"
)

type QuestionHandler struct {
	bank *services.QuestionBankService
}

func NewQuestionHandler(bank *services.QuestionBankService) *QuestionHandler {
	return &QuestionHandler{bank: bank}
}

func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	question, err := h.bank.CreateQuestion(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, question)
}

func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	questions, err := h.bank.ListQuestions(c.Request.Context(), c.Query("category"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, questions)
}
