package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/collabhub/errors"
	"github.com/techagentng/collabhub/server/response"
)

type generateRequest struct {
	Prompt string `json:"prompt"`
}

func bindPrompt(c *gin.Context) (string, error) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return "", errs.ErrPromptRequired
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errs.ErrPromptRequired
	}
	return prompt, nil
}

func (s *Server) handleGenerateImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		prompt, err := bindPrompt(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		url, err := s.GenerationService.GenerateImage(c.Request.Context(), prompt)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Image generated", http.StatusOK, gin.H{"imageUrl": url}, nil)
	}
}

func (s *Server) handleGenerateWebsiteCode() gin.HandlerFunc {
	return func(c *gin.Context) {
		prompt, err := bindPrompt(c)
		if err != nil {
			response.Error(c, err)
			return
		}

		code, err := s.GenerationService.GenerateWebsiteCode(c.Request.Context(), prompt)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, "Website code generated", http.StatusOK, code, nil)
	}
}
