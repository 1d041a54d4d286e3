package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traylinx/modelgate/internal/buildinfo"
	"github.com/traylinx/modelgate/internal/constant"
	"github.com/traylinx/modelgate/internal/modeltype"
	"github.com/traylinx/modelgate/internal/registry"
	"github.com/traylinx/modelgate/sdk/access"
)

// maxTagBody bounds bodies accepted by the tagging endpoint.
const maxTagBody = 1 << 20

// SelectionResponse is the presentation view plus the derived model type.
type SelectionResponse struct {
	AllowedModels   []registry.Descriptor `json:"allowedModels"`
	SelectedModelID string                `json:"selectedModelId"`
	Locked          bool                  `json:"locked"`
	LockReason      string                `json:"lockReason,omitempty"`
	ModelType       string                `json:"modelType"`
}

type selectRequest struct {
	ID string `json:"id" binding:"required"`
}

type accessFactsRequest struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type tagQueryRequest struct {
	URL string `json:"url" binding:"required"`
}

func (s *Server) selectionResponse() SelectionResponse {
	v := s.session.View()
	return SelectionResponse{
		AllowedModels:   v.AllowedModels,
		SelectedModelID: v.SelectedModelID,
		Locked:          v.Locked,
		LockReason:      v.LockReason,
		ModelType:       s.session.TypeOf(v.SelectedModelID),
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"principal": s.session.Principal(),
		"build":     buildinfo.Current(),
	})
}

func (s *Server) handleGetSelection(c *gin.Context) {
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) handleSelect(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be {\"id\": \"<model id>\"}"})
		return
	}
	if err := s.session.Select(req.ID); err != nil {
		if errors.Is(err, access.ErrInvalidSelection) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "selection": s.selectionResponse()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) handleTypeOf(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{"id": id, "modelType": s.session.TypeOf(id)})
}

func (s *Server) handleTagJSON(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTagBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if len(body) > maxTagBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}
	tagged, err := s.session.TagJSON(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if label, ok := modeltype.ReadTag(tagged); ok {
		c.Header(constant.ModelTypeHeader, label)
	}
	c.Data(http.StatusOK, "application/json", tagged)
}

func (s *Server) handleTagQuery(c *gin.Context) {
	var req tagQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be {\"url\": \"...\"}"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": s.session.TagQuery(req.URL)})
}

func (s *Server) handleAccessFacts(c *gin.Context) {
	var req accessFactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid access facts"})
		return
	}
	s.session.UpdateFacts(access.Facts{
		Roles:       req.Roles,
		Permissions: access.NewPermissionSet(req.Permissions...),
	})
	c.JSON(http.StatusOK, s.selectionResponse())
}

func (s *Server) handleGetAccessFacts(c *gin.Context) {
	facts := s.session.Facts()
	resp := accessFactsRequest{Roles: facts.Roles, Permissions: []string{}}
	if set, ok := facts.Permissions.(access.PermissionSet); ok {
		resp.Permissions = set.List()
	}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	c.JSON(http.StatusOK, resp)
}
