package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SakshiC19/Satva-Organic-sub000/internal/catalog"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/ctxmanage"
	"github.com/SakshiC19/Satva-Organic-sub000/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListCategories(c *gin.Context) {
	list, err := h.cat.ListCategories(c.Request.Context())
	if err != nil {
		abortWithError(c, "listing categories failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": list})
}

func (h *Handler) GetCategory(c *gin.Context) {
	cat, err := h.cat.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, "fetching category failed", err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var in catalog.NewCategory
	if !h.bindJSON(c, &in) {
		return
	}
	cat, err := h.cat.CreateCategory(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, "creating category failed", err)
		return
	}
	slog.Info("category created", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)), slog.String("CategoryID", cat.ID))
	c.JSON(http.StatusCreated, cat)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	var in catalog.NewCategory
	if !h.bindJSON(c, &in) {
		return
	}
	cat, err := h.cat.UpdateCategory(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		abortWithError(c, "updating category failed", err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.cat.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, "deleting category failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListProducts lists the catalog, optionally narrowed with ?category=<id>.
func (h *Handler) ListProducts(c *gin.Context) {
	list, err := h.cat.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		abortWithError(c, "listing products failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": list})
}

func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.cat.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, "fetching product failed", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var in catalog.NewProduct
	if !h.bindJSON(c, &in) {
		return
	}
	p, err := h.cat.CreateProduct(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, "creating product failed", err)
		return
	}
	slog.Info("product created", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)), slog.String("ProductID", p.ID))
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	var in catalog.NewProduct
	if !h.bindJSON(c, &in) {
		return
	}
	p, err := h.cat.UpdateProduct(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		abortWithError(c, "updating product failed", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.cat.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, "deleting product failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}
