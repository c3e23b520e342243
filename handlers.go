package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/smartbillpro/billing_backend/appctx"
	"github.com/smartbillpro/billing_backend/config"
	"github.com/smartbillpro/billing_backend/models"
	"github.com/smartbillpro/billing_backend/reports"
	"github.com/smartbillpro/billing_backend/utils"
)

// catalogDisplayLimit caps the catalog view unless the caller asks otherwise.
const catalogDisplayLimit = 7

// billingApp serializes every operation behind one mutex: there is exactly
// one operator, so mutations run to completion before the next is processed.
type billingApp struct {
	mu      sync.Mutex
	catalog *models.CatalogStore
	cart    *models.CartLedger
	logger  *logrus.Logger
}

// withBillingLock takes the best-effort cross-process lock around a
// mutation's read-modify-write. If Redis is unavailable or the lock cannot
// be obtained we proceed anyway; the in-process mutex still serializes this
// instance.
func (app *billingApp) withBillingLock(ctx context.Context, funcName string, fn func()) {
	var lock *redislock.Lock
	if locker := config.GetRedisLock(); locker != nil {
		var err error
		lock, err = locker.Obtain(ctx, "lock:billing", 30*time.Second, nil)
		if err == redislock.ErrNotObtained {
			config.LogWarn(app.logger, "main", funcName, "could not obtain billing lock; proceeding without it", nil, err)
			lock = nil
		} else if err != nil {
			config.LogWarn(app.logger, "main", funcName, "error obtaining billing lock; proceeding without it", nil, err)
			lock = nil
		}
	}
	defer func() {
		if lock == nil {
			return
		}
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			config.LogWarn(app.logger, "main", funcName, "failed to release billing lock", nil, releaseErr)
		}
	}()

	app.mu.Lock()
	defer app.mu.Unlock()
	fn()
}

// snapshot is what the rendering collaborator receives after every mutation:
// the filtered catalog and cart views plus the five computed totals.
func (app *billingApp) snapshot(catalogQuery, cartQuery string, limit int) gin.H {
	return gin.H{
		"catalog": app.catalog.Filter(catalogQuery, limit),
		"cart":    app.cart.Filter(cartQuery),
		"totals":  app.cart.Totals().View(),
	}
}

func writeDomainError(c *gin.Context, err error) {
	var insufficient *models.InsufficientStockError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusConflict, gin.H{
			"error":           insufficient.Error(),
			"available_stock": insufficient.Available,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrOutOfRange):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrDuplicateId):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrOutOfStock),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidProduct):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// requireConfirmation gates destructive operations. The confirmation UX
// itself belongs to the caller; the API only understands ?confirmed=true.
func requireConfirmation(c *gin.Context, message string) bool {
	if c.Query("confirmed") == "true" {
		return true
	}
	c.JSON(http.StatusConflict, gin.H{
		"confirmation_required": true,
		"message":               message,
	})
	return false
}

func (app *billingApp) getCatalog(c *gin.Context) {
	limit := catalogDisplayLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	app.mu.Lock()
	defer app.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"catalog": app.catalog.Filter(c.Query("query"), limit)})
}

func (app *billingApp) addCatalogItem(c *gin.Context) {
	var input models.NewCatalogItem
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	app.withBillingLock(c.Request.Context(), "addCatalogItem", func() {
		item, err := app.catalog.Add(c.Request.Context(), input)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"item": item, "snapshot": app.snapshot("", "", catalogDisplayLimit)})
	})
}

func (app *billingApp) updateCatalogItem(c *gin.Context) {
	var input models.NewCatalogItem
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	app.withBillingLock(c.Request.Context(), "updateCatalogItem", func() {
		item, err := app.catalog.Update(c.Request.Context(), c.Param("id"), input)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item, "snapshot": app.snapshot("", "", catalogDisplayLimit)})
	})
}

func (app *billingApp) replaceCatalog(c *gin.Context) {
	var inputs []models.NewCatalogItem
	if err := c.ShouldBindJSON(&inputs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	app.withBillingLock(c.Request.Context(), "replaceCatalog", func() {
		if err := app.catalog.ReplaceAll(c.Request.Context(), inputs); err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, app.snapshot("", "", catalogDisplayLimit))
	})
}

func (app *billingApp) removeCatalogItem(c *gin.Context) {
	if !requireConfirmation(c, "Are you sure you want to remove this product from catalog?") {
		return
	}
	app.withBillingLock(c.Request.Context(), "removeCatalogItem", func() {
		if err := app.catalog.Remove(c.Request.Context(), c.Param("id")); err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, app.snapshot("", "", catalogDisplayLimit))
	})
}

func (app *billingApp) getCart(c *gin.Context) {
	app.mu.Lock()
	defer app.mu.Unlock()
	discountRate, taxRate := app.cart.Rates()
	c.JSON(http.StatusOK, gin.H{
		"cart":          app.cart.Filter(c.Query("query")),
		"discount_rate": discountRate,
		"tax_rate":      taxRate,
		"totals":        app.cart.Totals().View(),
	})
}

type addCartItemRequest struct {
	ProductId string  `json:"product_id" binding:"required"`
	Quantity  float64 `json:"quantity"`
}

func (app *billingApp) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	// An omitted quantity means one, the catalog view's default.
	qty := int(req.Quantity)
	if req.Quantity == 0 {
		qty = 1
	}
	app.withBillingLock(c.Request.Context(), "addCartItem", func() {
		line, err := app.cart.AddItem(c.Request.Context(), req.ProductId, qty)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"line": line, "snapshot": app.snapshot("", "", catalogDisplayLimit)})
	})
}

type editCartItemRequest struct {
	Quantity float64 `json:"quantity" binding:"required"`
}

func (app *billingApp) editCartItem(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid line index"})
		return
	}
	var req editCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	app.withBillingLock(c.Request.Context(), "editCartItem", func() {
		line, clamp, err := app.cart.EditQuantity(c.Request.Context(), index, int(req.Quantity))
		if err != nil {
			writeDomainError(c, err)
			return
		}
		resp := gin.H{"line": line, "snapshot": app.snapshot("", "", catalogDisplayLimit)}
		if clamp != nil {
			resp["warning"] = clamp.Error()
			resp["clamped_to"] = clamp.ClampedTo
		}
		c.JSON(http.StatusOK, resp)
	})
}

func (app *billingApp) removeCartItem(c *gin.Context) {
	if !requireConfirmation(c, "Are you sure you want to delete this product?") {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid line index"})
		return
	}
	app.withBillingLock(c.Request.Context(), "removeCartItem", func() {
		if err := app.cart.RemoveLine(c.Request.Context(), index); err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, app.snapshot("", "", catalogDisplayLimit))
	})
}

func (app *billingApp) clearCart(c *gin.Context) {
	if !requireConfirmation(c, "Are you sure you want to clear the entire bill? All items will be returned to catalog stock.") {
		return
	}
	app.withBillingLock(c.Request.Context(), "clearCart", func() {
		if err := app.cart.ClearAll(c.Request.Context()); err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, app.snapshot("", "", catalogDisplayLimit))
	})
}

type ratesRequest struct {
	DiscountRate *decimal.Decimal `json:"discount_rate"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
}

func (app *billingApp) setRates(c *gin.Context) {
	var req ratesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	app.withBillingLock(c.Request.Context(), "setRates", func() {
		if req.DiscountRate != nil {
			app.cart.SetDiscountRate(c.Request.Context(), *req.DiscountRate)
		}
		if req.TaxRate != nil {
			app.cart.SetTaxRate(c.Request.Context(), *req.TaxRate)
		}
		c.JSON(http.StatusOK, app.snapshot("", "", catalogDisplayLimit))
	})
}

func (app *billingApp) getTotals(c *gin.Context) {
	app.mu.Lock()
	defer app.mu.Unlock()
	c.JSON(http.StatusOK, app.cart.Totals().View())
}

func (app *billingApp) exportInvoice(c *gin.Context) {
	storeName := os.Getenv("STORE_NAME")
	if storeName == "" {
		storeName = "SmartBill Pro"
	}

	app.mu.Lock()
	lines := app.cart.Lines()
	totals := app.cart.Totals()
	app.mu.Unlock()

	if err := reports.WriteInvoice(c.Writer, storeName, time.Now(), lines, totals); err != nil {
		cid, _ := appctx.GetString(c.Request.Context(), appctx.ContextKeyCorrelationId)
		config.LogError(app.logger, "main", "exportInvoice", "failed to write invoice workbook", cid, err)
		c.Status(http.StatusInternalServerError)
	}
}
