package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/tabletap/tabletap/models"
	"github.com/tabletap/tabletap/utils"
)

type RestaurantController struct {
	DB *gorm.DB
}

func NewRestaurantController(db *gorm.DB) *RestaurantController {
	return &RestaurantController{DB: db}
}

// CreateRestaurant registers a restaurant with a URL-safe public slug.
func (rc *RestaurantController) CreateRestaurant(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Theme string `json:"theme"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	base := slug.Make(req.Name)
	candidate := base
	for i := 2; ; i++ {
		var count int64
		rc.DB.Model(&models.Restaurant{}).Where("slug = ?", candidate).Count(&count)
		if count == 0 {
			break
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}

	restaurant := models.Restaurant{
		Name:      req.Name,
		Slug:      candidate,
		Theme:     req.Theme,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := rc.DB.Create(&restaurant).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Restaurant %q registered as /%s", restaurant.Name, restaurant.Slug)
	utils.RespondJSON(c, http.StatusCreated, "Restaurant created", restaurant)
}

// ResolveRestaurantBySlug is the walk-in bootstrap: a public URL like
// /r/kape-tayo resolves to a restaurant the device can open a walk-in
// session against.
func (rc *RestaurantController) ResolveRestaurantBySlug(c *gin.Context) {
	var restaurant models.Restaurant
	if err := rc.DB.Where("slug = ?", c.Param("slug")).First(&restaurant).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Restaurant resolved", restaurant)
}

// GetRestaurant returns one restaurant by ID.
func (rc *RestaurantController) GetRestaurant(c *gin.Context) {
	var restaurant models.Restaurant
	if err := rc.DB.First(&restaurant, c.Param("restaurant_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Restaurant detail", restaurant)
}
