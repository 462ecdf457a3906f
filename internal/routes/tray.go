package routes

import (
	"github.com/labstack/echo/v4"

	"repair-crm/internal/controllers"
)

func runTrayRouter(api *echo.Group, trayCtrl *controllers.TrayController) {
	api.POST("/service-files/:id/trays", trayCtrl.CreateTray)
	api.GET("/service-files/:id/trays", trayCtrl.ListTrays)
	api.GET("/trays/:id", trayCtrl.GetTray)
	api.PUT("/trays/:id", trayCtrl.EditTray)
	api.DELETE("/trays/:id", trayCtrl.DeleteTray)
	api.PUT("/trays/:id/lock", trayCtrl.ToggleLock)
}

func runTrayItemRouter(api *echo.Group, itemCtrl *controllers.TrayItemController) {
	api.GET("/trays/:id/items", itemCtrl.ListItems)
	api.POST("/trays/:id/items", itemCtrl.AddItem)
	api.PUT("/items/:id", itemCtrl.UpdateItem)
	api.DELETE("/items/:id", itemCtrl.DeleteItem)
}
